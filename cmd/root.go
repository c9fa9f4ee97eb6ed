package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/iksnae/chat-session/internal"
	"github.com/iksnae/chat-session/internal/api"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	logJSON    bool
	configPath string
	userID     string
	version    string = "dev"
	commit     string = "unknown"
	date       string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chat-session",
	Short: "Talk to the assistant and manage your chat sessions",
	Long: `A command-line client for the conversational assistant.

Every conversation lives in a session. Sessions are kept by the service,
grouped by how recently they were used, and their transcripts are retained
locally so they stay readable when the service is unreachable.

Features:
  • Ask questions and hold an interactive chat
  • List, create, clear and delete sessions
  • Rate answers with feedback
  • Export transcripts (JSONL, Markdown, YAML, JSON)

Quick Start:
  chat-session config set api_key <key>     # Configure your API key
  chat-session chat                         # Start chatting
  chat-session list                         # List your sessions
  chat-session export --format md           # Export as Markdown`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(verbose)
		internal.SetLogJSON(logJSON)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Write log lines as JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Settings file (default ~/.chat-session/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "Act as this user id instead of the configured one")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// app holds everything a command needs to talk to the service
type app struct {
	settings    *internal.SettingsStore
	client      *api.Client
	cache       *internal.CacheManager
	transcripts *internal.TranscriptStore
	assistant   *internal.Assistant
}

// loadSettings reads the settings file selected by --config and applies --user
func loadSettings() (*internal.SettingsStore, error) {
	path := configPath
	if path == "" {
		var err error
		if path, err = internal.DefaultSettingsPath(); err != nil {
			return nil, err
		}
	}

	store, err := internal.LoadSettings(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	if userID != "" {
		if err := internal.ValidateUserID(userID); err != nil {
			return nil, err
		}
		store.Update(func(st *internal.Settings) { st.UserID = userID })
	}
	return store, nil
}

// dataDir is where the cache and transcripts live, next to the settings file
func dataDir(settings *internal.SettingsStore) string {
	return filepath.Dir(settings.Path())
}

// newApp wires settings, the API client and local storage into an assistant.
// requireKey fails early when no API key is configured.
func newApp(requireKey bool) (*app, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}
	st := settings.Get()
	if requireKey && !st.HasCredential() {
		return nil, fmt.Errorf("%w: run `chat-session config set api_key <key>`", internal.ErrMissingCredential)
	}

	client := api.NewClient(api.Config{
		BaseURL: st.BaseURL,
		APIKey:  st.APIKey,
		Timeout: st.Timeout,
	})
	client.OnInvalidCredential(func() {
		settings.ClearCredential()
		if err := settings.Save(); err != nil {
			internal.LogWarn("Failed to save settings after clearing the API key: %v", err)
		}
	})

	dir := dataDir(settings)
	cache := internal.NewCacheManager(filepath.Join(dir, "cache"))

	var transcripts *internal.TranscriptStore
	db, err := internal.OpenDatabase(filepath.Join(dir, "transcripts.db"))
	if err != nil {
		internal.LogWarn("Local transcripts unavailable: %v", err)
	} else {
		transcripts = internal.NewTranscriptStore(db)
	}

	assistant := internal.NewAssistant(internal.Services{
		Answers:  client,
		Sessions: client,
		History:  client,
		Feedback: client,
	}, settings, transcripts, cache)

	return &app{
		settings:    settings,
		client:      client,
		cache:       cache,
		transcripts: transcripts,
		assistant:   assistant,
	}, nil
}

// Close releases local storage
func (a *app) Close() {
	if a.transcripts == nil {
		return
	}
	if err := a.transcripts.Close(); err != nil {
		internal.LogWarn("Failed to close transcript store: %v", err)
	}
}
