package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultBaseURL      = "http://localhost:8001/api/v1"
	DefaultTimeout      = 60 * time.Second
	DefaultHistoryTurns = 100
	DefaultTheme        = "system"
)

// DisplayFlags are the user's presentation preferences
type DisplayFlags struct {
	ShowSources           bool `mapstructure:"show_sources"`
	ShowPath              bool `mapstructure:"show_path"`
	AutoScroll            bool `mapstructure:"auto_scroll"`
	CompactMode           bool `mapstructure:"compact_mode"`
	IncludeFeedbackPrompt bool `mapstructure:"include_feedback_prompt"`
}

// Settings is the persisted local configuration
type Settings struct {
	APIKey       string        `mapstructure:"api_key"`
	UserID       string        `mapstructure:"user_id"`
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	HistoryTurns int           `mapstructure:"history_turns"`
	Theme        string        `mapstructure:"theme"`
	Display      DisplayFlags  `mapstructure:"display"`
}

// HasCredential reports whether an API key is configured
func (s Settings) HasCredential() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

// EngineFlags maps display preferences onto request features
func (s Settings) EngineFlags() Flags {
	return Flags{
		IncludePath:           s.Display.ShowPath,
		IncludeFeedbackPrompt: s.Display.IncludeFeedbackPrompt,
	}
}

var (
	apiKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{20,}$`)
	userIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{8,64}$`)
	validThemes   = map[string]bool{"light": true, "dark": true, "system": true}
)

// ValidateAPIKey checks the key format accepted by the service
func ValidateAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return &ValidationError{Field: "api_key", Reason: "must not be empty"}
	}
	if !apiKeyPattern.MatchString(key) {
		return &ValidationError{Field: "api_key", Reason: "must be at least 20 letters, digits, '-' or '_'"}
	}
	return nil
}

// ValidateUserID checks the user id format
func ValidateUserID(id string) error {
	if !userIDPattern.MatchString(id) {
		return &ValidationError{Field: "user_id", Reason: "must be 8-64 letters, digits, '-' or '_'"}
	}
	return nil
}

// SettingsStore reads settings once at startup and writes them only on Save
type SettingsStore struct {
	v    *viper.Viper
	path string

	mu       sync.RWMutex
	settings Settings
}

// DefaultSettingsPath returns ~/.chat-session/config.yaml
func DefaultSettingsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".chat-session", "config.yaml"), nil
}

// LoadSettings reads the settings file at path, applying defaults and
// CHAT_SESSION_* environment overrides. A missing file is not an error.
func LoadSettings(path string) (*SettingsStore, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CHAT_SESSION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("api_key", "")
	v.SetDefault("user_id", "")
	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("history_turns", DefaultHistoryTurns)
	v.SetDefault("theme", DefaultTheme)
	v.SetDefault("display.show_sources", true)
	v.SetDefault("display.show_path", true)
	v.SetDefault("display.auto_scroll", true)
	v.SetDefault("display.compact_mode", false)
	v.SetDefault("display.include_feedback_prompt", true)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, &StorageError{Path: path, Op: "read", Err: err}
		}
		LogDebug("No settings file at %s, using defaults", path)
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, &StorageError{Path: path, Op: "parse", Err: err}
	}

	store := &SettingsStore{v: v, path: path, settings: settings}
	if settings.UserID == "" {
		store.settings.UserID = fmt.Sprintf("user_%d", time.Now().UnixMilli())
		LogInfo("Generated user id %s", store.settings.UserID)
		if err := store.Save(); err != nil {
			LogWarn("Failed to persist generated user id: %v", err)
		}
	}

	return store, nil
}

// Path returns the settings file location
func (s *SettingsStore) Path() string {
	return s.path
}

// Get returns a copy of the current settings
func (s *SettingsStore) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update mutates the in-memory settings. Call Save to persist them.
func (s *SettingsStore) Update(fn func(*Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.settings)
}

// ClearCredential forgets the API key in memory
func (s *SettingsStore) ClearCredential() {
	s.Update(func(st *Settings) { st.APIKey = "" })
}

// Set assigns a single setting by its config key
func (s *SettingsStore) Set(key, value string) error {
	var err error
	s.Update(func(st *Settings) {
		switch key {
		case "api_key":
			if err = ValidateAPIKey(value); err == nil {
				st.APIKey = strings.TrimSpace(value)
			}
		case "user_id":
			if err = ValidateUserID(value); err == nil {
				st.UserID = value
			}
		case "base_url":
			st.BaseURL = strings.TrimRight(value, "/")
		case "timeout":
			var d time.Duration
			if d, err = time.ParseDuration(value); err == nil {
				st.Timeout = d
			}
		case "history_turns":
			var n int
			if _, err = fmt.Sscanf(value, "%d", &n); err == nil && n <= 0 {
				err = &ValidationError{Field: key, Reason: "must be positive"}
			}
			if err == nil {
				st.HistoryTurns = n
			}
		case "theme":
			if !validThemes[value] {
				err = &ValidationError{Field: key, Reason: "must be light, dark or system"}
			} else {
				st.Theme = value
			}
		case "display.show_sources", "display.show_path", "display.auto_scroll",
			"display.compact_mode", "display.include_feedback_prompt":
			var b bool
			if b, err = parseBool(value); err == nil {
				setDisplayFlag(&st.Display, strings.TrimPrefix(key, "display."), b)
			}
		default:
			err = &ValidationError{Field: key, Reason: "unknown setting"}
		}
	})
	return err
}

// Save writes the current settings to the settings file
func (s *SettingsStore) Save() error {
	st := s.Get()

	s.v.Set("api_key", st.APIKey)
	s.v.Set("user_id", st.UserID)
	s.v.Set("base_url", st.BaseURL)
	s.v.Set("timeout", st.Timeout.String())
	s.v.Set("history_turns", st.HistoryTurns)
	s.v.Set("theme", st.Theme)
	s.v.Set("display.show_sources", st.Display.ShowSources)
	s.v.Set("display.show_path", st.Display.ShowPath)
	s.v.Set("display.auto_scroll", st.Display.AutoScroll)
	s.v.Set("display.compact_mode", st.Display.CompactMode)
	s.v.Set("display.include_feedback_prompt", st.Display.IncludeFeedbackPrompt)

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return &StorageError{Path: s.path, Op: "write", Err: err}
	}
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return &StorageError{Path: s.path, Op: "write", Err: err}
	}
	return os.Chmod(s.path, 0600)
}

func setDisplayFlag(d *DisplayFlags, name string, value bool) {
	switch name {
	case "show_sources":
		d.ShowSources = value
	case "show_path":
		d.ShowPath = value
	case "auto_scroll":
		d.AutoScroll = value
	case "compact_mode":
		d.CompactMode = value
	case "include_feedback_prompt":
		d.IncludeFeedbackPrompt = value
	}
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0":
		return false, nil
	default:
		return false, &ValidationError{Field: "value", Reason: fmt.Sprintf("%q is not a boolean", s)}
	}
}
