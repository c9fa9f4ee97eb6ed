package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/iksnae/chat-session/internal"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
	Long: `Show or change the local settings. Settings are read from the settings
file and CHAT_SESSION_* environment variables, and written back only when
changed with "config set".

Keys: api_key, user_id, base_url, timeout, history_turns, theme,
display.show_sources, display.show_path, display.auto_scroll,
display.compact_mode, display.include_feedback_prompt`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		printSettings(cmd.OutOrStdout(), settings)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting and save it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		if err := settings.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := settings.Save(); err != nil {
			return err
		}
		value := args[1]
		if args[0] == "api_key" {
			value = maskKey(value)
		}
		internal.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Saved %s = %s", args[0], value))
		return nil
	},
}

var configClearKeyCmd = &cobra.Command{
	Use:   "clear-key",
	Short: "Forget the stored API key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		settings.ClearCredential()
		if err := settings.Save(); err != nil {
			return err
		}
		internal.PrintSuccess(cmd.OutOrStdout(), "API key removed")
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the settings file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), settings.Path())
		return nil
	},
}

func printSettings(out io.Writer, settings *internal.SettingsStore) {
	st := settings.Get()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"api_key", maskKey(st.APIKey)},
		{"user_id", st.UserID},
		{"base_url", st.BaseURL},
		{"timeout", st.Timeout.String()},
		{"history_turns", fmt.Sprint(st.HistoryTurns)},
		{"theme", st.Theme},
		{"display.show_sources", fmt.Sprint(st.Display.ShowSources)},
		{"display.show_path", fmt.Sprint(st.Display.ShowPath)},
		{"display.auto_scroll", fmt.Sprint(st.Display.AutoScroll)},
		{"display.compact_mode", fmt.Sprint(st.Display.CompactMode)},
		{"display.include_feedback_prompt", fmt.Sprint(st.Display.IncludeFeedbackPrompt)},
	}
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", groupStyle.Render(row[0]), row[1])
	}
	_ = w.Flush()
}

// maskKey hides all but the last four characters of an API key
func maskKey(key string) string {
	key = strings.TrimSpace(key)
	switch {
	case key == "":
		return "(not set)"
	case len(key) <= 4:
		return strings.Repeat("*", len(key))
	default:
		return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
	}
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configSetCmd, configClearKeyCmd, configPathCmd)
}
