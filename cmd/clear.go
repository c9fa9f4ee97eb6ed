package cmd

import (
	"fmt"

	"github.com/iksnae/chat-session/internal"
	"github.com/spf13/cobra"
)

var clearSession string

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear a session's conversation",
	Long: `Replace a session with a fresh empty one. The new session is created
before the old one is deleted, so the conversation can be continued under a
new id. Without --session the most recent session is cleared.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := startSession(cmd, a, clearSession); err != nil {
			return err
		}
		previous := a.assistant.Engine().ActiveSession()

		created, err := a.assistant.ClearChat(cmd.Context())
		if err != nil {
			return err
		}
		internal.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Cleared %s, continue in %s", previous, created.ID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
	clearCmd.Flags().StringVarP(&clearSession, "session", "s", "", "Session to clear (id or unique prefix)")
}
