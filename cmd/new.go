package cmd

import (
	"fmt"
	"strings"

	"github.com/iksnae/chat-session/internal"
	"github.com/spf13/cobra"
)

var newCmd = &cobra.Command{
	Use:   "new [title]",
	Short: "Start a new session",
	Long:  `Create an empty session. Without a title it is named "New Chat" until the first question is asked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		created, err := a.assistant.NewChat(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		internal.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Created %q (%s)", created.Title, created.ID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(newCmd)
}
