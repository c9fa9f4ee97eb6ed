package cmd

import (
	"fmt"

	"github.com/iksnae/chat-session/internal"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session",
	Long: `Delete a session and its locally retained transcript. Any unique prefix
of the id is accepted. Deleting your only session leaves a fresh empty one.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		dir := a.assistant.Directory()
		if _, err := dir.List(cmd.Context()); err != nil {
			return err
		}
		target, err := dir.Resolve(args[0])
		if err != nil {
			return err
		}

		if err := a.assistant.DeleteChat(cmd.Context(), target.ID); err != nil {
			return err
		}
		internal.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Deleted %q (%s)", target.Title, target.ID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
