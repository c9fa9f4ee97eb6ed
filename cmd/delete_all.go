package cmd

import (
	"errors"
	"fmt"

	"github.com/iksnae/chat-session/internal"
	"github.com/spf13/cobra"
)

var deleteAllYes bool

var deleteAllCmd = &cobra.Command{
	Use:   "delete-all",
	Short: "Delete every session",
	Long: `Delete all of your sessions. A fresh empty session is created first so
you are never left without one. Requires --yes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !deleteAllYes {
			return errors.New("refusing to delete every session without --yes")
		}

		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.assistant.Directory().List(cmd.Context()); err != nil {
			return err
		}

		deleted, err := a.assistant.DeleteAll(cmd.Context())
		if deleted > 0 {
			internal.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Deleted %d session(s)", deleted))
		}
		if err != nil {
			internal.PrintWarning(cmd.OutOrStdout(), "Some sessions could not be deleted")
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteAllCmd)
	deleteAllCmd.Flags().BoolVarP(&deleteAllYes, "yes", "y", false, "Confirm deleting every session")
}
