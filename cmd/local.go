package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/iksnae/chat-session/internal"
	"github.com/spf13/cobra"
)

var localCmd = &cobra.Command{
	Use:   "local [session-id]",
	Short: "Read transcripts kept on this machine",
	Long: `Read the transcripts retained locally without contacting the service.
Without an argument the stored sessions are listed. With a session id (or a
unique prefix) its transcript is printed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.transcripts == nil {
			return errors.New("local transcript storage is unavailable")
		}

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		ids, err := a.transcripts.SessionIDs(ctx)
		if err != nil {
			return err
		}
		sort.Strings(ids)

		if len(args) == 0 {
			if len(ids) == 0 {
				fmt.Fprintln(out, headerStyle.Render("📋 No transcripts stored locally"))
				return nil
			}
			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("📋 %d transcript(s) stored locally", len(ids))))
			for _, id := range ids {
				fmt.Fprintln(out, "  "+idStyle.Render(id))
			}
			return nil
		}

		id, err := matchID(ids, args[0])
		if err != nil {
			return err
		}
		messages, err := a.transcripts.LoadTranscript(ctx, id)
		if err != nil {
			return err
		}

		displaySessionHeader(out, internal.Session{ID: id, Title: internal.BuildChatTitle(messages)}, len(messages))
		display := a.settings.Get().Display
		for i, msg := range messages {
			displayMessage(out, i+1, msg, len(messages), display)
		}
		return nil
	},
}

// matchID resolves an exact id or a unique prefix among ids
func matchID(ids []string, ref string) (string, error) {
	var matches []string
	for _, id := range ids {
		if id == ref {
			return id, nil
		}
		if strings.HasPrefix(id, ref) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", internal.ErrSessionNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("session id %q is ambiguous (%d matches)", ref, len(matches))
	}
}

func init() {
	rootCmd.AddCommand(localCmd)
}
