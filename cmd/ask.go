package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/iksnae/chat-session/internal"
	"github.com/spf13/cobra"
)

var askSession string

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question",
	Long: `Ask a question in a session and print the answer. Without --session the
most recently updated session is used.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.TrimSpace(strings.Join(args, " "))
		if query == "" {
			return errors.New("question must not be empty")
		}

		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		if err := startSession(cmd, a, askSession); err != nil {
			return err
		}

		err = internal.ShowProgress(cmd.Context(), "Thinking", func() error {
			return a.assistant.Send(cmd.Context(), query)
		})
		if errors.Is(err, internal.ErrInvalidCredential) {
			return fmt.Errorf("%w: the stored key was cleared, set a new one with `chat-session config set api_key <key>`", err)
		}
		if err != nil {
			var verr *internal.ValidationError
			if errors.As(err, &verr) || errors.Is(err, internal.ErrRequestInFlight) {
				return err
			}
		}

		printLastAnswer(out, a)
		return err
	},
}

// startSession lists the user's sessions and activates ref, or the most
// recent session. A history failure is reported but not fatal.
func startSession(cmd *cobra.Command, a *app, ref string) error {
	err := a.assistant.Start(cmd.Context(), ref)
	var dirErr *internal.DirectoryError
	if errors.As(err, &dirErr) && dirErr.Op == "history" {
		internal.PrintWarning(cmd.ErrOrStderr(), fmt.Sprintf("History unavailable, using the local copy: %v", dirErr.Err))
		return nil
	}
	return err
}

func printLastAnswer(out io.Writer, a *app) {
	messages := a.assistant.Engine().Messages()
	if len(messages) == 0 || messages[len(messages)-1].Role != internal.RoleAssistant {
		return
	}
	msg := messages[len(messages)-1]
	fmt.Fprintln(out, messageContentStyle.Render(wrapText(strings.TrimSpace(msg.Content), 80)))
	display := a.settings.Get().Display
	if display.CompactMode {
		return
	}
	for _, line := range messageDetails(msg, display) {
		fmt.Fprintln(out, detailStyle.Render(line))
	}
	if msg.FeedbackPrompt != "" && display.IncludeFeedbackPrompt {
		fmt.Fprintln(out, detailStyle.Render(msg.FeedbackPrompt))
	}
	sid := a.assistant.Engine().ActiveSession()
	fmt.Fprintln(out, timestampStyle.Render(fmt.Sprintf("Rate answers using the ids from `chat-session show %s`", sid)))
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "Session to ask in (id or unique prefix)")
}
