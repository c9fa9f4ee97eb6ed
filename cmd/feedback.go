package cmd

import (
	"fmt"
	"strings"

	"github.com/iksnae/chat-session/internal"
	"github.com/spf13/cobra"
)

var (
	feedbackSession string
	feedbackRating  int
	feedbackComment string
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback <message-id> <positive|negative|neutral>",
	Short: "Rate an answer",
	Long: `Record feedback on an assistant message. Message ids are shown by
"chat-session show". The session is taken from the message id unless
--session is given.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		messageID := args[0]
		kind, err := internal.ParseFeedbackKind(args[1])
		if err != nil {
			return err
		}

		var rating *int
		if cmd.Flags().Changed("rating") {
			if feedbackRating < internal.MinRating || feedbackRating > internal.MaxRating {
				return &internal.ValidationError{Field: "rating", Reason: fmt.Sprintf("must be between %d and %d", internal.MinRating, internal.MaxRating)}
			}
			r := feedbackRating
			rating = &r
		}

		ref := feedbackSession
		if ref == "" {
			ref = sessionFromMessageID(messageID)
		}
		if ref == "" {
			return fmt.Errorf("cannot tell the session of %s, pass --session", messageID)
		}

		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := startSession(cmd, a, ref); err != nil {
			return err
		}
		if err := a.assistant.SubmitFeedback(cmd.Context(), messageID, kind, rating, feedbackComment); err != nil {
			return err
		}
		internal.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Recorded %s feedback on %s", kind, messageID))
		return nil
	},
}

// sessionFromMessageID extracts the session from a history message id
func sessionFromMessageID(messageID string) string {
	i := strings.LastIndex(messageID, "-b-")
	if i <= 0 {
		return ""
	}
	return messageID[:i]
}

func init() {
	rootCmd.AddCommand(feedbackCmd)
	feedbackCmd.Flags().StringVarP(&feedbackSession, "session", "s", "", "Session the message belongs to")
	feedbackCmd.Flags().IntVarP(&feedbackRating, "rating", "r", 0, "Rating from 1 to 5")
	feedbackCmd.Flags().StringVarP(&feedbackComment, "comment", "c", "", "Optional comment")
}
