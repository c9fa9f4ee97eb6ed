package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/iksnae/chat-session/internal"
	"github.com/spf13/cobra"
)

var (
	limit int
	since string
)

var (
	// Styles for show command
	sessionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212")).
				Padding(0, 1).
				MarginBottom(1)

	sessionMetaStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("243")).
				MarginBottom(1)

	userMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 1)

	assistantMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("135")).
				Bold(true).
				Padding(0, 1)

	messageContentStyle = lipgloss.NewStyle().
				Padding(0, 2).
				MarginBottom(1)

	detailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Padding(0, 2)

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show the transcript of a session",
	Long: `Display the transcript of a session. Any unique prefix of the id is
accepted. When the service cannot return the history, the transcript kept
locally is shown instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var sinceTime time.Time
		if since != "" {
			parsed, err := time.Parse(time.RFC3339, since)
			if err != nil {
				return fmt.Errorf("invalid --since timestamp format (expected RFC3339): %w", err)
			}
			sinceTime = parsed
		}

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

		out := cmd.OutOrStdout()
		if err := a.assistant.Select(cmd.Context(), target.ID); err != nil {
			var dirErr *internal.DirectoryError
			if !errors.As(err, &dirErr) || dirErr.Op != "history" {
				return err
			}
			internal.PrintWarning(out, fmt.Sprintf("History unavailable, showing the local copy: %v", dirErr.Err))
		}

		session, _ := dir.Get(target.ID)
		messages := filterSince(a.assistant.Engine().Messages(), sinceTime)

		displaySessionHeader(out, session, len(messages))

		total := len(messages)
		if limit > 0 && limit < total {
			messages = messages[:limit]
		}

		display := a.settings.Get().Display
		for i, msg := range messages {
			displayMessage(out, i+1, msg, total, display)
		}

		if limit > 0 && limit < total {
			fmt.Fprintln(out)
			fmt.Fprintln(out, lipgloss.NewStyle().
				Foreground(lipgloss.Color("243")).
				Italic(true).
				Render(fmt.Sprintf("... (%d more message(s))", total-limit)))
		}

		return nil
	},
}

func filterSince(messages []internal.Message, since time.Time) []internal.Message {
	if since.IsZero() {
		return messages
	}
	filtered := make([]internal.Message, 0, len(messages))
	for _, msg := range messages {
		if !msg.Timestamp.Before(since) {
			filtered = append(filtered, msg)
		}
	}
	return filtered
}

func displaySessionHeader(out io.Writer, session internal.Session, count int) {
	fmt.Fprintln(out, sessionHeaderStyle.Render(fmt.Sprintf("💬 %s", session.Title)))

	metaParts := []string{fmt.Sprintf("ID: %s", session.ID)}
	if !session.CreatedAt.IsZero() {
		metaParts = append(metaParts, fmt.Sprintf("Created: %s", session.CreatedAt.Local().Format("2006-01-02 15:04")))
	}
	if !session.UpdatedAt.IsZero() {
		metaParts = append(metaParts, fmt.Sprintf("Updated: %s", humanize.Time(session.UpdatedAt)))
	}
	metaParts = append(metaParts, fmt.Sprintf("Messages: %d", count))

	fmt.Fprintln(out, sessionMetaStyle.Render(strings.Join(metaParts, " • ")))
	fmt.Fprintln(out)
}

func displayMessage(out io.Writer, index int, msg internal.Message, total int, display internal.DisplayFlags) {
	actorStyle, actorLabel := userMessageStyle, "👤 You"
	if msg.Role == internal.RoleAssistant {
		actorStyle, actorLabel = assistantMessageStyle, "🤖 Assistant"
	}

	header := actorStyle.Render(actorLabel) + " " + timestampStyle.Render(fmt.Sprintf("[%d/%d]", index, total))
	if !msg.Timestamp.IsZero() {
		header += " " + timestampStyle.Render(msg.Timestamp.Local().Format("15:04:05"))
	}
	if msg.Role == internal.RoleAssistant {
		header += " " + timestampStyle.Render(msg.ID)
	}
	fmt.Fprintln(out, header)

	content := strings.TrimSpace(msg.Content)
	if content == "" {
		fmt.Fprintln(out, messageContentStyle.Foreground(lipgloss.Color("240")).Render("(empty message)"))
		return
	}
	fmt.Fprintln(out, messageContentStyle.Render(wrapText(content, 80)))

	if display.CompactMode || msg.Role != internal.RoleAssistant {
		return
	}
	for _, line := range messageDetails(msg, display) {
		fmt.Fprintln(out, detailStyle.Render(line))
	}
	if msg.StateLabel != "" || len(msg.Sources) > 0 || msg.Feedback != nil {
		fmt.Fprintln(out)
	}
}

// messageDetails renders the annotations of an assistant message
func messageDetails(msg internal.Message, display internal.DisplayFlags) []string {
	var lines []string
	if msg.StateLabel != "" {
		state := "State: " + msg.StateLabel
		if msg.StateConfidence != nil {
			state += fmt.Sprintf(" (%.0f%%)", *msg.StateConfidence*100)
		}
		lines = append(lines, state)
	}
	if len(msg.Concepts) > 0 {
		lines = append(lines, "Concepts: "+strings.Join(msg.Concepts, ", "))
	}
	if display.ShowPath && msg.PathRecommendation != nil && msg.PathRecommendation.FirstStep != nil {
		lines = append(lines, "Next step: "+msg.PathRecommendation.FirstStep.Title)
	}
	if display.ShowSources {
		for _, src := range msg.Sources {
			line := "Source: " + src.Title
			if secs, ok := src.Start.Seconds(); ok {
				line += fmt.Sprintf(" @%d:%02d", secs/60, secs%60)
			}
			lines = append(lines, line)
		}
	}
	if msg.Feedback != nil {
		fb := "Feedback: " + string(msg.Feedback.Kind)
		if msg.Feedback.Rating != nil {
			fb += fmt.Sprintf(" (%d/5)", *msg.Feedback.Rating)
		}
		lines = append(lines, fb)
	}
	return lines
}

func wrapText(text string, width int) string {
	lines := strings.Split(text, "\n")
	var wrapped []string

	for _, line := range lines {
		if len(line) <= width {
			wrapped = append(wrapped, line)
			continue
		}

		words := strings.Fields(line)
		currentLine := ""
		for _, word := range words {
			if len(currentLine)+len(word)+1 > width {
				if currentLine != "" {
					wrapped = append(wrapped, currentLine)
					currentLine = word
				} else {
					wrapped = append(wrapped, word)
					currentLine = ""
				}
			} else {
				if currentLine == "" {
					currentLine = word
				} else {
					currentLine += " " + word
				}
			}
		}
		if currentLine != "" {
			wrapped = append(wrapped, currentLine)
		}
	}

	return strings.Join(wrapped, "\n")
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().IntVarP(&limit, "limit", "n", 0, "Limit number of messages to show")
	showCmd.Flags().StringVar(&since, "since", "", "Show messages since timestamp (RFC3339)")
}
