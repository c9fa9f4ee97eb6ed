package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/iksnae/chat-session/internal"
)

// MarkdownExporter exports sessions in Markdown format
type MarkdownExporter struct{}

// Export writes a readable transcript
func (e *MarkdownExporter) Export(session *internal.SessionExport, w io.Writer) error {
	s := session.Session
	_, _ = fmt.Fprintf(w, "# %s\n\n", escapeMarkdown(s.Title))
	_, _ = fmt.Fprintf(w, "**Session:** `%s`  \n", s.ID)
	if !s.CreatedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "**Created:** %s  \n", s.CreatedAt.Format(time.RFC3339))
	}
	_, _ = fmt.Fprintf(w, "**Turns:** %s\n\n", humanize.Comma(int64(s.TurnsCount)))

	if session.Error != "" {
		_, _ = fmt.Fprintf(w, "> History unavailable: %s\n", session.Error)
		return nil
	}

	_, _ = fmt.Fprintf(w, "---\n\n")

	for i, msg := range session.Messages {
		label := "You"
		if msg.Role == internal.RoleAssistant {
			label = "Assistant"
		}
		stamp := ""
		if !msg.Timestamp.IsZero() {
			stamp = fmt.Sprintf(" (%s)", msg.Timestamp.Format("2006-01-02 15:04"))
		}
		_, _ = fmt.Fprintf(w, "**%s:**%s\n\n%s\n\n", label, stamp, escapeMarkdown(msg.Content))

		if msg.StateLabel != "" {
			_, _ = fmt.Fprintf(w, "_State: %s_\n\n", msg.StateLabel)
		}
		if len(msg.Concepts) > 0 {
			_, _ = fmt.Fprintf(w, "_Concepts: %s_\n\n", strings.Join(msg.Concepts, ", "))
		}
		for _, src := range msg.Sources {
			writeSource(w, src)
		}
		if len(msg.Sources) > 0 {
			_, _ = fmt.Fprintln(w)
		}
		if msg.Feedback != nil {
			_, _ = fmt.Fprintf(w, "_Feedback: %s", msg.Feedback.Kind)
			if msg.Feedback.Rating != nil {
				_, _ = fmt.Fprintf(w, " (%d/%d)", *msg.Feedback.Rating, internal.MaxRating)
			}
			_, _ = fmt.Fprintf(w, "_\n\n")
		}

		if i < len(session.Messages)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}

	return nil
}

func writeSource(w io.Writer, src internal.Source) {
	title := src.Title
	if title == "" {
		title = src.BlockID
	}
	if src.Link == "" {
		_, _ = fmt.Fprintf(w, "- %s\n", title)
		return
	}
	link := src.Link
	if secs, ok := src.Start.Seconds(); ok && secs > 0 && !strings.Contains(link, "t=") {
		sep := "?"
		if strings.Contains(link, "?") {
			sep = "&"
		}
		link = fmt.Sprintf("%s%st=%d", link, sep, secs)
	}
	_, _ = fmt.Fprintf(w, "- [%s](%s)\n", title, link)
}

// escapeMarkdown escapes emphasis markers outside fenced code blocks
func escapeMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	inCodeBlock := false

	for i, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			continue
		}
		if inCodeBlock {
			continue
		}
		line = strings.ReplaceAll(line, "**", "\\*\\*")
		lines[i] = strings.ReplaceAll(line, "__", "\\_\\_")
	}

	return strings.Join(lines, "\n")
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}
