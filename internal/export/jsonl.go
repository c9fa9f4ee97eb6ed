package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/iksnae/chat-session/internal"
)

// JSONLExporter exports sessions in JSONL format (one message per line)
type JSONLExporter struct{}

type jsonlLine struct {
	SessionID  string             `json:"session_id"`
	ID         string             `json:"id"`
	Role       internal.Role      `json:"role"`
	Content    string             `json:"content"`
	Timestamp  string             `json:"timestamp,omitempty"`
	StateLabel string             `json:"state_label,omitempty"`
	Concepts   []string           `json:"concepts,omitempty"`
	Feedback   *internal.Feedback `json:"feedback,omitempty"`
}

// Export writes one line per message
func (e *JSONLExporter) Export(session *internal.SessionExport, w io.Writer) error {
	enc := json.NewEncoder(w)

	for _, msg := range session.Messages {
		line := jsonlLine{
			SessionID:  session.Session.ID,
			ID:         msg.ID,
			Role:       msg.Role,
			Content:    msg.Content,
			StateLabel: msg.StateLabel,
			Concepts:   msg.Concepts,
			Feedback:   msg.Feedback,
		}
		if !msg.Timestamp.IsZero() {
			line.Timestamp = msg.Timestamp.Format(time.RFC3339)
		}

		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("failed to encode message %s: %w", msg.ID, err)
		}
	}

	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
