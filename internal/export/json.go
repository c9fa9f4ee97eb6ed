package export

import (
	"encoding/json"
	"io"

	"github.com/iksnae/chat-session/internal"
)

// JSONExporter writes a session as one indented JSON document with a summary
// of questions, answers and feedback
type JSONExporter struct {
	// Compact disables indentation
	Compact bool
}

func (e *JSONExporter) Export(session *internal.SessionExport, w io.Writer) error {
	enc := json.NewEncoder(w)
	if !e.Compact {
		enc.SetIndent("", "  ")
	}
	enc.SetEscapeHTML(false)
	return enc.Encode(newDocument(session))
}

func (e *JSONExporter) Extension() string {
	return "json"
}
