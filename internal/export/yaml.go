package export

import (
	"fmt"
	"io"

	"github.com/iksnae/chat-session/internal"
	"gopkg.in/yaml.v3"
)

// YAMLExporter writes a session as a YAML document, preceded by a comment
// naming the session
type YAMLExporter struct{}

func (e *YAMLExporter) Export(session *internal.SessionExport, w io.Writer) error {
	if _, err := fmt.Fprintf(w, "# chat-session export of %s\n", session.Session.ID); err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(newDocument(session)); err != nil {
		_ = enc.Close()
		return fmt.Errorf("failed to encode session %s: %w", session.Session.ID, err)
	}
	return enc.Close()
}

func (e *YAMLExporter) Extension() string {
	return "yaml"
}
