package export

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/iksnae/chat-session/internal"
)

// Exporter writes one session with its transcript in a specific format
type Exporter interface {
	Export(session *internal.SessionExport, w io.Writer) error
	Extension() string
}

var exporters = map[string]func() Exporter{
	"jsonl": func() Exporter { return &JSONLExporter{} },
	"md":    func() Exporter { return &MarkdownExporter{} },
	"yaml":  func() Exporter { return &YAMLExporter{} },
	"json":  func() Exporter { return &JSONExporter{} },
}

var aliases = map[string]string{
	"markdown": "md",
	"yml":      "yaml",
}

// Formats lists the accepted format names, aliases excluded
func Formats() []string {
	names := make([]string, 0, len(exporters))
	for name := range exporters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewExporter returns the exporter for a format name or alias
func NewExporter(format string) (Exporter, error) {
	name := strings.ToLower(strings.TrimSpace(format))
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	newFn, ok := exporters[name]
	if !ok {
		return nil, fmt.Errorf("unsupported format: %q (supported: %s)", format, strings.Join(Formats(), ", "))
	}
	return newFn(), nil
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// FileName returns the file name for an exported session. Characters that
// are not safe in file names are replaced.
func FileName(session *internal.SessionExport, e Exporter) string {
	id := unsafeFileChars.ReplaceAllString(session.Session.ID, "_")
	if id == "" {
		id = "unknown"
	}
	return fmt.Sprintf("session_%s.%s", id, e.Extension())
}

// document is the shape shared by the whole-document formats
type document struct {
	Session  internal.Session   `json:"session" yaml:"session"`
	Summary  summary            `json:"summary" yaml:"summary"`
	Messages []internal.Message `json:"messages" yaml:"messages"`
	Error    string             `json:"error,omitempty" yaml:"error,omitempty"`
}

type summary struct {
	Questions int            `json:"questions" yaml:"questions"`
	Answers   int            `json:"answers" yaml:"answers"`
	Feedback  map[string]int `json:"feedback,omitempty" yaml:"feedback,omitempty"`
}

func newDocument(session *internal.SessionExport) document {
	doc := document{
		Session:  session.Session,
		Messages: session.Messages,
		Error:    session.Error,
	}
	if doc.Messages == nil {
		doc.Messages = []internal.Message{}
	}
	for _, msg := range session.Messages {
		if msg.Role == internal.RoleUser {
			doc.Summary.Questions++
			continue
		}
		doc.Summary.Answers++
		if msg.Feedback != nil {
			if doc.Summary.Feedback == nil {
				doc.Summary.Feedback = make(map[string]int)
			}
			doc.Summary.Feedback[string(msg.Feedback.Kind)]++
		}
	}
	return doc
}
