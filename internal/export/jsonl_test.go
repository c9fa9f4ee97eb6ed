package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/iksnae/chat-session/internal"
)

func TestJSONLExporter_Export(t *testing.T) {
	tests := []struct {
		name      string
		session   *internal.SessionExport
		wantLines int
		want      []string
	}{
		{
			name:      "empty session",
			session:   internal.CreateTestSessionExport("test1", 0),
			wantLines: 0,
		},
		{
			name:      "session with messages",
			session:   internal.CreateTestSessionExport("test2", 2),
			wantLines: 4,
			want: []string{
				`"role":"user"`,
				`"role":"assistant"`,
				`"session_id":"test2"`,
				`"timestamp":"2024-03-01T09:30:00Z"`,
			},
		},
		{
			name: "message without timestamp",
			session: &internal.SessionExport{
				Session: internal.Session{ID: "test3"},
				Messages: []internal.Message{
					{ID: "m1", Role: internal.RoleUser, Content: "Hello"},
				},
			},
			wantLines: 1,
			want: []string{
				`"content":"Hello"`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			exporter := &JSONLExporter{}

			if err := exporter.Export(tt.session, &buf); err != nil {
				t.Fatalf("JSONLExporter.Export() error = %v", err)
			}

			output := buf.String()
			if tt.wantLines == 0 {
				if output != "" {
					t.Errorf("Empty session should produce empty output, got: %q", output)
				}
				return
			}

			lines := strings.Split(strings.TrimSpace(output), "\n")
			if len(lines) != tt.wantLines {
				t.Fatalf("got %d lines, want %d", len(lines), tt.wantLines)
			}
			for i, line := range lines {
				var msg map[string]interface{}
				if err := json.Unmarshal([]byte(line), &msg); err != nil {
					t.Errorf("Line %d is not valid JSON: %v", i, err)
				}
				for _, field := range []string{"id", "role", "content"} {
					if _, ok := msg[field]; !ok {
						t.Errorf("Line %d missing %q field", i, field)
					}
				}
			}

			for _, want := range tt.want {
				if !strings.Contains(output, want) {
					t.Errorf("Output should contain %q\nOutput: %s", want, output)
				}
			}
			if tt.name == "message without timestamp" && strings.Contains(output, "timestamp") {
				t.Errorf("zero timestamps should be omitted: %s", output)
			}
		})
	}
}

func TestJSONLExporter_Extension(t *testing.T) {
	exporter := &JSONLExporter{}
	if got := exporter.Extension(); got != "jsonl" {
		t.Errorf("JSONLExporter.Extension() = %v, want jsonl", got)
	}
}
