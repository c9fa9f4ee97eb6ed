package cmd

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iksnae/chat-session/internal"
	"github.com/iksnae/chat-session/testutil"
)

func TestRootCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
		want    string
	}{
		{
			name: "version flag",
			args: []string{"--version"},
			want: "dev",
		},
		{
			name: "help flag",
			args: []string{"--help"},
			want: "chat-session",
		},
		{
			name:    "unknown command",
			args:    []string{"nonexistent-command"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCommand(t, nil, tt.args...)
			if (err != nil) != tt.wantErr {
				t.Errorf("rootCmd.Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.want != "" && !strings.Contains(out, tt.want) {
				t.Errorf("output = %q, want it to contain %q", out, tt.want)
			}
		})
	}
}

func TestNewApp_RequiresKey(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	configPath = filepath.Join(dir, "config.yaml")
	t.Cleanup(func() { configPath = "" })

	_, err := newApp(true)
	if !errors.Is(err, internal.ErrMissingCredential) {
		t.Fatalf("newApp(true) error = %v, want ErrMissingCredential", err)
	}

	a, err := newApp(false)
	if err != nil {
		t.Fatalf("newApp(false) error = %v", err)
	}
	defer a.Close()
	if a.transcripts == nil {
		t.Error("transcript store should open next to the settings file")
	}
}

func TestLoadSettings_UserOverride(t *testing.T) {
	env := newCLIEnv(t)
	configPath, userID = env.config, "user_override_1"
	t.Cleanup(func() { configPath, userID = "", "" })

	settings, err := loadSettings()
	if err != nil {
		t.Fatalf("loadSettings() error = %v", err)
	}
	if got := settings.Get().UserID; got != "user_override_1" {
		t.Errorf("UserID = %q, want user_override_1", got)
	}

	userID = "x"
	if _, err := loadSettings(); err == nil {
		t.Error("loadSettings() should reject an invalid --user")
	}
}

func TestCommandsRequireKey(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	config := filepath.Join(dir, "config.yaml")

	for _, args := range [][]string{
		{"list"},
		{"new"},
		{"ask", "hello"},
		{"show", "abc"},
		{"export"},
		{"stats"},
	} {
		t.Run(args[0], func(t *testing.T) {
			_, err := runCommand(t, nil, append([]string{"--config", config}, args...)...)
			if !errors.Is(err, internal.ErrMissingCredential) {
				t.Errorf("%s error = %v, want ErrMissingCredential", args[0], err)
			}
		})
	}
}
