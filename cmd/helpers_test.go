package cmd

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/iksnae/chat-session/testutil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const testUserID = "user_cli_test"

// cliEnv is a fake service plus a settings file pointing at it
type cliEnv struct {
	svc    *testutil.FakeService
	dir    string
	config string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	svc := testutil.NewFakeService(t)
	dir := testutil.CreateTempDir(t)
	config := testutil.WriteFile(t, dir, "config.yaml", []byte(fmt.Sprintf(
		"api_key: %s\nuser_id: %s\nbase_url: %s\ntimeout: 5s\n",
		testutil.TestAPIKey, testUserID, svc.URL())))
	return &cliEnv{svc: svc, dir: dir, config: config}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCommand(t, nil, append([]string{"--config", e.config}, args...)...)
}

func (e *cliEnv) runWithInput(t *testing.T, input io.Reader, args ...string) (string, error) {
	t.Helper()
	return runCommand(t, input, append([]string{"--config", e.config}, args...)...)
}

// runCommand executes the root command with fresh flag state
func runCommand(t *testing.T, input io.Reader, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	if input == nil {
		input = strings.NewReader("")
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(input)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags restores every flag to its default so tests do not leak into each other
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}
