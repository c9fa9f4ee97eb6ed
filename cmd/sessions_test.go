package cmd

import (
	"testing"
	"time"

	"github.com/iksnae/chat-session/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCommand(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "new", "Evening", "reflection")
	require.NoError(t, err)
	assert.Contains(t, out, `Created "Evening reflection"`)
	assert.Equal(t, []string{"sess-0001"}, env.svc.SessionIDs(testUserID))
}

func TestDeleteCommand(t *testing.T) {
	env := newCLIEnv(t)
	now := time.Now()
	env.svc.AddSession(testUserID, testutil.NewSessionFixture("keep-me", "Keep", now))
	env.svc.AddSession(testUserID, testutil.NewSessionFixture("drop-me", "Drop", now.Add(-time.Hour)))

	out, err := env.run(t, "delete", "drop")
	require.NoError(t, err)
	assert.Contains(t, out, `Deleted "Drop" (drop-me)`)
	assert.Equal(t, []string{"keep-me"}, env.svc.SessionIDs(testUserID))

	_, err = env.run(t, "delete", "drop")
	assert.Error(t, err)
}

func TestDeleteCommand_LastSessionLeavesReplacement(t *testing.T) {
	env := newCLIEnv(t)
	env.svc.AddSession(testUserID, testutil.NewSessionFixture("only", "Only", time.Now()))

	_, err := env.run(t, "delete", "only")
	require.NoError(t, err)
	assert.Equal(t, []string{"sess-0001"}, env.svc.SessionIDs(testUserID))
}

func TestDeleteCommand_ServiceFailure(t *testing.T) {
	env := newCLIEnv(t)
	env.svc.AddSession(testUserID, testutil.NewSessionFixture("locked", "Locked", time.Now()))
	env.svc.AddSession(testUserID, testutil.NewSessionFixture("other", "Other", time.Now().Add(-time.Hour)))
	env.svc.Fail("delete", 500, "Session is locked")

	_, err := env.run(t, "delete", "locked")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Session is locked")
	assert.ElementsMatch(t, []string{"locked", "other"}, env.svc.SessionIDs(testUserID))
}

func TestDeleteAllCommand(t *testing.T) {
	env := newCLIEnv(t)
	now := time.Now()
	for _, id := range []string{"a1", "b2", "c3"} {
		env.svc.AddSession(testUserID, testutil.NewSessionFixture(id, id, now))
	}

	_, err := env.run(t, "delete-all")
	assert.ErrorContains(t, err, "--yes")
	assert.Len(t, env.svc.SessionIDs(testUserID), 3)

	out, err := env.run(t, "delete-all", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 3 session(s)")
	assert.Equal(t, []string{"sess-0001"}, env.svc.SessionIDs(testUserID))
}

func TestClearCommand(t *testing.T) {
	env := newCLIEnv(t)
	seedConversation(env, "sess-clear", "Something to forget")

	out, err := env.run(t, "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared sess-clear, continue in sess-0001")
	assert.Equal(t, []string{"sess-0001"}, env.svc.SessionIDs(testUserID))
	assert.Empty(t, env.svc.Turns("sess-clear"))
}
