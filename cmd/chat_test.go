package cmd

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatCommand_AskAndQuit(t *testing.T) {
	env := newCLIEnv(t)
	seedConversation(env, "sess-chat", "Old question")

	out, err := env.runWithInput(t, strings.NewReader("What is calm?\n/quit\n"), "chat")
	require.NoError(t, err)

	assert.Contains(t, out, "Old question", "the transcript is shown on start")
	assert.Contains(t, out, "Answer to: What is calm?", "outstanding answers are printed before exit")
	assert.Len(t, env.svc.Turns("sess-chat"), 2)
}

func TestChatCommand_SlashCommands(t *testing.T) {
	env := newCLIEnv(t)
	seedConversation(env, "sess-a", "Question in A")
	seedConversation(env, "sess-b", "Question in B")

	script := strings.Join([]string{
		"/help",
		"/list",
		"/switch sess-a",
		"/feedback last neutral 3",
		"/new Fresh start",
		"/bogus",
		"/switch",
		"/quit",
		"never sent",
	}, "\n")

	out, err := env.runWithInput(t, strings.NewReader(script), "chat")
	require.NoError(t, err)

	assert.Contains(t, out, "/feedback <id|last>")
	assert.Contains(t, out, "Found 2 session(s)")
	assert.Contains(t, out, "Reply to Question in A")
	assert.Contains(t, out, "Thanks for the feedback")
	assert.Contains(t, out, `Started "Fresh start"`)
	assert.Contains(t, out, "unknown command /bogus")
	assert.Contains(t, out, "usage: /switch <id>")

	feedback := env.svc.Feedback()
	require.Len(t, feedback, 1)
	assert.Equal(t, "sess-a", feedback[0]["user_id"])
	assert.Equal(t, float64(3), feedback[0]["rating"])
	assert.Empty(t, env.svc.Asks(), "nothing after /quit is sent")
}

func TestChatCommand_DeleteAndClear(t *testing.T) {
	env := newCLIEnv(t)
	seedConversation(env, "sess-old", "Old")
	seedConversation(env, "sess-new", "New")

	out, err := env.runWithInput(t, strings.NewReader("/delete sess-old\n/clear\n/quit\n"), "chat")
	require.NoError(t, err)

	assert.Contains(t, out, "Deleted sess-old")
	assert.Contains(t, out, "Cleared, now in sess-0001")
	assert.Equal(t, []string{"sess-0001"}, env.svc.SessionIDs(testUserID))
}

func TestChatCommand_AnswerLandsInOriginatingSession(t *testing.T) {
	env := newCLIEnv(t)
	seedConversation(env, "sess-other", "Elsewhere")
	seedConversation(env, "sess-first", "Here")
	release := env.svc.HoldAnswers()
	defer release()

	in, feed := io.Pipe()
	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := env.runWithInput(t, in, "chat")
		done <- result{out, err}
	}()

	_, err := io.WriteString(feed, "Slow question\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(env.svc.Asks()) == 1 }, 5*time.Second, 10*time.Millisecond)

	_, err = io.WriteString(feed, "/switch sess-other\n")
	require.NoError(t, err)
	// The scanner only asks for more input once the switch has been handled
	_, err = io.WriteString(feed, "/quit\n")
	require.NoError(t, err)
	release()
	require.NoError(t, feed.Close())

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Contains(t, res.out, `Answer arrived in "Here" (/switch sess-first)`)
	case <-time.After(10 * time.Second):
		t.Fatal("chat did not exit")
	}

	asks := env.svc.Asks()
	require.Len(t, asks, 1)
	assert.Equal(t, "sess-first", asks[0]["session_id"])
	assert.Len(t, env.svc.Turns("sess-first"), 2)
	assert.Len(t, env.svc.Turns("sess-other"), 1)
}
