package cmd

import (
	"testing"

	"github.com/iksnae/chat-session/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedbackCommand(t *testing.T) {
	env := newCLIEnv(t)
	seedConversation(env, "sess-fb", "first", "second")

	out, err := env.run(t, "feedback", "sess-fb-b-1", "Positive", "--rating", "5", "--comment", "  Spot on ")
	require.NoError(t, err)
	assert.Contains(t, out, "Recorded positive feedback on sess-fb-b-1")

	got := env.svc.Feedback()
	require.Len(t, got, 1)
	assert.Equal(t, "sess-fb", got[0]["user_id"])
	assert.Equal(t, float64(1), got[0]["turn_index"])
	assert.Equal(t, "positive", got[0]["feedback"])
	assert.Equal(t, float64(5), got[0]["rating"])
	assert.Equal(t, "Spot on", got[0]["comment"])
}

func TestFeedbackCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want error
	}{
		{name: "unknown kind", args: []string{"feedback", "sess-fb-b-0", "great"}},
		{name: "rating out of range", args: []string{"feedback", "sess-fb-b-0", "neutral", "--rating", "9"}},
		{name: "session not derivable", args: []string{"feedback", "m-123", "positive"}},
		{name: "user message", args: []string{"feedback", "--session", "sess-fb", "sess-fb-u-0", "positive"}},
		{name: "missing message", args: []string{"feedback", "sess-fb-b-7", "positive"}, want: internal.ErrMessageNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newCLIEnv(t)
			seedConversation(env, "sess-fb", "only")

			_, err := env.run(t, tt.args...)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
			assert.Empty(t, env.svc.Feedback())
		})
	}
}

func TestSessionFromMessageID(t *testing.T) {
	tests := map[string]string{
		"sess-1-b-0":       "sess-1",
		"a-b-c-b-12":       "a-b-c",
		"sess-1-u-0":       "",
		"-b-1":             "",
		"plain-message-id": "",
	}
	for id, want := range tests {
		assert.Equal(t, want, sessionFromMessageID(id), id)
	}
}
