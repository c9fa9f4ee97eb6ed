package cmd

import (
	"testing"

	"github.com/iksnae/chat-session/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalCommand(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "local")
	require.NoError(t, err)
	assert.Contains(t, out, "No transcripts stored locally")

	seedConversation(env, "sess-kept", "Is this saved?")
	_, err = env.run(t, "show", "sess-kept")
	require.NoError(t, err)

	out, err = env.run(t, "local")
	require.NoError(t, err)
	assert.Contains(t, out, "1 transcript(s) stored locally")
	assert.Contains(t, out, "sess-kept")

	// Served from disk even when the service is gone.
	env.svc.Server.Close()
	out, err = env.run(t, "local", "sess-k")
	require.NoError(t, err)
	assert.Contains(t, out, "Is this saved?")
	assert.Contains(t, out, "Reply to Is this saved?")

	_, err = env.run(t, "local", "nope")
	assert.ErrorIs(t, err, internal.ErrSessionNotFound)
}

func TestMatchID(t *testing.T) {
	ids := []string{"sess-abc", "sess-abd", "other"}

	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr bool
	}{
		{name: "exact", ref: "other", want: "other"},
		{name: "unique prefix", ref: "sess-abc", want: "sess-abc"},
		{name: "short unique prefix", ref: "oth", want: "other"},
		{name: "ambiguous", ref: "sess-ab", wantErr: true},
		{name: "unknown", ref: "missing", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := matchID(ids, tt.ref)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
