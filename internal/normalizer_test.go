package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryToMessages(t *testing.T) {
	rating := 5
	turns := []Turn{
		{
			Timestamp:   "2024-03-01T09:30:00Z",
			UserInput:   "What is awareness?",
			BotResponse: "Attention to the present.",
			StateLabel:  "curious",
			Concepts:    []string{"awareness", "attention"},
		},
		{
			Timestamp:    "not a time",
			UserInput:    "Thanks",
			BotResponse:  "You're welcome.",
			UserFeedback: "positive",
			UserRating:   &rating,
		},
	}

	messages := HistoryToMessages("s1", turns)
	require.Len(t, messages, 4)

	assert.Equal(t, "s1-u-0", messages[0].ID)
	assert.Equal(t, RoleUser, messages[0].Role)
	assert.Equal(t, "What is awareness?", messages[0].Content)
	assert.Empty(t, messages[0].StateLabel)

	assert.Equal(t, "s1-b-0", messages[1].ID)
	assert.Equal(t, RoleAssistant, messages[1].Role)
	assert.Equal(t, "curious", messages[1].StateLabel)
	assert.Equal(t, []string{"awareness", "attention"}, messages[1].Concepts)
	assert.True(t, messages[0].Timestamp.Equal(messages[1].Timestamp))
	assert.Nil(t, messages[1].Feedback)

	assert.Equal(t, "s1-u-1", messages[2].ID)
	assert.True(t, messages[2].Timestamp.IsZero())
	require.NotNil(t, messages[3].Feedback)
	assert.Equal(t, FeedbackPositive, messages[3].Feedback.Kind)
	assert.Equal(t, 5, *messages[3].Feedback.Rating)

	turns[0].Concepts[0] = "changed"
	assert.Equal(t, "awareness", messages[1].Concepts[0], "concepts should be copied")
}

func TestHistoryToMessages_Deterministic(t *testing.T) {
	turns := CreateTestTurns(3)
	assert.Equal(t, HistoryToMessages("s1", turns), HistoryToMessages("s1", turns))
}

func TestHistoryToMessages_Empty(t *testing.T) {
	messages := HistoryToMessages("s1", nil)
	assert.NotNil(t, messages)
	assert.Empty(t, messages)
}
