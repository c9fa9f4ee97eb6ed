package internal

import (
	"fmt"
	"time"
)

// testBaseTime anchors generated fixtures
var testBaseTime = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

// CreateTestTurns generates n question/answer turns one minute apart
func CreateTestTurns(n int) []Turn {
	turns := make([]Turn, 0, n)
	for i := 0; i < n; i++ {
		turns = append(turns, Turn{
			Timestamp:   testBaseTime.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
			UserInput:   fmt.Sprintf("Question %d", i+1),
			BotResponse: fmt.Sprintf("Answer %d", i+1),
			StateLabel:  "curious",
			Concepts:    []string{"awareness"},
		})
	}
	return turns
}

// CreateTestSessionExport creates a session with n turns for testing
func CreateTestSessionExport(id string, n int) *SessionExport {
	messages := HistoryToMessages(id, CreateTestTurns(n))
	updated := testBaseTime
	if len(messages) > 0 {
		updated = messages[len(messages)-1].Timestamp
	}
	return &SessionExport{
		Session: Session{
			ID:         id,
			Title:      BuildChatTitle(messages),
			Preview:    BuildChatPreview(messages),
			CreatedAt:  testBaseTime,
			UpdatedAt:  updated,
			TurnsCount: countUserMessages(messages),
		},
		Messages: messages,
	}
}
