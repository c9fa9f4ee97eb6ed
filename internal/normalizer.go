package internal

import "fmt"

// HistoryToMessages expands remote turns into transcript messages.
// Each turn yields a user message followed by an assistant message with
// deterministic ids, so repeated calls produce identical output.
func HistoryToMessages(sessionID string, turns []Turn) []Message {
	messages := make([]Message, 0, len(turns)*2)

	for i, turn := range turns {
		ts := parseTimestamp(turn.Timestamp)

		messages = append(messages, Message{
			ID:        userMessageID(sessionID, i),
			Role:      RoleUser,
			Content:   turn.UserInput,
			Timestamp: ts,
		})

		messages = append(messages, Message{
			ID:         botMessageID(sessionID, i),
			Role:       RoleAssistant,
			Content:    turn.BotResponse,
			Timestamp:  ts,
			StateLabel: turn.StateLabel,
			Concepts:   copyStrings(turn.Concepts),
			Feedback:   turnFeedback(turn),
		})
	}

	return messages
}

func userMessageID(sessionID string, index int) string {
	return fmt.Sprintf("%s-u-%d", sessionID, index)
}

func botMessageID(sessionID string, index int) string {
	return fmt.Sprintf("%s-b-%d", sessionID, index)
}

// turnFeedback carries stored feedback onto the reconciled assistant message
func turnFeedback(turn Turn) *Feedback {
	kind, err := ParseFeedbackKind(turn.UserFeedback)
	if err != nil {
		return nil
	}
	fb := &Feedback{Kind: kind}
	if turn.UserRating != nil {
		r := *turn.UserRating
		fb.Rating = &r
	}
	return fb
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
