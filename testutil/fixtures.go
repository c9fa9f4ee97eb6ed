package testutil

import "time"

// SessionFixture is the session store's wire shape
type SessionFixture struct {
	SessionID       string `json:"session_id"`
	UserID          string `json:"user_id"`
	CreatedAt       string `json:"created_at"`
	LastActive      string `json:"last_active"`
	Status          string `json:"status"`
	Title           string `json:"title"`
	TurnsCount      int    `json:"turns_count"`
	LastUserInput   string `json:"last_user_input,omitempty"`
	LastBotResponse string `json:"last_bot_response,omitempty"`
}

// TurnFixture is the history store's wire shape
type TurnFixture struct {
	Timestamp    string   `json:"timestamp"`
	UserInput    string   `json:"user_input"`
	BotResponse  string   `json:"bot_response"`
	UserState    string   `json:"user_state,omitempty"`
	Concepts     []string `json:"concepts"`
	UserFeedback string   `json:"user_feedback,omitempty"`
	UserRating   *int     `json:"user_rating,omitempty"`
}

// NewSessionFixture builds a session last active at ts
func NewSessionFixture(id, title string, ts time.Time) SessionFixture {
	stamp := ts.UTC().Format(time.RFC3339Nano)
	return SessionFixture{
		SessionID:  id,
		CreatedAt:  stamp,
		LastActive: stamp,
		Status:     "active",
		Title:      title,
	}
}

// NewTurnFixture builds a history turn recorded at ts
func NewTurnFixture(user, bot string, ts time.Time) TurnFixture {
	return TurnFixture{
		Timestamp:   ts.UTC().Format(time.RFC3339Nano),
		UserInput:   user,
		BotResponse: bot,
		UserState:   "curious",
		Concepts:    []string{"awareness"},
	}
}

// AnswerFixture is a complete answer-generation response
func AnswerFixture(answer string) map[string]interface{} {
	return map[string]interface{}{
		"status": "success",
		"answer": answer,
		"state_analysis": map[string]interface{}{
			"primary_state":   "curious",
			"confidence":      0.82,
			"emotional_tone":  "calm",
			"recommendations": []string{"keep exploring"},
		},
		"path_recommendation": map[string]interface{}{
			"current_state":        "curious",
			"target_state":         "integrated",
			"key_focus":            "attention",
			"steps_count":          3,
			"total_duration_weeks": 6,
			"first_step": map[string]interface{}{
				"step_number":    1,
				"title":          "Notice",
				"duration_weeks": 2,
				"practices":      []string{"daily pause"},
			},
		},
		"feedback_prompt": "Was this helpful?",
		"concepts":        []string{"awareness"},
		"sources": []map[string]interface{}{
			{
				"block_id":     "b1",
				"title":        "Lecture 1",
				"youtube_link": "https://youtu.be/abc",
				"start":        "1:05",
				"end":          125,
			},
		},
		"processing_time_seconds": 0.42,
	}
}
