package internal

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Role identifies who authored a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// FeedbackKind is the user's verdict on an assistant message
type FeedbackKind string

const (
	FeedbackPositive FeedbackKind = "positive"
	FeedbackNegative FeedbackKind = "negative"
	FeedbackNeutral  FeedbackKind = "neutral"
)

const (
	MinRating = 1
	MaxRating = 5
)

// ParseFeedbackKind validates a feedback kind string
func ParseFeedbackKind(s string) (FeedbackKind, error) {
	switch k := FeedbackKind(strings.ToLower(strings.TrimSpace(s))); k {
	case FeedbackPositive, FeedbackNegative, FeedbackNeutral:
		return k, nil
	default:
		return "", &ValidationError{Field: "feedback", Reason: fmt.Sprintf("unknown kind %q (want positive, negative or neutral)", s)}
	}
}

// Feedback is the user's feedback attached to an assistant message
type Feedback struct {
	Kind   FeedbackKind `json:"kind" yaml:"kind"`
	Rating *int         `json:"rating,omitempty" yaml:"rating,omitempty"`
}

// Message is one entry of a session transcript
type Message struct {
	ID                 string              `json:"id" yaml:"id"`
	Role               Role                `json:"role" yaml:"role"`
	Content            string              `json:"content" yaml:"content"`
	Timestamp          time.Time           `json:"timestamp" yaml:"timestamp"`
	StateLabel         string              `json:"state_label,omitempty" yaml:"state_label,omitempty"`
	StateConfidence    *float64            `json:"state_confidence,omitempty" yaml:"state_confidence,omitempty"`
	Sources            []Source            `json:"sources,omitempty" yaml:"sources,omitempty"`
	Concepts           []string            `json:"concepts,omitempty" yaml:"concepts,omitempty"`
	ProcessingTime     *float64            `json:"processing_time,omitempty" yaml:"processing_time,omitempty"`
	PathRecommendation *PathRecommendation `json:"path_recommendation,omitempty" yaml:"path_recommendation,omitempty"`
	FeedbackPrompt     string              `json:"feedback_prompt,omitempty" yaml:"feedback_prompt,omitempty"`
	Feedback           *Feedback           `json:"feedback,omitempty" yaml:"feedback,omitempty"`
}

// Source is a knowledge-base fragment the answer was grounded on
type Source struct {
	BlockID         string   `json:"block_id" yaml:"block_id"`
	Title           string   `json:"title" yaml:"title"`
	Link            string   `json:"youtube_link,omitempty" yaml:"link,omitempty"`
	Start           Timecode `json:"start,omitempty" yaml:"start,omitempty"`
	End             Timecode `json:"end,omitempty" yaml:"end,omitempty"`
	BlockType       string   `json:"block_type,omitempty" yaml:"block_type,omitempty"`
	ComplexityScore float64  `json:"complexity_score,omitempty" yaml:"complexity_score,omitempty"`
}

// Timecode holds a position that the server sends either as seconds or as a "mm:ss" string
type Timecode string

// UnmarshalJSON accepts both numbers and strings
func (t *Timecode) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Timecode(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("timecode: %w", err)
	}
	*t = Timecode(n.String())
	return nil
}

// Seconds returns the position in seconds when it is numeric or "h:mm:ss"/"mm:ss"
func (t Timecode) Seconds() (int, bool) {
	if t == "" {
		return 0, false
	}
	if f, err := strconv.ParseFloat(string(t), 64); err == nil {
		return int(f), true
	}
	total := 0
	for _, part := range strings.Split(string(t), ":") {
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}

// PathStep is one step of a recommended growth path
type PathStep struct {
	StepNumber    int      `json:"step_number" yaml:"step_number"`
	Title         string   `json:"title" yaml:"title"`
	DurationWeeks int      `json:"duration_weeks" yaml:"duration_weeks"`
	Practices     []string `json:"practices,omitempty" yaml:"practices,omitempty"`
	KeyConcepts   []string `json:"key_concepts,omitempty" yaml:"key_concepts,omitempty"`
}

// PathRecommendation suggests a route from the user's current state
type PathRecommendation struct {
	CurrentState       string    `json:"current_state" yaml:"current_state"`
	TargetState        string    `json:"target_state" yaml:"target_state"`
	KeyFocus           string    `json:"key_focus" yaml:"key_focus"`
	StepsCount         int       `json:"steps_count" yaml:"steps_count"`
	TotalDurationWeeks int       `json:"total_duration_weeks" yaml:"total_duration_weeks"`
	FirstStep          *PathStep `json:"first_step,omitempty" yaml:"first_step,omitempty"`
}

// Turn is the history store's pairwise storage unit
type Turn struct {
	Timestamp    string   `json:"timestamp"`
	UserInput    string   `json:"user_input"`
	BotResponse  string   `json:"bot_response"`
	StateLabel   string   `json:"user_state,omitempty"`
	Concepts     []string `json:"concepts"`
	UserFeedback string   `json:"user_feedback,omitempty"`
	UserRating   *int     `json:"user_rating,omitempty"`
}

// StateAnalysis is the service's classification of the user's state
type StateAnalysis struct {
	PrimaryState    string   `json:"primary_state"`
	Confidence      float64  `json:"confidence"`
	EmotionalTone   string   `json:"emotional_tone"`
	Recommendations []string `json:"recommendations"`
}

// AskRequest is sent to the answer-generation service
type AskRequest struct {
	Query                 string `json:"query"`
	UserID                string `json:"user_id"`
	SessionID             string `json:"session_id"`
	IncludePath           bool   `json:"include_path"`
	IncludeFeedbackPrompt bool   `json:"include_feedback_prompt"`
	Debug                 bool   `json:"debug"`
}

// Answer is the answer-generation service's response
type Answer struct {
	Status                string              `json:"status"`
	Answer                string              `json:"answer"`
	StateAnalysis         *StateAnalysis      `json:"state_analysis"`
	PathRecommendation    *PathRecommendation `json:"path_recommendation,omitempty"`
	FeedbackPrompt        string              `json:"feedback_prompt"`
	Concepts              []string            `json:"concepts"`
	Sources               []Source            `json:"sources"`
	ProcessingTimeSeconds float64             `json:"processing_time_seconds"`
}

// FeedbackRequest is sent to the feedback endpoint
type FeedbackRequest struct {
	UserID    string       `json:"user_id"`
	TurnIndex int          `json:"turn_index"`
	Feedback  FeedbackKind `json:"feedback"`
	Rating    *int         `json:"rating,omitempty"`
	Comment   string       `json:"comment,omitempty"`
}

// HealthStatus is returned by the health endpoint
type HealthStatus struct {
	Status        string          `json:"status"`
	Version       string          `json:"version"`
	Timestamp     string          `json:"timestamp"`
	UptimeSeconds float64         `json:"uptime_seconds"`
	Modules       map[string]bool `json:"modules"`
}

// Stats is returned by the stats endpoint
type Stats struct {
	TotalUsers            int                `json:"total_users"`
	TotalQuestions        int                `json:"total_questions"`
	AverageProcessingTime float64            `json:"average_processing_time"`
	TopStates             map[string]int     `json:"top_states"`
	TopInterests          []string           `json:"top_interests"`
	FeedbackStats         map[string]float64 `json:"feedback_stats"`
}

// parseTimestamp parses the server's ISO8601 timestamps, with or without zone.
// Unparsable input yields the zero time.
func parseTimestamp(ts string) time.Time {
	if ts == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t
		}
	}
	return time.Time{}
}

func floatPtr(f float64) *float64 {
	return &f
}
