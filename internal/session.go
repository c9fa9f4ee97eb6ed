package internal

import "time"

// Session represents one conversation thread in the user's directory
type Session struct {
	ID         string    `json:"id" yaml:"id"`
	Title      string    `json:"title" yaml:"title"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" yaml:"updated_at"`
	TurnsCount int       `json:"turns_count" yaml:"turns_count"`
	Preview    string    `json:"preview" yaml:"preview"`
}

// GroupKey names a recency bucket
type GroupKey string

const (
	GroupToday     GroupKey = "today"
	GroupYesterday GroupKey = "yesterday"
	GroupWeek      GroupKey = "week"
	GroupOlder     GroupKey = "older"
)

// groupOrder is the display order of recency buckets
var groupOrder = []GroupKey{GroupToday, GroupYesterday, GroupWeek, GroupOlder}

// Label returns a human-readable bucket heading
func (k GroupKey) Label() string {
	switch k {
	case GroupToday:
		return "Today"
	case GroupYesterday:
		return "Yesterday"
	case GroupWeek:
		return "Previous 7 days"
	default:
		return "Older"
	}
}

// SessionGroup is a derived bucket of sessions. It is recomputed on every read.
type SessionGroup struct {
	Key      GroupKey  `json:"key"`
	Sessions []Session `json:"sessions"`
}

// SessionRecord is the session store's wire representation
type SessionRecord struct {
	SessionID       string `json:"session_id"`
	UserID          string `json:"user_id"`
	CreatedAt       string `json:"created_at"`
	LastActive      string `json:"last_active"`
	Status          string `json:"status,omitempty"`
	Title           string `json:"title"`
	TurnsCount      int    `json:"turns_count"`
	LastUserInput   string `json:"last_user_input,omitempty"`
	LastBotResponse string `json:"last_bot_response,omitempty"`
}

// ToSession maps a remote record onto the local Session shape
func (r SessionRecord) ToSession() Session {
	title := r.Title
	if title == "" {
		title = DefaultChatTitle
	}

	created := parseTimestamp(r.CreatedAt)
	updated := parseTimestamp(r.LastActive)
	if updated.IsZero() {
		updated = created
	}

	preview := r.LastUserInput
	if preview == "" {
		preview = r.LastBotResponse
	}
	if preview == "" {
		preview = EmptyChatPreview
	}

	return Session{
		ID:         r.SessionID,
		Title:      title,
		CreatedAt:  created,
		UpdatedAt:  updated,
		TurnsCount: r.TurnsCount,
		Preview:    preview,
	}
}
