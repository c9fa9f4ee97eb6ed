package internal

import (
	"sort"
	"strings"
	"time"
)

const (
	// DefaultChatTitle is shown for sessions without a user message
	DefaultChatTitle = "New chat"
	// EmptyChatPreview is shown for sessions without messages
	EmptyChatPreview = "No messages yet"

	titleLimit   = 42
	previewLimit = 44
	ellipsis     = "..."
)

// BuildChatTitle derives a session title from its first user message
func BuildChatTitle(messages []Message) string {
	for _, msg := range messages {
		if msg.Role == RoleUser {
			return compact(msg.Content, titleLimit)
		}
	}
	return DefaultChatTitle
}

// BuildChatPreview derives a session preview from its most recent message
func BuildChatPreview(messages []Message) string {
	if len(messages) == 0 {
		return EmptyChatPreview
	}
	return compact(messages[len(messages)-1].Content, previewLimit)
}

// compact collapses whitespace runs and truncates to limit runes plus an ellipsis
func compact(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + ellipsis
}

// countUserMessages counts user-authored messages, i.e. turns
func countUserMessages(messages []Message) int {
	n := 0
	for _, msg := range messages {
		if msg.Role == RoleUser {
			n++
		}
	}
	return n
}

// SortSessions orders sessions by UpdatedAt descending, ties by CreatedAt descending
func SortSessions(sessions []Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if !sessions[i].UpdatedAt.Equal(sessions[j].UpdatedAt) {
			return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
		}
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
}

// GroupByRecency buckets sessions by calendar day relative to now.
// Buckets come out in today, yesterday, week, older order; empty buckets are omitted.
func GroupByRecency(sessions []Session, now time.Time) []SessionGroup {
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startOfYesterday := startOfToday.AddDate(0, 0, -1)
	weekAgo := now.AddDate(0, 0, -7)

	buckets := make(map[GroupKey][]Session, len(groupOrder))
	for _, s := range sessions {
		updated := s.UpdatedAt.In(now.Location())
		var key GroupKey
		switch {
		case !updated.Before(startOfToday):
			key = GroupToday
		case !updated.Before(startOfYesterday):
			key = GroupYesterday
		case !updated.Before(weekAgo):
			key = GroupWeek
		default:
			key = GroupOlder
		}
		buckets[key] = append(buckets[key], s)
	}

	groups := make([]SessionGroup, 0, len(groupOrder))
	for _, key := range groupOrder {
		if len(buckets[key]) == 0 {
			continue
		}
		groups = append(groups, SessionGroup{Key: key, Sessions: buckets[key]})
	}
	return groups
}
