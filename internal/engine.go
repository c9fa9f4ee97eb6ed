package internal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MaxQueryLength is the longest query, in runes, accepted by SendQuestion
const MaxQueryLength = 4096

// AnswerService generates answers for user queries
type AnswerService interface {
	Ask(ctx context.Context, req AskRequest) (*Answer, error)
}

// Recycler replaces a session with a fresh one
type Recycler interface {
	Recreate(ctx context.Context, sessionID string) (Session, error)
}

// Flags are the per-engine request features
type Flags struct {
	IncludePath           bool
	IncludeFeedbackPrompt bool
}

// EngineConfig configures an Engine
type EngineConfig struct {
	UserID string
	Flags  Flags
}

// conversation is the engine-owned state of one session's transcript
type conversation struct {
	messages []Message
	loading  bool
	err      string
	inFlight bool
	// pending is the optimistic user message of the outstanding question
	pending *Message
}

// pendingRequest is an immutable snapshot bound to one outstanding question.
// Responses are merged using only these identifiers.
type pendingRequest struct {
	RequestID string
	SessionID string
	UserID    string
	Query     string
	Flags     Flags
}

func (p pendingRequest) askRequest() AskRequest {
	return AskRequest{
		Query:                 p.Query,
		UserID:                p.UserID,
		SessionID:             p.SessionID,
		IncludePath:           p.Flags.IncludePath,
		IncludeFeedbackPrompt: p.Flags.IncludeFeedbackPrompt,
	}
}

// Engine owns the transcripts of the active session and of sessions with
// outstanding questions
type Engine struct {
	answers  AnswerService
	recycler Recycler
	userID   string
	flags    Flags

	now   func() time.Time
	newID func() string

	mu            sync.Mutex
	active        string
	conversations map[string]*conversation
}

// NewEngine creates a conversation engine
func NewEngine(answers AnswerService, recycler Recycler, cfg EngineConfig) *Engine {
	return &Engine{
		answers:       answers,
		recycler:      recycler,
		userID:        cfg.UserID,
		flags:         cfg.Flags,
		now:           time.Now,
		newID:         func() string { return uuid.New().String() },
		conversations: make(map[string]*conversation),
	}
}

// conversationLocked returns the record for sessionID, creating it if needed.
// Callers must hold e.mu.
func (e *Engine) conversationLocked(sessionID string) *conversation {
	conv, ok := e.conversations[sessionID]
	if !ok {
		conv = &conversation{}
		e.conversations[sessionID] = conv
	}
	return conv
}

// SendQuestion appends the query as an optimistic user message, asks the
// answer service and appends the assistant reply to the originating session.
// A blank query is a no-op. Transport failures are recorded on the session and
// rendered as an assistant message; they are also returned to the caller.
func (e *Engine) SendQuestion(ctx context.Context, sessionID, query string) error {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	if sessionID == "" {
		return &ValidationError{Field: "session", Reason: "no active session"}
	}
	if n := utf8.RuneCountInString(query); n > MaxQueryLength {
		return &ValidationError{Field: "query", Reason: fmt.Sprintf("%d characters exceeds limit of %d", n, MaxQueryLength)}
	}

	e.mu.Lock()
	conv := e.conversationLocked(sessionID)
	if conv.inFlight {
		e.mu.Unlock()
		return ErrRequestInFlight
	}
	req := pendingRequest{
		RequestID: e.newID(),
		SessionID: sessionID,
		UserID:    e.userID,
		Query:     query,
		Flags:     e.flags,
	}
	question := Message{
		ID:        e.newID(),
		Role:      RoleUser,
		Content:   query,
		Timestamp: e.now(),
	}
	conv.messages = append(conv.messages, question)
	conv.pending = &question
	conv.loading = true
	conv.err = ""
	conv.inFlight = true
	e.mu.Unlock()

	log := withSession(req.SessionID).WithField("request_id", req.RequestID)
	log.Debug("sending question")

	answer, err := e.answers.Ask(ctx, req.askRequest())
	if err == nil && answer == nil {
		err = errors.New("empty response from answer service")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	current, ok := e.conversations[req.SessionID]
	if !ok || current != conv {
		log.Warn("discarding response for a session that no longer exists")
		return err
	}

	current.inFlight = false
	current.loading = false
	current.pending = nil

	if err != nil {
		msg := userMessage(err)
		current.err = msg
		current.messages = append(current.messages, Message{
			ID:        e.newID(),
			Role:      RoleAssistant,
			Content:   "Error: " + msg,
			Timestamp: e.now(),
		})
		log.WithError(err).Warn("question failed")
		return err
	}

	current.messages = append(current.messages, e.answerMessage(answer))
	log.WithFields(logrus.Fields{
		"processing_time": answer.ProcessingTimeSeconds,
		"active":          req.SessionID == e.active,
	}).Debug("answer merged")
	return nil
}

// answerMessage builds the confirmed assistant message for an answer
func (e *Engine) answerMessage(answer *Answer) Message {
	msg := Message{
		ID:                 e.newID(),
		Role:               RoleAssistant,
		Content:            answer.Answer,
		Timestamp:          e.now(),
		Sources:            answer.Sources,
		Concepts:           answer.Concepts,
		ProcessingTime:     floatPtr(answer.ProcessingTimeSeconds),
		PathRecommendation: answer.PathRecommendation,
		FeedbackPrompt:     answer.FeedbackPrompt,
	}
	if answer.StateAnalysis != nil {
		msg.StateLabel = answer.StateAnalysis.PrimaryState
		msg.StateConfidence = floatPtr(answer.StateAnalysis.Confidence)
	}
	return msg
}

// ReplaceMessages replaces the active transcript wholesale and resets the error.
// While a question is outstanding its user message is kept at the end and the
// session stays loading, so the answer still follows its question.
func (e *Engine) ReplaceMessages(messages []Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.replaceLocked(e.active, messages)
}

func (e *Engine) replaceLocked(sessionID string, messages []Message) {
	conv := e.conversationLocked(sessionID)
	conv.messages = copyMessages(messages)
	conv.loading = conv.inFlight
	conv.err = ""
	if conv.inFlight && conv.pending != nil && !containsMessage(conv.messages, conv.pending.ID) {
		conv.messages = append(conv.messages, *conv.pending)
	}
}

// SwitchSession makes sessionID active with the given transcript
func (e *Engine) SwitchSession(sessionID string, messages []Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = sessionID
	e.replaceLocked(sessionID, messages)
}

// ClearChat replaces sessionID with a fresh empty session and makes it active
func (e *Engine) ClearChat(ctx context.Context, sessionID string) (Session, error) {
	if e.recycler == nil {
		return Session{}, errors.New("clear chat: no session recycler configured")
	}
	created, err := e.recycler.Recreate(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.conversations, sessionID)
	e.active = created.ID
	e.replaceLocked(created.ID, nil)
	return created, nil
}

// Forget drops a session's transcript. Late responses for it are discarded.
func (e *Engine) Forget(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.conversations, sessionID)
	if e.active == sessionID {
		e.active = ""
	}
}

// UpdateMessageFeedback records feedback on a message of the active transcript.
// It returns a copy of the updated message.
func (e *Engine) UpdateMessageFeedback(messageID string, kind FeedbackKind, rating *int) (Message, error) {
	if _, err := ParseFeedbackKind(string(kind)); err != nil {
		return Message{}, err
	}
	if rating != nil && (*rating < MinRating || *rating > MaxRating) {
		return Message{}, &ValidationError{Field: "rating", Reason: fmt.Sprintf("%d is outside %d..%d", *rating, MinRating, MaxRating)}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	conv, ok := e.conversations[e.active]
	if !ok {
		return Message{}, ErrMessageNotFound
	}
	for i := range conv.messages {
		if conv.messages[i].ID != messageID {
			continue
		}
		fb := &Feedback{Kind: kind}
		if rating != nil {
			r := *rating
			fb.Rating = &r
		}
		conv.messages[i].Feedback = fb
		return conv.messages[i], nil
	}
	return Message{}, ErrMessageNotFound
}

// ActiveSession returns the id of the active session
func (e *Engine) ActiveSession() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Messages returns a copy of the active transcript
func (e *Engine) Messages() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.messagesLocked(e.active)
}

// MessagesFor returns a copy of a session's retained transcript
func (e *Engine) MessagesFor(sessionID string) []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.messagesLocked(sessionID)
}

func (e *Engine) messagesLocked(sessionID string) []Message {
	conv, ok := e.conversations[sessionID]
	if !ok {
		return []Message{}
	}
	return copyMessages(conv.messages)
}

// Loading reports whether the active session is waiting for an answer
func (e *Engine) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	conv, ok := e.conversations[e.active]
	return ok && conv.loading
}

// Err returns the active session's last send error, or "" when idle
func (e *Engine) Err() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if conv, ok := e.conversations[e.active]; ok {
		return conv.err
	}
	return ""
}

// ClearError resets the active session's error
func (e *Engine) ClearError() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if conv, ok := e.conversations[e.active]; ok {
		conv.err = ""
	}
}

// CurrentState returns the state label of the active transcript's last assistant message
func (e *Engine) CurrentState() string {
	if msg, ok := e.lastAssistant(); ok {
		return msg.StateLabel
	}
	return ""
}

// CurrentStateConfidence returns the confidence of the active transcript's last assistant message
func (e *Engine) CurrentStateConfidence() (float64, bool) {
	msg, ok := e.lastAssistant()
	if !ok || msg.StateConfidence == nil {
		return 0, false
	}
	return *msg.StateConfidence, true
}

func (e *Engine) lastAssistant() (Message, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	conv, ok := e.conversations[e.active]
	if !ok {
		return Message{}, false
	}
	return lastAssistantMessage(conv.messages)
}

func lastAssistantMessage(messages []Message) (Message, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleAssistant {
			return messages[i], true
		}
	}
	return Message{}, false
}

func containsMessage(messages []Message, id string) bool {
	for i := range messages {
		if messages[i].ID == id {
			return true
		}
	}
	return false
}

func copyMessages(in []Message) []Message {
	out := make([]Message, len(in))
	copy(out, in)
	return out
}
