package internal

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// exportConcurrency bounds parallel history fetches during export
const exportConcurrency = 4

// HistoryStore returns the recorded turns of a session
type HistoryStore interface {
	FetchHistory(ctx context.Context, sessionID string, limit int) ([]Turn, error)
}

// FeedbackService records per-turn feedback remotely
type FeedbackService interface {
	SubmitFeedback(ctx context.Context, req FeedbackRequest) error
}

// Services are the remote collaborators of an Assistant
type Services struct {
	Answers  AnswerService
	Sessions SessionStore
	History  HistoryStore
	Feedback FeedbackService
}

// Assistant coordinates the session directory, the conversation engine and
// local persistence for one user
type Assistant struct {
	dir         *Directory
	engine      *Engine
	history     HistoryStore
	feedback    FeedbackService
	settings    *SettingsStore
	transcripts *TranscriptStore
	turns       int

	// storeMu orders transcript writes after an answer against transcript
	// removal after a delete
	storeMu sync.Mutex
}

// NewAssistant wires an assistant for the user configured in settings.
// transcripts and cache may be nil.
func NewAssistant(svc Services, settings *SettingsStore, transcripts *TranscriptStore, cache *CacheManager) *Assistant {
	st := settings.Get()
	dir := NewDirectory(svc.Sessions, cache, st.UserID)
	turns := st.HistoryTurns
	if turns <= 0 {
		turns = DefaultHistoryTurns
	}
	return &Assistant{
		dir:         dir,
		engine:      NewEngine(svc.Answers, dir, EngineConfig{UserID: st.UserID, Flags: st.EngineFlags()}),
		history:     svc.History,
		feedback:    svc.Feedback,
		settings:    settings,
		transcripts: transcripts,
		turns:       turns,
	}
}

// Directory returns the session directory
func (a *Assistant) Directory() *Directory {
	return a.dir
}

// Engine returns the conversation engine
func (a *Assistant) Engine() *Engine {
	return a.engine
}

// Start lists the user's sessions and activates preferred, or the most
// recently updated session when preferred is empty or unknown
func (a *Assistant) Start(ctx context.Context, preferred string) error {
	if _, err := a.dir.List(ctx); err != nil {
		return err
	}

	target := ""
	if preferred != "" {
		if s, err := a.dir.Resolve(preferred); err == nil {
			target = s.ID
		} else {
			LogWarn("Session %s not found, opening the most recent one", preferred)
		}
	}
	if target == "" {
		first, ok := a.dir.First()
		if !ok {
			return &DirectoryError{Op: "start", Err: ErrSessionNotFound}
		}
		target = first.ID
	}
	return a.Select(ctx, target)
}

// Select makes a session active and loads its history. When history cannot
// be fetched the locally retained transcript is shown and the error returned.
func (a *Assistant) Select(ctx context.Context, sessionID string) error {
	if !a.dir.Has(sessionID) {
		return &DirectoryError{Op: "select", SessionID: sessionID, Err: ErrSessionNotFound}
	}

	turns, err := a.history.FetchHistory(ctx, sessionID, a.turns)
	if err != nil {
		a.engine.SwitchSession(sessionID, a.loadLocal(ctx, sessionID))
		return &DirectoryError{Op: "history", SessionID: sessionID, Err: err}
	}

	messages := HistoryToMessages(sessionID, turns)
	a.engine.SwitchSession(sessionID, messages)
	a.dir.SyncDerivedFields(sessionID, messages)
	a.persist(ctx, sessionID, messages)
	return nil
}

// Send asks a question in the active session. The reply is merged into the
// session that was active when Send was called, even if the user switches
// away before it arrives.
func (a *Assistant) Send(ctx context.Context, query string) error {
	return a.SendIn(ctx, a.engine.ActiveSession(), query)
}

// SendIn asks a question in sessionID, which need not be active
func (a *Assistant) SendIn(ctx context.Context, sessionID, query string) error {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	if !a.settings.Get().HasCredential() {
		return ErrMissingCredential
	}

	err := a.engine.SendQuestion(ctx, sessionID, query)
	if errors.Is(err, ErrInvalidCredential) {
		a.invalidateCredential()
	}

	var verr *ValidationError
	if errors.As(err, &verr) || errors.Is(err, ErrRequestInFlight) {
		return err
	}

	a.storeMu.Lock()
	defer a.storeMu.Unlock()
	if a.dir.Has(sessionID) {
		messages := a.engine.MessagesFor(sessionID)
		a.dir.SyncDerivedFields(sessionID, messages)
		a.persist(ctx, sessionID, messages)
	}
	return err
}

// NewChat creates a session and makes it active
func (a *Assistant) NewChat(ctx context.Context, title string) (Session, error) {
	created, err := a.dir.Create(ctx, title)
	if err != nil {
		return Session{}, err
	}
	a.engine.SwitchSession(created.ID, nil)
	return created, nil
}

// DeleteChat deletes a session. When it was active, the next session becomes active.
func (a *Assistant) DeleteChat(ctx context.Context, sessionID string) error {
	active := a.engine.ActiveSession()
	next, err := a.dir.Delete(ctx, sessionID, active)
	if err != nil {
		return err
	}

	a.engine.Forget(sessionID)
	a.dropLocal(ctx, sessionID)

	if next != active || sessionID == active {
		return a.Select(ctx, next)
	}
	return nil
}

// ClearChat replaces the active session with a fresh empty one
func (a *Assistant) ClearChat(ctx context.Context) (Session, error) {
	sessionID := a.engine.ActiveSession()
	if sessionID == "" {
		return Session{}, &ValidationError{Field: "session", Reason: "no active session"}
	}
	created, err := a.engine.ClearChat(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	a.dropLocal(ctx, sessionID)
	return created, nil
}

// DeleteAll deletes every session and activates the single fresh one left behind
func (a *Assistant) DeleteAll(ctx context.Context) (int, error) {
	previous := a.dir.Sessions()
	created, deleted, err := a.dir.DeleteAll(ctx)
	if created.ID == "" {
		return 0, err
	}

	for _, s := range previous {
		if a.dir.Has(s.ID) {
			continue
		}
		a.engine.Forget(s.ID)
		a.dropLocal(ctx, s.ID)
	}
	a.engine.SwitchSession(created.ID, nil)
	return deleted, err
}

// SubmitFeedback records feedback on an assistant message of the active
// session and forwards it to the feedback service
func (a *Assistant) SubmitFeedback(ctx context.Context, messageID string, kind FeedbackKind, rating *int, comment string) error {
	sessionID := a.engine.ActiveSession()
	messages := a.engine.Messages()

	pos := -1
	for i := range messages {
		if messages[i].ID == messageID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return ErrMessageNotFound
	}
	if messages[pos].Role != RoleAssistant {
		return &ValidationError{Field: "message", Reason: "feedback applies to assistant messages only"}
	}

	if _, err := a.engine.UpdateMessageFeedback(messageID, kind, rating); err != nil {
		return err
	}
	a.persist(ctx, sessionID, a.engine.MessagesFor(sessionID))

	if a.feedback == nil {
		return nil
	}
	err := a.feedback.SubmitFeedback(ctx, FeedbackRequest{
		UserID:    sessionID,
		TurnIndex: turnIndex(messages, pos),
		Feedback:  kind,
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
	})
	if errors.Is(err, ErrInvalidCredential) {
		a.invalidateCredential()
	}
	return err
}

// SessionExport is one session with its transcript, or the reason it has none
type SessionExport struct {
	Session  Session   `json:"session" yaml:"session"`
	Messages []Message `json:"messages" yaml:"messages"`
	Error    string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// ExportBundle is every session of a user with transcripts
type ExportBundle struct {
	UserID     string          `json:"user_id" yaml:"user_id"`
	ExportedAt time.Time       `json:"exported_at" yaml:"exported_at"`
	Sessions   []SessionExport `json:"sessions" yaml:"sessions"`
}

// CollectExport fetches the history of every known session. A session whose
// history cannot be fetched is exported with its error instead of messages.
func (a *Assistant) CollectExport(ctx context.Context) (*ExportBundle, error) {
	sessions := a.dir.Sessions()
	results := make([]SessionExport, len(sessions))

	var g errgroup.Group
	g.SetLimit(exportConcurrency)
	for i, s := range sessions {
		g.Go(func() error {
			turns, err := a.history.FetchHistory(ctx, s.ID, a.turns)
			if err != nil {
				withSession(s.ID).WithError(err).Warn("history unavailable for export")
				results[i] = SessionExport{Session: s, Messages: []Message{}, Error: userMessage(err)}
				return nil
			}
			results[i] = SessionExport{Session: s, Messages: HistoryToMessages(s.ID, turns)}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &ExportBundle{
		UserID:     a.dir.UserID(),
		ExportedAt: time.Now(),
		Sessions:   results,
	}, nil
}

// turnIndex is the zero-based turn of the message at pos
func turnIndex(messages []Message, pos int) int {
	if idx := countUserMessages(messages[:pos]) - 1; idx > 0 {
		return idx
	}
	return 0
}

func (a *Assistant) invalidateCredential() {
	a.settings.ClearCredential()
	if err := a.settings.Save(); err != nil {
		LogWarn("Failed to save settings after clearing the API key: %v", err)
	}
}

func (a *Assistant) persist(ctx context.Context, sessionID string, messages []Message) {
	if a.transcripts == nil || sessionID == "" {
		return
	}
	if err := a.transcripts.SaveTranscript(ctx, sessionID, messages); err != nil {
		withSession(sessionID).WithError(err).Warn("failed to store transcript")
	}
}

func (a *Assistant) loadLocal(ctx context.Context, sessionID string) []Message {
	if a.transcripts == nil {
		return nil
	}
	messages, err := a.transcripts.LoadTranscript(ctx, sessionID)
	if err != nil {
		withSession(sessionID).WithError(err).Warn("failed to load stored transcript")
		return nil
	}
	return messages
}

// dropLocal deletes a stored transcript. Callers remove the session from the
// directory first, so a concurrent SendIn either wrote before this or skips.
func (a *Assistant) dropLocal(ctx context.Context, sessionID string) {
	if a.transcripts == nil {
		return
	}
	a.storeMu.Lock()
	defer a.storeMu.Unlock()
	if err := a.transcripts.DeleteTranscript(ctx, sessionID); err != nil {
		withSession(sessionID).WithError(err).Warn("failed to delete stored transcript")
	}
}
