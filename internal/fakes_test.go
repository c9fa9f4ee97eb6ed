package internal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var fakeEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func record(id string, lastActive time.Time) SessionRecord {
	return SessionRecord{
		SessionID:  id,
		CreatedAt:  lastActive.Add(-time.Hour).Format(time.RFC3339Nano),
		LastActive: lastActive.Format(time.RFC3339Nano),
	}
}

// fakeStore is an in-memory SessionStore that records call order
type fakeStore struct {
	mu        sync.Mutex
	records   []SessionRecord
	nextID    int
	calls     []string
	listErr   error
	createErr error
	deleteErr map[string]error
}

func newFakeStore(records ...SessionRecord) *fakeStore {
	return &fakeStore{records: records, deleteErr: make(map[string]error)}
}

func (f *fakeStore) ListSessions(ctx context.Context, userID string, limit int) ([]SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "list")
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]SessionRecord(nil), f.records...), nil
}

func (f *fakeStore) CreateSession(ctx context.Context, userID, title string) (*SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "create")
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	rec := record(fmt.Sprintf("new-%d", f.nextID), fakeEpoch.Add(time.Duration(f.nextID)*time.Hour))
	rec.Title = title
	f.records = append(f.records, rec)
	return &rec, nil
}

func (f *fakeStore) DeleteSession(ctx context.Context, userID, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "delete:"+sessionID)
	if err := f.deleteErr[sessionID]; err != nil {
		return err
	}
	for i, rec := range f.records {
		if rec.SessionID == sessionID {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

func (f *fakeStore) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeAnswers is an AnswerService driven by a function
type fakeAnswers struct {
	mu       sync.Mutex
	requests []AskRequest
	fn       func(ctx context.Context, req AskRequest) (*Answer, error)
}

func (f *fakeAnswers) Ask(ctx context.Context, req AskRequest) (*Answer, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	fn := f.fn
	f.mu.Unlock()
	if fn == nil {
		return &Answer{Status: "success", Answer: "Answer to: " + req.Query}, nil
	}
	return fn(ctx, req)
}

func (f *fakeAnswers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// gatedAnswers blocks each Ask until release is closed
type gatedAnswers struct {
	started chan string
	release chan struct{}
}

func newGatedAnswers() *gatedAnswers {
	return &gatedAnswers{started: make(chan string, 8), release: make(chan struct{})}
}

func (g *gatedAnswers) ask(ctx context.Context, req AskRequest) (*Answer, error) {
	g.started <- req.SessionID
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &Answer{
		Status:        "success",
		Answer:        "late answer for " + req.SessionID,
		StateAnalysis: &StateAnalysis{PrimaryState: "curious", Confidence: 0.9},
	}, nil
}

// fakeHistory is an in-memory HistoryStore
type fakeHistory struct {
	mu    sync.Mutex
	turns map[string][]Turn
	errs  map[string]error
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{turns: make(map[string][]Turn), errs: make(map[string]error)}
}

func (f *fakeHistory) FetchHistory(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[sessionID]; err != nil {
		return nil, err
	}
	turns := f.turns[sessionID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return append([]Turn(nil), turns...), nil
}

// fakeFeedback records feedback requests
type fakeFeedback struct {
	mu       sync.Mutex
	requests []FeedbackRequest
	err      error
}

func (f *fakeFeedback) SubmitFeedback(ctx context.Context, req FeedbackRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.err
}

// stubRecycler returns a fixed session from Recreate
type stubRecycler struct {
	created  Session
	err      error
	recycled []string
}

func (s *stubRecycler) Recreate(ctx context.Context, sessionID string) (Session, error) {
	s.recycled = append(s.recycled, sessionID)
	return s.created, s.err
}
