package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

// APIPrefix is the path prefix the fake service is mounted under
const APIPrefix = "/api/v1"

// TestAPIKey is accepted by a FakeService unless APIKey is changed
const TestAPIKey = "test_key_0123456789abcdef"

type failure struct {
	status int
	detail string
}

// FakeService is an in-memory stand-in for the remote answer, session,
// history and feedback services
type FakeService struct {
	Server *httptest.Server

	mu       sync.Mutex
	apiKey   string
	nextID   int
	sessions map[string][]SessionFixture
	history  map[string][]TurnFixture
	asks     []map[string]interface{}
	feedback []map[string]interface{}
	failures map[string]failure
	gate     chan struct{}
	answerFn func(query string) string
}

// NewFakeService starts a fake service that is closed when the test ends
func NewFakeService(t *testing.T) *FakeService {
	t.Helper()
	f := &FakeService{
		apiKey:   TestAPIKey,
		sessions: make(map[string][]SessionFixture),
		history:  make(map[string][]TurnFixture),
		failures: make(map[string]failure),
		answerFn: func(q string) string { return "Answer to: " + q },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /questions/adaptive", f.handleAsk)
	mux.HandleFunc("GET /users/{userId}/sessions", f.handleList)
	mux.HandleFunc("POST /users/{userId}/sessions", f.handleCreate)
	mux.HandleFunc("DELETE /users/{userId}/sessions/{sessionId}", f.handleDelete)
	mux.HandleFunc("GET /users/{sessionId}/history", f.handleHistory)
	mux.HandleFunc("POST /feedback", f.handleFeedback)
	mux.HandleFunc("GET /health", f.handleHealth)
	mux.HandleFunc("GET /stats", f.handleStats)

	f.Server = httptest.NewServer(http.StripPrefix(APIPrefix, mux))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the base URL clients should use
func (f *FakeService) URL() string {
	return f.Server.URL + APIPrefix
}

// SetAPIKey changes the accepted key; an empty key accepts any request
func (f *FakeService) SetAPIKey(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKey = key
}

// Fail makes the next call to op ("ask", "list", "create", "delete",
// "history", "feedback", "health", "stats") fail with status and detail
func (f *FakeService) Fail(op string, status int, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = failure{status: status, detail: detail}
}

// HoldAnswers blocks answer generation until the returned release func is called
func (f *FakeService) HoldAnswers() (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gate = gate
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// AddSession seeds a session for userID
func (f *FakeService) AddSession(userID string, s SessionFixture) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.UserID == "" {
		s.UserID = userID
	}
	f.sessions[userID] = append(f.sessions[userID], s)
}

// AddTurn seeds a history turn for sessionID
func (f *FakeService) AddTurn(sessionID string, turn TurnFixture) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history[sessionID] = append(f.history[sessionID], turn)
}

// SessionIDs returns the ids of userID's sessions in insertion order
func (f *FakeService) SessionIDs(userID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.sessions[userID]))
	for _, s := range f.sessions[userID] {
		ids = append(ids, s.SessionID)
	}
	return ids
}

// Turns returns the recorded turns of sessionID
func (f *FakeService) Turns(sessionID string) []TurnFixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TurnFixture(nil), f.history[sessionID]...)
}

// Asks returns the decoded bodies of every answer request
func (f *FakeService) Asks() []map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]interface{}(nil), f.asks...)
}

// Feedback returns the decoded bodies of every feedback request
func (f *FakeService) Feedback() []map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]interface{}(nil), f.feedback...)
}

// check applies authentication and injected failures. It reports whether the
// handler should continue.
func (f *FakeService) check(w http.ResponseWriter, r *http.Request, op string, auth bool) bool {
	f.mu.Lock()
	key := f.apiKey
	fail, failing := f.failures[op]
	if failing {
		delete(f.failures, op)
	}
	f.mu.Unlock()

	if auth && key != "" && r.Header.Get("X-API-Key") != key {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid API key"})
		return false
	}
	if failing {
		writeJSON(w, fail.status, map[string]string{"detail": fail.detail})
		return false
	}
	return true
}

func (f *FakeService) handleAsk(w http.ResponseWriter, r *http.Request) {
	if !f.check(w, r, "ask", true) {
		return
	}
	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}

	f.mu.Lock()
	f.asks = append(f.asks, body)
	gate := f.gate
	answerFn := f.answerFn
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	query, _ := body["query"].(string)
	sessionID, _ := body["session_id"].(string)
	userID, _ := body["user_id"].(string)
	answer := answerFn(query)
	now := time.Now().UTC()

	f.mu.Lock()
	f.history[sessionID] = append(f.history[sessionID], TurnFixture{
		Timestamp:   now.Format(time.RFC3339Nano),
		UserInput:   query,
		BotResponse: answer,
		UserState:   "curious",
		Concepts:    []string{"awareness"},
	})
	for i := range f.sessions[userID] {
		s := &f.sessions[userID][i]
		if s.SessionID == sessionID {
			s.LastActive = now.Format(time.RFC3339Nano)
			s.TurnsCount++
			s.LastUserInput = query
			s.LastBotResponse = answer
		}
	}
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, AnswerFixture(answer))
}

func (f *FakeService) handleList(w http.ResponseWriter, r *http.Request) {
	if !f.check(w, r, "list", true) {
		return
	}
	userID := r.PathValue("userId")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	f.mu.Lock()
	sessions := append([]SessionFixture{}, f.sessions[userID]...)
	f.mu.Unlock()

	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":        userID,
		"total_sessions": len(sessions),
		"sessions":       sessions,
	})
}

func (f *FakeService) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !f.check(w, r, "create", true) {
		return
	}
	userID := r.PathValue("userId")
	var body struct {
		Title string `json:"title"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	now := time.Now().UTC().Format(time.RFC3339Nano)
	f.mu.Lock()
	f.nextID++
	s := SessionFixture{
		SessionID:  fmt.Sprintf("sess-%04d", f.nextID),
		UserID:     userID,
		CreatedAt:  now,
		LastActive: now,
		Status:     "active",
		Title:      body.Title,
	}
	f.sessions[userID] = append(f.sessions[userID], s)
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, s)
}

func (f *FakeService) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !f.check(w, r, "delete", true) {
		return
	}
	userID := r.PathValue("userId")
	sessionID := r.PathValue("sessionId")

	f.mu.Lock()
	defer f.mu.Unlock()
	sessions := f.sessions[userID]
	for i, s := range sessions {
		if s.SessionID == sessionID {
			f.sessions[userID] = append(sessions[:i], sessions[i+1:]...)
			delete(f.history, sessionID)
			writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "session_id": sessionID})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Session not found"})
}

func (f *FakeService) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !f.check(w, r, "history", true) {
		return
	}
	sessionID := r.PathValue("sessionId")
	n, _ := strconv.Atoi(r.URL.Query().Get("last_n_turns"))

	f.mu.Lock()
	turns := append([]TurnFixture{}, f.history[sessionID]...)
	f.mu.Unlock()

	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":     sessionID,
		"total_turns": len(turns),
		"turns":       turns,
	})
}

func (f *FakeService) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if !f.check(w, r, "feedback", true) {
		return
	}
	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}
	f.mu.Lock()
	f.feedback = append(f.feedback, body)
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Feedback recorded"})
}

func (f *FakeService) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !f.check(w, r, "health", false) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"version":        "0.6.0",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": 42.5,
		"modules":        map[string]bool{"bot_agent": true, "graph_client": true},
	})
}

func (f *FakeService) handleStats(w http.ResponseWriter, r *http.Request) {
	if !f.check(w, r, "stats", true) {
		return
	}
	f.mu.Lock()
	users := len(f.sessions)
	questions := len(f.asks)
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_users":             users,
		"total_questions":         questions,
		"average_processing_time": 1.25,
		"top_states":              map[string]int{"curious": questions},
		"top_interests":           []string{"awareness"},
		"feedback_stats":          map[string]float64{"positive": 1},
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
