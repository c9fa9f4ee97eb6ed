package internal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultListLimit is the number of sessions requested from the session store
const DefaultListLimit = 200

const rollbackTimeout = 10 * time.Second

// SessionStore is the remote directory of sessions
type SessionStore interface {
	ListSessions(ctx context.Context, userID string, limit int) ([]SessionRecord, error)
	CreateSession(ctx context.Context, userID, title string) (*SessionRecord, error)
	DeleteSession(ctx context.Context, userID, sessionID string) error
}

// Directory keeps the ordered, never-empty list of a user's sessions in sync
// with the remote session store
type Directory struct {
	store     SessionStore
	cache     *CacheManager
	userID    string
	listLimit int

	mu       sync.RWMutex
	sessions []Session
}

// NewDirectory creates a session directory for userID. cache may be nil.
func NewDirectory(store SessionStore, cache *CacheManager, userID string) *Directory {
	return &Directory{
		store:     store,
		cache:     cache,
		userID:    userID,
		listLimit: DefaultListLimit,
	}
}

// UserID returns the directory owner
func (d *Directory) UserID() string {
	return d.userID
}

// List fetches the remote directory and replaces the local snapshot.
// On failure the known sessions are left untouched.
func (d *Directory) List(ctx context.Context) ([]Session, error) {
	records, err := d.store.ListSessions(ctx, d.userID, d.listLimit)
	if err != nil {
		return nil, &DirectoryError{Op: "list", Err: err}
	}

	seen := make(map[string]bool, len(records))
	sessions := make([]Session, 0, len(records))
	for _, rec := range records {
		if rec.SessionID == "" || seen[rec.SessionID] {
			continue
		}
		seen[rec.SessionID] = true
		sessions = append(sessions, rec.ToSession())
	}

	if len(sessions) == 0 {
		LogInfo("No sessions for user %s, creating one", d.userID)
		created, err := d.createRemote(ctx, "")
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, created)
	}

	SortSessions(sessions)

	d.mu.Lock()
	d.sessions = sessions
	snapshot := d.snapshotLocked()
	d.mu.Unlock()

	d.saveSnapshot(snapshot)
	return snapshot, nil
}

// Create creates a session remotely and inserts it at the head of the list
func (d *Directory) Create(ctx context.Context, title string) (Session, error) {
	created, err := d.createRemote(ctx, title)
	if err != nil {
		return Session{}, err
	}

	d.mu.Lock()
	d.sessions = append([]Session{created}, d.sessions...)
	d.mu.Unlock()

	return created, nil
}

// Delete removes a session remotely and locally and returns the id the caller
// should make active. Deleting the last session first creates its replacement,
// so the directory is never observed empty.
func (d *Directory) Delete(ctx context.Context, sessionID, activeID string) (string, error) {
	if !d.Has(sessionID) {
		return "", &DirectoryError{Op: "delete", SessionID: sessionID, Err: ErrSessionNotFound}
	}

	var replacement *Session
	if d.Len() == 1 {
		created, err := d.Create(ctx, "")
		if err != nil {
			return "", err
		}
		replacement = &created
	}

	if err := d.store.DeleteSession(ctx, d.userID, sessionID); err != nil {
		if replacement != nil {
			d.rollback(ctx, *replacement)
		}
		return activeID, &DirectoryError{Op: "delete", SessionID: sessionID, Err: err}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeLocked(sessionID)

	switch {
	case replacement != nil:
		return replacement.ID, nil
	case sessionID == activeID:
		return d.sessions[0].ID, nil
	default:
		return activeID, nil
	}
}

// Recreate replaces a session with a fresh one at the head of the list
func (d *Directory) Recreate(ctx context.Context, sessionID string) (Session, error) {
	created, err := d.Create(ctx, "")
	if err != nil {
		return Session{}, err
	}

	if err := d.store.DeleteSession(ctx, d.userID, sessionID); err != nil {
		d.rollback(ctx, created)
		return Session{}, &DirectoryError{Op: "delete", SessionID: sessionID, Err: err}
	}

	d.mu.Lock()
	d.removeLocked(sessionID)
	d.mu.Unlock()

	return created, nil
}

// DeleteAll deletes every session and leaves a single fresh one.
// It returns the fresh session and how many deletions succeeded. When no
// deletion succeeds the fresh session is removed again.
func (d *Directory) DeleteAll(ctx context.Context) (Session, int, error) {
	created, err := d.createRemote(ctx, "")
	if err != nil {
		return Session{}, 0, err
	}

	var errs []error
	deleted := 0
	survivors := []Session{created}
	for _, s := range d.Sessions() {
		if err := d.store.DeleteSession(ctx, d.userID, s.ID); err != nil {
			errs = append(errs, &DirectoryError{Op: "delete", SessionID: s.ID, Err: err})
			survivors = append(survivors, s)
			continue
		}
		deleted++
	}

	if deleted == 0 && len(errs) > 0 && d.rollback(ctx, created) {
		return Session{}, 0, errors.Join(errs...)
	}

	d.mu.Lock()
	d.sessions = survivors
	d.mu.Unlock()

	return created, deleted, errors.Join(errs...)
}

// SyncDerivedFields recomputes a session's title, preview, updatedAt and turn
// count from its transcript and re-sorts the directory. It reports whether the
// session was known.
func (d *Directory) SyncDerivedFields(sessionID string, messages []Message) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := d.indexLocked(sessionID)
	if idx < 0 {
		return false
	}

	s := &d.sessions[idx]
	s.Title = BuildChatTitle(messages)
	s.Preview = BuildChatPreview(messages)
	s.TurnsCount = countUserMessages(messages)
	if len(messages) > 0 {
		last := messages[len(messages)-1].Timestamp
		if last.After(s.UpdatedAt) {
			s.UpdatedAt = last
		}
	}

	SortSessions(d.sessions)
	return true
}

// Groups buckets the current snapshot by recency
func (d *Directory) Groups(now time.Time) []SessionGroup {
	return GroupByRecency(d.Sessions(), now)
}

// Sessions returns a copy of the current ordered snapshot
func (d *Directory) Sessions() []Session {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshotLocked()
}

// Get returns a session by id
func (d *Directory) Get(sessionID string) (Session, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if idx := d.indexLocked(sessionID); idx >= 0 {
		return d.sessions[idx], true
	}
	return Session{}, false
}

// Resolve finds a session by full id or unique id prefix
func (d *Directory) Resolve(ref string) (Session, error) {
	if s, ok := d.Get(ref); ok {
		return s, nil
	}
	var matches []Session
	for _, s := range d.Sessions() {
		if ref != "" && strings.HasPrefix(s.ID, ref) {
			matches = append(matches, s)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, ref)
	default:
		return Session{}, fmt.Errorf("session prefix %q is ambiguous (%d matches)", ref, len(matches))
	}
}

// Has reports whether the directory knows sessionID
func (d *Directory) Has(sessionID string) bool {
	_, ok := d.Get(sessionID)
	return ok
}

// Len returns the number of known sessions
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sessions)
}

// First returns the most recently updated session
func (d *Directory) First() (Session, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if len(d.sessions) == 0 {
		return Session{}, false
	}
	return d.sessions[0], true
}

func (d *Directory) createRemote(ctx context.Context, title string) (Session, error) {
	rec, err := d.store.CreateSession(ctx, d.userID, strings.TrimSpace(title))
	if err != nil {
		return Session{}, &DirectoryError{Op: "create", Err: err}
	}
	if rec == nil || rec.SessionID == "" {
		return Session{}, &DirectoryError{Op: "create", Err: errors.New("session store returned no session id")}
	}
	return rec.ToSession(), nil
}

// rollback removes a replacement session whose purpose was defeated by a
// failed delete. When the store cannot remove it, it stays listed so the local
// list matches the store. The original context may already be done, so the
// rollback gets its own deadline.
func (d *Directory) rollback(ctx context.Context, s Session) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	if err := d.store.DeleteSession(ctx, d.userID, s.ID); err != nil {
		withSession(s.ID).WithError(err).Warn("failed to remove replacement session after a failed delete")
		return false
	}
	d.mu.Lock()
	d.removeLocked(s.ID)
	d.mu.Unlock()
	return true
}

func (d *Directory) indexLocked(sessionID string) int {
	for i := range d.sessions {
		if d.sessions[i].ID == sessionID {
			return i
		}
	}
	return -1
}

func (d *Directory) removeLocked(sessionID string) {
	if idx := d.indexLocked(sessionID); idx >= 0 {
		d.sessions = append(d.sessions[:idx], d.sessions[idx+1:]...)
	}
}

func (d *Directory) snapshotLocked() []Session {
	out := make([]Session, len(d.sessions))
	copy(out, d.sessions)
	return out
}

func (d *Directory) saveSnapshot(sessions []Session) {
	if d.cache == nil {
		return
	}
	if err := d.cache.SaveSnapshot(d.userID, sessions); err != nil {
		LogWarn("Failed to cache session directory: %v", err)
	}
}
