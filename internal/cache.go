package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// CacheVersion is bumped whenever the snapshot layout changes
const CacheVersion = "1.0"

// CacheManager stores the last successfully listed session directory so it can
// be displayed when the session store is unreachable
type CacheManager struct {
	cacheDir string
}

// CacheMetadata stores metadata about a snapshot
type CacheMetadata struct {
	UserID       string    `yaml:"user_id"`
	CacheVersion string    `yaml:"cache_version"`
	UpdatedAt    time.Time `yaml:"updated_at"`
}

// SessionIndexEntry represents a session entry in the snapshot
type SessionIndexEntry struct {
	ID         string    `yaml:"id"`
	Title      string    `yaml:"title"`
	Preview    string    `yaml:"preview,omitempty"`
	CreatedAt  time.Time `yaml:"created_at"`
	UpdatedAt  time.Time `yaml:"updated_at"`
	TurnsCount int       `yaml:"turns_count"`
}

// SessionIndex is the YAML snapshot of one user's directory
type SessionIndex struct {
	Sessions []SessionIndexEntry `yaml:"sessions"`
	Metadata CacheMetadata       `yaml:"metadata"`
}

// ToSessions converts snapshot entries back to sessions
func (idx *SessionIndex) ToSessions() []Session {
	sessions := make([]Session, 0, len(idx.Sessions))
	for _, e := range idx.Sessions {
		sessions = append(sessions, Session{
			ID:         e.ID,
			Title:      e.Title,
			Preview:    e.Preview,
			CreatedAt:  e.CreatedAt,
			UpdatedAt:  e.UpdatedAt,
			TurnsCount: e.TurnsCount,
		})
	}
	return sessions
}

// NewCacheManager creates a new cache manager
func NewCacheManager(cacheDir string) *CacheManager {
	return &CacheManager{
		cacheDir: cacheDir,
	}
}

// EnsureCacheDir ensures the cache directory exists
func (cm *CacheManager) EnsureCacheDir() error {
	return os.MkdirAll(cm.cacheDir, 0755)
}

// GetCacheDir returns the cache directory path
func (cm *CacheManager) GetCacheDir() string {
	return cm.cacheDir
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// GetIndexPath returns the path to a user's snapshot file
func (cm *CacheManager) GetIndexPath(userID string) string {
	return filepath.Join(cm.cacheDir, fmt.Sprintf("sessions_%s.yaml", unsafeFileChars.ReplaceAllString(userID, "_")))
}

// SaveSnapshot writes the directory snapshot for userID
func (cm *CacheManager) SaveSnapshot(userID string, sessions []Session) error {
	if err := cm.EnsureCacheDir(); err != nil {
		return &StorageError{Path: cm.cacheDir, Op: "write", Err: err}
	}

	index := SessionIndex{
		Sessions: make([]SessionIndexEntry, 0, len(sessions)),
		Metadata: CacheMetadata{
			UserID:       userID,
			CacheVersion: CacheVersion,
			UpdatedAt:    time.Now(),
		},
	}
	for _, s := range sessions {
		index.Sessions = append(index.Sessions, SessionIndexEntry{
			ID:         s.ID,
			Title:      s.Title,
			Preview:    s.Preview,
			CreatedAt:  s.CreatedAt,
			UpdatedAt:  s.UpdatedAt,
			TurnsCount: s.TurnsCount,
		})
	}

	data, err := yaml.Marshal(&index)
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	path := cm.GetIndexPath(userID)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &StorageError{Path: path, Op: "write", Err: err}
	}
	return nil
}

// LoadSnapshot loads the directory snapshot for userID
func (cm *CacheManager) LoadSnapshot(userID string) (*SessionIndex, error) {
	path := cm.GetIndexPath(userID)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &StorageError{Path: path, Op: "read", Err: err}
	}

	var index SessionIndex
	if err := yaml.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to unmarshal index: %w", err)
	}
	if index.Metadata.CacheVersion != CacheVersion {
		return nil, fmt.Errorf("cache version %q is not supported", index.Metadata.CacheVersion)
	}

	return &index, nil
}

// ClearCache removes the snapshot for userID
func (cm *CacheManager) ClearCache(userID string) error {
	if err := os.Remove(cm.GetIndexPath(userID)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
