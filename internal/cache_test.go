package internal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iksnae/chat-session/testutil"
)

func TestNewCacheManager(t *testing.T) {
	cacheDir := testutil.CreateTempDir(t)
	cm := NewCacheManager(cacheDir)
	if cm.GetCacheDir() != cacheDir {
		t.Errorf("NewCacheManager() cacheDir = %q, want %q", cm.GetCacheDir(), cacheDir)
	}
}

func TestCacheManager_EnsureCacheDir(t *testing.T) {
	cacheDir := filepath.Join(testutil.CreateTempDir(t), "nested", "cache")
	cm := NewCacheManager(cacheDir)

	if err := cm.EnsureCacheDir(); err != nil {
		t.Errorf("EnsureCacheDir() error = %v", err)
	}
	if _, err := os.Stat(cacheDir); os.IsNotExist(err) {
		t.Error("Cache directory was not created")
	}
}

func TestCacheManager_GetIndexPath(t *testing.T) {
	cacheDir := testutil.CreateTempDir(t)
	cm := NewCacheManager(cacheDir)

	tests := []struct {
		userID string
		want   string
	}{
		{userID: "user_123", want: "sessions_user_123.yaml"},
		{userID: "../etc/passwd", want: "sessions__etc_passwd.yaml"},
		{userID: "a b", want: "sessions_a_b.yaml"},
	}
	for _, tt := range tests {
		if got := cm.GetIndexPath(tt.userID); got != filepath.Join(cacheDir, tt.want) {
			t.Errorf("GetIndexPath(%q) = %q, want %q", tt.userID, got, tt.want)
		}
	}
}

func TestCacheManager_SnapshotRoundTrip(t *testing.T) {
	cm := NewCacheManager(testutil.CreateTempDir(t))
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	sessions := []Session{
		{ID: "s2", Title: "Second", Preview: "latest", CreatedAt: now.Add(-time.Hour), UpdatedAt: now, TurnsCount: 3},
		{ID: "s1", Title: DefaultChatTitle, Preview: EmptyChatPreview, CreatedAt: now.Add(-2 * time.Hour), UpdatedAt: now.Add(-2 * time.Hour)},
	}

	if err := cm.SaveSnapshot("user_1", sessions); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}

	index, err := cm.LoadSnapshot("user_1")
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if index.Metadata.UserID != "user_1" || index.Metadata.CacheVersion != CacheVersion {
		t.Errorf("metadata = %+v", index.Metadata)
	}

	got := index.ToSessions()
	if len(got) != 2 {
		t.Fatalf("ToSessions() returned %d sessions, want 2", len(got))
	}
	if got[0].ID != "s2" || got[1].ID != "s1" {
		t.Errorf("order = %s, %s; want s2, s1", got[0].ID, got[1].ID)
	}
	if !got[0].UpdatedAt.Equal(now) || got[0].TurnsCount != 3 || got[0].Preview != "latest" {
		t.Errorf("session fields not preserved: %+v", got[0])
	}

	if _, err := cm.LoadSnapshot("someone_else"); err == nil {
		t.Error("LoadSnapshot() for an unknown user should fail")
	}
}

func TestCacheManager_LoadSnapshotRejectsOldVersion(t *testing.T) {
	cm := NewCacheManager(testutil.CreateTempDir(t))
	data := []byte("sessions: []\nmetadata:\n  user_id: u\n  cache_version: \"0.1\"\n")
	testutil.WriteFile(t, cm.GetCacheDir(), filepath.Base(cm.GetIndexPath("u")), data)

	if _, err := cm.LoadSnapshot("u"); err == nil {
		t.Error("LoadSnapshot() should reject an unsupported cache version")
	}
}

func TestCacheManager_ClearCache(t *testing.T) {
	cm := NewCacheManager(testutil.CreateTempDir(t))
	if err := cm.ClearCache("nobody"); err != nil {
		t.Errorf("ClearCache() on a missing snapshot error = %v", err)
	}

	if err := cm.SaveSnapshot("u", []Session{{ID: "s1"}}); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	if err := cm.ClearCache("u"); err != nil {
		t.Fatalf("ClearCache() error = %v", err)
	}
	if _, err := os.Stat(cm.GetIndexPath("u")); !os.IsNotExist(err) {
		t.Error("snapshot file should be removed")
	}
}
