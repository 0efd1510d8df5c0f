package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inspectsync/server/internal/models"
)

func setupTestStore(t *testing.T) (*SnapshotStore, string) {
	tempDir, err := os.MkdirTemp("", "inspectsync-cache-*")
	require.NoError(t, err)

	store, err := NewSnapshotStore(tempDir)
	require.NoError(t, err)

	return store, tempDir
}

func testSnapshot(facilityID, userID string, ts time.Time) *models.LocalSnapshot {
	return &models.LocalSnapshot{
		FacilityID:   facilityID,
		FacilityName: "Plant A",
		UserID:       userID,
		AccountID:    "acct-1",
		Responses: []*models.Response{
			{QuestionID: "q1", Answer: models.AnswerNo, Flagged: true},
		},
		GeneralNotes: "forklift aisle blocked",
		Timestamp:    ts,
	}
}

func TestSnapshotStore_SetAndGet(t *testing.T) {
	t.Run("round-trips a snapshot", func(t *testing.T) {
		store, tempDir := setupTestStore(t)
		defer os.RemoveAll(tempDir)

		ts := time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC)
		require.NoError(t, store.Set(testSnapshot("fac-1", "user-1", ts)))

		got, err := store.Get("fac-1", "user-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "fac-1", got.FacilityID)
		assert.Equal(t, "forklift aisle blocked", got.GeneralNotes)
		assert.True(t, got.Timestamp.Equal(ts))
		require.Len(t, got.Responses, 1)
		assert.True(t, got.Responses[0].Flagged)
	})

	t.Run("missing key returns nil without error", func(t *testing.T) {
		store, tempDir := setupTestStore(t)
		defer os.RemoveAll(tempDir)

		got, err := store.Get("fac-none", "user-none")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("set replaces the previous snapshot", func(t *testing.T) {
		store, tempDir := setupTestStore(t)
		defer os.RemoveAll(tempDir)

		first := testSnapshot("fac-1", "user-1", time.Now().UTC())
		require.NoError(t, store.Set(first))

		second := testSnapshot("fac-1", "user-1", time.Now().UTC())
		second.GeneralNotes = "resolved"
		require.NoError(t, store.Set(second))

		got, err := store.Get("fac-1", "user-1")
		require.NoError(t, err)
		assert.Equal(t, "resolved", got.GeneralNotes)
	})

	t.Run("keys are isolated per facility and user", func(t *testing.T) {
		store, tempDir := setupTestStore(t)
		defer os.RemoveAll(tempDir)

		require.NoError(t, store.Set(testSnapshot("fac-1", "user-1", time.Now().UTC())))

		got, err := store.Get("fac-1", "user-2")
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = store.Get("fac-2", "user-1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("corrupt file is discarded and treated as absent", func(t *testing.T) {
		store, tempDir := setupTestStore(t)
		defer os.RemoveAll(tempDir)

		require.NoError(t, store.Set(testSnapshot("fac-1", "user-1", time.Now().UTC())))

		entries, err := os.ReadDir(tempDir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		path := filepath.Join(tempDir, entries[0].Name())
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

		got, err := store.Get("fac-1", "user-1")
		require.NoError(t, err)
		assert.Nil(t, got)

		// The bad file is gone
		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))
	})
}

func TestSnapshotStore_Delete(t *testing.T) {
	t.Run("removes an existing snapshot", func(t *testing.T) {
		store, tempDir := setupTestStore(t)
		defer os.RemoveAll(tempDir)

		require.NoError(t, store.Set(testSnapshot("fac-1", "user-1", time.Now().UTC())))
		require.NoError(t, store.Delete("fac-1", "user-1"))

		got, err := store.Get("fac-1", "user-1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("deleting a missing key is not an error", func(t *testing.T) {
		store, tempDir := setupTestStore(t)
		defer os.RemoveAll(tempDir)

		assert.NoError(t, store.Delete("fac-none", "user-none"))
	})
}

func TestSnapshotStore_Age(t *testing.T) {
	t.Run("reports snapshot age", func(t *testing.T) {
		store, tempDir := setupTestStore(t)
		defer os.RemoveAll(tempDir)

		now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
		require.NoError(t, store.Set(testSnapshot("fac-1", "user-1", now.Add(-2*time.Hour))))

		age, ok := store.Age("fac-1", "user-1", now)
		require.True(t, ok)
		assert.Equal(t, 2*time.Hour, age)
	})

	t.Run("missing snapshot reports not found", func(t *testing.T) {
		store, tempDir := setupTestStore(t)
		defer os.RemoveAll(tempDir)

		_, ok := store.Age("fac-none", "user-none", time.Now())
		assert.False(t, ok)
	})
}

func TestLocalSnapshot_Expired(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	t.Run("fresh snapshot is not expired", func(t *testing.T) {
		s := testSnapshot("fac-1", "user-1", now.Add(-23*time.Hour))
		assert.False(t, s.Expired(now))
	})

	t.Run("snapshot at the age limit is expired", func(t *testing.T) {
		s := testSnapshot("fac-1", "user-1", now.Add(-models.SnapshotMaxAge))
		assert.True(t, s.Expired(now))
	})

	t.Run("older snapshot is expired", func(t *testing.T) {
		s := testSnapshot("fac-1", "user-1", now.Add(-25*time.Hour))
		assert.True(t, s.Expired(now))
	})
}
