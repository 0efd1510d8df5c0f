package services

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inspectsync/server/internal/models"
)

func setupBlobStore(t *testing.T) *BlobStore {
	t.Helper()
	store, err := NewBlobStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestNewBlobStore(t *testing.T) {
	t.Run("creates the base directory", func(t *testing.T) {
		base := t.TempDir() + "/nested/blobs"
		_, err := NewBlobStore(base)
		require.NoError(t, err)

		info, err := os.Stat(base)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("rejects empty base path", func(t *testing.T) {
		_, err := NewBlobStore("  ")
		assert.Error(t, err)
	})
}

func TestBlobStore_PathFor(t *testing.T) {
	store := setupBlobStore(t)
	at := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)

	t.Run("derives a deterministic path", func(t *testing.T) {
		path := store.PathFor("insp-1", "q1", at, 3, ".jpg")
		assert.Equal(t, fmt.Sprintf("insp-1/q1/%d_03.jpg", at.Unix()), path)
	})

	t.Run("lowercases the extension and defaults to jpg", func(t *testing.T) {
		assert.True(t, strings.HasSuffix(store.PathFor("insp-1", "q1", at, 0, ".HEIC"), ".heic"))
		assert.True(t, strings.HasSuffix(store.PathFor("insp-1", "q1", at, 0, ""), ".jpg"))
	})

	t.Run("sanitizes hostile id parts", func(t *testing.T) {
		path := store.PathFor("../../etc", "q one", at, 0, ".jpg")
		assert.NotContains(t, path, "..")
		assert.NotContains(t, path, " ")
	})
}

func TestBlobStore_StoreAndDelete(t *testing.T) {
	t.Run("store then exists and full path", func(t *testing.T) {
		store := setupBlobStore(t)

		require.NoError(t, store.Store(bytes.NewReader([]byte("payload")), "insp-1/q1/1_00.jpg"))
		assert.True(t, store.Exists("insp-1/q1/1_00.jpg"))

		fullPath, err := store.FullPath("insp-1/q1/1_00.jpg")
		require.NoError(t, err)
		data, err := os.ReadFile(fullPath)
		require.NoError(t, err)
		assert.Equal(t, []byte("payload"), data)
	})

	t.Run("refuses to overwrite an existing blob", func(t *testing.T) {
		store := setupBlobStore(t)

		require.NoError(t, store.Store(bytes.NewReader([]byte("first")), "insp-1/q1/1_00.jpg"))
		err := store.Store(bytes.NewReader([]byte("second")), "insp-1/q1/1_00.jpg")
		assert.Error(t, err)
	})

	t.Run("delete reports whether the blob was there", func(t *testing.T) {
		store := setupBlobStore(t)

		require.NoError(t, store.Store(bytes.NewReader([]byte("payload")), "insp-1/q1/1_00.jpg"))
		assert.True(t, store.Delete("insp-1/q1/1_00.jpg"))
		assert.False(t, store.Exists("insp-1/q1/1_00.jpg"))
		assert.False(t, store.Delete("insp-1/q1/1_00.jpg"))
		assert.False(t, store.Delete(""))
	})
}

func TestBlobStore_PathTraversal(t *testing.T) {
	store := setupBlobStore(t)

	t.Run("full path rejects escapes", func(t *testing.T) {
		_, err := store.FullPath("../../../etc/passwd")
		assert.ErrorIs(t, err, models.ErrPathTraversal)
	})

	t.Run("store rejects escapes", func(t *testing.T) {
		err := store.Store(bytes.NewReader([]byte("x")), "../outside.jpg")
		assert.ErrorIs(t, err, models.ErrPathTraversal)
	})

	t.Run("empty stored path", func(t *testing.T) {
		_, err := store.FullPath("")
		assert.Error(t, err)
		assert.False(t, store.Exists(""))
	})
}
