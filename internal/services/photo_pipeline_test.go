package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inspectsync/server/internal/models"
)

type pipelineFixture struct {
	pipeline *PhotoPipeline
	photos   *memPhotoRepo
	blobs    *BlobStore
	clock    *fakeClock
}

func setupPipeline(t *testing.T) *pipelineFixture {
	t.Helper()

	blobs, err := NewBlobStore(t.TempDir())
	require.NoError(t, err)

	photos := newMemPhotoRepo()
	clock := newFakeClock()

	return &pipelineFixture{
		pipeline: NewPhotoPipeline(photos, blobs, clock, 0),
		photos:   photos,
		blobs:    blobs,
		clock:    clock,
	}
}

// uploadBatch builds n uploads of opaque bytes. Non-image data passes through
// normalization unmodified, which keeps blob sizes predictable.
func uploadBatch(n int) []UploadFile {
	files := make([]UploadFile, 0, n)
	for i := 0; i < n; i++ {
		files = append(files, UploadFile{
			Name: fmt.Sprintf("photo_%02d.jpg", i),
			Data: []byte(fmt.Sprintf("blob-payload-%02d", i)),
		})
	}
	return files
}

// seedPhotos fills a checklist item with n existing catalog rows
func (f *pipelineFixture) seedPhotos(t *testing.T, inspectionID, questionID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		photo, err := models.NewPhoto(inspectionID, questionID, fmt.Sprintf("seed/%s/%02d.jpg", questionID, i), "seed.jpg", 100)
		require.NoError(t, err)
		require.NoError(t, f.photos.Add(context.Background(), photo))
	}
}

func TestPhotoPipeline_Attach(t *testing.T) {
	ctx := context.Background()

	t.Run("attaches a batch and stores blobs", func(t *testing.T) {
		f := setupPipeline(t)

		result, err := f.pipeline.Attach(ctx, "insp-1", "q1", uploadBatch(3))
		require.NoError(t, err)

		assert.Len(t, result.Attached, 3)
		assert.Empty(t, result.Rejected)
		assert.Equal(t, 3, f.photos.count())
		for _, photo := range result.Attached {
			assert.Equal(t, "insp-1", photo.InspectionID)
			assert.Equal(t, "q1", photo.QuestionID)
			assert.True(t, f.blobs.Exists(photo.StoragePath), "blob missing for %s", photo.StoragePath)
		}
	})

	t.Run("overflow beyond capacity is trimmed before any io", func(t *testing.T) {
		f := setupPipeline(t)

		result, err := f.pipeline.Attach(ctx, "insp-1", "q1", uploadBatch(12))
		require.NoError(t, err)

		assert.Len(t, result.Attached, models.MaxPhotosPerResponse)
		require.Len(t, result.Rejected, 2)
		for _, rejected := range result.Rejected {
			assert.Contains(t, rejected.Reason, "photo limit of 10")
		}
		// Only the accepted ten reached the repo and the blob store
		assert.Equal(t, 10, f.photos.addCalls)
		assert.Equal(t, 10, f.photos.count())
	})

	t.Run("full item rejects the whole batch up front", func(t *testing.T) {
		f := setupPipeline(t)
		f.seedPhotos(t, "insp-1", "q1", models.MaxPhotosPerResponse)
		addCallsBefore := f.photos.addCalls

		result, err := f.pipeline.Attach(ctx, "insp-1", "q1", uploadBatch(2))
		assert.ErrorIs(t, err, models.ErrPhotoLimitExceeded)
		assert.Nil(t, result)
		assert.Equal(t, addCallsBefore, f.photos.addCalls)
	})

	t.Run("capacity is per checklist item", func(t *testing.T) {
		f := setupPipeline(t)
		f.seedPhotos(t, "insp-1", "q1", models.MaxPhotosPerResponse)

		result, err := f.pipeline.Attach(ctx, "insp-1", "q2", uploadBatch(1))
		require.NoError(t, err)
		assert.Len(t, result.Attached, 1)
	})

	t.Run("oversized file is rejected, rest of the batch attaches", func(t *testing.T) {
		f := setupPipeline(t)

		files := []UploadFile{
			{Name: "huge.jpg", Data: bytes.Repeat([]byte{0x7f}, defaultMaxPhotoBytes+1)},
			{Name: "fine.jpg", Data: []byte("small enough")},
		}
		result, err := f.pipeline.Attach(ctx, "insp-1", "q1", files)
		require.NoError(t, err)

		assert.Len(t, result.Attached, 1)
		require.Len(t, result.Rejected, 1)
		assert.Equal(t, "huge.jpg", result.Rejected[0].FileName)
		assert.Equal(t, "file exceeds 5MB after processing", result.Rejected[0].Reason)
	})

	t.Run("configured size cap is honored", func(t *testing.T) {
		f := setupPipeline(t)
		small := NewPhotoPipeline(f.photos, f.blobs, f.clock, 1024*1024)

		files := []UploadFile{
			{Name: "over.jpg", Data: bytes.Repeat([]byte{0x03}, 1024*1024+1)},
		}
		result, err := small.Attach(ctx, "insp-1", "q1", files)
		assert.ErrorIs(t, err, models.ErrNoPhotosAttached)
		require.Len(t, result.Rejected, 1)
		assert.Equal(t, "file exceeds 1MB after processing", result.Rejected[0].Reason)
	})

	t.Run("catalog insert failure reclaims the blob", func(t *testing.T) {
		f := setupPipeline(t)
		f.photos.failAdd = errors.New("db unavailable")

		result, err := f.pipeline.Attach(ctx, "insp-1", "q1", uploadBatch(1))
		assert.ErrorIs(t, err, models.ErrNoPhotosAttached)

		require.Len(t, result.Rejected, 1)
		assert.Equal(t, "upload failed", result.Rejected[0].Reason)
		assert.Equal(t, 0, f.photos.count())

		// The orphan blob was deleted
		path := f.blobs.PathFor("insp-1", "q1", f.clock.Now(), 0, ".jpg")
		assert.False(t, f.blobs.Exists(path))
	})

	t.Run("nothing attached surfaces as an error with the rejects", func(t *testing.T) {
		f := setupPipeline(t)

		files := []UploadFile{
			{Name: "huge_a.jpg", Data: bytes.Repeat([]byte{0x01}, defaultMaxPhotoBytes+1)},
			{Name: "huge_b.jpg", Data: bytes.Repeat([]byte{0x02}, defaultMaxPhotoBytes+1)},
		}
		result, err := f.pipeline.Attach(ctx, "insp-1", "q1", files)
		assert.ErrorIs(t, err, models.ErrNoPhotosAttached)
		require.NotNil(t, result)
		assert.Empty(t, result.Attached)
		assert.Len(t, result.Rejected, 2)
	})

	t.Run("unsaved draft cannot take photos", func(t *testing.T) {
		f := setupPipeline(t)

		result, err := f.pipeline.Attach(ctx, "", "q1", uploadBatch(1))
		assert.ErrorIs(t, err, models.ErrDraftNotSaved)
		assert.Nil(t, result)
		assert.Equal(t, 0, f.photos.addCalls)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		f := setupPipeline(t)

		result, err := f.pipeline.Attach(ctx, "insp-1", "q1", nil)
		require.NoError(t, err)
		assert.Empty(t, result.Attached)
		assert.Empty(t, result.Rejected)
		assert.Equal(t, 0, f.photos.addCalls)
	})
}

func TestPhotoPipeline_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("removes catalog row and blob", func(t *testing.T) {
		f := setupPipeline(t)

		result, err := f.pipeline.Attach(ctx, "insp-1", "q1", uploadBatch(1))
		require.NoError(t, err)
		photo := result.Attached[0]

		require.NoError(t, f.pipeline.Delete(ctx, photo.ID))

		assert.Equal(t, 0, f.photos.count())
		assert.False(t, f.blobs.Exists(photo.StoragePath))
	})

	t.Run("missing blob does not fail the delete", func(t *testing.T) {
		f := setupPipeline(t)

		result, err := f.pipeline.Attach(ctx, "insp-1", "q1", uploadBatch(1))
		require.NoError(t, err)
		photo := result.Attached[0]

		// Simulate a blob lost outside the pipeline
		require.True(t, f.blobs.Delete(photo.StoragePath))

		require.NoError(t, f.pipeline.Delete(ctx, photo.ID))
		assert.Equal(t, 0, f.photos.count())
	})

	t.Run("unknown photo", func(t *testing.T) {
		f := setupPipeline(t)

		err := f.pipeline.Delete(ctx, "no-such-photo")
		assert.ErrorIs(t, err, models.ErrPhotoNotFound)
	})
}
