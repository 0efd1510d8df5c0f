package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/inspectsync/server/internal/models"
	"github.com/inspectsync/server/internal/observability"
	"github.com/inspectsync/server/internal/repository"
)

// defaultMaxPhotoBytes caps a file's size after normalization when no
// limit is configured
const defaultMaxPhotoBytes = 5 * 1024 * 1024

// UploadFile is one file of a photo upload batch
type UploadFile struct {
	Name string
	Data []byte
}

// PhotoPipeline normalizes, uploads and catalogs attachments. A photo is
// attached only when both the blob write and the metadata insert succeed;
// a failure at either step skips that file and the batch carries on.
type PhotoPipeline struct {
	photos   repository.PhotoRepo
	blobs    *BlobStore
	clock    Clock
	maxBytes int64
}

// NewPhotoPipeline creates a PhotoPipeline. maxBytes caps a file's size
// after normalization; zero or negative means the 5MB default.
func NewPhotoPipeline(photos repository.PhotoRepo, blobs *BlobStore, clock Clock, maxBytes int64) *PhotoPipeline {
	if maxBytes <= 0 {
		maxBytes = defaultMaxPhotoBytes
	}
	return &PhotoPipeline{photos: photos, blobs: blobs, clock: clock, maxBytes: maxBytes}
}

// Attach processes an upload batch for one checklist item.
//
// The capacity cap is enforced before any blob or catalog I/O: files beyond
// the item's remaining capacity are rejected up front with a capacity
// message, and a full item rejects the whole batch. Per-file normalization
// or upload failures skip the file; only a batch where nothing attached at
// all returns an error.
func (p *PhotoPipeline) Attach(ctx context.Context, inspectionID, questionID string, files []UploadFile) (*models.PhotoBatchResult, error) {
	if inspectionID == "" {
		return nil, models.ErrDraftNotSaved
	}
	if len(files) == 0 {
		return &models.PhotoBatchResult{Attached: []*models.Photo{}, Rejected: []models.RejectedFile{}}, nil
	}

	existing, err := p.photos.CountByQuestion(ctx, inspectionID, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to check photo capacity: %w", err)
	}

	capacity := models.MaxPhotosPerResponse - existing
	if capacity <= 0 {
		return nil, models.ErrPhotoLimitExceeded
	}

	result := &models.PhotoBatchResult{
		Attached: []*models.Photo{},
		Rejected: []models.RejectedFile{},
	}

	accepted := files
	if len(files) > capacity {
		accepted = files[:capacity]
		for _, f := range files[capacity:] {
			result.Rejected = append(result.Rejected, models.RejectedFile{
				FileName: f.Name,
				Reason:   fmt.Sprintf("photo limit of %d per checklist item reached", models.MaxPhotosPerResponse),
			})
		}
	}

	now := p.clock.Now()
	log := observability.WithFields(map[string]interface{}{
		"inspection_id": inspectionID,
		"question_id":   questionID,
	})

	for i, file := range accepted {
		normalized := NormalizePhoto(file.Data, file.Name)
		if int64(len(normalized.Data)) > p.maxBytes {
			result.Rejected = append(result.Rejected, models.RejectedFile{
				FileName: file.Name,
				Reason:   fmt.Sprintf("file exceeds %dMB after processing", p.maxBytes/(1024*1024)),
			})
			continue
		}

		storedPath := p.blobs.PathFor(inspectionID, questionID, now, i, normalized.Ext)
		if err := p.blobs.Store(bytes.NewReader(normalized.Data), storedPath); err != nil {
			log.Warnf("Blob upload failed for %s: %v", file.Name, err)
			result.Rejected = append(result.Rejected, models.RejectedFile{
				FileName: file.Name,
				Reason:   "upload failed",
			})
			continue
		}

		photo, err := models.NewPhoto(inspectionID, questionID, storedPath, file.Name, int64(len(normalized.Data)))
		if err != nil {
			p.blobs.Delete(storedPath)
			result.Rejected = append(result.Rejected, models.RejectedFile{
				FileName: file.Name,
				Reason:   err.Error(),
			})
			continue
		}

		if err := p.photos.Add(ctx, photo); err != nil {
			// The blob without a catalog row is an orphan; reclaim it
			log.Warnf("Photo catalog insert failed for %s: %v", file.Name, err)
			p.blobs.Delete(storedPath)
			result.Rejected = append(result.Rejected, models.RejectedFile{
				FileName: file.Name,
				Reason:   "upload failed",
			})
			continue
		}

		result.Attached = append(result.Attached, photo)
	}

	if len(result.Attached) == 0 {
		return result, models.ErrNoPhotosAttached
	}
	return result, nil
}

// Delete removes an attachment: the catalog row first, so callers can trust
// the removal immediately, then the blob best-effort
func (p *PhotoPipeline) Delete(ctx context.Context, photoID string) error {
	photo, err := p.photos.GetByID(ctx, photoID)
	if err != nil {
		return err
	}
	if photo == nil {
		return models.ErrPhotoNotFound
	}

	deleted, err := p.photos.Delete(ctx, photoID)
	if err != nil {
		return err
	}
	if !deleted {
		return models.ErrPhotoNotFound
	}

	if !p.blobs.Delete(photo.StoragePath) {
		// Metadata is gone, so the photo is gone as far as anyone can
		// tell; a lagging blob is a cleanup concern, not a failure
		observability.Warnf("Blob delete failed or blob missing: %s", photo.StoragePath)
	}

	return nil
}
