package services

import (
	"context"
	"time"

	"github.com/inspectsync/server/internal/cache"
	"github.com/inspectsync/server/internal/models"
	"github.com/inspectsync/server/internal/observability"
	"github.com/inspectsync/server/internal/repository"
)

// ReconcileResult is the initial working state an editing session starts
// from: which copy was chosen, whether it still needs to reach the store,
// and whether the store itself was reachable.
type ReconcileResult struct {
	Responses      []*models.Response
	GeneralNotes   string
	RemoteID       string
	TeamNumber     string
	ConductedAt    time.Time
	Dirty          bool
	RecoveredLocal bool
	RemoteDegraded bool
}

// Reconciler decides, once per session open, which of {remote, local, fresh}
// becomes the working draft. It never retries the store; a fetch failure
// degrades to local-only state rather than blocking the form.
type Reconciler struct {
	inspections repository.InspectionRepo
	photos      repository.PhotoRepo
	snapshots   *cache.SnapshotStore
	clock       Clock
}

// NewReconciler creates a Reconciler
func NewReconciler(inspections repository.InspectionRepo, photos repository.PhotoRepo, snapshots *cache.SnapshotStore, clock Clock) *Reconciler {
	return &Reconciler{
		inspections: inspections,
		photos:      photos,
		snapshots:   snapshots,
		clock:       clock,
	}
}

// Resolve picks the initial responses for a (facility, user) pair.
//
// Selection order:
//   - both copies present: the strictly newer local snapshot wins but keeps
//     the remote id so the next save updates instead of creating; otherwise
//     the remote copy wins and the stale snapshot is deleted
//   - only one copy present: that copy
//   - neither: one blank response per template question
//
// A snapshot at or past its 24h age limit is deleted and never selected.
func (r *Reconciler) Resolve(ctx context.Context, facilityID, accountID, userID string, template *models.Template) (*ReconcileResult, error) {
	now := r.clock.Now()
	log := observability.WithFields(map[string]interface{}{
		"facility_id": facilityID,
		"user_id":     userID,
	})

	remote, remoteErr := r.inspections.FindDraft(ctx, facilityID, accountID)
	if remoteErr != nil {
		log.Warnf("Draft store unreachable, falling back to local state: %v", remoteErr)
		remote = nil
	}

	local, cacheErr := r.snapshots.Get(facilityID, userID)
	if cacheErr != nil {
		// Cache trouble is never fatal; treat as no snapshot
		log.Warnf("Snapshot read failed: %v", cacheErr)
		local = nil
	}
	if local != nil && local.Expired(now) {
		log.Debug("Discarding expired local snapshot")
		if err := r.snapshots.Delete(facilityID, userID); err != nil {
			log.Warnf("Failed to delete expired snapshot: %v", err)
		}
		local = nil
	}

	result := &ReconcileResult{
		ConductedAt:    now,
		RemoteDegraded: remoteErr != nil,
	}

	switch {
	case remote != nil && local != nil:
		if local.Timestamp.After(remote.UpdatedAt) {
			// Local has edits the store never saw; keep the remote id so
			// the next save updates the existing row
			result.Responses = models.AlignResponses(template, local.Responses)
			result.GeneralNotes = local.GeneralNotes
			result.RemoteID = remote.ID
			result.TeamNumber = remote.TeamNumber
			result.ConductedAt = remote.ConductedAt
			result.Dirty = true
			result.RecoveredLocal = true
			log.Info("Recovered newer local snapshot over stored draft")
		} else {
			result.Responses = models.AlignResponses(template, remote.Responses)
			result.GeneralNotes = remote.GeneralNotes
			result.RemoteID = remote.ID
			result.TeamNumber = remote.TeamNumber
			result.ConductedAt = remote.ConductedAt
			if err := r.snapshots.Delete(facilityID, userID); err != nil {
				log.Warnf("Failed to delete superseded snapshot: %v", err)
			}
		}

	case remote != nil:
		result.Responses = models.AlignResponses(template, remote.Responses)
		result.GeneralNotes = remote.GeneralNotes
		result.RemoteID = remote.ID
		result.TeamNumber = remote.TeamNumber
		result.ConductedAt = remote.ConductedAt

	case local != nil:
		result.Responses = models.AlignResponses(template, local.Responses)
		result.GeneralNotes = local.GeneralNotes
		result.Dirty = true
		result.RecoveredLocal = true
		log.Info("Recovered local snapshot; no stored draft")

	default:
		result.Responses = models.EmptyResponses(template)
	}

	if result.RemoteID != "" {
		r.mergeCatalogPhotos(ctx, result, log)
	}

	return result, nil
}

// mergeCatalogPhotos overlays the attachment catalog onto the selected
// responses. The catalog is authoritative for photos; whatever the chosen
// copy carried is replaced.
func (r *Reconciler) mergeCatalogPhotos(ctx context.Context, result *ReconcileResult, log *observability.Logger) {
	photos, err := r.photos.ListByInspection(ctx, result.RemoteID)
	if err != nil {
		log.Warnf("Failed to load photo catalog: %v", err)
		return
	}

	byQuestion := make(map[string][]*models.Photo)
	for _, p := range photos {
		byQuestion[p.QuestionID] = append(byQuestion[p.QuestionID], p)
	}

	for _, response := range result.Responses {
		response.Photos = byQuestion[response.QuestionID]
		if response.Photos == nil {
			response.Photos = []*models.Photo{}
		}
	}
}
