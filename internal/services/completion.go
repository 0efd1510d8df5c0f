package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/inspectsync/server/internal/cache"
	"github.com/inspectsync/server/internal/models"
	"github.com/inspectsync/server/internal/observability"
	"github.com/inspectsync/server/internal/repository"
)

// CompletionListener observes successful completions, e.g. to refresh
// facility-level compliance state or drive a follow-up workflow
type CompletionListener func(result *models.CompleteResult)

// CompletionService gates the one-way draft -> completed transition.
// Validation failures never write anything; the editing surface closes only
// on the success path.
type CompletionService struct {
	inspections repository.InspectionRepo
	signatures  repository.SignatureRepo
	snapshots   *cache.SnapshotStore
	clock       Clock
	hub         *SyncHub
	listeners   []CompletionListener
}

// NewCompletionService creates a CompletionService
func NewCompletionService(
	inspections repository.InspectionRepo,
	signatures repository.SignatureRepo,
	snapshots *cache.SnapshotStore,
	clock Clock,
	hub *SyncHub,
) *CompletionService {
	return &CompletionService{
		inspections: inspections,
		signatures:  signatures,
		snapshots:   snapshots,
		clock:       clock,
		hub:         hub,
	}
}

// OnCompleted registers a listener fired after every successful completion.
// Register listeners before the server starts serving; registration is not
// synchronized with Complete.
func (c *CompletionService) OnCompleted(fn CompletionListener) {
	c.listeners = append(c.listeners, fn)
}

// Complete finalizes a session's draft into an immutable signed report.
//
// The guard sequence: a signature credential must exist; if every required
// question is unanswered the caller must have confirmed auto-fill (all
// required answers become "yes"); a partially answered required set is
// rejected outright. Only then is the terminal record written, the snapshot
// deleted, and completion announced.
func (c *CompletionService) Complete(ctx context.Context, session *Session, req models.CompleteRequest) (*models.CompleteResult, error) {
	if session.Completed() {
		return nil, models.ErrInspectionCompleted
	}

	signature, err := c.signatures.Get(ctx, session.AccountID, session.UserID)
	if err != nil {
		return nil, err
	}
	if !signature.Valid() {
		return nil, models.ErrSignatureRequired
	}

	required := session.Template.RequiredQuestions()
	answered := session.countAnsweredRequired(required)

	switch {
	case len(required) > 0 && answered == 0:
		if !req.AutoFillConfirmed {
			// The caller prompts; declining simply never retries
			return nil, models.ErrAutoFillConfirmation
		}
		session.autoFillRequired(required)

	case answered < len(required):
		return nil, models.ErrIncompleteAnswers
	}

	// Serialize with the autosave path: an in-flight draft save finishes
	// first (its id is then reused below), and any save arriving after
	// this point sees the terminal state and bails.
	session.scheduler.saveMu.Lock()
	defer session.scheduler.saveMu.Unlock()

	if session.Completed() {
		return nil, models.ErrInspectionCompleted
	}

	now := c.clock.Now()
	record := session.BuildRecord(now)
	record.Status = models.StatusCompleted
	record.SignatureData = signature.SignatureData
	record.InspectorName = signature.InspectorName
	record.RecomputeCounts()

	created := record.ID == ""
	if created {
		record.ID = uuid.New().String()
	}
	if created {
		err = c.inspections.Create(ctx, record)
	} else {
		err = c.inspections.Update(ctx, record)
	}
	if err != nil {
		return nil, err
	}

	session.setRemoteID(record.ID)
	session.markCompleted()
	session.scheduler.Stop()

	// The store holds the signed report now; the fallback copy must go
	if err := c.snapshots.Delete(session.FacilityID, session.UserID); err != nil {
		observability.Warnf("Snapshot delete failed after completion for facility %s: %v", session.FacilityID, err)
	}

	result := &models.CompleteResult{
		InspectionID: record.ID,
		FacilityID:   session.FacilityID,
		FlaggedCount: record.FlaggedCount,
		ActionsCount: record.ActionsCount,
		CompletedAt:  now,
	}

	observability.WithFields(map[string]interface{}{
		"facility_id":   session.FacilityID,
		"inspection_id": record.ID,
		"flagged":       record.FlaggedCount,
		"actions":       record.ActionsCount,
	}).Info("Inspection completed")

	if c.hub != nil {
		c.hub.NotifyInspectionCompleted(session.FacilityID, record.ID)
	}
	for _, fn := range c.listeners {
		fn(result)
	}

	return result, nil
}

// countAnsweredRequired tallies answered responses among required questions
func (s *Session) countAnsweredRequired(required []*models.Question) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	answered := 0
	for _, q := range required {
		if r := s.findResponse(q.ID); r != nil && r.Answered() {
			answered++
		}
	}
	return answered
}

// autoFillRequired sets every required question to "yes". Optional and
// comment-only questions are left untouched.
func (s *Session) autoFillRequired(required []*models.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()

	requiredIDs := make(map[string]bool, len(required))
	for _, q := range required {
		requiredIDs[q.ID] = true
	}

	for _, r := range s.responses {
		if requiredIDs[r.QuestionID] {
			r.Answer = models.AnswerYes
			r.Flagged = false
			r.ActionRequired = false
		}
	}
}
