package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inspectsync/server/internal/cache"
	"github.com/inspectsync/server/internal/models"
	"github.com/inspectsync/server/internal/observability"
	"github.com/inspectsync/server/internal/repository"
)

// saveTimeout bounds one background persistence attempt
const saveTimeout = 30 * time.Second

// AutosaveScheduler turns a burst of edits into a single persistence attempt,
// fired one debounce delay after the last edit. Every attempt writes the full
// current state: the local snapshot first, then the store. Store failures are
// swallowed here and retried on the next cycle; only user-initiated saves
// surface them.
type AutosaveScheduler struct {
	session     *Session
	inspections repository.InspectionRepo
	snapshots   *cache.SnapshotStore
	clock       Clock
	delay       time.Duration
	hub         *SyncHub

	// saveMu serializes every store write for this draft: timer fires,
	// explicit saves and the completion write. The remote id must be
	// issued exactly once, so two racing saves may never both observe an
	// unsaved draft.
	saveMu sync.Mutex

	mu          sync.Mutex
	dirty       bool
	epoch       uint64
	cancelTimer CancelFunc
	lastSavedAt time.Time
	hasSaved    bool
	stopped     bool
}

// NewAutosaveScheduler creates a scheduler bound to one session
func NewAutosaveScheduler(
	session *Session,
	inspections repository.InspectionRepo,
	snapshots *cache.SnapshotStore,
	clock Clock,
	delay time.Duration,
	hub *SyncHub,
) *AutosaveScheduler {
	return &AutosaveScheduler{
		session:     session,
		inspections: inspections,
		snapshots:   snapshots,
		clock:       clock,
		delay:       delay,
		hub:         hub,
	}
}

// MarkDirty flags unsaved work and (re)arms the debounce timer. Each call
// cancels any pending timer, so a burst of N edits yields one save attempt,
// one delay after the last edit.
func (s *AutosaveScheduler) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	s.dirty = true
	s.epoch++
	if s.cancelTimer != nil {
		s.cancelTimer()
	}
	s.cancelTimer = s.clock.After(s.delay, s.timerFire)
}

// Dirty reports whether in-memory state is ahead of the store
func (s *AutosaveScheduler) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// LastSavedAt returns the time of the last successful store write
func (s *AutosaveScheduler) LastSavedAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSavedAt, s.hasSaved
}

// timerFire is the debounce callback. Failures are logged and swallowed;
// the state stays dirty and the next cycle retries with then-current state.
func (s *AutosaveScheduler) timerFire() {
	s.mu.Lock()
	s.cancelTimer = nil
	dirty := s.dirty && !s.stopped
	s.mu.Unlock()

	if !dirty {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if _, err := s.save(ctx); err != nil {
		observability.WithFields(map[string]interface{}{
			"facility_id": s.session.FacilityID,
			"user_id":     s.session.UserID,
		}).Warnf("Auto-save failed, will retry on next cycle: %v", err)
	}
}

// SaveDraft is the user-triggered save. It runs the same full-state write
// synchronously and surfaces the outcome; in-memory state is never lost on
// failure.
func (s *AutosaveScheduler) SaveDraft(ctx context.Context) (*models.SaveResult, error) {
	return s.save(ctx)
}

// save writes the local snapshot, then the store. The snapshot is written
// before the store attempt so a crash mid-save still leaves a recoverable
// copy; a successful store write deletes it again since the store is then
// the single source of truth.
func (s *AutosaveScheduler) save(ctx context.Context) (*models.SaveResult, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	// A completion that won the race owns the record now; re-check after
	// acquiring the save lock so a pending timer fire cannot re-persist
	// the draft over the signed report.
	if s.session.Completed() {
		return nil, models.ErrInspectionCompleted
	}

	now := s.clock.Now()

	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()

	snapshot := s.session.Snapshot(now)
	if err := s.snapshots.Set(snapshot); err != nil {
		// Best-effort only; never surfaced
		observability.Warnf("Snapshot write failed for facility %s: %v", s.session.FacilityID, err)
	}

	record := s.session.BuildRecord(now)
	created := record.ID == ""
	if created {
		record.ID = uuid.New().String()
	}

	var err error
	if created {
		err = s.inspections.Create(ctx, record)
	} else {
		err = s.inspections.Update(ctx, record)
	}
	if err != nil {
		return nil, err
	}

	// The id is issued once; every later save updates the same row
	s.session.setRemoteID(record.ID)

	s.mu.Lock()
	if s.epoch == epoch {
		s.dirty = false
	}
	s.lastSavedAt = now
	s.hasSaved = true
	s.mu.Unlock()

	if err := s.snapshots.Delete(s.session.FacilityID, s.session.UserID); err != nil {
		observability.Warnf("Snapshot delete failed for facility %s: %v", s.session.FacilityID, err)
	}

	if s.hub != nil {
		s.hub.NotifyDraftSaved(s.session.FacilityID, record.ID)
	}

	return &models.SaveResult{InspectionID: record.ID, SavedAt: now}, nil
}

// Suspend writes the current state to the snapshot store synchronously when
// dirty. It is the safety net for teardown and deliberately leaves the
// debounce timer alone.
func (s *AutosaveScheduler) Suspend() {
	s.mu.Lock()
	dirty := s.dirty && !s.stopped
	s.mu.Unlock()

	if !dirty {
		return
	}

	snapshot := s.session.Snapshot(s.clock.Now())
	if err := s.snapshots.Set(snapshot); err != nil {
		observability.Warnf("Suspend snapshot write failed for facility %s: %v", s.session.FacilityID, err)
	}
}

// Stop cancels any pending timer and refuses further scheduling
func (s *AutosaveScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	if s.cancelTimer != nil {
		s.cancelTimer()
		s.cancelTimer = nil
	}
}
