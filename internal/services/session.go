package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inspectsync/server/internal/cache"
	"github.com/inspectsync/server/internal/models"
	"github.com/inspectsync/server/internal/observability"
	"github.com/inspectsync/server/internal/repository"
)

// Session is one inspector's working draft for one facility. It owns the
// in-memory state machine {status, responses, remoteID, dirty}; the dirty
// flag and the debounce timer live on the attached AutosaveScheduler.
type Session struct {
	ID            string
	FacilityID    string
	FacilityName  string
	AccountID     string
	UserID        string
	InspectorName string
	TeamNumber    string
	Template      *models.Template

	mu             sync.Mutex
	status         models.InspectionStatus
	responses      []*models.Response
	generalNotes   string
	remoteID       string
	conductedAt    time.Time
	recoveredLocal bool
	remoteDegraded bool

	scheduler *AutosaveScheduler
}

// Scheduler returns the session's auto-save scheduler
func (s *Session) Scheduler() *AutosaveScheduler {
	return s.scheduler
}

// ApplyMutation applies one edit to the working draft and arms the
// auto-save debounce. Completed inspections reject all mutation.
func (s *Session) ApplyMutation(req models.MutateRequest) error {
	s.mu.Lock()

	if s.status == models.StatusCompleted {
		s.mu.Unlock()
		return models.ErrInspectionCompleted
	}

	mutated := false

	if req.GeneralComments != nil {
		s.generalNotes = *req.GeneralComments
		mutated = true
	}

	if req.QuestionID != "" {
		response := s.findResponse(req.QuestionID)
		if response == nil {
			s.mu.Unlock()
			return models.ErrUnknownQuestion
		}

		if req.Answer != nil {
			if err := response.SetAnswer(*req.Answer); err != nil {
				s.mu.Unlock()
				return err
			}
			mutated = true
		}
		if req.Comments != nil {
			response.Comments = *req.Comments
			mutated = true
		}
		if req.ActionRequired != nil {
			response.ActionRequired = *req.ActionRequired && response.Flagged
			mutated = true
		}
		if req.ActionNotes != nil {
			response.ActionNotes = *req.ActionNotes
			mutated = true
		}
	}

	s.mu.Unlock()

	if mutated {
		s.scheduler.MarkDirty()
	}
	return nil
}

// AttachPhoto records a freshly catalogued photo on its checklist item
func (s *Session) AttachPhoto(photo *models.Photo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if response := s.findResponse(photo.QuestionID); response != nil {
		response.Photos = append(response.Photos, photo)
	}
}

// DetachPhoto drops a photo from its checklist item once the metadata row
// is gone. Called only after the catalog delete succeeded.
func (s *Session) DetachPhoto(photoID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, response := range s.responses {
		for i, photo := range response.Photos {
			if photo.ID == photoID {
				response.Photos = append(response.Photos[:i], response.Photos[i+1:]...)
				return
			}
		}
	}
}

// RemoteID returns the id of the persisted record, empty before the first
// successful store write
func (s *Session) RemoteID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteID
}

func (s *Session) setRemoteID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remoteID == "" {
		s.remoteID = id
	}
}

// BuildRecord assembles the full current state as a store record. ID is the
// remote id when one exists; the scheduler assigns a fresh id on create.
func (s *Session) BuildRecord(now time.Time) *models.Inspection {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := &models.Inspection{
		ID:            s.remoteID,
		FacilityID:    s.FacilityID,
		AccountID:     s.AccountID,
		TeamNumber:    s.TeamNumber,
		TemplateID:    s.Template.ID,
		InspectorName: s.InspectorName,
		ConductedAt:   s.conductedAt,
		Responses:     copyResponses(s.responses),
		GeneralNotes:  s.generalNotes,
		Status:        s.status,
		UpdatedAt:     now,
	}
	record.RecomputeCounts()
	return record
}

// Snapshot assembles the full current state as a local fallback snapshot
func (s *Session) Snapshot(now time.Time) *models.LocalSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &models.LocalSnapshot{
		FacilityID:   s.FacilityID,
		FacilityName: s.FacilityName,
		UserID:       s.UserID,
		AccountID:    s.AccountID,
		Responses:    copyResponses(s.responses),
		GeneralNotes: s.generalNotes,
		Timestamp:    now,
	}
}

// View renders the session for API consumers
func (s *Session) View() *models.SessionResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := &models.SessionResponse{
		SessionID:       s.ID,
		InspectionID:    s.remoteID,
		FacilityID:      s.FacilityID,
		TemplateID:      s.Template.ID,
		Status:          string(s.status),
		Responses:       copyResponses(s.responses),
		GeneralComments: s.generalNotes,
		RecoveredLocal:  s.recoveredLocal,
		RemoteDegraded:  s.remoteDegraded,
	}
	view.Dirty = s.scheduler.Dirty()
	if last, ok := s.scheduler.LastSavedAt(); ok {
		view.LastSavedAt = &last
	}
	return view
}

// Completed reports whether the session reached its terminal state
func (s *Session) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == models.StatusCompleted
}

// markCompleted flips the terminal state; callers hold no lock
func (s *Session) markCompleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = models.StatusCompleted
}

func (s *Session) findResponse(questionID string) *models.Response {
	for _, r := range s.responses {
		if r.QuestionID == questionID {
			return r
		}
	}
	return nil
}

func copyResponses(responses []*models.Response) []*models.Response {
	copied := make([]*models.Response, 0, len(responses))
	for _, r := range responses {
		c := *r
		c.Photos = append([]*models.Photo{}, r.Photos...)
		copied = append(copied, &c)
	}
	return copied
}

// SessionManager owns every open session, keyed by (facility, user). It runs
// reconciliation on open and flushes dirty sessions on lifecycle signals.
type SessionManager struct {
	inspections repository.InspectionRepo
	templates   repository.TemplateRepo
	snapshots   *cache.SnapshotStore
	reconciler  *Reconciler
	clock       Clock
	delay       time.Duration
	hub         *SyncHub

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager creates a manager and subscribes it to the lifecycle bus
func NewSessionManager(
	inspections repository.InspectionRepo,
	templates repository.TemplateRepo,
	snapshots *cache.SnapshotStore,
	reconciler *Reconciler,
	clock Clock,
	autosaveDelay time.Duration,
	bus *LifecycleBus,
	hub *SyncHub,
) *SessionManager {
	if autosaveDelay <= 0 {
		autosaveDelay = 30 * time.Second
	}

	m := &SessionManager{
		inspections: inspections,
		templates:   templates,
		snapshots:   snapshots,
		reconciler:  reconciler,
		clock:       clock,
		delay:       autosaveDelay,
		hub:         hub,
		sessions:    make(map[string]*Session),
	}

	if bus != nil {
		bus.Subscribe(m.handleLifecycle)
	}
	return m
}

// Open starts or resumes the editing session for a facility. Opening an
// already-open session returns it unchanged; the draft remains owned by a
// single editing surface.
func (m *SessionManager) Open(ctx context.Context, inspector *models.Inspector, req models.OpenSessionRequest) (*Session, error) {
	if strings.TrimSpace(req.FacilityID) == "" {
		return nil, models.ErrEmptyFacilityID
	}

	key := sessionKey(req.FacilityID, inspector.ID)

	m.mu.RLock()
	existing := m.sessions[key]
	m.mu.RUnlock()
	if existing != nil {
		return existing, nil
	}

	templateName := req.TemplateName
	if templateName == "" {
		templateName = repository.DefaultTemplateName
	}
	template, err := m.templates.GetByName(ctx, templateName)
	if err != nil {
		return nil, err
	}
	if !template.Valid() {
		if template == nil {
			return nil, models.ErrTemplateNotFound
		}
		return nil, models.ErrTemplateEmpty
	}

	result, err := m.reconciler.Resolve(ctx, req.FacilityID, inspector.AccountID, inspector.ID, template)
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:             uuid.New().String(),
		FacilityID:     req.FacilityID,
		FacilityName:   req.FacilityName,
		AccountID:      inspector.AccountID,
		UserID:         inspector.ID,
		InspectorName:  inspector.Name,
		Template:       template,
		status:         models.StatusDraft,
		responses:      result.Responses,
		generalNotes:   result.GeneralNotes,
		remoteID:       result.RemoteID,
		conductedAt:    result.ConductedAt,
		recoveredLocal: result.RecoveredLocal,
		remoteDegraded: result.RemoteDegraded,
	}
	session.scheduler = NewAutosaveScheduler(session, m.inspections, m.snapshots, m.clock, m.delay, m.hub)
	if result.Dirty {
		// Recovered local work has not reached the store yet
		session.scheduler.MarkDirty()
	}

	m.mu.Lock()
	if raced := m.sessions[key]; raced != nil {
		m.mu.Unlock()
		session.scheduler.Stop()
		return raced, nil
	}
	m.sessions[key] = session
	m.mu.Unlock()

	observability.WithFields(map[string]interface{}{
		"facility_id": req.FacilityID,
		"user_id":     inspector.ID,
		"recovered":   result.RecoveredLocal,
		"dirty":       result.Dirty,
	}).Info("Inspection session opened")

	return session, nil
}

// Get returns the open session for a (facility, user) key
func (m *SessionManager) Get(facilityID, userID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session := m.sessions[sessionKey(facilityID, userID)]
	if session == nil {
		return nil, models.ErrSessionNotFound
	}
	return session, nil
}

// Close tears a session down: the debounce timer is cancelled and, when the
// draft still has unsaved work, a final snapshot is written synchronously.
func (m *SessionManager) Close(facilityID, userID string) {
	m.mu.Lock()
	key := sessionKey(facilityID, userID)
	session := m.sessions[key]
	delete(m.sessions, key)
	m.mu.Unlock()

	if session == nil {
		return
	}
	session.scheduler.Suspend()
	session.scheduler.Stop()
}

// handleLifecycle flushes matching dirty sessions to the local snapshot
// store; Terminate also stops every debounce timer
func (m *SessionManager) handleLifecycle(event LifecycleEvent) {
	if event.Kind == LifecycleResume {
		return
	}

	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if event.Matches(s.FacilityID, s.UserID) {
			sessions = append(sessions, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		s.scheduler.Suspend()
		if event.Kind == LifecycleTerminate {
			s.scheduler.Stop()
		}
	}
}

func sessionKey(facilityID, userID string) string {
	return facilityID + "|" + userID
}
