package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/inspectsync/server/internal/models"
)

// fakeClock drives the debounce deterministically. Scheduled callbacks fire
// when Advance moves the clock past their deadline.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	at        time.Time
	fn        func()
	fired     bool
	cancelled bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration, fn func()) CancelFunc {
	c.mu.Lock()
	defer c.mu.Unlock()

	timer := &fakeTimer{at: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, timer)

	return func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if timer.fired {
			return false
		}
		timer.cancelled = true
		return true
	}
}

// Advance moves the clock and fires due timers outside the clock lock
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)

	var due []*fakeTimer
	for _, timer := range c.timers {
		if !timer.fired && !timer.cancelled && !timer.at.After(c.now) {
			timer.fired = true
			due = append(due, timer)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, timer := range due {
		timer.fn()
	}
}

func (c *fakeClock) pendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := 0
	for _, timer := range c.timers {
		if !timer.fired && !timer.cancelled {
			pending++
		}
	}
	return pending
}

// memInspectionRepo is an in-memory InspectionRepo with error injection.
// onCreate, when set before any concurrency starts, runs at the top of
// Create so tests can hold one writer inside the store.
type memInspectionRepo struct {
	mu          sync.Mutex
	records     map[string]*models.Inspection
	createCalls int
	updateCalls int
	failCreate  error
	failUpdate  error
	failFind    error
	onCreate    func()
}

func newMemInspectionRepo() *memInspectionRepo {
	return &memInspectionRepo{records: make(map[string]*models.Inspection)}
}

func (m *memInspectionRepo) Create(_ context.Context, inspection *models.Inspection) error {
	if m.onCreate != nil {
		m.onCreate()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.createCalls++
	if m.failCreate != nil {
		return m.failCreate
	}
	stored := *inspection
	m.records[inspection.ID] = &stored
	return nil
}

func (m *memInspectionRepo) Update(_ context.Context, inspection *models.Inspection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.updateCalls++
	if m.failUpdate != nil {
		return m.failUpdate
	}
	if _, ok := m.records[inspection.ID]; !ok {
		return models.ErrInspectionNotFound
	}
	stored := *inspection
	m.records[inspection.ID] = &stored
	return nil
}

func (m *memInspectionRepo) GetByID(_ context.Context, id string) (*models.Inspection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (m *memInspectionRepo) FindDraft(_ context.Context, facilityID, accountID string) (*models.Inspection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failFind != nil {
		return nil, m.failFind
	}
	for _, record := range m.records {
		if record.FacilityID == facilityID && record.AccountID == accountID && record.Status == models.StatusDraft {
			copied := *record
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memInspectionRepo) ListByFacility(_ context.Context, facilityID, accountID string, limit int) ([]*models.Inspection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Inspection
	for _, record := range m.records {
		if record.FacilityID == facilityID && record.AccountID == accountID {
			copied := *record
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memInspectionRepo) get(id string) *models.Inspection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id]
}

func (m *memInspectionRepo) writes() (creates, updates int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls, m.updateCalls
}

// memPhotoRepo is an in-memory PhotoRepo with error injection
type memPhotoRepo struct {
	mu       sync.Mutex
	photos   []*models.Photo
	addCalls int
	failAdd  error
}

func newMemPhotoRepo() *memPhotoRepo {
	return &memPhotoRepo{}
}

func (m *memPhotoRepo) Add(_ context.Context, photo *models.Photo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.addCalls++
	if m.failAdd != nil {
		return m.failAdd
	}
	copied := *photo
	m.photos = append(m.photos, &copied)
	return nil
}

func (m *memPhotoRepo) GetByID(_ context.Context, id string) (*models.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.photos {
		if p.ID == id {
			copied := *p
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memPhotoRepo) ListByInspection(_ context.Context, inspectionID string) ([]*models.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Photo
	for _, p := range m.photos {
		if p.InspectionID == inspectionID {
			copied := *p
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memPhotoRepo) CountByQuestion(_ context.Context, inspectionID, questionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, p := range m.photos {
		if p.InspectionID == inspectionID && p.QuestionID == questionID {
			count++
		}
	}
	return count, nil
}

func (m *memPhotoRepo) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, p := range m.photos {
		if p.ID == id {
			m.photos = append(m.photos[:i], m.photos[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memPhotoRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.photos)
}

// memSignatureRepo is an in-memory SignatureRepo
type memSignatureRepo struct {
	mu         sync.Mutex
	signatures map[string]*models.Signature
}

func newMemSignatureRepo() *memSignatureRepo {
	return &memSignatureRepo{signatures: make(map[string]*models.Signature)}
}

func (m *memSignatureRepo) Get(_ context.Context, accountID, userID string) (*models.Signature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	signature, ok := m.signatures[accountID+"|"+userID]
	if !ok {
		return nil, nil
	}
	copied := *signature
	return &copied, nil
}

func (m *memSignatureRepo) Upsert(_ context.Context, signature *models.Signature) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *signature
	m.signatures[signature.AccountID+"|"+signature.UserID] = &copied
	return nil
}

// memTemplateRepo serves one fixed template
type memTemplateRepo struct {
	template *models.Template
}

func (m *memTemplateRepo) GetByName(_ context.Context, name string) (*models.Template, error) {
	if m.template != nil && m.template.Name == name {
		return m.template, nil
	}
	return nil, models.ErrTemplateNotFound
}

func (m *memTemplateRepo) GetByID(_ context.Context, id string) (*models.Template, error) {
	if m.template != nil && m.template.ID == id {
		return m.template, nil
	}
	return nil, nil
}

// checklistTemplate is the fixture template used across service tests:
// four gated questions plus an optional comment question.
func checklistTemplate() *models.Template {
	return &models.Template{
		ID:   "tmpl-test",
		Name: "Test Checklist",
		Questions: []*models.Question{
			{ID: "q1", Text: "Aisles clear", Type: models.QuestionGated, Position: 1},
			{ID: "q2", Text: "Extinguishers charged", Type: models.QuestionGated, Position: 2},
			{ID: "q3", Text: "PPE available", Type: models.QuestionGated, Position: 3},
			{ID: "q4", Text: "Eyewash stations stocked", Type: models.QuestionGated, Position: 4},
			{ID: "q5", Text: "General remarks", Type: models.QuestionComment, Optional: true, Position: 5},
		},
	}
}
