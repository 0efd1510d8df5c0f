package services

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inspectsync/server/internal/cache"
	"github.com/inspectsync/server/internal/models"
)

type reconcilerFixture struct {
	reconciler  *Reconciler
	inspections *memInspectionRepo
	photos      *memPhotoRepo
	snapshots   *cache.SnapshotStore
	clock       *fakeClock
	template    *models.Template
}

func setupReconciler(t *testing.T) *reconcilerFixture {
	tempDir, err := os.MkdirTemp("", "inspectsync-reconcile-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	snapshots, err := cache.NewSnapshotStore(tempDir)
	require.NoError(t, err)

	inspections := newMemInspectionRepo()
	photos := newMemPhotoRepo()
	clock := newFakeClock()

	return &reconcilerFixture{
		reconciler:  NewReconciler(inspections, photos, snapshots, clock),
		inspections: inspections,
		photos:      photos,
		snapshots:   snapshots,
		clock:       clock,
		template:    checklistTemplate(),
	}
}

func (f *reconcilerFixture) storedDraft(t *testing.T, updatedAt time.Time) *models.Inspection {
	draft := &models.Inspection{
		ID:         "insp-1",
		FacilityID: "fac-1",
		AccountID:  "acct-1",
		TemplateID: f.template.ID,
		TeamNumber: "7",
		Responses: []*models.Response{
			{QuestionID: "q1", Answer: models.AnswerYes},
			{QuestionID: "q2", Answer: models.AnswerNo, Flagged: true},
		},
		GeneralNotes: "remote notes",
		Status:       models.StatusDraft,
		ConductedAt:  updatedAt.Add(-time.Hour),
		UpdatedAt:    updatedAt,
	}
	require.NoError(t, f.inspections.Create(context.Background(), draft))
	return draft
}

func (f *reconcilerFixture) localSnapshot(t *testing.T, ts time.Time) {
	require.NoError(t, f.snapshots.Set(&models.LocalSnapshot{
		FacilityID: "fac-1",
		UserID:     "user-1",
		AccountID:  "acct-1",
		Responses: []*models.Response{
			{QuestionID: "q1", Answer: models.AnswerNo, Flagged: true},
			{QuestionID: "q3", Answer: models.AnswerYes},
		},
		GeneralNotes: "local notes",
		Timestamp:    ts,
	}))
}

func TestReconciler_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("neither copy starts a fresh form", func(t *testing.T) {
		f := setupReconciler(t)

		result, err := f.reconciler.Resolve(ctx, "fac-1", "acct-1", "user-1", f.template)
		require.NoError(t, err)

		assert.Empty(t, result.RemoteID)
		assert.False(t, result.Dirty)
		assert.False(t, result.RecoveredLocal)
		require.Len(t, result.Responses, len(f.template.Questions))
		for _, r := range result.Responses {
			assert.Equal(t, models.AnswerNone, r.Answer)
		}
	})

	t.Run("remote only resumes the stored draft", func(t *testing.T) {
		f := setupReconciler(t)
		f.storedDraft(t, f.clock.Now().Add(-time.Hour))

		result, err := f.reconciler.Resolve(ctx, "fac-1", "acct-1", "user-1", f.template)
		require.NoError(t, err)

		assert.Equal(t, "insp-1", result.RemoteID)
		assert.Equal(t, "7", result.TeamNumber)
		assert.Equal(t, "remote notes", result.GeneralNotes)
		assert.False(t, result.Dirty)
		// Aligned to the template: stored answers kept, missing filled blank
		require.Len(t, result.Responses, len(f.template.Questions))
		assert.Equal(t, models.AnswerYes, result.Responses[0].Answer)
		assert.Equal(t, models.AnswerNo, result.Responses[1].Answer)
		assert.True(t, result.Responses[1].Flagged)
		assert.Equal(t, models.AnswerNone, result.Responses[2].Answer)
	})

	t.Run("local only recovers the snapshot as dirty", func(t *testing.T) {
		f := setupReconciler(t)
		f.localSnapshot(t, f.clock.Now().Add(-time.Hour))

		result, err := f.reconciler.Resolve(ctx, "fac-1", "acct-1", "user-1", f.template)
		require.NoError(t, err)

		assert.Empty(t, result.RemoteID)
		assert.True(t, result.Dirty)
		assert.True(t, result.RecoveredLocal)
		assert.Equal(t, "local notes", result.GeneralNotes)
		assert.Equal(t, models.AnswerNo, result.Responses[0].Answer)
	})

	t.Run("newer local snapshot wins but keeps the remote id", func(t *testing.T) {
		f := setupReconciler(t)
		f.storedDraft(t, f.clock.Now().Add(-2*time.Hour))
		f.localSnapshot(t, f.clock.Now().Add(-time.Hour))

		result, err := f.reconciler.Resolve(ctx, "fac-1", "acct-1", "user-1", f.template)
		require.NoError(t, err)

		assert.Equal(t, "insp-1", result.RemoteID)
		assert.True(t, result.Dirty)
		assert.True(t, result.RecoveredLocal)
		assert.Equal(t, "local notes", result.GeneralNotes)
		assert.Equal(t, models.AnswerNo, result.Responses[0].Answer)
	})

	t.Run("newer remote wins and deletes the stale snapshot", func(t *testing.T) {
		f := setupReconciler(t)
		f.storedDraft(t, f.clock.Now().Add(-time.Hour))
		f.localSnapshot(t, f.clock.Now().Add(-2*time.Hour))

		result, err := f.reconciler.Resolve(ctx, "fac-1", "acct-1", "user-1", f.template)
		require.NoError(t, err)

		assert.Equal(t, "insp-1", result.RemoteID)
		assert.False(t, result.Dirty)
		assert.Equal(t, "remote notes", result.GeneralNotes)

		leftover, err := f.snapshots.Get("fac-1", "user-1")
		require.NoError(t, err)
		assert.Nil(t, leftover)
	})

	t.Run("expired snapshot is deleted and never recovered", func(t *testing.T) {
		f := setupReconciler(t)
		f.localSnapshot(t, f.clock.Now().Add(-25*time.Hour))

		result, err := f.reconciler.Resolve(ctx, "fac-1", "acct-1", "user-1", f.template)
		require.NoError(t, err)

		assert.False(t, result.RecoveredLocal)
		for _, r := range result.Responses {
			assert.Equal(t, models.AnswerNone, r.Answer)
		}

		leftover, err := f.snapshots.Get("fac-1", "user-1")
		require.NoError(t, err)
		assert.Nil(t, leftover)
	})

	t.Run("unreachable store degrades to local state", func(t *testing.T) {
		f := setupReconciler(t)
		f.inspections.failFind = errors.New("connection refused")
		f.localSnapshot(t, f.clock.Now().Add(-time.Hour))

		result, err := f.reconciler.Resolve(ctx, "fac-1", "acct-1", "user-1", f.template)
		require.NoError(t, err)

		assert.True(t, result.RemoteDegraded)
		assert.True(t, result.RecoveredLocal)
		assert.Equal(t, "local notes", result.GeneralNotes)
	})

	t.Run("unreachable store with no snapshot starts fresh", func(t *testing.T) {
		f := setupReconciler(t)
		f.inspections.failFind = errors.New("connection refused")

		result, err := f.reconciler.Resolve(ctx, "fac-1", "acct-1", "user-1", f.template)
		require.NoError(t, err)

		assert.True(t, result.RemoteDegraded)
		assert.False(t, result.Dirty)
		require.Len(t, result.Responses, len(f.template.Questions))
	})

	t.Run("photo catalog overlays the selected responses", func(t *testing.T) {
		f := setupReconciler(t)
		f.storedDraft(t, f.clock.Now().Add(-time.Hour))

		photo, err := models.NewPhoto("insp-1", "q2", "insp-1/q2/1.jpg", "leak.jpg", 1234)
		require.NoError(t, err)
		require.NoError(t, f.photos.Add(ctx, photo))

		result, err := f.reconciler.Resolve(ctx, "fac-1", "acct-1", "user-1", f.template)
		require.NoError(t, err)

		require.Len(t, result.Responses[1].Photos, 1)
		assert.Equal(t, photo.ID, result.Responses[1].Photos[0].ID)
		assert.Empty(t, result.Responses[0].Photos)
	})
}
