package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inspectsync/server/internal/models"
)

type completionFixture struct {
	*sessionFixture
	signatures *memSignatureRepo
	completion *CompletionService
}

func setupCompletion(t *testing.T) *completionFixture {
	base := setupSession(t)
	signatures := newMemSignatureRepo()

	return &completionFixture{
		sessionFixture: base,
		signatures:     signatures,
		completion:     NewCompletionService(base.inspections, signatures, base.snapshots, base.clock, nil),
	}
}

func (f *completionFixture) storeSignature(t *testing.T) {
	require.NoError(t, f.signatures.Upsert(context.Background(), &models.Signature{
		AccountID:     "acct-1",
		UserID:        "user-1",
		InspectorName: "Jordan Q. Inspector",
		SignatureData: "data:image/png;base64,iVBORw0KGgo=",
		UpdatedAt:     f.clock.Now(),
	}))
}

func (f *completionFixture) answerAll(t *testing.T) {
	f.answer(t, "q1", models.AnswerYes)
	f.answer(t, "q2", models.AnswerNo)
	f.answer(t, "q3", models.AnswerNA)
	f.answer(t, "q4", models.AnswerYes)
}

func TestCompletionService_Complete(t *testing.T) {
	ctx := context.Background()

	t.Run("missing signature blocks completion with no writes", func(t *testing.T) {
		f := setupCompletion(t)
		f.answerAll(t)

		_, err := f.completion.Complete(ctx, f.session, models.CompleteRequest{})
		assert.ErrorIs(t, err, models.ErrSignatureRequired)

		creates, updates := f.inspections.writes()
		assert.Equal(t, 0, creates+updates)
	})

	t.Run("blank stored signature is treated as missing", func(t *testing.T) {
		f := setupCompletion(t)
		require.NoError(t, f.signatures.Upsert(ctx, &models.Signature{
			AccountID: "acct-1",
			UserID:    "user-1",
		}))
		f.answerAll(t)

		_, err := f.completion.Complete(ctx, f.session, models.CompleteRequest{})
		assert.ErrorIs(t, err, models.ErrSignatureRequired)
	})

	t.Run("partially answered required set is rejected with no writes", func(t *testing.T) {
		f := setupCompletion(t)
		f.storeSignature(t)
		f.answer(t, "q1", models.AnswerYes)
		f.answer(t, "q2", models.AnswerNo)

		_, err := f.completion.Complete(ctx, f.session, models.CompleteRequest{})
		assert.ErrorIs(t, err, models.ErrIncompleteAnswers)

		creates, updates := f.inspections.writes()
		assert.Equal(t, 0, creates+updates)

		// The session stays editable
		f.answer(t, "q3", models.AnswerYes)
	})

	t.Run("fully answered draft completes and seals the session", func(t *testing.T) {
		f := setupCompletion(t)
		f.storeSignature(t)
		f.answerAll(t)
		require.NoError(t, f.session.ApplyMutation(models.MutateRequest{
			QuestionID:     "q2",
			ActionRequired: boolPtr(true),
		}))

		var observed *models.CompleteResult
		f.completion.OnCompleted(func(result *models.CompleteResult) { observed = result })

		result, err := f.completion.Complete(ctx, f.session, models.CompleteRequest{})
		require.NoError(t, err)
		assert.Equal(t, 1, result.FlaggedCount)
		assert.Equal(t, 1, result.ActionsCount)
		require.NotNil(t, observed)
		assert.Equal(t, result.InspectionID, observed.InspectionID)

		record := f.inspections.get(result.InspectionID)
		require.NotNil(t, record)
		assert.Equal(t, models.StatusCompleted, record.Status)
		assert.Equal(t, "data:image/png;base64,iVBORw0KGgo=", record.SignatureData)
		assert.Equal(t, "Jordan Q. Inspector", record.InspectorName)

		snapshot, err := f.snapshots.Get("fac-1", "user-1")
		require.NoError(t, err)
		assert.Nil(t, snapshot)

		err = f.session.ApplyMutation(models.MutateRequest{
			QuestionID: "q1",
			Answer:     ansPtr(models.AnswerNo),
		})
		assert.ErrorIs(t, err, models.ErrInspectionCompleted)

		_, err = f.completion.Complete(ctx, f.session, models.CompleteRequest{})
		assert.ErrorIs(t, err, models.ErrInspectionCompleted)
	})

	t.Run("completion updates an already stored draft in place", func(t *testing.T) {
		f := setupCompletion(t)
		f.storeSignature(t)
		f.answerAll(t)

		_, err := f.session.Scheduler().SaveDraft(ctx)
		require.NoError(t, err)
		draftID := f.session.RemoteID()

		result, err := f.completion.Complete(ctx, f.session, models.CompleteRequest{})
		require.NoError(t, err)
		assert.Equal(t, draftID, result.InspectionID)

		creates, updates := f.inspections.writes()
		assert.Equal(t, 1, creates)
		assert.Equal(t, 1, updates)
	})
}

func TestCompletionService_AutoFill(t *testing.T) {
	ctx := context.Background()

	t.Run("untouched required set demands confirmation", func(t *testing.T) {
		f := setupCompletion(t)
		f.storeSignature(t)

		_, err := f.completion.Complete(ctx, f.session, models.CompleteRequest{})
		assert.ErrorIs(t, err, models.ErrAutoFillConfirmation)

		creates, updates := f.inspections.writes()
		assert.Equal(t, 0, creates+updates)
	})

	t.Run("declining simply leaves the draft editable", func(t *testing.T) {
		f := setupCompletion(t)
		f.storeSignature(t)

		_, err := f.completion.Complete(ctx, f.session, models.CompleteRequest{})
		require.ErrorIs(t, err, models.ErrAutoFillConfirmation)

		f.answer(t, "q1", models.AnswerNo)
		view := f.session.View()
		assert.Equal(t, "draft", view.Status)
	})

	t.Run("confirmed auto-fill answers every required question yes", func(t *testing.T) {
		f := setupCompletion(t)
		f.storeSignature(t)
		require.NoError(t, f.session.ApplyMutation(models.MutateRequest{
			GeneralComments: strPtr("walkthrough only, no findings"),
		}))

		result, err := f.completion.Complete(ctx, f.session, models.CompleteRequest{AutoFillConfirmed: true})
		require.NoError(t, err)
		assert.Equal(t, 0, result.FlaggedCount)

		record := f.inspections.get(result.InspectionID)
		require.NotNil(t, record)
		for i, q := range checklistTemplate().Questions {
			if q.Required() {
				assert.Equal(t, models.AnswerYes, record.Responses[i].Answer)
				assert.False(t, record.Responses[i].Flagged)
			} else {
				// Optional and comment-only questions stay untouched
				assert.Equal(t, models.AnswerNone, record.Responses[i].Answer)
			}
		}
		assert.Equal(t, "walkthrough only, no findings", record.GeneralNotes)
	})

	t.Run("general comments alone do not bypass the confirmation gate", func(t *testing.T) {
		f := setupCompletion(t)
		f.storeSignature(t)
		require.NoError(t, f.session.ApplyMutation(models.MutateRequest{
			GeneralComments: strPtr("looked fine"),
		}))

		_, err := f.completion.Complete(ctx, f.session, models.CompleteRequest{})
		assert.ErrorIs(t, err, models.ErrAutoFillConfirmation)
	})
}

func TestCompletionService_StopsAutosave(t *testing.T) {
	f := setupCompletion(t)
	f.storeSignature(t)
	f.answerAll(t)

	// An armed debounce must not fire after completion
	result, err := f.completion.Complete(context.Background(), f.session, models.CompleteRequest{})
	require.NoError(t, err)

	f.clock.Advance(time.Minute)

	record := f.inspections.get(result.InspectionID)
	require.NotNil(t, record)
	assert.Equal(t, models.StatusCompleted, record.Status)

	creates, updates := f.inspections.writes()
	assert.Equal(t, 1, creates+updates)
}

func TestCompletionService_SerializesWithAutosave(t *testing.T) {
	ctx := context.Background()

	t.Run("debounce fire during the terminal write cannot resurrect the draft", func(t *testing.T) {
		f := setupCompletion(t)
		f.storeSignature(t)
		f.answerAll(t) // arms the debounce

		// Hold the completion inside the store's create while the timer
		// fires; the late save must not write a second, draft-status row.
		entered := make(chan struct{})
		release := make(chan struct{})
		var once sync.Once
		f.inspections.onCreate = func() {
			once.Do(func() {
				close(entered)
				<-release
			})
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.completion.Complete(ctx, f.session, models.CompleteRequest{})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			<-entered
			f.clock.Advance(time.Minute)
		}()

		<-entered
		close(release)
		wg.Wait()

		creates, updates := f.inspections.writes()
		assert.Equal(t, 1, creates)
		assert.Equal(t, 0, updates)

		record := f.inspections.get(f.session.RemoteID())
		require.NotNil(t, record)
		assert.Equal(t, models.StatusCompleted, record.Status)
		assert.NotEmpty(t, record.SignatureData)

		// No editable draft survives for this facility
		draft, err := f.inspections.FindDraft(ctx, "fac-1", "acct-1")
		require.NoError(t, err)
		assert.Nil(t, draft)
	})

	t.Run("explicit save after completion is refused without writes", func(t *testing.T) {
		f := setupCompletion(t)
		f.storeSignature(t)
		f.answerAll(t)

		_, err := f.completion.Complete(ctx, f.session, models.CompleteRequest{})
		require.NoError(t, err)

		_, err = f.session.Scheduler().SaveDraft(ctx)
		assert.ErrorIs(t, err, models.ErrInspectionCompleted)

		creates, updates := f.inspections.writes()
		assert.Equal(t, 1, creates)
		assert.Equal(t, 0, updates)
	})
}
