package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lexibot/internal/spaced_repetition"
	"github.com/example/lexibot/pkg/models"
)

var testNow = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

// fakeRecordStore serves canned due/unstarted data and collects upserts.
type fakeRecordStore struct {
	due       []models.StudyItem
	unstarted []models.Word

	upserts    []models.ReviewRecord
	fetchErr   error
	upsertErr  error
	upsertFail int // fail this many upserts, then succeed
}

func (f *fakeRecordStore) FetchDue(_ context.Context, _, _ int64, _ time.Time) ([]models.StudyItem, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]models.StudyItem, len(f.due))
	copy(out, f.due)
	return out, nil
}

func (f *fakeRecordStore) FetchUnstarted(_ context.Context, _, _ int64, exclude []int64, limit int) ([]models.Word, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	skip := make(map[int64]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	var out []models.Word
	for _, w := range f.unstarted {
		if len(out) == limit {
			break
		}
		if !skip[w.ID] {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeRecordStore) Upsert(_ context.Context, record *models.ReviewRecord) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if f.upsertFail > 0 {
		f.upsertFail--
		return errors.New("connection reset")
	}
	f.upserts = append(f.upserts, *record)
	return nil
}

// fakeSnapshotStore keeps one snapshot per (user, list) key.
type fakeSnapshotStore struct {
	snaps   map[[2]int64]*models.SessionSnapshot
	saveErr error
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{snaps: make(map[[2]int64]*models.SessionSnapshot)}
}

func (f *fakeSnapshotStore) Save(_ context.Context, snap models.SessionSnapshot) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	cp := snap
	cp.Batch = append(models.StudyBatch(nil), snap.Batch...)
	f.snaps[[2]int64{snap.UserID, snap.ListID}] = &cp
	return nil
}

func (f *fakeSnapshotStore) Load(_ context.Context, userID, listID int64) (*models.SessionSnapshot, error) {
	return f.snaps[[2]int64{userID, listID}], nil
}

func (f *fakeSnapshotStore) Clear(_ context.Context, userID, listID int64) error {
	delete(f.snaps, [2]int64{userID, listID})
	return nil
}

func dueItem(wordID int64, due time.Time) models.StudyItem {
	rec := models.NewReviewRecord(1, 1, wordID)
	rec.ReviewCount = 2
	rec.IntervalDays = 3
	rec.LastStudiedAt = due.AddDate(0, 0, -3)
	rec.NextReviewAt = due
	return models.StudyItem{
		Word:   models.Word{ID: wordID, ListID: 1, Term: "term", Definition: "def"},
		Record: &rec,
	}
}

func newWord(id int64) models.Word {
	return models.Word{ID: id, ListID: 1, Term: "term", Definition: "def"}
}

func newTestSession(records *fakeRecordStore, snaps *fakeSnapshotStore, goal int) *Session {
	return New(Config{
		UserID:    1,
		ListID:    1,
		DailyGoal: goal,
		Records:   records,
		Snapshots: snaps,
		Now:       func() time.Time { return testNow },
	})
}

func TestStartEmptyBatchCompletesImmediately(t *testing.T) {
	s := newTestSession(&fakeRecordStore{}, newFakeSnapshotStore(), 5)
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StateComplete, s.State())

	_, err := s.Current()
	assert.True(t, errors.Is(err, ErrNotPresenting))
}

func TestStartOrdersDueBeforeNew(t *testing.T) {
	records := &fakeRecordStore{
		due:       []models.StudyItem{dueItem(2, testNow.Add(-time.Hour)), dueItem(1, testNow.Add(-2*time.Hour))},
		unstarted: []models.Word{newWord(10), newWord(11), newWord(12)},
	}
	s := newTestSession(records, newFakeSnapshotStore(), 2)
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StatePresenting, s.State())

	done, total := s.Progress()
	assert.Equal(t, 0, done)
	assert.Equal(t, 4, total) // 2 due + 2 new, goal caps the rest

	item, err := s.Current()
	require.NoError(t, err)
	assert.Equal(t, int64(1), item.Word.ID) // most overdue first
}

func TestStartFetchFailureIsRetryable(t *testing.T) {
	records := &fakeRecordStore{fetchErr: errors.New("dial tcp: timeout")}
	s := newTestSession(records, newFakeSnapshotStore(), 5)

	err := s.Start(context.Background())
	assert.True(t, errors.Is(err, ErrPersistence))
	assert.Equal(t, StateLoading, s.State())

	// The same session can be started again once the store recovers.
	records.fetchErr = nil
	records.due = []models.StudyItem{dueItem(1, testNow)}
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StatePresenting, s.State())
}

func TestStartRejectsMalformedWords(t *testing.T) {
	broken := dueItem(3, testNow)
	broken.Word.Definition = ""
	records := &fakeRecordStore{due: []models.StudyItem{broken}}
	s := newTestSession(records, newFakeSnapshotStore(), 0)

	err := s.Start(context.Background())
	assert.True(t, errors.Is(err, ErrDataIntegrity))
}

func TestGradeAdvancesAndPersists(t *testing.T) {
	records := &fakeRecordStore{due: []models.StudyItem{dueItem(1, testNow), dueItem(2, testNow)}}
	s := newTestSession(records, newFakeSnapshotStore(), 0)
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.Grade(context.Background(), spaced_repetition.GradeNormal))
	require.Len(t, records.upserts, 1)
	saved := records.upserts[0]
	assert.Equal(t, int64(1), saved.WordID)
	assert.Equal(t, 3, saved.ReviewCount)
	assert.Equal(t, int(spaced_repetition.GradeNormal), saved.Familiarity)
	assert.Equal(t, testNow, saved.LastStudiedAt)

	item, err := s.Current()
	require.NoError(t, err)
	assert.Equal(t, int64(2), item.Word.ID)
}

func TestGradeFirstGradingOfNewWord(t *testing.T) {
	records := &fakeRecordStore{unstarted: []models.Word{newWord(10)}}
	s := newTestSession(records, newFakeSnapshotStore(), 1)
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.Grade(context.Background(), spaced_repetition.GradeEasy))
	require.Len(t, records.upserts, 1)
	assert.Equal(t, 1, records.upserts[0].IntervalDays)
	assert.Equal(t, 1, records.upserts[0].ReviewCount)
	assert.Equal(t, StateComplete, s.State())
}

func TestGradeForgetRequeuesWithoutPersisting(t *testing.T) {
	records := &fakeRecordStore{due: []models.StudyItem{dueItem(1, testNow), dueItem(2, testNow)}}
	s := newTestSession(records, newFakeSnapshotStore(), 0)
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.Grade(context.Background(), spaced_repetition.GradeForget))

	// Nothing written, the next item slid into the current slot and the
	// forgotten word sits flagged at the end of the batch.
	assert.Empty(t, records.upserts)
	done, total := s.Progress()
	assert.Equal(t, 0, done)
	assert.Equal(t, 2, total)

	item, err := s.Current()
	require.NoError(t, err)
	assert.Equal(t, int64(2), item.Word.ID)

	require.NoError(t, s.Grade(context.Background(), spaced_repetition.GradeNormal))
	item, err = s.Current()
	require.NoError(t, err)
	assert.Equal(t, int64(1), item.Word.ID)
	assert.True(t, item.NeedsReview)

	// Grading the requeued copy with a passing grade finally persists it.
	require.NoError(t, s.Grade(context.Background(), spaced_repetition.GradeHard))
	require.Len(t, records.upserts, 2)
	assert.Equal(t, int64(1), records.upserts[1].WordID)
	assert.Equal(t, StateComplete, s.State())
}

func TestGradeForgetSoleItemStaysCurrent(t *testing.T) {
	records := &fakeRecordStore{due: []models.StudyItem{dueItem(1, testNow)}}
	s := newTestSession(records, newFakeSnapshotStore(), 0)
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.Grade(context.Background(), spaced_repetition.GradeForget))
	item, err := s.Current()
	require.NoError(t, err)
	assert.Equal(t, int64(1), item.Word.ID)
	assert.True(t, item.NeedsReview)
}

func TestGradeInvalidGrade(t *testing.T) {
	records := &fakeRecordStore{due: []models.StudyItem{dueItem(1, testNow)}}
	s := newTestSession(records, newFakeSnapshotStore(), 0)
	require.NoError(t, s.Start(context.Background()))

	err := s.Grade(context.Background(), spaced_repetition.Grade(9))
	assert.True(t, errors.Is(err, spaced_repetition.ErrInvalidGrade))
	assert.Empty(t, records.upserts)
}

func TestGradeUpsertFailureKeepsPosition(t *testing.T) {
	records := &fakeRecordStore{
		due:        []models.StudyItem{dueItem(1, testNow), dueItem(2, testNow)},
		upsertFail: 1,
	}
	s := newTestSession(records, newFakeSnapshotStore(), 0)
	require.NoError(t, s.Start(context.Background()))

	err := s.Grade(context.Background(), spaced_repetition.GradeNormal)
	assert.True(t, errors.Is(err, ErrPersistence))

	// Position unchanged, so the same grading can be retried.
	item, cerr := s.Current()
	require.NoError(t, cerr)
	assert.Equal(t, int64(1), item.Word.ID)

	require.NoError(t, s.Grade(context.Background(), spaced_repetition.GradeNormal))
	require.Len(t, records.upserts, 1)
	assert.Equal(t, int64(1), records.upserts[0].WordID)
}

func TestPauseAndResumeSamePosition(t *testing.T) {
	records := &fakeRecordStore{
		due:       []models.StudyItem{dueItem(1, testNow), dueItem(2, testNow)},
		unstarted: []models.Word{newWord(10)},
	}
	snaps := newFakeSnapshotStore()

	s := newTestSession(records, snaps, 1)
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Grade(context.Background(), spaced_repetition.GradeNormal))

	before, err := s.Current()
	require.NoError(t, err)
	require.NoError(t, s.Pause(context.Background()))

	// A fresh session for the same (user, list) resumes at the same item.
	resumed := newTestSession(records, snaps, 1)
	require.NoError(t, resumed.Start(context.Background()))
	after, err := resumed.Current()
	require.NoError(t, err)
	assert.Equal(t, before.Word.ID, after.Word.ID)

	done, total := resumed.Progress()
	assert.Equal(t, 1, done)
	assert.Equal(t, 3, total)
}

func TestResumeRefreshesRecordsFromStore(t *testing.T) {
	records := &fakeRecordStore{due: []models.StudyItem{dueItem(1, testNow), dueItem(2, testNow)}}
	snaps := newFakeSnapshotStore()

	s := newTestSession(records, snaps, 0)
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Pause(context.Background()))

	// The stored record for word 1 changes while the session is paused.
	updated := dueItem(1, testNow)
	updated.Record.EaseFactor = 1.7
	records.due[0] = updated

	resumed := newTestSession(records, snaps, 0)
	require.NoError(t, resumed.Start(context.Background()))
	item, err := resumed.Current()
	require.NoError(t, err)
	require.NotNil(t, item.Record)
	assert.Equal(t, 1.7, item.Record.EaseFactor)
}

func TestResumeDiscardsOutOfRangeSnapshot(t *testing.T) {
	records := &fakeRecordStore{due: []models.StudyItem{dueItem(1, testNow)}}
	snaps := newFakeSnapshotStore()
	snaps.snaps[[2]int64{1, 1}] = &models.SessionSnapshot{
		UserID:       1,
		ListID:       1,
		CurrentIndex: 7,
		Batch:        models.StudyBatch{dueItem(1, testNow)},
	}

	s := newTestSession(records, snaps, 0)
	require.NoError(t, s.Start(context.Background()))
	done, total := s.Progress()
	assert.Equal(t, 0, done)
	assert.Equal(t, 1, total)
}

func TestCompleteClearsSnapshot(t *testing.T) {
	records := &fakeRecordStore{due: []models.StudyItem{dueItem(1, testNow)}}
	snaps := newFakeSnapshotStore()

	s := newTestSession(records, snaps, 0)
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Pause(context.Background()))
	require.Len(t, snaps.snaps, 1)

	require.NoError(t, s.Grade(context.Background(), spaced_repetition.GradeEasy))
	assert.Equal(t, StateComplete, s.State())
	assert.Empty(t, snaps.snaps)
}

func TestRestartDiscardsSnapshot(t *testing.T) {
	records := &fakeRecordStore{due: []models.StudyItem{dueItem(1, testNow), dueItem(2, testNow)}}
	snaps := newFakeSnapshotStore()

	s := newTestSession(records, snaps, 0)
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Grade(context.Background(), spaced_repetition.GradeNormal))
	require.NoError(t, s.Pause(context.Background()))

	require.NoError(t, s.Restart(context.Background()))
	assert.Empty(t, snaps.snaps)
	done, _ := s.Progress()
	assert.Equal(t, 0, done)
}

func TestPauseSaveFailure(t *testing.T) {
	records := &fakeRecordStore{due: []models.StudyItem{dueItem(1, testNow)}}
	snaps := newFakeSnapshotStore()
	snaps.saveErr = errors.New("disk full")

	s := newTestSession(records, snaps, 0)
	require.NoError(t, s.Start(context.Background()))
	err := s.Pause(context.Background())
	assert.True(t, errors.Is(err, ErrPersistence))
}

// hookedRecordStore lets a test run code while an upsert is in flight.
type hookedRecordStore struct {
	fakeRecordStore
	onUpsert func()
}

func (h *hookedRecordStore) Upsert(ctx context.Context, record *models.ReviewRecord) error {
	if h.onUpsert != nil {
		h.onUpsert()
	}
	return h.fakeRecordStore.Upsert(ctx, record)
}

func TestGradeWhileGradingInFlightRejected(t *testing.T) {
	records := &hookedRecordStore{
		fakeRecordStore: fakeRecordStore{due: []models.StudyItem{dueItem(1, testNow), dueItem(2, testNow)}},
	}
	s := New(Config{
		UserID:    1,
		ListID:    1,
		Records:   records,
		Snapshots: newFakeSnapshotStore(),
		Now:       func() time.Time { return testNow },
	})
	require.NoError(t, s.Start(context.Background()))

	var nested error
	records.onUpsert = func() {
		records.onUpsert = nil
		nested = s.Grade(context.Background(), spaced_repetition.GradeEasy)
	}
	require.NoError(t, s.Grade(context.Background(), spaced_repetition.GradeNormal))
	assert.True(t, errors.Is(nested, ErrConcurrentGrading))

	// Only the outer grading reached the store.
	require.Len(t, records.upserts, 1)
	assert.Equal(t, int64(1), records.upserts[0].WordID)
}

func TestGradeAfterCompleteRejected(t *testing.T) {
	records := &fakeRecordStore{due: []models.StudyItem{dueItem(1, testNow)}}
	s := newTestSession(records, newFakeSnapshotStore(), 0)
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Grade(context.Background(), spaced_repetition.GradeEasy))

	err := s.Grade(context.Background(), spaced_repetition.GradeNormal)
	assert.True(t, errors.Is(err, ErrNotPresenting))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Presenting", StatePresenting.String())
	assert.Equal(t, "State(9)", State(9).String())
}
