// Package session drives one user's study pass over a word list: it loads
// the day's batch, presents items one at a time, persists grading results
// through the injected stores and requeues forgotten words within the pass.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/example/lexibot/internal/spaced_repetition"
	"github.com/example/lexibot/pkg/models"
)

// State is the lifecycle phase of a session.
type State int

const (
	StateLoading State = iota
	StateReady
	StatePresenting
	StateComplete
)

var stateNames = [...]string{StateLoading: "Loading", StateReady: "Ready", StatePresenting: "Presenting", StateComplete: "Complete"}

// String returns the state name.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Config carries the explicit dependencies of a session. UserID is always
// passed in rather than read from ambient state.
type Config struct {
	UserID    int64
	ListID    int64
	DailyGoal int
	Engine    *spaced_repetition.Engine
	Records   RecordStore
	Snapshots SnapshotStore
	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// Session is the orchestrator for one study pass. It is not safe for
// concurrent use; callers serialize access (the bot keeps one per chat
// behind its own lock).
type Session struct {
	userID    int64
	listID    int64
	dailyGoal int
	engine    *spaced_repetition.Engine
	records   RecordStore
	snapshots SnapshotStore
	now       func() time.Time

	state   State
	batch   models.StudyBatch
	index   int
	grading bool // at most one in-flight grading per session
}

// New creates a session in the Loading state. Call Start to fetch the batch.
func New(cfg Config) *Session {
	if cfg.Engine == nil {
		cfg.Engine = spaced_repetition.NewEngine()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Session{
		userID:    cfg.UserID,
		listID:    cfg.ListID,
		dailyGoal: cfg.DailyGoal,
		engine:    cfg.Engine,
		records:   cfg.Records,
		snapshots: cfg.Snapshots,
		now:       cfg.Now,
		state:     StateLoading,
	}
}

// Start fetches today's batch, resuming from a saved snapshot when one
// exists. An empty batch completes the session immediately. Store failures
// are reported as ErrPersistence and leave the session in Loading so the
// caller can retry.
func (s *Session) Start(ctx context.Context) error {
	return s.load(ctx, true)
}

// Restart discards any saved snapshot and the in-memory batch, then loads
// a fresh session.
func (s *Session) Restart(ctx context.Context) error {
	if err := s.snapshots.Clear(ctx, s.userID, s.listID); err != nil {
		return fmt.Errorf("%w: clearing snapshot: %v", ErrPersistence, err)
	}
	s.state = StateLoading
	s.batch = nil
	s.index = 0
	return s.load(ctx, false)
}

func (s *Session) load(ctx context.Context, allowResume bool) error {
	s.state = StateLoading

	due, err := s.records.FetchDue(ctx, s.userID, s.listID, s.now())
	if err != nil {
		return fmt.Errorf("%w: fetching due words: %v", ErrPersistence, err)
	}
	if err := validateItems(due); err != nil {
		return err
	}

	var batch models.StudyBatch
	var index int

	if snap := s.loadSnapshot(ctx, allowResume); snap != nil {
		// Resume: the saved batch keeps the exact presentation position;
		// scheduling fields of not-yet-graded items are refreshed from the
		// fresh due rows so a stale snapshot cannot desynchronize scheduling.
		batch = snap.Batch
		index = snap.CurrentIndex
		fresh := make(map[int64]*models.ReviewRecord, len(due))
		for i := range due {
			fresh[due[i].Word.ID] = due[i].Record
		}
		for i := index; i < len(batch); i++ {
			if rec, ok := fresh[batch[i].Word.ID]; ok {
				batch[i].Record = rec
			}
		}
	} else {
		exclude := make([]int64, 0, len(due))
		for _, item := range due {
			exclude = append(exclude, item.Word.ID)
		}
		unstarted, err := s.records.FetchUnstarted(ctx, s.userID, s.listID, exclude, s.dailyGoal)
		if err != nil {
			return fmt.Errorf("%w: fetching new words: %v", ErrPersistence, err)
		}
		for _, w := range unstarted {
			if err := validateWord(w); err != nil {
				return err
			}
		}
		batch = s.engine.SelectDailyBatch(due, unstarted, s.dailyGoal)
	}

	s.state = StateReady
	s.batch = batch
	s.index = index

	if len(batch) == 0 || index >= len(batch) {
		// Nothing due and nothing new today
		return s.complete(ctx)
	}
	s.state = StatePresenting
	return nil
}

// loadSnapshot returns a usable snapshot or nil. A snapshot that cannot be
// read, fails validation or points outside its own batch is discarded so the
// session falls back to a fresh load.
func (s *Session) loadSnapshot(ctx context.Context, allowResume bool) *models.SessionSnapshot {
	if !allowResume {
		return nil
	}
	snap, err := s.snapshots.Load(ctx, s.userID, s.listID)
	if err != nil || snap == nil {
		return nil
	}
	if snap.CurrentIndex < 0 || snap.CurrentIndex >= len(snap.Batch) {
		return nil
	}
	if err := validateItems(snap.Batch); err != nil {
		return nil
	}
	return snap
}

// Current returns the item being presented.
func (s *Session) Current() (models.StudyItem, error) {
	if s.state != StatePresenting {
		return models.StudyItem{}, fmt.Errorf("%w: state is %s", ErrNotPresenting, s.state)
	}
	return s.batch[s.index], nil
}

// Grade records the user's answer for the current item.
//
// GradeForget moves the item to the end of the in-memory batch flagged for
// re-presentation and never reaches the store; the next item slides into the
// current position. Other grades compute the next schedule, upsert it and
// advance. An upsert failure keeps the position so the same grading can be
// retried.
func (s *Session) Grade(ctx context.Context, grade spaced_repetition.Grade) error {
	if s.state != StatePresenting {
		return fmt.Errorf("%w: state is %s", ErrNotPresenting, s.state)
	}
	if !grade.IsValid() {
		return fmt.Errorf("%w: %d", spaced_repetition.ErrInvalidGrade, int(grade))
	}
	if s.grading {
		return ErrConcurrentGrading
	}
	s.grading = true
	defer func() { s.grading = false }()

	if grade == spaced_repetition.GradeForget {
		item := s.batch[s.index]
		item.NeedsReview = true
		s.batch = append(s.batch[:s.index], s.batch[s.index+1:]...)
		s.batch = append(s.batch, item)
		return nil
	}

	item := s.batch[s.index]
	var record models.ReviewRecord
	if item.Record != nil {
		record = *item.Record
	} else {
		record = models.NewReviewRecord(s.userID, s.listID, item.Word.ID)
	}

	schedule, err := s.engine.ComputeNextSchedule(record, grade, s.now())
	if err != nil {
		return err
	}
	spaced_repetition.Apply(&record, grade, schedule)

	if err := s.records.Upsert(ctx, &record); err != nil {
		return fmt.Errorf("%w: saving review for word %d: %v", ErrPersistence, item.Word.ID, err)
	}

	item.Record = &record
	item.NeedsReview = false
	s.batch[s.index] = item
	s.index++

	if s.index >= len(s.batch) {
		return s.complete(ctx)
	}
	return nil
}

// Pause persists the current position so a later Start resumes from it.
// Safe between any two gradings; never called with an upsert in flight
// because Grade is synchronous.
func (s *Session) Pause(ctx context.Context) error {
	if s.state != StatePresenting {
		return fmt.Errorf("%w: state is %s", ErrNotPresenting, s.state)
	}
	snap := models.SessionSnapshot{
		UserID:       s.userID,
		ListID:       s.listID,
		CurrentIndex: s.index,
		Batch:        s.batch,
		SavedAt:      s.now(),
	}
	if err := s.snapshots.Save(ctx, snap); err != nil {
		return fmt.Errorf("%w: saving snapshot: %v", ErrPersistence, err)
	}
	return nil
}

func (s *Session) complete(ctx context.Context) error {
	s.state = StateComplete
	if err := s.snapshots.Clear(ctx, s.userID, s.listID); err != nil {
		return fmt.Errorf("%w: clearing snapshot: %v", ErrPersistence, err)
	}
	return nil
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	return s.state
}

// Progress returns how many items have been completed and the batch size.
// Requeued copies count toward the total as they are appended.
func (s *Session) Progress() (done, total int) {
	return s.index, len(s.batch)
}

func validateItems(items []models.StudyItem) error {
	for _, item := range items {
		if err := validateWord(item.Word); err != nil {
			return err
		}
		if item.Record != nil && item.Record.ReviewCount > 0 && item.Record.EaseFactor <= 0 {
			return fmt.Errorf("%w: word %d has invalid ease factor", ErrDataIntegrity, item.Word.ID)
		}
	}
	return nil
}

func validateWord(w models.Word) error {
	if w.ID == 0 || w.Term == "" || w.Definition == "" {
		return fmt.Errorf("%w: word %d is missing required fields", ErrDataIntegrity, w.ID)
	}
	return nil
}
