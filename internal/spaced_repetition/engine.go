package spaced_repetition

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/example/lexibot/pkg/models"
)

// Engine implements a four-grade variant of the SuperMemo-2 algorithm.
// It is pure: all methods compute new state without touching storage.
type Engine struct {
	// Минимально допустимый фактор легкости
	EaseFloor float64
	// Maximum review interval in days
	MaxIntervalDays int
	// Interval multiplier for GradeHard (intentionally below the ease floor)
	HardFactor float64
	// Extra interval multiplier for GradeEasy
	EasyBonus float64
}

// NewEngine creates an engine with the default tuning.
func NewEngine() *Engine {
	return &Engine{
		EaseFloor:       1.3,
		MaxIntervalDays: 365,
		HardFactor:      1.2,
		EasyBonus:       1.3,
	}
}

// Schedule is the scheduling state produced by a grading event.
type Schedule struct {
	EaseFactor    float64
	IntervalDays  int
	ReviewCount   int
	LastStudiedAt time.Time
	NextReviewAt  time.Time
}

// ComputeNextSchedule computes the scheduling state that follows grading
// record with grade at the given time.
//
// GradeForget returns the record's current state unchanged: a forgotten word
// is requeued inside the running session and must not advance long-term
// scheduling. For the other grades the ease factor moves by a grade-dependent
// delta (floored at EaseFloor) and the interval grows monotonically in both
// grade and ease. The very first grading of a word always yields a one-day
// interval to force a near-term second exposure.
func (e *Engine) ComputeNextSchedule(record models.ReviewRecord, grade Grade, now time.Time) (Schedule, error) {
	if !grade.IsValid() {
		return Schedule{}, fmt.Errorf("%w: %d", ErrInvalidGrade, int(grade))
	}

	if grade == GradeForget {
		return Schedule{
			EaseFactor:    record.EaseFactor,
			IntervalDays:  record.IntervalDays,
			ReviewCount:   record.ReviewCount,
			LastStudiedAt: record.LastStudiedAt,
			NextReviewAt:  record.NextReviewAt,
		}, nil
	}

	newEF := record.EaseFactor + easeDelta(grade)
	if newEF < e.EaseFloor {
		newEF = e.EaseFloor
	}

	var nextInterval int
	if record.ReviewCount == 0 {
		// First exposure always comes back the next day
		nextInterval = 1
	} else {
		prev := record.IntervalDays
		if prev < 1 {
			prev = 1
		}
		switch grade {
		case GradeHard:
			nextInterval = int(math.Ceil(float64(prev) * e.HardFactor))
		case GradeNormal:
			nextInterval = int(math.Ceil(float64(prev) * newEF))
		case GradeEasy:
			nextInterval = int(math.Ceil(float64(prev) * newEF * e.EasyBonus))
		}
	}
	if nextInterval < 1 {
		nextInterval = 1
	}
	if nextInterval > e.MaxIntervalDays {
		nextInterval = e.MaxIntervalDays
	}

	return Schedule{
		EaseFactor:    newEF,
		IntervalDays:  nextInterval,
		ReviewCount:   record.ReviewCount + 1,
		LastStudiedAt: now,
		NextReviewAt:  now.AddDate(0, 0, nextInterval),
	}, nil
}

// easeDelta maps the four-grade scale onto the classic SM-2 ease formula
// EF' = EF + (0.1 - (5-q)*(0.08 + (5-q)*0.02)) with quality q in {3,4,5}:
// Hard lowers ease by 0.14, Normal keeps it, Easy raises it by 0.1.
func easeDelta(grade Grade) float64 {
	q := float64(grade) + 1 // Hard->3, Normal->4, Easy->5
	return 0.1 - (5.0-q)*(0.08+(5.0-q)*0.02)
}

// Apply copies a computed schedule onto a record and stamps the grade.
func Apply(record *models.ReviewRecord, grade Grade, s Schedule) {
	record.Familiarity = int(grade)
	record.EaseFactor = s.EaseFactor
	record.IntervalDays = s.IntervalDays
	record.ReviewCount = s.ReviewCount
	record.LastStudiedAt = s.LastStudiedAt
	record.NextReviewAt = s.NextReviewAt
}

// SelectDailyBatch builds the ordered batch for one session: all due items
// sorted by next review date ascending (stable, so equal due dates keep their
// fetched order), followed by at most dailyGoal new words in list order.
// The goal only bounds new-word introduction; due reviews are never capped.
func (e *Engine) SelectDailyBatch(due []models.StudyItem, fresh []models.Word, dailyGoal int) models.StudyBatch {
	batch := make(models.StudyBatch, 0, len(due)+dailyGoal)
	batch = append(batch, due...)

	sort.SliceStable(batch, func(i, j int) bool {
		ri, rj := batch[i].Record, batch[j].Record
		if ri == nil || rj == nil {
			return rj == nil && ri != nil
		}
		return ri.NextReviewAt.Before(rj.NextReviewAt)
	})

	if dailyGoal < 0 {
		dailyGoal = 0
	}
	if dailyGoal > len(fresh) {
		dailyGoal = len(fresh)
	}
	for _, w := range fresh[:dailyGoal] {
		batch = append(batch, models.StudyItem{Word: w})
	}

	return batch
}
