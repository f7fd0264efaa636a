package models

import "time"

// Default scheduling state for a word that has never been graded.
const (
	DefaultEaseFactor   = 2.5
	DefaultIntervalDays = 1
)

// ReviewRecord tracks one user's scheduling state for one word.
// A record only exists once the word has been graded at least once;
// absence of a record means the word is unseen.
type ReviewRecord struct {
	ID            int64     `json:"id" db:"id"`
	UserID        int64     `json:"user_id" db:"user_id"`
	ListID        int64     `json:"list_id" db:"list_id"`
	WordID        int64     `json:"word_id" db:"word_id"`
	Familiarity   int       `json:"familiarity" db:"familiarity"`     // Last grade given (1-4), 0 before first grading
	ReviewCount   int       `json:"review_count" db:"review_count"`   // Number of persisted gradings
	EaseFactor    float64   `json:"ease_factor" db:"ease_factor"`     // Interval growth multiplier, floored at 1.3
	IntervalDays  int       `json:"interval_days" db:"interval_days"` // Days until the next review
	LastStudiedAt time.Time `json:"last_studied_at" db:"last_studied_at"`
	NextReviewAt  time.Time `json:"next_review_at" db:"next_review_at"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// NewReviewRecord returns the unseen default state for a (user, word) pair.
func NewReviewRecord(userID, listID, wordID int64) ReviewRecord {
	return ReviewRecord{
		UserID:       userID,
		ListID:       listID,
		WordID:       wordID,
		EaseFactor:   DefaultEaseFactor,
		IntervalDays: DefaultIntervalDays,
	}
}

// IsDue reports whether the record is due for review at the given time.
func (r ReviewRecord) IsDue(now time.Time) bool {
	return !r.NextReviewAt.After(now)
}
