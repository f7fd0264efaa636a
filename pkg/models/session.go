package models

import "time"

// StudyItem is one entry of a study batch: a word plus the user's current
// scheduling state for it. Record is nil for words never graded before.
type StudyItem struct {
	Word        Word          `json:"word"`
	Record      *ReviewRecord `json:"record,omitempty"`
	NeedsReview bool          `json:"needs_review"` // Set when the item was forgotten earlier in this session
}

// StudyBatch is the frozen, ordered sequence of items for one session:
// due reviews first (earliest due date first), then new words in list order.
type StudyBatch []StudyItem

// SessionSnapshot is the resumable state persisted when a session is paused.
type SessionSnapshot struct {
	UserID       int64      `json:"user_id"`
	ListID       int64      `json:"list_id"`
	CurrentIndex int        `json:"current_index"`
	Batch        StudyBatch `json:"batch"`
	SavedAt      time.Time  `json:"saved_at"`
}
