package session

import (
	"context"
	"time"

	"github.com/example/lexibot/pkg/models"
)

// RecordStore is the persistence boundary for review records. The orchestrator
// never performs I/O itself; implementations live in internal/database.
type RecordStore interface {
	// FetchDue returns every word in the list whose review is due at now,
	// joined with its review record, in storage order.
	FetchDue(ctx context.Context, userID, listID int64, now time.Time) ([]models.StudyItem, error)
	// FetchUnstarted returns up to limit words from the list that the user
	// has never been graded on, skipping excludeIDs, in list order.
	FetchUnstarted(ctx context.Context, userID, listID int64, excludeIDs []int64, limit int) ([]models.Word, error)
	// Upsert writes the record for its (user, word) pair atomically.
	Upsert(ctx context.Context, record *models.ReviewRecord) error
}

// SnapshotStore is the resumable key-value store for paused sessions,
// keyed by (user, list).
type SnapshotStore interface {
	Save(ctx context.Context, snapshot models.SessionSnapshot) error
	// Load returns nil when no snapshot exists for the pair.
	Load(ctx context.Context, userID, listID int64) (*models.SessionSnapshot, error)
	Clear(ctx context.Context, userID, listID int64) error
}
