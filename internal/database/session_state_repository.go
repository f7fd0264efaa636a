package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/lexibot/pkg/models"
)

// SessionStateRepository persists resumable session snapshots, one per
// (user, list) pair. The batch is stored as JSON; the session re-validates
// it against fresh store data on resume.
type SessionStateRepository struct{}

// NewSessionStateRepository creates a new repository instance
func NewSessionStateRepository() *SessionStateRepository {
	return &SessionStateRepository{}
}

// Save writes or replaces the snapshot for its (user, list) key
func (r *SessionStateRepository) Save(ctx context.Context, snapshot models.SessionSnapshot) error {
	batchJSON, err := json.Marshal(snapshot.Batch)
	if err != nil {
		return fmt.Errorf("failed to encode batch: %v", err)
	}

	var query string
	if isPostgres() {
		query = `
			INSERT INTO session_states (user_id, list_id, current_index, batch_json, saved_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id, list_id) DO UPDATE SET
				current_index = EXCLUDED.current_index,
				batch_json = EXCLUDED.batch_json,
				saved_at = EXCLUDED.saved_at
		`
	} else {
		query = `
			INSERT INTO session_states (user_id, list_id, current_index, batch_json, saved_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (user_id, list_id) DO UPDATE SET
				current_index = excluded.current_index,
				batch_json = excluded.batch_json,
				saved_at = excluded.saved_at
		`
	}

	_, err = DB.ExecContext(ctx, query,
		snapshot.UserID, snapshot.ListID, snapshot.CurrentIndex, string(batchJSON), snapshot.SavedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session state: %v", err)
	}
	return nil
}

// Load returns the snapshot for the pair, or nil when none is saved
func (r *SessionStateRepository) Load(ctx context.Context, userID, listID int64) (*models.SessionSnapshot, error) {
	var row struct {
		CurrentIndex int    `db:"current_index"`
		BatchJSON    string `db:"batch_json"`
	}
	query := DB.Rebind("SELECT current_index, batch_json FROM session_states WHERE user_id = ? AND list_id = ?")
	err := DB.GetContext(ctx, &row, query, userID, listID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session state: %v", err)
	}

	var batch models.StudyBatch
	if err := json.Unmarshal([]byte(row.BatchJSON), &batch); err != nil {
		return nil, fmt.Errorf("failed to decode batch: %v", err)
	}

	return &models.SessionSnapshot{
		UserID:       userID,
		ListID:       listID,
		CurrentIndex: row.CurrentIndex,
		Batch:        batch,
	}, nil
}

// Clear removes the snapshot for the pair. Clearing an absent key is not
// an error.
func (r *SessionStateRepository) Clear(ctx context.Context, userID, listID int64) error {
	query := DB.Rebind("DELETE FROM session_states WHERE user_id = ? AND list_id = ?")
	if _, err := DB.ExecContext(ctx, query, userID, listID); err != nil {
		return fmt.Errorf("failed to clear session state: %v", err)
	}
	return nil
}
