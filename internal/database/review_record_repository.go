package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/lexibot/pkg/models"
)

// ReviewRecordRepository handles database operations for review records
type ReviewRecordRepository struct{}

// NewReviewRecordRepository creates a new repository instance
func NewReviewRecordRepository() *ReviewRecordRepository {
	return &ReviewRecordRepository{}
}

// studyRow is the join of a word with the user's review record for it
type studyRow struct {
	models.Word
	RecordID      int64     `db:"record_id"`
	Familiarity   int       `db:"familiarity"`
	ReviewCount   int       `db:"review_count"`
	EaseFactor    float64   `db:"ease_factor"`
	IntervalDays  int       `db:"interval_days"`
	LastStudiedAt time.Time `db:"last_studied_at"`
	NextReviewAt  time.Time `db:"next_review_at"`
}

// FetchDue returns every word in the list whose next review date has passed
// for the user, joined with the review record, ordered by next review date.
func (r *ReviewRecordRepository) FetchDue(ctx context.Context, userID, listID int64, now time.Time) ([]models.StudyItem, error) {
	query := `
		SELECT w.id, w.list_id, w.term, w.definition, w.pronunciation, w.position,
			rr.id AS record_id, rr.familiarity, rr.review_count, rr.ease_factor,
			rr.interval_days, rr.last_studied_at, rr.next_review_at
		FROM review_records rr
		JOIN words w ON w.id = rr.word_id
		WHERE rr.user_id = ? AND rr.list_id = ? AND rr.next_review_at <= ?
		ORDER BY rr.next_review_at ASC, rr.id ASC
	`
	query = DB.Rebind(query)

	var rows []studyRow
	if err := DB.SelectContext(ctx, &rows, query, userID, listID, now); err != nil {
		return nil, fmt.Errorf("failed to get due words: %v", err)
	}

	items := make([]models.StudyItem, 0, len(rows))
	for _, row := range rows {
		rec := models.ReviewRecord{
			ID:            row.RecordID,
			UserID:        userID,
			ListID:        listID,
			WordID:        row.Word.ID,
			Familiarity:   row.Familiarity,
			ReviewCount:   row.ReviewCount,
			EaseFactor:    row.EaseFactor,
			IntervalDays:  row.IntervalDays,
			LastStudiedAt: row.LastStudiedAt,
			NextReviewAt:  row.NextReviewAt,
		}
		items = append(items, models.StudyItem{Word: row.Word, Record: &rec})
	}
	return items, nil
}

// FetchUnstarted returns up to limit words from the list that have no review
// record for the user yet, skipping excludeIDs, in list order.
func (r *ReviewRecordRepository) FetchUnstarted(ctx context.Context, userID, listID int64, excludeIDs []int64, limit int) ([]models.Word, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `
		SELECT w.id, w.list_id, w.term, w.definition, w.pronunciation, w.position, w.created_at, w.updated_at
		FROM words w
		LEFT JOIN review_records rr ON rr.word_id = w.id AND rr.user_id = ?
		WHERE w.list_id = ? AND rr.id IS NULL
	`
	args := []interface{}{userID, listID}

	if len(excludeIDs) > 0 {
		in, inArgs, err := sqlx.In("AND w.id NOT IN (?)", excludeIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to build exclusion clause: %v", err)
		}
		query += in
		args = append(args, inArgs...)
	}

	query += " ORDER BY w.position ASC, w.id ASC LIMIT ?"
	args = append(args, limit)
	query = DB.Rebind(query)

	var words []models.Word
	if err := DB.SelectContext(ctx, &words, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get unstarted words: %v", err)
	}
	return words, nil
}

// GetByUserAndWord returns the record for a specific user and word, or nil
// when the word is unseen.
func (r *ReviewRecordRepository) GetByUserAndWord(ctx context.Context, userID, wordID int64) (*models.ReviewRecord, error) {
	var rec models.ReviewRecord
	query := DB.Rebind("SELECT * FROM review_records WHERE user_id = ? AND word_id = ?")
	err := DB.GetContext(ctx, &rec, query, userID, wordID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review record: %v", err)
	}
	return &rec, nil
}

// Upsert creates or updates the record for its (user, word) pair
func (r *ReviewRecordRepository) Upsert(ctx context.Context, record *models.ReviewRecord) error {
	if isPostgres() {
		query := `
			INSERT INTO review_records (
				user_id, list_id, word_id, familiarity, review_count,
				ease_factor, interval_days, last_studied_at, next_review_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (user_id, word_id) DO UPDATE SET
				familiarity = EXCLUDED.familiarity,
				review_count = EXCLUDED.review_count,
				ease_factor = EXCLUDED.ease_factor,
				interval_days = EXCLUDED.interval_days,
				last_studied_at = EXCLUDED.last_studied_at,
				next_review_at = EXCLUDED.next_review_at,
				updated_at = NOW()
			RETURNING id
		`
		return DB.QueryRowContext(ctx, query,
			record.UserID,
			record.ListID,
			record.WordID,
			record.Familiarity,
			record.ReviewCount,
			record.EaseFactor,
			record.IntervalDays,
			record.LastStudiedAt,
			record.NextReviewAt,
		).Scan(&record.ID)
	}

	// SQLite: upsert, потом достаем id отдельным запросом
	query := `
		INSERT INTO review_records (
			user_id, list_id, word_id, familiarity, review_count,
			ease_factor, interval_days, last_studied_at, next_review_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, word_id) DO UPDATE SET
			familiarity = excluded.familiarity,
			review_count = excluded.review_count,
			ease_factor = excluded.ease_factor,
			interval_days = excluded.interval_days,
			last_studied_at = excluded.last_studied_at,
			next_review_at = excluded.next_review_at,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err := DB.ExecContext(ctx, query,
		record.UserID,
		record.ListID,
		record.WordID,
		record.Familiarity,
		record.ReviewCount,
		record.EaseFactor,
		record.IntervalDays,
		record.LastStudiedAt,
		record.NextReviewAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert review record: %v", err)
	}

	return DB.QueryRowContext(ctx,
		"SELECT id FROM review_records WHERE user_id = ? AND word_id = ?",
		record.UserID, record.WordID,
	).Scan(&record.ID)
}

// UserStatistics summarizes a user's overall progress
type UserStatistics struct {
	TotalWords    int     `db:"total_words"`
	DueToday      int     `db:"due_today"`
	Mastered      int     `db:"mastered"`
	AvgEaseFactor float64 `db:"avg_ease_factor"`
}

// GetUserStatistics returns statistics about a user's progress across lists.
// A word counts as mastered after five persisted reviews with the last grade
// Normal or better and an interval of at least 30 days.
func (r *ReviewRecordRepository) GetUserStatistics(ctx context.Context, userID int64) (*UserStatistics, error) {
	stats := &UserStatistics{}

	query := DB.Rebind("SELECT COUNT(*) FROM review_records WHERE user_id = ?")
	if err := DB.GetContext(ctx, &stats.TotalWords, query, userID); err != nil {
		return nil, fmt.Errorf("failed to count words in progress: %v", err)
	}

	query = DB.Rebind("SELECT COUNT(*) FROM review_records WHERE user_id = ? AND next_review_at <= ?")
	if err := DB.GetContext(ctx, &stats.DueToday, query, userID, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to count due words: %v", err)
	}

	query = DB.Rebind("SELECT COUNT(*) FROM review_records WHERE user_id = ? AND review_count >= 5 AND familiarity >= 3 AND interval_days >= 30")
	if err := DB.GetContext(ctx, &stats.Mastered, query, userID); err != nil {
		return nil, fmt.Errorf("failed to count mastered words: %v", err)
	}

	query = DB.Rebind("SELECT COALESCE(AVG(ease_factor), 2.5) FROM review_records WHERE user_id = ?")
	if err := DB.GetContext(ctx, &stats.AvgEaseFactor, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get average ease factor: %v", err)
	}

	return stats, nil
}

// ListProgress describes a user's standing within one word list
type ListProgress struct {
	ListID     int64  `db:"list_id"`
	ListName   string `db:"list_name"`
	TotalWords int    `db:"total_words"`
	Started    int    `db:"started"`
	Due        int    `db:"due"`
}

// GetListProgress returns per-list totals for the user's /stats view
func (r *ReviewRecordRepository) GetListProgress(ctx context.Context, userID int64) ([]ListProgress, error) {
	query := `
		SELECT wl.id AS list_id, wl.name AS list_name,
			COUNT(w.id) AS total_words,
			COUNT(rr.id) AS started,
			COUNT(CASE WHEN rr.next_review_at <= ? THEN 1 END) AS due
		FROM word_lists wl
		JOIN words w ON w.list_id = wl.id
		LEFT JOIN review_records rr ON rr.word_id = w.id AND rr.user_id = ?
		GROUP BY wl.id, wl.name
		ORDER BY wl.name
	`
	query = DB.Rebind(query)

	var progress []ListProgress
	if err := DB.SelectContext(ctx, &progress, query, time.Now(), userID); err != nil {
		return nil, fmt.Errorf("failed to get list progress: %v", err)
	}
	return progress, nil
}

// GetAllForUser returns every record the user has, joined with word terms,
// for the progress export.
func (r *ReviewRecordRepository) GetAllForUser(ctx context.Context, userID int64) ([]models.StudyItem, error) {
	query := `
		SELECT w.id, w.list_id, w.term, w.definition, w.pronunciation, w.position,
			rr.id AS record_id, rr.familiarity, rr.review_count, rr.ease_factor,
			rr.interval_days, rr.last_studied_at, rr.next_review_at
		FROM review_records rr
		JOIN words w ON w.id = rr.word_id
		WHERE rr.user_id = ?
		ORDER BY rr.next_review_at ASC
	`
	query = DB.Rebind(query)

	var rows []studyRow
	if err := DB.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get records for user: %v", err)
	}

	items := make([]models.StudyItem, 0, len(rows))
	for _, row := range rows {
		rec := models.ReviewRecord{
			ID:            row.RecordID,
			UserID:        userID,
			ListID:        row.Word.ListID,
			WordID:        row.Word.ID,
			Familiarity:   row.Familiarity,
			ReviewCount:   row.ReviewCount,
			EaseFactor:    row.EaseFactor,
			IntervalDays:  row.IntervalDays,
			LastStudiedAt: row.LastStudiedAt,
			NextReviewAt:  row.NextReviewAt,
		}
		items = append(items, models.StudyItem{Word: row.Word, Record: &rec})
	}
	return items, nil
}

// CountDueForUser returns how many words are due for the user right now,
// across all lists. Used by the reminder scheduler.
func (r *ReviewRecordRepository) CountDueForUser(ctx context.Context, userID int64, now time.Time) (int, error) {
	var count int
	query := DB.Rebind("SELECT COUNT(*) FROM review_records WHERE user_id = ? AND next_review_at <= ?")
	if err := DB.GetContext(ctx, &count, query, userID, now); err != nil {
		return 0, fmt.Errorf("failed to count due words: %v", err)
	}
	return count, nil
}
