package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/lexibot/pkg/models"
)

// WordRepository handles database operations for word lists and words
type WordRepository struct{}

// NewWordRepository creates a new repository instance
func NewWordRepository() *WordRepository {
	return &WordRepository{}
}

// GetLists returns all word lists
func (r *WordRepository) GetLists(ctx context.Context) ([]models.WordList, error) {
	var lists []models.WordList
	if err := DB.SelectContext(ctx, &lists, "SELECT * FROM word_lists ORDER BY name"); err != nil {
		return nil, fmt.Errorf("failed to get word lists: %v", err)
	}
	return lists, nil
}

// GetListByID returns a word list by ID
func (r *WordRepository) GetListByID(ctx context.Context, id int64) (*models.WordList, error) {
	var list models.WordList
	query := DB.Rebind("SELECT * FROM word_lists WHERE id = ?")
	err := DB.GetContext(ctx, &list, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get word list: %v", err)
	}
	return &list, nil
}

// GetListByName returns a word list by its unique name, or nil when absent
func (r *WordRepository) GetListByName(ctx context.Context, name string) (*models.WordList, error) {
	var list models.WordList
	query := DB.Rebind("SELECT * FROM word_lists WHERE name = ?")
	err := DB.GetContext(ctx, &list, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get word list by name: %v", err)
	}
	return &list, nil
}

// CreateList inserts a new word list
func (r *WordRepository) CreateList(ctx context.Context, list *models.WordList) error {
	if isPostgres() {
		return DB.QueryRowContext(ctx,
			"INSERT INTO word_lists (name) VALUES ($1) RETURNING id, created_at, updated_at",
			list.Name,
		).Scan(&list.ID, &list.CreatedAt, &list.UpdatedAt)
	}

	result, err := DB.ExecContext(ctx, "INSERT INTO word_lists (name) VALUES (?)", list.Name)
	if err != nil {
		return fmt.Errorf("failed to create word list: %v", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %v", err)
	}
	list.ID = id

	return DB.QueryRowContext(ctx,
		"SELECT created_at, updated_at FROM word_lists WHERE id = ?", list.ID,
	).Scan(&list.CreatedAt, &list.UpdatedAt)
}

// GetByList returns the words of a list in insertion order
func (r *WordRepository) GetByList(ctx context.Context, listID int64) ([]models.Word, error) {
	var words []models.Word
	query := DB.Rebind("SELECT * FROM words WHERE list_id = ? ORDER BY position ASC, id ASC")
	if err := DB.SelectContext(ctx, &words, query, listID); err != nil {
		return nil, fmt.Errorf("failed to get words by list: %v", err)
	}
	return words, nil
}

// GetByID returns a word by ID
func (r *WordRepository) GetByID(ctx context.Context, id int64) (*models.Word, error) {
	var word models.Word
	query := DB.Rebind("SELECT * FROM words WHERE id = ?")
	if err := DB.GetContext(ctx, &word, query, id); err != nil {
		return nil, fmt.Errorf("failed to get word by ID: %v", err)
	}
	return &word, nil
}

// Create inserts a new word at the end of its list
func (r *WordRepository) Create(ctx context.Context, word *models.Word) error {
	if word.Position == 0 {
		query := DB.Rebind("SELECT COALESCE(MAX(position), 0) + 1 FROM words WHERE list_id = ?")
		if err := DB.QueryRowContext(ctx, query, word.ListID).Scan(&word.Position); err != nil {
			return fmt.Errorf("failed to get next position: %v", err)
		}
	}

	if isPostgres() {
		query := `
			INSERT INTO words (list_id, term, definition, pronunciation, position)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at, updated_at
		`
		return DB.QueryRowContext(ctx, query,
			word.ListID, word.Term, word.Definition, word.Pronunciation, word.Position,
		).Scan(&word.ID, &word.CreatedAt, &word.UpdatedAt)
	}

	result, err := DB.ExecContext(ctx,
		"INSERT INTO words (list_id, term, definition, pronunciation, position) VALUES (?, ?, ?, ?, ?)",
		word.ListID, word.Term, word.Definition, word.Pronunciation, word.Position,
	)
	if err != nil {
		return fmt.Errorf("failed to create word: %v", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %v", err)
	}
	word.ID = id

	return DB.QueryRowContext(ctx,
		"SELECT created_at, updated_at FROM words WHERE id = ?", word.ID,
	).Scan(&word.CreatedAt, &word.UpdatedAt)
}

// Update modifies an existing word
func (r *WordRepository) Update(ctx context.Context, word *models.Word) error {
	stamp := "CURRENT_TIMESTAMP"
	if isPostgres() {
		stamp = "NOW()"
	}
	query := DB.Rebind(fmt.Sprintf(`
		UPDATE words SET term = ?, definition = ?, pronunciation = ?, position = ?, updated_at = %s
		WHERE id = ?
	`, stamp))
	_, err := DB.ExecContext(ctx, query,
		word.Term, word.Definition, word.Pronunciation, word.Position, word.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update word: %v", err)
	}
	return nil
}

// Delete removes a word
func (r *WordRepository) Delete(ctx context.Context, id int64) error {
	query := DB.Rebind("DELETE FROM words WHERE id = ?")
	if _, err := DB.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete word: %v", err)
	}
	return nil
}

// Search finds words whose term or definition matches the pattern
func (r *WordRepository) Search(ctx context.Context, pattern string) ([]models.Word, error) {
	like := "%" + pattern + "%"
	query := DB.Rebind(`
		SELECT * FROM words
		WHERE LOWER(term) LIKE LOWER(?) OR LOWER(definition) LIKE LOWER(?)
		ORDER BY term
	`)
	var words []models.Word
	if err := DB.SelectContext(ctx, &words, query, like, like); err != nil {
		return nil, fmt.Errorf("failed to search words: %v", err)
	}
	return words, nil
}
