package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/lexibot/pkg/models"
)

// UserRepository handles database operations for users
type UserRepository struct{}

// NewUserRepository creates a new repository instance
func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

// GetByID returns a user by Telegram ID, or nil when unknown
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	query := DB.Rebind("SELECT * FROM users WHERE telegram_id = ?")
	err := DB.GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %v", err)
	}
	return &user, nil
}

// Upsert creates the user on first contact and refreshes the profile fields
// on later ones. Scheduling preferences are kept as they are.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	if user.DailyGoal == 0 {
		user.DailyGoal = 10
	}

	if isPostgres() {
		query := `
			INSERT INTO users (telegram_id, username, first_name, daily_goal)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (telegram_id) DO UPDATE SET
				username = EXCLUDED.username,
				first_name = EXCLUDED.first_name,
				updated_at = NOW()
		`
		if _, err := DB.ExecContext(ctx, query, user.ID, user.Username, user.FirstName, user.DailyGoal); err != nil {
			return fmt.Errorf("failed to upsert user: %v", err)
		}
		return nil
	}

	query := `
		INSERT INTO users (telegram_id, username, first_name, daily_goal)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (telegram_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := DB.ExecContext(ctx, query, user.ID, user.Username, user.FirstName, user.DailyGoal); err != nil {
		return fmt.Errorf("failed to upsert user: %v", err)
	}
	return nil
}

// UpdateDailyGoal sets how many new words the user wants per session
func (r *UserRepository) UpdateDailyGoal(ctx context.Context, userID int64, goal int) error {
	query := DB.Rebind("UPDATE users SET daily_goal = ? WHERE telegram_id = ?")
	if _, err := DB.ExecContext(ctx, query, goal, userID); err != nil {
		return fmt.Errorf("failed to update daily goal: %v", err)
	}
	return nil
}

// UpdateNotificationHour sets the hour of day for reminders and turns them
// back on if the user had switched them off.
func (r *UserRepository) UpdateNotificationHour(ctx context.Context, userID int64, hour int) error {
	query := DB.Rebind("UPDATE users SET notification_hour = ?, notification_enabled = ? WHERE telegram_id = ?")
	if _, err := DB.ExecContext(ctx, query, hour, true, userID); err != nil {
		return fmt.Errorf("failed to update notification hour: %v", err)
	}
	return nil
}

// SetNotificationEnabled turns reminders on or off
func (r *UserRepository) SetNotificationEnabled(ctx context.Context, userID int64, enabled bool) error {
	query := DB.Rebind("UPDATE users SET notification_enabled = ? WHERE telegram_id = ?")
	if _, err := DB.ExecContext(ctx, query, enabled, userID); err != nil {
		return fmt.Errorf("failed to update notification setting: %v", err)
	}
	return nil
}

// GetUsersForNotification returns users with reminders enabled for the hour
func (r *UserRepository) GetUsersForNotification(ctx context.Context, hour int) ([]models.User, error) {
	var users []models.User
	query := DB.Rebind("SELECT * FROM users WHERE notification_enabled = ? AND notification_hour = ?")
	if err := DB.SelectContext(ctx, &users, query, true, hour); err != nil {
		return nil, fmt.Errorf("failed to get users for notification: %v", err)
	}
	return users, nil
}
