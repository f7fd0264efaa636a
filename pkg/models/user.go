package models

import "time"

// User represents a Telegram user of the trainer
type User struct {
	ID                  int64     `json:"id" db:"telegram_id"` // Telegram chat ID doubles as the user ID
	Username            string    `json:"username" db:"username"`
	FirstName           string    `json:"first_name" db:"first_name"`
	DailyGoal           int       `json:"daily_goal" db:"daily_goal"` // Max new words introduced per session
	NotificationEnabled bool      `json:"notification_enabled" db:"notification_enabled"`
	NotificationHour    int       `json:"notification_hour" db:"notification_hour"` // Hour of day for reminders (0-23)
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}
