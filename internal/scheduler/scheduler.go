package scheduler

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/example/lexibot/pkg/models"
)

// Default window within which reminders may be sent
const (
	DefaultReminderStartHour = 8
	DefaultReminderEndHour   = 22
)

// Notifier sends a due-words reminder to a user
type Notifier interface {
	SendReminder(userID int64, dueCount int) error
}

// userSource lists users whose reminder hour matches
type userSource interface {
	GetUsersForNotification(ctx context.Context, hour int) ([]models.User, error)
}

// dueCounter counts a user's currently due words
type dueCounter interface {
	CountDueForUser(ctx context.Context, userID int64, now time.Time) (int, error)
}

// Scheduler runs the hourly reminder job
type Scheduler struct {
	scheduler *gocron.Scheduler
	notifier  Notifier
	users     userSource
	records   dueCounter
	now       func() time.Time
}

// New creates a new scheduler instance
func New(notifier Notifier, users userSource, records dueCounter) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		notifier:  notifier,
		users:     users,
		records:   records,
		now:       time.Now,
	}
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start() {
	s.scheduler.Every(1).Hour().Do(s.checkAndSendReminders)
	s.scheduler.StartAsync()
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// checkAndSendReminders notifies every user whose reminder hour matches the
// current one and who has words waiting for review.
func (s *Scheduler) checkAndSendReminders() {
	now := s.now()
	currentHour := now.Hour()

	startHour, endHour := reminderWindow()
	if currentHour < startHour || currentHour > endHour {
		log.Printf("Current hour %d is outside reminder hours (%d-%d), skipping reminders",
			currentHour, startHour, endHour)
		return
	}

	ctx := context.Background()
	users, err := s.users.GetUsersForNotification(ctx, currentHour)
	if err != nil {
		log.Printf("Error getting users for notification: %v", err)
		return
	}

	for _, user := range users {
		count, err := s.records.CountDueForUser(ctx, user.ID, now)
		if err != nil {
			log.Printf("Error counting due words for user %d: %v", user.ID, err)
			continue
		}
		if count == 0 {
			continue
		}
		// Don't report more than the user's daily goal
		if user.DailyGoal > 0 && count > user.DailyGoal {
			count = user.DailyGoal
		}
		if err := s.notifier.SendReminder(user.ID, count); err != nil {
			log.Printf("Error sending reminder to user %d: %v", user.ID, err)
		}
	}
}

// reminderWindow reads the allowed hours from the environment, falling back
// to the defaults.
func reminderWindow() (int, int) {
	startHour := DefaultReminderStartHour
	endHour := DefaultReminderEndHour

	if v := os.Getenv("REMINDER_START_HOUR"); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h >= 0 && h <= 23 {
			startHour = h
		}
	}
	if v := os.Getenv("REMINDER_END_HOUR"); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h >= 0 && h <= 23 {
			endHour = h
		}
	}
	return startHour, endHour
}
