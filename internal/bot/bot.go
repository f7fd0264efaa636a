package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/lexibot/internal/database"
	"github.com/example/lexibot/internal/export"
	"github.com/example/lexibot/internal/session"
	"github.com/example/lexibot/internal/spaced_repetition"
	"github.com/example/lexibot/pkg/models"
)

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

var gradeKeyboard = createKeyboard([][]MenuButton{{
	{Text: "🔁 Forgot", CallbackData: "grade_1"},
	{Text: "😬 Hard", CallbackData: "grade_2"},
	{Text: "🙂 Normal", CallbackData: "grade_3"},
	{Text: "😎 Easy", CallbackData: "grade_4"},
}})

// activeSession pairs a running session with the list it studies
type activeSession struct {
	session *session.Session
	listID  int64
}

// Bot represents the Telegram bot application
type Bot struct {
	api    *tgbotapi.BotAPI
	config *BotConfig
	engine *spaced_repetition.Engine

	userRepo    *database.UserRepository
	wordRepo    *database.WordRepository
	recordRepo  *database.ReviewRecordRepository
	sessionRepo *database.SessionStateRepository

	mu       sync.Mutex
	sessions map[int64]*activeSession // keyed by chat ID
}

// New creates a new bot instance
func New() (*Bot, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is not set")
	}

	if database.DB == nil {
		return nil, fmt.Errorf("database connection is not established")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %v", err)
	}

	return &Bot{
		api:         api,
		config:      DefaultConfig(),
		engine:      spaced_repetition.NewEngine(),
		userRepo:    database.NewUserRepository(),
		wordRepo:    database.NewWordRepository(),
		recordRepo:  database.NewReviewRecordRepository(),
		sessionRepo: database.NewSessionStateRepository(),
		sessions:    make(map[int64]*activeSession),
	}, nil
}

// Start begins processing updates until the context is canceled
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.config.UpdateTimeout
	updates := b.api.GetUpdatesChan(u)

	log.Printf("Authorized as @%s", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

// Stop shuts down update polling
func (b *Bot) Stop(ctx context.Context) error {
	b.api.StopReceivingUpdates()
	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallbackQuery(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.handleStart(ctx, msg)
	case "lists":
		b.handleLists(ctx, chatID)
	case "study":
		b.handleStudy(ctx, chatID, msg.CommandArguments())
	case "pause":
		b.handlePause(ctx, chatID)
	case "restart":
		b.handleRestart(ctx, chatID)
	case "stats":
		b.handleStats(ctx, chatID)
	case "export":
		b.handleExport(ctx, chatID)
	case "goal":
		b.handleGoal(ctx, chatID, msg.CommandArguments())
	case "notify":
		b.handleNotify(ctx, chatID, msg.CommandArguments())
	case "newlist":
		b.handleNewList(ctx, chatID, msg.CommandArguments())
	case "addword":
		b.handleAddWord(ctx, chatID, msg.CommandArguments())
	case "find":
		b.handleFind(ctx, chatID, msg.CommandArguments())
	default:
		b.sendText(chatID, "Unknown command. Try /study, /lists, /stats, /export or /goal.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	user := b.userFromMessage(msg)
	if err := b.userRepo.Upsert(ctx, user); err != nil {
		log.Printf("Error upserting user %d: %v", user.ID, err)
	}

	b.sendText(msg.Chat.ID,
		"Welcome! I schedule your vocabulary reviews so words come back right before you forget them.\n\n"+
			"/lists — pick a word list to study\n"+
			"/study — continue studying\n"+
			"/pause — save the session for later\n"+
			"/stats — your progress\n"+
			"/export — progress as a spreadsheet\n"+
			"/goal N — new words per session\n"+
			"/notify H — daily reminder hour (or /notify off)\n"+
			"/newlist, /addword, /find — manage your word lists")
}

func (b *Bot) handleLists(ctx context.Context, chatID int64) {
	lists, err := b.wordRepo.GetLists(ctx)
	if err != nil {
		log.Printf("Error getting word lists: %v", err)
		b.sendText(chatID, "Could not load word lists, please try again.")
		return
	}
	if len(lists) == 0 {
		b.sendText(chatID, "No word lists yet.")
		return
	}

	var rows [][]MenuButton
	for _, list := range lists {
		rows = append(rows, []MenuButton{{
			Text:         list.Name,
			CallbackData: fmt.Sprintf("study_list_%d", list.ID),
		}})
	}

	reply := tgbotapi.NewMessage(chatID, "Pick a list to study:")
	reply.ReplyMarkup = createKeyboard(rows)
	b.send(reply)
}

// handleStudy resumes the chat's running session, or starts one for the
// named list, or falls back to the list picker.
func (b *Bot) handleStudy(ctx context.Context, chatID int64, args string) {
	b.mu.Lock()
	active := b.sessions[chatID]
	b.mu.Unlock()

	if active != nil && args == "" {
		b.presentCurrent(chatID)
		return
	}

	name := strings.TrimSpace(args)
	if name == "" {
		b.handleLists(ctx, chatID)
		return
	}

	list, err := b.wordRepo.GetListByName(ctx, name)
	if err != nil {
		log.Printf("Error getting list %q: %v", name, err)
		b.sendText(chatID, "Could not load that list, please try again.")
		return
	}
	if list == nil {
		b.sendText(chatID, fmt.Sprintf("No list named %q. See /lists.", name))
		return
	}
	b.startSession(ctx, chatID, list.ID)
}

func (b *Bot) startSession(ctx context.Context, chatID, listID int64) {
	goal := b.config.DefaultDailyGoal
	if user, err := b.userRepo.GetByID(ctx, chatID); err != nil {
		log.Printf("Error getting user %d: %v", chatID, err)
	} else if user != nil {
		goal = user.DailyGoal
	}

	s := session.New(session.Config{
		UserID:    chatID,
		ListID:    listID,
		DailyGoal: goal,
		Engine:    b.engine,
		Records:   b.recordRepo,
		Snapshots: b.sessionRepo,
	})

	if err := s.Start(ctx); err != nil {
		log.Printf("Error starting session for user %d list %d: %v", chatID, listID, err)
		if errors.Is(err, session.ErrDataIntegrity) {
			b.sendText(chatID, "Cannot load this session: the list data looks broken.")
		} else {
			b.sendText(chatID, "Could not load your session, please try /study again.")
		}
		return
	}

	if s.State() == session.StateComplete {
		b.sendText(chatID, "Nothing to study in this list today — all caught up! 🎉")
		return
	}

	b.mu.Lock()
	b.sessions[chatID] = &activeSession{session: s, listID: listID}
	b.mu.Unlock()

	done, total := s.Progress()
	if done > 0 {
		b.sendText(chatID, fmt.Sprintf("Resuming where you left off (%d of %d done).", done, total))
	} else {
		b.sendText(chatID, fmt.Sprintf("%d words today. Rate how well you remember each one.", total))
	}
	b.presentCurrent(chatID)
}

func (b *Bot) presentCurrent(chatID int64) {
	b.mu.Lock()
	active := b.sessions[chatID]
	b.mu.Unlock()
	if active == nil {
		b.sendText(chatID, "No session in progress. Use /study to begin.")
		return
	}

	item, err := active.session.Current()
	if err != nil {
		b.sendText(chatID, "No session in progress. Use /study to begin.")
		return
	}

	done, total := active.session.Progress()
	var sb strings.Builder
	fmt.Fprintf(&sb, "(%d/%d) *%s*\n\n%s", done+1, total, item.Word.Term, item.Word.Definition)
	if item.Word.Pronunciation != "" {
		fmt.Fprintf(&sb, "\n_%s_", item.Word.Pronunciation)
	}
	if item.NeedsReview {
		sb.WriteString("\n\n🔁 You forgot this one earlier — try again.")
	}

	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = gradeKeyboard
	b.send(msg)
}

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	chatID := callback.Message.Chat.ID

	// Acknowledge the button press
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		log.Printf("Error answering callback: %v", err)
	}

	data := callback.Data
	switch {
	case strings.HasPrefix(data, "study_list_"):
		listID, err := strconv.ParseInt(strings.TrimPrefix(data, "study_list_"), 10, 64)
		if err != nil {
			log.Printf("Invalid list callback %q: %v", data, err)
			return
		}
		b.startSession(ctx, chatID, listID)

	case strings.HasPrefix(data, "grade_"):
		g, err := strconv.Atoi(strings.TrimPrefix(data, "grade_"))
		if err != nil {
			log.Printf("Invalid grade callback %q: %v", data, err)
			return
		}
		b.handleGrade(ctx, chatID, spaced_repetition.Grade(g))
	}
}

func (b *Bot) handleGrade(ctx context.Context, chatID int64, grade spaced_repetition.Grade) {
	b.mu.Lock()
	active := b.sessions[chatID]
	b.mu.Unlock()
	if active == nil {
		b.sendText(chatID, "No session in progress. Use /study to begin.")
		return
	}

	err := active.session.Grade(ctx, grade)
	switch {
	case errors.Is(err, session.ErrConcurrentGrading):
		// Previous answer still being saved; the button press is dropped.
		return
	case errors.Is(err, session.ErrPersistence):
		log.Printf("Error saving grade for user %d: %v", chatID, err)
		b.sendText(chatID, "Could not save that answer — press the button again.")
		return
	case errors.Is(err, session.ErrNotPresenting):
		b.sendText(chatID, "No session in progress. Use /study to begin.")
		return
	case err != nil:
		log.Printf("Error grading for user %d: %v", chatID, err)
		return
	}

	if active.session.State() == session.StateComplete {
		b.mu.Lock()
		delete(b.sessions, chatID)
		b.mu.Unlock()
		_, total := active.session.Progress()
		b.sendText(chatID, fmt.Sprintf("Session complete — %d words done. See you at the next review! 🎉", total))
		return
	}
	b.presentCurrent(chatID)
}

func (b *Bot) handlePause(ctx context.Context, chatID int64) {
	b.mu.Lock()
	active := b.sessions[chatID]
	b.mu.Unlock()
	if active == nil {
		b.sendText(chatID, "No session in progress.")
		return
	}

	if err := active.session.Pause(ctx); err != nil {
		log.Printf("Error pausing session for user %d: %v", chatID, err)
		b.sendText(chatID, "Could not save the session, please try again.")
		return
	}

	b.mu.Lock()
	delete(b.sessions, chatID)
	b.mu.Unlock()
	b.sendText(chatID, "Session saved. /study picks up right where you stopped.")
}

func (b *Bot) handleRestart(ctx context.Context, chatID int64) {
	b.mu.Lock()
	active := b.sessions[chatID]
	b.mu.Unlock()
	if active == nil {
		b.sendText(chatID, "No session in progress. Use /study to begin.")
		return
	}

	if err := active.session.Restart(ctx); err != nil {
		log.Printf("Error restarting session for user %d: %v", chatID, err)
		b.sendText(chatID, "Could not restart the session, please try again.")
		return
	}

	if active.session.State() == session.StateComplete {
		b.mu.Lock()
		delete(b.sessions, chatID)
		b.mu.Unlock()
		b.sendText(chatID, "Nothing to study in this list today.")
		return
	}
	b.sendText(chatID, "Starting over.")
	b.presentCurrent(chatID)
}

func (b *Bot) handleStats(ctx context.Context, chatID int64) {
	stats, err := b.recordRepo.GetUserStatistics(ctx, chatID)
	if err != nil {
		log.Printf("Error getting statistics for user %d: %v", chatID, err)
		b.sendText(chatID, "Could not load your statistics, please try again.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 *Your progress*\n\n")
	fmt.Fprintf(&sb, "Words in training: %d\n", stats.TotalWords)
	fmt.Fprintf(&sb, "Due now: %d\n", stats.DueToday)
	fmt.Fprintf(&sb, "Mastered: %d\n", stats.Mastered)
	fmt.Fprintf(&sb, "Average ease: %.2f\n", stats.AvgEaseFactor)

	if progress, err := b.recordRepo.GetListProgress(ctx, chatID); err == nil && len(progress) > 0 {
		sb.WriteString("\n*By list:*\n")
		for _, p := range progress {
			fmt.Fprintf(&sb, "%s — %d/%d started, %d due\n", p.ListName, p.Started, p.TotalWords, p.Due)
		}
	}

	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ParseMode = tgbotapi.ModeMarkdown
	b.send(msg)
}

func (b *Bot) handleExport(ctx context.Context, chatID int64) {
	items, err := b.recordRepo.GetAllForUser(ctx, chatID)
	if err != nil {
		log.Printf("Error loading records for export, user %d: %v", chatID, err)
		b.sendText(chatID, "Could not prepare the export, please try again.")
		return
	}
	if len(items) == 0 {
		b.sendText(chatID, "Nothing to export yet — study some words first.")
		return
	}

	var buf bytes.Buffer
	if err := export.WriteProgress(&buf, items); err != nil {
		log.Printf("Error writing export for user %d: %v", chatID, err)
		b.sendText(chatID, "Could not prepare the export, please try again.")
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("progress-%s.xlsx", time.Now().Format("2006-01-02")),
		Bytes: buf.Bytes(),
	})
	if _, err := b.api.Send(doc); err != nil {
		log.Printf("Error sending export to user %d: %v", chatID, err)
	}
}

func (b *Bot) handleGoal(ctx context.Context, chatID int64, args string) {
	goal, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil || goal < 0 || goal > 100 {
		b.sendText(chatID, "Usage: /goal N — where N is 0-100 new words per session.")
		return
	}
	if err := b.userRepo.UpdateDailyGoal(ctx, chatID, goal); err != nil {
		log.Printf("Error updating daily goal for user %d: %v", chatID, err)
		b.sendText(chatID, "Could not save the goal, please try again.")
		return
	}
	b.sendText(chatID, fmt.Sprintf("Daily goal set to %d new words.", goal))
}

// handleNotify sets the reminder hour, or disables reminders with "off"
func (b *Bot) handleNotify(ctx context.Context, chatID int64, args string) {
	arg := strings.ToLower(strings.TrimSpace(args))
	if arg == "off" {
		if err := b.userRepo.SetNotificationEnabled(ctx, chatID, false); err != nil {
			log.Printf("Error disabling reminders for user %d: %v", chatID, err)
			b.sendText(chatID, "Could not save the setting, please try again.")
			return
		}
		b.sendText(chatID, "Reminders are off. /notify H turns them back on.")
		return
	}

	hour, err := strconv.Atoi(arg)
	if err != nil || hour < 0 || hour > 23 {
		b.sendText(chatID, "Usage: /notify H — reminder hour 0-23 (UTC), or /notify off.")
		return
	}
	if err := b.userRepo.UpdateNotificationHour(ctx, chatID, hour); err != nil {
		log.Printf("Error updating reminder hour for user %d: %v", chatID, err)
		b.sendText(chatID, "Could not save the setting, please try again.")
		return
	}
	b.sendText(chatID, fmt.Sprintf("Daily reminder set to %02d:00 UTC.", hour))
}

func (b *Bot) handleNewList(ctx context.Context, chatID int64, args string) {
	name := strings.TrimSpace(args)
	if name == "" {
		b.sendText(chatID, "Usage: /newlist name")
		return
	}

	existing, err := b.wordRepo.GetListByName(ctx, name)
	if err != nil {
		log.Printf("Error checking list %q: %v", name, err)
		b.sendText(chatID, "Could not create the list, please try again.")
		return
	}
	if existing != nil {
		b.sendText(chatID, fmt.Sprintf("List %q already exists.", name))
		return
	}

	list := &models.WordList{Name: name}
	if err := b.wordRepo.CreateList(ctx, list); err != nil {
		log.Printf("Error creating list %q: %v", name, err)
		b.sendText(chatID, "Could not create the list, please try again.")
		return
	}
	b.sendText(chatID, fmt.Sprintf("List %q created. Add words with /addword %s | term | definition", name, name))
}

// handleAddWord adds one word: /addword list | term | definition [| pronunciation]
func (b *Bot) handleAddWord(ctx context.Context, chatID int64, args string) {
	parts := strings.Split(args, "|")
	if len(parts) < 3 {
		b.sendText(chatID, "Usage: /addword list | term | definition [| pronunciation]")
		return
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	list, err := b.wordRepo.GetListByName(ctx, parts[0])
	if err != nil {
		log.Printf("Error getting list %q: %v", parts[0], err)
		b.sendText(chatID, "Could not add the word, please try again.")
		return
	}
	if list == nil {
		b.sendText(chatID, fmt.Sprintf("No list named %q. Create it with /newlist %s", parts[0], parts[0]))
		return
	}

	word := &models.Word{ListID: list.ID, Term: parts[1], Definition: parts[2]}
	if word.Term == "" || word.Definition == "" {
		b.sendText(chatID, "Both term and definition are required.")
		return
	}
	if len(parts) > 3 {
		word.Pronunciation = parts[3]
	}

	if err := b.wordRepo.Create(ctx, word); err != nil {
		log.Printf("Error creating word %q: %v", word.Term, err)
		b.sendText(chatID, "Could not add the word — maybe it is already in the list.")
		return
	}
	b.sendText(chatID, fmt.Sprintf("Added *%s* to %q.", word.Term, list.Name))
}

func (b *Bot) handleFind(ctx context.Context, chatID int64, args string) {
	pattern := strings.TrimSpace(args)
	if pattern == "" {
		b.sendText(chatID, "Usage: /find text")
		return
	}

	words, err := b.wordRepo.Search(ctx, pattern)
	if err != nil {
		log.Printf("Error searching for %q: %v", pattern, err)
		b.sendText(chatID, "Search failed, please try again.")
		return
	}
	if len(words) == 0 {
		b.sendText(chatID, "No matching words.")
		return
	}

	var sb strings.Builder
	for i, w := range words {
		if i == 10 {
			fmt.Fprintf(&sb, "…and %d more\n", len(words)-10)
			break
		}
		fmt.Fprintf(&sb, "*%s* — %s\n", w.Term, w.Definition)
	}
	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ParseMode = tgbotapi.ModeMarkdown
	b.send(msg)
}

// SendReminder implements the scheduler's Notifier interface
func (b *Bot) SendReminder(userID int64, dueCount int) error {
	word := "words"
	if dueCount == 1 {
		word = "word"
	}
	msg := tgbotapi.NewMessage(userID, fmt.Sprintf("⏰ %d %s waiting for review. /study when you're ready!", dueCount, word))
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send reminder: %v", err)
	}
	return nil
}

func (b *Bot) userFromMessage(msg *tgbotapi.Message) *models.User {
	user := &models.User{ID: msg.Chat.ID}
	if msg.From != nil {
		user.Username = msg.From.UserName
		user.FirstName = msg.From.FirstName
	}
	return user
}

func (b *Bot) sendText(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(msg tgbotapi.MessageConfig) {
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Error sending message to %d: %v", msg.ChatID, err)
	}
}
