package tgbot

import (
	"context"
	"fmt"
	"strings"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmhodges/clock"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"taskbot/db"
	"taskbot/scheduler"
)

var clk = clock.New()

const (
	txtWelcomeMessage = "👋 Hello %s!\n\n" +
		"Welcome to the Task Management Bot!\n\n" +
		"<b>Available Commands:</b>\n" +
		"• /start - Register/update your profile\n" +
		"• /add_task - Add a new task (in groups)\n" +
		"• /my_tasks - View your assigned tasks\n" +
		"• /edit_task_reminders - Customize reminder settings for your tasks\n\n" +
		"<b>Note:</b> You will receive reminders by default. " +
		"Use /reminders off to opt out!"
	txtHelpMessage = "🤖 <b>Task Management Bot Help</b>\n\n" +
		"<b>Available Commands:</b>\n" +
		"• /start - Register/update your profile\n" +
		"• /help - Show this help message\n" +
		"• /add_task \"task name\" @user1 @user2 YYYY-MM-DD HH:MM [60,30,15] - Add a task (in groups)\n" +
		"• /my_tasks [new|in_progress|done] - View your assigned tasks\n" +
		"• /update_status TK0001 new|in_progress|done - Update task status\n" +
		"• /delete_task TK0001 - Delete a task\n" +
		"• /edit_task_reminders TK0001 60,30,15 - Customize reminders (or 'off')\n" +
		"• /reminders on|off - Opt in or out of reminder mentions\n\n" +
		"<b>Task Codes:</b>\n" +
		"Each task has a unique code (e.g., TK0001) for easy reference.\n\n" +
		"All times are in UTC."
	txtGroupOnly          = "⚠️ Sorry, this command only works in group chats. Please try it in a group!"
	txtAddTaskUsage       = "❌ <b>Usage:</b>\n/add_task \"task name\" @user1 @user2 YYYY-MM-DD HH:MM [60,30,15]"
	txtNoKnownAssignees   = "❌ I don't know any of those users yet. Ask them to send me /start first!"
	txtTaskCreateFailed   = "❌ Something went wrong while creating your task. Please try again!"
	txtNoActiveTasks      = "📭 You have no active tasks assigned to you."
	txtTaskNotFound       = "❌ That task code doesn't exist. Please check your task list!"
	txtStatusUsage        = "❌ <b>Usage:</b>\n/update_status TK0001 new|in_progress|done"
	txtDeleteUsage        = "❌ <b>Usage:</b>\n/delete_task TK0001"
	txtRemindersUsage     = "❌ <b>Usage:</b>\n/reminders on|off"
	txtEditUsage          = "❌ <b>Usage:</b>\n/edit_task_reminders TK0001 60,30,15 (or 'off')"
	txtInvalidTimes       = "❌ I didn't understand those reminder times. Please use positive numbers separated by commas."
	txtUpdateFailed       = "❌ Something went wrong updating your reminders. Please try again."
	txtNotRegistered      = "❌ Error: Please use /start first to register."
	txtUnknownCommand     = "I don't know this command. Use /help to list commands I know"
	txtErrAccessingStore  = "Oops, I couldn't reach the task list. Please try again later"
	txtRemindersOn        = "✅ You have opted in to receive task reminders!"
	txtRemindersOff       = "🔕 You won't be mentioned in task reminders anymore."
	txtNoReminders        = "🔕 No reminders scheduled"
	fmtPastDueDate        = "⚠️ The due date needs to be in the future. I understood: %s"
	fmtRemindersDisabled  = "✅ <b>Reminders turned off for:</b> %s\n\n🔕 You won't get any reminders for this task."
	fmtRemindersUpdated   = "✅ <b>Reminders set for:</b> %s\n\n🔔 You'll be reminded %s before it's due."
	fmtTaskDeleted        = "🗑 Task <b>%s</b> deleted."
	fmtStatusUpdated      = "✅ Task <b>%s</b> is now <b>%s</b>."
	fmtTaskCreated        = "✅ <b>Task Created!</b>\n\n📋 <b>Task:</b> %s\n🔢 <b>Task Code:</b> %s\n👥 <b>Assigned to:</b> %s\n⏰ <b>Due:</b> %s\n%s"
	fmtTaskLine           = "• [<code>%s</code>] %s — due %s (%s)\n"
	fmtRemindersScheduled = "🔔 Reminders: %s before"
)

const dueDateFormat = "2006-01-02 15:04 UTC"

// TBot handles chat commands and doubles as the scheduler's Notifier.
type TBot struct {
	api            *tg.BotAPI
	db             *db.Database
	logger         *zap.SugaredLogger
	breaker        *gobreaker.CircuitBreaker
	defaultOffsets []int
}

func New(token string, d *db.Database, defaultOffsets []int, l *zap.SugaredLogger) (*TBot, error) {
	api, err := tg.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize Telegram Bot")
	}

	api.Debug = false
	l.Infof("authorized on account %q", api.Self.UserName)

	return &TBot{
		api:            api,
		db:             d,
		logger:         l,
		breaker:        gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "telegram-send"}),
		defaultOffsets: defaultOffsets,
	}, nil
}

// Send delivers a reminder to the chat. The breaker makes a deterministically
// failing chat (bot kicked, chat deleted) fail fast instead of hammering the
// API; the scheduler marks the reminder sent either way.
func (b *TBot) Send(chatID int64, text string) error {
	_, err := b.breaker.Execute(func() (any, error) {
		msg := tg.NewMessage(chatID, text)
		msg.ParseMode = tg.ModeHTML
		return b.api.Send(msg)
	})
	return err
}

var _ scheduler.Notifier = (*TBot)(nil)

// Run processes incoming updates until the update channel closes.
func (b *TBot) Run() {
	uCfg := tg.NewUpdate(0)
	uCfg.Timeout = 60

	for u := range b.api.GetUpdatesChan(uCfg) {
		if u.Message == nil || !u.Message.IsCommand() {
			continue
		}
		go b.HandleCommand(u.Message)
	}
}

func (b *TBot) HandleCommand(msg *tg.Message) {
	ctx := context.Background()

	switch msg.Command() {
	case "start":
		b.onStart(ctx, msg)
	case "help":
		b.reply(msg, txtHelpMessage)
	case "add_task":
		b.onAddTask(ctx, msg)
	case "my_tasks":
		b.onMyTasks(ctx, msg)
	case "update_status":
		b.onUpdateStatus(ctx, msg)
	case "delete_task":
		b.onDeleteTask(ctx, msg)
	case "edit_task_reminders":
		b.onEditTaskReminders(ctx, msg)
	case "reminders":
		b.onReminders(ctx, msg)
	default:
		b.reply(msg, txtUnknownCommand)
	}
}

func (b *TBot) onStart(ctx context.Context, msg *tg.Message) {
	from := msg.From
	err := b.db.UpsertUser(ctx, db.User{
		ID:        from.ID,
		Username:  from.UserName,
		FirstName: from.FirstName,
		LastName:  from.LastName,
	})
	if err != nil {
		b.logger.Errorw("failed registering user", "user", from.ID, "err", err)
		b.reply(msg, txtErrAccessingStore)
		return
	}

	b.reply(msg, fmt.Sprintf(txtWelcomeMessage, from.FirstName))
}

func (b *TBot) onAddTask(ctx context.Context, msg *tg.Message) {
	if !msg.Chat.IsGroup() && !msg.Chat.IsSuperGroup() {
		b.reply(msg, txtGroupOnly)
		return
	}

	req, err := parseAddTask(msg.CommandArguments())
	if err != nil {
		b.reply(msg, txtAddTaskUsage)
		return
	}

	now := clk.Now().UTC()
	if !req.dueAt.After(now) {
		b.reply(msg, fmt.Sprintf(fmtPastDueDate, req.dueAt.Format(dueDateFormat)))
		return
	}

	users, err := b.db.UsersByUsernames(ctx, req.usernames)
	if err != nil {
		b.logger.Errorw("failed resolving assignees", "err", err)
		b.reply(msg, txtErrAccessingStore)
		return
	}
	if len(users) == 0 {
		b.reply(msg, txtNoKnownAssignees)
		return
	}

	offsets := req.offsets
	if offsets == nil {
		offsets = b.defaultOffsets
	}

	ids := make([]int64, len(users))
	mentions := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
		mentions[i] = scheduler.Mention(u)
	}

	task, err := b.db.CreateTask(ctx, req.name, msg.Chat.ID, req.dueAt, ids, offsets)
	if err != nil {
		b.logger.Errorw("failed creating task", "err", err)
		b.reply(msg, txtTaskCreateFailed)
		return
	}

	b.reply(msg, fmt.Sprintf(fmtTaskCreated,
		task.Name, task.Code, strings.Join(mentions, ", "),
		task.DueAt.Format(dueDateFormat), reminderSummary(offsets)))
}

func reminderSummary(offsets []int) string {
	if len(offsets) == 0 {
		return txtNoReminders
	}
	return fmt.Sprintf(fmtRemindersScheduled, offsetPhrases(offsets))
}

func offsetPhrases(offsets []int) string {
	parts := make([]string, len(offsets))
	for i, m := range offsets {
		parts[i] = scheduler.OffsetPhrase(m)
	}
	return strings.Join(parts, ", ")
}

func (b *TBot) onMyTasks(ctx context.Context, msg *tg.Message) {
	var status *db.TaskStatus
	if arg := strings.TrimSpace(msg.CommandArguments()); arg != "" {
		st, err := db.ParseStatus(arg)
		if err != nil {
			b.reply(msg, txtHelpMessage)
			return
		}
		status = &st
	}

	tasks, err := b.db.TasksForUser(ctx, msg.From.ID, status)
	if err != nil {
		b.logger.Errorw("failed fetching tasks", "user", msg.From.ID, "err", err)
		b.reply(msg, txtErrAccessingStore)
		return
	}
	if len(tasks) == 0 {
		b.reply(msg, txtNoActiveTasks)
		return
	}

	var sb strings.Builder
	sb.WriteString("📋 <b>Your Tasks:</b>\n\n")
	for _, t := range tasks {
		sb.WriteString(fmt.Sprintf(fmtTaskLine, t.Code, t.Name, t.DueAt.Format(dueDateFormat), t.Status))
	}
	b.reply(msg, sb.String())
}

func (b *TBot) onUpdateStatus(ctx context.Context, msg *tg.Message) {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		b.reply(msg, txtStatusUsage)
		return
	}

	status, err := db.ParseStatus(args[1])
	if err != nil {
		b.reply(msg, txtStatusUsage)
		return
	}

	code := normalizeCode(args[0])
	ok, err := b.db.UpdateTaskStatus(ctx, code, status)
	if err != nil {
		b.logger.Errorw("failed updating status", "task", code, "err", err)
		b.reply(msg, txtErrAccessingStore)
		return
	}
	if !ok {
		b.reply(msg, txtTaskNotFound)
		return
	}

	b.reply(msg, fmt.Sprintf(fmtStatusUpdated, code, status))
}

func (b *TBot) onDeleteTask(ctx context.Context, msg *tg.Message) {
	code := normalizeCode(strings.TrimSpace(msg.CommandArguments()))
	if code == "" {
		b.reply(msg, txtDeleteUsage)
		return
	}

	ok, err := b.db.DeleteTask(ctx, code)
	if err != nil {
		b.logger.Errorw("failed deleting task", "task", code, "err", err)
		b.reply(msg, txtErrAccessingStore)
		return
	}
	if !ok {
		b.reply(msg, txtTaskNotFound)
		return
	}

	b.reply(msg, fmt.Sprintf(fmtTaskDeleted, code))
}

func (b *TBot) onEditTaskReminders(ctx context.Context, msg *tg.Message) {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		b.reply(msg, txtEditUsage)
		return
	}

	task, err := b.db.TaskByCode(ctx, normalizeCode(args[0]))
	switch {
	case err == db.ErrTaskNotFound:
		b.reply(msg, txtTaskNotFound)
		return
	case err != nil:
		b.logger.Errorw("failed fetching task", "task", args[0], "err", err)
		b.reply(msg, txtErrAccessingStore)
		return
	}

	offsets, err := parseOffsets(args[1])
	if err != nil {
		b.reply(msg, txtInvalidTimes)
		return
	}

	if err := b.db.ReplaceTaskReminders(ctx, task.ID, offsets); err != nil {
		b.logger.Errorw("failed replacing reminders", "task", task.Code, "err", err)
		b.reply(msg, txtUpdateFailed)
		return
	}

	if len(offsets) == 0 {
		b.reply(msg, fmt.Sprintf(fmtRemindersDisabled, task.Name))
		return
	}
	b.reply(msg, fmt.Sprintf(fmtRemindersUpdated, task.Name, offsetPhrases(offsets)))
}

func (b *TBot) onReminders(ctx context.Context, msg *tg.Message) {
	var on bool
	switch strings.TrimSpace(msg.CommandArguments()) {
	case "on":
		on = true
	case "off":
		on = false
	default:
		b.reply(msg, txtRemindersUsage)
		return
	}

	ok, err := b.db.SetReceiveReminders(ctx, msg.From.ID, on)
	if err != nil {
		b.logger.Errorw("failed updating opt-in", "user", msg.From.ID, "err", err)
		b.reply(msg, txtErrAccessingStore)
		return
	}
	if !ok {
		b.reply(msg, txtNotRegistered)
		return
	}

	if on {
		b.reply(msg, txtRemindersOn)
	} else {
		b.reply(msg, txtRemindersOff)
	}
}

func (b *TBot) reply(to *tg.Message, text string) {
	msg := tg.NewMessage(to.Chat.ID, text)
	msg.ParseMode = tg.ModeHTML
	msg.ReplyToMessageID = to.MessageID

	if _, err := b.api.Send(msg); err != nil {
		b.logger.Errorw("failed sending reply", "chat", to.Chat.ID, "err", err)
	}
}
