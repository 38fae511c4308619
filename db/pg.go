package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

var ErrTaskNotFound = errors.New("task not found")

// UpsertUser creates the user or refreshes profile fields if the user is
// already registered. The opt-in flag is left alone on update: /start must
// not silently re-enable reminders the user turned off.
func (d *Database) UpsertUser(ctx context.Context, u User) error {
	_, err := d.pool.Exec(ctx, `INSERT INTO users(user_id, username, first_name, last_name, receive_reminders, created_at)
VALUES($1, $2, $3, $4, TRUE, $5)
ON CONFLICT (user_id) DO UPDATE SET username=$2, first_name=$3, last_name=$4`,
		u.ID, u.Username, u.FirstName, u.LastName, clk.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "failed upserting user")
	}
	return nil
}

// SetReceiveReminders flips the per-user opt-in flag. Returns false when the
// user isn't registered.
func (d *Database) SetReceiveReminders(ctx context.Context, usr int64, on bool) (bool, error) {
	tag, err := d.pool.Exec(ctx, `UPDATE users SET receive_reminders=$1 WHERE user_id=$2`, on, usr)
	if err != nil {
		return false, errors.Wrap(err, "failed updating reminder opt-in")
	}
	return tag.RowsAffected() > 0, nil
}

func (d *Database) GetUser(ctx context.Context, usr int64) (*User, error) {
	var u User
	err := d.pool.QueryRow(ctx, `SELECT user_id, username, first_name, last_name, receive_reminders, created_at
FROM users WHERE user_id=$1`, usr).Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.ReceiveReminders, &u.CreatedAt)

	switch {
	case err == pgx.ErrNoRows:
		return nil, nil
	case err != nil:
		return nil, errors.Wrap(err, "failed fetching user")
	}

	return &u, nil
}

// UsersByUsernames resolves @-mention handles to registered users. Unknown
// handles are silently dropped; the caller decides whether that's an error.
func (d *Database) UsersByUsernames(ctx context.Context, usernames []string) ([]User, error) {
	rows, err := d.pool.Query(ctx, `SELECT user_id, username, first_name, last_name, receive_reminders, created_at
FROM users WHERE username = ANY($1) ORDER BY user_id`, usernames)
	if err != nil {
		return nil, errors.Wrap(err, "failed resolving usernames")
	}
	defer rows.Close()

	return scanUsers(rows)
}

func scanUsers(rows pgx.Rows) ([]User, error) {
	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.ReceiveReminders, &u.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed scanning user")
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CreateTask inserts the task, its assignments and its reminder rows in one
// transaction. Offsets go through NormalizeOffsets, so a non-positive offset
// fails the whole creation before anything is written.
func (d *Database) CreateTask(ctx context.Context, name string, chatID int64, dueAt time.Time, assignees []int64, offsets []int) (*Task, error) {
	offs, err := NormalizeOffsets(offsets)
	if err != nil {
		return nil, err
	}

	tx, err := d.pool.BeginTx(ctx, repeatableRead)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	now := clk.Now().UTC()
	t := Task{Name: name, ChatID: chatID, DueAt: dueAt.UTC(), Status: StatusNew, CreatedAt: now}

	err = tx.QueryRow(ctx, `INSERT INTO tasks(task_name, chat_id, due_at, status, created_at)
VALUES($1, $2, $3, $4, $5) RETURNING task_id`, t.Name, t.ChatID, t.DueAt, string(t.Status), now).Scan(&t.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed inserting task")
	}

	t.Code = fmt.Sprintf("TK%04d", t.ID)
	if _, err := tx.Exec(ctx, `UPDATE tasks SET task_code=$1 WHERE task_id=$2`, t.Code, t.ID); err != nil {
		return nil, errors.Wrap(err, "failed setting task code")
	}

	for _, usr := range assignees {
		if _, err := tx.Exec(ctx, `INSERT INTO task_assignments(task_id, user_id)
VALUES($1, $2) ON CONFLICT DO NOTHING`, t.ID, usr); err != nil {
			return nil, errors.Wrap(err, "failed assigning user")
		}
	}

	for _, m := range offs {
		if _, err := tx.Exec(ctx, `INSERT INTO reminders(task_id, minutes_before, sent, created_at)
VALUES($1, $2, FALSE, $3)`, t.ID, m, now); err != nil {
			return nil, errors.Wrap(err, "failed inserting reminder")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to commit")
	}
	return &t, nil
}

const taskColumns = `task_id, task_code, task_name, chat_id, due_at, status, created_at`

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	var status string
	err := row.Scan(&t.ID, &t.Code, &t.Name, &t.ChatID, &t.DueAt, &status, &t.CreatedAt)

	switch {
	case err == pgx.ErrNoRows:
		return nil, ErrTaskNotFound
	case err != nil:
		return nil, errors.Wrap(err, "failed scanning task")
	}

	t.Status = TaskStatus(status)
	return &t, nil
}

// TaskByCode returns the task with its assignees.
func (d *Database) TaskByCode(ctx context.Context, code string) (*Task, error) {
	t, err := scanTask(d.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE task_code=$1`, code))
	if err != nil {
		return nil, err
	}

	rows, err := d.pool.Query(ctx, `SELECT u.user_id, u.username, u.first_name, u.last_name, u.receive_reminders, u.created_at
FROM task_assignments a JOIN users u ON u.user_id = a.user_id
WHERE a.task_id=$1 ORDER BY u.user_id`, t.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed fetching assignees")
	}
	defer rows.Close()

	t.Assignees, err = scanUsers(rows)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// TasksForUser lists tasks assigned to the user, optionally filtered by
// status. Without a filter, DONE tasks are excluded.
func (d *Database) TasksForUser(ctx context.Context, usr int64, status *TaskStatus) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t
JOIN task_assignments a ON a.task_id = t.task_id
WHERE a.user_id=$1 AND `
	args := []any{usr}
	if status != nil {
		query += `t.status=$2`
		args = append(args, string(*status))
	} else {
		query += `t.status<>$2`
		args = append(args, string(StatusDone))
	}
	query += ` ORDER BY t.due_at ASC`

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed querying tasks")
	}
	defer rows.Close()

	return collectTasks(rows)
}

// ListTasks lists every task, optionally filtered by status. Used by the
// HTTP surface.
func (d *Database) ListTasks(ctx context.Context, status *TaskStatus) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	args := []any{}
	if status != nil {
		query += ` WHERE status=$1`
		args = append(args, string(*status))
	}
	query += ` ORDER BY due_at ASC`

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed querying tasks")
	}
	defer rows.Close()

	return collectTasks(rows)
}

func collectTasks(rows pgx.Rows) ([]Task, error) {
	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// UpdateTaskStatus writes the status. Monotonic progression is the command
// handler's contract; the store doesn't enforce it.
func (d *Database) UpdateTaskStatus(ctx context.Context, code string, status TaskStatus) (bool, error) {
	tag, err := d.pool.Exec(ctx, `UPDATE tasks SET status=$1 WHERE task_code=$2`, string(status), code)
	if err != nil {
		return false, errors.Wrap(err, "failed updating task status")
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteTask removes the task; assignments and reminders go with it via
// ON DELETE CASCADE.
func (d *Database) DeleteTask(ctx context.Context, code string) (bool, error) {
	tag, err := d.pool.Exec(ctx, `DELETE FROM tasks WHERE task_code=$1`, code)
	if err != nil {
		return false, errors.Wrap(err, "failed deleting task")
	}
	return tag.RowsAffected() > 0, nil
}

// ReplaceTaskReminders discards the task's reminder rows, sent or not, and
// recreates the set from the given offsets. A previously sent offset that is
// re-added becomes unsent and can fire again.
func (d *Database) ReplaceTaskReminders(ctx context.Context, taskID int64, offsets []int) error {
	offs, err := NormalizeOffsets(offsets)
	if err != nil {
		return err
	}

	tx, err := d.pool.BeginTx(ctx, repeatableRead)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM reminders WHERE task_id=$1`, taskID); err != nil {
		return errors.Wrap(err, "failed clearing reminders")
	}

	now := clk.Now().UTC()
	for _, m := range offs {
		if _, err := tx.Exec(ctx, `INSERT INTO reminders(task_id, minutes_before, sent, created_at)
VALUES($1, $2, FALSE, $3)`, taskID, m, now); err != nil {
			return errors.Wrap(err, "failed inserting reminder")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit")
	}
	return nil
}

// TaskReminders lists the task's reminder rows, largest offset first.
func (d *Database) TaskReminders(ctx context.Context, taskID int64) ([]Reminder, error) {
	rows, err := d.pool.Query(ctx, `SELECT reminder_id, task_id, minutes_before, sent, created_at
FROM reminders WHERE task_id=$1 ORDER BY minutes_before DESC`, taskID)
	if err != nil {
		return nil, errors.Wrap(err, "failed querying reminders")
	}
	defer rows.Close()

	var rs []Reminder
	for rows.Next() {
		var r Reminder
		if err := rows.Scan(&r.ID, &r.TaskID, &r.MinutesBefore, &r.Sent, &r.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed scanning reminder")
		}
		rs = append(rs, r)
	}
	return rs, rows.Err()
}

// PendingReminders returns every unsent reminder on a task that isn't DONE,
// each with its task and the task's assignees attached.
func (d *Database) PendingReminders(ctx context.Context) ([]PendingReminder, error) {
	rows, err := d.pool.Query(ctx, `SELECT r.reminder_id, r.minutes_before, t.task_id, t.task_code, t.task_name, t.chat_id, t.due_at, t.status, t.created_at
FROM reminders r JOIN tasks t ON t.task_id = r.task_id
WHERE r.sent = FALSE AND t.status <> $1
ORDER BY r.reminder_id ASC`, string(StatusDone))
	if err != nil {
		return nil, errors.Wrap(err, "failed querying pending reminders")
	}
	defer rows.Close()

	var pending []PendingReminder
	taskIDs := []int64{}
	seenTask := make(map[int64]bool)
	for rows.Next() {
		var p PendingReminder
		var status string
		err := rows.Scan(&p.ID, &p.MinutesBefore, &p.Task.ID, &p.Task.Code, &p.Task.Name,
			&p.Task.ChatID, &p.Task.DueAt, &status, &p.Task.CreatedAt)
		if err != nil {
			return nil, errors.Wrap(err, "failed scanning pending reminder")
		}
		p.Task.Status = TaskStatus(status)
		if !seenTask[p.Task.ID] {
			seenTask[p.Task.ID] = true
			taskIDs = append(taskIDs, p.Task.ID)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed reading pending reminders")
	}
	if len(pending) == 0 {
		return nil, nil
	}

	assignees, err := d.assigneesForTasks(ctx, taskIDs)
	if err != nil {
		return nil, err
	}
	for i := range pending {
		pending[i].Task.Assignees = assignees[pending[i].Task.ID]
	}

	return pending, nil
}

func (d *Database) assigneesForTasks(ctx context.Context, taskIDs []int64) (map[int64][]User, error) {
	rows, err := d.pool.Query(ctx, `SELECT a.task_id, u.user_id, u.username, u.first_name, u.last_name, u.receive_reminders, u.created_at
FROM task_assignments a JOIN users u ON u.user_id = a.user_id
WHERE a.task_id = ANY($1) ORDER BY a.task_id, u.user_id`, taskIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed querying assignees")
	}
	defer rows.Close()

	byTask := make(map[int64][]User)
	for rows.Next() {
		var taskID int64
		var u User
		if err := rows.Scan(&taskID, &u.ID, &u.Username, &u.FirstName, &u.LastName, &u.ReceiveReminders, &u.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed scanning assignee")
		}
		byTask[taskID] = append(byTask[taskID], u)
	}
	return byTask, rows.Err()
}

// MarkReminderSent flips the sent flag. Marking an already-sent reminder is
// a harmless no-op; false means the reminder row no longer exists.
func (d *Database) MarkReminderSent(ctx context.Context, reminderID int64) (bool, error) {
	tag, err := d.pool.Exec(ctx, `UPDATE reminders SET sent=TRUE WHERE reminder_id=$1`, reminderID)
	if err != nil {
		return false, errors.Wrap(err, "failed marking reminder sent")
	}
	return tag.RowsAffected() > 0, nil
}
