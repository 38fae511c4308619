package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmhodges/clock"
	"github.com/pkg/errors"
)

/**
DB tables:
- users:
	- user_id: bigint - Telegram user ID
	- username: text - @-mention handle, may be empty
	- first_name, last_name: text - display name fallback
	- receive_reminders: boolean - reminder opt-in, on by default
	- created_at: timestamptz

- tasks:
	- task_id: bigint - task ID
	- task_code: text - unique display code, TK0001 style
	- task_name: text
	- chat_id: bigint - group chat the task belongs to
	- due_at: timestamptz - stored in UTC
	- status: text - NEW, IN_PROGRESS or DONE
	- created_at: timestamptz

- task_assignments: (task_id, user_id) many-to-many

- reminders:
	- reminder_id: bigint
	- task_id: bigint - deleting a task cascades here
	- minutes_before: int - positive offset before due_at
	- sent: boolean - flipped to true exactly once by the scheduler
	- created_at: timestamptz
*/

var (
	repeatableRead = pgx.TxOptions{IsoLevel: pgx.RepeatableRead}
	clk            = clock.New()
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id           BIGINT PRIMARY KEY,
	username          TEXT NOT NULL DEFAULT '',
	first_name        TEXT NOT NULL DEFAULT '',
	last_name         TEXT NOT NULL DEFAULT '',
	receive_reminders BOOLEAN NOT NULL DEFAULT TRUE,
	created_at        TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS tasks (
	task_id    BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	task_code  TEXT UNIQUE,
	task_name  TEXT NOT NULL,
	chat_id    BIGINT NOT NULL,
	due_at     TIMESTAMPTZ NOT NULL,
	status     TEXT NOT NULL DEFAULT 'NEW',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS task_assignments (
	task_id BIGINT NOT NULL REFERENCES tasks(task_id) ON DELETE CASCADE,
	user_id BIGINT NOT NULL REFERENCES users(user_id),
	PRIMARY KEY (task_id, user_id)
);
CREATE TABLE IF NOT EXISTS reminders (
	reminder_id    BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	task_id        BIGINT NOT NULL REFERENCES tasks(task_id) ON DELETE CASCADE,
	minutes_before INT NOT NULL CHECK (minutes_before > 0),
	sent           BOOLEAN NOT NULL DEFAULT FALSE,
	created_at     TIMESTAMPTZ NOT NULL
);`

// PgxIface is the subset of pgxpool.Pool the store uses. Tests substitute
// a pgxmock pool.
type PgxIface interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

type Database struct {
	pool PgxIface
}

// Init connects to Postgres and makes sure the schema exists.
// The connection string looks like postgresql://localhost:5432/taskbot?user=taskbot&password=passwd
func Init(ctx context.Context, connStr string) (*Database, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, errors.Wrap(err, "failed creating connection pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed pinging database")
	}

	d := &Database{pool: pool}
	if err := d.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return d, nil
}

// NewWithPool wraps an existing pool; used by tests.
func NewWithPool(pool PgxIface) *Database {
	return &Database{pool: pool}
}

func (d *Database) ensureSchema(ctx context.Context) error {
	if _, err := d.pool.Exec(ctx, schema); err != nil {
		return errors.Wrap(err, "failed creating schema")
	}
	return nil
}

func (d *Database) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

func (d *Database) Close() {
	d.pool.Close()
}
