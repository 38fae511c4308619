// Package scheduler decides when task reminders fire and delivers them.
//
// A single recurring tick scans every unsent reminder on an unfinished task,
// fires the ones whose window has arrived and flips their sent flag. Delivery
// is at-most-once: a reminder is marked sent after its delivery attempt
// whether or not the transport accepted it, and a fire window that elapsed
// while the process was down is skipped, never replayed.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jmhodges/clock"
	"go.uber.org/zap"

	"taskbot/db"
)

// TaskStore is the slice of the store the scheduler consumes. It is the sole
// writer of reminder sent state; everything else only reads here.
type TaskStore interface {
	PendingReminders(ctx context.Context) ([]db.PendingReminder, error)
	// MarkReminderSent is idempotent; marking an already-sent reminder is a
	// harmless no-op.
	MarkReminderSent(ctx context.Context, reminderID int64) (bool, error)
}

// Notifier delivers a rendered message to a chat. Best-effort: the scheduler
// never retries a failed send.
type Notifier interface {
	Send(chatID int64, text string) error
}

type Scheduler struct {
	store    TaskStore
	notifier Notifier
	logger   *zap.SugaredLogger
	clk      clock.Clock
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func New(store TaskStore, notifier Notifier, interval time.Duration, l *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		store:    store,
		notifier: notifier,
		logger:   l,
		clk:      clock.New(),
		interval: interval,
	}
}

// Start registers the recurring tick. Calling Start while already running
// replaces the running loop rather than duplicating it.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		s.logger.Warn("scheduler already running, replacing the loop")
		s.stopLocked()
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)

	s.logger.Infow("scheduler started", "interval", s.interval)
}

// Stop halts the loop and waits for an in-flight reminder's send+mark pair
// to finish, so no reminder is left delivered but unmarked. Stopping an
// already stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if s.stop == nil {
		return
	}

	close(s.stop)
	<-s.done
	s.stop, s.done = nil, nil

	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	// Ticks are handled inline, so they can never overlap; if one overruns,
	// the ticker simply drops the ticks it covers.
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-t.C:
			s.tick(context.Background(), stop)
		}
	}
}

// tick is one scan: fetch pending reminders, fire the due ones, mark them
// sent. Reminders are processed sequentially; for each one the mark-sent
// write is sequenced strictly after its delivery attempt.
func (s *Scheduler) tick(ctx context.Context, stop <-chan struct{}) {
	now := s.clk.Now().UTC()

	pending, err := s.store.PendingReminders(ctx)
	if err != nil {
		s.logger.Errorw("failed fetching pending reminders, aborting tick", "err", err)
		return
	}

	for _, r := range pending {
		select {
		case <-stop:
			s.logger.Info("shutdown requested, abandoning rest of tick")
			return
		default:
		}

		if r.MinutesBefore <= 0 {
			s.logger.Warnw("skipping reminder with non-positive offset",
				"reminder", r.ID, "task", r.Task.Code, "offset", r.MinutesBefore)
			continue
		}

		if !dueNow(now, fireAt(r.Task.DueAt, r.MinutesBefore), s.interval) {
			continue
		}

		s.deliver(r)

		if _, err := s.store.MarkReminderSent(ctx, r.ID); err != nil {
			// Next tick rescans from scratch; the reminder can only re-send
			// while still inside its one-interval window.
			s.logger.Errorw("failed marking reminder sent, aborting tick",
				"reminder", r.ID, "err", err)
			return
		}
	}
}

// deliver sends one batched message naming all eligible recipients. A failed
// send is only logged: the caller marks the reminder sent regardless, trading
// a possibly missed notification for never re-sending.
func (s *Scheduler) deliver(r db.PendingReminder) {
	recipients := eligibleRecipients(r.Task.Assignees)
	if len(recipients) == 0 {
		s.logger.Infow("no opted-in assignees, skipping delivery",
			"reminder", r.ID, "task", r.Task.Code)
		return
	}

	text := composeReminder(r.Task, recipients, r.MinutesBefore)
	if err := s.notifier.Send(r.Task.ChatID, text); err != nil {
		s.logger.Errorw("failed sending reminder",
			"reminder", r.ID, "task", r.Task.Code, "chat", r.Task.ChatID, "err", err)
		return
	}

	s.logger.Infow("reminder sent", "reminder", r.ID, "task", r.Task.Code)
}
