package dispatch

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"wingsuite-api/domain"
	"wingsuite-api/storage"
	"wingsuite-api/taskflow"
)

// Workflow is the slice of the task workflow the sweeper drives.
type Workflow interface {
	DispatchDueReminders(ctx context.Context, now time.Time) ([]taskflow.DueReminder, error)
}

// Notifier delivers reminder notifications downstream.
type Notifier interface {
	EnqueueNotification(ctx context.Context, msg storage.NotificationMessage) error
}

// Directory resolves user ids to their documents for display names.
type Directory interface {
	Get(ctx context.Context, id string) (*domain.User, error)
}

// Deduper arbitrates reminder ownership between concurrent instances.
type Deduper interface {
	AddMany(ctx context.Context, taskID string, timestamps []int64) ([]bool, error)
	Remove(ctx context.Context, taskID string, ts int64) error
}

// Sweeper periodically pulls due reminders out of the workflow and enqueues
// one notification per task whose reminders fired.
type Sweeper struct {
	workflow Workflow
	notifier Notifier
	deduper  Deduper
	users    Directory
	interval time.Duration
	log      *log.Logger
}

func NewSweeper(workflow Workflow, notifier Notifier, deduper Deduper, users Directory, interval time.Duration, logger *log.Logger) *Sweeper {
	return &Sweeper{
		workflow: workflow,
		notifier: notifier,
		deduper:  deduper,
		users:    users,
		interval: interval,
		log:      logger,
	}
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := s.Sweep(ctx, now); err != nil {
				s.log.WithError(err).Error("reminder sweep failed")
			}
		}
	}
}

// Sweep runs a single pass. Per-task failures are logged and skipped so one
// bad task cannot stall the rest of the batch.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) error {
	due, err := s.workflow.DispatchDueReminders(ctx, now)
	if err != nil {
		return err
	}

	for _, reminder := range due {
		owned, err := s.deduper.AddMany(ctx, reminder.Task.ID, reminder.Fired)
		if err != nil {
			s.log.WithError(err).WithField("task", reminder.Task.ID).Error("reminder dedupe failed")
			continue
		}
		send := false
		for _, added := range owned {
			if added {
				send = true
				break
			}
		}
		if !send {
			continue
		}

		recipients := reminder.Task.Recipients()
		msg := storage.NotificationMessage{
			TaskID:         reminder.Task.ID,
			Name:           reminder.Task.Name,
			Description:    reminder.Task.Description,
			Recipients:     recipients,
			RecipientNames: s.recipientNames(ctx, recipients),
			Suspense:       reminder.Task.Suspense,
			TimeRemaining:  reminder.TimeRemaining,
		}
		if err := s.notifier.EnqueueNotification(ctx, msg); err != nil {
			s.log.WithError(err).WithField("task", reminder.Task.ID).Error("reminder enqueue failed")
			for i, ts := range reminder.Fired {
				if !owned[i] {
					continue
				}
				if derr := s.deduper.Remove(ctx, reminder.Task.ID, ts); derr != nil {
					s.log.WithError(derr).WithField("task", reminder.Task.ID).Warn("reminder dedupe rollback failed")
				}
			}
			continue
		}

		s.log.WithFields(log.Fields{
			"task":       reminder.Task.ID,
			"fired":      len(reminder.Fired),
			"recipients": len(msg.Recipients),
		}).Info("reminder dispatched")
	}
	return nil
}

// recipientNames resolves display names for the ids that still exist. Stale
// ids fall back to the raw id so the downstream message stays aligned.
func (s *Sweeper) recipientNames(ctx context.Context, ids []string) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		user, err := s.users.Get(ctx, id)
		if err != nil || user == nil {
			if err != nil {
				s.log.WithError(err).WithField("user", id).Warn("recipient lookup failed")
			}
			names = append(names, id)
			continue
		}
		names = append(names, user.FullName(false))
	}
	return names
}
