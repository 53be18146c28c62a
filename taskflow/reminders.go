package taskflow

import (
	"context"
	"fmt"
	"time"

	"wingsuite-api/domain"
)

// DueReminder is a task whose reminder fired, annotated for notification
// formatting.
type DueReminder struct {
	Task          domain.Task
	Fired         []int64
	TimeRemaining string
}

// DispatchDueReminders selects every task with a reminder timestamp at or
// before now, pulls all such timestamps out of the task's reminder list, and
// returns the affected tasks with a human-readable time-remaining string.
// Each fired timestamp is removed before the task is returned so a repeat
// sweep does not fire it again.
func (w *Workflow) DispatchDueReminders(ctx context.Context, now time.Time) ([]DueReminder, error) {
	due, err := w.tasks.ListWithDueReminders(ctx, now.Unix())
	if err != nil {
		return nil, err
	}

	out := make([]DueReminder, 0, len(due))
	for _, task := range due {
		var fired, remaining []int64
		for _, ts := range task.Reminders {
			if ts <= now.Unix() {
				fired = append(fired, ts)
			} else {
				remaining = append(remaining, ts)
			}
		}
		if len(fired) == 0 {
			continue
		}
		task.Reminders = remaining
		if err := w.tasks.Replace(ctx, task); err != nil {
			return out, err
		}

		out = append(out, DueReminder{
			Task:          task,
			Fired:         fired,
			TimeRemaining: FormatTimeRemaining(task.Suspense - now.Unix()),
		})
	}
	if len(out) > 0 {
		w.log.WithField("tasks", len(out)).Info("reminders dispatched")
	}
	return out, nil
}

// FormatTimeRemaining renders a second count as its largest whole time unit
// ("3 days", "1 hour", "45 minutes", "30 seconds"). Elapsed deadlines render
// as "0 seconds".
func FormatTimeRemaining(seconds int64) string {
	if seconds <= 0 {
		return "0 seconds"
	}
	if days := seconds / 86400; days > 0 {
		return plural(days, "day")
	}
	if hours := (seconds / 3600) % 24; hours > 0 {
		return plural(hours, "hour")
	}
	if minutes := (seconds / 60) % 60; minutes > 0 {
		return plural(minutes, "minute")
	}
	return plural(seconds%60, "second")
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
