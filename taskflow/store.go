package taskflow

import (
	"context"

	"wingsuite-api/domain"
)

// TaskStore abstracts the task document collection. Get returns (nil, nil)
// when the id does not resolve.
type TaskStore interface {
	Get(ctx context.Context, id string) (*domain.Task, error)
	Insert(ctx context.Context, task domain.Task) error
	// Replace persists the whole document so the three status maps always
	// change together.
	Replace(ctx context.Context, task domain.Task) error
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
	ListByAuthor(ctx context.Context, author string, skip, limit int) ([]domain.Task, error)
	CountByAuthor(ctx context.Context, author string) (int, error)
	// ListWithDueReminders returns every task holding at least one reminder
	// timestamp at or before now.
	ListWithDueReminders(ctx context.Context, now int64) ([]domain.Task, error)
}
