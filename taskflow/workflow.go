package taskflow

import (
	"context"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"wingsuite-api/domain"
)

// Workflow drives the per-recipient task state machine. Every move deletes
// the recipient from its source map, inserts it into the destination with
// the given note, and persists the whole document, so a reader never sees a
// recipient in two maps at once from the writer's perspective.
type Workflow struct {
	tasks TaskStore
	log   *log.Logger
}

// NewWorkflow wires the workflow to its task store.
func NewWorkflow(tasks TaskStore, logger *log.Logger) *Workflow {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Workflow{tasks: tasks, log: logger}
}

// CreateTaskParams carries the initial state for a new task. Recipients is
// fixed at creation: recipients can only move between status maps afterward,
// never join or leave.
type CreateTaskParams struct {
	FromUser           string
	Recipients         []string
	Name               string
	Description        string
	Suspense           int64
	AutoAcceptRequests bool
	Reminders          []int64
}

// CreateTask persists a new task with every recipient seeded as incomplete.
func (w *Workflow) CreateTask(ctx context.Context, p CreateTaskParams) (string, error) {
	task := domain.Task{
		ID:                 strings.ReplaceAll(uuid.NewString(), "-", ""),
		FromUser:           p.FromUser,
		Name:               p.Name,
		Description:        p.Description,
		Suspense:           p.Suspense,
		AutoAcceptRequests: p.AutoAcceptRequests,
		Reminders:          append([]int64(nil), p.Reminders...),
		Incomplete:         make(map[string]string, len(p.Recipients)),
		Pending:            map[string]string{},
		Complete:           map[string]string{},
	}
	for _, id := range p.Recipients {
		task.Incomplete[id] = ""
	}

	if err := w.tasks.Insert(ctx, task); err != nil {
		return "", err
	}
	w.log.WithFields(log.Fields{"task": task.ID, "recipients": len(task.Incomplete)}).Info("task created")
	return task.ID, nil
}

// GetTask fetches a single task.
func (w *Workflow) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	task, err := w.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrNotFound
	}
	return task, nil
}

// RequestCompletion moves an incomplete recipient forward: straight to
// complete when the task auto-accepts requests, otherwise to pending for
// review.
func (w *Workflow) RequestCompletion(ctx context.Context, taskID, userID, note string) error {
	task, err := w.tasks.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return ErrNotFound
	}

	status, assigned := task.StatusOf(userID)
	if !assigned {
		return ErrNotAssigned
	}
	if status != domain.StatusIncomplete {
		return ErrInvalidTransition
	}

	delete(task.Incomplete, userID)
	dest := domain.StatusPending
	if task.AutoAcceptRequests {
		task.Complete[userID] = note
		dest = domain.StatusComplete
	} else {
		task.Pending[userID] = note
	}

	if err := w.tasks.Replace(ctx, *task); err != nil {
		return err
	}
	w.log.WithFields(log.Fields{"task": taskID, "user": userID, "status": dest}).Info("completion requested")
	return nil
}

// ChangeStatus applies a review action: approve moves pending to complete,
// reject moves pending back to incomplete, deny moves complete back to
// incomplete.
func (w *Workflow) ChangeStatus(ctx context.Context, taskID, userID, note, action string) error {
	task, err := w.tasks.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return ErrNotFound
	}

	status, assigned := task.StatusOf(userID)
	if !assigned {
		return ErrNotAssigned
	}

	switch action {
	case domain.ActionApprove:
		if status != domain.StatusPending {
			return ErrInvalidTransition
		}
		delete(task.Pending, userID)
		task.Complete[userID] = note
	case domain.ActionReject:
		if status != domain.StatusPending {
			return ErrInvalidTransition
		}
		delete(task.Pending, userID)
		task.Incomplete[userID] = note
	case domain.ActionDeny:
		if status != domain.StatusComplete {
			return ErrInvalidTransition
		}
		delete(task.Complete, userID)
		task.Incomplete[userID] = note
	default:
		return ErrInvalidAction
	}

	if err := w.tasks.Replace(ctx, *task); err != nil {
		return err
	}
	w.log.WithFields(log.Fields{"task": taskID, "user": userID, "action": action}).Info("status changed")
	return nil
}

// protectedTaskFields may only change through the transition operations.
var protectedTaskFields = map[string]bool{
	"id":         true,
	"fromUser":   true,
	"incomplete": true,
	"pending":    true,
	"complete":   true,
}

// UpdateTask overwrites the named metadata fields. The recipient status maps
// are rejected: only the transition operations may move recipients.
func (w *Workflow) UpdateTask(ctx context.Context, id string, fields map[string]any) error {
	for name := range fields {
		if protectedTaskFields[name] {
			return ErrInvalidTransition
		}
	}
	task, err := w.tasks.Get(ctx, id)
	if err != nil {
		return err
	}
	if task == nil {
		return ErrNotFound
	}
	return w.tasks.UpdateFields(ctx, id, fields)
}

// DeleteTask removes the task document.
func (w *Workflow) DeleteTask(ctx context.Context, id string) error {
	task, err := w.tasks.Get(ctx, id)
	if err != nil {
		return err
	}
	if task == nil {
		return ErrNotFound
	}
	return w.tasks.Delete(ctx, id)
}

// TaskPage is one page of a dispatched-task listing.
type TaskPage struct {
	Tasks []domain.Task
	Pages int
}

// DispatchedTasks lists tasks authored by the given user, paginated.
func (w *Workflow) DispatchedTasks(ctx context.Context, author string, pageSize, pageIndex int) (TaskPage, error) {
	if pageSize <= 0 || pageIndex < 0 {
		return TaskPage{}, ErrInvalidPage
	}

	total, err := w.tasks.CountByAuthor(ctx, author)
	if err != nil {
		return TaskPage{}, err
	}
	pages := (total + pageSize - 1) / pageSize
	if total == 0 {
		// An author with no tasks still gets a valid first page.
		if pageIndex > 0 {
			return TaskPage{}, ErrPageOutOfBounds
		}
		return TaskPage{}, nil
	}
	if pageIndex >= pages {
		return TaskPage{}, ErrPageOutOfBounds
	}

	tasks, err := w.tasks.ListByAuthor(ctx, author, pageSize*pageIndex, pageSize)
	if err != nil {
		return TaskPage{}, err
	}
	return TaskPage{Tasks: tasks, Pages: pages}, nil
}
