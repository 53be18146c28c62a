package storage

import (
	"context"
	"strconv"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"wingsuite-api/domain"
)

// TaskStore persists task documents in a single table partition.
type TaskStore struct {
	table *aztables.Client
}

// Get fetches a task by id, returning (nil, nil) when it does not exist.
func (s *TaskStore) Get(ctx context.Context, id string) (*domain.Task, error) {
	resp, err := s.table.GetEntity(ctx, taskPartition, id, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	task, err := decodeTask(resp.Value)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// Insert adds a new task document.
func (s *TaskStore) Insert(ctx context.Context, task domain.Task) error {
	payload, err := encodeTask(task)
	if err != nil {
		return err
	}
	_, err = s.table.AddEntity(ctx, payload, nil)
	return err
}

// Replace overwrites the whole task document so the three recipient maps
// always change together.
func (s *TaskStore) Replace(ctx context.Context, task domain.Task) error {
	payload, err := encodeTask(task)
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	_, err = s.table.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{
		IfMatch:    &et,
		UpdateMode: aztables.UpdateModeReplace,
	})
	return err
}

// UpdateFields merges the named metadata fields into the task entity.
func (s *TaskStore) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	updates := map[string]any{
		"PartitionKey": taskPartition,
		"RowKey":       id,
	}
	for name, value := range fields {
		switch name {
		case "name":
			updates["Name"] = value
		case "description":
			updates["Description"] = value
		case "autoAcceptRequests":
			updates["AutoAcceptRequests"] = value
		case "suspense":
			updates["Suspense"] = strconv.FormatInt(toInt64(value), 10)
			updates["Suspense@odata.type"] = "Edm.Int64"
		case "reminders":
			if ts := toInt64s(value); ts != nil {
				updates["Reminders"] = encodeInt64s(ts)
			}
		default:
			if name == "" {
				continue
			}
			updates[strings.ToUpper(name[:1])+name[1:]] = value
		}
	}

	payload, err := sonic.Marshal(updates)
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	_, err = s.table.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{
		IfMatch:    &et,
		UpdateMode: aztables.UpdateModeMerge,
	})
	return err
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// toInt64s normalizes a timestamp list regardless of how it was decoded;
// JSON bodies arrive as []any of float64. Unrecognized shapes yield nil so
// the caller leaves the stored list untouched.
func toInt64s(v any) []int64 {
	switch ts := v.(type) {
	case []int64:
		return ts
	case []float64:
		out := make([]int64, 0, len(ts))
		for _, t := range ts {
			out = append(out, int64(t))
		}
		return out
	case []any:
		out := make([]int64, 0, len(ts))
		for _, t := range ts {
			out = append(out, toInt64(t))
		}
		return out
	default:
		return nil
	}
}

// Delete removes the task document.
func (s *TaskStore) Delete(ctx context.Context, id string) error {
	_, err := s.table.DeleteEntity(ctx, taskPartition, id, nil)
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

// escapeFilter doubles single quotes for OData string literals.
func escapeFilter(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func (s *TaskStore) listByAuthor(ctx context.Context, author string) ([]domain.Task, error) {
	filter := "PartitionKey eq '" + taskPartition + "' and FromUser eq '" + escapeFilter(author) + "'"
	pager := s.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			task, err := decodeTask(e)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

// ListByAuthor returns a window of tasks authored by the given user. The
// table service cannot skip server-side, so the window is applied while
// draining the pager.
func (s *TaskStore) ListByAuthor(ctx context.Context, author string, skip, limit int) ([]domain.Task, error) {
	tasks, err := s.listByAuthor(ctx, author)
	if err != nil {
		return nil, err
	}
	if skip >= len(tasks) {
		return nil, nil
	}
	tasks = tasks[skip:]
	if limit >= 0 && limit < len(tasks) {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

// CountByAuthor counts tasks authored by the given user.
func (s *TaskStore) CountByAuthor(ctx context.Context, author string) (int, error) {
	tasks, err := s.listByAuthor(ctx, author)
	if err != nil {
		return 0, err
	}
	return len(tasks), nil
}

// ListWithDueReminders scans the task partition for documents holding at
// least one reminder timestamp at or before now. Reminder lists are JSON
// string properties, so the filter runs client-side.
func (s *TaskStore) ListWithDueReminders(ctx context.Context, now int64) ([]domain.Task, error) {
	filter := "PartitionKey eq '" + taskPartition + "'"
	pager := s.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			task, err := decodeTask(e)
			if err != nil {
				return nil, err
			}
			for _, ts := range task.Reminders {
				if ts <= now {
					tasks = append(tasks, task)
					break
				}
			}
		}
	}
	return tasks, nil
}
