package taskflow

import (
	"context"
	"sort"

	"wingsuite-api/domain"
)

type fakeTaskStore struct {
	tasks map[string]domain.Task
	err   error
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: map[string]domain.Task{}}
}

func (f *fakeTaskStore) Get(ctx context.Context, id string) (*domain.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	task, ok := f.tasks[id]
	if !ok {
		return nil, nil
	}
	return &task, nil
}

func (f *fakeTaskStore) Insert(ctx context.Context, task domain.Task) error {
	if f.err != nil {
		return f.err
	}
	f.tasks[task.ID] = task
	return nil
}

func (f *fakeTaskStore) Replace(ctx context.Context, task domain.Task) error {
	return f.Insert(ctx, task)
}

func (f *fakeTaskStore) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	if f.err != nil {
		return f.err
	}
	task := f.tasks[id]
	if name, ok := fields["name"].(string); ok {
		task.Name = name
	}
	if desc, ok := fields["description"].(string); ok {
		task.Description = desc
	}
	if suspense, ok := fields["suspense"].(int64); ok {
		task.Suspense = suspense
	}
	f.tasks[id] = task
	return nil
}

func (f *fakeTaskStore) Delete(ctx context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeTaskStore) byAuthor(author string) []domain.Task {
	var out []domain.Task
	for _, task := range f.tasks {
		if task.FromUser == author {
			out = append(out, task)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeTaskStore) ListByAuthor(ctx context.Context, author string, skip, limit int) ([]domain.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	all := f.byAuthor(author)
	if skip >= len(all) {
		return nil, nil
	}
	all = all[skip:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeTaskStore) CountByAuthor(ctx context.Context, author string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return len(f.byAuthor(author)), nil
}

func (f *fakeTaskStore) ListWithDueReminders(ctx context.Context, now int64) ([]domain.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Task
	for _, task := range f.tasks {
		for _, ts := range task.Reminders {
			if ts <= now {
				out = append(out, task)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
