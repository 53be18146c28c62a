package api

import (
	"context"

	"wingsuite-api/domain"
	"wingsuite-api/hierarchy"
	"wingsuite-api/taskflow"
)

// Hierarchy abstracts the unit consistency engine for handlers.
type Hierarchy interface {
	CreateUnit(ctx context.Context, p hierarchy.CreateUnitParams) (string, error)
	DeleteUnit(ctx context.Context, id string) error
	UpdateUnit(ctx context.Context, id string, fields map[string]any) error
	Reparent(ctx context.Context, id, newParent string) error
	GetUnit(ctx context.Context, id string) (*domain.Unit, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	Units(ctx context.Context) ([]domain.Unit, error)
	AddPersonnel(ctx context.Context, unitID string, userIDs []string, role string) (hierarchy.BatchResult, error)
	RemovePersonnel(ctx context.Context, unitID string, userIDs []string, role string) (hierarchy.BatchResult, error)
	Personnel(ctx context.Context, unitID, role string) ([]domain.User, error)
	GrantPermission(ctx context.Context, userID, token string) (bool, error)
	RevokePermission(ctx context.Context, userID, token string) (bool, error)
}

// Scope answers officer-from-above authorization questions.
type Scope interface {
	IsOfficerFromAbove(ctx context.Context, unitIDs []string, actorID string) (bool, error)
}

// Workflow abstracts the task state machine for handlers.
type Workflow interface {
	CreateTask(ctx context.Context, p taskflow.CreateTaskParams) (string, error)
	GetTask(ctx context.Context, id string) (*domain.Task, error)
	RequestCompletion(ctx context.Context, taskID, userID, note string) error
	ChangeStatus(ctx context.Context, taskID, userID, note, action string) error
	UpdateTask(ctx context.Context, id string, fields map[string]any) error
	DeleteTask(ctx context.Context, id string) error
	DispatchedTasks(ctx context.Context, author string, pageSize, pageIndex int) (taskflow.TaskPage, error)
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}
