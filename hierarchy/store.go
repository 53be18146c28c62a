package hierarchy

import (
	"context"

	"wingsuite-api/domain"
)

// UnitStore abstracts the unit document collection. Get returns (nil, nil)
// when the id does not resolve so callers can distinguish "missing" from a
// store failure.
type UnitStore interface {
	Get(ctx context.Context, id string) (*domain.Unit, error)
	List(ctx context.Context) ([]domain.Unit, error)
	Insert(ctx context.Context, unit domain.Unit) error
	Replace(ctx context.Context, unit domain.Unit) error
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
}

// UserStore abstracts the user document collection for the engine's
// cross-reference maintenance.
type UserStore interface {
	Get(ctx context.Context, id string) (*domain.User, error)
	Replace(ctx context.Context, user domain.User) error
}
