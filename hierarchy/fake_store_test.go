package hierarchy

import (
	"context"
	"sort"

	"wingsuite-api/domain"
)

type fakeStore struct {
	units map[string]domain.Unit
	users map[string]domain.User

	unitErr error
	userErr error

	// userReplaceErr fails Replace for the named user ids only.
	userReplaceErr map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		units: map[string]domain.Unit{},
		users: map[string]domain.User{},
	}
}

func (f *fakeStore) Get(ctx context.Context, id string) (*domain.Unit, error) {
	if f.unitErr != nil {
		return nil, f.unitErr
	}
	unit, ok := f.units[id]
	if !ok {
		return nil, nil
	}
	return &unit, nil
}

func (f *fakeStore) List(ctx context.Context) ([]domain.Unit, error) {
	if f.unitErr != nil {
		return nil, f.unitErr
	}
	ids := make([]string, 0, len(f.units))
	for id := range f.units {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]domain.Unit, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.units[id])
	}
	return out, nil
}

func (f *fakeStore) Insert(ctx context.Context, unit domain.Unit) error {
	if f.unitErr != nil {
		return f.unitErr
	}
	f.units[unit.ID] = unit
	return nil
}

func (f *fakeStore) Replace(ctx context.Context, unit domain.Unit) error {
	return f.Insert(ctx, unit)
}

func (f *fakeStore) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	if f.unitErr != nil {
		return f.unitErr
	}
	unit := f.units[id]
	if name, ok := fields["name"].(string); ok {
		unit.Name = name
	}
	if t, ok := fields["unitType"].(string); ok {
		unit.Type = t
	}
	if fp, ok := fields["frontpage"].(string); ok {
		unit.Frontpage = fp
	}
	f.units[id] = unit
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	if f.unitErr != nil {
		return f.unitErr
	}
	delete(f.units, id)
	return nil
}

type fakeUserStore struct{ f *fakeStore }

func (f *fakeStore) userSide() *fakeUserStore { return &fakeUserStore{f: f} }

func (s *fakeUserStore) Get(ctx context.Context, id string) (*domain.User, error) {
	if s.f.userErr != nil {
		return nil, s.f.userErr
	}
	user, ok := s.f.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (s *fakeUserStore) Replace(ctx context.Context, user domain.User) error {
	if s.f.userErr != nil {
		return s.f.userErr
	}
	if err := s.f.userReplaceErr[user.ID]; err != nil {
		return err
	}
	s.f.users[user.ID] = user
	return nil
}
