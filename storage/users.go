package storage

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"wingsuite-api/domain"
)

// UserStore persists user documents in a single table partition.
type UserStore struct {
	table *aztables.Client
}

// Get fetches a user by id, returning (nil, nil) when it does not exist.
func (s *UserStore) Get(ctx context.Context, id string) (*domain.User, error) {
	resp, err := s.table.GetEntity(ctx, userPartition, id, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	user, err := decodeUser(resp.Value)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Replace overwrites the whole user document, creating it when absent so
// directory imports can seed users directly.
func (s *UserStore) Replace(ctx context.Context, user domain.User) error {
	payload, err := encodeUser(user)
	if err != nil {
		return err
	}
	_, err = s.table.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{
		UpdateMode: aztables.UpdateModeReplace,
	})
	return err
}
