package storage

import (
	"context"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"wingsuite-api/domain"
)

// UnitStore persists unit documents in a single table partition.
type UnitStore struct {
	table *aztables.Client
}

// Get fetches a unit by id, returning (nil, nil) when it does not exist.
func (s *UnitStore) Get(ctx context.Context, id string) (*domain.Unit, error) {
	resp, err := s.table.GetEntity(ctx, unitPartition, id, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	unit, err := decodeUnit(resp.Value)
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

// List returns every unit document.
func (s *UnitStore) List(ctx context.Context) ([]domain.Unit, error) {
	filter := "PartitionKey eq '" + unitPartition + "'"
	pager := s.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	units := []domain.Unit{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			unit, err := decodeUnit(e)
			if err != nil {
				return nil, err
			}
			units = append(units, unit)
		}
	}
	return units, nil
}

// Insert adds a new unit document.
func (s *UnitStore) Insert(ctx context.Context, unit domain.Unit) error {
	payload, err := encodeUnit(unit)
	if err != nil {
		return err
	}
	_, err = s.table.AddEntity(ctx, payload, nil)
	return err
}

// Replace overwrites the whole unit document.
func (s *UnitStore) Replace(ctx context.Context, unit domain.Unit) error {
	payload, err := encodeUnit(unit)
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

// UpdateFields merges the named fields into the unit entity without touching
// the rest of the document.
func (s *UnitStore) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	updates := map[string]any{
		"PartitionKey": unitPartition,
		"RowKey":       id,
	}
	for name, value := range fields {
		switch name {
		case "name":
			updates["Name"] = value
		case "unitType":
			updates["UnitType"] = value
		case "frontpage":
			updates["Frontpage"] = value
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

// Delete removes the unit document. Deleting an id that is already gone is
// not an error.
func (s *UnitStore) Delete(ctx context.Context, id string) error {
	_, err := s.table.DeleteEntity(ctx, unitPartition, id, nil)
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}
