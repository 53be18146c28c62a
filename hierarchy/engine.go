package hierarchy

import (
	"context"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"wingsuite-api/domain"
)

// Engine owns cross-entity consistency for the unit forest and the
// denormalized unit/user membership references. Every mutation is a plain
// read-modify-write against the injected stores with no cross-document
// transaction: concurrent writers racing on the same document can lose an
// update, matching the system this replaces. Side effects on referenced
// documents are best-effort: a stale id is skipped and logged, never a
// reason to abort the primary write.
type Engine struct {
	units UnitStore
	users UserStore
	types *UnitTypes
	log   *log.Logger
}

// NewEngine wires the engine to its document stores.
func NewEngine(units UnitStore, users UserStore, types *UnitTypes, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Engine{units: units, users: users, types: types, log: logger}
}

// CreateUnitParams carries the initial state for a new unit.
type CreateUnitParams struct {
	Name      string
	Type      string
	Parent    string
	Children  []string
	Officers  []string
	Members   []string
	Frontpage string
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CreateUnit persists a new unit and wires every denormalized reference:
// each rostered user gains the unit id, each listed child is re-pointed at
// the new unit, and the parent (when set) gains a child link.
func (e *Engine) CreateUnit(ctx context.Context, p CreateUnitParams) (string, error) {
	if !e.types.Valid(p.Type) {
		return "", InvalidUnitTypeError{Type: p.Type, Allowed: e.types.List()}
	}

	unit := domain.Unit{
		ID:        newID(),
		Name:      p.Name,
		Type:      p.Type,
		Parent:    p.Parent,
		Children:  append([]string(nil), p.Children...),
		Officers:  nil,
		Members:   nil,
		Frontpage: p.Frontpage,
	}
	for _, id := range p.Members {
		unit.AddMember(id)
	}
	for _, id := range p.Officers {
		unit.AddOfficer(id)
	}

	if err := e.units.Insert(ctx, unit); err != nil {
		return "", err
	}

	for _, userID := range unit.Personnel() {
		if err := e.linkUser(ctx, userID, unit.ID); err != nil {
			return "", err
		}
	}
	for _, childID := range unit.Children {
		child, err := e.units.Get(ctx, childID)
		if err != nil {
			return "", err
		}
		if child == nil {
			e.log.WithFields(log.Fields{"unit": unit.ID, "child": childID}).Warn("skipping missing child during create")
			continue
		}
		child.Parent = unit.ID
		if err := e.units.Replace(ctx, *child); err != nil {
			return "", err
		}
	}
	if unit.Parent != "" {
		parent, err := e.units.Get(ctx, unit.Parent)
		if err != nil {
			return "", err
		}
		if parent == nil {
			e.log.WithFields(log.Fields{"unit": unit.ID, "parent": unit.Parent}).Warn("skipping missing parent during create")
		} else {
			parent.AddChild(unit.ID)
			if err := e.units.Replace(ctx, *parent); err != nil {
				return "", err
			}
		}
	}

	e.log.WithFields(log.Fields{"unit": unit.ID, "type": unit.Type}).Info("unit created")
	return unit.ID, nil
}

// DeleteUnit removes a unit after unlinking every denormalized reference to
// it: rostered users lose the unit id, children become roots, and the parent
// drops its child link.
func (e *Engine) DeleteUnit(ctx context.Context, id string) error {
	unit, err := e.units.Get(ctx, id)
	if err != nil {
		return err
	}
	if unit == nil {
		return ErrNotFound
	}

	for _, userID := range unit.Personnel() {
		if err := e.unlinkUser(ctx, userID, id); err != nil {
			return err
		}
	}
	for _, childID := range unit.Children {
		child, err := e.units.Get(ctx, childID)
		if err != nil {
			return err
		}
		if child == nil {
			continue
		}
		child.Parent = ""
		if err := e.units.Replace(ctx, *child); err != nil {
			return err
		}
	}
	if unit.Parent != "" {
		parent, err := e.units.Get(ctx, unit.Parent)
		if err != nil {
			return err
		}
		if parent != nil {
			parent.DeleteChild(id)
			if err := e.units.Replace(ctx, *parent); err != nil {
				return err
			}
		}
	}

	if err := e.units.Delete(ctx, id); err != nil {
		return err
	}
	e.log.WithField("unit", id).Info("unit deleted")
	return nil
}

// protectedFields may only change through the dedicated consistency
// operations, never a generic field update.
var protectedFields = map[string]bool{
	"id":       true,
	"parent":   true,
	"children": true,
	"members":  true,
	"officers": true,
	"channels": true,
}

// UpdateUnit overwrites the named fields on a unit. Fields owned by the
// consistency layer are rejected up front.
func (e *Engine) UpdateUnit(ctx context.Context, id string, fields map[string]any) error {
	for name := range fields {
		if protectedFields[name] {
			return ProtectedFieldError{Field: name}
		}
	}
	if raw, ok := fields["unitType"]; ok {
		t, _ := raw.(string)
		if !e.types.Valid(t) {
			return InvalidUnitTypeError{Type: t, Allowed: e.types.List()}
		}
	}

	unit, err := e.units.Get(ctx, id)
	if err != nil {
		return err
	}
	if unit == nil {
		return ErrNotFound
	}
	return e.units.UpdateFields(ctx, id, fields)
}

// Reparent detaches a unit from its current parent and attaches it to the
// new one. Either side may be empty or stale; missing parents are skipped.
func (e *Engine) Reparent(ctx context.Context, id, newParent string) error {
	unit, err := e.units.Get(ctx, id)
	if err != nil {
		return err
	}
	if unit == nil {
		return ErrNotFound
	}

	if unit.Parent != "" && unit.Parent != newParent {
		old, err := e.units.Get(ctx, unit.Parent)
		if err != nil {
			return err
		}
		if old != nil {
			old.DeleteChild(id)
			if err := e.units.Replace(ctx, *old); err != nil {
				return err
			}
		}
	}
	if newParent != "" {
		next, err := e.units.Get(ctx, newParent)
		if err != nil {
			return err
		}
		if next == nil {
			e.log.WithFields(log.Fields{"unit": id, "parent": newParent}).Warn("skipping missing parent during reparent")
			newParent = ""
		} else {
			next.AddChild(id)
			if err := e.units.Replace(ctx, *next); err != nil {
				return err
			}
		}
	}

	unit.Parent = newParent
	return e.units.Replace(ctx, *unit)
}

// GetUnit fetches a single unit.
func (e *Engine) GetUnit(ctx context.Context, id string) (*domain.Unit, error) {
	unit, err := e.units.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, ErrNotFound
	}
	return unit, nil
}

// GetUser fetches a single user.
func (e *Engine) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := e.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// GrantPermission adds a permission token to a user. The boolean reports
// whether the token was newly granted.
func (e *Engine) GrantPermission(ctx context.Context, userID, token string) (bool, error) {
	user, err := e.users.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, ErrUserNotFound
	}
	if !user.AddPermission(token) {
		return false, nil
	}
	return true, e.users.Replace(ctx, *user)
}

// RevokePermission removes a permission token from a user. The boolean
// reports whether the token was held.
func (e *Engine) RevokePermission(ctx context.Context, userID, token string) (bool, error) {
	user, err := e.users.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, ErrUserNotFound
	}
	if !user.DeletePermission(token) {
		return false, nil
	}
	return true, e.users.Replace(ctx, *user)
}

// linkUser records the unit id on the user's side, skipping stale user ids.
func (e *Engine) linkUser(ctx context.Context, userID, unitID string) error {
	user, err := e.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		e.log.WithFields(log.Fields{"unit": unitID, "user": userID}).Warn("skipping missing user during link")
		return nil
	}
	if !user.AddUnit(unitID) {
		return nil
	}
	return e.users.Replace(ctx, *user)
}

// unlinkUser removes the unit id from the user's side, skipping stale ids.
func (e *Engine) unlinkUser(ctx context.Context, userID, unitID string) error {
	user, err := e.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}
	if !user.DeleteUnit(unitID) {
		return nil
	}
	return e.users.Replace(ctx, *user)
}
