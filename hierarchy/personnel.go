package hierarchy

import (
	"context"

	log "github.com/sirupsen/logrus"

	"wingsuite-api/domain"
)

// BatchResult reports the outcome of a personnel batch. A bad id never
// aborts the batch: it is recorded per id and the loop continues, so earlier
// successes are not rolled back. OK is false only when the store itself
// failed mid-batch.
type BatchResult struct {
	PerID map[string]string
	OK    bool
}

// Per-id outcome strings surfaced to callers.
const (
	outcomeAdded        = "added"
	outcomeRemoved      = "removed"
	outcomeUserNotFound = "User not found"
)

// AddPersonnel rosters each user on the unit in the given role and mirrors
// the membership on the user side, persisting both documents per id.
func (e *Engine) AddPersonnel(ctx context.Context, unitID string, userIDs []string, role string) (BatchResult, error) {
	unit, err := e.units.Get(ctx, unitID)
	if err != nil {
		return BatchResult{}, err
	}
	if unit == nil {
		return BatchResult{}, ErrNotFound
	}

	res := BatchResult{PerID: make(map[string]string, len(userIDs)), OK: true}
	for _, userID := range userIDs {
		user, err := e.users.Get(ctx, userID)
		if err != nil {
			res.PerID[userID] = err.Error()
			res.OK = false
			continue
		}
		if user == nil {
			res.PerID[userID] = outcomeUserNotFound
			continue
		}

		if existing := unit.RoleOf(userID); existing != "" {
			res.PerID[userID] = "already added as " + existing
			continue
		}
		if role == domain.RoleOfficer {
			unit.AddOfficer(userID)
		} else {
			unit.AddMember(userID)
		}
		user.AddUnit(unitID)

		if err := e.users.Replace(ctx, *user); err != nil {
			// Undo the unit side so the roster never references a user
			// document that does not point back.
			if role == domain.RoleOfficer {
				unit.DeleteOfficer(userID)
			} else {
				unit.DeleteMember(userID)
			}
			res.PerID[userID] = err.Error()
			res.OK = false
			continue
		}
		res.PerID[userID] = outcomeAdded
	}

	if err := e.units.Replace(ctx, *unit); err != nil {
		return res, err
	}
	e.log.WithFields(log.Fields{"unit": unitID, "role": role, "count": len(userIDs)}).Info("personnel added")
	return res, nil
}

// RemovePersonnel takes each user off the unit roster for the given role and
// drops the unit from the user side, persisting both documents per id.
func (e *Engine) RemovePersonnel(ctx context.Context, unitID string, userIDs []string, role string) (BatchResult, error) {
	unit, err := e.units.Get(ctx, unitID)
	if err != nil {
		return BatchResult{}, err
	}
	if unit == nil {
		return BatchResult{}, ErrNotFound
	}

	res := BatchResult{PerID: make(map[string]string, len(userIDs)), OK: true}
	for _, userID := range userIDs {
		removed := false
		if role == domain.RoleOfficer {
			removed = unit.DeleteOfficer(userID)
		} else {
			removed = unit.DeleteMember(userID)
		}
		if !removed {
			res.PerID[userID] = "not added as " + role
			continue
		}

		user, err := e.users.Get(ctx, userID)
		if err != nil {
			res.PerID[userID] = err.Error()
			res.OK = false
			continue
		}
		if user == nil {
			// Unit side is already cleaned up; the user document is gone.
			res.PerID[userID] = outcomeRemoved
			continue
		}
		user.DeleteUnit(unitID)
		if err := e.users.Replace(ctx, *user); err != nil {
			// Put the roster entry back; the user still points at the unit.
			if role == domain.RoleOfficer {
				unit.AddOfficer(userID)
			} else {
				unit.AddMember(userID)
			}
			res.PerID[userID] = err.Error()
			res.OK = false
			continue
		}
		res.PerID[userID] = outcomeRemoved
	}

	if err := e.units.Replace(ctx, *unit); err != nil {
		return res, err
	}
	e.log.WithFields(log.Fields{"unit": unitID, "role": role, "count": len(userIDs)}).Info("personnel removed")
	return res, nil
}

// Personnel resolves the unit's roster for one role to user documents,
// skipping ids that no longer resolve.
func (e *Engine) Personnel(ctx context.Context, unitID, role string) ([]domain.User, error) {
	unit, err := e.units.Get(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, ErrNotFound
	}

	ids := unit.Members
	if role == domain.RoleOfficer {
		ids = unit.Officers
	}
	out := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		user, err := e.users.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if user == nil {
			e.log.WithFields(log.Fields{"unit": unitID, "user": id}).Warn("stale roster id")
			continue
		}
		out = append(out, *user)
	}
	return out, nil
}
