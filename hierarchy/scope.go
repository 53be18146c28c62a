package hierarchy

import "context"

// Scope answers officer-above permission questions. It is a pure predicate:
// the authorization layer around it is responsible for also honoring the
// root/superuser permission token.
type Scope struct {
	engine *Engine
}

// NewScope builds a scope over the given engine.
func NewScope(engine *Engine) *Scope {
	return &Scope{engine: engine}
}

// IsOfficerFromAbove reports whether the actor is an officer of any unit at
// or above the given units in the tree.
func (s *Scope) IsOfficerFromAbove(ctx context.Context, unitIDs []string, actorID string) (bool, error) {
	ancestors, err := s.engine.AncestorsOf(ctx, unitIDs)
	if err != nil {
		return false, err
	}
	for _, unit := range ancestors {
		for _, officer := range unit.Officers {
			if officer == actorID {
				return true, nil
			}
		}
	}
	return false, nil
}
