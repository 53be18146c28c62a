package hierarchy

import (
	"context"
	"sort"

	"wingsuite-api/domain"
)

// DescendantsOf returns every unit reachable downward from the seed ids,
// seeds included. The walk is iterative with an explicit stack so tree depth
// never becomes a stack limit, and ids are marked visited before they are
// pushed so even a cycle (an invariant violation) cannot loop the walk.
func (e *Engine) DescendantsOf(ctx context.Context, unitIDs []string) ([]domain.Unit, error) {
	visited := make(map[string]bool, len(unitIDs))
	stack := make([]string, 0, len(unitIDs))
	for _, id := range unitIDs {
		if visited[id] {
			continue
		}
		visited[id] = true
		stack = append(stack, id)
	}

	var out []domain.Unit
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		unit, err := e.units.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if unit == nil {
			continue
		}
		out = append(out, *unit)
		for _, child := range unit.Children {
			if visited[child] {
				continue
			}
			visited[child] = true
			stack = append(stack, child)
		}
	}

	e.sortUnits(out)
	return out, nil
}

// AncestorsOf returns every unit on the parent chains of the seed ids, seeds
// included. Termination relies on the forest invariant plus the visited set.
func (e *Engine) AncestorsOf(ctx context.Context, unitIDs []string) ([]domain.Unit, error) {
	visited := make(map[string]bool, len(unitIDs))
	var out []domain.Unit

	for _, id := range unitIDs {
		for id != "" && !visited[id] {
			visited[id] = true
			unit, err := e.units.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			if unit == nil {
				break
			}
			out = append(out, *unit)
			id = unit.Parent
		}
	}

	e.sortUnits(out)
	return out, nil
}

// Units lists every unit in the configured type order, then by name.
func (e *Engine) Units(ctx context.Context) ([]domain.Unit, error) {
	units, err := e.units.List(ctx)
	if err != nil {
		return nil, err
	}
	e.sortUnits(units)
	return units, nil
}

func (e *Engine) sortUnits(units []domain.Unit) {
	sort.SliceStable(units, func(i, j int) bool {
		ri, rj := e.types.Rank(units[i].Type), e.types.Rank(units[j].Type)
		if ri != rj {
			return ri < rj
		}
		return units[i].Name < units[j].Name
	})
}
