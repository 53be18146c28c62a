package hierarchy

// UnitTypes is the configured enumeration of valid unit types. Order defines
// sort precedence for unit listings: earlier entries sort first.
type UnitTypes struct {
	ordered []string
	rank    map[string]int
}

// NewUnitTypes builds the enumeration from an ordered list.
func NewUnitTypes(ordered []string) *UnitTypes {
	rank := make(map[string]int, len(ordered))
	for i, t := range ordered {
		if _, seen := rank[t]; !seen {
			rank[t] = i
		}
	}
	return &UnitTypes{ordered: ordered, rank: rank}
}

// Valid reports whether t is part of the enumeration.
func (u *UnitTypes) Valid(t string) bool {
	_, ok := u.rank[t]
	return ok
}

// Rank returns the sort precedence of t. Unknown types sort last.
func (u *UnitTypes) Rank(t string) int {
	if r, ok := u.rank[t]; ok {
		return r
	}
	return len(u.ordered)
}

// List returns the configured order.
func (u *UnitTypes) List() []string {
	out := make([]string, len(u.ordered))
	copy(out, u.ordered)
	return out
}
