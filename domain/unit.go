package domain

import "github.com/bytedance/sonic"

// Roster roles a user can hold within a unit.
const (
	RoleMember  = "member"
	RoleOfficer = "officer"
)

// Unit represents a single organizational node. Parent/Children and the
// member/officer rosters are denormalized: every id stored here must be
// mirrored on the other side (the parent's Children list, the user's Units
// list). The hierarchy engine is the only writer of those cross-references.
type Unit struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Type     string   `json:"unitType"`
	Parent   string   `json:"parent,omitempty"`
	Children []string `json:"children"`
	Officers []string `json:"officers"`
	Members  []string `json:"members"`

	// Free-form extension fields carried through untouched.
	Frontpage string                 `json:"frontpage,omitempty"`
	Channels  sonic.NoCopyRawMessage `json:"channels,omitempty"`
}

// AddMember records a user on the member roster. It returns false when the
// user is already rostered in either role.
func (u *Unit) AddMember(id string) bool {
	if u.RoleOf(id) != "" {
		return false
	}
	u.Members = append(u.Members, id)
	return true
}

// DeleteMember removes a user from the member roster, returning false when
// the user was not on it.
func (u *Unit) DeleteMember(id string) bool {
	for i, m := range u.Members {
		if m == id {
			u.Members = append(u.Members[:i], u.Members[i+1:]...)
			return true
		}
	}
	return false
}

// AddOfficer records a user on the officer roster. It returns false when the
// user is already rostered in either role.
func (u *Unit) AddOfficer(id string) bool {
	if u.RoleOf(id) != "" {
		return false
	}
	u.Officers = append(u.Officers, id)
	return true
}

// DeleteOfficer removes a user from the officer roster, returning false when
// the user was not on it.
func (u *Unit) DeleteOfficer(id string) bool {
	for i, o := range u.Officers {
		if o == id {
			u.Officers = append(u.Officers[:i], u.Officers[i+1:]...)
			return true
		}
	}
	return false
}

// AddChild links a child unit id. Adding an id that is already linked is a
// no-op and still reports success.
func (u *Unit) AddChild(id string) bool {
	for _, c := range u.Children {
		if c == id {
			return true
		}
	}
	u.Children = append(u.Children, id)
	return true
}

// DeleteChild unlinks a child unit id. Deleting an id that is not linked is
// a no-op and still reports success.
func (u *Unit) DeleteChild(id string) bool {
	for i, c := range u.Children {
		if c == id {
			u.Children = append(u.Children[:i], u.Children[i+1:]...)
			return true
		}
	}
	return true
}

// RoleOf reports which roster the user id sits on, or "" when it is on
// neither. A user holds at most one role per unit.
func (u *Unit) RoleOf(id string) string {
	for _, m := range u.Members {
		if m == id {
			return RoleMember
		}
	}
	for _, o := range u.Officers {
		if o == id {
			return RoleOfficer
		}
	}
	return ""
}

// Personnel returns the union of both rosters, members first.
func (u *Unit) Personnel() []string {
	out := make([]string, 0, len(u.Members)+len(u.Officers))
	out = append(out, u.Members...)
	out = append(out, u.Officers...)
	return out
}
