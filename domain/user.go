package domain

// User is the hierarchy-relevant view of a person. Units is the inverse
// index of the unit rosters and is maintained exclusively by the hierarchy
// engine; a unit id appears at most once regardless of role.
type User struct {
	ID            string   `json:"id"`
	FirstName     string   `json:"firstName"`
	LastName      string   `json:"lastName"`
	MiddleInitial string   `json:"middleInitial,omitempty"`
	Email         string   `json:"email"`
	Rank          string   `json:"rank,omitempty"`
	Units         []string `json:"units"`
	Permissions   []string `json:"permissions"`
}

// AddUnit records a unit membership, returning false when the id is already
// present.
func (u *User) AddUnit(id string) bool {
	for _, existing := range u.Units {
		if existing == id {
			return false
		}
	}
	u.Units = append(u.Units, id)
	return true
}

// DeleteUnit removes a unit membership, returning false when the id was not
// present.
func (u *User) DeleteUnit(id string) bool {
	for i, existing := range u.Units {
		if existing == id {
			u.Units = append(u.Units[:i], u.Units[i+1:]...)
			return true
		}
	}
	return false
}

// AddPermission grants a permission token, returning false when the token is
// already held.
func (u *User) AddPermission(token string) bool {
	for _, p := range u.Permissions {
		if p == token {
			return false
		}
	}
	u.Permissions = append(u.Permissions, token)
	return true
}

// DeletePermission revokes a permission token, returning false when the
// token was not held.
func (u *User) DeletePermission(token string) bool {
	for i, p := range u.Permissions {
		if p == token {
			u.Permissions = append(u.Permissions[:i], u.Permissions[i+1:]...)
			return true
		}
	}
	return false
}

// HasPermission reports whether the user holds the given token.
func (u *User) HasPermission(token string) bool {
	for _, p := range u.Permissions {
		if p == token {
			return true
		}
	}
	return false
}

// FullName renders the user's display name, optionally surname-first.
func (u *User) FullName(lastNameFirst bool) string {
	middle := ""
	if u.MiddleInitial != "" {
		middle = " " + u.MiddleInitial
	}
	if lastNameFirst {
		return u.LastName + ", " + u.FirstName + middle
	}
	return u.FirstName + middle + " " + u.LastName
}
