package authz

import "fmt"

// PermissionScope is the breadth of visibility a granted permission carries.
// Scopes form a total order: Own < Team < Organization < Global.
type PermissionScope string

const (
	ScopeOwn          PermissionScope = "own"
	ScopeTeam         PermissionScope = "team"
	ScopeOrganization PermissionScope = "organization"
	ScopeGlobal       PermissionScope = "global"
)

var scopeLevels = map[PermissionScope]int{
	ScopeOwn:          1,
	ScopeTeam:         2,
	ScopeOrganization: 3,
	ScopeGlobal:       4,
}

// Level returns the ordinal position of the scope in the lattice.
func (s PermissionScope) Level() int {
	return scopeLevels[s]
}

// Includes reports whether s covers other. A granted scope satisfies a
// required scope exactly when it includes it.
func (s PermissionScope) Includes(other PermissionScope) bool {
	return s.Level() >= other.Level()
}

// ParseScope converts a stored scope string into a PermissionScope.
func ParseScope(s string) (PermissionScope, error) {
	if _, ok := scopeLevels[PermissionScope(s)]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownScope, s)
	}
	return PermissionScope(s), nil
}
