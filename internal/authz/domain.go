// Package authz implements the authorization and entitlement resolution
// engine. All entry points are pure functions over already-loaded identity
// data: callers resolve the actor's role and subscription tier first, then
// ask the engine for a decision. The engine performs no I/O and holds no
// state, so every function here is safe for concurrent use.
package authz

import (
	"errors"
	"fmt"
)

// Sentinel errors for the storage boundary. Unknown role or tier strings are
// a hard error, never silently defaulted.
var (
	ErrUnknownRole  = errors.New("authz: unknown role")
	ErrUnknownTier  = errors.New("authz: unknown subscription tier")
	ErrUnknownScope = errors.New("authz: unknown permission scope")
)

// RoleName identifies a role. The set is closed; anything else is rejected
// at parse time.
type RoleName string

const (
	RoleAdmin  RoleName = "admin"
	RoleMember RoleName = "member"
)

// Role is the resolved role of an authenticated actor. Inactive roles deny
// every action before any table is consulted.
type Role struct {
	Name     RoleName
	IsActive bool
}

// IsAdmin reports whether the role carries administrator capability.
func (r Role) IsAdmin() bool {
	return r.Name == RoleAdmin
}

// ParseRoleName converts a stored role string into a RoleName.
func ParseRoleName(s string) (RoleName, error) {
	switch RoleName(s) {
	case RoleAdmin, RoleMember:
		return RoleName(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// SubscriptionTier is an ordered subscription level. It drives usage
// entitlement only and never grants or denies access by itself.
type SubscriptionTier string

const (
	TierFree       SubscriptionTier = "free"
	TierPro        SubscriptionTier = "pro"
	TierEnterprise SubscriptionTier = "enterprise"
)

var tierLevels = map[SubscriptionTier]int{
	TierFree:       1,
	TierPro:        2,
	TierEnterprise: 3,
}

// Level returns the ordinal position of the tier. Unknown tiers report zero,
// below every valid tier; they cannot occur past the parse boundary.
func (t SubscriptionTier) Level() int {
	return tierLevels[t]
}

// IsAtLeast reports whether the tier meets or exceeds the given minimum.
func (t SubscriptionTier) IsAtLeast(min SubscriptionTier) bool {
	return t.Level() >= min.Level()
}

// ParseTier converts a stored tier string into a SubscriptionTier.
func ParseTier(s string) (SubscriptionTier, error) {
	if _, ok := tierLevels[SubscriptionTier(s)]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, s)
	}
	return SubscriptionTier(s), nil
}

// Resource names a protected resource class.
type Resource string

const (
	ResourceTasks Resource = "tasks"
	ResourceUsers Resource = "users"
	ResourceRoles Resource = "roles"
)

// Action names an operation on a resource.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)
