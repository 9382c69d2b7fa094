package authz

import "fmt"

// Decision is the single externally visible outcome of an authorization
// check. It is a value, never an error: callers always receive one and
// branch on Allowed.
type Decision struct {
	Allowed   bool
	Scope     PermissionScope
	Privilege *Privilege
	Reason    string
}

// Denied builds a denial carrying a human-readable reason for audit logs.
func Denied(reason string) Decision {
	return Decision{Reason: reason}
}

// Allowed builds a grant at the given scope, optionally enriched with a
// tier privilege.
func Allowed(scope PermissionScope, privilege *Privilege) Decision {
	return Decision{Allowed: true, Scope: scope, Privilege: privilege}
}

const reasonInactiveRole = "User role is inactive"

// resolveBase consults the role permission table and returns the granted
// scope, or false when the tuple is outside the table. The inactive-role
// short circuit lives in CanPerformAction so that the denial reason is
// uniform across call sites.
func resolveBase(role Role, resource Resource, action Action, targetUserID *int64) (PermissionScope, bool) {
	switch resource {
	case ResourceRoles:
		// Role management is admin-only at global scope, regardless of tier.
		if role.IsAdmin() {
			return ScopeGlobal, true
		}
		return "", false
	case ResourceTasks:
		switch action {
		case ActionRead, ActionWrite, ActionCreate, ActionDelete:
			if role.IsAdmin() {
				return ScopeGlobal, true
			}
			return ScopeOwn, true
		}
	case ResourceUsers:
		switch action {
		case ActionWrite, ActionUpdate:
			if role.IsAdmin() {
				return ScopeGlobal, true
			}
			return ScopeOwn, true
		case ActionRead:
			if role.IsAdmin() {
				return ScopeGlobal, true
			}
			// Members may read a user only when a concrete target is named;
			// the identity match itself happens at the ownership layer.
			if targetUserID != nil {
				return ScopeOwn, true
			}
			return "", false
		}
	}
	return "", false
}

// CanPerformAction combines the role table and the entitlement table into a
// single decision. The subscription tier never denies: it only enriches an
// already-permitted action with quota and feature metadata, so hard feature
// gating is the caller's responsibility via the returned privilege.
func CanPerformAction(role Role, tier SubscriptionTier, resource Resource, action Action, targetUserID *int64) Decision {
	if !role.IsActive {
		return Denied(reasonInactiveRole)
	}
	scope, ok := resolveBase(role, resource, action, targetUserID)
	if !ok {
		return Denied(fmt.Sprintf("Access denied for %s %s action", resource, action))
	}
	return Allowed(scope, ResolveEntitlement(tier, resource, action))
}
