package authz

// Ownership predicates form a second authorization layer used where a
// concrete resource instance with a known (or absent) owner is at hand.
// They are independent of CanPerformAction: call sites pick whichever layer
// matches the information they have.

// OwnedResource names an instance-level resource category.
type OwnedResource string

const (
	OwnedUser OwnedResource = "user"
	OwnedRole OwnedResource = "role"
	OwnedTask OwnedResource = "task"
	OwnedTeam OwnedResource = "team"
)

// CanAccessUser is the identity-match primitive: an actor may access a user
// record when it is their own or when they are an admin.
func CanAccessUser(role Role, requestingUserID, targetUserID int64) bool {
	if !role.IsActive {
		return false
	}
	return requestingUserID == targetUserID || role.IsAdmin()
}

// CanCreate reports whether the actor may create a resource of the given
// category. User and role records are admin-only; tasks and teams may be
// created by any active role.
func CanCreate(role Role, resource OwnedResource) bool {
	if !role.IsActive {
		return false
	}
	switch resource {
	case OwnedUser, OwnedRole:
		return role.IsAdmin()
	case OwnedTask, OwnedTeam:
		return true
	}
	return false
}

// CanView reports whether the actor may view the instance owned by ownerID.
// A nil owner leaves only admins.
func CanView(role Role, resource OwnedResource, ownerID *int64, requestingUserID int64) bool {
	return ownerOrAdmin(role, resource, ownerID, requestingUserID)
}

// CanUpdate reports whether the actor may update the instance owned by
// ownerID.
func CanUpdate(role Role, resource OwnedResource, ownerID *int64, requestingUserID int64) bool {
	return ownerOrAdmin(role, resource, ownerID, requestingUserID)
}

// CanDelete reports whether the actor may delete the instance owned by
// ownerID. User and role records are deletable by admins only.
func CanDelete(role Role, resource OwnedResource, ownerID *int64, requestingUserID int64) bool {
	if !role.IsActive {
		return false
	}
	switch resource {
	case OwnedUser, OwnedRole:
		return role.IsAdmin()
	}
	return ownerOrAdmin(role, resource, ownerID, requestingUserID)
}

func ownerOrAdmin(role Role, resource OwnedResource, ownerID *int64, requestingUserID int64) bool {
	if !role.IsActive {
		return false
	}
	switch resource {
	case OwnedUser, OwnedRole, OwnedTask, OwnedTeam:
	default:
		return false
	}
	if ownerID != nil && *ownerID == requestingUserID {
		return true
	}
	return role.IsAdmin()
}

// CanAccessAdminFeatures is a coarse gate for endpoints outside the
// resource/action matrix: admins always pass, otherwise Enterprise tier is
// required.
func CanAccessAdminFeatures(role Role, tier SubscriptionTier) bool {
	if !role.IsActive {
		return false
	}
	return role.IsAdmin() || tier.IsAtLeast(TierEnterprise)
}

// CanListUsers gates the user directory: admins always pass, otherwise Pro
// tier is required.
func CanListUsers(role Role, tier SubscriptionTier) bool {
	if !role.IsActive {
		return false
	}
	return role.IsAdmin() || tier.IsAtLeast(TierPro)
}
