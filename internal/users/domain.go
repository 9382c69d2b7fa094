package users

import (
	"time"

	"github.com/taskhive/taskhive/internal/authz"
)

// User represents a user account.
type User struct {
	ID             int64
	OrganizationID int64
	Email          string
	Name           string
	Role           authz.Role
	Tier           authz.SubscriptionTier
	DepartmentID   *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
