// Package departments holds the organizational hierarchy model and the pure
// algorithms over it: reconstructing a department forest from flat records
// and merging permission matrices down an inheritance chain.
package departments

import (
	"errors"
	"time"
)

// Sentinel errors for the department domain.
var (
	// ErrNotFound indicates the requested department does not exist.
	ErrNotFound = errors.New("departments: not found")
	// ErrHasChildren rejects deletion of a department that still has child
	// departments. Children must be moved or deleted first.
	ErrHasChildren = errors.New("departments: department has child departments")
	// ErrHierarchyCycle reports structurally corrupt department data whose
	// parent references form a cycle.
	ErrHierarchyCycle = errors.New("departments: cycle in department hierarchy")
	// ErrDuplicateName indicates a sibling department with the same name.
	ErrDuplicateName = errors.New("departments: duplicate department name")
)

// Department models one organizational unit. A department belongs to exactly
// one organization; ParentDepartmentID, when set, references another
// department of the same organization.
type Department struct {
	ID                 int64
	OrganizationID     int64
	ParentDepartmentID *int64
	Name               string
	ManagerUserID      *int64
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// DepartmentTree is the presentation form of a department with its resolved
// children. MemberCount is filled from an aggregate query when the caller
// requests it; the hierarchy builder never computes it.
type DepartmentTree struct {
	Department  Department
	Children    []*DepartmentTree
	MemberCount *uint32
}

// EntityType distinguishes the owners of a permission matrix.
type EntityType string

const (
	EntityOrganization EntityType = "organization"
	EntityDepartment   EntityType = "department"
)

// PermissionMatrix is the per-entity permission payload stored by the
// matrix repository. Settings, Inheritance and Compliance are opaque to the
// engine: only key presence matters when matrices are merged.
type PermissionMatrix struct {
	EntityType  EntityType
	EntityID    int64
	Settings    map[string]any
	Inheritance map[string]any
	Compliance  map[string]any
}

// EffectivePermissions is the merged view of an organization→department
// matrix chain. Chain records the entities that contributed, broadest
// first.
type EffectivePermissions struct {
	Settings    map[string]any
	Inheritance map[string]any
	Compliance  map[string]any
	Chain       []EntityRef
}

// EntityRef identifies one contributor to an effective permission view.
type EntityRef struct {
	EntityType EntityType
	EntityID   int64
}
