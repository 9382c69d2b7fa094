package departments

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/taskhive/taskhive/internal/authz"
	"github.com/taskhive/taskhive/internal/shared"
)

const hierarchyCacheTTL = 30 * time.Second

// RepositoryPort defines data access methods for departments.
type RepositoryPort interface {
	FindByOrganization(ctx context.Context, orgID int64) ([]Department, error)
	GetDepartment(ctx context.Context, id int64) (Department, error)
	CreateDepartment(ctx context.Context, d Department) (Department, error)
	UpdateDepartment(ctx context.Context, d Department) (Department, error)
	HasChildren(ctx context.Context, id int64) (bool, error)
	DeleteDepartment(ctx context.Context, id int64) error
	CountMembersByDepartment(ctx context.Context, orgID int64) (map[int64]uint32, error)
	FindPermissionMatrix(ctx context.Context, entityType EntityType, entityID int64) (*PermissionMatrix, error)
}

// Service handles department business logic. Hierarchy reads are deduped
// through singleflight and cached briefly in Redis; the underlying build is
// recomputed from a fresh snapshot on every miss.
type Service struct {
	repo  RepositoryPort
	cache *redis.Client
	group singleflight.Group
}

// NewService builds Service instance. cache may be nil in tests.
func NewService(repo RepositoryPort, cache *redis.Client) *Service {
	return &Service{repo: repo, cache: cache}
}

// CreateInput collects fields for a new department.
type CreateInput struct {
	ParentDepartmentID *int64
	Name               string
	ManagerUserID      *int64
}

// Hierarchy returns the department forest of the actor's organization.
// withCounts attaches member headcounts from the aggregate query.
func (s *Service) Hierarchy(ctx context.Context, actor *authz.Identity, withCounts bool) ([]*DepartmentTree, error) {
	forest, err := s.buildHierarchy(ctx, actor.OrganizationID)
	if err != nil {
		return nil, err
	}
	if withCounts {
		counts, err := s.repo.CountMembersByDepartment(ctx, actor.OrganizationID)
		if err != nil {
			return nil, err
		}
		applyCounts(forest, counts)
	}
	return forest, nil
}

func (s *Service) buildHierarchy(ctx context.Context, orgID int64) ([]*DepartmentTree, error) {
	key := "departments:hierarchy:" + strconv.FormatInt(orgID, 10)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var forest []*DepartmentTree
			if json.Unmarshal(raw, &forest) == nil {
				return forest, nil
			}
		}
	}

	// Collapsed callers share the serialized form, never the node graph.
	// Each caller unmarshals its own copy so later mutation (member
	// counts) stays request-local.
	v, err, _ := s.group.Do(key, func() (any, error) {
		depts, err := s.repo.FindByOrganization(ctx, orgID)
		if err != nil {
			return nil, err
		}
		forest, err := BuildHierarchy(depts)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(forest)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			_ = s.cache.Set(ctx, key, raw, hierarchyCacheTTL).Err()
		}
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	var forest []*DepartmentTree
	if err := json.Unmarshal(v.([]byte), &forest); err != nil {
		return nil, err
	}
	return forest, nil
}

// EffectivePermissionsFor merges the organization matrix with the matrices
// of the department chain from the root down to the given department.
func (s *Service) EffectivePermissionsFor(ctx context.Context, actor *authz.Identity, departmentID int64) (EffectivePermissions, error) {
	dept, err := s.repo.GetDepartment(ctx, departmentID)
	if err != nil {
		return EffectivePermissions{}, err
	}
	if dept.OrganizationID != actor.OrganizationID {
		return EffectivePermissions{}, shared.ErrForbidden
	}

	depts, err := s.repo.FindByOrganization(ctx, actor.OrganizationID)
	if err != nil {
		return EffectivePermissions{}, err
	}
	lineage, err := chainTo(depts, departmentID)
	if err != nil {
		return EffectivePermissions{}, err
	}

	var chain []PermissionMatrix
	if m, err := s.repo.FindPermissionMatrix(ctx, EntityOrganization, actor.OrganizationID); err != nil {
		return EffectivePermissions{}, err
	} else if m != nil {
		chain = append(chain, *m)
	}
	for _, id := range lineage {
		m, err := s.repo.FindPermissionMatrix(ctx, EntityDepartment, id)
		if err != nil {
			return EffectivePermissions{}, err
		}
		if m != nil {
			chain = append(chain, *m)
		}
	}
	return AnalyzeEffectivePermissions(chain), nil
}

// CreateDepartment creates a department under the actor's organization.
// Admin only; the parent, when given, must belong to the same organization.
func (s *Service) CreateDepartment(ctx context.Context, actor *authz.Identity, in CreateInput) (Department, error) {
	if !actor.Role.IsActive || !actor.Role.IsAdmin() {
		return Department{}, shared.ErrForbidden
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Department{}, fmt.Errorf("departments: name required")
	}
	if in.ParentDepartmentID != nil {
		parent, err := s.repo.GetDepartment(ctx, *in.ParentDepartmentID)
		if err != nil {
			return Department{}, err
		}
		if parent.OrganizationID != actor.OrganizationID {
			return Department{}, shared.ErrForbidden
		}
	}
	dept, err := s.repo.CreateDepartment(ctx, Department{
		OrganizationID:     actor.OrganizationID,
		ParentDepartmentID: in.ParentDepartmentID,
		Name:               name,
		ManagerUserID:      in.ManagerUserID,
		IsActive:           true,
	})
	if err != nil {
		return Department{}, err
	}
	s.invalidateHierarchy(ctx, actor.OrganizationID)
	return dept, nil
}

// UpdateInput collects mutable department fields.
type UpdateInput struct {
	ParentDepartmentID *int64
	Name               string
	ManagerUserID      *int64
	IsActive           bool
}

// UpdateDepartment renames or moves a department. A move that would place a
// department inside its own subtree is rejected as a structural error.
func (s *Service) UpdateDepartment(ctx context.Context, actor *authz.Identity, id int64, in UpdateInput) (Department, error) {
	if !actor.Role.IsActive || !actor.Role.IsAdmin() {
		return Department{}, shared.ErrForbidden
	}
	dept, err := s.repo.GetDepartment(ctx, id)
	if err != nil {
		return Department{}, err
	}
	if dept.OrganizationID != actor.OrganizationID {
		return Department{}, shared.ErrForbidden
	}
	if in.ParentDepartmentID != nil {
		parent, err := s.repo.GetDepartment(ctx, *in.ParentDepartmentID)
		if err != nil {
			return Department{}, err
		}
		if parent.OrganizationID != actor.OrganizationID {
			return Department{}, shared.ErrForbidden
		}
		depts, err := s.repo.FindByOrganization(ctx, actor.OrganizationID)
		if err != nil {
			return Department{}, err
		}
		lineage, err := chainTo(depts, *in.ParentDepartmentID)
		if err != nil {
			return Department{}, err
		}
		for _, ancestor := range lineage {
			if ancestor == id {
				return Department{}, fmt.Errorf("%w: department %d cannot move under its own subtree", ErrHierarchyCycle, id)
			}
		}
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		dept.Name = name
	}
	dept.ParentDepartmentID = in.ParentDepartmentID
	dept.ManagerUserID = in.ManagerUserID
	dept.IsActive = in.IsActive
	updated, err := s.repo.UpdateDepartment(ctx, dept)
	if err != nil {
		return Department{}, err
	}
	s.invalidateHierarchy(ctx, actor.OrganizationID)
	return updated, nil
}

// DeleteDepartment deletes a department. Departments with children cannot
// be deleted; children must be moved or removed first.
func (s *Service) DeleteDepartment(ctx context.Context, actor *authz.Identity, id int64) error {
	if !actor.Role.IsActive || !actor.Role.IsAdmin() {
		return shared.ErrForbidden
	}
	dept, err := s.repo.GetDepartment(ctx, id)
	if err != nil {
		return err
	}
	if dept.OrganizationID != actor.OrganizationID {
		return shared.ErrForbidden
	}
	hasChildren, err := s.repo.HasChildren(ctx, id)
	if err != nil {
		return err
	}
	if hasChildren {
		return ErrHasChildren
	}
	if err := s.repo.DeleteDepartment(ctx, id); err != nil {
		return err
	}
	s.invalidateHierarchy(ctx, actor.OrganizationID)
	return nil
}

func (s *Service) invalidateHierarchy(ctx context.Context, orgID int64) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, "departments:hierarchy:"+strconv.FormatInt(orgID, 10)).Err()
}

// chainTo returns the department ids from the topmost ancestor down to
// target, inclusive. A cycle in the parent references is reported rather
// than walked forever.
func chainTo(depts []Department, target int64) ([]int64, error) {
	byID := make(map[int64]Department, len(depts))
	for _, d := range depts {
		byID[d.ID] = d
	}
	var reversed []int64
	seen := make(map[int64]struct{})
	id := target
	for {
		d, ok := byID[id]
		if !ok {
			break
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: department %d in its own ancestor chain", ErrHierarchyCycle, id)
		}
		seen[id] = struct{}{}
		reversed = append(reversed, id)
		if d.ParentDepartmentID == nil {
			break
		}
		id = *d.ParentDepartmentID
	}
	chain := make([]int64, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		chain = append(chain, reversed[i])
	}
	return chain, nil
}

func applyCounts(forest []*DepartmentTree, counts map[int64]uint32) {
	stack := append([]*DepartmentTree(nil), forest...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if c, ok := counts[n.Department.ID]; ok {
			count := c
			n.MemberCount = &count
		}
		stack = append(stack, n.Children...)
	}
}
