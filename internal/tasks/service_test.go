package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive/internal/authz"
	"github.com/taskhive/taskhive/internal/shared"
	_ "github.com/taskhive/taskhive/testing"
)

type stubRepo struct {
	tasks  map[int64]Task
	nextID int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{tasks: make(map[int64]Task), nextID: 1}
}

func (s *stubRepo) seed(t Task) Task {
	if t.ID == 0 {
		t.ID = s.nextID
		s.nextID++
	}
	if t.Status == "" {
		t.Status = StatusOpen
	}
	s.tasks[t.ID] = t
	return t
}

func (s *stubRepo) GetTask(ctx context.Context, id int64) (Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return t, nil
}

func (s *stubRepo) ListTasks(ctx context.Context, f ListFilter) ([]Task, error) {
	var out []Task
	for _, t := range s.tasks {
		if t.OrganizationID != f.OrganizationID {
			continue
		}
		if f.OwnerID != nil && (t.OwnerID == nil || *t.OwnerID != *f.OwnerID) {
			continue
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *stubRepo) CountOwnedTasks(ctx context.Context, ownerID int64) (uint32, error) {
	var n uint32
	for _, t := range s.tasks {
		if t.OwnerID != nil && *t.OwnerID == ownerID && t.Status != StatusArchived {
			n++
		}
	}
	return n, nil
}

func (s *stubRepo) CreateTask(ctx context.Context, t Task) (Task, error) {
	return s.seed(t), nil
}

func (s *stubRepo) UpdateTask(ctx context.Context, t Task) (Task, error) {
	if _, ok := s.tasks[t.ID]; !ok {
		return Task{}, ErrNotFound
	}
	s.tasks[t.ID] = t
	return t, nil
}

func (s *stubRepo) DeleteTask(ctx context.Context, id int64) error {
	if _, ok := s.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func actor(userID int64, role authz.RoleName, tier authz.SubscriptionTier) *authz.Identity {
	return &authz.Identity{
		UserID:         userID,
		OrganizationID: 1,
		Role:           authz.Role{Name: role, IsActive: true},
		Tier:           tier,
	}
}

func owned(ownerID int64) Task {
	return Task{OrganizationID: 1, OwnerID: &ownerID, Title: "work item"}
}

func TestListTasksScopes(t *testing.T) {
	repo := newStubRepo()
	repo.seed(owned(10))
	repo.seed(owned(10))
	repo.seed(owned(20))
	svc := NewService(repo)

	mine, err := svc.ListTasks(context.Background(), actor(10, authz.RoleMember, authz.TierFree), nil, 1, 50)
	require.NoError(t, err)
	assert.Len(t, mine, 2, "member sees only own tasks")

	all, err := svc.ListTasks(context.Background(), actor(99, authz.RoleAdmin, authz.TierFree), nil, 1, 50)
	require.NoError(t, err)
	assert.Len(t, all, 3, "admin scope covers the whole tenant")
}

func TestListTasksInactiveRole(t *testing.T) {
	svc := NewService(newStubRepo())
	inactive := actor(10, authz.RoleAdmin, authz.TierEnterprise)
	inactive.Role.IsActive = false

	_, err := svc.ListTasks(context.Background(), inactive, nil, 1, 50)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrForbidden))
}

func TestGetTaskOwnership(t *testing.T) {
	repo := newStubRepo()
	task := repo.seed(owned(10))
	svc := NewService(repo)

	got, err := svc.GetTask(context.Background(), actor(10, authz.RoleMember, authz.TierFree), task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)

	_, err = svc.GetTask(context.Background(), actor(20, authz.RoleMember, authz.TierFree), task.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrForbidden))

	_, err = svc.GetTask(context.Background(), actor(20, authz.RoleAdmin, authz.TierFree), task.ID)
	require.NoError(t, err, "admin reads any task")
}

func TestCreateTaskQuota(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo)
	free := actor(10, authz.RoleMember, authz.TierFree)

	// Free tier caps at 100 live tasks.
	for i := 0; i < 100; i++ {
		repo.seed(owned(10))
	}
	_, err := svc.CreateTask(context.Background(), free, CreateInput{Title: "one too many"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrQuotaExceeded))

	// Archived tasks do not count against the cap.
	for id, task := range repo.tasks {
		task.Status = StatusArchived
		repo.tasks[id] = task
	}
	created, err := svc.CreateTask(context.Background(), free, CreateInput{Title: "fits again"})
	require.NoError(t, err)
	require.NotNil(t, created.OwnerID)
	assert.Equal(t, int64(10), *created.OwnerID)
	assert.Equal(t, StatusOpen, created.Status)
}

func TestCreateTaskEnterpriseIsUncapped(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo)
	for i := 0; i < 150; i++ {
		repo.seed(owned(10))
	}
	_, err := svc.CreateTask(context.Background(), actor(10, authz.RoleMember, authz.TierEnterprise), CreateInput{Title: "unbounded"})
	require.NoError(t, err)
}

func TestCreateTaskRequiresTitle(t *testing.T) {
	svc := NewService(newStubRepo())
	_, err := svc.CreateTask(context.Background(), actor(10, authz.RoleMember, authz.TierPro), CreateInput{Title: "   "})
	require.Error(t, err)
}

func TestUpdateTaskOwnership(t *testing.T) {
	repo := newStubRepo()
	task := repo.seed(owned(10))
	svc := NewService(repo)

	updated, err := svc.UpdateTask(context.Background(), actor(10, authz.RoleMember, authz.TierFree), task.ID, UpdateInput{
		Title:  "renamed",
		Status: StatusInProgress,
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
	assert.Equal(t, StatusInProgress, updated.Status)

	_, err = svc.UpdateTask(context.Background(), actor(20, authz.RoleMember, authz.TierFree), task.ID, UpdateInput{Title: "hijack"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrForbidden))
}

func TestDeleteTask(t *testing.T) {
	repo := newStubRepo()
	task := repo.seed(owned(10))
	svc := NewService(repo)

	err := svc.DeleteTask(context.Background(), actor(20, authz.RoleMember, authz.TierFree), task.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrForbidden))

	require.NoError(t, svc.DeleteTask(context.Background(), actor(10, authz.RoleMember, authz.TierFree), task.ID))
	_, err = svc.GetTask(context.Background(), actor(10, authz.RoleAdmin, authz.TierFree), task.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestBatchUpdateStatusFeatureGate(t *testing.T) {
	repo := newStubRepo()
	a := repo.seed(owned(10))
	b := repo.seed(owned(10))
	svc := NewService(repo)

	// Free tier carries no write privilege at all.
	_, err := svc.BatchUpdateStatus(context.Background(), actor(10, authz.RoleMember, authz.TierFree), []int64{a.ID, b.ID}, StatusDone)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrForbidden))

	updated, err := svc.BatchUpdateStatus(context.Background(), actor(10, authz.RoleMember, authz.TierPro), []int64{a.ID, b.ID}, StatusDone)
	require.NoError(t, err)
	require.Len(t, updated, 2)
	for _, task := range updated {
		assert.Equal(t, StatusDone, task.Status)
	}
}

func TestBatchUpdateStatusForeignTaskAborts(t *testing.T) {
	repo := newStubRepo()
	mine := repo.seed(owned(10))
	other := repo.seed(owned(20))
	svc := NewService(repo)

	_, err := svc.BatchUpdateStatus(context.Background(), actor(10, authz.RoleMember, authz.TierPro), []int64{mine.ID, other.ID}, StatusDone)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrForbidden))
}

func TestExportTasksFeatureGate(t *testing.T) {
	repo := newStubRepo()
	repo.seed(owned(10))
	repo.seed(owned(20))
	svc := NewService(repo)

	_, err := svc.ExportTasks(context.Background(), actor(10, authz.RoleMember, authz.TierFree))
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrForbidden))

	mine, err := svc.ExportTasks(context.Background(), actor(10, authz.RoleMember, authz.TierPro))
	require.NoError(t, err)
	assert.Len(t, mine, 1, "member export stays own-scoped")

	// Enterprise read privilege has no quota, so every feature is granted.
	all, err := svc.ExportTasks(context.Background(), actor(99, authz.RoleAdmin, authz.TierEnterprise))
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
