package e2e

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskhive/taskhive/internal/app"
	"github.com/taskhive/taskhive/internal/auth"
	"github.com/taskhive/taskhive/internal/authz"
	"github.com/taskhive/taskhive/internal/departments"
	"github.com/taskhive/taskhive/internal/observability"
	"github.com/taskhive/taskhive/internal/orgs"
	"github.com/taskhive/taskhive/internal/shared"
	"github.com/taskhive/taskhive/internal/tasks"
	"github.com/taskhive/taskhive/internal/users"
	"github.com/taskhive/taskhive/jobs"
	_ "github.com/taskhive/taskhive/testing"
)

// The fixtures below stand in for PostgreSQL so the full HTTP pipeline, from
// session cookie to authorization decision to JSON response, runs in-process.

type fixtureUsers struct {
	byID map[int64]users.User
}

func (f *fixtureUsers) GetUser(ctx context.Context, id int64) (users.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return users.User{}, shared.ErrNotFound
	}
	return u, nil
}

func (f *fixtureUsers) ListUsers(ctx context.Context, orgID int64, page shared.Pagination) ([]users.User, error) {
	var out []users.User
	for _, u := range f.byID {
		if u.OrganizationID == orgID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fixtureUsers) CountUsers(ctx context.Context, orgID int64) (int, error) {
	list, _ := f.ListUsers(ctx, orgID, shared.Pagination{})
	return len(list), nil
}

type fixtureAuth struct {
	byEmail map[string]*auth.User
}

func (f *fixtureAuth) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func (f *fixtureAuth) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return nil
}

func (f *fixtureAuth) DeleteSession(ctx context.Context, id string) error { return nil }

type fixtureTasks struct {
	byID   map[int64]tasks.Task
	nextID int64
}

func (f *fixtureTasks) GetTask(ctx context.Context, id int64) (tasks.Task, error) {
	t, ok := f.byID[id]
	if !ok {
		return tasks.Task{}, tasks.ErrNotFound
	}
	return t, nil
}

func (f *fixtureTasks) ListTasks(ctx context.Context, filter tasks.ListFilter) ([]tasks.Task, error) {
	var out []tasks.Task
	for _, t := range f.byID {
		if t.OrganizationID != filter.OrganizationID {
			continue
		}
		if filter.OwnerID != nil && (t.OwnerID == nil || *t.OwnerID != *filter.OwnerID) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fixtureTasks) CountOwnedTasks(ctx context.Context, ownerID int64) (uint32, error) {
	var n uint32
	for _, t := range f.byID {
		if t.OwnerID != nil && *t.OwnerID == ownerID && t.Status != tasks.StatusArchived {
			n++
		}
	}
	return n, nil
}

func (f *fixtureTasks) CreateTask(ctx context.Context, t tasks.Task) (tasks.Task, error) {
	f.nextID++
	t.ID = f.nextID
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	f.byID[t.ID] = t
	return t, nil
}

func (f *fixtureTasks) UpdateTask(ctx context.Context, t tasks.Task) (tasks.Task, error) {
	f.byID[t.ID] = t
	return t, nil
}

func (f *fixtureTasks) DeleteTask(ctx context.Context, id int64) error {
	delete(f.byID, id)
	return nil
}

type fixtureDepartments struct {
	byID map[int64]departments.Department
}

func (f *fixtureDepartments) FindByOrganization(ctx context.Context, orgID int64) ([]departments.Department, error) {
	var out []departments.Department
	for _, d := range f.byID {
		if d.OrganizationID == orgID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fixtureDepartments) GetDepartment(ctx context.Context, id int64) (departments.Department, error) {
	d, ok := f.byID[id]
	if !ok {
		return departments.Department{}, departments.ErrNotFound
	}
	return d, nil
}

func (f *fixtureDepartments) CreateDepartment(ctx context.Context, d departments.Department) (departments.Department, error) {
	d.ID = int64(len(f.byID) + 1)
	f.byID[d.ID] = d
	return d, nil
}

func (f *fixtureDepartments) UpdateDepartment(ctx context.Context, d departments.Department) (departments.Department, error) {
	f.byID[d.ID] = d
	return d, nil
}

func (f *fixtureDepartments) HasChildren(ctx context.Context, id int64) (bool, error) {
	for _, d := range f.byID {
		if d.ParentDepartmentID != nil && *d.ParentDepartmentID == id {
			return true, nil
		}
	}
	return false, nil
}

func (f *fixtureDepartments) DeleteDepartment(ctx context.Context, id int64) error {
	delete(f.byID, id)
	return nil
}

func (f *fixtureDepartments) CountMembersByDepartment(ctx context.Context, orgID int64) (map[int64]uint32, error) {
	return map[int64]uint32{}, nil
}

func (f *fixtureDepartments) FindPermissionMatrix(ctx context.Context, entityType departments.EntityType, entityID int64) (*departments.PermissionMatrix, error) {
	return nil, nil
}

type fixtureOrgs struct{}

func (fixtureOrgs) GetOrganization(ctx context.Context, id int64) (orgs.Organization, error) {
	return orgs.Organization{ID: id, Name: "Hive Labs", Slug: "hive-labs"}, nil
}

type fixtureQueue struct{}

func (fixtureQueue) EnqueueGDPRExport(ctx context.Context, payload jobs.GDPRExportPayload) (*asynq.TaskInfo, error) {
	return &asynq.TaskInfo{}, nil
}

func (fixtureQueue) EnqueueGDPRPurge(ctx context.Context, payload jobs.GDPRPurgePayload) (*asynq.TaskInfo, error) {
	return &asynq.TaskInfo{}, nil
}

type testServer struct {
	router   http.Handler
	sessions *shared.SessionManager
	tasks    *fixtureTasks
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessionManager := shared.NewSessionManager(redisClient, "test_session", time.Hour, false)

	adminRole := authz.Role{Name: authz.RoleAdmin, IsActive: true}
	memberRole := authz.Role{Name: authz.RoleMember, IsActive: true}
	userRepo := &fixtureUsers{byID: map[int64]users.User{
		1: {ID: 1, OrganizationID: 1, Email: "admin@hive.test", Role: adminRole, Tier: authz.TierEnterprise},
		2: {ID: 2, OrganizationID: 1, Email: "member@hive.test", Role: memberRole, Tier: authz.TierFree},
	}}
	usersService := users.NewService(userRepo)
	metrics := observability.NewMetrics()
	guard := authz.Middleware{Resolver: usersService, Logger: logger, Metrics: metrics}

	hash := func(pw string) string {
		h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		return string(h)
	}
	authRepo := &fixtureAuth{byEmail: map[string]*auth.User{
		"admin@hive.test":  {ID: 1, Email: "admin@hive.test", PasswordHash: hash("adminpass1"), IsActive: true},
		"member@hive.test": {ID: 2, Email: "member@hive.test", PasswordHash: hash("memberpass1"), IsActive: true},
	}}

	memberID := int64(2)
	taskRepo := &fixtureTasks{byID: map[int64]tasks.Task{
		1: {ID: 1, OrganizationID: 1, OwnerID: &memberID, Title: "Ship hierarchy endpoint", Status: tasks.StatusOpen},
	}, nextID: 1}

	parent := int64(1)
	deptRepo := &fixtureDepartments{byID: map[int64]departments.Department{
		1: {ID: 1, OrganizationID: 1, Name: "Engineering", IsActive: true},
		2: {ID: 2, OrganizationID: 1, ParentDepartmentID: &parent, Name: "Backend", IsActive: true},
	}}

	cfg := &app.Config{
		AppEnv:            "test",
		AppRequestTimeout: 5 * time.Second,
		RateLimitRequests: 1000,
		RateLimitWindow:   time.Minute,
		SessionTTL:        time.Hour,
	}

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		Guard:              guard,
		AuthHandler:        auth.NewHandler(logger, auth.NewService(authRepo), sessionManager),
		TasksHandler:       tasks.NewHandler(logger, tasks.NewService(taskRepo), guard),
		UsersHandler:       users.NewHandler(logger, usersService, guard),
		DepartmentsHandler: departments.NewHandler(logger, departments.NewService(deptRepo, redisClient), guard),
		OrgsHandler:        orgs.NewHandler(logger, orgs.NewService(fixtureOrgs{}, nil, fixtureQueue{}), guard),
		Metrics:            metrics,
	})

	return &testServer{router: router, sessions: sessionManager, tasks: taskRepo}
}

func (s *testServer) login(t *testing.T, email, password string) *http.Cookie {
	t.Helper()
	body := `{"email":"` + email + `","password":"` + password + `"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	s.router.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", email, res.Code, res.Body.String())
	}
	for _, c := range res.Result().Cookies() {
		if c.Name == s.sessions.CookieName() {
			return c
		}
	}
	t.Fatalf("login %s: no session cookie issued", email)
	return nil
}

func (s *testServer) do(t *testing.T, method, path string, cookie *http.Cookie, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	res := httptest.NewRecorder()
	s.router.ServeHTTP(res, req)
	return res
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	res := srv.do(t, http.MethodGet, "/healthz", nil, "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestUnauthenticatedAPIAccess(t *testing.T) {
	srv := newTestServer(t)
	res := srv.do(t, http.MethodGet, "/api/tasks", nil, "")
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", res.Code)
	}
}

func TestMemberTaskLifecycle(t *testing.T) {
	srv := newTestServer(t)
	cookie := srv.login(t, "member@hive.test", "memberpass1")

	// The member sees only their own task.
	res := srv.do(t, http.MethodGet, "/api/tasks", cookie, "")
	if res.Code != http.StatusOK {
		t.Fatalf("list tasks: expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var listBody struct {
		Tasks []struct {
			ID    int64  `json:"id"`
			Title string `json:"title"`
		} `json:"tasks"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &listBody); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listBody.Tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(listBody.Tasks))
	}

	res = srv.do(t, http.MethodPost, "/api/tasks", cookie, `{"title":"Write tests"}`)
	if res.Code != http.StatusCreated {
		t.Fatalf("create task: expected 201, got %d: %s", res.Code, res.Body.String())
	}

	res = srv.do(t, http.MethodGet, "/api/tasks", cookie, "")
	if err := json.Unmarshal(res.Body.Bytes(), &listBody); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listBody.Tasks) != 2 {
		t.Fatalf("expected 2 tasks after create, got %d", len(listBody.Tasks))
	}
}

func TestFreeTierExportForbidden(t *testing.T) {
	srv := newTestServer(t)
	cookie := srv.login(t, "member@hive.test", "memberpass1")

	res := srv.do(t, http.MethodGet, "/api/tasks/export", cookie, "")
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for free tier export, got %d: %s", res.Code, res.Body.String())
	}
}

func TestUserDirectoryGate(t *testing.T) {
	srv := newTestServer(t)

	member := srv.login(t, "member@hive.test", "memberpass1")
	res := srv.do(t, http.MethodGet, "/api/users", member, "")
	if res.Code != http.StatusForbidden {
		t.Fatalf("free member: expected 403, got %d", res.Code)
	}

	admin := srv.login(t, "admin@hive.test", "adminpass1")
	res = srv.do(t, http.MethodGet, "/api/users", admin, "")
	if res.Code != http.StatusOK {
		t.Fatalf("admin: expected 200, got %d: %s", res.Code, res.Body.String())
	}
}

func TestMemberReadsOwnProfileOnly(t *testing.T) {
	srv := newTestServer(t)
	cookie := srv.login(t, "member@hive.test", "memberpass1")

	res := srv.do(t, http.MethodGet, "/api/users/2", cookie, "")
	if res.Code != http.StatusOK {
		t.Fatalf("self read: expected 200, got %d", res.Code)
	}

	res = srv.do(t, http.MethodGet, "/api/users/1", cookie, "")
	if res.Code != http.StatusForbidden {
		t.Fatalf("foreign read: expected 403, got %d", res.Code)
	}
}

func TestDepartmentHierarchyEndpoint(t *testing.T) {
	srv := newTestServer(t)
	cookie := srv.login(t, "member@hive.test", "memberpass1")

	res := srv.do(t, http.MethodGet, "/api/departments/hierarchy", cookie, "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	body := res.Body.String()
	if !strings.Contains(body, "Engineering") || !strings.Contains(body, "Backend") {
		t.Fatalf("expected both departments in hierarchy, got: %s", body)
	}
}

func TestDepartmentMutationRequiresAdmin(t *testing.T) {
	srv := newTestServer(t)

	member := srv.login(t, "member@hive.test", "memberpass1")
	res := srv.do(t, http.MethodPost, "/api/departments", member, `{"name":"Shadow IT"}`)
	if res.Code != http.StatusForbidden {
		t.Fatalf("member create: expected 403, got %d", res.Code)
	}

	admin := srv.login(t, "admin@hive.test", "adminpass1")
	res = srv.do(t, http.MethodPost, "/api/departments", admin, `{"name":"Design"}`)
	if res.Code != http.StatusCreated {
		t.Fatalf("admin create: expected 201, got %d: %s", res.Code, res.Body.String())
	}
}

func TestOrganizationEndpoint(t *testing.T) {
	srv := newTestServer(t)
	cookie := srv.login(t, "member@hive.test", "memberpass1")

	res := srv.do(t, http.MethodGet, "/api/organization", cookie, "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "hive-labs") {
		t.Fatalf("expected organization slug, got: %s", res.Body.String())
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	srv := newTestServer(t)
	cookie := srv.login(t, "member@hive.test", "memberpass1")

	res := srv.do(t, http.MethodPost, "/auth/logout", cookie, "")
	if res.Code != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", res.Code)
	}

	res = srv.do(t, http.MethodGet, "/api/tasks", cookie, "")
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("after logout: expected 401, got %d", res.Code)
	}
}
