package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"

	"wingsuite-api/domain"
	"wingsuite-api/hierarchy"
	"wingsuite-api/taskflow"
)

type fakeHierarchy struct {
	units map[string]*domain.Unit
	users map[string]*domain.User

	createdID   string
	lastParams  hierarchy.CreateUnitParams
	lastFields  map[string]any
	batchResult hierarchy.BatchResult
	batchRole   string
	batchUsers  []string
	deleted     []string
	err         error
}

func (f *fakeHierarchy) CreateUnit(_ context.Context, p hierarchy.CreateUnitParams) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.lastParams = p
	return f.createdID, nil
}

func (f *fakeHierarchy) DeleteUnit(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeHierarchy) UpdateUnit(_ context.Context, id string, fields map[string]any) error {
	if f.err != nil {
		return f.err
	}
	f.lastFields = fields
	return nil
}

func (f *fakeHierarchy) Reparent(_ context.Context, id, newParent string) error { return f.err }

func (f *fakeHierarchy) GetUnit(_ context.Context, id string) (*domain.Unit, error) {
	if f.err != nil {
		return nil, f.err
	}
	unit, ok := f.units[id]
	if !ok {
		return nil, hierarchy.ErrNotFound
	}
	return unit, nil
}

func (f *fakeHierarchy) GetUser(_ context.Context, id string) (*domain.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, hierarchy.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeHierarchy) Units(_ context.Context) ([]domain.Unit, error) {
	out := []domain.Unit{}
	for _, u := range f.units {
		out = append(out, *u)
	}
	return out, f.err
}

func (f *fakeHierarchy) AddPersonnel(_ context.Context, unitID string, userIDs []string, role string) (hierarchy.BatchResult, error) {
	f.batchUsers = userIDs
	f.batchRole = role
	return f.batchResult, f.err
}

func (f *fakeHierarchy) RemovePersonnel(_ context.Context, unitID string, userIDs []string, role string) (hierarchy.BatchResult, error) {
	f.batchUsers = userIDs
	f.batchRole = role
	return f.batchResult, f.err
}

func (f *fakeHierarchy) Personnel(_ context.Context, unitID, role string) ([]domain.User, error) {
	return nil, f.err
}

func (f *fakeHierarchy) GrantPermission(_ context.Context, userID, token string) (bool, error) {
	return true, f.err
}

func (f *fakeHierarchy) RevokePermission(_ context.Context, userID, token string) (bool, error) {
	return false, f.err
}

type fakeScope struct {
	above bool
	err   error
}

func (f *fakeScope) IsOfficerFromAbove(context.Context, []string, string) (bool, error) {
	return f.above, f.err
}

type fakeWorkflow struct {
	tasks      map[string]*domain.Task
	page       taskflow.TaskPage
	pageErr    error
	lastAction string
	err        error
}

func (f *fakeWorkflow) CreateTask(_ context.Context, p taskflow.CreateTaskParams) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "task-1", nil
}

func (f *fakeWorkflow) GetTask(_ context.Context, id string) (*domain.Task, error) {
	task, ok := f.tasks[id]
	if !ok {
		return nil, taskflow.ErrNotFound
	}
	return task, nil
}

func (f *fakeWorkflow) RequestCompletion(_ context.Context, taskID, userID, note string) error {
	return f.err
}

func (f *fakeWorkflow) ChangeStatus(_ context.Context, taskID, userID, note, action string) error {
	f.lastAction = action
	return f.err
}

func (f *fakeWorkflow) UpdateTask(_ context.Context, id string, fields map[string]any) error {
	return f.err
}

func (f *fakeWorkflow) DeleteTask(_ context.Context, id string) error { return f.err }

func (f *fakeWorkflow) DispatchedTasks(_ context.Context, author string, pageSize, pageIndex int) (taskflow.TaskPage, error) {
	return f.page, f.pageErr
}

type mockAuth struct {
	userID string
	err    error
}

func (m mockAuth) UserIDFromAuthHeader(string) (string, error) { return m.userID, m.err }

func testServer(h *fakeHierarchy, scope *fakeScope, flow *fakeWorkflow, actor string) *Server {
	logger, _ := test.NewNullLogger()
	return &Server{
		Hierarchy:      h,
		Scope:          scope,
		Workflow:       flow,
		Auth:           mockAuth{userID: actor},
		RootPermission: "root",
		Log:            logger,
	}
}

func doRequest(t *testing.T, handler echo.HandlerFunc, method, target, body string, params ...string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.Header.Set(echo.HeaderAuthorization, "Bearer a.b.c")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for i := 0; i+1 < len(params); i += 2 {
		c.SetParamNames(params[i])
		c.SetParamValues(params[i+1])
	}
	if err := handler(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return rec
}

func rootUser(id string) *domain.User {
	return &domain.User{ID: id, Permissions: []string{"root"}}
}

func TestCreateUnitAsRoot(t *testing.T) {
	h := &fakeHierarchy{createdID: "u-new", users: map[string]*domain.User{"admin": rootUser("admin")}}
	s := testServer(h, &fakeScope{}, &fakeWorkflow{}, "admin")

	body := `{"name":"Alpha Flight","unitType":"flight","members":["m1"]}`
	rec := doRequest(t, createUnit(s), http.MethodPost, "/api/unit/create_unit", body)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if h.lastParams.Name != "Alpha Flight" || h.lastParams.Type != "flight" {
		t.Fatalf("unexpected params: %+v", h.lastParams)
	}
	var resp map[string]string
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["id"] != "u-new" {
		t.Fatalf("unexpected id: %q", resp["id"])
	}
}

func TestCreateUnitForbiddenWithoutRootOrScope(t *testing.T) {
	h := &fakeHierarchy{users: map[string]*domain.User{"pleb": {ID: "pleb"}}}
	s := testServer(h, &fakeScope{above: false}, &fakeWorkflow{}, "pleb")

	body := `{"name":"Alpha","unitType":"flight","parent":"p1"}`
	rec := doRequest(t, createUnit(s), http.MethodPost, "/api/unit/create_unit", body)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestCreateUnitOfficerAboveParent(t *testing.T) {
	h := &fakeHierarchy{createdID: "u-new", users: map[string]*domain.User{"off": {ID: "off"}}}
	s := testServer(h, &fakeScope{above: true}, &fakeWorkflow{}, "off")

	body := `{"name":"Alpha","unitType":"flight","parent":"p1"}`
	rec := doRequest(t, createUnit(s), http.MethodPost, "/api/unit/create_unit", body)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetUnitNotFound(t *testing.T) {
	h := &fakeHierarchy{units: map[string]*domain.Unit{}, users: map[string]*domain.User{"u": {ID: "u"}}}
	s := testServer(h, &fakeScope{}, &fakeWorkflow{}, "u")

	rec := doRequest(t, getUnit(s), http.MethodGet, "/api/unit/get_unit/x", "", "id", "x")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestUpdateUnitRejectsProtectedField(t *testing.T) {
	h := &fakeHierarchy{
		users: map[string]*domain.User{"admin": rootUser("admin")},
		err:   hierarchy.ProtectedFieldError{Field: "members"},
	}
	s := testServer(h, &fakeScope{}, &fakeWorkflow{}, "admin")

	rec := doRequest(t, updateUnit(s), http.MethodPost, "/api/unit/update_unit/x", `{"members":["m1"]}`, "id", "x")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAddPersonnelReturnsPerIDResults(t *testing.T) {
	h := &fakeHierarchy{
		users: map[string]*domain.User{"admin": rootUser("admin")},
		batchResult: hierarchy.BatchResult{
			PerID: map[string]string{"m1": "added", "ghost": "User not found"},
			OK:    true,
		},
	}
	s := testServer(h, &fakeScope{}, &fakeWorkflow{}, "admin")

	body := `{"role":"member","users":["m1","ghost"]}`
	rec := doRequest(t, addPersonnel(s), http.MethodPost, "/api/unit/add_personnel/x", body, "id", "x")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if h.batchRole != domain.RoleMember || len(h.batchUsers) != 2 {
		t.Fatalf("batch not forwarded: role=%q users=%v", h.batchRole, h.batchUsers)
	}
	var resp personnelResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Results["ghost"] != "User not found" || !resp.OK {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestAddPersonnelRejectsUnknownRole(t *testing.T) {
	h := &fakeHierarchy{users: map[string]*domain.User{"admin": rootUser("admin")}}
	s := testServer(h, &fakeScope{}, &fakeWorkflow{}, "admin")

	rec := doRequest(t, addPersonnel(s), http.MethodPost, "/api/unit/add_personnel/x", `{"role":"chief","users":["m1"]}`, "id", "x")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRequestCompletionMapsWorkflowErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "notAssigned", err: taskflow.ErrNotAssigned, want: http.StatusConflict},
		{name: "invalidTransition", err: taskflow.ErrInvalidTransition, want: http.StatusConflict},
		{name: "notFound", err: taskflow.ErrNotFound, want: http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			flow := &fakeWorkflow{err: tc.err}
			s := testServer(&fakeHierarchy{}, &fakeScope{}, flow, "u1")

			rec := doRequest(t, requestCompletion(s), http.MethodPost, "/api/task/request_completion/t1", `{"note":"done"}`, "id", "t1")

			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestChangeStatusAuthorOnly(t *testing.T) {
	flow := &fakeWorkflow{tasks: map[string]*domain.Task{
		"t1": {ID: "t1", FromUser: "author"},
	}}
	h := &fakeHierarchy{users: map[string]*domain.User{"other": {ID: "other"}}}
	s := testServer(h, &fakeScope{}, flow, "other")

	rec := doRequest(t, changeStatus(s), http.MethodPost, "/api/task/change_status/t1", `{"user":"m1","action":"approve"}`, "id", "t1")

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if flow.lastAction != "" {
		t.Fatalf("expected no action attempted, got %q", flow.lastAction)
	}
}

func TestChangeStatusForwardsAction(t *testing.T) {
	flow := &fakeWorkflow{tasks: map[string]*domain.Task{
		"t1": {ID: "t1", FromUser: "author"},
	}}
	s := testServer(&fakeHierarchy{}, &fakeScope{}, flow, "author")

	rec := doRequest(t, changeStatus(s), http.MethodPost, "/api/task/change_status/t1", `{"user":"m1","action":"approve"}`, "id", "t1")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if flow.lastAction != domain.ActionApprove {
		t.Fatalf("unexpected action: %q", flow.lastAction)
	}
}

func TestDispatchedTasksReturnsPage(t *testing.T) {
	flow := &fakeWorkflow{page: taskflow.TaskPage{
		Tasks: []domain.Task{{ID: "t1", FromUser: "u1", Name: "brief"}},
		Pages: 3,
	}}
	s := testServer(&fakeHierarchy{}, &fakeScope{}, flow, "u1")

	rec := doRequest(t, dispatchedTasks(s), http.MethodGet, "/api/task/dispatched?pageSize=1&pageIndex=0", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp dispatchedResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp.Tasks) != 1 || resp.Tasks[0].ID != "t1" || resp.Pages != 3 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestDispatchedTasksOutOfBoundsPage(t *testing.T) {
	flow := &fakeWorkflow{pageErr: taskflow.ErrPageOutOfBounds}
	s := testServer(&fakeHierarchy{}, &fakeScope{}, flow, "u1")

	rec := doRequest(t, dispatchedTasks(s), http.MethodGet, "/api/task/dispatched?pageSize=1&pageIndex=99", "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDispatchedTasksRejectsBadPageSize(t *testing.T) {
	s := testServer(&fakeHierarchy{}, &fakeScope{}, &fakeWorkflow{}, "u1")

	rec := doRequest(t, dispatchedTasks(s), http.MethodGet, "/api/task/dispatched?pageSize=abc", "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAddPermissionRootOnly(t *testing.T) {
	h := &fakeHierarchy{users: map[string]*domain.User{
		"admin": rootUser("admin"),
		"pleb":  {ID: "pleb"},
	}}

	s := testServer(h, &fakeScope{}, &fakeWorkflow{}, "pleb")
	rec := doRequest(t, addPermission(s), http.MethodPost, "/api/user/add_permission/u2", `{"permission":"unit.view"}`, "id", "u2")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-root, got %d", rec.Code)
	}

	s = testServer(h, &fakeScope{}, &fakeWorkflow{}, "admin")
	rec = doRequest(t, addPermission(s), http.MethodPost, "/api/user/add_permission/u2", `{"permission":"unit.view"}`, "id", "u2")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for root, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUnauthorizedWithoutToken(t *testing.T) {
	s := testServer(&fakeHierarchy{}, &fakeScope{}, &fakeWorkflow{}, "")
	s.Auth = mockAuth{err: errMissingAuthorization}

	rec := doRequest(t, getAllUnits(s), http.MethodGet, "/api/unit/get_all_units", "")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
