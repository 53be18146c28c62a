package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"wingsuite-api/domain"
	"wingsuite-api/hierarchy"
	"wingsuite-api/taskflow"
)

const requestBodyMaxSize = 1 << 20

// Server bundles the dependencies the handlers close over.
type Server struct {
	Hierarchy      Hierarchy
	Scope          Scope
	Workflow       Workflow
	Auth           Authenticator
	RootPermission string
	Log            *log.Logger
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, s *Server) {
	e.GET("/healthz", healthz())

	e.POST("/api/unit/create_unit", createUnit(s))
	e.GET("/api/unit/get_unit/:id", getUnit(s))
	e.GET("/api/unit/get_all_units", getAllUnits(s))
	e.POST("/api/unit/update_unit/:id", updateUnit(s))
	e.DELETE("/api/unit/delete_unit/:id", deleteUnit(s))
	e.POST("/api/unit/reparent/:id", reparentUnit(s))
	e.POST("/api/unit/add_personnel/:id", addPersonnel(s))
	e.POST("/api/unit/remove_personnel/:id", removePersonnel(s))
	e.GET("/api/unit/get_personnel/:id", getPersonnel(s))
	e.POST("/api/unit/officer_from_above", officerFromAbove(s))

	e.POST("/api/task/create_task", createTask(s))
	e.GET("/api/task/get_task/:id", getTask(s))
	e.POST("/api/task/update_task/:id", updateTask(s))
	e.DELETE("/api/task/delete_task/:id", deleteTask(s))
	e.POST("/api/task/request_completion/:id", requestCompletion(s))
	e.POST("/api/task/change_status/:id", changeStatus(s))
	e.GET("/api/task/dispatched", dispatchedTasks(s))

	e.POST("/api/user/add_permission/:id", addPermission(s))
	e.POST("/api/user/delete_permission/:id", deletePermission(s))
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func decodeBody(c echo.Context, dst any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (s *Server) actor(c echo.Context) (string, error) {
	return s.Auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
}

func (s *Server) isRoot(ctx context.Context, actorID string) (bool, error) {
	if s.RootPermission == "" {
		return false, nil
	}
	user, err := s.Hierarchy.GetUser(ctx, actorID)
	if err != nil {
		if errors.Is(err, hierarchy.ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.HasPermission(s.RootPermission), nil
}

// canManageUnits reports whether the actor may mutate the given units: the
// root permission, or an officer seat on one of the units or their
// ancestors.
func (s *Server) canManageUnits(ctx context.Context, actorID string, unitIDs []string) (bool, error) {
	root, err := s.isRoot(ctx, actorID)
	if err != nil {
		return false, err
	}
	if root {
		return true, nil
	}
	return s.Scope.IsOfficerFromAbove(ctx, unitIDs, actorID)
}

// writeDomainError maps engine and workflow failures onto HTTP statuses.
// Unknown errors stay opaque 500s.
func writeDomainError(c echo.Context, err error) error {
	var invalidType hierarchy.InvalidUnitTypeError
	var protected hierarchy.ProtectedFieldError
	switch {
	case errors.Is(err, hierarchy.ErrNotFound),
		errors.Is(err, hierarchy.ErrUserNotFound),
		errors.Is(err, taskflow.ErrNotFound):
		return c.String(http.StatusNotFound, err.Error())
	case errors.As(err, &invalidType), errors.As(err, &protected):
		return c.String(http.StatusBadRequest, err.Error())
	case errors.Is(err, taskflow.ErrNotAssigned),
		errors.Is(err, taskflow.ErrInvalidTransition):
		return c.String(http.StatusConflict, err.Error())
	case errors.Is(err, taskflow.ErrInvalidAction),
		errors.Is(err, taskflow.ErrInvalidPage),
		errors.Is(err, taskflow.ErrPageOutOfBounds):
		return c.String(http.StatusBadRequest, err.Error())
	}
	c.Logger().Error(err)
	return c.String(http.StatusInternalServerError, "internal error")
}

type createUnitRequest struct {
	Name      string   `json:"name"`
	UnitType  string   `json:"unitType"`
	Parent    string   `json:"parent"`
	Children  []string `json:"children"`
	Officers  []string `json:"officers"`
	Members   []string `json:"members"`
	Frontpage string   `json:"frontpage"`
}

func createUnit(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		actorID, err := s.actor(c)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req createUnitRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		allowed := false
		if req.Parent != "" {
			allowed, err = s.canManageUnits(ctx, actorID, []string{req.Parent})
		} else {
			allowed, err = s.isRoot(ctx, actorID)
		}
		if err != nil {
			return writeDomainError(c, err)
		}
		if !allowed {
			return c.String(http.StatusForbidden, "not authorized")
		}

		id, err := s.Hierarchy.CreateUnit(ctx, hierarchy.CreateUnitParams{
			Name:      req.Name,
			Type:      req.UnitType,
			Parent:    req.Parent,
			Children:  req.Children,
			Officers:  req.Officers,
			Members:   req.Members,
			Frontpage: req.Frontpage,
		})
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusCreated, map[string]string{"id": id})
	}
}

func getUnit(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if _, err := s.actor(c); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		unit, err := s.Hierarchy.GetUnit(ctx, c.Param("id"))
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, unit)
	}
}

func getAllUnits(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if _, err := s.actor(c); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		units, err := s.Hierarchy.Units(ctx)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"units": units})
	}
}

func updateUnit(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		actorID, err := s.actor(c)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		unitID := c.Param("id")

		allowed, err := s.canManageUnits(ctx, actorID, []string{unitID})
		if err != nil {
			return writeDomainError(c, err)
		}
		if !allowed {
			return c.String(http.StatusForbidden, "not authorized")
		}

		fields := map[string]any{}
		lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
		if err := sonic.ConfigStd.NewDecoder(lr).Decode(&fields); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if err := s.Hierarchy.UpdateUnit(ctx, unitID, fields); err != nil {
			return writeDomainError(c, err)
		}
		return c.NoContent(http.StatusOK)
	}
}

func deleteUnit(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		actorID, err := s.actor(c)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		unitID := c.Param("id")

		allowed, err := s.canManageUnits(ctx, actorID, []string{unitID})
		if err != nil {
			return writeDomainError(c, err)
		}
		if !allowed {
			return c.String(http.StatusForbidden, "not authorized")
		}
		if err := s.Hierarchy.DeleteUnit(ctx, unitID); err != nil {
			return writeDomainError(c, err)
		}
		return c.NoContent(http.StatusOK)
	}
}

func reparentUnit(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		actorID, err := s.actor(c)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		unitID := c.Param("id")

		var req struct {
			Parent string `json:"parent"`
		}
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		allowed, err := s.canManageUnits(ctx, actorID, []string{unitID})
		if err != nil {
			return writeDomainError(c, err)
		}
		if !allowed {
			return c.String(http.StatusForbidden, "not authorized")
		}
		if err := s.Hierarchy.Reparent(ctx, unitID, req.Parent); err != nil {
			return writeDomainError(c, err)
		}
		return c.NoContent(http.StatusOK)
	}
}

type personnelRequest struct {
	Role  string   `json:"role"`
	Users []string `json:"users"`
}

type personnelResponse struct {
	Results map[string]string `json:"results"`
	OK      bool              `json:"ok"`
}

func validRole(role string) bool {
	return role == domain.RoleMember || role == domain.RoleOfficer
}

func addPersonnel(s *Server) echo.HandlerFunc {
	return personnelHandler(s, func(ctx context.Context, unitID string, req personnelRequest) (hierarchy.BatchResult, error) {
		return s.Hierarchy.AddPersonnel(ctx, unitID, req.Users, req.Role)
	})
}

func removePersonnel(s *Server) echo.HandlerFunc {
	return personnelHandler(s, func(ctx context.Context, unitID string, req personnelRequest) (hierarchy.BatchResult, error) {
		return s.Hierarchy.RemovePersonnel(ctx, unitID, req.Users, req.Role)
	})
}

func personnelHandler(s *Server, apply func(context.Context, string, personnelRequest) (hierarchy.BatchResult, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		actorID, err := s.actor(c)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		unitID := c.Param("id")

		var req personnelRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if !validRole(req.Role) {
			return c.String(http.StatusBadRequest, "invalid role")
		}

		allowed, err := s.canManageUnits(ctx, actorID, []string{unitID})
		if err != nil {
			return writeDomainError(c, err)
		}
		if !allowed {
			return c.String(http.StatusForbidden, "not authorized")
		}

		result, err := apply(ctx, unitID, req)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, personnelResponse{Results: result.PerID, OK: result.OK})
	}
}

func getPersonnel(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if _, err := s.actor(c); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		role := c.QueryParam("role")
		if !validRole(role) {
			return c.String(http.StatusBadRequest, "invalid role")
		}
		users, err := s.Hierarchy.Personnel(ctx, c.Param("id"), role)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"personnel": users})
	}
}

func officerFromAbove(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		actorID, err := s.actor(c)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req struct {
			Units []string `json:"units"`
			User  string   `json:"user"`
		}
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		subject := req.User
		if subject == "" {
			subject = actorID
		}

		above, err := s.Scope.IsOfficerFromAbove(ctx, req.Units, subject)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]bool{"officerFromAbove": above})
	}
}

type createTaskRequest struct {
	Recipients         []string `json:"recipients"`
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	Suspense           int64    `json:"suspense"`
	AutoAcceptRequests bool     `json:"autoAcceptRequests"`
	Reminders          []int64  `json:"reminders"`
}

func createTask(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		actorID, err := s.actor(c)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req createTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		id, err := s.Workflow.CreateTask(ctx, taskflow.CreateTaskParams{
			FromUser:           actorID,
			Recipients:         req.Recipients,
			Name:               req.Name,
			Description:        req.Description,
			Suspense:           req.Suspense,
			AutoAcceptRequests: req.AutoAcceptRequests,
			Reminders:          req.Reminders,
		})
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusCreated, map[string]string{"id": id})
	}
}

func getTask(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if _, err := s.actor(c); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		task, err := s.Workflow.GetTask(ctx, c.Param("id"))
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

// authorOrRoot resolves the task and checks the actor owns it. Returns the
// HTTP error already written when access is denied.
func (s *Server) authorOrRoot(c echo.Context, taskID, actorID string) (bool, error) {
	ctx := c.Request().Context()
	task, err := s.Workflow.GetTask(ctx, taskID)
	if err != nil {
		return false, writeDomainError(c, err)
	}
	if task.FromUser == actorID {
		return true, nil
	}
	root, err := s.isRoot(ctx, actorID)
	if err != nil {
		return false, writeDomainError(c, err)
	}
	if !root {
		return false, c.String(http.StatusForbidden, "not authorized")
	}
	return true, nil
}

func updateTask(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		actorID, err := s.actor(c)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		taskID := c.Param("id")

		ok, res := s.authorOrRoot(c, taskID, actorID)
		if !ok {
			return res
		}

		fields := map[string]any{}
		lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
		if err := sonic.ConfigStd.NewDecoder(lr).Decode(&fields); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if err := s.Workflow.UpdateTask(ctx, taskID, fields); err != nil {
			return writeDomainError(c, err)
		}
		return c.NoContent(http.StatusOK)
	}
}

func deleteTask(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		actorID, err := s.actor(c)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		taskID := c.Param("id")

		ok, res := s.authorOrRoot(c, taskID, actorID)
		if !ok {
			return res
		}
		if err := s.Workflow.DeleteTask(ctx, taskID); err != nil {
			return writeDomainError(c, err)
		}
		return c.NoContent(http.StatusOK)
	}
}

func requestCompletion(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		actorID, err := s.actor(c)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req struct {
			Note string `json:"note"`
		}
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if err := s.Workflow.RequestCompletion(ctx, c.Param("id"), actorID, req.Note); err != nil {
			return writeDomainError(c, err)
		}
		return c.NoContent(http.StatusOK)
	}
}

func changeStatus(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		actorID, err := s.actor(c)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		taskID := c.Param("id")

		var req struct {
			User   string `json:"user"`
			Note   string `json:"note"`
			Action string `json:"action"`
		}
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		ok, res := s.authorOrRoot(c, taskID, actorID)
		if !ok {
			return res
		}
		if err := s.Workflow.ChangeStatus(ctx, taskID, req.User, req.Note, req.Action); err != nil {
			return writeDomainError(c, err)
		}
		return c.NoContent(http.StatusOK)
	}
}

type dispatchedResponse struct {
	Tasks []domain.Task `json:"tasks"`
	Pages int           `json:"pages"`
}

func dispatchedTasks(s *Server) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newDispatchMetrics(ctx, s.Log)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		actorID, authErr := s.actor(c)
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		pageSize, pageIndex := 10, 0
		if raw := strings.TrimSpace(c.QueryParam("pageSize")); raw != "" {
			pageSize, err = strconv.Atoi(raw)
			if err != nil {
				metrics.SetErrorStage("invalid_page_size")
				err = c.String(http.StatusBadRequest, "invalid page size")
				return err
			}
		}
		if raw := strings.TrimSpace(c.QueryParam("pageIndex")); raw != "" {
			pageIndex, err = strconv.Atoi(raw)
			if err != nil {
				metrics.SetErrorStage("invalid_page_index")
				err = c.String(http.StatusBadRequest, "invalid page index")
				return err
			}
		}

		fetchStart := time.Now()
		page, fetchErr := s.Workflow.DispatchedTasks(ctx, actorID, pageSize, pageIndex)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			if errors.Is(fetchErr, taskflow.ErrInvalidPage) || errors.Is(fetchErr, taskflow.ErrPageOutOfBounds) {
				metrics.SetErrorStage("invalid_page")
				err = c.String(http.StatusBadRequest, fetchErr.Error())
				return err
			}
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			err = c.String(http.StatusInternalServerError, "internal error")
			return err
		}
		metrics.SetTasksReturned(len(page.Tasks))
		metrics.SetPages(page.Pages)

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, dispatchedResponse{Tasks: page.Tasks, Pages: page.Pages})
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func addPermission(s *Server) echo.HandlerFunc {
	return permissionHandler(s, func(ctx context.Context, userID, token string) (bool, error) {
		return s.Hierarchy.GrantPermission(ctx, userID, token)
	})
}

func deletePermission(s *Server) echo.HandlerFunc {
	return permissionHandler(s, func(ctx context.Context, userID, token string) (bool, error) {
		return s.Hierarchy.RevokePermission(ctx, userID, token)
	})
}

func permissionHandler(s *Server, apply func(context.Context, string, string) (bool, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		actorID, err := s.actor(c)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		root, err := s.isRoot(ctx, actorID)
		if err != nil {
			return writeDomainError(c, err)
		}
		if !root {
			return c.String(http.StatusForbidden, "not authorized")
		}

		var req struct {
			Permission string `json:"permission"`
		}
		if err := decodeBody(c, &req); err != nil || req.Permission == "" {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		changed, err := apply(ctx, c.Param("id"), req.Permission)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]bool{"changed": changed})
	}
}
