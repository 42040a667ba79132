package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard/board"
	"taskboard/domain"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, deps Deps, logger *log.Logger) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	authed := RequireSession(deps.Sessions, false)

	e.GET("/healthz", healthz())
	e.GET("/api/stream", streamBoard(deps.Boards, logger), noStore, authed)

	g := e.Group("/api", RequestMetrics(logger), GzipRequestMiddleware(maxBodySize), noStore)

	g.POST("/auth/signup", signUp(deps.Sessions))
	g.POST("/auth/signin", signIn(deps.Sessions))
	g.POST("/auth/password-reset", requestPasswordReset(deps.Sessions))
	g.PUT("/auth/password", updatePassword(deps.Sessions), RequireSession(deps.Sessions, true))
	g.POST("/auth/signout", signOut(deps.Sessions, deps.Boards), authed)
	g.GET("/auth/session", getSession(), authed)
	g.GET("/auth/user", getUser(deps.Sessions), authed)
	g.DELETE("/account", deleteAccount(deps.Sessions, deps.Boards), authed)

	g.GET("/tasks", listTasks(deps.Boards), authed)
	g.POST("/tasks", createTask(deps.Boards, deps.Deduper), authed)
	g.POST("/tasks/refresh", refreshTasks(deps.Boards), authed)
	g.PATCH("/tasks/:id", updateTask(deps.Boards), authed)
	g.PUT("/tasks/:id/status", changeStatus(deps.Boards), authed)
	g.DELETE("/tasks/:id", deleteTask(deps.Boards), authed)
	g.GET("/board", getBoard(deps.Boards), authed)
	g.POST("/board/moves", moveTask(deps.Boards), authed)
	g.GET("/dashboard", getDashboard(deps.Boards), authed)
	g.GET("/view", getView(deps.Boards), authed)
	g.PUT("/view", putView(deps.Boards), authed)

	g.GET("/settings", getSettings(deps.Settings), authed)
	g.PUT("/settings", putSettings(deps.Settings), authed)
	g.POST("/settings/theme/toggle", toggleTheme(deps.Settings), authed)
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

// openBoard returns the loaded controller of the signed-in owner.
func openBoard(c echo.Context, boards Boards) (*board.Controller, error) {
	start := time.Now()
	ctrl, err := boards.Open(c.Request().Context(), sessionFrom(c).UserID)
	metricsFrom(c).ObserveStore(time.Since(start))
	return ctrl, err
}

// criteriaFromQuery reads filter criteria from the query string. It reports
// false when no criteria parameter is present.
func criteriaFromQuery(c echo.Context) (domain.Criteria, bool, error) {
	q := c.QueryParams()
	present := false
	for _, k := range []string{"search", "status", "priority", "category"} {
		if _, ok := q[k]; ok {
			present = true
		}
	}
	crit := domain.DefaultCriteria()
	if !present {
		return crit, false, nil
	}
	crit.Search = strings.TrimSpace(q.Get("search"))
	if v := q.Get("status"); v != "" {
		crit.Status = v
	}
	if v := q.Get("priority"); v != "" {
		crit.Priority = v
	}
	if v := q.Get("category"); v != "" {
		crit.Category = v
	}
	return crit, true, validateCriteria(crit)
}

func validateCriteria(crit domain.Criteria) error {
	v := &domain.ValidationError{}
	if crit.Status != "" && crit.Status != domain.All && !domain.Status(crit.Status).Valid() {
		v.Add("status", "Unknown status")
	}
	if crit.Priority != "" && crit.Priority != domain.All && !domain.Priority(crit.Priority).Valid() {
		v.Add("priority", "Unknown priority")
	}
	return v.OrNil()
}

func visible(c echo.Context, ctrl *board.Controller) ([]domain.Task, error) {
	crit, ok, err := criteriaFromQuery(c)
	if err != nil {
		return nil, err
	}
	if ok {
		return ctrl.VisibleWith(crit), nil
	}
	return ctrl.Visible(), nil
}

func listTasks(boards Boards) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctrl, err := openBoard(c, boards)
		if err != nil {
			return writeError(c, err)
		}
		tasks, err := visible(c, ctrl)
		if err != nil {
			return writeError(c, err)
		}
		metricsFrom(c).SetTasksReturned(len(tasks))
		resp := tasksResponse{
			Tasks:      tasks,
			State:      ctrl.State(),
			Categories: domain.Categories(ctrl.Tasks()),
			Notice:     ctrl.Notice(),
		}
		if resp.Categories == nil {
			resp.Categories = []string{}
		}
		start := time.Now()
		err = c.JSON(http.StatusOK, resp)
		metricsFrom(c).ObserveEncode(time.Since(start))
		return err
	}
}

func refreshTasks(boards Boards) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctrl, err := openBoard(c, boards)
		if err != nil {
			return writeError(c, err)
		}
		crit, ok, err := criteriaFromQuery(c)
		if err != nil {
			return writeError(c, err)
		}
		start := time.Now()
		if err := ctrl.Load(c.Request().Context()); err != nil {
			return writeError(c, err)
		}
		tasks := ctrl.Visible()
		switch {
		case ok && crit.Search != "":
			// the store matches the text, the rest of crit is applied here
			tasks, err = ctrl.Search(c.Request().Context(), crit)
			if err != nil {
				return writeError(c, err)
			}
		case ok:
			tasks = ctrl.VisibleWith(crit)
		}
		metricsFrom(c).ObserveStore(time.Since(start))
		metricsFrom(c).SetTasksReturned(len(tasks))
		return c.JSON(http.StatusOK, tasksResponse{
			Tasks:      tasks,
			State:      ctrl.State(),
			Categories: append([]string{}, domain.Categories(ctrl.Tasks())...),
			Notice:     ctrl.Notice(),
		})
	}
}

func createTask(boards Boards, deduper Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		owner := sessionFrom(c).UserID

		var fields domain.TaskFields
		if err := decodeBody(c, &fields); err != nil {
			return writeError(c, err)
		}
		ctrl, err := openBoard(c, boards)
		if err != nil {
			return writeError(c, err)
		}

		key := strings.TrimSpace(c.Request().Header.Get(headerIdempotencyKey))
		if key != "" && deduper != nil {
			added, err := deduper.Add(ctx, owner, key)
			switch {
			case err != nil:
				c.Logger().Warnf("idempotency check failed: %v", err)
				key = ""
			case !added:
				body, done, err := deduper.Result(ctx, owner, key)
				if err == nil && done {
					c.Response().Header().Set(headerReplayed, "true")
					return c.JSONBlob(http.StatusCreated, body)
				}
				metricsFrom(c).SetErrorStage("duplicate")
				return c.JSON(http.StatusConflict, errorResponse{Error: "a request with this idempotency key is in progress"})
			}
		} else {
			key = ""
		}

		start := time.Now()
		task, err := ctrl.Create(ctx, fields)
		metricsFrom(c).ObserveStore(time.Since(start))
		if err != nil {
			if key != "" {
				if rerr := deduper.Remove(ctx, owner, key); rerr != nil {
					c.Logger().Warnf("idempotency rollback failed: %v", rerr)
				}
			}
			return writeError(c, err)
		}
		body, err := sonic.Marshal(task)
		if err != nil {
			return writeError(c, err)
		}
		if key != "" {
			if err := deduper.Complete(ctx, owner, key, body); err != nil {
				c.Logger().Warnf("idempotency store failed: %v", err)
			}
		}
		return c.JSONBlob(http.StatusCreated, body)
	}
}

func updateTask(boards Boards) echo.HandlerFunc {
	return func(c echo.Context) error {
		var patch domain.TaskPatch
		if err := decodeBody(c, &patch); err != nil {
			return writeError(c, err)
		}
		if patch.Empty() {
			return writeError(c, badRequest("nothing to update"))
		}
		ctrl, err := openBoard(c, boards)
		if err != nil {
			return writeError(c, err)
		}
		start := time.Now()
		task, err := ctrl.Update(c.Request().Context(), c.Param("id"), patch)
		metricsFrom(c).ObserveStore(time.Since(start))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func changeStatus(boards Boards) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req statusRequest
		if err := decodeBody(c, &req); err != nil {
			return writeError(c, err)
		}
		ctrl, err := openBoard(c, boards)
		if err != nil {
			return writeError(c, err)
		}
		start := time.Now()
		task, err := ctrl.ChangeStatus(c.Request().Context(), c.Param("id"), req.Status)
		metricsFrom(c).ObserveStore(time.Since(start))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func deleteTask(boards Boards) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctrl, err := openBoard(c, boards)
		if err != nil {
			return writeError(c, err)
		}
		start := time.Now()
		err = ctrl.Delete(c.Request().Context(), c.Param("id"))
		metricsFrom(c).ObserveStore(time.Since(start))
		if err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func boardColumns(tasks []domain.Task, state board.State) boardResponse {
	cols := domain.Columns(tasks)
	return boardResponse{
		Pending:    cols[domain.StatusPending],
		InProgress: cols[domain.StatusInProgress],
		Completed:  cols[domain.StatusCompleted],
		State:      state,
	}
}

func getBoard(boards Boards) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctrl, err := openBoard(c, boards)
		if err != nil {
			return writeError(c, err)
		}
		tasks, err := visible(c, ctrl)
		if err != nil {
			return writeError(c, err)
		}
		metricsFrom(c).SetTasksReturned(len(tasks))
		return c.JSON(http.StatusOK, boardColumns(tasks, ctrl.State()))
	}
}

func moveTask(boards Boards) echo.HandlerFunc {
	return func(c echo.Context) error {
		var m domain.Move
		if err := decodeBody(c, &m); err != nil {
			return writeError(c, err)
		}
		ctrl, err := openBoard(c, boards)
		if err != nil {
			return writeError(c, err)
		}
		crit, ok, err := criteriaFromQuery(c)
		if err != nil {
			return writeError(c, err)
		}
		start := time.Now()
		var tasks []domain.Task
		if ok {
			tasks, err = ctrl.ReorderWith(c.Request().Context(), m, crit)
		} else {
			tasks, err = ctrl.Reorder(c.Request().Context(), m)
		}
		metricsFrom(c).ObserveStore(time.Since(start))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, boardColumns(tasks, ctrl.State()))
	}
}

func getDashboard(boards Boards) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctrl, err := openBoard(c, boards)
		if err != nil {
			return writeError(c, err)
		}
		tasks, err := visible(c, ctrl)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, domain.ComputeStats(tasks, time.Now()))
	}
}

func getView(boards Boards) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctrl, err := openBoard(c, boards)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, ctrl.View())
	}
}

func putView(boards Boards) echo.HandlerFunc {
	return func(c echo.Context) error {
		var v board.View
		if err := decodeBody(c, &v); err != nil {
			return writeError(c, err)
		}
		if v.Criteria == (domain.Criteria{}) {
			v.Criteria = domain.DefaultCriteria()
		}
		if err := validateCriteria(v.Criteria); err != nil {
			return writeError(c, err)
		}
		ctrl, err := openBoard(c, boards)
		if err != nil {
			return writeError(c, err)
		}
		if err := ctrl.SetView(v); err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, ctrl.View())
	}
}
