package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard-api/auth"
	"taskboard-api/domain"
	"taskboard-api/kanban"
	"taskboard-api/repository"
)

const (
	maxRequestBody       = 1 << 20
	idempotencyKeyHeader = "Idempotency-Key"
	userIDContextKey     = "taskboard.userID"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, repo Repository, sessions Sessions, authn Authenticator, deduper Deduper, logger *log.Logger) {
	e.Use(GzipRequestMiddleware())

	e.GET("/healthz", healthz())
	e.POST("/api/auth/login", login(sessions))
	e.POST("/api/auth/signup", signup(sessions))

	g := e.Group("/api", requireUser(authn))
	g.POST("/auth/logout", logout(sessions))
	g.GET("/auth/me", currentUser(sessions))
	g.PATCH("/auth/me", updateUser(sessions))

	g.GET("/boards", listBoards(repo))
	g.POST("/boards", createBoard(repo))
	g.DELETE("/boards/:boardId", deleteBoard(repo))

	g.POST("/boards/:boardId/tasks", createTask(repo, deduper))
	g.PATCH("/boards/:boardId/tasks/:taskId", updateTask(repo))
	g.DELETE("/boards/:boardId/tasks/:taskId", deleteTask(repo))
	g.POST("/boards/:boardId/tasks/:taskId/comments", addComment(repo, sessions))
	g.GET("/boards/:boardId/stats", boardStats(repo))

	// Registered outside the gated group: the handler authenticates itself so
	// request metrics can time the auth stage.
	e.GET("/api/boards/:boardId/tasks", listTasks(repo, authn, logger))
}

type errorResponse struct {
	Error string `json:"error"`
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func requireUser(authn Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, err := authn.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
			}
			c.Set(userIDContextKey, userID)
			return next(c)
		}
	}
}

func requestUserID(c echo.Context) string {
	id, _ := c.Get(userIDContextKey).(string)
	return id
}

func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, maxRequestBody)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeError(c echo.Context, err error) error {
	var verr auth.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: verr.Error()})
	case errors.Is(err, repository.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

func login(sessions Sessions) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req credentialsRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		sess, err := sessions.Login(c.Request().Context(), req.Email, req.Password)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, sess)
	}
}

func signup(sessions Sessions) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req credentialsRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		sess, err := sessions.Signup(c.Request().Context(), req.Email, req.Password, req.Name)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, sess)
	}
}

func logout(sessions Sessions) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := sessions.Logout(c.Request().Context()); err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func currentUser(sessions Sessions) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := sessions.CurrentUser(c.Request().Context())
		if err != nil {
			return writeError(c, err)
		}
		if user == nil {
			return c.JSON(http.StatusNotFound, errorResponse{Error: "no active session"})
		}
		return c.JSON(http.StatusOK, user)
	}
}

func updateUser(sessions Sessions) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req auth.UserUpdate
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		user, err := sessions.UpdateUser(c.Request().Context(), req)
		if err != nil {
			return writeError(c, err)
		}
		if user == nil {
			return c.JSON(http.StatusNotFound, errorResponse{Error: "no active session"})
		}
		return c.JSON(http.StatusOK, user)
	}
}

type boardsResponse struct {
	Boards []domain.Board `json:"boards"`
}

func listBoards(repo Repository) echo.HandlerFunc {
	return func(c echo.Context) error {
		boards, err := repo.Boards(c.Request().Context())
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, boardsResponse{Boards: boards})
	}
}

type createBoardRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func createBoard(repo Repository) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createBoardRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		if strings.TrimSpace(req.Name) == "" {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "board name is required"})
		}
		board, err := repo.CreateBoard(c.Request().Context(), req.Name, req.Description)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, board)
	}
}

func deleteBoard(repo Repository) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := repo.DeleteBoard(c.Request().Context(), c.Param("boardId")); err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

type tasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
}

func listTasks(repo Repository, authn Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newTaskRequestMetrics(ctx, logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		_, authErr := authn.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.JSON(http.StatusUnauthorized, errorResponse{Error: authErr.Error()})
			return err
		}

		boardID := c.Param("boardId")
		query := c.QueryParam("q")
		statusParam := c.QueryParam("status")
		priorityParam := c.QueryParam("priority")

		fetchStart := time.Now()
		var tasks []domain.Task
		var fetchErr error
		switch {
		case query != "":
			metrics.SetFilter("search")
			tasks, fetchErr = repo.SearchTasks(ctx, boardID, query)
		case statusParam != "":
			metrics.SetFilter("status")
			status := domain.Status(statusParam)
			if !status.Valid() {
				metrics.SetErrorStage("invalid_status")
				err = c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid status"})
				return err
			}
			tasks, fetchErr = repo.TasksByStatus(ctx, boardID, status)
		case priorityParam != "":
			metrics.SetFilter("priority")
			priority := domain.Priority(priorityParam)
			if !priority.Valid() {
				metrics.SetErrorStage("invalid_priority")
				err = c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid priority"})
				return err
			}
			tasks, fetchErr = repo.TasksByPriority(ctx, boardID, priority)
		default:
			tasks, fetchErr = repo.Tasks(ctx, boardID)
		}
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			err = writeError(c, fetchErr)
			return err
		}
		metrics.SetTasksReturned(len(tasks))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, tasksResponse{Tasks: tasks})
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func createTask(repo Repository, deduper Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		var req repository.NewTask
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		if strings.TrimSpace(req.Title) == "" {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "task title is required"})
		}

		idemKey := c.Request().Header.Get(idempotencyKeyHeader)
		if deduper != nil && idemKey != "" {
			added, err := deduper.Add(ctx, requestUserID(c), idemKey)
			if err != nil {
				return writeError(c, err)
			}
			if !added {
				return c.JSON(http.StatusConflict, errorResponse{Error: "duplicate request"})
			}
		}

		task, err := repo.CreateTask(ctx, c.Param("boardId"), req)
		if err != nil {
			if deduper != nil && idemKey != "" {
				if rerr := deduper.Remove(ctx, requestUserID(c), idemKey); rerr != nil {
					c.Logger().Errorf("dedupe rollback failed: %v", rerr)
				}
			}
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, task)
	}
}

func updateTask(repo Repository) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req repository.TaskUpdate
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		task, err := repo.UpdateTask(c.Request().Context(), c.Param("boardId"), c.Param("taskId"), req)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func deleteTask(repo Repository) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := repo.DeleteTask(c.Request().Context(), c.Param("boardId"), c.Param("taskId")); err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

type addCommentRequest struct {
	Text   string `json:"text"`
	Author string `json:"author,omitempty"`
}

func addComment(repo Repository, sessions Sessions) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		var req addCommentRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		if strings.TrimSpace(req.Text) == "" {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "comment text is required"})
		}
		author := req.Author
		if author == "" {
			if user, err := sessions.CurrentUser(ctx); err == nil && user != nil {
				author = user.Name
			}
		}
		if author == "" {
			author = "User"
		}
		comment, err := repo.AddComment(ctx, c.Param("boardId"), c.Param("taskId"), req.Text, author)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, comment)
	}
}

type statsResponse struct {
	Columns []kanban.Column `json:"columns"`
	Stats   kanban.Stats    `json:"stats"`
}

func boardStats(repo Repository) echo.HandlerFunc {
	return func(c echo.Context) error {
		tasks, err := repo.Tasks(c.Request().Context(), c.Param("boardId"))
		if err != nil {
			return writeError(c, err)
		}
		columns := kanban.Columns(tasks)
		return c.JSON(http.StatusOK, statsResponse{
			Columns: columns,
			Stats:   kanban.ComputeStats(columns, time.Now().UTC()),
		})
	}
}
