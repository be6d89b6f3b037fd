package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskhub/taskhub/internal/config"
	"github.com/taskhub/taskhub/internal/domain/todo"
	"github.com/taskhub/taskhub/internal/http/middlewares"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

type TodosStore interface {
	Create(ctx context.Context, ownerID int64, req todo.CreateToDoRequest) (todo.ToDo, error)
	GetByID(ctx context.Context, id, ownerID int64) (todo.ToDo, error)
	List(ctx context.Context, ownerID int64, filter todo.ListFilter) ([]todo.ToDo, int, error)
	Update(ctx context.Context, id, ownerID int64, req todo.UpdateToDoRequest) (todo.ToDo, error)
	Delete(ctx context.Context, id, ownerID int64) error
}

type TodosHandler struct {
	repo TodosStore
}

func NewTodosHandler(repo TodosStore) *TodosHandler {
	return &TodosHandler{repo: repo}
}

// ToDoResponse is the outward projection of a todo record, built field by
// field from the domain record.
type ToDoResponse struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
	UserID    int64  `json:"user_id"`
}

func NewToDoResponse(t todo.ToDo) ToDoResponse {
	return ToDoResponse{
		ID:        t.ID,
		Title:     t.Title,
		Completed: t.Completed,
		UserID:    t.UserID,
	}
}

// caller returns the authenticated user or writes the 401 itself.
func caller(ctx *gin.Context) (int64, bool) {
	u, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "Could not validate credentials")
		return 0, false
	}

	return u.ID, true
}

func (h *TodosHandler) CreateToDo(ctx *gin.Context) {
	ownerID, ok := caller(ctx)
	if !ok {
		return
	}

	var req todo.CreateToDoRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	t, err := h.repo.Create(cctx, ownerID, req)

	if err != nil {
		RespondInternal(ctx, "Could not create todo")
		return
	}

	ctx.JSON(http.StatusOK, NewToDoResponse(t))
}

func (h *TodosHandler) GetToDoByID(ctx *gin.Context) {
	ownerID, ok := caller(ctx)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)

	if err != nil {
		RespondNotFound(ctx, "Todo not found")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	t, err := h.repo.GetByID(cctx, id, ownerID)

	if err != nil {
		if errors.Is(err, todo.ErrNotFound) {
			RespondNotFound(ctx, "Todo not found")
			return
		}
		RespondInternal(ctx, "Could not fetch todo")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, NewToDoResponse(t))
}

func (h *TodosHandler) ListToDos(ctx *gin.Context) {
	ownerID, ok := caller(ctx)
	if !ok {
		return
	}

	skip := parseQueryInt(ctx, "skip", 0)
	limit := parseQueryInt(ctx, "limit", defaultListLimit)

	if skip < 0 {
		skip = 0
	}

	if limit <= 0 {
		limit = defaultListLimit
	}

	if limit > maxListLimit {
		limit = maxListLimit
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	todos, total, err := h.repo.List(cctx, ownerID, todo.ListFilter{Skip: skip, Limit: limit})

	if err != nil {
		RespondInternal(ctx, "Could not list todos")
		return
	}

	items := make([]ToDoResponse, 0, len(todos))

	for _, t := range todos {
		items = append(items, NewToDoResponse(t))
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
		"total": total,
	})
}

func (h *TodosHandler) UpdateToDo(ctx *gin.Context) {
	ownerID, ok := caller(ctx)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)

	if err != nil {
		RespondNotFound(ctx, "Todo not found")
		return
	}

	var req todo.UpdateToDoRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	t, err := h.repo.Update(cctx, id, ownerID, req)

	if err != nil {
		if errors.Is(err, todo.ErrNotFound) {
			RespondNotFound(ctx, "Todo not found")
			return
		}
		RespondInternal(ctx, "Could not update todo")
		return
	}

	ctx.JSON(http.StatusOK, NewToDoResponse(t))
}

func (h *TodosHandler) DeleteToDo(ctx *gin.Context) {
	ownerID, ok := caller(ctx)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)

	if err != nil {
		RespondNotFound(ctx, "Todo not found")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	err = h.repo.Delete(cctx, id, ownerID)

	if err != nil {
		if errors.Is(err, todo.ErrNotFound) {
			RespondNotFound(ctx, "Todo not found")
			return
		}
		RespondInternal(ctx, "Could not delete todo")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"detail": "Todo deleted"})
}

func parseQueryInt(ctx *gin.Context, key string, fallback int) int {
	raw := ctx.Query(key)

	if raw == "" {
		return fallback
	}

	n, err := strconv.Atoi(raw)

	if err != nil {
		return fallback
	}

	return n
}
