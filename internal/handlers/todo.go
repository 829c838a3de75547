package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	dom "todoapi/internal/domain"
	"todoapi/internal/dto"
	"todoapi/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

// TodoService is the operation surface the handlers call into.
type TodoService interface {
	Create(ctx context.Context, task string, isCompleted bool) (dom.Todo, error)
	List(ctx context.Context) ([]dom.Todo, error)
	GetByID(ctx context.Context, id int64) (dom.Todo, error)
	Update(ctx context.Context, id int64, patch dom.TodoPatch) (dom.Todo, error)
	Delete(ctx context.Context, id int64) error
	Seed(ctx context.Context, count int) ([]dom.Todo, error)
	DeleteSeed(ctx context.Context) (int64, error)
}

type TodoHandler struct {
	svc TodoService
	log log.FieldLogger
}

func NewTodoHandler(svc TodoService, logger log.FieldLogger) *TodoHandler {
	return &TodoHandler{svc: svc, log: logger}
}

// Create godoc
// @Summary      Create a todo
// @Tags         todos
// @Accept       json
// @Produce      json
// @Param        body  body      dto.CreateTodoRequest  true  "Todo body"
// @Success      201   {object}  dto.TodoResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Failure      500   {object}  dto.ErrorResponse
// @Router       /todos [post]
func (h *TodoHandler) Create(c *gin.Context) {
	var req dto.CreateTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(bindStatus(err), dto.ErrorResponse{Error: err.Error()})
		return
	}

	t, err := h.svc.Create(c.Request.Context(), req.Task, req.IsCompleted)
	if err != nil {
		if errors.Is(err, service.ErrInvalidArgument) {
			c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Error: err.Error()})
			return
		}
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.TodoToResponse(t))
}

// List godoc
// @Summary      List all todos
// @Description  Open todos first, newest created first; then completed todos, most recently updated first.
// @Tags         todos
// @Produce      json
// @Success      200  {array}   dto.TodoResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /todos [get]
func (h *TodoHandler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.TodosToResponses(list))
}

// GetByID godoc
// @Summary      Get a todo by ID
// @Tags         todos
// @Produce      json
// @Param        id   path      int  true  "Todo ID"
// @Success      200  {object}  dto.TodoResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /todos/{id} [get]
func (h *TodoHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	t, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.TodoToResponse(t))
}

// Update godoc
// @Summary      Update a todo
// @Description  Only the fields present in the body are changed. updated_at is always refreshed.
// @Tags         todos
// @Accept       json
// @Produce      json
// @Param        id    path      int                    true  "Todo ID"
// @Param        body  body      dto.UpdateTodoRequest  true  "Partial update"
// @Success      200   {object}  dto.TodoResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      500   {object}  dto.ErrorResponse
// @Router       /todos/{id} [put]
func (h *TodoHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	// An empty body is an empty patch.
	var req dto.UpdateTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	t, err := h.svc.Update(c.Request.Context(), id, req.Patch())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.TodoToResponse(t))
}

// Delete godoc
// @Summary      Delete a todo by ID
// @Tags         todos
// @Produce      json
// @Param        id   path      int  true  "Todo ID"
// @Success      200  {object}  dto.MessageResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /todos/{id} [delete]
func (h *TodoHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MessageResponse{
		Message: fmt.Sprintf("Todo with ID %d successfully deleted", id),
	})
}

// Seed godoc
// @Summary      Seed X number of todos
// @Tags         seed
// @Produce      json
// @Param        count  query     int  true  "Number of todos to create"
// @Success      200    {object}  dto.SeedTodosResponse
// @Failure      400    {object}  dto.ErrorResponse
// @Failure      500    {object}  dto.ErrorResponse
// @Router       /todos/seed [post]
func (h *TodoHandler) Seed(c *gin.Context) {
	count, err := strconv.Atoi(c.Query("count"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "count must be an integer"})
		return
	}
	list, err := h.svc.Seed(c.Request.Context(), count)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SeedTodosResponse{
		Message: fmt.Sprintf("Successfully seeded %d todos", len(list)),
		Todos:   dto.TodosToResponses(list),
	})
}

// DeleteSeed godoc
// @Summary      Delete all seed todos
// @Tags         seed
// @Produce      json
// @Success      200  {object}  dto.DeleteSeedResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /todos/seed/delete [delete]
func (h *TodoHandler) DeleteSeed(c *gin.Context) {
	n, err := h.svc.DeleteSeed(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.DeleteSeedResponse{
		Message: "Successfully deleted all seed todos",
		Deleted: n,
	})
}

// writeError maps service errors to status codes. Details of storage
// failures are logged, not returned.
func (h *TodoHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Todo not found"})
	case errors.Is(err, service.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	default:
		h.log.WithError(err).WithFields(log.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("request failed")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}
}

// bindStatus is 422 for a body that parsed but failed validation, 400 otherwise.
func bindStatus(err error) int {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadRequest
}

func parseID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid id"})
		return 0, false
	}
	return id, true
}
