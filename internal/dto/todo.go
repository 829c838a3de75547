package dto

import (
	"time"

	dom "todoapi/internal/domain"
)

type CreateTodoRequest struct {
	Task        string `json:"task" binding:"required"`
	IsCompleted bool   `json:"is_completed"`
}

// UpdateTodoRequest is a partial update: an absent or null field is left unchanged.
type UpdateTodoRequest struct {
	Task        *string `json:"task"`
	IsCompleted *bool   `json:"is_completed"`
}

// Patch converts the request into a domain patch.
func (r UpdateTodoRequest) Patch() dom.TodoPatch {
	return dom.TodoPatch{Task: r.Task, IsCompleted: r.IsCompleted}
}

type TodoResponse struct {
	ID          int64     `json:"id"`
	Task        string    `json:"task"`
	IsCompleted bool      `json:"is_completed"`
	IsSeedData  bool      `json:"is_seed_data"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type SeedTodosResponse struct {
	Message string         `json:"message"`
	Todos   []TodoResponse `json:"todos"`
}

type DeleteSeedResponse struct {
	Message string `json:"message"`
	Deleted int64  `json:"deleted"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func TodoToResponse(t dom.Todo) TodoResponse {
	return TodoResponse{
		ID:          t.ID,
		Task:        t.Task,
		IsCompleted: t.IsCompleted,
		IsSeedData:  t.IsSeedData,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func TodosToResponses(list []dom.Todo) []TodoResponse {
	out := make([]TodoResponse, len(list))
	for i := range list {
		out[i] = TodoToResponse(list[i])
	}
	return out
}
