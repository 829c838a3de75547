package repo

import (
	"cmp"
	"context"
	"slices"
	"time"

	dom "todoapi/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// TodoRepo is the storage collaborator of the todo service.
type TodoRepo interface {
	Create(ctx context.Context, t dom.Todo) (dom.Todo, error)
	CreateSeed(ctx context.Context, tasks []string, at time.Time) ([]dom.Todo, error)
	GetByID(ctx context.Context, id int64) (dom.Todo, error)
	List(ctx context.Context) ([]dom.Todo, error)
	Update(ctx context.Context, id int64, t dom.Todo) (dom.Todo, error)
	Delete(ctx context.Context, id int64) (int64, error)
	DeleteSeed(ctx context.Context) (int64, error)
}

// DBTX is the subset of pgxpool.Pool used by the repo.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const todoColumns = `id, task, is_completed, is_seed_data, created_at, updated_at`

type PGTodoRepo struct {
	db DBTX
}

func NewPGTodoRepo(db DBTX) *PGTodoRepo {
	return &PGTodoRepo{db: db}
}

func (r *PGTodoRepo) Create(ctx context.Context, t dom.Todo) (dom.Todo, error) {
	query := `
		INSERT INTO todos (task, is_completed, is_seed_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + todoColumns
	return scanTodo(r.db.QueryRow(ctx, query, t.Task, t.IsCompleted, t.IsSeedData, t.CreatedAt, t.UpdatedAt))
}

// CreateSeed inserts one seed row per task in a single statement, so
// readers never observe a partial seed. Rows come back in tasks order.
func (r *PGTodoRepo) CreateSeed(ctx context.Context, tasks []string, at time.Time) ([]dom.Todo, error) {
	query := `
		INSERT INTO todos (task, is_completed, is_seed_data, created_at, updated_at)
		SELECT s.task, FALSE, TRUE, $2, $2
		FROM unnest($1::text[]) WITH ORDINALITY AS s(task, ord)
		ORDER BY s.ord
		RETURNING ` + todoColumns
	rows, err := r.db.Query(ctx, query, tasks, at)
	if err != nil {
		return nil, err
	}
	list, err := collectTodos(rows)
	if err != nil {
		return nil, err
	}
	// ids follow insertion order
	slices.SortFunc(list, func(a, b dom.Todo) int { return cmp.Compare(a.ID, b.ID) })
	return list, nil
}

func (r *PGTodoRepo) GetByID(ctx context.Context, id int64) (dom.Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos WHERE id = $1`
	return scanTodo(r.db.QueryRow(ctx, query, id))
}

// List returns every todo in id order; listing order is applied by the caller.
func (r *PGTodoRepo) List(ctx context.Context) ([]dom.Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos ORDER BY id`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return collectTodos(rows)
}

// Update writes the mutable fields of t and its updated_at onto row id.
func (r *PGTodoRepo) Update(ctx context.Context, id int64, t dom.Todo) (dom.Todo, error) {
	query := `
		UPDATE todos SET task = $2, is_completed = $3, updated_at = $4
		WHERE id = $1
		RETURNING ` + todoColumns
	return scanTodo(r.db.QueryRow(ctx, query, id, t.Task, t.IsCompleted, t.UpdatedAt))
}

// Delete removes row id and reports how many rows were removed.
func (r *PGTodoRepo) Delete(ctx context.Context, id int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM todos WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteSeed removes every row tagged as seed data, edited or not.
func (r *PGTodoRepo) DeleteSeed(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM todos WHERE is_seed_data = TRUE`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanTodo(row pgx.Row) (dom.Todo, error) {
	var t dom.Todo
	err := row.Scan(&t.ID, &t.Task, &t.IsCompleted, &t.IsSeedData, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func collectTodos(rows pgx.Rows) ([]dom.Todo, error) {
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (dom.Todo, error) {
		return scanTodo(row)
	})
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []dom.Todo{}
	}
	return list, nil
}

