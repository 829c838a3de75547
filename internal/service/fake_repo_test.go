package service

import (
	"context"
	"sort"
	"sync"
	"time"

	dom "todoapi/internal/domain"

	"github.com/jackc/pgx/v5"
)

// fakeRepo is an in-memory repo.TodoRepo.
type fakeRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]dom.Todo
	err    error
	lists  int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: map[int64]dom.Todo{}}
}

func (f *fakeRepo) Create(_ context.Context, t dom.Todo) (dom.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return dom.Todo{}, f.err
	}
	return f.insertLocked(t), nil
}

func (f *fakeRepo) CreateSeed(_ context.Context, tasks []string, at time.Time) ([]dom.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]dom.Todo, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, f.insertLocked(dom.Todo{Task: task, IsSeedData: true, CreatedAt: at, UpdatedAt: at}))
	}
	return out, nil
}

func (f *fakeRepo) insertLocked(t dom.Todo) dom.Todo {
	f.nextID++
	t.ID = f.nextID
	f.rows[t.ID] = t
	return t
}

func (f *fakeRepo) GetByID(_ context.Context, id int64) (dom.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return dom.Todo{}, f.err
	}
	t, ok := f.rows[id]
	if !ok {
		return dom.Todo{}, pgx.ErrNoRows
	}
	return t, nil
}

func (f *fakeRepo) List(_ context.Context) ([]dom.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]dom.Todo, 0, len(f.rows))
	for _, t := range f.rows {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) Update(_ context.Context, id int64, t dom.Todo) (dom.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return dom.Todo{}, f.err
	}
	cur, ok := f.rows[id]
	if !ok {
		return dom.Todo{}, pgx.ErrNoRows
	}
	cur.Task = t.Task
	cur.IsCompleted = t.IsCompleted
	cur.UpdatedAt = t.UpdatedAt
	f.rows[id] = cur
	return cur, nil
}

func (f *fakeRepo) Delete(_ context.Context, id int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if _, ok := f.rows[id]; !ok {
		return 0, nil
	}
	delete(f.rows, id)
	return 1, nil
}

func (f *fakeRepo) DeleteSeed(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	var n int64
	for id, t := range f.rows {
		if t.IsSeedData {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

// stepClock returns a clock that advances by step on every call.
func stepClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	cur := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := cur
		cur = cur.Add(step)
		return t
	}
}
