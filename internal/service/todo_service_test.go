package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"todoapi/internal/cache"
	dom "todoapi/internal/domain"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 5, 19, 10, 28, 4, 0, time.UTC)

func newTestService(t *testing.T, opts ...Option) (*TodoService, *fakeRepo) {
	t.Helper()
	r := newFakeRepo()
	logger, _ := test.NewNullLogger()
	opts = append([]Option{WithClock(stepClock(t0, time.Second)), WithLogger(logger)}, opts...)
	return NewTodoService(r, nil, opts...), r
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestCreateThenGet(t *testing.T) {
	ctx := context.Background()
	for _, done := range []bool{false, true} {
		t.Run(fmt.Sprintf("completed=%v", done), func(t *testing.T) {
			svc, _ := newTestService(t)

			created, err := svc.Create(ctx, "Buy groceries", done)
			require.NoError(t, err)

			got, err := svc.GetByID(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, "Buy groceries", got.Task)
			assert.Equal(t, done, got.IsCompleted)
			assert.False(t, got.IsSeedData)
			assert.Equal(t, got.CreatedAt, got.UpdatedAt)
		})
	}
}

func TestCreateKeepsTaskVerbatim(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	created, err := svc.Create(ctx, " Buy milk ", false)
	require.NoError(t, err)

	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, " Buy milk ", got.Task)
}

func TestCreateRequiresTask(t *testing.T) {
	svc, r := newTestService(t)

	for _, task := range []string{"", "   "} {
		_, err := svc.Create(context.Background(), task, false)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	}
	assert.Zero(t, r.count())
}

func TestGetByIDNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateEmptyPatchRefreshesUpdatedAt(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	created, err := svc.Create(ctx, "Read a book", false)
	require.NoError(t, err)

	got, err := svc.Update(ctx, created.ID, dom.TodoPatch{})
	require.NoError(t, err)

	assert.Equal(t, created.Task, got.Task)
	assert.Equal(t, created.IsCompleted, got.IsCompleted)
	assert.Equal(t, created.CreatedAt, got.CreatedAt)
	assert.True(t, got.UpdatedAt.After(created.UpdatedAt))
}

func TestUpdateUpdatedAtNeverMovesBackwards(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, WithClock(stepClock(t0, -time.Second)))
	created, err := svc.Create(ctx, "Read a book", false)
	require.NoError(t, err)

	got, err := svc.Update(ctx, created.ID, dom.TodoPatch{})
	require.NoError(t, err)
	assert.False(t, got.UpdatedAt.Before(created.UpdatedAt))
}

func TestUpdateMergesOnlySetFields(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		patch    dom.TodoPatch
		wantTask string
		wantDone bool
	}{
		{"task only", dom.TodoPatch{Task: strPtr("Plan weekend trip")}, "Plan weekend trip", true},
		{"task set to same value", dom.TodoPatch{Task: strPtr("Call mom")}, "Call mom", true},
		{"completion only", dom.TodoPatch{IsCompleted: boolPtr(false)}, "Call mom", false},
		{"both", dom.TodoPatch{Task: strPtr("Call dad"), IsCompleted: boolPtr(false)}, "Call dad", false},
		{"empty task overwrites", dom.TodoPatch{Task: strPtr("")}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			created, err := svc.Create(ctx, "Call mom", true)
			require.NoError(t, err)

			got, err := svc.Update(ctx, created.ID, tt.patch)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTask, got.Task)
			assert.Equal(t, tt.wantDone, got.IsCompleted)
			assert.Equal(t, created.ID, got.ID)
			assert.Equal(t, created.CreatedAt, got.CreatedAt)

			stored, err := svc.GetByID(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, got, stored)
		})
	}
}

func TestUpdateNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Update(context.Background(), 7, dom.TodoPatch{Task: strPtr("x")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListOrdering(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	// b was created before a was completed, yet open todos come first.
	b, err := svc.Create(ctx, "B", false)
	require.NoError(t, err)
	a, err := svc.Create(ctx, "A", false)
	require.NoError(t, err)
	_, err = svc.Update(ctx, a.ID, dom.TodoPatch{IsCompleted: boolPtr(true)})
	require.NoError(t, err)
	c, err := svc.Create(ctx, "C", false)
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.Equal(t, []int64{c.ID, b.ID, a.ID}, ids(list))
}

func TestListEmpty(t *testing.T) {
	svc, _ := newTestService(t)

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestDeleteIsNotIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	created, err := svc.Create(ctx, "Schedule dentist appointment", false)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))

	_, err = svc.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, created.ID), ErrNotFound)
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	list, err := svc.Seed(ctx, 3)
	require.NoError(t, err)
	require.Len(t, list, 3)

	for i, td := range list {
		assert.Equal(t, fmt.Sprintf("Sample Todo %d", i+1), td.Task)
		assert.True(t, td.IsSeedData)
		assert.False(t, td.IsCompleted)
		assert.Equal(t, td.CreatedAt, td.UpdatedAt)
	}
}

func TestSeedRejectsBadCount(t *testing.T) {
	svc, r := newTestService(t, WithSeedLimit(10))

	for _, n := range []int{0, -1, 11} {
		_, err := svc.Seed(context.Background(), n)
		assert.ErrorIs(t, err, ErrInvalidArgument, "count %d", n)
	}
	assert.Zero(t, r.count())
}

func TestDeleteSeedKeepsManualTodos(t *testing.T) {
	ctx := context.Background()
	svc, r := newTestService(t)

	seeded, err := svc.Seed(ctx, 5)
	require.NoError(t, err)
	manual, err := svc.Create(ctx, "Buy groceries", false)
	require.NoError(t, err)
	// edited seed data is still seed data
	_, err = svc.Update(ctx, seeded[0].ID, dom.TodoPatch{Task: strPtr("edited"), IsCompleted: boolPtr(true)})
	require.NoError(t, err)

	n, err := svc.DeleteSeed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, 1, r.count())

	_, err = svc.GetByID(ctx, manual.ID)
	assert.NoError(t, err)
}

func TestDeleteSeedWithNothingToDelete(t *testing.T) {
	svc, _ := newTestService(t)

	n, err := svc.DeleteSeed(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStorageFailureIsWrapped(t *testing.T) {
	ctx := context.Background()
	svc, r := newTestService(t)
	boom := errors.New("connection refused")
	r.err = boom

	_, err := svc.Create(ctx, "x", false)
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, boom)

	_, err = svc.List(ctx)
	assert.ErrorIs(t, err, ErrStorage)

	_, err = svc.Seed(ctx, 2)
	assert.ErrorIs(t, err, ErrStorage)

	_, err = svc.DeleteSeed(ctx)
	assert.ErrorIs(t, err, ErrStorage)

	assert.ErrorIs(t, svc.Delete(ctx, 1), ErrStorage)
}

func newCachedService(t *testing.T) (*TodoService, *fakeRepo, *miniredis.Miniredis, *test.Hook) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	logger, hook := test.NewNullLogger()
	r := newFakeRepo()
	svc := NewTodoService(r, cache.NewTodoCache(client, time.Minute),
		WithClock(stepClock(t0, time.Second)), WithLogger(logger))
	return svc, r, mr, hook
}

func TestListServedFromCache(t *testing.T) {
	ctx := context.Background()
	svc, r, _, _ := newCachedService(t)
	_, err := svc.Create(ctx, "A", false)
	require.NoError(t, err)

	first, err := svc.List(ctx)
	require.NoError(t, err)
	second, err := svc.List(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, r.lists)
}

func TestWritesInvalidateCache(t *testing.T) {
	ctx := context.Background()
	svc, r, _, _ := newCachedService(t)

	_, err := svc.List(ctx)
	require.NoError(t, err)

	created, err := svc.Create(ctx, "A", false)
	require.NoError(t, err)
	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{created.ID}, ids(list))

	_, err = svc.Seed(ctx, 2)
	require.NoError(t, err)
	list, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	_, err = svc.DeleteSeed(ctx)
	require.NoError(t, err)
	list, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.Equal(t, 4, r.lists)
}

// writeDuringList runs a Create after the first List has read its rows,
// so the rows it returns are already stale.
type writeDuringList struct {
	*fakeRepo
	svc  *TodoService
	done bool
	t    *testing.T
}

func (w *writeDuringList) List(ctx context.Context) ([]dom.Todo, error) {
	list, err := w.fakeRepo.List(ctx)
	if err != nil || w.done {
		return list, err
	}
	w.done = true
	_, err = w.svc.Create(ctx, "written while listing", false)
	require.NoError(w.t, err)
	return list, nil
}

func TestListDoesNotCacheListLoadedDuringWrite(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger, _ := test.NewNullLogger()
	r := &writeDuringList{fakeRepo: newFakeRepo(), t: t}
	svc := NewTodoService(r, cache.NewTodoCache(client, time.Minute),
		WithClock(stepClock(t0, time.Second)), WithLogger(logger))
	r.svc = svc

	first, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, first)

	second, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "written while listing", second[0].Task)
}

func TestCacheOutageFallsBackToRepo(t *testing.T) {
	ctx := context.Background()
	svc, r, mr, hook := newCachedService(t)
	_, err := svc.Create(ctx, "A", false)
	require.NoError(t, err)

	mr.Close()

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, r.lists)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == log.WarnLevel {
			warned = true
		}
	}
	assert.True(t, warned, "expected a cache warning to be logged")
}

func ids(list []dom.Todo) []int64 {
	out := make([]int64, 0, len(list))
	for _, td := range list {
		out = append(out, td.ID)
	}
	return out
}
