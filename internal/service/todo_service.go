package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"todoapi/internal/cache"
	dom "todoapi/internal/domain"
	"todoapi/internal/repo"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrStorage         = errors.New("storage failure")
)

// DefaultSeedLimit caps a single seed request.
const DefaultSeedLimit = 1000

const (
	seedTaskFormat = "Sample Todo %d"
	keyList        = "list"
)

type TodoService struct {
	repo      repo.TodoRepo
	cache     *cache.TodoCache
	sf        singleflight.Group
	log       log.FieldLogger
	now       func() time.Time
	seedLimit int
}

// Option configures a TodoService.
type Option func(*TodoService)

// WithClock replaces the wall clock used for created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *TodoService) { s.now = now }
}

func WithLogger(l log.FieldLogger) Option {
	return func(s *TodoService) { s.log = l }
}

// WithSeedLimit sets the largest count Seed accepts. n <= 0 keeps the default.
func WithSeedLimit(n int) Option {
	return func(s *TodoService) {
		if n > 0 {
			s.seedLimit = n
		}
	}
}

// NewTodoService creates a TodoService. If c is nil, caching is disabled.
func NewTodoService(r repo.TodoRepo, c *cache.TodoCache, opts ...Option) *TodoService {
	s := &TodoService{
		repo:      r,
		cache:     c,
		log:       log.StandardLogger(),
		now:       time.Now,
		seedLimit: DefaultSeedLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TodoService) Create(ctx context.Context, task string, isCompleted bool) (dom.Todo, error) {
	if strings.TrimSpace(task) == "" {
		return dom.Todo{}, fmt.Errorf("%w: task is required", ErrInvalidArgument)
	}

	now := s.timestamp()
	t, err := s.repo.Create(ctx, dom.Todo{
		Task:        task,
		IsCompleted: isCompleted,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return dom.Todo{}, storageErr("create todo", err)
	}
	s.invalidateCache(ctx)
	return t, nil
}

// List returns every todo in listing order: open first, newest first.
func (s *TodoService) List(ctx context.Context) ([]dom.Todo, error) {
	if s.cache == nil {
		return s.loadSorted(ctx)
	}
	v, err, _ := s.sf.Do(keyList, func() (interface{}, error) {
		// The generation is read before the database so that a write
		// committed while loading keeps the loaded list out of the cache.
		gen, err := s.cache.Generation(ctx)
		if err != nil {
			s.log.WithError(err).Warn("todo cache read failed")
			return s.loadSorted(ctx)
		}
		list, err := s.cache.GetList(ctx)
		if err != nil {
			s.log.WithError(err).Warn("todo cache read failed")
		} else if list != nil {
			return list, nil
		}
		list, err = s.loadSorted(ctx)
		if err != nil {
			return nil, err
		}
		stored, err := s.cache.SetListIfGeneration(ctx, gen, list)
		if err != nil {
			s.log.WithError(err).Warn("todo cache write failed")
		} else if !stored {
			s.log.Debug("todo cache write skipped, listing changed while loading")
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]dom.Todo), nil
}

func (s *TodoService) loadSorted(ctx context.Context) ([]dom.Todo, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, storageErr("list todos", err)
	}
	if list == nil {
		list = []dom.Todo{}
	}
	dom.SortForListing(list)
	return list, nil
}

func (s *TodoService) GetByID(ctx context.Context, id int64) (dom.Todo, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dom.Todo{}, storageErr("get todo", err)
	}
	return t, nil
}

// Update merges patch onto todo id. updated_at advances even when the
// patch sets no field.
func (s *TodoService) Update(ctx context.Context, id int64, patch dom.TodoPatch) (dom.Todo, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dom.Todo{}, storageErr("get todo", err)
	}

	next := existing.Apply(patch)
	next.UpdatedAt = s.timestamp()
	if next.UpdatedAt.Before(existing.UpdatedAt) {
		next.UpdatedAt = existing.UpdatedAt
	}

	t, err := s.repo.Update(ctx, id, next)
	if err != nil {
		return dom.Todo{}, storageErr("update todo", err)
	}
	s.invalidateCache(ctx)
	return t, nil
}

// Delete removes todo id. Deleting a missing todo is ErrNotFound.
func (s *TodoService) Delete(ctx context.Context, id int64) error {
	n, err := s.repo.Delete(ctx, id)
	if err != nil {
		return storageErr("delete todo", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	s.invalidateCache(ctx)
	return nil
}

// Seed creates count placeholder todos tagged as seed data, named
// "Sample Todo 1" through "Sample Todo <count>".
func (s *TodoService) Seed(ctx context.Context, count int) ([]dom.Todo, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: count must be greater than 0", ErrInvalidArgument)
	}
	if count > s.seedLimit {
		return nil, fmt.Errorf("%w: count must not exceed %d", ErrInvalidArgument, s.seedLimit)
	}

	tasks := make([]string, count)
	for i := range tasks {
		tasks[i] = fmt.Sprintf(seedTaskFormat, i+1)
	}
	list, err := s.repo.CreateSeed(ctx, tasks, s.timestamp())
	if err != nil {
		return nil, storageErr("seed todos", err)
	}
	s.invalidateCache(ctx)
	s.log.WithField("count", len(list)).Info("seeded todos")
	return list, nil
}

// DeleteSeed removes every seed todo, including ones edited since
// seeding, and returns how many were removed.
func (s *TodoService) DeleteSeed(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteSeed(ctx)
	if err != nil {
		return 0, storageErr("delete seed todos", err)
	}
	s.invalidateCache(ctx)
	s.log.WithField("count", n).Info("deleted seed todos")
	return n, nil
}

// timestamp is the service clock in UTC at Postgres precision.
func (s *TodoService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *TodoService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.WithError(err).Warn("todo cache invalidation failed")
	}
}

func storageErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
