package domain

import (
	"sort"
	"time"
)

// Todo is the domain entity. It does not depend on gin, Postgres or Redis.
type Todo struct {
	ID          int64     `json:"id"`
	Task        string    `json:"task"`
	IsCompleted bool      `json:"is_completed"`
	IsSeedData  bool      `json:"is_seed_data"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TodoPatch is a partial update. A nil field is left unchanged.
type TodoPatch struct {
	Task        *string
	IsCompleted *bool
}

// Empty reports whether the patch sets no field.
func (p TodoPatch) Empty() bool {
	return p.Task == nil && p.IsCompleted == nil
}

// Apply returns a copy of t with every set field of p written over it.
// Setting a field to its zero value ("" or false) still overwrites.
func (t Todo) Apply(p TodoPatch) Todo {
	if p.Task != nil {
		t.Task = *p.Task
	}
	if p.IsCompleted != nil {
		t.IsCompleted = *p.IsCompleted
	}
	return t
}

// SortTime is the timestamp a todo is ordered by within its group:
// when it was completed (last update) or when it was created.
func (t Todo) SortTime() time.Time {
	if t.IsCompleted {
		return t.UpdatedAt
	}
	return t.CreatedAt
}

// SortForListing orders todos in place: open todos first, then completed
// ones, each group newest first by SortTime. Equal keys keep input order.
func SortForListing(list []Todo) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.IsCompleted != b.IsCompleted {
			return !a.IsCompleted
		}
		return a.SortTime().After(b.SortTime())
	})
}
