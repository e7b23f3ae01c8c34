package tasksvc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Task is a single to-do item. ID is the store's own identifier; CustomID is the
// sequential number clients use to address the task.
type Task struct {
	ID        string    `json:"id"`
	CustomID  int64     `json:"customId"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Patch carries the fields of a partial update. Nil fields are left untouched.
type Patch struct {
	Title     *string `json:"title,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Completed == nil
}

// Apply returns t with the patch applied.
func (p Patch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	return t
}

type TaskRepository interface {
	// Create stores a new task and assigns it the next customId.
	Create(ctx context.Context, title string) (Task, error)
	FindAll(ctx context.Context, f Filter) ([]Task, error)
	Find(ctx context.Context, customID int64) (Task, error)
	Update(ctx context.Context, customID int64, p Patch) (Task, error)
	// Toggle flips the completed flag in a single store operation.
	Toggle(ctx context.Context, customID int64) (Task, error)
	Delete(ctx context.Context, customID int64) error
}

type SortField string

const (
	SortByCustomID  SortField = "customId"
	SortByTitle     SortField = "title"
	SortByCompleted SortField = "completed"
	SortByCreatedAt SortField = "createdAt"
	SortByUpdatedAt SortField = "updatedAt"
)

func (s SortField) Valid() bool {
	switch s {
	case SortByCustomID, SortByTitle, SortByCompleted, SortByCreatedAt, SortByUpdatedAt:
		return true
	}
	return false
}

type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

func (o SortOrder) Valid() bool {
	return o == Asc || o == Desc
}

// Filter selects and orders the tasks returned by a listing.
type Filter struct {
	Completed *bool
	Search    string
	SortBy    SortField
	Order     SortOrder
}

// DefaultFilter lists every task by ascending customId.
func DefaultFilter() Filter {
	return Filter{SortBy: SortByCustomID, Order: Asc}
}

// Normalize fills in the default sort field and order.
func (f Filter) Normalize() Filter {
	if f.SortBy == "" {
		f.SortBy = SortByCustomID
	}
	if f.Order == "" {
		f.Order = Asc
	}
	return f
}

func (f Filter) Validate() error {
	f = f.Normalize()
	if !f.SortBy.Valid() {
		return fmt.Errorf("%w: unknown sortBy %q", ErrInvalidArgument, f.SortBy)
	}
	if !f.Order.Valid() {
		return fmt.Errorf("%w: unknown order %q", ErrInvalidArgument, f.Order)
	}
	return nil
}

// Key is a stable textual form of the normalized filter, used for cache keys.
func (f Filter) Key() string {
	f = f.Normalize()
	completed := "any"
	if f.Completed != nil {
		completed = strconv.FormatBool(*f.Completed)
	}
	return strings.Join([]string{
		"completed=" + completed,
		"search=" + strings.ToLower(f.Search),
		"sortBy=" + string(f.SortBy),
		"order=" + string(f.Order),
	}, "&")
}

// Match reports whether t passes the completed and search criteria.
func (f Filter) Match(t Task) bool {
	if f.Completed != nil && t.Completed != *f.Completed {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

// Less orders a before b according to the filter, breaking ties by customId.
func (f Filter) Less(a, b Task) bool {
	f = f.Normalize()
	c := compare(f.SortBy, a, b)
	if c == 0 {
		return a.CustomID < b.CustomID
	}
	if f.Order == Desc {
		return c > 0
	}
	return c < 0
}

func compare(field SortField, a, b Task) int {
	switch field {
	case SortByTitle:
		return strings.Compare(a.Title, b.Title)
	case SortByCompleted:
		switch {
		case a.Completed == b.Completed:
			return 0
		case !a.Completed:
			return -1
		}
		return 1
	case SortByCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case SortByUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	}
	switch {
	case a.CustomID < b.CustomID:
		return -1
	case a.CustomID > b.CustomID:
		return 1
	}
	return 0
}

// ParseCustomID parses the customId path segment. Any numeric form is
// accepted; a number that cannot be a customId, such as 1.5, yields
// ErrTaskNotFound.
func ParseCustomID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id, nil
	}

	f, err := strconv.ParseFloat(s, 64)
	switch {
	case errors.Is(err, strconv.ErrRange):
		return 0, ErrTaskNotFound
	case err != nil, math.IsNaN(f):
		return 0, ErrInvalidID
	case f != math.Trunc(f), f < math.MinInt64, f >= math.MaxInt64:
		return 0, ErrTaskNotFound
	}
	return int64(f), nil
}

// DeletedMessage is the confirmation returned after a successful delete.
const DeletedMessage = "Task deleted"

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrTitleRequired    = errors.New("Title is required")
	ErrInvalidID        = errors.New("customId must be a number")
	ErrTaskNotFound     = errors.New("Task not found")
	ErrCustomIDConflict = errors.New("could not assign a unique customId")
)
