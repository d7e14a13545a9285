package tasks

import (
	"context"

	"github.com/avolkovs/taskkeeper/internal/server/models"
)

// Sort and pagination bounds for list queries.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	DefaultSortBy    = "createdAt"
	DefaultSortOrder = "desc"
)

// ListQuery captures untrusted filter/sort/pagination input for listing
// tasks. Zero values mean "not supplied"; Normalize clamps everything to
// safe defaults before the query is built.
type ListQuery struct {
	Status    *models.TaskStatus
	Priority  *models.TaskPriority
	Search    string
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

// Normalize applies defaults and bounds: page >= 1, 1 <= limit <= 100,
// sort key restricted to the known set (default createdAt desc).
func (q *ListQuery) Normalize() {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if _, ok := sortColumns[q.SortBy]; !ok {
		q.SortBy = DefaultSortBy
	}
	if q.SortOrder != "asc" && q.SortOrder != "desc" {
		q.SortOrder = DefaultSortOrder
	}
}

// Offset returns the number of rows to skip for the current page.
func (q *ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// sortColumns maps external sort keys to whitelisted column names. Anything
// outside this map falls back to the default sort, so user input never
// reaches the ORDER BY clause directly.
var sortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"dueDate":   "due_date",
	"title":     "title",
}

type Repository interface {
	Create(ctx context.Context, task *models.Task) (*models.Task, error)
	GetByID(ctx context.Context, id, ownerID string) (*models.Task, error)
	List(ctx context.Context, ownerID string, q ListQuery) ([]*models.Task, int64, error)
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id, ownerID string) error
	Stats(ctx context.Context, ownerID string) (*models.TaskStats, error)
}
