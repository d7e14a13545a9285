// Package tasks provides the PostgreSQL-backed task repository, including
// the filtered, sorted, paginated list query.
//
// Free-text search uses LIKE, so match case sensitivity follows the
// database's default collation. On a stock PostgreSQL setup that means
// case-sensitive substring matching; this is an assumption, not a guarantee.
package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/avolkovs/taskkeeper/internal/common"
	"github.com/avolkovs/taskkeeper/internal/dbx"
	"github.com/avolkovs/taskkeeper/internal/server/models"
)

const taskColumns = "id, user_id, title, description, status, priority, due_date, created_at, updated_at"

// PostgresRepository implements task storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a task and fills in the server-assigned id and timestamps.
func (r *PostgresRepository) Create(ctx context.Context, task *models.Task) (*models.Task, error) {
	query := `
		INSERT INTO tasks (user_id, title, description, status, priority, due_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		task.UserID, task.Title, task.Description, task.Status, task.Priority, task.DueDate).
		Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return task, nil
}

// GetByID returns the task with the given id owned by ownerID. The owner
// predicate is part of the query itself, so a task belonging to another user
// is indistinguishable from a missing one: both return common.ErrNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id, ownerID string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND user_id = $2`

	task := &models.Task{}
	err := r.db.QueryRowContext(ctx, query, id, ownerID).Scan(
		&task.ID, &task.UserID, &task.Title, &task.Description,
		&task.Status, &task.Priority, &task.DueDate, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return task, nil
}

// List returns one page of the owner's tasks matching q, together with the
// total count computed over the same filter predicate.
//
// The predicate is always:
//
//	user_id = owner AND status? AND priority? AND (title LIKE term OR description LIKE term)?
//
// so pages = ceil(total/limit) is consistent with the returned items.
func (r *PostgresRepository) List(ctx context.Context, ownerID string, q ListQuery) ([]*models.Task, int64, error) {
	q.Normalize()

	where := []string{"user_id = $1"}
	args := []any{ownerID}

	if q.Status != nil {
		args = append(args, *q.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if q.Priority != nil {
		args = append(args, *q.Priority)
		where = append(where, fmt.Sprintf("priority = $%d", len(args)))
	}
	if term := strings.TrimSpace(q.Search); term != "" {
		args = append(args, "%"+escapeLike(term)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(title LIKE $%d OR description LIKE $%d)", n, n))
	}

	cond := strings.Join(where, " AND ")

	var total int64
	countQuery := `SELECT COUNT(*) FROM tasks WHERE ` + cond
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	orderCol := sortColumns[q.SortBy]
	dir := "DESC"
	if q.SortOrder == "asc" {
		dir = "ASC"
	}

	args = append(args, q.Limit, q.Offset())
	selectQuery := fmt.Sprintf(
		`SELECT %s FROM tasks WHERE %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		taskColumns, cond, orderCol, dir, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Task
	for rows.Next() {
		task := &models.Task{}
		if err := rows.Scan(
			&task.ID, &task.UserID, &task.Title, &task.Description,
			&task.Status, &task.Priority, &task.DueDate, &task.CreatedAt, &task.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		result = append(result, task)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// Update persists the full row for task, scoped by id and owner. When no row
// matches (absent or foreign), it returns common.ErrNotFound.
func (r *PostgresRepository) Update(ctx context.Context, task *models.Task) error {
	query := `
		UPDATE tasks
		SET title = $3, description = $4, status = $5, priority = $6, due_date = $7, updated_at = now()
		WHERE id = $1 AND user_id = $2
	`
	res, err := r.db.ExecContext(ctx, query,
		task.ID, task.UserID, task.Title, task.Description, task.Status, task.Priority, task.DueDate)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// Delete removes the task with the given id owned by ownerID.
// Associated files are detached by the service before this runs, inside the
// same transaction.
func (r *PostgresRepository) Delete(ctx context.Context, id, ownerID string) error {
	query := `DELETE FROM tasks WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// Stats returns aggregate counts for the owner's tasks in a single query.
func (r *PostgresRepository) Stats(ctx context.Context, ownerID string) (*models.TaskStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'PENDING'),
			COUNT(*) FILTER (WHERE status = 'IN_PROGRESS'),
			COUNT(*) FILTER (WHERE status = 'COMPLETED'),
			COUNT(*) FILTER (WHERE status IN ('PENDING', 'IN_PROGRESS') AND due_date < now())
		FROM tasks
		WHERE user_id = $1
	`
	stats := &models.TaskStats{}
	err := r.db.QueryRowContext(ctx, query, ownerID).Scan(
		&stats.Total, &stats.Pending, &stats.InProgress, &stats.Completed, &stats.Overdue)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return stats, nil
}

// escapeLike neutralizes LIKE metacharacters in user-supplied search terms
// so they match literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
