// Package files provides the PostgreSQL-backed repository for uploaded file
// metadata and the file/task association.
package files

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

const fileColumns = "id, user_id, task_id, file_name, original_name, mime_type, size, storage_key, created_at, updated_at"

// PostgresRepository implements file metadata storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanFile(row interface{ Scan(dest ...any) error }) (*models.File, error) {
	file := &models.File{}
	err := row.Scan(
		&file.ID, &file.UserID, &file.TaskID, &file.FileName, &file.OriginalName,
		&file.MimeType, &file.Size, &file.StorageKey, &file.CreatedAt, &file.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return file, nil
}

// Create inserts a file metadata record and fills in the server-assigned id
// and timestamps.
func (r *PostgresRepository) Create(ctx context.Context, file *models.File) (*models.File, error) {
	query := `
		INSERT INTO files (user_id, task_id, file_name, original_name, mime_type, size, storage_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		file.UserID, file.TaskID, file.FileName, file.OriginalName, file.MimeType, file.Size, file.StorageKey).
		Scan(&file.ID, &file.CreatedAt, &file.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return file, nil
}

// GetByID returns the file with the given id owned by ownerID. As with
// tasks, the owner predicate is conjoined in the query, so foreign files
// yield common.ErrNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id, ownerID string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1 AND user_id = $2`
	file, err := scanFile(r.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return file, nil
}

// GetByStorageKey resolves a file by its backend storage key, still scoped
// by owner. The local download endpoint uses this so that serving a file and
// issuing its link run the same ownership check.
func (r *PostgresRepository) GetByStorageKey(ctx context.Context, key, ownerID string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE storage_key = $1 AND user_id = $2`
	file, err := scanFile(r.db.QueryRowContext(ctx, query, key, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return file, nil
}

// ListByOwner returns all files owned by ownerID, newest first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, file)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListByTaskIDs returns the owner's files attached to any of taskIDs. Used
// to build the per-task file projections for a page of list results.
func (r *PostgresRepository) ListByTaskIDs(ctx context.Context, ownerID string, taskIDs []string) ([]*models.File, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(taskIDs)+1)
	args = append(args, ownerID)
	placeholders := make([]string, 0, len(taskIDs))
	for _, id := range taskIDs {
		args = append(args, id)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM files WHERE user_id = $1 AND task_id IN (%s) ORDER BY created_at`,
		fileColumns, strings.Join(placeholders, ", "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, file)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SetTask sets (or clears, when taskID is nil) the task association of the
// owner's file. Reassigning an already-attached file simply overwrites the
// previous association; clearing an absent one still succeeds, which makes
// detach idempotent. A missing or foreign file yields common.ErrNotFound.
func (r *PostgresRepository) SetTask(ctx context.Context, id, ownerID string, taskID *string) error {
	query := `UPDATE files SET task_id = $3, updated_at = now() WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, ownerID, taskID)
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

// DetachAllForTask clears the association of every file attached to taskID.
// Zero affected rows is fine: a task may have no files.
func (r *PostgresRepository) DetachAllForTask(ctx context.Context, taskID, ownerID string) error {
	query := `UPDATE files SET task_id = NULL, updated_at = now() WHERE task_id = $1 AND user_id = $2`
	if _, err := r.db.ExecContext(ctx, query, taskID, ownerID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Delete removes the metadata record for the owner's file.
func (r *PostgresRepository) Delete(ctx context.Context, id, ownerID string) error {
	query := `DELETE FROM files WHERE id = $1 AND user_id = $2`
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
