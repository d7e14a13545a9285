package files

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/avolkovs/taskkeeper/internal/common"
	"github.com/avolkovs/taskkeeper/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func fileRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "task_id", "file_name", "original_name", "mime_type",
		"size", "storage_key", "created_at", "updated_at",
	})
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	q := `(?s)^\s*INSERT\s+INTO\s+files\s*\(user_id, task_id, file_name, original_name, mime_type, size, storage_key\).*RETURNING id, created_at, updated_at`

	mock.ExpectQuery(q).
		WithArgs("u1", nil, "gen.pdf", "report.pdf", "application/pdf", int64(42), "u1/gen.pdf").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("f1", now, now))

	got, err := repo.Create(context.Background(), &models.File{
		UserID:       "u1",
		FileName:     "gen.pdf",
		OriginalName: "report.pdf",
		MimeType:     "application/pdf",
		Size:         42,
		StorageKey:   "u1/gen.pdf",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "f1" {
		t.Fatalf("unexpected file: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetByID_OwnerScoped(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	q := `SELECT .* FROM files WHERE id = \$1 AND user_id = \$2`

	mock.ExpectQuery(q).
		WithArgs("f1", "u1").
		WillReturnRows(fileRows().AddRow("f1", "u1", nil, "gen.png", "cat.png", "image/png", int64(7), "u1/gen.png", now, now))

	got, err := repo.GetByID(context.Background(), "f1", "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "f1" || got.TaskID != nil || got.StorageKey != "u1/gen.png" {
		t.Fatalf("unexpected file: %+v", got)
	}

	mock.ExpectQuery(q).
		WithArgs("f1", "someone-else").
		WillReturnRows(fileRows())

	if _, err := repo.GetByID(context.Background(), "f1", "someone-else"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestGetByStorageKey_OwnerScoped(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	q := `SELECT .* FROM files WHERE storage_key = \$1 AND user_id = \$2`

	mock.ExpectQuery(q).
		WithArgs("u1/gen.png", "u1").
		WillReturnRows(fileRows().AddRow("f1", "u1", nil, "gen.png", "cat.png", "image/png", int64(7), "u1/gen.png", now, now))

	got, err := repo.GetByStorageKey(context.Background(), "u1/gen.png", "u1")
	if err != nil || got.ID != "f1" {
		t.Fatalf("unexpected result: %+v, %v", got, err)
	}

	// A stolen key still resolves against the requester's rows only.
	mock.ExpectQuery(q).
		WithArgs("u1/gen.png", "u2").
		WillReturnRows(fileRows())

	if _, err := repo.GetByStorageKey(context.Background(), "u1/gen.png", "u2"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestListByOwner_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	taskID := "t1"

	mock.ExpectQuery(`SELECT .* FROM files WHERE user_id = \$1 ORDER BY created_at DESC`).
		WithArgs("u1").
		WillReturnRows(fileRows().
			AddRow("f2", "u1", &taskID, "b.txt", "b.txt", "text/plain", int64(2), "u1/b.txt", now, now).
			AddRow("f1", "u1", nil, "a.txt", "a.txt", "text/plain", int64(1), "u1/a.txt", now, now))

	got, err := repo.ListByOwner(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "f2" || *got[0].TaskID != "t1" || got[1].TaskID != nil {
		t.Fatalf("unexpected rows: %+v", got)
	}
}

func TestListByTaskIDs_BuildsPlaceholders(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	t1 := "t1"

	mock.ExpectQuery(`SELECT .* FROM files WHERE user_id = \$1 AND task_id IN \(\$2, \$3\) ORDER BY created_at`).
		WithArgs("u1", "t1", "t2").
		WillReturnRows(fileRows().
			AddRow("f1", "u1", &t1, "a.txt", "a.txt", "text/plain", int64(1), "u1/a.txt", now, now))

	got, err := repo.ListByTaskIDs(context.Background(), "u1", []string{"t1", "t2"})
	if err != nil || len(got) != 1 {
		t.Fatalf("unexpected result: %+v, %v", got, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListByTaskIDs_EmptyInputSkipsQuery(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	got, err := repo.ListByTaskIDs(context.Background(), "u1", nil)
	if err != nil || got != nil {
		t.Fatalf("want nil/nil, got %+v, %v", got, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected query issued: %v", err)
	}
}

func TestSetTask_AttachDetachAndNotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `UPDATE files SET task_id = \$3, updated_at = now\(\) WHERE id = \$1 AND user_id = \$2`
	taskID := "t1"

	mock.ExpectExec(q).WithArgs("f1", "u1", &taskID).WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.SetTask(context.Background(), "f1", "u1", &taskID); err != nil {
		t.Fatalf("attach: unexpected error: %v", err)
	}

	// Detaching a file that has no association still affects the row, so
	// the operation stays idempotent at the service level.
	mock.ExpectExec(q).WithArgs("f1", "u1", nil).WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.SetTask(context.Background(), "f1", "u1", nil); err != nil {
		t.Fatalf("detach: unexpected error: %v", err)
	}

	mock.ExpectExec(q).WithArgs("ghost", "u1", nil).WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.SetTask(context.Background(), "ghost", "u1", nil); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestDetachAllForTask_ZeroRowsIsFine(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE files SET task_id = NULL, updated_at = now\(\) WHERE task_id = \$1 AND user_id = \$2`).
		WithArgs("t1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.DetachAllForTask(context.Background(), "t1", "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDelete_Flows(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `DELETE FROM files WHERE id = \$1 AND user_id = \$2`

	mock.ExpectExec(q).WithArgs("f1", "u1").WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.Delete(context.Background(), "f1", "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mock.ExpectExec(q).WithArgs("ghost", "u1").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.Delete(context.Background(), "ghost", "u1"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	mock.ExpectExec(q).WithArgs("f1", "u1").WillReturnError(errors.New("db down"))
	err := repo.Delete(context.Background(), "f1", "u1")
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}
