package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/avolkovs/taskkeeper/internal/common"
	"github.com/avolkovs/taskkeeper/internal/logging"
	"github.com/avolkovs/taskkeeper/internal/server/models"
	"github.com/avolkovs/taskkeeper/internal/server/repositories/repomanager"
	"github.com/avolkovs/taskkeeper/internal/server/storage"
)

// MaxUploadSize is the hard ceiling on upload payloads. Content is buffered
// fully in memory before it reaches the storage backend, so the ceiling also
// bounds per-request memory.
const MaxUploadSize = 10 << 20 // 10 MiB

// allowedMimeTypes is the upload allow-list: images, PDF, common office
// documents, plain text and CSV.
var allowedMimeTypes = map[string]struct{}{
	"image/jpeg":         {},
	"image/png":          {},
	"image/gif":          {},
	"image/webp":         {},
	"application/pdf":    {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"application/vnd.ms-excel": {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {},
	"application/vnd.ms-powerpoint":                                     {},
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": {},
	"text/plain": {},
	"text/csv":   {},
}

// UploadParams carries a fully buffered upload. TaskID, when set, attaches
// the new file to that task (ownership-checked like any other attach).
type UploadParams struct {
	OriginalName string
	MimeType     string
	Content      []byte
	TaskID       *string
}

// FileContent is a read-back of a stored object for serving over HTTP.
type FileContent struct {
	Content  []byte
	MimeType string
	Name     string
}

// FileService mediates file uploads, downloads, deletion and the file/task
// association. The storage backend is injected once at construction; the
// service never inspects which backend it is.
type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	storage     storage.Storage
	signTTL     time.Duration
	logger      logging.Logger
}

// NewFileService constructs a FileService over the given DB, repositories
// and storage backend. signTTL bounds signed download URL lifetime.
func NewFileService(db *sql.DB, m repomanager.RepositoryManager, st storage.Storage, signTTL time.Duration, logger logging.Logger) *FileService {
	if signTTL <= 0 {
		signTTL = storage.DefaultSignTTL
	}
	return &FileService{
		db:          db,
		repomanager: m,
		storage:     st,
		signTTL:     signTTL,
		logger:      logger.With("module", "file_service"),
	}
}

// Upload validates the payload, writes content to the storage backend, and
// then records metadata. Both checks run before the backend is touched, so a
// rejected upload writes nothing anywhere. If the metadata write fails after
// the object was stored, the object is deleted again on a best-effort basis
// to avoid orphaned storage.
func (s *FileService) Upload(ctx context.Context, userID string, p UploadParams) (*models.File, error) {
	if len(p.Content) == 0 {
		return nil, common.NewValidationError("file", "is empty")
	}
	if len(p.Content) > MaxUploadSize {
		return nil, common.NewValidationError("file", "exceeds the 10 MiB size limit")
	}
	if _, ok := allowedMimeTypes[p.MimeType]; !ok {
		return nil, common.NewValidationError("file", fmt.Sprintf("type %q is not allowed", p.MimeType))
	}

	if p.TaskID != nil {
		if _, err := s.repomanager.Tasks(s.db).GetByID(ctx, *p.TaskID, userID); err != nil {
			return nil, err
		}
	}

	obj, err := s.storage.Put(ctx, p.Content, p.OriginalName, p.MimeType, userID)
	if err != nil {
		return nil, err
	}

	file := &models.File{
		UserID:       userID,
		TaskID:       p.TaskID,
		FileName:     obj.GeneratedName,
		OriginalName: p.OriginalName,
		MimeType:     p.MimeType,
		Size:         int64(len(p.Content)),
		StorageKey:   obj.Key,
	}
	created, err := s.repomanager.Files(s.db).Create(ctx, file)
	if err != nil {
		// Compensate: the object exists but has no record. Best effort;
		// a failure here leaves an orphan that only operators can see.
		if delErr := s.storage.Delete(ctx, obj.Key); delErr != nil {
			s.logger.Error(ctx, "compensating delete failed, orphaned object remains",
				"key", obj.Key, "error", delErr.Error())
		}
		return nil, fmt.Errorf("error recording file metadata: %w", err)
	}
	return created, nil
}

// Get returns the metadata of userID's file, or common.ErrNotFound.
func (s *FileService) Get(ctx context.Context, userID, fileID string) (*models.File, error) {
	return s.repomanager.Files(s.db).GetByID(ctx, fileID, userID)
}

// List returns all of userID's files, newest first.
func (s *FileService) List(ctx context.Context, userID string) ([]*models.File, error) {
	return s.repomanager.Files(s.db).ListByOwner(ctx, userID)
}

// DownloadURL resolves userID's file and returns a temporary access URL for
// its content. The URL shape is backend-specific; its lifetime is bounded by
// the configured TTL and it is never cached or reused.
func (s *FileService) DownloadURL(ctx context.Context, userID, fileID string) (string, error) {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID, userID)
	if err != nil {
		return "", err
	}
	return s.storage.Sign(ctx, file.StorageKey, storage.SignModeDownload, s.signTTL)
}

// ContentByKey resolves a stored object by its storage key for the local
// serving endpoint. The lookup is owner-scoped exactly like resolution by
// id, so both download paths enforce the same ownership check.
func (s *FileService) ContentByKey(ctx context.Context, userID, key string) (*FileContent, error) {
	file, err := s.repomanager.Files(s.db).GetByStorageKey(ctx, key, userID)
	if err != nil {
		return nil, err
	}
	content, err := s.storage.Get(ctx, file.StorageKey)
	if err != nil {
		return nil, err
	}
	return &FileContent{Content: content, MimeType: file.MimeType, Name: file.OriginalName}, nil
}

// Delete removes both the backing object and the metadata record of
// userID's file. The object goes first; a backend failure aborts the
// operation with the record intact.
func (s *FileService) Delete(ctx context.Context, userID, fileID string) error {
	repo := s.repomanager.Files(s.db)
	file, err := repo.GetByID(ctx, fileID, userID)
	if err != nil {
		return err
	}
	if err := s.storage.Delete(ctx, file.StorageKey); err != nil {
		return err
	}
	return repo.Delete(ctx, fileID, userID)
}

// Attach associates userID's file with userID's task. Both resolutions are
// ownership-scoped and a failure of either yields the same
// common.ErrNotFound, so a caller cannot probe which of the two exists.
// Re-attaching an attached file overwrites the previous association.
func (s *FileService) Attach(ctx context.Context, userID, fileID, taskID string) (*models.File, error) {
	repo := s.repomanager.Files(s.db)
	if _, err := repo.GetByID(ctx, fileID, userID); err != nil {
		return nil, err
	}
	if _, err := s.repomanager.Tasks(s.db).GetByID(ctx, taskID, userID); err != nil {
		return nil, err
	}
	if err := repo.SetTask(ctx, fileID, userID, &taskID); err != nil {
		return nil, err
	}
	return repo.GetByID(ctx, fileID, userID)
}

// Detach clears the file's task association. Detaching an unassociated file
// succeeds: the operation is idempotent.
func (s *FileService) Detach(ctx context.Context, userID, fileID string) (*models.File, error) {
	repo := s.repomanager.Files(s.db)
	if err := repo.SetTask(ctx, fileID, userID, nil); err != nil {
		return nil, err
	}
	return repo.GetByID(ctx, fileID, userID)
}
