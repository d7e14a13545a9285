package files

import (
	"context"

	"github.com/avolkovs/taskkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, file *models.File) (*models.File, error)
	GetByID(ctx context.Context, id, ownerID string) (*models.File, error)
	GetByStorageKey(ctx context.Context, key, ownerID string) (*models.File, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.File, error)
	ListByTaskIDs(ctx context.Context, ownerID string, taskIDs []string) ([]*models.File, error)
	SetTask(ctx context.Context, id, ownerID string, taskID *string) error
	DetachAllForTask(ctx context.Context, taskID, ownerID string) error
	Delete(ctx context.Context, id, ownerID string) error
}
