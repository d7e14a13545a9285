package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/avolkovs/taskkeeper/internal/common"
	"github.com/avolkovs/taskkeeper/internal/dbx"
	"github.com/avolkovs/taskkeeper/internal/server/models"
	"github.com/avolkovs/taskkeeper/internal/server/repositories/repomanager"
	"github.com/avolkovs/taskkeeper/internal/server/repositories/tasks"
)

const (
	maxTitleLen       = 255
	maxDescriptionLen = 2000
)

// CreateTaskParams carries validated input for creating a task. Empty Status
// and Priority default to PENDING and MEDIUM.
type CreateTaskParams struct {
	Title       string
	Description string
	Status      models.TaskStatus
	Priority    models.TaskPriority
	DueDate     *time.Time
}

// UpdateTaskParams carries a partial task update. Nil pointers preserve the
// stored value. DueDateSet distinguishes an explicit null due date (true
// with nil DueDate, which clears it) from an omitted field (false).
type UpdateTaskParams struct {
	Title       *string
	Description *string
	Status      *models.TaskStatus
	Priority    *models.TaskPriority
	DueDate     *time.Time
	DueDateSet  bool
}

// TaskPage is one page of list results plus the pagination block.
type TaskPage struct {
	Items []*models.Task
	Total int64
	Page  int
	Limit int
	Pages int
}

// TaskService implements task CRUD, the list query, aggregate stats, and the
// transactional delete that detaches associated files.
//
// Concurrent updates to the same task by the same user are resolved
// last-write-wins; there is no version-based conflict detection.
type TaskService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

// NewTaskService constructs a TaskService over the given DB and repositories.
func NewTaskService(db *sql.DB, m repomanager.RepositoryManager) *TaskService {
	return &TaskService{db: db, repomanager: m}
}

func validateTitle(title string) error {
	if title == "" {
		return common.NewValidationError("title", "is required")
	}
	if len(title) > maxTitleLen {
		return common.NewValidationError("title", fmt.Sprintf("must be at most %d characters", maxTitleLen))
	}
	return nil
}

func validateDescription(description string) error {
	if len(description) > maxDescriptionLen {
		return common.NewValidationError("description", fmt.Sprintf("must be at most %d characters", maxDescriptionLen))
	}
	return nil
}

// Create validates p, applies defaults, and persists a new task for userID.
func (s *TaskService) Create(ctx context.Context, userID string, p CreateTaskParams) (*models.Task, error) {
	if err := validateTitle(p.Title); err != nil {
		return nil, err
	}
	if err := validateDescription(p.Description); err != nil {
		return nil, err
	}

	status := p.Status
	if status == "" {
		status = models.TaskStatusPending
	}
	if !status.Valid() {
		return nil, common.NewValidationError("status", "must be one of PENDING, IN_PROGRESS, COMPLETED")
	}

	priority := p.Priority
	if priority == "" {
		priority = models.TaskPriorityMedium
	}
	if !priority.Valid() {
		return nil, common.NewValidationError("priority", "must be one of LOW, MEDIUM, HIGH")
	}

	task := &models.Task{
		UserID:      userID,
		Title:       p.Title,
		Description: p.Description,
		Status:      status,
		Priority:    priority,
		DueDate:     p.DueDate,
	}
	created, err := s.repomanager.Tasks(s.db).Create(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("error creating task: %w", err)
	}
	created.Files = []*models.FileInfo{}
	return created, nil
}

// Get returns userID's task with its file projection, or common.ErrNotFound.
func (s *TaskService) Get(ctx context.Context, userID, taskID string) (*models.Task, error) {
	task, err := s.repomanager.Tasks(s.db).GetByID(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.loadFileInfos(ctx, userID, []*models.Task{task}); err != nil {
		return nil, err
	}
	return task, nil
}

// List resolves one page of userID's tasks under q and attaches file
// projections to each returned task.
func (s *TaskService) List(ctx context.Context, userID string, q tasks.ListQuery) (*TaskPage, error) {
	q.Normalize()

	items, total, err := s.repomanager.Tasks(s.db).List(ctx, userID, q)
	if err != nil {
		return nil, fmt.Errorf("error listing tasks: %w", err)
	}
	if err := s.loadFileInfos(ctx, userID, items); err != nil {
		return nil, err
	}

	pages := int((total + int64(q.Limit) - 1) / int64(q.Limit))
	return &TaskPage{
		Items: items,
		Total: total,
		Page:  q.Page,
		Limit: q.Limit,
		Pages: pages,
	}, nil
}

// Update applies a partial update to userID's task. Omitted fields keep
// their stored values; an explicit null due date clears it.
func (s *TaskService) Update(ctx context.Context, userID, taskID string, p UpdateTaskParams) (*models.Task, error) {
	repo := s.repomanager.Tasks(s.db)
	task, err := repo.GetByID(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}

	if p.Title != nil {
		if err := validateTitle(*p.Title); err != nil {
			return nil, err
		}
		task.Title = *p.Title
	}
	if p.Description != nil {
		if err := validateDescription(*p.Description); err != nil {
			return nil, err
		}
		task.Description = *p.Description
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return nil, common.NewValidationError("status", "must be one of PENDING, IN_PROGRESS, COMPLETED")
		}
		task.Status = *p.Status
	}
	if p.Priority != nil {
		if !p.Priority.Valid() {
			return nil, common.NewValidationError("priority", "must be one of LOW, MEDIUM, HIGH")
		}
		task.Priority = *p.Priority
	}
	if p.DueDateSet {
		task.DueDate = p.DueDate
	}

	if err := repo.Update(ctx, task); err != nil {
		return nil, err
	}
	if err := s.loadFileInfos(ctx, userID, []*models.Task{task}); err != nil {
		return nil, err
	}
	return task, nil
}

// Delete removes userID's task. Associated files are detached, not deleted:
// both steps run inside one transaction so a crash cannot leave files
// pointing at a deleted task.
func (s *TaskService) Delete(ctx context.Context, userID, taskID string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Files(tx).DetachAllForTask(ctx, taskID, userID); err != nil {
			return err
		}
		return s.repomanager.Tasks(tx).Delete(ctx, taskID, userID)
	})
}

// Stats returns aggregate task counts for userID.
func (s *TaskService) Stats(ctx context.Context, userID string) (*models.TaskStats, error) {
	return s.repomanager.Tasks(s.db).Stats(ctx, userID)
}

// loadFileInfos populates the file projection of each task in one query.
func (s *TaskService) loadFileInfos(ctx context.Context, userID string, items []*models.Task) error {
	ids := make([]string, 0, len(items))
	byID := make(map[string]*models.Task, len(items))
	for _, t := range items {
		t.Files = []*models.FileInfo{}
		ids = append(ids, t.ID)
		byID[t.ID] = t
	}
	if len(ids) == 0 {
		return nil
	}

	attached, err := s.repomanager.Files(s.db).ListByTaskIDs(ctx, userID, ids)
	if err != nil {
		return fmt.Errorf("error loading file projections: %w", err)
	}
	for _, f := range attached {
		if f.TaskID == nil {
			continue
		}
		if t, ok := byID[*f.TaskID]; ok {
			t.Files = append(t.Files, f.Info())
		}
	}
	return nil
}
