package httpapi

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/avolkovs/taskkeeper/internal/common"
	"github.com/avolkovs/taskkeeper/internal/server/models"
	"github.com/avolkovs/taskkeeper/internal/server/services"
)

// fileInfoResponse is the external projection of a file. The storage key is
// an internal backend detail and never appears here.
type fileInfoResponse struct {
	ID           string    `json:"id"`
	FileName     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"createdAt"`
}

type fileResponse struct {
	ID           string    `json:"id"`
	TaskID       *string   `json:"taskId"`
	FileName     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type taskResponse struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Status      string             `json:"status"`
	Priority    string             `json:"priority"`
	DueDate     *time.Time         `json:"dueDate"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
	Files       []fileInfoResponse `json:"files"`
}

type paginationBlock struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

type taskListResponse struct {
	Tasks      []taskResponse  `json:"tasks"`
	Pagination paginationBlock `json:"pagination"`
}

type taskStatsResponse struct {
	Total      int64 `json:"total"`
	Pending    int64 `json:"pending"`
	InProgress int64 `json:"inProgress"`
	Completed  int64 `json:"completed"`
	Overdue    int64 `json:"overdue"`
}

func toFileInfoResponse(f *models.FileInfo) fileInfoResponse {
	return fileInfoResponse{
		ID:           f.ID,
		FileName:     f.FileName,
		OriginalName: f.OriginalName,
		MimeType:     f.MimeType,
		Size:         f.Size,
		CreatedAt:    f.CreatedAt,
	}
}

func toFileResponse(f *models.File) fileResponse {
	return fileResponse{
		ID:           f.ID,
		TaskID:       f.TaskID,
		FileName:     f.FileName,
		OriginalName: f.OriginalName,
		MimeType:     f.MimeType,
		Size:         f.Size,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

func toTaskResponse(t *models.Task) taskResponse {
	files := make([]fileInfoResponse, 0, len(t.Files))
	for _, f := range t.Files {
		files = append(files, toFileInfoResponse(f))
	}
	return taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		DueDate:     t.DueDate,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		Files:       files,
	}
}

func toTaskListResponse(page *services.TaskPage) taskListResponse {
	items := make([]taskResponse, 0, len(page.Items))
	for _, t := range page.Items {
		items = append(items, toTaskResponse(t))
	}
	return taskListResponse{
		Tasks: items,
		Pagination: paginationBlock{
			Page:  page.Page,
			Limit: page.Limit,
			Total: page.Total,
			Pages: page.Pages,
		},
	}
}

// optionalTime distinguishes an omitted JSON field (Set false) from an
// explicit null (Set true, Value nil). Task updates use it so that a null
// dueDate clears the stored value while an absent field preserves it.
type optionalTime struct {
	Set   bool
	Value *time.Time
}

func (o *optionalTime) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(b, []byte("null")) {
		o.Value = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(b, &t); err != nil {
		return common.NewValidationError("dueDate", "must be an RFC 3339 timestamp or null")
	}
	o.Value = &t
	return nil
}
