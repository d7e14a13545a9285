package httpapi

import (
	"net/http"
	"strconv"

	"github.com/avolkovs/taskkeeper/internal/common"
	"github.com/avolkovs/taskkeeper/internal/server/models"
	"github.com/avolkovs/taskkeeper/internal/server/repositories/tasks"
	"github.com/avolkovs/taskkeeper/internal/server/services"
)

type createTaskRequest struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      string       `json:"status"`
	Priority    string       `json:"priority"`
	DueDate     optionalTime `json:"dueDate"`
}

type updateTaskRequest struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	Status      *string      `json:"status"`
	Priority    *string      `json:"priority"`
	DueDate     optionalTime `json:"dueDate"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	task, err := s.tasks.Create(r.Context(), userIDFromContext(r.Context()), services.CreateTaskParams{
		Title:       req.Title,
		Description: req.Description,
		Status:      models.TaskStatus(req.Status),
		Priority:    models.TaskPriority(req.Priority),
		DueDate:     req.DueDate.Value,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusCreated, toTaskResponse(task))
}

// parseListQuery pulls filter/sort/pagination parameters off the query
// string. Everything is optional; out-of-range values are clamped by
// ListQuery.Normalize at the repository boundary.
func parseListQuery(r *http.Request) tasks.ListQuery {
	q := tasks.ListQuery{
		Search:    r.URL.Query().Get("search"),
		SortBy:    r.URL.Query().Get("sortBy"),
		SortOrder: r.URL.Query().Get("sortOrder"),
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := models.TaskStatus(v)
		q.Status = &status
	}
	if v := r.URL.Query().Get("priority"); v != "" {
		priority := models.TaskPriority(v)
		q.Priority = &priority
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		q.Page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		q.Limit = v
	}
	return q
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := parseListQuery(r)

	if q.Status != nil && !q.Status.Valid() {
		s.writeError(w, r, common.NewValidationError("status", "must be one of PENDING, IN_PROGRESS, COMPLETED"))
		return
	}
	if q.Priority != nil && !q.Priority.Valid() {
		s.writeError(w, r, common.NewValidationError("priority", "must be one of LOW, MEDIUM, HIGH"))
		return
	}

	page, err := s.tasks.List(r.Context(), userIDFromContext(r.Context()), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, toTaskListResponse(page))
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.tasks.Get(r.Context(), userIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, toTaskResponse(task))
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req updateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	params := services.UpdateTaskParams{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate.Value,
		DueDateSet:  req.DueDate.Set,
	}
	if req.Status != nil {
		status := models.TaskStatus(*req.Status)
		params.Status = &status
	}
	if req.Priority != nil {
		priority := models.TaskPriority(*req.Priority)
		params.Priority = &priority
	}

	task, err := s.tasks.Update(r.Context(), userIDFromContext(r.Context()), r.PathValue("id"), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, toTaskResponse(task))
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.tasks.Delete(r.Context(), userIDFromContext(r.Context()), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusNoContent, nil)
}

func (s *Server) handleTaskStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.tasks.Stats(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, taskStatsResponse{
		Total:      stats.Total,
		Pending:    stats.Pending,
		InProgress: stats.InProgress,
		Completed:  stats.Completed,
		Overdue:    stats.Overdue,
	})
}
