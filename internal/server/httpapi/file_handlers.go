package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/avolkovs/taskkeeper/internal/common"
	"github.com/avolkovs/taskkeeper/internal/server/services"
)

type downloadURLResponse struct {
	URL string `json:"url"`
}

// handleUploadFile accepts a multipart form with a "file" part and an
// optional "taskId" field. The request body is capped slightly above the
// service limit so oversized uploads fail fast instead of buffering fully.
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, services.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(services.MaxUploadSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, r, common.NewValidationError("file", "exceeds the 10 MiB size limit"))
			return
		}
		s.writeError(w, r, common.NewValidationError("body", "must be a multipart form with a file part"))
		return
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, common.NewValidationError("file", "is required"))
		return
	}
	defer part.Close()

	content, err := io.ReadAll(part)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("error reading upload: %w", err))
		return
	}

	params := services.UploadParams{
		OriginalName: header.Filename,
		MimeType:     header.Header.Get("Content-Type"),
		Content:      content,
	}
	if taskID := r.FormValue("taskId"); taskID != "" {
		params.TaskID = &taskID
	}

	file, err := s.files.Upload(r.Context(), userID, params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, toFileResponse(file))
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	files, err := s.files.List(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items := make([]fileResponse, 0, len(files))
	for _, f := range files {
		items = append(items, toFileResponse(f))
	}
	s.writeJSON(w, r, http.StatusOK, items)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	file, err := s.files.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, toFileResponse(file))
}

func (s *Server) handleFileDownloadURL(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	url, err := s.files.DownloadURL(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, downloadURLResponse{URL: url})
}

// handleServeFile streams stored content for URLs produced by the local
// backend. The key lookup is owner-scoped, so a signed URL leaked to another
// account resolves to the same 404 as a missing file.
func (s *Server) handleServeFile(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	key := r.URL.Query().Get("key")
	if key == "" {
		s.writeError(w, r, common.NewValidationError("key", "is required"))
		return
	}

	content, err := s.files.ContentByKey(r.Context(), userID, key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", content.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(content.Content)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", content.Name))
	if _, err := w.Write(content.Content); err != nil {
		s.logger.Error(r.Context(), "error streaming file content", "error", err.Error())
	}
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	if err := s.files.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusNoContent, nil)
}

func (s *Server) handleAttachFile(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	file, err := s.files.Attach(r.Context(), userID, r.PathValue("id"), r.PathValue("taskID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, toFileResponse(file))
}

func (s *Server) handleDetachFile(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	file, err := s.files.Detach(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, toFileResponse(file))
}
