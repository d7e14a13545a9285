// Package httpapi exposes the task and file services over an HTTP/JSON API.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/avolkovs/taskkeeper/internal/logging"
	"github.com/avolkovs/taskkeeper/internal/server/models"
	"github.com/avolkovs/taskkeeper/internal/server/repositories/tasks"
	"github.com/avolkovs/taskkeeper/internal/server/services"
)

// The handler layer depends on these narrow views of the services.
type userSvc interface {
	Register(ctx context.Context, email, name, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
}

type taskSvc interface {
	Create(ctx context.Context, userID string, p services.CreateTaskParams) (*models.Task, error)
	Get(ctx context.Context, userID, taskID string) (*models.Task, error)
	List(ctx context.Context, userID string, q tasks.ListQuery) (*services.TaskPage, error)
	Update(ctx context.Context, userID, taskID string, p services.UpdateTaskParams) (*models.Task, error)
	Delete(ctx context.Context, userID, taskID string) error
	Stats(ctx context.Context, userID string) (*models.TaskStats, error)
}

type fileSvc interface {
	Upload(ctx context.Context, userID string, p services.UploadParams) (*models.File, error)
	Get(ctx context.Context, userID, fileID string) (*models.File, error)
	List(ctx context.Context, userID string) ([]*models.File, error)
	DownloadURL(ctx context.Context, userID, fileID string) (string, error)
	ContentByKey(ctx context.Context, userID, key string) (*services.FileContent, error)
	Delete(ctx context.Context, userID, fileID string) error
	Attach(ctx context.Context, userID, fileID, taskID string) (*models.File, error)
	Detach(ctx context.Context, userID, fileID string) (*models.File, error)
}

// Server serves the public HTTP API. Services and the JWT secret are
// injected at construction; the server owns no other state.
type Server struct {
	address string
	logger  logging.Logger

	users userSvc
	tasks taskSvc
	files fileSvc

	jwtSecret []byte
}

// NewServer constructs the HTTP API server.
func NewServer(address string, l logging.Logger, us *services.UserService, ts *services.TaskService, fs *services.FileService, secretKey string) *Server {
	return &Server{
		address:   address,
		logger:    l.With("module", "http_server"),
		users:     us,
		tasks:     ts,
		files:     fs,
		jwtSecret: []byte(secretKey),
	}
}

// Handler builds the route table. Split out from Run so tests can drive the
// full routing stack through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/refresh", s.handleRefresh)

	mux.HandleFunc("POST /api/tasks", s.withAuth(s.handleCreateTask))
	mux.HandleFunc("GET /api/tasks", s.withAuth(s.handleListTasks))
	mux.HandleFunc("GET /api/tasks/stats", s.withAuth(s.handleTaskStats))
	mux.HandleFunc("GET /api/tasks/{id}", s.withAuth(s.handleGetTask))
	mux.HandleFunc("PATCH /api/tasks/{id}", s.withAuth(s.handleUpdateTask))
	mux.HandleFunc("DELETE /api/tasks/{id}", s.withAuth(s.handleDeleteTask))

	mux.HandleFunc("POST /api/files", s.withAuth(s.handleUploadFile))
	mux.HandleFunc("GET /api/files", s.withAuth(s.handleListFiles))
	mux.HandleFunc("GET /api/files/serve", s.withAuth(s.handleServeFile))
	mux.HandleFunc("GET /api/files/{id}", s.withAuth(s.handleGetFile))
	mux.HandleFunc("GET /api/files/{id}/download", s.withAuth(s.handleFileDownloadURL))
	mux.HandleFunc("DELETE /api/files/{id}", s.withAuth(s.handleDeleteFile))
	mux.HandleFunc("POST /api/files/{id}/attach/{taskID}", s.withAuth(s.handleAttachFile))
	mux.HandleFunc("POST /api/files/{id}/detach", s.withAuth(s.handleDetachFile))

	return mux
}

// Run serves the API until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err.Error())
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
