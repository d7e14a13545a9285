package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/avolkovs/taskkeeper/internal/common"
	"github.com/avolkovs/taskkeeper/internal/logging"
	"github.com/avolkovs/taskkeeper/internal/server/auth"
	"github.com/avolkovs/taskkeeper/internal/server/models"
	"github.com/avolkovs/taskkeeper/internal/server/repositories/tasks"
	"github.com/avolkovs/taskkeeper/internal/server/services"
)

// ---- test logger ----

type nopLogger struct{}

func (n nopLogger) Debug(context.Context, string, ...any) {}
func (n nopLogger) Info(context.Context, string, ...any)  {}
func (n nopLogger) Warn(context.Context, string, ...any)  {}
func (n nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger            { return n }

// ---- fakes ----

type fakeUserSvc struct {
	regOut *models.User
	regErr error

	loginOut *services.TokenPair
	loginErr error

	refreshOut *services.TokenPair
	refreshErr error
}

func (f *fakeUserSvc) Register(ctx context.Context, email, name, password string) (*models.User, error) {
	return f.regOut, f.regErr
}
func (f *fakeUserSvc) Login(ctx context.Context, email, password string) (*services.TokenPair, error) {
	return f.loginOut, f.loginErr
}
func (f *fakeUserSvc) RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error) {
	return f.refreshOut, f.refreshErr
}

type fakeTaskSvc struct {
	createOut    *models.Task
	createErr    error
	createParams services.CreateTaskParams

	getOut *models.Task
	getErr error

	listOut *services.TaskPage
	listErr error

	updateOut    *models.Task
	updateErr    error
	updateParams services.UpdateTaskParams

	deleteErr error
	deletedID string

	statsOut *models.TaskStats
	statsErr error

	lastUserID string
}

func (f *fakeTaskSvc) Create(ctx context.Context, userID string, p services.CreateTaskParams) (*models.Task, error) {
	f.lastUserID = userID
	f.createParams = p
	return f.createOut, f.createErr
}
func (f *fakeTaskSvc) Get(ctx context.Context, userID, taskID string) (*models.Task, error) {
	f.lastUserID = userID
	return f.getOut, f.getErr
}
func (f *fakeTaskSvc) List(ctx context.Context, userID string, q tasks.ListQuery) (*services.TaskPage, error) {
	f.lastUserID = userID
	return f.listOut, f.listErr
}
func (f *fakeTaskSvc) Update(ctx context.Context, userID, taskID string, p services.UpdateTaskParams) (*models.Task, error) {
	f.lastUserID = userID
	f.updateParams = p
	return f.updateOut, f.updateErr
}
func (f *fakeTaskSvc) Delete(ctx context.Context, userID, taskID string) error {
	f.lastUserID = userID
	f.deletedID = taskID
	return f.deleteErr
}
func (f *fakeTaskSvc) Stats(ctx context.Context, userID string) (*models.TaskStats, error) {
	f.lastUserID = userID
	return f.statsOut, f.statsErr
}

type fakeFileSvc struct {
	uploadOut    *models.File
	uploadErr    error
	uploadParams services.UploadParams

	getOut *models.File
	getErr error

	listOut []*models.File
	listErr error

	urlOut string
	urlErr error

	contentOut *services.FileContent
	contentErr error
	lastKey    string

	deleteErr error

	attachOut    *models.File
	attachErr    error
	attachFileID string
	attachTaskID string

	detachOut *models.File
	detachErr error
}

func (f *fakeFileSvc) Upload(ctx context.Context, userID string, p services.UploadParams) (*models.File, error) {
	f.uploadParams = p
	return f.uploadOut, f.uploadErr
}
func (f *fakeFileSvc) Get(ctx context.Context, userID, fileID string) (*models.File, error) {
	return f.getOut, f.getErr
}
func (f *fakeFileSvc) List(ctx context.Context, userID string) ([]*models.File, error) {
	return f.listOut, f.listErr
}
func (f *fakeFileSvc) DownloadURL(ctx context.Context, userID, fileID string) (string, error) {
	return f.urlOut, f.urlErr
}
func (f *fakeFileSvc) ContentByKey(ctx context.Context, userID, key string) (*services.FileContent, error) {
	f.lastKey = key
	return f.contentOut, f.contentErr
}
func (f *fakeFileSvc) Delete(ctx context.Context, userID, fileID string) error {
	return f.deleteErr
}
func (f *fakeFileSvc) Attach(ctx context.Context, userID, fileID, taskID string) (*models.File, error) {
	f.attachFileID = fileID
	f.attachTaskID = taskID
	return f.attachOut, f.attachErr
}
func (f *fakeFileSvc) Detach(ctx context.Context, userID, fileID string) (*models.File, error) {
	return f.detachOut, f.detachErr
}

// ---- helpers ----

const testSecret = "k"

func newTestServer(u userSvc, ts taskSvc, fs fileSvc) *Server {
	return &Server{
		address:   "127.0.0.1:0",
		logger:    nopLogger{},
		users:     u,
		tasks:     ts,
		files:     fs,
		jwtSecret: []byte(testSecret),
	}
}

func bearerToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.GenerateToken(userID, []byte(testSecret), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	return "Bearer " + token
}

func doJSON(t *testing.T, h http.Handler, method, target, authHeader string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

// ---- auth tests ----

func TestRegister_Created(t *testing.T) {
	u := &fakeUserSvc{regOut: &models.User{ID: "u1", Email: "a@b.c", Name: "Alice"}}
	h := newTestServer(u, &fakeTaskSvc{}, &fakeFileSvc{}).Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/auth/register", "",
		map[string]string{"email": "a@b.c", "name": "Alice", "password": "password123"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var resp userResponse
	decodeBody(t, rec, &resp)
	if resp.ID != "u1" || resp.Email != "a@b.c" {
		t.Fatalf("unexpected body: %+v", resp)
	}
}

func TestRegister_DuplicateIsConflict(t *testing.T) {
	u := &fakeUserSvc{regErr: common.ErrAlreadyExists}
	h := newTestServer(u, &fakeTaskSvc{}, &fakeFileSvc{}).Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/auth/register", "",
		map[string]string{"email": "a@b.c", "password": "password123"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("want 409, got %d", rec.Code)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	u := &fakeUserSvc{loginErr: common.ErrUnauthorized}
	h := newTestServer(u, &fakeTaskSvc{}, &fakeFileSvc{}).Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/auth/login", "",
		map[string]string{"email": "a@b.c", "password": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", rec.Code)
	}
}

func TestLogin_MalformedBody(t *testing.T) {
	h := newTestServer(&fakeUserSvc{}, &fakeTaskSvc{}, &fakeFileSvc{}).Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
}

func TestRefresh_Expired(t *testing.T) {
	u := &fakeUserSvc{refreshErr: common.ErrRefreshTokenExpired}
	h := newTestServer(u, &fakeTaskSvc{}, &fakeFileSvc{}).Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/auth/refresh", "",
		map[string]string{"refreshToken": "stale"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", rec.Code)
	}
}

// ---- middleware tests ----

func TestWithAuth_MissingAndInvalidToken(t *testing.T) {
	ts := &fakeTaskSvc{statsOut: &models.TaskStats{}}
	h := newTestServer(&fakeUserSvc{}, ts, &fakeFileSvc{}).Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/tasks/stats", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: want 401, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/tasks/stats", "Bearer garbage", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("invalid token: want 401, got %d", rec.Code)
	}

	if ts.lastUserID != "" {
		t.Fatalf("handler must not run without a valid token")
	}
}

func TestWithAuth_ValidTokenInjectsUserID(t *testing.T) {
	ts := &fakeTaskSvc{statsOut: &models.TaskStats{Total: 1}}
	h := newTestServer(&fakeUserSvc{}, ts, &fakeFileSvc{}).Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/tasks/stats", bearerToken(t, "u1"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if ts.lastUserID != "u1" {
		t.Fatalf("user id not propagated: %q", ts.lastUserID)
	}
}

// ---- task handler tests ----

func TestCreateTask_Created(t *testing.T) {
	ts := &fakeTaskSvc{createOut: &models.Task{
		ID: "t1", UserID: "u1", Title: "Buy milk",
		Status: models.TaskStatusPending, Priority: models.TaskPriorityMedium,
		Files: []*models.FileInfo{},
	}}
	h := newTestServer(&fakeUserSvc{}, ts, &fakeFileSvc{}).Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/tasks", bearerToken(t, "u1"),
		map[string]string{"title": "Buy milk"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	var resp taskResponse
	decodeBody(t, rec, &resp)
	if resp.ID != "t1" || resp.Status != "PENDING" || resp.Priority != "MEDIUM" {
		t.Fatalf("unexpected body: %+v", resp)
	}
	if resp.Files == nil {
		t.Fatalf("files must serialize as an empty array, not null")
	}
	if ts.createParams.Title != "Buy milk" {
		t.Fatalf("params not forwarded: %+v", ts.createParams)
	}
}

func TestCreateTask_ValidationErrorCarriesFields(t *testing.T) {
	ts := &fakeTaskSvc{createErr: common.NewValidationError("title", "is required")}
	h := newTestServer(&fakeUserSvc{}, ts, &fakeFileSvc{}).Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/tasks", bearerToken(t, "u1"),
		map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
	var resp errorResponse
	decodeBody(t, rec, &resp)
	if resp.Fields["title"] != "is required" {
		t.Fatalf("fields not carried: %+v", resp)
	}
}

func TestListTasks_RejectsUnknownStatus(t *testing.T) {
	ts := &fakeTaskSvc{}
	h := newTestServer(&fakeUserSvc{}, ts, &fakeFileSvc{}).Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/tasks?status=DONE", bearerToken(t, "u1"), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
	if ts.lastUserID != "" {
		t.Fatalf("service must not be called for invalid filters")
	}
}

func TestListTasks_PaginationBlock(t *testing.T) {
	ts := &fakeTaskSvc{listOut: &services.TaskPage{
		Items: []*models.Task{{ID: "t1", Files: []*models.FileInfo{}}},
		Total: 25, Page: 2, Limit: 10, Pages: 3,
	}}
	h := newTestServer(&fakeUserSvc{}, ts, &fakeFileSvc{}).Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/tasks?page=2&limit=10", bearerToken(t, "u1"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	var resp taskListResponse
	decodeBody(t, rec, &resp)
	if resp.Pagination.Total != 25 || resp.Pagination.Pages != 3 || len(resp.Tasks) != 1 {
		t.Fatalf("unexpected body: %+v", resp)
	}
}

func TestGetTask_NotFound(t *testing.T) {
	ts := &fakeTaskSvc{getErr: common.ErrNotFound}
	h := newTestServer(&fakeUserSvc{}, ts, &fakeFileSvc{}).Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/tasks/t-foreign", bearerToken(t, "u2"), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", rec.Code)
	}
}

func TestUpdateTask_NullDueDateClearsIt(t *testing.T) {
	ts := &fakeTaskSvc{updateOut: &models.Task{ID: "t1", Files: []*models.FileInfo{}}}
	h := newTestServer(&fakeUserSvc{}, ts, &fakeFileSvc{}).Handler()

	req := httptest.NewRequest(http.MethodPatch, "/api/tasks/t1",
		strings.NewReader(`{"dueDate": null}`))
	req.Header.Set("Authorization", bearerToken(t, "u1"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if !ts.updateParams.DueDateSet || ts.updateParams.DueDate != nil {
		t.Fatalf("explicit null must clear: %+v", ts.updateParams)
	}
	if ts.updateParams.Title != nil {
		t.Fatalf("omitted fields must stay nil: %+v", ts.updateParams)
	}
}

func TestUpdateTask_OmittedDueDateIsNotSet(t *testing.T) {
	ts := &fakeTaskSvc{updateOut: &models.Task{ID: "t1", Files: []*models.FileInfo{}}}
	h := newTestServer(&fakeUserSvc{}, ts, &fakeFileSvc{}).Handler()

	rec := doJSON(t, h, http.MethodPatch, "/api/tasks/t1", bearerToken(t, "u1"),
		map[string]string{"title": "renamed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	if ts.updateParams.DueDateSet {
		t.Fatalf("omitted dueDate must not be marked set")
	}
	if ts.updateParams.Title == nil || *ts.updateParams.Title != "renamed" {
		t.Fatalf("title not forwarded: %+v", ts.updateParams)
	}
}

func TestDeleteTask_NoContent(t *testing.T) {
	ts := &fakeTaskSvc{}
	h := newTestServer(&fakeUserSvc{}, ts, &fakeFileSvc{}).Handler()

	rec := doJSON(t, h, http.MethodDelete, "/api/tasks/t1", bearerToken(t, "u1"), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("want 204, got %d", rec.Code)
	}
	if ts.deletedID != "t1" {
		t.Fatalf("path id not forwarded: %q", ts.deletedID)
	}
}

// ---- file handler tests ----

func multipartUpload(t *testing.T, fieldName, fileName, mimeType string, content []byte, taskID string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{`form-data; name="` + fieldName + `"; filename="` + fileName + `"`}
	hdr["Content-Type"] = []string{mimeType}
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("CreatePart error: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("part write error: %v", err)
	}
	if taskID != "" {
		if err := mw.WriteField("taskId", taskID); err != nil {
			t.Fatalf("WriteField error: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("writer close error: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUploadFile_Created(t *testing.T) {
	fs := &fakeFileSvc{uploadOut: &models.File{
		ID: "f1", UserID: "u1", FileName: "gen.png", OriginalName: "cat.png",
		MimeType: "image/png", Size: 9,
	}}
	h := newTestServer(&fakeUserSvc{}, &fakeTaskSvc{}, fs).Handler()

	body, contentType := multipartUpload(t, "file", "cat.png", "image/png", []byte("png bytes"), "t1")
	req := httptest.NewRequest(http.MethodPost, "/api/files", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearerToken(t, "u1"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if fs.uploadParams.OriginalName != "cat.png" || fs.uploadParams.MimeType != "image/png" {
		t.Fatalf("params not forwarded: %+v", fs.uploadParams)
	}
	if fs.uploadParams.TaskID == nil || *fs.uploadParams.TaskID != "t1" {
		t.Fatalf("taskId form field not forwarded: %v", fs.uploadParams.TaskID)
	}
	if string(fs.uploadParams.Content) != "png bytes" {
		t.Fatalf("content not forwarded: %q", fs.uploadParams.Content)
	}

	var resp fileResponse
	decodeBody(t, rec, &resp)
	if resp.ID != "f1" || resp.FileName != "gen.png" {
		t.Fatalf("unexpected body: %+v", resp)
	}
}

func TestUploadFile_MissingPart(t *testing.T) {
	fs := &fakeFileSvc{}
	h := newTestServer(&fakeUserSvc{}, &fakeTaskSvc{}, fs).Handler()

	body, contentType := multipartUpload(t, "wrongfield", "cat.png", "image/png", []byte("x"), "")
	req := httptest.NewRequest(http.MethodPost, "/api/files", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearerToken(t, "u1"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
}

func TestUploadFile_NotMultipart(t *testing.T) {
	h := newTestServer(&fakeUserSvc{}, &fakeTaskSvc{}, &fakeFileSvc{}).Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/files", bearerToken(t, "u1"),
		map[string]string{"file": "nope"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
}

func TestFileDownloadURL_OK(t *testing.T) {
	fs := &fakeFileSvc{urlOut: "https://signed.example/x"}
	h := newTestServer(&fakeUserSvc{}, &fakeTaskSvc{}, fs).Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/files/f1/download", bearerToken(t, "u1"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	var resp downloadURLResponse
	decodeBody(t, rec, &resp)
	if resp.URL != "https://signed.example/x" {
		t.Fatalf("unexpected body: %+v", resp)
	}
}

func TestFileDownloadURL_StorageDownIs503(t *testing.T) {
	fs := &fakeFileSvc{urlErr: common.ErrStorageUnavailable}
	h := newTestServer(&fakeUserSvc{}, &fakeTaskSvc{}, fs).Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/files/f1/download", bearerToken(t, "u1"), nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "storage_key") {
		t.Fatalf("backend detail leaked: %s", rec.Body.String())
	}
}

func TestServeFile_StreamsContent(t *testing.T) {
	fs := &fakeFileSvc{contentOut: &services.FileContent{
		Content:  []byte("stored bytes"),
		MimeType: "text/plain",
		Name:     "notes.txt",
	}}
	h := newTestServer(&fakeUserSvc{}, &fakeTaskSvc{}, fs).Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/files/serve?key=u1%2Fgen.txt", bearerToken(t, "u1"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if fs.lastKey != "u1/gen.txt" {
		t.Fatalf("key not unescaped: %q", fs.lastKey)
	}
	if rec.Body.String() != "stored bytes" {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "text/plain" {
		t.Fatalf("unexpected content type: %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "notes.txt") {
		t.Fatalf("unexpected disposition: %q", got)
	}
}

func TestServeFile_RequiresKey(t *testing.T) {
	h := newTestServer(&fakeUserSvc{}, &fakeTaskSvc{}, &fakeFileSvc{}).Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/files/serve", bearerToken(t, "u1"), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
}

func TestServeFile_StolenKeyIsNotFound(t *testing.T) {
	fs := &fakeFileSvc{contentErr: common.ErrNotFound}
	h := newTestServer(&fakeUserSvc{}, &fakeTaskSvc{}, fs).Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/files/serve?key=u1%2Fgen.txt", bearerToken(t, "u2"), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", rec.Code)
	}
}

func TestAttachFile_PathValuesForwarded(t *testing.T) {
	taskID := "t1"
	fs := &fakeFileSvc{attachOut: &models.File{ID: "f1", TaskID: &taskID}}
	h := newTestServer(&fakeUserSvc{}, &fakeTaskSvc{}, fs).Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/files/f1/attach/t1", bearerToken(t, "u1"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	if fs.attachFileID != "f1" || fs.attachTaskID != "t1" {
		t.Fatalf("path values not forwarded: file=%q task=%q", fs.attachFileID, fs.attachTaskID)
	}
	var resp fileResponse
	decodeBody(t, rec, &resp)
	if resp.TaskID == nil || *resp.TaskID != "t1" {
		t.Fatalf("taskId missing in response: %+v", resp)
	}
}

func TestDetachFile_TaskIDSerializesAsNull(t *testing.T) {
	fs := &fakeFileSvc{detachOut: &models.File{ID: "f1"}}
	h := newTestServer(&fakeUserSvc{}, &fakeTaskSvc{}, fs).Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/files/f1/detach", bearerToken(t, "u1"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	var raw map[string]json.RawMessage
	decodeBody(t, rec, &raw)
	if string(raw["taskId"]) != "null" {
		t.Fatalf("detached file must carry taskId null, got %s", raw["taskId"])
	}
}

func TestDeleteFile_NoContent(t *testing.T) {
	h := newTestServer(&fakeUserSvc{}, &fakeTaskSvc{}, &fakeFileSvc{}).Handler()

	rec := doJSON(t, h, http.MethodDelete, "/api/files/f1", bearerToken(t, "u1"), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("want 204, got %d", rec.Code)
	}
}

func TestUnexpectedErrorIsGeneric500(t *testing.T) {
	ts := &fakeTaskSvc{getErr: errors.New("pq: column does not exist")}
	h := newTestServer(&fakeUserSvc{}, ts, &fakeFileSvc{}).Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/tasks/t1", bearerToken(t, "u1"), nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "pq:") {
		t.Fatalf("internal detail leaked: %s", rec.Body.String())
	}
}
