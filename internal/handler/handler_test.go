package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"interview-service/internal/models"
	"interview-service/internal/scratch"
	"interview-service/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeQuestions struct {
	topic string
}

func (f *fakeQuestions) Generate(_ context.Context, topic string) (*models.Question, error) {
	f.topic = topic
	return &models.Question{ID: 17, Genre: topic, Text: "What is normalization?"}, nil
}

type fakeProcessor struct {
	dir        *scratch.Dir
	err        error
	questionID int64
	content    string
}

func (f *fakeProcessor) Stage(r io.Reader, ext string) (*scratch.File, error) {
	return f.dir.Write(ext, r)
}

func (f *fakeProcessor) Process(_ context.Context, questionID int64, video *scratch.File) (*models.SubmissionResult, error) {
	defer video.Release()
	f.questionID = questionID
	data, _ := os.ReadFile(video.Path())
	f.content = string(data)
	if f.err != nil {
		return nil, f.err
	}
	return &models.SubmissionResult{
		Evaluation: models.Evaluation{Rating: "6", Feedback: "fb", Strengths: "st", ModelAnswer: "ma"},
		UserAnswer: "spoken words",
	}, nil
}

type fakeReports struct {
	saveErr error
	views   []models.ReportView
	deleted int64
}

func (f *fakeReports) Save(_ context.Context, req models.SaveReportRequest) ([]int64, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	if req.Email == "" {
		return nil, service.ErrEmailMissing
	}
	ids := make([]int64, len(req.Reports))
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	return ids, nil
}

func (f *fakeReports) Profile(_ context.Context, email string) ([]models.ReportView, error) {
	if f.views == nil {
		return []models.ReportView{}, nil
	}
	return f.views, nil
}

func (f *fakeReports) Delete(_ context.Context, id int64) error {
	if id != 5 {
		return service.ErrReportNotFound
	}
	f.deleted = id
	return nil
}

type fakeAuth struct {
	users map[string]models.SignupRequest
}

func (f *fakeAuth) Signup(_ context.Context, req models.SignupRequest) (*models.User, error) {
	if _, ok := f.users[req.Email]; ok {
		return nil, service.ErrUserAlreadyExists
	}
	f.users[req.Email] = req
	return &models.User{Email: req.Email, Username: req.Username}, nil
}

func (f *fakeAuth) Login(_ context.Context, req models.LoginRequest) (*models.User, error) {
	u, ok := f.users[req.Email]
	if !ok || u.Password != req.Password {
		return nil, service.ErrInvalidCredentials
	}
	return &models.User{Email: u.Email, Username: u.Username}, nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type testEnv struct {
	router    *gin.Engine
	questions *fakeQuestions
	processor *fakeProcessor
	reports   *fakeReports
	dir       *scratch.Dir
}

func newTestEnv(t *testing.T, maxUpload int64) *testEnv {
	t.Helper()
	dir, err := scratch.NewDir(scratch.Config{Dir: t.TempDir(), ReleaseDelay: time.Millisecond}, zap.NewNop())
	if err != nil {
		t.Fatalf("scratch.NewDir: %v", err)
	}

	env := &testEnv{
		questions: &fakeQuestions{},
		processor: &fakeProcessor{dir: dir},
		reports:   &fakeReports{},
		dir:       dir,
	}
	h := NewHandler(Deps{
		Questions:      env.questions,
		Submissions:    env.processor,
		Reports:        env.reports,
		Auth:           &fakeAuth{users: map[string]models.SignupRequest{}},
		DB:             fakePinger{},
		ModelInfo:      func() map[string]interface{} { return map[string]interface{}{"provider": "fake"} },
		MaxUploadBytes: maxUpload,
	}, zap.NewNop())
	env.router = NewRouter(h, zap.NewNop())
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

type uploadPart struct {
	name, filename, value string
}

func multipartRequest(t *testing.T, path string, parts ...uploadPart) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range parts {
		var (
			w   io.Writer
			err error
		)
		if p.filename != "" {
			w, err = mw.CreateFormFile(p.name, p.filename)
		} else {
			w, err = mw.CreateFormField(p.name)
		}
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		io.WriteString(w, p.value)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func assertNoScratchFiles(t *testing.T, dir *scratch.Dir) {
	t.Helper()
	entries, _ := os.ReadDir(dir.Path())
	if len(entries) != 0 {
		t.Errorf("expected scratch dir to be empty, found %d files", len(entries))
	}
}

func TestGetRandomQuestion(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/get-random-question/dbms", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		ID       int64  `json:"id"`
		Question string `json:"question"`
	}
	decode(t, w, &resp)
	if resp.ID != 17 || resp.Question != "What is normalization?" {
		t.Errorf("unexpected response %+v", resp)
	}
	if env.questions.topic != "dbms" {
		t.Errorf("expected topic dbms, got %q", env.questions.topic)
	}
}

func TestGetRandomQuestionRejectsBadTopic(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/get-random-question/"+url.PathEscape("<script>"), nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestSubmitVideo(t *testing.T) {
	for _, path := range []string{"/api/submit-video", "/"} {
		env := newTestEnv(t, 0)

		w := env.do(multipartRequest(t, path,
			uploadPart{name: "video", filename: "answer.webm", value: "video-bytes"},
			uploadPart{name: "question_id", value: "42"},
			uploadPart{name: "events", value: `[{"type":"tab_switch"}]`},
		))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", path, w.Code, w.Body.String())
		}

		var resp map[string]string
		decode(t, w, &resp)
		for _, key := range []string{"rating", "feedback", "strengths", "model_answer", "user_answer"} {
			if resp[key] == "" {
				t.Errorf("%s: missing %s in %v", path, key, resp)
			}
		}
		if env.processor.questionID != 42 || env.processor.content != "video-bytes" {
			t.Errorf("%s: processor saw id=%d content=%q", path, env.processor.questionID, env.processor.content)
		}
		assertNoScratchFiles(t, env.dir)
	}
}

func TestSubmitVideoWithoutVideo(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.do(multipartRequest(t, "/api/submit-video", uploadPart{name: "question_id", value: "1"}))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var resp map[string]string
	decode(t, w, &resp)
	if resp["message"] != "No video received" {
		t.Errorf("unexpected message %q", resp["message"])
	}

	w = env.do(httptest.NewRequest(http.MethodPost, "/api/submit-video", strings.NewReader("{}")))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-multipart body, got %d", w.Code)
	}
}

func TestSubmitVideoBadQuestionID(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.do(multipartRequest(t, "/api/submit-video",
		uploadPart{name: "video", filename: "a.webm", value: "v"},
		uploadPart{name: "question_id", value: "abc"},
	))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	assertNoScratchFiles(t, env.dir)
}

func TestSubmitVideoMissingQuestionID(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.do(multipartRequest(t, "/api/submit-video",
		uploadPart{name: "video", filename: "a.webm", value: "v"},
	))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	var resp map[string]string
	decode(t, w, &resp)
	if resp["message"] != "Invalid question ID" {
		t.Errorf("unexpected message %q", resp["message"])
	}
	assertNoScratchFiles(t, env.dir)
}

func TestSubmitVideoErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		prefix string
	}{
		{service.ErrQuestionNotFound, http.StatusNotFound, "Invalid question ID"},
		{fmt.Errorf("%w: branch panicked", service.ErrEvaluationFailed), http.StatusInternalServerError, "AI Error: "},
	}

	for _, tc := range cases {
		env := newTestEnv(t, 0)
		env.processor.err = tc.err

		w := env.do(multipartRequest(t, "/api/submit-video",
			uploadPart{name: "video", filename: "a.webm", value: "v"},
			uploadPart{name: "question_id", value: "3"},
		))
		if w.Code != tc.status {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.status, w.Code)
		}
		var resp map[string]string
		decode(t, w, &resp)
		if !strings.HasPrefix(resp["message"], tc.prefix) {
			t.Errorf("%v: unexpected message %q", tc.err, resp["message"])
		}
		assertNoScratchFiles(t, env.dir)
	}
}

func TestSubmitVideoTooLarge(t *testing.T) {
	env := newTestEnv(t, 256)

	w := env.do(multipartRequest(t, "/api/submit-video",
		uploadPart{name: "video", filename: "a.webm", value: strings.Repeat("x", 4096)},
		uploadPart{name: "question_id", value: "3"},
	))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", w.Code)
	}
	assertNoScratchFiles(t, env.dir)
}

func TestSaveReport(t *testing.T) {
	env := newTestEnv(t, 0)

	body := `{"email":"a@b.c","reports":[{"question_id":3,"rating":"8"},{"question_id":"4","rating":7}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/save_report", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := env.do(req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Message    string  `json:"message"`
		CreatedIDs []int64 `json:"created_ids"`
	}
	decode(t, w, &resp)
	if resp.Message != "Saved" || len(resp.CreatedIDs) != 2 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestSaveReportErrors(t *testing.T) {
	env := newTestEnv(t, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/save_report", strings.NewReader(`{"reports":[]}`))
	req.Header.Set("Content-Type", "application/json")
	if w := env.do(req); w.Code != http.StatusBadRequest {
		t.Errorf("missing email: expected 400, got %d", w.Code)
	}

	env.reports.saveErr = service.ErrUserNotFound
	req = httptest.NewRequest(http.MethodPost, "/api/save_report", strings.NewReader(`{"email":"x@y.z"}`))
	req.Header.Set("Content-Type", "application/json")
	if w := env.do(req); w.Code != http.StatusNotFound {
		t.Errorf("unknown user: expected 404, got %d", w.Code)
	}
}

func TestProfileUnknownUserIsEmptyArray(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/profile/ghost@example.com", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("expected [], got %s", w.Body.String())
	}
}

func TestDeleteReport(t *testing.T) {
	env := newTestEnv(t, 0)

	if w := env.do(httptest.NewRequest(http.MethodDelete, "/api/report/5", nil)); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if env.reports.deleted != 5 {
		t.Errorf("expected report 5 deleted, got %d", env.reports.deleted)
	}
	if w := env.do(httptest.NewRequest(http.MethodDelete, "/api/report/6", nil)); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if w := env.do(httptest.NewRequest(http.MethodDelete, "/api/report/six", nil)); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestDeleteReportLegacyPath(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.do(httptest.NewRequest(http.MethodDelete, "/api/report/5/delete/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if env.reports.deleted != 5 {
		t.Errorf("expected report 5 deleted, got %d", env.reports.deleted)
	}
}

func formRequest(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestSignupAndLogin(t *testing.T) {
	env := newTestEnv(t, 0)
	creds := url.Values{"email": {"mo@example.com"}, "username": {"mo"}, "password": {"secret99"}}

	if w := env.do(formRequest("/api/signup", creds)); w.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w := env.do(formRequest("/api/signup", creds))
	if w.Code != http.StatusBadRequest {
		t.Errorf("duplicate signup: expected 400, got %d", w.Code)
	}
	var dup map[string]string
	decode(t, w, &dup)
	if dup["message"] != "Email already registered" {
		t.Errorf("unexpected message %q", dup["message"])
	}

	bad := url.Values{"email": {"not-an-email"}, "username": {"x"}, "password": {"secret99"}}
	if w := env.do(formRequest("/api/signup", bad)); w.Code != http.StatusBadRequest {
		t.Errorf("invalid email: expected 400, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"email":"mo@example.com","password":"secret99"}`))
	req.Header.Set("Content-Type", "application/json")
	w = env.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", w.Code)
	}
	var login map[string]string
	decode(t, w, &login)
	if login["username"] != "mo" || login["email"] != "mo@example.com" {
		t.Errorf("unexpected login response %v", login)
	}

	wrong := url.Values{"email": {"mo@example.com"}, "password": {"nope"}}
	if w := env.do(formRequest("/api/login", wrong)); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: expected 401, got %d", w.Code)
	}
}

func TestProctoringEndpoints(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.do(multipartRequest(t, "/events", uploadPart{name: "event", value: `{"type":"face_missing"}`}))
	if w.Code != http.StatusOK {
		t.Errorf("events: expected 200, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/heartbeat", strings.NewReader(`{"ts":"2024-01-01T00:00:00Z"}`))
	req.Header.Set("Content-Type", "application/json")
	w = env.do(req)
	var resp map[string]bool
	decode(t, w, &resp)
	if !resp["alive"] {
		t.Errorf("heartbeat: unexpected body %s", w.Body.String())
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]interface{}
	decode(t, w, &resp)
	if resp["status"] != "healthy" || resp["database"] != "ok" {
		t.Errorf("unexpected health %v", resp)
	}
}

func TestHealthCheckDatabaseDown(t *testing.T) {
	h := NewHandler(Deps{DB: fakePinger{err: errors.New("connection refused")}}, zap.NewNop())
	router := NewRouter(h, zap.NewNop())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestMiddleware(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.do(httptest.NewRequest(http.MethodOptions, "/api/save_report", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight: expected 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	if got := env.do(req).Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("expected request id to be echoed, got %q", got)
	}
	if got := env.do(httptest.NewRequest(http.MethodGet, "/health", nil)).Header().Get("X-Request-ID"); got == "" {
		t.Error("expected generated request id")
	}
}
