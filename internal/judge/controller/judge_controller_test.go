package controller_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"codearena/internal/common/cache"
	"codearena/internal/common/http/middleware"
	"codearena/internal/judge/controller"
	"codearena/internal/judge/model"
	"codearena/internal/judge/notify"
	"codearena/internal/judge/repository"
	"codearena/internal/judge/service"
	appErr "codearena/pkg/errors"
)

type fakeJudger struct {
	result *service.RunResult
	err    error
	last   service.SubmitRequest
}

func (f *fakeJudger) Judge(ctx context.Context, req service.SubmitRequest) (*service.RunResult, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeSubmissionReader struct {
	submission *model.Submission
	list       []*model.Submission
	err        error
}

func (f *fakeSubmissionReader) GetByID(ctx context.Context, submissionID string) (*model.Submission, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.submission, nil
}

func (f *fakeSubmissionReader) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Submission, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.list, nil
}

func newRouter(t *testing.T, judger *fakeJudger, reader *fakeSubmissionReader) (*gin.Engine, *repository.StatusRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	statusRepo := repository.NewStatusRepository(cache.NewRedisCacheWithClient(client), time.Minute)

	hub := notify.NewHub()
	t.Cleanup(hub.Close)

	h := controller.NewJudgeController(judger, reader, statusRepo, hub)
	r := gin.New()
	controller.RegisterRoutes(r, h, middleware.AuthConfig{Optional: true})
	return r, statusRepo
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSubmitReturnsResult(t *testing.T) {
	t.Parallel()

	judger := &fakeJudger{result: &service.RunResult{
		SubmissionID: "sub-1",
		Status:       model.StatusPassed,
		TotalCases:   2,
		PassedCases:  2,
		Results: []model.TestCaseResult{
			{Input: "2 3", ExpectedOutput: "5", ActualOutput: "5", Passed: true, IsSample: true},
			{Input: "secret", ExpectedOutput: "9", ActualOutput: "9", Passed: true, IsSample: false},
		},
	}}
	r, _ := newRouter(t, judger, &fakeSubmissionReader{})

	w := doJSON(t, r, http.MethodPost, "/api/v1/judge/submissions",
		`{"problemId":"prob-1","language":"python","code":"print(5)","userId":"user-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", w.Code, w.Body)
	}

	var resp struct {
		Success     bool                   `json:"success"`
		Status      string                 `json:"status"`
		TotalCases  int                    `json:"totalCases"`
		PassedCases int                    `json:"passedCases"`
		Results     []model.TestCaseResult `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Status != "Passed" || resp.TotalCases != 2 {
		t.Fatalf("resp %+v", resp)
	}
	if judger.last.UserID != "user-1" || judger.last.Language != "python" {
		t.Fatalf("request %+v", judger.last)
	}
	// hidden-case payloads are masked, pass flags survive
	if resp.Results[1].Input != "" || resp.Results[1].ExpectedOutput != "" {
		t.Fatalf("hidden case leaked: %+v", resp.Results[1])
	}
	if !resp.Results[1].Passed {
		t.Fatal("hidden case pass flag lost")
	}
}

func TestSubmitValidationErrorIs400(t *testing.T) {
	t.Parallel()

	judger := &fakeJudger{err: appErr.New(appErr.LanguageNotSupported)}
	r, _ := newRouter(t, judger, &fakeSubmissionReader{})

	w := doJSON(t, r, http.MethodPost, "/api/v1/judge/submissions",
		`{"problemId":"prob-1","language":"ruby","code":"puts 5"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400; body %s", w.Code, w.Body)
	}
}

func TestSubmitInfrastructureErrorIs500(t *testing.T) {
	t.Parallel()

	judger := &fakeJudger{err: appErr.New(appErr.JudgeSystemError)}
	r, _ := newRouter(t, judger, &fakeSubmissionReader{})

	w := doJSON(t, r, http.MethodPost, "/api/v1/judge/submissions",
		`{"problemId":"prob-1","language":"python","code":"print(5)"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status %d, want 500; body %s", w.Code, w.Body)
	}
	var body struct {
		Success bool `json:"success"`
		Code    int  `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success || body.Code != int(appErr.JudgeSystemError) {
		t.Fatalf("body %+v", body)
	}
}

func TestSubmitMalformedBodyIs400(t *testing.T) {
	t.Parallel()

	r, _ := newRouter(t, &fakeJudger{}, &fakeSubmissionReader{})
	w := doJSON(t, r, http.MethodPost, "/api/v1/judge/submissions", `{"problemId":1}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", w.Code)
	}
}

func TestGetSubmissionNotFoundIs404(t *testing.T) {
	t.Parallel()

	reader := &fakeSubmissionReader{err: appErr.New(appErr.SubmissionNotFound)}
	r, _ := newRouter(t, &fakeJudger{}, reader)

	w := doJSON(t, r, http.MethodGet, "/api/v1/judge/submissions/nope", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", w.Code)
	}
}

func TestGetStatus(t *testing.T) {
	t.Parallel()

	r, statusRepo := newRouter(t, &fakeJudger{}, &fakeSubmissionReader{})
	err := statusRepo.Save(context.Background(), model.StatusDocument{
		SubmissionID: "sub-1",
		Phase:        model.PhaseRunning,
		CurrentCase:  1,
		TotalCases:   3,
	})
	if err != nil {
		t.Fatalf("seed status: %v", err)
	}

	w := doJSON(t, r, http.MethodGet, "/api/v1/judge/submissions/sub-1/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", w.Code, w.Body)
	}
	var resp struct {
		Success bool                 `json:"success"`
		Status  model.StatusDocument `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status.Phase != model.PhaseRunning || resp.Status.TotalCases != 3 {
		t.Fatalf("resp %+v", resp)
	}
}

func TestListSubmissions(t *testing.T) {
	t.Parallel()

	reader := &fakeSubmissionReader{list: []*model.Submission{
		{ID: "sub-2", Status: model.StatusFailed},
		{ID: "sub-1", Status: model.StatusPassed},
	}}
	r, _ := newRouter(t, &fakeJudger{}, reader)

	w := doJSON(t, r, http.MethodGet, "/api/v1/judge/submissions?userId=user-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var resp struct {
		Submissions []*model.Submission `json:"submissions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Submissions) != 2 || resp.Submissions[0].ID != "sub-2" {
		t.Fatalf("resp %+v", resp.Submissions)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	r, _ := newRouter(t, &fakeJudger{}, &fakeSubmissionReader{})
	w := doJSON(t, r, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
}
