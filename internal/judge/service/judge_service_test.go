package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"codearena/internal/judge/model"
	"codearena/internal/judge/profile"
	"codearena/internal/judge/sandbox"
	"codearena/internal/judge/sandbox/spec"
	"codearena/internal/judge/service"
	appErr "codearena/pkg/errors"
)

// scriptedExecutor returns one outcome per call, in order. The last outcome
// repeats if calls exceed the script.
type scriptedExecutor struct {
	script []sandbox.Outcome
	calls  int
	inputs []string
}

func (e *scriptedExecutor) Execute(ctx context.Context, lang profile.Profile, sourceCode, stdinPayload string, limits spec.ResourceLimit) sandbox.Outcome {
	e.inputs = append(e.inputs, stdinPayload)
	idx := e.calls
	if idx >= len(e.script) {
		idx = len(e.script) - 1
	}
	e.calls++
	return e.script[idx]
}

func ok(output string) sandbox.Outcome {
	return sandbox.Outcome{Kind: sandbox.OutcomeOK, Output: output}
}

type fakeProblems struct {
	problem *model.Problem
	err     error
}

func (f *fakeProblems) GetByID(ctx context.Context, problemID string) (*model.Problem, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.problem, nil
}

type fakeSubmissions struct {
	created []*model.Submission
	err     error
}

func (f *fakeSubmissions) Create(ctx context.Context, sub *model.Submission) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, sub)
	return nil
}

type fakeUsers struct {
	increments []string
	err        error
}

func (f *fakeUsers) IncrementSolvedCount(ctx context.Context, userID string) error {
	if f.err != nil {
		return f.err
	}
	f.increments = append(f.increments, userID)
	return nil
}

type fakeStatus struct {
	saved []model.StatusDocument
}

func (f *fakeStatus) Save(ctx context.Context, doc model.StatusDocument) error {
	f.saved = append(f.saved, doc)
	return nil
}

type fakeEvents struct {
	published []model.StatusEvent
}

func (f *fakeEvents) PublishStatus(ctx context.Context, event model.StatusEvent) error {
	f.published = append(f.published, event)
	return nil
}

type harness struct {
	svc         *service.Service
	executor    *scriptedExecutor
	submissions *fakeSubmissions
	users       *fakeUsers
	status      *fakeStatus
	events      *fakeEvents
}

func addProblem() *model.Problem {
	return &model.Problem{
		ID:    "prob-1",
		Title: "A+B",
		SampleTestCases: []model.TestCase{
			{Input: "2 3", ExpectedOutput: "5"},
		},
	}
}

func newHarness(t *testing.T, problem *model.Problem, problemErr error, script ...sandbox.Outcome) *harness {
	t.Helper()
	h := &harness{
		executor:    &scriptedExecutor{script: script},
		submissions: &fakeSubmissions{},
		users:       &fakeUsers{},
		status:      &fakeStatus{},
		events:      &fakeEvents{},
	}
	svc, err := service.NewService(service.Config{
		Registry:    profile.NewDefaultRegistry(),
		Executor:    h.executor,
		Problems:    &fakeProblems{problem: problem, err: problemErr},
		Submissions: h.submissions,
		Users:       h.users,
		Status:      h.status,
		Events:      h.events,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	h.svc = svc
	return h
}

func submit() service.SubmitRequest {
	return service.SubmitRequest{
		UserID:    "user-1",
		ProblemID: "prob-1",
		Language:  "python",
		Code:      "a, b = map(int, input().split()); print(a + b)",
	}
}

func TestJudgeAllCasesPass(t *testing.T) {
	t.Parallel()

	h := newHarness(t, addProblem(), nil, ok("5\n"))
	res, err := h.svc.Judge(context.Background(), submit())
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if res.Status != model.StatusPassed || res.TotalCases != 1 || res.PassedCases != 1 {
		t.Fatalf("result %+v", res)
	}
	if len(h.submissions.created) != 1 {
		t.Fatalf("persisted %d submissions, want 1", len(h.submissions.created))
	}
	if got := h.submissions.created[0].Status; got != model.StatusPassed {
		t.Fatalf("persisted status %s", got)
	}
	if len(h.users.increments) != 1 || h.users.increments[0] != "user-1" {
		t.Fatalf("solved counter increments: %v", h.users.increments)
	}
	if len(h.events.published) != 1 {
		t.Fatalf("published %d events, want exactly 1", len(h.events.published))
	}
	if h.events.published[0].Status != model.StatusPassed {
		t.Fatalf("event status %s", h.events.published[0].Status)
	}
}

func TestJudgeWrongOutputFails(t *testing.T) {
	t.Parallel()

	h := newHarness(t, addProblem(), nil, ok("-1\n"))
	res, err := h.svc.Judge(context.Background(), submit())
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if res.Status != model.StatusFailed || res.PassedCases != 0 {
		t.Fatalf("result %+v", res)
	}
	entry := res.Results[0]
	if entry.Passed {
		t.Fatal("case should have failed")
	}
	if strings.TrimSpace(entry.ActualOutput) != "-1" {
		t.Fatalf("actual output = %q", entry.ActualOutput)
	}
	if len(h.users.increments) != 0 {
		t.Fatal("solved counter must not move on a failed run")
	}
	if len(h.events.published) != 1 {
		t.Fatalf("published %d events, want exactly 1", len(h.events.published))
	}
}

func TestJudgeUnknownLanguage(t *testing.T) {
	t.Parallel()

	h := newHarness(t, addProblem(), nil, ok("5"))
	req := submit()
	req.Language = "ruby"

	_, err := h.svc.Judge(context.Background(), req)
	if code := appErr.GetCode(err); code != appErr.LanguageNotSupported {
		t.Fatalf("code = %d, want %d", code, appErr.LanguageNotSupported)
	}
	if h.executor.calls != 0 {
		t.Fatal("sandbox must not run for an unknown language")
	}
	if len(h.submissions.created) != 0 {
		t.Fatal("no submission must be persisted")
	}
	if len(h.events.published) != 0 {
		t.Fatal("no event for a validation failure")
	}
}

func TestJudgeProblemNotFound(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, appErr.New(appErr.ProblemNotFound), ok("5"))
	_, err := h.svc.Judge(context.Background(), submit())
	if code := appErr.GetCode(err); code != appErr.ProblemNotFound {
		t.Fatalf("code = %d, want %d", code, appErr.ProblemNotFound)
	}
	if h.executor.calls != 0 {
		t.Fatal("sandbox must not run when the problem is missing")
	}
}

func TestJudgeInfrastructureFaultAbortsRun(t *testing.T) {
	t.Parallel()

	problem := &model.Problem{
		ID: "prob-1",
		SampleTestCases: []model.TestCase{
			{Input: "1", ExpectedOutput: "1"},
		},
		HiddenTestCases: []model.TestCase{
			{Input: "2", ExpectedOutput: "2"},
			{Input: "3", ExpectedOutput: "3"},
		},
	}
	h := newHarness(t, problem, nil,
		ok("1"),
		sandbox.Outcome{Kind: sandbox.OutcomeInfrastructureFailure, Detail: "launch failed"},
		ok("3"),
	)

	_, err := h.svc.Judge(context.Background(), submit())
	if code := appErr.GetCode(err); code != appErr.JudgeSystemError {
		t.Fatalf("code = %d, want %d", code, appErr.JudgeSystemError)
	}
	if h.executor.calls != 2 {
		t.Fatalf("executor ran %d times, want abort after case 2", h.executor.calls)
	}
	if len(h.submissions.created) != 0 {
		t.Fatal("no submission must be persisted on an aborted run")
	}
	if len(h.events.published) != 1 {
		t.Fatalf("published %d events, want exactly 1", len(h.events.published))
	}
	if h.events.published[0].Status != model.StatusError {
		t.Fatalf("event status %s, want Error", h.events.published[0].Status)
	}
}

func TestJudgeTimeoutScoredAndRunContinues(t *testing.T) {
	t.Parallel()

	problem := &model.Problem{
		ID: "prob-1",
		SampleTestCases: []model.TestCase{
			{Input: "1", ExpectedOutput: "1"},
		},
		HiddenTestCases: []model.TestCase{
			{Input: "2", ExpectedOutput: "2"},
			{Input: "3", ExpectedOutput: "3"},
		},
	}
	h := newHarness(t, problem, nil,
		ok("1"),
		sandbox.Outcome{Kind: sandbox.OutcomeTimeout, Detail: "wall-clock time limit exceeded"},
		ok("3"),
	)

	res, err := h.svc.Judge(context.Background(), submit())
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if res.Status != model.StatusFailed {
		t.Fatalf("status = %s, want Failed", res.Status)
	}
	if res.TotalCases != 3 || res.PassedCases != 2 {
		t.Fatalf("result %+v", res)
	}
	if res.Results[1].Passed {
		t.Fatal("timed-out case must be scored as failed")
	}
	if h.executor.calls != 3 {
		t.Fatalf("executor ran %d times, want all 3 cases", h.executor.calls)
	}
}

func TestJudgeRuntimeFailureScored(t *testing.T) {
	t.Parallel()

	h := newHarness(t, addProblem(), nil,
		sandbox.Outcome{Kind: sandbox.OutcomeRuntimeFailure, Detail: "Traceback: boom", ExitCode: 1},
	)
	res, err := h.svc.Judge(context.Background(), submit())
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if res.Status != model.StatusFailed || res.Results[0].Passed {
		t.Fatalf("result %+v", res)
	}
}

func TestJudgeSampleOrderingAndFlags(t *testing.T) {
	t.Parallel()

	problem := &model.Problem{
		ID: "prob-1",
		SampleTestCases: []model.TestCase{
			{Input: "s1", ExpectedOutput: "a"},
			{Input: "s2", ExpectedOutput: "b"},
		},
		HiddenTestCases: []model.TestCase{
			{Input: "h1", ExpectedOutput: "c"},
		},
	}
	h := newHarness(t, problem, nil, ok("a"), ok("b"), ok("c"))

	res, err := h.svc.Judge(context.Background(), submit())
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	wantInputs := []string{"s1", "s2", "h1"}
	for i, want := range wantInputs {
		if h.executor.inputs[i] != want {
			t.Fatalf("case order %v, want %v", h.executor.inputs, wantInputs)
		}
	}
	wantSample := []bool{true, true, false}
	for i, want := range wantSample {
		if res.Results[i].IsSample != want {
			t.Fatalf("isSample flags wrong: %+v", res.Results)
		}
	}
}

func TestJudgeTrimOnlyComparison(t *testing.T) {
	t.Parallel()

	problem := &model.Problem{
		ID: "prob-1",
		SampleTestCases: []model.TestCase{
			{Input: "x", ExpectedOutput: "1 2"},
		},
	}

	// trailing newline is trimmed away
	h := newHarness(t, problem, nil, ok("1 2\n"))
	res, err := h.svc.Judge(context.Background(), submit())
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if res.Status != model.StatusPassed {
		t.Fatalf("trailing newline should compare equal, got %s", res.Status)
	}

	// interior whitespace stays significant
	h2 := newHarness(t, problem, nil, ok("1  2"))
	res2, err := h2.svc.Judge(context.Background(), submit())
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if res2.Status != model.StatusFailed {
		t.Fatalf("interior whitespace difference must fail, got %s", res2.Status)
	}
}

func TestJudgePersistenceFailureAborts(t *testing.T) {
	t.Parallel()

	h := newHarness(t, addProblem(), nil, ok("5"))
	h.submissions.err = errors.New("db down")

	_, err := h.svc.Judge(context.Background(), submit())
	if err == nil {
		t.Fatal("expected error when persistence fails")
	}
	if len(h.events.published) != 1 {
		t.Fatalf("published %d events, want exactly 1 even on persistence failure", len(h.events.published))
	}
	if h.events.published[0].Status != model.StatusError {
		t.Fatalf("event status %s, want Error", h.events.published[0].Status)
	}
	if len(h.users.increments) != 0 {
		t.Fatal("counter must not move when persistence fails")
	}
}

func TestJudgeEmptyCodeRejected(t *testing.T) {
	t.Parallel()

	h := newHarness(t, addProblem(), nil, ok("5"))
	req := submit()
	req.Code = ""
	_, err := h.svc.Judge(context.Background(), req)
	if code := appErr.GetCode(err); code != appErr.ValidationFailed {
		t.Fatalf("code = %d, want %d", code, appErr.ValidationFailed)
	}
}

func TestJudgeResultCountMatchesCases(t *testing.T) {
	t.Parallel()

	problem := &model.Problem{
		ID: "prob-1",
		SampleTestCases: []model.TestCase{
			{Input: "1", ExpectedOutput: "1"},
		},
		HiddenTestCases: []model.TestCase{
			{Input: "2", ExpectedOutput: "2"},
		},
	}
	h := newHarness(t, problem, nil, ok("1"), ok("9"))

	res, err := h.svc.Judge(context.Background(), submit())
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if len(res.Results) != 2 {
		t.Fatalf("results length %d, want total case count 2", len(res.Results))
	}
	if res.Status != model.StatusFailed {
		t.Fatalf("status = %s", res.Status)
	}
	if len(h.submissions.created) != 1 || len(h.submissions.created[0].Results) != 2 {
		t.Fatal("persisted submission must carry the full result list")
	}
}
