// Package service implements the judging orchestrator: it drives a
// submission through every test case, aggregates the verdict, persists the
// record, and publishes exactly one status event per run.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"codearena/internal/judge/model"
	"codearena/internal/judge/profile"
	"codearena/internal/judge/repository"
	"codearena/internal/judge/sandbox"
	"codearena/internal/judge/sandbox/spec"
	appErr "codearena/pkg/errors"
	"codearena/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SandboxExecutor runs one program against one input in isolation.
type SandboxExecutor interface {
	Execute(ctx context.Context, lang profile.Profile, sourceCode, stdinPayload string, limits spec.ResourceLimit) sandbox.Outcome
}

// ProblemStore loads problem snapshots.
type ProblemStore interface {
	GetByID(ctx context.Context, problemID string) (*model.Problem, error)
}

// SubmissionStore persists completed runs.
type SubmissionStore interface {
	Create(ctx context.Context, sub *model.Submission) error
}

// UserStore updates the solved counter.
type UserStore interface {
	IncrementSolvedCount(ctx context.Context, userID string) error
}

// StatusStore keeps the live status document.
type StatusStore interface {
	Save(ctx context.Context, doc model.StatusDocument) error
}

// SubmitRequest is one judging request.
type SubmitRequest struct {
	UserID    string `json:"userId"`
	ProblemID string `json:"problemId"`
	Language  string `json:"language"`
	Code      string `json:"code"`
}

// RunResult is the synchronous answer to a judging request.
type RunResult struct {
	SubmissionID string                 `json:"submissionId"`
	Status       model.SubmissionStatus `json:"status"`
	TotalCases   int                    `json:"totalCases"`
	PassedCases  int                    `json:"passedCases"`
	Results      []model.TestCaseResult `json:"results"`
}

// Config holds service dependencies and settings.
type Config struct {
	Registry    *profile.Registry
	Executor    SandboxExecutor
	Problems    ProblemStore
	Submissions SubmissionStore
	Users       UserStore
	Status      StatusStore
	Events      repository.EventPublisher

	MaxCodeBytes  int
	PoolSize      int
	DBTimeout     time.Duration
	StatusTimeout time.Duration
}

// Service is the judging orchestrator.
type Service struct {
	registry    *profile.Registry
	executor    SandboxExecutor
	problems    ProblemStore
	submissions SubmissionStore
	users       UserStore
	status      StatusStore
	events      repository.EventPublisher

	maxCodeBytes  int
	dbTimeout     time.Duration
	statusTimeout time.Duration
	sem           chan struct{}
}

const defaultMaxCodeBytes = 256 * 1024

// NewService creates a judging service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("language registry is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("sandbox executor is required")
	}
	if cfg.Problems == nil {
		return nil, fmt.Errorf("problem store is required")
	}
	if cfg.Submissions == nil {
		return nil, fmt.Errorf("submission store is required")
	}
	if cfg.Users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if cfg.Events == nil {
		return nil, fmt.Errorf("event publisher is required")
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}
	maxCode := cfg.MaxCodeBytes
	if maxCode <= 0 {
		maxCode = defaultMaxCodeBytes
	}
	return &Service{
		registry:      cfg.Registry,
		executor:      cfg.Executor,
		problems:      cfg.Problems,
		submissions:   cfg.Submissions,
		users:         cfg.Users,
		status:        cfg.Status,
		events:        cfg.Events,
		maxCodeBytes:  maxCode,
		dbTimeout:     cfg.DBTimeout,
		statusTimeout: cfg.StatusTimeout,
		sem:           make(chan struct{}, poolSize),
	}, nil
}

// runOutcome is the result of folding over the test-case list: either every
// case was scored, or the run aborted on the first system fault.
type runOutcome struct {
	results  []model.TestCaseResult
	aborted  bool
	abortErr error
}

// Judge runs one submission end to end. Validation failures surface before
// any sandbox resource is allocated; exactly one status event is published
// regardless of the path taken.
func (s *Service) Judge(ctx context.Context, req SubmitRequest) (*RunResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	lang, err := s.registry.Resolve(req.Language)
	if err != nil {
		return nil, err
	}

	problem, err := s.loadProblem(ctx, req.ProblemID)
	if err != nil {
		return nil, err
	}

	if err := s.acquireSlot(ctx); err != nil {
		return nil, err
	}
	defer s.releaseSlot()

	submissionID := uuid.NewString()
	cases := problem.AllTestCases()
	sampleCount := problem.SampleCount()

	s.saveStatus(ctx, model.StatusDocument{
		SubmissionID: submissionID,
		UserID:       req.UserID,
		ProblemID:    req.ProblemID,
		Phase:        model.PhaseStarted,
		TotalCases:   len(cases),
	})

	limits := resolveLimits(lang, problem)
	outcome := s.runCases(ctx, submissionID, req, lang, cases, sampleCount, limits)

	if outcome.aborted {
		return nil, s.abortRun(ctx, submissionID, req, outcome.abortErr)
	}
	return s.completeRun(ctx, submissionID, req, outcome.results, lang.ID)
}

func (s *Service) validate(req SubmitRequest) error {
	if strings.TrimSpace(req.UserID) == "" {
		return appErr.ValidationError("userId", "required")
	}
	if strings.TrimSpace(req.ProblemID) == "" {
		return appErr.ValidationError("problemId", "required")
	}
	if req.Code == "" {
		return appErr.ValidationError("code", "required")
	}
	if len(req.Code) > s.maxCodeBytes {
		return appErr.New(appErr.CodeTooLarge).
			WithMessagef("source exceeds %d bytes", s.maxCodeBytes)
	}
	return nil
}

// runCases executes the ordered case list sequentially. Scored outcomes
// (wrong output, non-zero exit, timeout) record a failed case and continue;
// the first infrastructure fault aborts the whole run.
func (s *Service) runCases(ctx context.Context, submissionID string, req SubmitRequest, lang profile.Profile, cases []model.TestCase, sampleCount int, limits spec.ResourceLimit) runOutcome {
	results := make([]model.TestCaseResult, 0, len(cases))
	for i, tc := range cases {
		s.saveStatus(ctx, model.StatusDocument{
			SubmissionID: submissionID,
			UserID:       req.UserID,
			ProblemID:    req.ProblemID,
			Phase:        model.PhaseRunning,
			CurrentCase:  i + 1,
			TotalCases:   len(cases),
			PassedCases:  countPassed(results),
		})

		out := s.executor.Execute(ctx, lang, req.Code, tc.Input, limits)
		if !out.Scoreable() {
			return runOutcome{
				results:  results,
				aborted:  true,
				abortErr: appErr.Newf(appErr.JudgeSystemError, "case %d: %s", i+1, out.Detail),
			}
		}

		res := model.TestCaseResult{
			Input:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
			IsSample:       i < sampleCount,
		}
		if out.OK() {
			res.ActualOutput = out.Output
			res.Passed = outputsMatch(out.Output, tc.ExpectedOutput)
		} else {
			// timeout or runtime failure: scored as a failed case
			res.ActualOutput = out.Detail
			res.Passed = false
		}
		results = append(results, res)
	}
	return runOutcome{results: results}
}

func (s *Service) completeRun(ctx context.Context, submissionID string, req SubmitRequest, results []model.TestCaseResult, languageID string) (*RunResult, error) {
	status := model.StatusFailed
	if countPassed(results) == len(results) {
		status = model.StatusPassed
	}

	sub := &model.Submission{
		ID:        submissionID,
		UserID:    req.UserID,
		ProblemID: req.ProblemID,
		Language:  languageID,
		Code:      req.Code,
		Status:    status,
		Results:   results,
		CreatedAt: time.Now(),
	}
	if err := s.persistSubmission(ctx, sub); err != nil {
		return nil, s.abortRun(ctx, submissionID, req,
			appErr.Wrapf(err, appErr.SubmissionCreateFailed, "persist submission failed"))
	}

	if status == model.StatusPassed {
		if err := s.incrementSolved(ctx, req.UserID); err != nil {
			logger.Warn(ctx, "increment solved count failed",
				zap.String("user_id", req.UserID), zap.Error(err))
		}
	}

	passed := countPassed(results)
	s.saveStatus(ctx, model.StatusDocument{
		SubmissionID: submissionID,
		UserID:       req.UserID,
		ProblemID:    req.ProblemID,
		Phase:        model.PhaseCompleted,
		Status:       status,
		CurrentCase:  len(results),
		TotalCases:   len(results),
		PassedCases:  passed,
	})

	// publication happens strictly after the record is durable
	s.publishEvent(ctx, model.StatusEvent{
		SubmissionID: submissionID,
		UserID:       req.UserID,
		ProblemID:    req.ProblemID,
		Status:       status,
		TotalCases:   len(results),
		PassedCases:  passed,
	})

	return &RunResult{
		SubmissionID: submissionID,
		Status:       status,
		TotalCases:   len(results),
		PassedCases:  passed,
		Results:      results,
	}, nil
}

// abortRun reports a judging-system fault: no completed Submission is
// persisted, but the status event still fires so subscribers are not left
// waiting.
func (s *Service) abortRun(ctx context.Context, submissionID string, req SubmitRequest, cause error) error {
	logger.Error(ctx, "judging run aborted",
		zap.String("submission_id", submissionID),
		zap.String("problem_id", req.ProblemID),
		zap.Error(cause),
	)

	s.saveStatus(ctx, model.StatusDocument{
		SubmissionID: submissionID,
		UserID:       req.UserID,
		ProblemID:    req.ProblemID,
		Phase:        model.PhaseAborted,
		Status:       model.StatusError,
		Error:        cause.Error(),
	})

	s.publishEvent(ctx, model.StatusEvent{
		SubmissionID: submissionID,
		UserID:       req.UserID,
		ProblemID:    req.ProblemID,
		Status:       model.StatusError,
		Error:        cause.Error(),
	})

	if appErr.GetCode(cause) == appErr.InternalServerError {
		return appErr.Wrap(cause, appErr.JudgeSystemError)
	}
	return cause
}

func (s *Service) loadProblem(ctx context.Context, problemID string) (*model.Problem, error) {
	ctxDB := ctx
	if s.dbTimeout > 0 {
		var cancel context.CancelFunc
		ctxDB, cancel = context.WithTimeout(ctx, s.dbTimeout)
		defer cancel()
	}
	return s.problems.GetByID(ctxDB, problemID)
}

func (s *Service) persistSubmission(ctx context.Context, sub *model.Submission) error {
	ctxDB := ctx
	if s.dbTimeout > 0 {
		var cancel context.CancelFunc
		ctxDB, cancel = context.WithTimeout(ctx, s.dbTimeout)
		defer cancel()
	}
	return s.submissions.Create(ctxDB, sub)
}

func (s *Service) incrementSolved(ctx context.Context, userID string) error {
	ctxDB := ctx
	if s.dbTimeout > 0 {
		var cancel context.CancelFunc
		ctxDB, cancel = context.WithTimeout(ctx, s.dbTimeout)
		defer cancel()
	}
	return s.users.IncrementSolvedCount(ctxDB, userID)
}

// saveStatus is best effort: the status document is a live view, losing an
// update must not fail the run.
func (s *Service) saveStatus(ctx context.Context, doc model.StatusDocument) {
	if s.status == nil {
		return
	}
	ctxStatus := ctx
	if s.statusTimeout > 0 {
		var cancel context.CancelFunc
		ctxStatus, cancel = context.WithTimeout(ctx, s.statusTimeout)
		defer cancel()
	}
	if err := s.status.Save(ctxStatus, doc); err != nil {
		logger.Warn(ctx, "save status failed",
			zap.String("submission_id", doc.SubmissionID), zap.Error(err))
	}
}

func (s *Service) publishEvent(ctx context.Context, event model.StatusEvent) {
	if err := s.events.PublishStatus(ctx, event); err != nil {
		logger.Error(ctx, "publish status event failed",
			zap.String("submission_id", event.SubmissionID), zap.Error(err))
	}
}

func (s *Service) acquireSlot(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(2 * time.Second):
		return appErr.New(appErr.JudgeQueueFull).WithMessage("judge pool is full")
	}
}

func (s *Service) releaseSlot() {
	select {
	case <-s.sem:
	default:
	}
}

// outputsMatch compares with leading/trailing trim only; interior
// whitespace stays significant.
func outputsMatch(actual, expected string) bool {
	return strings.TrimSpace(actual) == strings.TrimSpace(expected)
}

func countPassed(results []model.TestCaseResult) int {
	n := 0
	for _, r := range results {
		if r.Passed {
			n++
		}
	}
	return n
}

func resolveLimits(lang profile.Profile, problem *model.Problem) spec.ResourceLimit {
	limits := spec.ResourceLimit{
		WallTimeMs: lang.DefaultLimits.WallTime.Milliseconds(),
		CPUTimeMs:  lang.DefaultLimits.CPUTime.Milliseconds(),
		MemoryMB:   lang.DefaultLimits.MemoryMB,
		OutputMB:   lang.DefaultLimits.OutputMB,
		PIDs:       lang.DefaultLimits.PIDs,
	}
	if problem.TimeLimitMS > 0 {
		limits.WallTimeMs = problem.TimeLimitMS
	}
	if problem.MemoryLimitMB > 0 {
		limits.MemoryMB = problem.MemoryLimitMB
	}
	return limits
}
