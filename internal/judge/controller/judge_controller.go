// Package controller exposes the judging pipeline over HTTP.
package controller

import (
	"context"

	"codearena/internal/common/http/middleware"
	"codearena/internal/judge/model"
	"codearena/internal/judge/notify"
	"codearena/internal/judge/repository"
	"codearena/internal/judge/service"
	appErr "codearena/pkg/errors"
	"codearena/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// Judger runs one submission end to end.
type Judger interface {
	Judge(ctx context.Context, req service.SubmitRequest) (*service.RunResult, error)
}

// SubmissionReader reads persisted submissions.
type SubmissionReader interface {
	GetByID(ctx context.Context, submissionID string) (*model.Submission, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.Submission, error)
}

// JudgeController handles judging requests.
type JudgeController struct {
	judger      Judger
	submissions SubmissionReader
	status      *repository.StatusRepository
	hub         *notify.Hub
}

// NewJudgeController creates a controller.
func NewJudgeController(judger Judger, submissions SubmissionReader, status *repository.StatusRepository, hub *notify.Hub) *JudgeController {
	return &JudgeController{judger: judger, submissions: submissions, status: status, hub: hub}
}

type submitBody struct {
	ProblemID string `json:"problemId" binding:"required"`
	Language  string `json:"language" binding:"required"`
	Code      string `json:"code" binding:"required"`
	UserID    string `json:"userId"`
}

// submitResponse is the synchronous judging answer. Success means the run
// completed; a wrong answer is still success=true with status Failed.
type submitResponse struct {
	Success      bool                   `json:"success"`
	SubmissionID string                 `json:"submissionId"`
	Status       model.SubmissionStatus `json:"status"`
	TotalCases   int                    `json:"totalCases"`
	PassedCases  int                    `json:"passedCases"`
	Results      []model.TestCaseResult `json:"results"`
}

// Submit judges a submission synchronously and returns the full result.
func (h *JudgeController) Submit(c *gin.Context) {
	var body submitBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErr.Wrapf(err, appErr.InvalidParams, "invalid request body"))
		return
	}

	userID := body.UserID
	if authUser, ok := middleware.UserIDFromContext(c.Request.Context()); ok {
		userID = authUser
	}

	result, err := h.judger.Judge(c.Request.Context(), service.SubmitRequest{
		UserID:    userID,
		ProblemID: body.ProblemID,
		Language:  body.Language,
		Code:      body.Code,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, submitResponse{
		Success:      true,
		SubmissionID: result.SubmissionID,
		Status:       result.Status,
		TotalCases:   result.TotalCases,
		PassedCases:  result.PassedCases,
		Results:      sampleOnly(result.Results),
	})
}

// sampleOnly hides hidden-case payloads from the API answer; counts still
// cover every case.
func sampleOnly(results []model.TestCaseResult) []model.TestCaseResult {
	visible := make([]model.TestCaseResult, 0, len(results))
	for _, r := range results {
		if r.IsSample {
			visible = append(visible, r)
			continue
		}
		visible = append(visible, model.TestCaseResult{
			Passed:   r.Passed,
			IsSample: false,
		})
	}
	return visible
}

// GetSubmission returns one persisted submission.
func (h *JudgeController) GetSubmission(c *gin.Context) {
	submissionID := c.Param("id")
	if submissionID == "" {
		response.Error(c, appErr.ValidationError("id", "required"))
		return
	}
	sub, err := h.submissions.GetByID(c.Request.Context(), submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"success": true, "submission": sub})
}

// ListSubmissions returns the calling user's submissions, newest first.
func (h *JudgeController) ListSubmissions(c *gin.Context) {
	userID := c.Query("userId")
	if authUser, ok := middleware.UserIDFromContext(c.Request.Context()); ok {
		userID = authUser
	}
	if userID == "" {
		response.Error(c, appErr.ValidationError("userId", "required"))
		return
	}
	subs, err := h.submissions.ListByUser(c.Request.Context(), userID, 20)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"success": true, "submissions": subs})
}

// GetStatus returns the live status document for an in-flight run.
func (h *JudgeController) GetStatus(c *gin.Context) {
	submissionID := c.Param("id")
	if submissionID == "" {
		response.Error(c, appErr.ValidationError("id", "required"))
		return
	}
	doc, err := h.status.Get(c.Request.Context(), submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"success": true, "status": doc})
}

// ServeWS attaches the connection to the notification hub.
func (h *JudgeController) ServeWS(c *gin.Context) {
	h.hub.ServeWS(c.Writer, c.Request)
}

// Healthz reports liveness.
func (h *JudgeController) Healthz(c *gin.Context) {
	response.OK(c, gin.H{"status": "ok"})
}
