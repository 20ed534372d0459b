package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"codearena/internal/common/db"
	"codearena/internal/judge/model"
	appErr "codearena/pkg/errors"
)

// SubmissionRepository persists completed judging runs.
type SubmissionRepository struct {
	db db.Database
}

// NewSubmissionRepository creates a submission repository.
func NewSubmissionRepository(database db.Database) (*SubmissionRepository, error) {
	if database == nil {
		return nil, appErr.New(appErr.DatabaseError).WithMessage("database is not initialized")
	}
	return &SubmissionRepository{db: database}, nil
}

// Create inserts a submission record with its full results. Called exactly
// once per completed judging run.
func (r *SubmissionRepository) Create(ctx context.Context, sub *model.Submission) error {
	if sub == nil || sub.ID == "" {
		return appErr.ValidationError("submission", "required")
	}

	resultsJSON, err := json.Marshal(sub.Results)
	if err != nil {
		return appErr.Wrapf(err, appErr.SubmissionCreateFailed, "encode results failed")
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}

	const query = `
		INSERT INTO submissions (id, user_id, problem_id, language, code, status, results, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		sub.ID, sub.UserID, sub.ProblemID, sub.Language, sub.Code,
		string(sub.Status), resultsJSON, sub.CreatedAt,
	)
	if err != nil {
		return appErr.Wrapf(err, appErr.SubmissionCreateFailed, "insert submission failed")
	}
	return nil
}

// GetByID returns one submission with its results.
func (r *SubmissionRepository) GetByID(ctx context.Context, submissionID string) (*model.Submission, error) {
	if submissionID == "" {
		return nil, appErr.ValidationError("submission_id", "required")
	}

	const query = `
		SELECT id, user_id, problem_id, language, code, status, results, created_at
		FROM submissions
		WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, submissionID)
	sub, err := scanSubmission(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErr.New(appErr.SubmissionNotFound)
	}
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "query submission failed")
	}
	return sub, nil
}

// ListByUser returns a user's submissions, newest first.
func (r *SubmissionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Submission, error) {
	if userID == "" {
		return nil, appErr.ValidationError("user_id", "required")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	const query = `
		SELECT id, user_id, problem_id, language, code, status, results, created_at
		FROM submissions
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "list submissions failed")
	}
	defer rows.Close()

	var subs []*model.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows.Scan)
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.DatabaseError, "scan submission failed")
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "iterate submissions failed")
	}
	return subs, nil
}

func scanSubmission(scan func(...any) error) (*model.Submission, error) {
	var (
		sub         model.Submission
		status      string
		resultsJSON []byte
	)
	if err := scan(&sub.ID, &sub.UserID, &sub.ProblemID, &sub.Language, &sub.Code,
		&status, &resultsJSON, &sub.CreatedAt); err != nil {
		return nil, err
	}
	sub.Status = model.SubmissionStatus(status)
	if len(resultsJSON) > 0 {
		if err := json.Unmarshal(resultsJSON, &sub.Results); err != nil {
			return nil, err
		}
	}
	return &sub, nil
}
