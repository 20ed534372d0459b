// Package repository provides data access for the judging pipeline.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"codearena/internal/common/db"
	"codearena/internal/judge/model"
	appErr "codearena/pkg/errors"
)

// ProblemRepository reads problem records. Test cases are stored as JSON
// columns, so one read yields the full judging snapshot.
type ProblemRepository struct {
	db db.Database
}

// NewProblemRepository creates a problem repository.
func NewProblemRepository(database db.Database) (*ProblemRepository, error) {
	if database == nil {
		return nil, appErr.New(appErr.DatabaseError).WithMessage("database is not initialized")
	}
	return &ProblemRepository{db: database}, nil
}

// GetByID returns the problem with its test-case snapshot.
func (r *ProblemRepository) GetByID(ctx context.Context, problemID string) (*model.Problem, error) {
	if problemID == "" {
		return nil, appErr.ValidationError("problem_id", "required")
	}

	const query = `
		SELECT id, title, time_limit_ms, memory_limit_mb, sample_test_cases, hidden_test_cases
		FROM problems
		WHERE id = ?`

	var (
		p          model.Problem
		sampleJSON []byte
		hiddenJSON []byte
	)
	row := r.db.QueryRowContext(ctx, query, problemID)
	err := row.Scan(&p.ID, &p.Title, &p.TimeLimitMS, &p.MemoryLimitMB, &sampleJSON, &hiddenJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErr.New(appErr.ProblemNotFound)
	}
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "query problem failed")
	}

	if len(sampleJSON) > 0 {
		if err := json.Unmarshal(sampleJSON, &p.SampleTestCases); err != nil {
			return nil, appErr.Wrapf(err, appErr.TestCaseInvalid, "decode sample test cases failed")
		}
	}
	if len(hiddenJSON) > 0 {
		if err := json.Unmarshal(hiddenJSON, &p.HiddenTestCases); err != nil {
			return nil, appErr.Wrapf(err, appErr.TestCaseInvalid, "decode hidden test cases failed")
		}
	}
	return &p, nil
}
