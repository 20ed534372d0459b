package model

import "time"

// SubmissionStatus is the verdict of one judging run.
type SubmissionStatus string

const (
	// StatusPassed means every test case produced the expected output.
	StatusPassed SubmissionStatus = "Passed"
	// StatusFailed means at least one test case did not pass.
	StatusFailed SubmissionStatus = "Failed"
	// StatusError means the run was aborted by a judging-system fault.
	StatusError SubmissionStatus = "Error"
)

// TestCaseResult is the scored outcome of one test case. Immutable once
// produced.
type TestCaseResult struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
	ActualOutput   string `json:"userOutput"`
	Passed         bool   `json:"passed"`
	IsSample       bool   `json:"isSample"`
}

// Submission is the persisted record of one judging run. Created once after
// all test cases executed; never mutated afterward.
type Submission struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	ProblemID string           `json:"problemId"`
	Language  string           `json:"language"`
	Code      string           `json:"code"`
	Status    SubmissionStatus `json:"status"`
	Results   []TestCaseResult `json:"results"`
	CreatedAt time.Time        `json:"createdAt"`
}

// PassedCount returns how many results passed.
func (s *Submission) PassedCount() int {
	n := 0
	for _, r := range s.Results {
		if r.Passed {
			n++
		}
	}
	return n
}
