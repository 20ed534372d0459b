package model

// RunPhase tracks where a judging run is in its lifecycle.
type RunPhase string

const (
	PhaseStarted   RunPhase = "Started"
	PhaseRunning   RunPhase = "Running"
	PhaseCompleted RunPhase = "Completed"
	PhaseAborted   RunPhase = "Aborted"
)

// StatusDocument is the live view of a judging run kept in the status store
// while the run is in flight and for a short window after it finishes.
type StatusDocument struct {
	SubmissionID string           `json:"submission_id"`
	UserID       string           `json:"user_id"`
	ProblemID    string           `json:"problem_id"`
	Phase        RunPhase         `json:"phase"`
	Status       SubmissionStatus `json:"status,omitempty"`
	CurrentCase  int              `json:"current_case"`
	TotalCases   int              `json:"total_cases"`
	PassedCases  int              `json:"passed_cases"`
	Error        string           `json:"error,omitempty"`
	UpdatedAt    int64            `json:"updated_at"`
}

// StatusEvent is the single notification published per judging run, after
// the run's outcome is durable.
type StatusEvent struct {
	SubmissionID string           `json:"submissionId"`
	UserID       string           `json:"userId"`
	ProblemID    string           `json:"problemId"`
	Status       SubmissionStatus `json:"status"`
	TotalCases   int              `json:"totalCases,omitempty"`
	PassedCases  int              `json:"passedCases,omitempty"`
	Error        string           `json:"error,omitempty"`
}
