// Package sandbox turns (language, source, stdin) into a captured-output
// outcome produced inside an ephemeral isolated environment.
package sandbox

// OutcomeKind classifies how one sandbox invocation ended.
type OutcomeKind string

const (
	// OutcomeOK means the program ran to completion with exit code 0.
	OutcomeOK OutcomeKind = "ok"
	// OutcomeTimeout means the wall-clock limit was exhausted.
	OutcomeTimeout OutcomeKind = "timeout"
	// OutcomeRuntimeFailure means the program exited non-zero or was
	// killed. The run itself was healthy; scoring is the caller's call.
	OutcomeRuntimeFailure OutcomeKind = "runtime_failure"
	// OutcomeInfrastructureFailure means the sandbox could not be
	// created, driven, or cleaned. Never attributable to user code.
	OutcomeInfrastructureFailure OutcomeKind = "infrastructure_failure"
)

// Outcome is the typed result of one sandbox invocation. Setup and teardown
// faults never escape as panics or bare errors; they surface here.
type Outcome struct {
	Kind   OutcomeKind
	Output string
	// Detail carries stderr for runtime failures and the underlying fault
	// description for infrastructure failures.
	Detail     string
	ExitCode   int
	TimeMs     int64
	WallTimeMs int64
	MemoryKB   int64
}

// OK reports whether the program completed normally.
func (o Outcome) OK() bool {
	return o.Kind == OutcomeOK
}

// Scoreable reports whether the outcome counts as a judging result rather
// than a system fault.
func (o Outcome) Scoreable() bool {
	return o.Kind != OutcomeInfrastructureFailure
}
