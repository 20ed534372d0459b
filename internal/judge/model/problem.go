// Package model defines the judging domain types shared across layers.
package model

// TestCase is one input/expected-output pair owned by a problem.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
}

// Problem holds the judging-relevant slice of a problem record. Test cases
// are read as a snapshot when a run starts; concurrent edits do not affect
// an in-flight run.
type Problem struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	TimeLimitMS     int64      `json:"timeLimitMs"`
	MemoryLimitMB   int64      `json:"memoryLimitMb"`
	SampleTestCases []TestCase `json:"sampleTestCases"`
	HiddenTestCases []TestCase `json:"hiddenTestCases"`
}

// AllTestCases returns sample cases followed by hidden cases, preserving
// each list's stored order.
func (p *Problem) AllTestCases() []TestCase {
	all := make([]TestCase, 0, len(p.SampleTestCases)+len(p.HiddenTestCases))
	all = append(all, p.SampleTestCases...)
	all = append(all, p.HiddenTestCases...)
	return all
}

// SampleCount returns the number of sample test cases.
func (p *Problem) SampleCount() int {
	return len(p.SampleTestCases)
}
