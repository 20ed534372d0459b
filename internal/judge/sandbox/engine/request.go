package engine

import "codearena/internal/judge/sandbox/spec"

// initRequest is the JSON document piped to the sandbox-init helper on its
// stdin. Field layout must stay in sync with the helper's decoder.
type initRequest struct {
	RunSpec       spec.RunSpec `json:"RunSpec"`
	EnableSeccomp bool         `json:"EnableSeccomp"`
	EnableNs      bool         `json:"EnableNs"`
}
