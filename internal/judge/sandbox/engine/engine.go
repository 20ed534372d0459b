// Package engine launches one isolated process per RunSpec and reports the
// raw execution result.
package engine

import (
	"context"

	"codearena/internal/judge/sandbox/spec"
)

// RunResult captures raw sandbox execution data for one run.
type RunResult struct {
	ExitCode   int
	TimeMs     int64
	WallTimeMs int64
	MemoryKB   int64
	Stdout     string
	Stderr     string
	TimedOut   bool
	OomKilled  bool
}

// Engine executes a RunSpec inside an isolated sandbox. An error return
// means the sandbox itself could not be created or driven; user-code
// failures are reported through RunResult.
type Engine interface {
	Run(ctx context.Context, runSpec spec.RunSpec) (RunResult, error)
}

// Config controls sandbox engine behavior.
type Config struct {
	CgroupRoot           string `yaml:"cgroupRoot"`
	SeccompDir           string `yaml:"seccompDir"`
	HelperPath           string `yaml:"helperPath"`
	StdoutStderrMaxBytes int64  `yaml:"stdoutStderrMaxBytes"`
	EnableSeccomp        bool   `yaml:"enableSeccomp"`
	EnableCgroup         bool   `yaml:"enableCgroup"`
	EnableNamespaces     bool   `yaml:"enableNamespaces"`
}
