// Package profile defines the supported-language table used by judging.
package profile

import (
	"time"
)

// ResourceLimits are the per-run defaults a language carries. A problem's
// own limits, when set, take precedence.
type ResourceLimits struct {
	WallTime time.Duration
	CPUTime  time.Duration
	MemoryMB int64
	OutputMB int64
	PIDs     int64
}

// Profile describes how to build and run one supported language inside the
// sandbox. Immutable after registry construction.
type Profile struct {
	// ID is the language identifier submissions carry, e.g. "python".
	ID string `yaml:"id"`
	// Name is the human-readable language name.
	Name string `yaml:"name"`
	// FileExtension names the extension of the materialized source file.
	FileExtension string `yaml:"fileExtension"`
	// RunCmdTpl is the shell command run inside the sandbox. It covers the
	// compile step too for compiled languages. {src} and {bin} placeholders
	// expand to the source file and output binary.
	RunCmdTpl string `yaml:"runCmdTpl"`
	// ImageRef identifies the rootfs image template for this language.
	ImageRef string `yaml:"imageRef"`

	DefaultLimits ResourceLimits `yaml:"-"`
}

// SourceFileName returns the canonical source file name inside the scratch
// directory.
func (p Profile) SourceFileName() string {
	return "main." + p.FileExtension
}
