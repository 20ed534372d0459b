// Package spec defines the execution specification for one sandbox run.
package spec

// ResourceLimit describes hard limits enforced on a run.
type ResourceLimit struct {
	CPUTimeMs  int64 `json:"CPUTimeMs"`
	WallTimeMs int64 `json:"WallTimeMs"`
	MemoryMB   int64 `json:"MemoryMB"`
	StackMB    int64 `json:"StackMB"`
	OutputMB   int64 `json:"OutputMB"`
	PIDs       int64 `json:"PIDs"`
}

// MountSpec describes a bind mount inside the sandbox.
type MountSpec struct {
	Source   string `json:"Source"`
	Target   string `json:"Target"`
	ReadOnly bool   `json:"ReadOnly"`
}

// IsolationProfile describes rootfs, seccomp and network settings.
type IsolationProfile struct {
	RootFS         string `json:"RootFS"`
	SeccompProfile string `json:"SeccompProfile"`
	DisableNetwork bool   `json:"DisableNetwork"`
}

// RunSpec is the full description of one isolated execution. Paths are as
// seen inside the sandbox; the engine maps them to host paths through the
// bind mounts.
type RunSpec struct {
	// JobID names the run's cgroup. Unique per invocation, never reused.
	JobID      string           `json:"JobID"`
	WorkDir    string           `json:"WorkDir"`
	Cmd        []string         `json:"Cmd"`
	Env        []string         `json:"Env"`
	StdinPath  string           `json:"StdinPath"`
	StdoutPath string           `json:"StdoutPath"`
	StderrPath string           `json:"StderrPath"`
	BindMounts []MountSpec      `json:"BindMounts"`
	Isolation  IsolationProfile `json:"Isolation"`
	Limits     ResourceLimit    `json:"Limits"`
}
