package sandbox_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codearena/internal/judge/profile"
	"codearena/internal/judge/sandbox"
	"codearena/internal/judge/sandbox/engine"
	"codearena/internal/judge/sandbox/spec"
)

type fakeEngine struct {
	result  engine.RunResult
	err     error
	writeTo string // content written to the stdout file before returning
	calls   int
	lastRun spec.RunSpec
}

func (f *fakeEngine) Run(ctx context.Context, runSpec spec.RunSpec) (engine.RunResult, error) {
	f.calls++
	f.lastRun = runSpec
	if f.err != nil {
		return engine.RunResult{}, f.err
	}
	if f.writeTo != "" {
		hostDir := runSpec.BindMounts[0].Source
		if err := os.WriteFile(filepath.Join(hostDir, "output.txt"), []byte(f.writeTo), 0640); err != nil {
			return engine.RunResult{}, err
		}
	}
	return f.result, nil
}

type fakeImages struct {
	rootfs string
	err    error
}

func (f *fakeImages) Rootfs(ctx context.Context, imageRef string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.rootfs, nil
}

func pythonProfile() profile.Profile {
	return profile.Profile{
		ID:            "python",
		FileExtension: "py",
		RunCmdTpl:     "python3 {src}",
		ImageRef:      "sandbox/python:3.11",
	}
}

func newExecutor(t *testing.T, eng engine.Engine, images sandbox.ImageProvider) (*sandbox.Executor, string) {
	t.Helper()
	workRoot := t.TempDir()
	exec, err := sandbox.NewExecutor(sandbox.Config{
		WorkRoot: workRoot,
		Engine:   eng,
		Images:   images,
	})
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	return exec, workRoot
}

func TestExecuteSuccessReturnsVerbatimOutput(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{writeTo: "5\n"}
	exec, workRoot := newExecutor(t, eng, &fakeImages{rootfs: t.TempDir()})

	outcome := exec.Execute(context.Background(), pythonProfile(), "print(5)", "2 3", spec.ResourceLimit{WallTimeMs: 1000})
	if outcome.Kind != sandbox.OutcomeOK {
		t.Fatalf("outcome kind = %s, detail = %s", outcome.Kind, outcome.Detail)
	}
	if outcome.Output != "5\n" {
		t.Fatalf("output = %q, want %q (verbatim, trailing newline kept)", outcome.Output, "5\n")
	}
	assertWorkRootEmpty(t, workRoot)
}

func TestExecuteWritesSourceAndInput(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{writeTo: "ok"}
	exec, _ := newExecutor(t, eng, &fakeImages{rootfs: t.TempDir()})

	outcome := exec.Execute(context.Background(), pythonProfile(), "print(5)", "2 3", spec.ResourceLimit{})
	if outcome.Kind != sandbox.OutcomeOK {
		t.Fatalf("outcome kind = %s", outcome.Kind)
	}

	run := eng.lastRun
	if run.JobID == "" {
		t.Fatal("run spec has no job id")
	}
	if len(run.Cmd) != 2 || run.Cmd[0] != "python3" || run.Cmd[1] != "main.py" {
		t.Fatalf("cmd = %v, want [python3 main.py]", run.Cmd)
	}
	if run.StdinPath != "/box/input.txt" || run.StdoutPath != "/box/output.txt" {
		t.Fatalf("io paths = %s %s", run.StdinPath, run.StdoutPath)
	}
	if !run.Isolation.DisableNetwork {
		t.Fatal("network must be disabled")
	}
}

func TestExecuteCompiledCommandTemplate(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{writeTo: "ok"}
	exec, _ := newExecutor(t, eng, &fakeImages{rootfs: t.TempDir()})

	cpp := profile.Profile{
		ID:            "cpp",
		FileExtension: "cpp",
		RunCmdTpl:     `sh -c "g++ {src} -o {bin} && ./{bin}"`,
		ImageRef:      "sandbox/gcc:13",
	}
	outcome := exec.Execute(context.Background(), cpp, "int main(){}", "", spec.ResourceLimit{})
	if outcome.Kind != sandbox.OutcomeOK {
		t.Fatalf("outcome kind = %s, detail = %s", outcome.Kind, outcome.Detail)
	}

	cmd := eng.lastRun.Cmd
	if len(cmd) != 3 || cmd[0] != "sh" || cmd[1] != "-c" {
		t.Fatalf("cmd = %v, want sh -c <script>", cmd)
	}
	if !strings.Contains(cmd[2], "g++ main.cpp -o main") || !strings.Contains(cmd[2], "./main") {
		t.Fatalf("script = %q missing expanded compile-and-run", cmd[2])
	}
}

func TestExecuteTimeout(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{result: engine.RunResult{TimedOut: true, ExitCode: -1}}
	exec, workRoot := newExecutor(t, eng, &fakeImages{rootfs: t.TempDir()})

	outcome := exec.Execute(context.Background(), pythonProfile(), "while True: pass", "", spec.ResourceLimit{WallTimeMs: 100})
	if outcome.Kind != sandbox.OutcomeTimeout {
		t.Fatalf("outcome kind = %s, want timeout", outcome.Kind)
	}
	if outcome.Output != "" {
		t.Fatalf("timeout outcome carries output %q", outcome.Output)
	}
	assertWorkRootEmpty(t, workRoot)
}

func TestExecuteRuntimeFailure(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{result: engine.RunResult{ExitCode: 1, Stderr: "Traceback: boom"}}
	exec, workRoot := newExecutor(t, eng, &fakeImages{rootfs: t.TempDir()})

	outcome := exec.Execute(context.Background(), pythonProfile(), "raise SystemExit(1)", "", spec.ResourceLimit{})
	if outcome.Kind != sandbox.OutcomeRuntimeFailure {
		t.Fatalf("outcome kind = %s, want runtime_failure", outcome.Kind)
	}
	if !outcome.Scoreable() {
		t.Fatal("runtime failure must remain scoreable")
	}
	if outcome.Detail != "Traceback: boom" {
		t.Fatalf("detail = %q", outcome.Detail)
	}
	assertWorkRootEmpty(t, workRoot)
}

func TestExecuteEngineFaultIsInfrastructureFailure(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{err: errors.New("helper crashed")}
	exec, workRoot := newExecutor(t, eng, &fakeImages{rootfs: t.TempDir()})

	outcome := exec.Execute(context.Background(), pythonProfile(), "print(5)", "", spec.ResourceLimit{})
	if outcome.Kind != sandbox.OutcomeInfrastructureFailure {
		t.Fatalf("outcome kind = %s, want infrastructure_failure", outcome.Kind)
	}
	if outcome.Scoreable() {
		t.Fatal("infrastructure failure must not be scoreable")
	}
	assertWorkRootEmpty(t, workRoot)
}

func TestExecuteMissingImageIsInfrastructureFailure(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{}
	exec, workRoot := newExecutor(t, eng, &fakeImages{err: errors.New("image not found")})

	outcome := exec.Execute(context.Background(), pythonProfile(), "print(5)", "", spec.ResourceLimit{})
	if outcome.Kind != sandbox.OutcomeInfrastructureFailure {
		t.Fatalf("outcome kind = %s, want infrastructure_failure", outcome.Kind)
	}
	if eng.calls != 0 {
		t.Fatal("engine must not run when the image cannot be resolved")
	}
	assertWorkRootEmpty(t, workRoot)
}

func TestExecuteScratchDirsAreUnique(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{writeTo: "x"}
	exec, _ := newExecutor(t, eng, &fakeImages{rootfs: t.TempDir()})

	first := ""
	for i := 0; i < 2; i++ {
		outcome := exec.Execute(context.Background(), pythonProfile(), "print(5)", "", spec.ResourceLimit{})
		if outcome.Kind != sandbox.OutcomeOK {
			t.Fatalf("outcome kind = %s", outcome.Kind)
		}
		dir := eng.lastRun.BindMounts[0].Source
		if dir == first {
			t.Fatalf("scratch dir %q reused", dir)
		}
		first = dir
	}
}

func assertWorkRootEmpty(t *testing.T, workRoot string) {
	t.Helper()
	entries, err := os.ReadDir(workRoot)
	if err != nil {
		t.Fatalf("read work root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("scratch dirs left behind: %v", entries)
	}
}
