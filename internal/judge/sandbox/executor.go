package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"codearena/internal/judge/profile"
	"codearena/internal/judge/sandbox/engine"
	"codearena/internal/judge/sandbox/spec"
	"codearena/pkg/utils/logger"

	"github.com/google/shlex"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	boxDir         = "/box"
	inputFileName  = "input.txt"
	outputFileName = "output.txt"
	stderrFileName = "stderr.txt"
	binaryName     = "main"
)

// ImageProvider materializes a language's rootfs image on local disk and
// returns its host path.
type ImageProvider interface {
	Rootfs(ctx context.Context, imageRef string) (string, error)
}

// Config wires an Executor.
type Config struct {
	// WorkRoot is the host directory under which per-job scratch
	// directories are created.
	WorkRoot string
	Engine   engine.Engine
	Images   ImageProvider
}

// Executor runs one program against one input inside an isolated
// environment. Stateless between calls; each invocation owns a fresh
// scratch directory and instance, both removed on every exit path.
type Executor struct {
	workRoot string
	engine   engine.Engine
	images   ImageProvider
}

// NewExecutor creates an Executor.
func NewExecutor(cfg Config) (*Executor, error) {
	if cfg.WorkRoot == "" {
		return nil, fmt.Errorf("work root is required")
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if cfg.Images == nil {
		return nil, fmt.Errorf("image provider is required")
	}
	return &Executor{
		workRoot: cfg.WorkRoot,
		engine:   cfg.Engine,
		images:   cfg.Images,
	}, nil
}

// Execute runs sourceCode against stdinPayload under the language profile.
// The returned Outcome is always typed; infrastructure faults never escape
// as errors. Output is returned verbatim, trailing whitespace included.
func (e *Executor) Execute(ctx context.Context, lang profile.Profile, sourceCode, stdinPayload string, limits spec.ResourceLimit) Outcome {
	jobID := uuid.NewString()
	workDir := filepath.Join(e.workRoot, jobID)

	if err := os.MkdirAll(workDir, 0750); err != nil {
		return infraFailure(fmt.Errorf("create scratch dir: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logger.Warn(ctx, "remove scratch dir failed",
				zap.String("job_id", jobID), zap.Error(err))
		}
	}()

	sourceFile := lang.SourceFileName()
	if err := os.WriteFile(filepath.Join(workDir, sourceFile), []byte(sourceCode), 0640); err != nil {
		return infraFailure(fmt.Errorf("write source file: %w", err))
	}
	if err := os.WriteFile(filepath.Join(workDir, inputFileName), []byte(stdinPayload), 0640); err != nil {
		return infraFailure(fmt.Errorf("write stdin payload: %w", err))
	}

	rootfs, err := e.images.Rootfs(ctx, lang.ImageRef)
	if err != nil {
		return infraFailure(fmt.Errorf("resolve image %s: %w", lang.ImageRef, err))
	}

	cmd, err := buildCommand(lang.RunCmdTpl, sourceFile)
	if err != nil {
		return infraFailure(fmt.Errorf("build command: %w", err))
	}

	runSpec := spec.RunSpec{
		JobID:      jobID,
		WorkDir:    boxDir,
		Cmd:        cmd,
		StdinPath:  filepath.Join(boxDir, inputFileName),
		StdoutPath: filepath.Join(boxDir, outputFileName),
		StderrPath: filepath.Join(boxDir, stderrFileName),
		BindMounts: []spec.MountSpec{
			{Source: workDir, Target: boxDir, ReadOnly: false},
		},
		Isolation: spec.IsolationProfile{
			RootFS:         rootfs,
			DisableNetwork: true,
		},
		Limits: limits,
	}

	res, err := e.engine.Run(ctx, runSpec)
	if err != nil {
		return infraFailure(fmt.Errorf("sandbox run: %w", err))
	}

	if res.TimedOut {
		return Outcome{
			Kind:       OutcomeTimeout,
			Detail:     "wall-clock time limit exceeded",
			ExitCode:   res.ExitCode,
			TimeMs:     res.TimeMs,
			WallTimeMs: res.WallTimeMs,
			MemoryKB:   res.MemoryKB,
		}
	}
	if res.ExitCode != 0 {
		detail := strings.TrimSpace(res.Stderr)
		if detail == "" {
			detail = fmt.Sprintf("process exited with code %d", res.ExitCode)
		}
		if res.OomKilled {
			detail = "killed: memory limit exceeded"
		}
		return Outcome{
			Kind:       OutcomeRuntimeFailure,
			Detail:     detail,
			ExitCode:   res.ExitCode,
			TimeMs:     res.TimeMs,
			WallTimeMs: res.WallTimeMs,
			MemoryKB:   res.MemoryKB,
		}
	}

	output, err := os.ReadFile(filepath.Join(workDir, outputFileName))
	if err != nil {
		return infraFailure(fmt.Errorf("read captured output: %w", err))
	}
	return Outcome{
		Kind:       OutcomeOK,
		Output:     string(output),
		TimeMs:     res.TimeMs,
		WallTimeMs: res.WallTimeMs,
		MemoryKB:   res.MemoryKB,
	}
}

// buildCommand expands the {src} and {bin} placeholders and tokenizes the
// template shell-style, so quoted segments survive as single arguments.
func buildCommand(tpl, sourceFile string) ([]string, error) {
	expanded := strings.ReplaceAll(tpl, "{src}", sourceFile)
	expanded = strings.ReplaceAll(expanded, "{bin}", binaryName)
	cmd, err := shlex.Split(expanded)
	if err != nil {
		return nil, err
	}
	if len(cmd) == 0 {
		return nil, fmt.Errorf("empty command template")
	}
	return cmd, nil
}

func infraFailure(err error) Outcome {
	return Outcome{
		Kind:   OutcomeInfrastructureFailure,
		Detail: err.Error(),
	}
}
