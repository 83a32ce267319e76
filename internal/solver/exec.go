package solver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/uv-irradiance-etl/internal/config"
	"github.com/couchcryptid/uv-irradiance-etl/internal/domain"
	"github.com/couchcryptid/uv-irradiance-etl/internal/observability"
)

// maxStderr bounds how much of the solver's stderr is kept on a failure.
const maxStderr = 4096

// Exec runs the solver as a child process fed through stdin.
type Exec struct {
	command  []string
	dataPath string
	tmpDir   string
	timeout  time.Duration
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewExec creates a solver from the SOLVER_* settings.
func NewExec(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Exec {
	tmpDir := cfg.SolverTmpDir
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	return &Exec{
		command:  cfg.SolverCommand,
		dataPath: cfg.SolverDataPath,
		tmpDir:   tmpDir,
		timeout:  cfg.SolverTimeout,
		metrics:  metrics,
		logger:   logger,
	}
}

// Solve writes the input file, runs the solver on it and parses its output.
// Every failure is a *domain.SolverError. The input file is removed on every
// path.
func (e *Exec) Solve(ctx context.Context, in Input) (Irradiance, error) {
	start := time.Now()
	out, err := e.solve(ctx, in)
	e.metrics.SolverDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		e.metrics.SolverFailures.Inc()
	}
	return out, err
}

func (e *Exec) solve(ctx context.Context, in Input) (Irradiance, error) {
	if len(e.command) == 0 {
		return Irradiance{}, &domain.SolverError{Reason: "no solver command configured"}
	}

	path, err := e.writeInput(in)
	if err != nil {
		return Irradiance{}, err
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			e.logger.Warn("failed to remove solver input file", "path", path, "error", err)
		}
	}()

	stdin, err := os.Open(path)
	if err != nil {
		return Irradiance{}, &domain.SolverError{Reason: "open input file", Err: err}
	}
	defer stdin.Close()

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, e.command[0], e.command[1:]...)
	cmd.Stdin = stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Grandchildren holding the pipes open must not block Wait after a kill.
	cmd.WaitDelay = time.Second

	e.logger.Debug("running solver", "input", filepath.Base(path))
	runErr := cmd.Run()

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		return Irradiance{}, &domain.SolverError{
			Reason: fmt.Sprintf("timed out after %s", e.timeout),
			Stderr: tail(stderr.Bytes()),
			Err:    context.DeadlineExceeded,
		}
	case ctx.Err() != nil:
		return Irradiance{}, &domain.SolverError{Reason: "canceled", Err: ctx.Err()}
	case runErr != nil:
		solverErr := &domain.SolverError{Reason: "run failed", Stderr: tail(stderr.Bytes()), Err: runErr}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			solverErr.Reason = "non-zero exit"
			solverErr.ExitCode = exitErr.ExitCode()
		}
		return Irradiance{}, solverErr
	}

	result, err := Parse(&stdout, len(in.Wavelengths))
	if err != nil {
		return Irradiance{}, &domain.SolverError{Reason: "unexpected output", Err: err}
	}
	return result, nil
}

func (e *Exec) writeInput(in Input) (string, error) {
	path := filepath.Join(e.tmpDir, "input_"+uuid.NewString()+".in")
	f, err := os.Create(path)
	if err != nil {
		return "", &domain.SolverError{Reason: "create input file", Err: err}
	}
	werr := Render(f, e.dataPath, in)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(path)
		return "", &domain.SolverError{Reason: "write input file", Err: err}
	}
	return path, nil
}

func tail(b []byte) string {
	if len(b) > maxStderr {
		b = b[len(b)-maxStderr:]
	}
	return string(bytes.TrimSpace(b))
}
