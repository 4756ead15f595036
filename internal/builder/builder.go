// Package builder holds the collaborators the scheduler drives for one
// target: building, container testing and artifact upload. The scheduler
// only depends on the narrow interfaces here; local and container-backed
// implementations are selected by configuration.
package builder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/hochfrequenz/recipe-build-orchestrator/internal/domain"
)

// Builder builds one target and reports the result shape the scheduler
// tracks. Failures to produce a valid artifact are reported in the
// result; an error return means the collaborator could not run at all.
type Builder interface {
	Build(ctx context.Context, t *domain.Target) (*domain.BuildResult, error)
}

// Tester runs the container test against a built artifact
type Tester interface {
	Test(ctx context.Context, artifactPath string) (*domain.TestResult, error)
}

// Uploader pushes a built artifact to the package repository
type Uploader interface {
	Upload(ctx context.Context, artifactPath string) (*domain.UploadResult, error)
}

// InvocationError means the external tool could not even start (missing
// executable, bad permissions). It is tracked like a build failure but
// reported with distinct detail for diagnosis.
type InvocationError struct {
	Cmd string
	Err error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoking %s: %v", e.Cmd, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// runCommand runs argv with extra environment entries and captures the
// streams. A non-zero exit is not an error; only a failure to start the
// process yields an InvocationError.
func runCommand(ctx context.Context, argv []string, env []string) (exitCode int, stdout, stderr string, err error) {
	if len(argv) == 0 {
		return 0, "", "", &InvocationError{Cmd: "", Err: errors.New("empty command")}
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = env

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	stdout, stderr = outBuf.String(), errBuf.String()

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return exitErr.ExitCode(), stdout, stderr, nil
		}
		return -1, stdout, stderr, &InvocationError{Cmd: argv[0], Err: runErr}
	}
	return 0, stdout, stderr, nil
}
