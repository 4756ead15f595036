package builder

import (
	"context"
	"log"
	"os"

	"github.com/hochfrequenz/recipe-build-orchestrator/internal/domain"
)

// MulledTesterConfig configures the container test runner
type MulledTesterConfig struct {
	Command []string // e.g. ["mulled-build", "test"]
	Debug   bool
}

// MulledTester tests a built package inside a minimal container
type MulledTester struct {
	config MulledTesterConfig
}

// NewMulledTester creates the container test collaborator
func NewMulledTester(config MulledTesterConfig) *MulledTester {
	return &MulledTester{config: config}
}

// Test runs the container test against the artifact
func (m *MulledTester) Test(ctx context.Context, artifactPath string) (*domain.TestResult, error) {
	argv := append([]string{}, m.config.Command...)
	argv = append(argv, artifactPath)

	if m.config.Debug {
		log.Printf("[builder] mulled test: %v", argv)
	}

	exitCode, stdout, stderr, err := runCommand(ctx, argv, os.Environ())
	if err != nil {
		return nil, err
	}
	return &domain.TestResult{ExitCode: exitCode, Stdout: stdout, Stderr: stderr}, nil
}
