package builder

import (
	"context"
	"log"
	"os"

	"github.com/hochfrequenz/recipe-build-orchestrator/internal/domain"
)

// LocalConfig configures the local toolchain builder
type LocalConfig struct {
	Command  []string // e.g. ["conda", "build"]
	Channels []string
	TestOnly bool
	Debug    bool
}

// LocalBuilder invokes the package build tool directly on the host.
// The target's environment is overlaid on the process environment, the
// way the original toolchain expects interpreter/platform selectors.
type LocalBuilder struct {
	config LocalConfig
}

// NewLocalBuilder creates a builder backed by a local tool invocation
func NewLocalBuilder(config LocalConfig) *LocalBuilder {
	return &LocalBuilder{config: config}
}

// Build runs the build tool for one target
func (b *LocalBuilder) Build(ctx context.Context, t *domain.Target) (*domain.BuildResult, error) {
	argv := append([]string{}, b.config.Command...)
	argv = append(argv, buildArgs(b.config.Channels, b.config.TestOnly)...)
	argv = append(argv, t.RecipeDir)

	if b.config.Debug {
		log.Printf("[builder] local build %s: %v", t.ID(), argv)
	}

	exitCode, stdout, stderr, err := runCommand(ctx, argv, overlayEnv(t.Env))
	if err != nil {
		return nil, err
	}

	return &domain.BuildResult{
		Success:      exitCode == 0,
		ArtifactPath: t.ArtifactPath,
		Stdout:       stdout,
		Stderr:       stderr,
	}, nil
}

// buildArgs returns the tool arguments shared by both builders
func buildArgs(channels []string, testOnly bool) []string {
	var args []string
	if testOnly {
		args = append(args, "--test")
	} else {
		args = append(args, "--no-anaconda-upload")
	}
	for _, c := range channels {
		args = append(args, "--channel", c)
	}
	return args
}

// overlayEnv merges the target environment over the process environment
func overlayEnv(env map[string]string) []string {
	merged := os.Environ()
	for k, v := range env {
		merged = append(merged, k+"="+v)
	}
	return merged
}
