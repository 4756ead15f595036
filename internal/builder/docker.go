package builder

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/hochfrequenz/recipe-build-orchestrator/internal/domain"
)

// DockerConfig configures the isolated-container builder
type DockerConfig struct {
	Image    string // builder image, e.g. condaforge/linux-anvil
	Command  []string
	Channels []string
	BldDir   string // host directory the container drops artifacts into
	TestOnly bool
	Debug    bool
}

// DockerBuilder builds a target inside a container, mounting the recipe
// read-only and the artifact directory read-write so the finished
// package lands on the host.
type DockerBuilder struct {
	config DockerConfig
}

// NewDockerBuilder creates a container-backed builder
func NewDockerBuilder(config DockerConfig) *DockerBuilder {
	return &DockerBuilder{config: config}
}

// Build runs the build tool for one target inside the configured image.
// Unlike the local builder, success additionally requires the artifact
// to exist on the host afterwards: a container can exit zero without
// having copied the package out.
func (b *DockerBuilder) Build(ctx context.Context, t *domain.Target) (*domain.BuildResult, error) {
	recipeDir, err := filepath.Abs(t.RecipeDir)
	if err != nil {
		return nil, &InvocationError{Cmd: "docker", Err: err}
	}

	argv := []string{
		"docker", "run", "--rm",
		"-v", recipeDir + ":/recipe:ro",
		"-v", b.config.BldDir + ":/bld",
	}
	for k, v := range t.Env {
		argv = append(argv, "-e", k+"="+v)
	}
	argv = append(argv, b.config.Image)
	argv = append(argv, b.config.Command...)
	argv = append(argv, buildArgs(b.config.Channels, b.config.TestOnly)...)
	argv = append(argv, "/recipe")

	if b.config.Debug {
		log.Printf("[builder] docker build %s: %v", t.ID(), argv)
	}

	exitCode, stdout, stderr, err := runCommand(ctx, argv, os.Environ())
	if err != nil {
		return nil, err
	}

	result := &domain.BuildResult{
		Success:      exitCode == 0,
		ArtifactPath: t.ArtifactPath,
		Stdout:       stdout,
		Stderr:       stderr,
	}
	if result.Success {
		if _, statErr := os.Stat(t.ArtifactPath); statErr != nil {
			result.Success = false
			result.Stderr += fmt.Sprintf("\nartifact %s does not exist after container build", t.ArtifactPath)
		}
	}
	return result, nil
}
