package builder

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/hochfrequenz/recipe-build-orchestrator/internal/domain"
)

// AnacondaUploaderConfig configures artifact upload
type AnacondaUploaderConfig struct {
	Command  []string // e.g. ["anaconda", "upload"]
	TokenEnv string   // env var holding the auth token
	Debug    bool
}

// AnacondaUploader pushes artifacts to the package repository. The
// upload tool reports duplicates on stdout; that is success, not
// failure: a re-run must not fail on packages a previous run published.
type AnacondaUploader struct {
	config AnacondaUploaderConfig
}

// NewAnacondaUploader creates the upload collaborator
func NewAnacondaUploader(config AnacondaUploaderConfig) *AnacondaUploader {
	return &AnacondaUploader{config: config}
}

// Upload pushes one artifact
func (u *AnacondaUploader) Upload(ctx context.Context, artifactPath string) (*domain.UploadResult, error) {
	if len(u.config.Command) == 0 {
		return nil, &InvocationError{Cmd: "", Err: os.ErrInvalid}
	}

	argv := []string{u.config.Command[0]}
	if u.config.TokenEnv != "" {
		if token := os.Getenv(u.config.TokenEnv); token != "" {
			argv = append(argv, "-t", token)
		}
	}
	argv = append(argv, u.config.Command[1:]...)
	argv = append(argv, artifactPath)

	if u.config.Debug {
		log.Printf("[builder] upload %s", artifactPath)
	}

	exitCode, stdout, stderr, err := runCommand(ctx, argv, os.Environ())
	if err != nil {
		return nil, err
	}

	result := &domain.UploadResult{Success: exitCode == 0}
	if !result.Success && containsAlreadyExists(stdout, stderr) {
		result.AlreadyExists = true
	}
	return result, nil
}

func containsAlreadyExists(stdout, stderr string) bool {
	return strings.Contains(stdout, "already exists") || strings.Contains(stderr, "already exists")
}
