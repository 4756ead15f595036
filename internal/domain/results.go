package domain

// BuildResult is the outcome of one build collaborator invocation
type BuildResult struct {
	Success      bool
	ArtifactPath string
	Stdout       string
	Stderr       string
}

// TestResult is the outcome of one container test invocation
type TestResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Succeeded reports whether the test passed
func (r *TestResult) Succeeded() bool {
	return r.ExitCode == 0
}

// UploadResult is the outcome of one artifact upload.
// AlreadyExists means the repository rejected a duplicate; callers must
// treat that as success.
type UploadResult struct {
	Success       bool
	AlreadyExists bool
}

// Succeeded reports whether the upload should count as successful
func (r *UploadResult) Succeeded() bool {
	return r.Success || r.AlreadyExists
}
