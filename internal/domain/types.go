package domain

// TargetStatus represents the lifecycle state of a build target
type TargetStatus string

const (
	StatusPending  TargetStatus = "pending"
	StatusBuilding TargetStatus = "building"
	StatusTesting  TargetStatus = "testing"
	StatusSuccess  TargetStatus = "success"
	StatusFailed   TargetStatus = "failed"
	StatusSkipped  TargetStatus = "skipped"
)

// IsTerminal reports whether no further transitions may leave the status
func (s TargetStatus) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// RunStatus represents the execution state of a whole shard run
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// FailureKind classifies why a target ended in StatusFailed
type FailureKind string

const (
	FailureBuild      FailureKind = "build"
	FailureTest       FailureKind = "test"
	FailureUpload     FailureKind = "upload"
	FailureInvocation FailureKind = "invocation"
)
