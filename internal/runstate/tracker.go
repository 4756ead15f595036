// Package runstate tracks per-target build state across one shard run.
//
// The tracker owns the run's mutable state explicitly; nothing here is
// process-global. It is mutated only by the single goroutine driving the
// shard, so no locking is needed.
package runstate

import (
	"sort"

	"github.com/hochfrequenz/recipe-build-orchestrator/internal/depgraph"
	"github.com/hochfrequenz/recipe-build-orchestrator/internal/domain"
)

// Outcome is the terminal result reported for one executed target
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeBuildFailure
	OutcomeTestFailure
	OutcomeUploadFailure
	OutcomeInvocationError
)

// FailureKind maps the outcome to its report classification
func (o Outcome) FailureKind() domain.FailureKind {
	switch o {
	case OutcomeBuildFailure:
		return domain.FailureBuild
	case OutcomeTestFailure:
		return domain.FailureTest
	case OutcomeUploadFailure:
		return domain.FailureUpload
	case OutcomeInvocationError:
		return domain.FailureInvocation
	}
	return ""
}

// propagatesSkip reports whether dependents must be skipped. Upload
// failures are independent of build correctness and never cascade.
func (o Outcome) propagatesSkip() bool {
	switch o {
	case OutcomeBuildFailure, OutcomeTestFailure, OutcomeInvocationError:
		return true
	}
	return false
}

// Tracker holds the state machine for every target of one shard.
//
// Per-target transitions: pending -> building -> testing -> success,
// failing out of building or testing, or pending -> skipped when a
// dependency failed. Terminal states are sinks.
type Tracker struct {
	graph     *depgraph.Graph
	targets   map[string][]*domain.Target // by package name
	status    map[string]domain.TargetStatus
	kind      map[string]domain.FailureKind
	detail    map[string]string
	skipCause map[string][]string // package -> root packages that caused the skip
}

// New creates a Tracker with every target pending
func New(g *depgraph.Graph, targetsByPackage map[string][]*domain.Target) *Tracker {
	tr := &Tracker{
		graph:     g,
		targets:   targetsByPackage,
		status:    make(map[string]domain.TargetStatus),
		kind:      make(map[string]domain.FailureKind),
		detail:    make(map[string]string),
		skipCause: make(map[string][]string),
	}
	for _, targets := range targetsByPackage {
		for _, t := range targets {
			tr.status[t.ID()] = domain.StatusPending
		}
	}
	return tr
}

// Status returns the current status of a target
func (tr *Tracker) Status(t *domain.Target) domain.TargetStatus {
	return tr.status[t.ID()]
}

// MarkBuilding transitions a pending target to building
func (tr *Tracker) MarkBuilding(t *domain.Target) {
	if tr.status[t.ID()] == domain.StatusPending {
		tr.status[t.ID()] = domain.StatusBuilding
	}
}

// MarkTesting transitions a building target to testing
func (tr *Tracker) MarkTesting(t *domain.Target) {
	if tr.status[t.ID()] == domain.StatusBuilding {
		tr.status[t.ID()] = domain.StatusTesting
	}
}

// RecordOutcome moves the target to success or failed. A failure that
// reflects broken build output marks every pending target of every
// transitively dependent package as skipped, recording the causing
// package for the report. Recording an outcome for an already-terminal
// target is a no-op.
func (tr *Tracker) RecordOutcome(t *domain.Target, outcome Outcome, detail string) {
	id := t.ID()
	if tr.status[id].IsTerminal() {
		return
	}

	if outcome == OutcomeSuccess {
		tr.status[id] = domain.StatusSuccess
		return
	}

	tr.status[id] = domain.StatusFailed
	tr.kind[id] = outcome.FailureKind()
	tr.detail[id] = detail

	if !outcome.propagatesSkip() {
		return
	}
	for _, dep := range tr.graph.TransitiveDependents(t.Package) {
		tr.skipPackage(dep, t.Package)
	}
}

// skipPackage marks the package's not-yet-started targets skipped
func (tr *Tracker) skipPackage(name, cause string) {
	for _, target := range tr.targets[name] {
		if tr.status[target.ID()] == domain.StatusPending {
			tr.status[target.ID()] = domain.StatusSkipped
		}
	}
	tr.skipCause[name] = insertCause(tr.skipCause[name], cause)
}

// ShouldSkip reports whether the target must not be handed to the build
// collaborator. Eager propagation in RecordOutcome normally settles this
// before the executor reaches the target; the direct-dependency check is
// re-applied here defensively.
func (tr *Tracker) ShouldSkip(t *domain.Target) bool {
	if tr.status[t.ID()] == domain.StatusSkipped {
		return true
	}
	for _, dep := range tr.graph.DependsOn(t.Package) {
		if !tr.packageBroken(dep) {
			continue
		}
		causes := tr.skipCause[dep]
		if len(causes) == 0 {
			causes = []string{dep}
		}
		for _, c := range causes {
			tr.skipPackage(t.Package, c)
		}
		return true
	}
	return false
}

// packageBroken reports whether any target of the package failed in a
// way that invalidates its artifact, or was itself skipped
func (tr *Tracker) packageBroken(name string) bool {
	if len(tr.skipCause[name]) > 0 {
		return true
	}
	for _, target := range tr.targets[name] {
		id := target.ID()
		if tr.status[id] == domain.StatusFailed && tr.kind[id] != domain.FailureUpload {
			return true
		}
		if tr.status[id] == domain.StatusSkipped {
			return true
		}
	}
	return false
}

func insertCause(causes []string, cause string) []string {
	i := sort.SearchStrings(causes, cause)
	if i < len(causes) && causes[i] == cause {
		return causes
	}
	causes = append(causes, "")
	copy(causes[i+1:], causes[i:])
	causes[i] = cause
	return causes
}
