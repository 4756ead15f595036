package runstate

import (
	"sort"

	"github.com/hochfrequenz/recipe-build-orchestrator/internal/domain"
)

// TargetResult is the terminal record for one target
type TargetResult struct {
	Target   *domain.Target
	Status   domain.TargetStatus
	Kind     domain.FailureKind // set when Status is failed
	Detail   string
	CausedBy []string // failing packages, set when Status is skipped
}

// Verdict is the aggregate outcome of a shard run
type Verdict struct {
	Success bool
	Total   int
	Failed  []TargetResult
	Skipped []TargetResult
}

// Verdict computes the final pass/fail outcome: success iff every target
// ended in success. Failed and skipped targets are enumerated separately
// so operators can tell root causes from cascades.
func (tr *Tracker) Verdict() *Verdict {
	v := &Verdict{Success: true}
	for _, res := range tr.Results() {
		v.Total++
		switch res.Status {
		case domain.StatusFailed:
			v.Success = false
			v.Failed = append(v.Failed, res)
		case domain.StatusSkipped:
			v.Success = false
			v.Skipped = append(v.Skipped, res)
		case domain.StatusSuccess:
		default:
			// never executed; a correct plan does not leave these behind
			v.Success = false
		}
	}
	return v
}

// Results returns every target's terminal record, sorted by target ID
func (tr *Tracker) Results() []TargetResult {
	names := make([]string, 0, len(tr.targets))
	for name := range tr.targets {
		names = append(names, name)
	}
	sort.Strings(names)

	var results []TargetResult
	for _, name := range names {
		for _, t := range tr.targets[name] {
			id := t.ID()
			results = append(results, TargetResult{
				Target:   t,
				Status:   tr.status[id],
				Kind:     tr.kind[id],
				Detail:   tr.detail[id],
				CausedBy: tr.skipCause[name],
			})
		}
	}
	return results
}
