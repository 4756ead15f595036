package report

import (
	"strings"
	"testing"

	"github.com/hochfrequenz/recipe-build-orchestrator/internal/domain"
	"github.com/hochfrequenz/recipe-build-orchestrator/internal/runstate"
)

func TestRender_Success(t *testing.T) {
	out := Render(&runstate.Verdict{Success: true, Total: 5})

	if !strings.Contains(out, "BUILD SUCCESS") {
		t.Errorf("output = %q, want BUILD SUCCESS", out)
	}
	if !strings.Contains(out, "5 targets") {
		t.Errorf("output = %q, want target count", out)
	}
}

func TestRender_FailureSeparatesRootCausesFromCascades(t *testing.T) {
	v := &runstate.Verdict{
		Success: false,
		Total:   3,
		Failed: []runstate.TargetResult{
			{
				Target: &domain.Target{Package: "a"},
				Status: domain.StatusFailed,
				Kind:   domain.FailureBuild,
				Detail: "exit status 1\nlots of log output",
			},
		},
		Skipped: []runstate.TargetResult{
			{Target: &domain.Target{Package: "b"}, Status: domain.StatusSkipped, CausedBy: []string{"a"}},
			{Target: &domain.Target{Package: "c"}, Status: domain.StatusSkipped, CausedBy: []string{"a"}},
		},
	}

	out := Render(v)
	if !strings.Contains(out, "BUILD FAILED: 1 of 3 targets failed, 2 skipped") {
		t.Errorf("output = %q, want summary line", out)
	}
	if !strings.Contains(out, "FAILED  a[] (build)") {
		t.Errorf("output = %q, want failed entry", out)
	}
	if !strings.Contains(out, "SKIPPED b[] due to failed dependencies a") {
		t.Errorf("output = %q, want skip entry with cause", out)
	}
	// only the first line of the failure detail is shown
	if strings.Contains(out, "lots of log output") {
		t.Errorf("output = %q, full detail should be truncated", out)
	}
}
