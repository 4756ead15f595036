package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hochfrequenz/recipe-build-orchestrator/internal/builder"
	"github.com/hochfrequenz/recipe-build-orchestrator/internal/depgraph"
	"github.com/hochfrequenz/recipe-build-orchestrator/internal/domain"
	"github.com/hochfrequenz/recipe-build-orchestrator/internal/runstate"
)

type fakeBuilder struct {
	failFor map[string]bool
	errFor  map[string]error
	built   []string
}

func (f *fakeBuilder) Build(ctx context.Context, t *domain.Target) (*domain.BuildResult, error) {
	if err := f.errFor[t.Package]; err != nil {
		return nil, err
	}
	f.built = append(f.built, t.Package)
	return &domain.BuildResult{
		Success:      !f.failFor[t.Package],
		ArtifactPath: t.ArtifactPath,
	}, nil
}

type fakeTester struct {
	exitFor map[string]int
	tested  []string
}

func (f *fakeTester) Test(ctx context.Context, artifactPath string) (*domain.TestResult, error) {
	f.tested = append(f.tested, artifactPath)
	return &domain.TestResult{ExitCode: f.exitFor[artifactPath]}, nil
}

type fakeUploader struct {
	result   domain.UploadResult
	uploaded []string
}

func (f *fakeUploader) Upload(ctx context.Context, artifactPath string) (*domain.UploadResult, error) {
	f.uploaded = append(f.uploaded, artifactPath)
	res := f.result
	return &res, nil
}

func chainRun(t *testing.T) (*depgraph.Graph, map[string][]*domain.Target, []*domain.Target) {
	t.Helper()
	g, err := depgraph.New(
		[]string{"a", "b", "c"},
		map[string][]string{"b": {"a"}, "c": {"b"}},
		nil,
	)
	if err != nil {
		t.Fatalf("depgraph.New() error = %v", err)
	}

	byPkg := make(map[string][]*domain.Target)
	var ordered []*domain.Target
	for _, name := range []string{"a", "b", "c"} {
		target := &domain.Target{Package: name, ArtifactPath: "/bld/" + name + ".tar.bz2"}
		byPkg[name] = []*domain.Target{target}
		ordered = append(ordered, target)
	}
	return g, byPkg, ordered
}

func TestRun_AllSucceed(t *testing.T) {
	g, byPkg, ordered := chainRun(t)
	tracker := runstate.New(g, byPkg)
	fb := &fakeBuilder{}
	ft := &fakeTester{}
	fu := &fakeUploader{result: domain.UploadResult{Success: true}}

	r := New(fb, ft, fu, tracker, Options{MulledTest: true, Publish: true})
	if err := r.Run(context.Background(), ordered); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	v := tracker.Verdict()
	if !v.Success {
		t.Errorf("verdict = %+v, want success", v)
	}
	if len(fb.built) != 3 || len(ft.tested) != 3 || len(fu.uploaded) != 3 {
		t.Errorf("built=%d tested=%d uploaded=%d, want 3 each", len(fb.built), len(ft.tested), len(fu.uploaded))
	}
}

func TestRun_RootFailureSkipsDependents(t *testing.T) {
	g, byPkg, ordered := chainRun(t)
	tracker := runstate.New(g, byPkg)
	fb := &fakeBuilder{failFor: map[string]bool{"a": true}}
	ft := &fakeTester{}
	fu := &fakeUploader{result: domain.UploadResult{Success: true}}

	r := New(fb, ft, fu, tracker, Options{MulledTest: true})
	if err := r.Run(context.Background(), ordered); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := tracker.Status(byPkg["a"][0]); got != domain.StatusFailed {
		t.Errorf("a = %s, want failed", got)
	}
	if got := tracker.Status(byPkg["b"][0]); got != domain.StatusSkipped {
		t.Errorf("b = %s, want skipped", got)
	}
	if got := tracker.Status(byPkg["c"][0]); got != domain.StatusSkipped {
		t.Errorf("c = %s, want skipped", got)
	}

	// b and c never reach the build collaborator
	if len(fb.built) != 1 {
		t.Errorf("built = %v, want only a attempted", fb.built)
	}

	v := tracker.Verdict()
	if v.Success || len(v.Failed) != 1 || len(v.Skipped) != 2 {
		t.Errorf("verdict = %+v, want 1 failed 2 skipped", v)
	}
}

func TestRun_TestFailureShortCircuitsUpload(t *testing.T) {
	g, byPkg, ordered := chainRun(t)
	tracker := runstate.New(g, byPkg)
	fb := &fakeBuilder{}
	ft := &fakeTester{exitFor: map[string]int{"/bld/a.tar.bz2": 1}}
	fu := &fakeUploader{result: domain.UploadResult{Success: true}}

	r := New(fb, ft, fu, tracker, Options{MulledTest: true, Publish: true})
	if err := r.Run(context.Background(), ordered); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, path := range fu.uploaded {
		if path == "/bld/a.tar.bz2" {
			t.Error("a was uploaded despite failing its test")
		}
	}
	if got := tracker.Status(byPkg["b"][0]); got != domain.StatusSkipped {
		t.Errorf("b = %s, want skipped after a's test failure", got)
	}
}

func TestRun_TestOnlySkipsTestAndUpload(t *testing.T) {
	g, byPkg, ordered := chainRun(t)
	tracker := runstate.New(g, byPkg)
	fb := &fakeBuilder{}
	ft := &fakeTester{}
	fu := &fakeUploader{result: domain.UploadResult{Success: true}}

	r := New(fb, ft, fu, tracker, Options{TestOnly: true, MulledTest: true, Publish: true})
	if err := r.Run(context.Background(), ordered); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(ft.tested) != 0 || len(fu.uploaded) != 0 {
		t.Errorf("tested=%d uploaded=%d, want 0 each in test-only mode", len(ft.tested), len(fu.uploaded))
	}
	if !tracker.Verdict().Success {
		t.Error("verdict should be success")
	}
}

func TestRun_InvocationErrorTrackedAsFailure(t *testing.T) {
	g, byPkg, ordered := chainRun(t)
	tracker := runstate.New(g, byPkg)
	fb := &fakeBuilder{errFor: map[string]error{
		"a": &builder.InvocationError{Cmd: "conda", Err: errors.New("executable not found")},
	}}

	r := New(fb, &fakeTester{}, &fakeUploader{}, tracker, Options{})
	if err := r.Run(context.Background(), ordered); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	v := tracker.Verdict()
	if len(v.Failed) != 1 || v.Failed[0].Kind != domain.FailureInvocation {
		t.Errorf("Failed = %+v, want one invocation failure", v.Failed)
	}
	if len(v.Skipped) != 2 {
		t.Errorf("len(Skipped) = %d, want 2", len(v.Skipped))
	}
}

func TestRun_AlreadyExistsUploadIsSuccess(t *testing.T) {
	g, byPkg, ordered := chainRun(t)
	tracker := runstate.New(g, byPkg)
	fb := &fakeBuilder{}
	fu := &fakeUploader{result: domain.UploadResult{Success: false, AlreadyExists: true}}

	r := New(fb, &fakeTester{}, fu, tracker, Options{Publish: true})
	if err := r.Run(context.Background(), ordered); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !tracker.Verdict().Success {
		t.Error("already-exists upload must never fail the run")
	}
}

func TestRun_UploadFailureDoesNotSkipSiblings(t *testing.T) {
	g, byPkg, ordered := chainRun(t)
	tracker := runstate.New(g, byPkg)
	fb := &fakeBuilder{}
	fu := &fakeUploader{result: domain.UploadResult{Success: false}}

	r := New(fb, &fakeTester{}, fu, tracker, Options{Publish: true})
	if err := r.Run(context.Background(), ordered); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// a's upload failed, but b still builds against a's local artifact
	if len(fb.built) != 3 {
		t.Errorf("built = %v, want all three attempted", fb.built)
	}
	v := tracker.Verdict()
	if v.Success {
		t.Error("verdict success = true, want false")
	}
	if len(v.Skipped) != 0 {
		t.Errorf("Skipped = %+v, want none", v.Skipped)
	}
}

func TestRun_ExistingArtifactSkipsBuild(t *testing.T) {
	g, byPkg, ordered := chainRun(t)

	// Pretend a's artifact is already on disk
	existing := filepath.Join(t.TempDir(), "a.tar.bz2")
	if err := os.WriteFile(existing, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	ordered[0].ArtifactPath = existing

	tracker := runstate.New(g, byPkg)
	fb := &fakeBuilder{}

	r := New(fb, &fakeTester{}, &fakeUploader{}, tracker, Options{})
	if err := r.Run(context.Background(), ordered); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(fb.built) != 2 {
		t.Errorf("built = %v, want b and c only", fb.built)
	}
	if !tracker.Verdict().Success {
		t.Error("verdict success = false, want true")
	}
}

func TestRun_ForceRebuildsExistingArtifact(t *testing.T) {
	g, byPkg, ordered := chainRun(t)

	existing := filepath.Join(t.TempDir(), "a.tar.bz2")
	if err := os.WriteFile(existing, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	ordered[0].ArtifactPath = existing

	tracker := runstate.New(g, byPkg)
	fb := &fakeBuilder{}

	r := New(fb, &fakeTester{}, &fakeUploader{}, tracker, Options{Force: true})
	if err := r.Run(context.Background(), ordered); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(fb.built) != 3 {
		t.Errorf("built = %v, want all three", fb.built)
	}
}
