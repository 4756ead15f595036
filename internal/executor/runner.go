// Package executor drives the planned target order for one shard.
//
// Execution is strictly sequential: the topological order encodes a real
// build-order dependency, because a package's build may read its
// dependency's artifact from the shared local store. Build, test and
// upload are blocking calls with no internal timeout; cancellation is
// the caller's concern via the context.
package executor

import (
	"context"
	"log"
	"os"

	"github.com/hochfrequenz/recipe-build-orchestrator/internal/builder"
	"github.com/hochfrequenz/recipe-build-orchestrator/internal/domain"
	"github.com/hochfrequenz/recipe-build-orchestrator/internal/runstate"
)

// Options controls which steps run for each target
type Options struct {
	TestOnly   bool // skip the container test and upload steps
	MulledTest bool // run the container test after a successful build
	Publish    bool // upload artifacts (trunk builds only)
	Force      bool // rebuild even when the artifact already exists
	Debug      bool
}

// Runner executes targets in planned order, reporting every outcome to
// the tracker
type Runner struct {
	builder  builder.Builder
	tester   builder.Tester
	uploader builder.Uploader
	tracker  *runstate.Tracker
	opts     Options
}

// New creates a Runner over the given collaborators
func New(b builder.Builder, tester builder.Tester, uploader builder.Uploader, tracker *runstate.Tracker, opts Options) *Runner {
	return &Runner{
		builder:  b,
		tester:   tester,
		uploader: uploader,
		tracker:  tracker,
		opts:     opts,
	}
}

// Run walks the targets in order. Per-target failures never abort the
// run; they are recorded and skip propagation decides what still makes
// sense to build. Only context cancellation stops the loop early.
func (r *Runner) Run(ctx context.Context, targets []*domain.Target) error {
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.runTarget(ctx, t)
	}
	return nil
}

func (r *Runner) runTarget(ctx context.Context, t *domain.Target) {
	if r.tracker.ShouldSkip(t) {
		log.Printf("[executor] SKIP %s: failed dependencies", t.ID())
		return
	}

	if !r.opts.Force && t.ArtifactPath != "" {
		if _, err := os.Stat(t.ArtifactPath); err == nil {
			log.Printf("[executor] EXISTS %s: artifact already built", t.ID())
			r.tracker.RecordOutcome(t, runstate.OutcomeSuccess, "already built")
			return
		}
	}

	log.Printf("[executor] BUILD START %s", t.ID())
	r.tracker.MarkBuilding(t)

	res, err := r.builder.Build(ctx, t)
	if err != nil {
		log.Printf("[executor] BUILD ERROR %s: %v", t.ID(), err)
		r.tracker.RecordOutcome(t, runstate.OutcomeInvocationError, err.Error())
		return
	}
	if !res.Success {
		log.Printf("[executor] BUILD FAILED %s", t.ID())
		if r.opts.Debug {
			log.Printf("[executor] stdout:\n%s", res.Stdout)
			log.Printf("[executor] stderr:\n%s", res.Stderr)
		}
		r.tracker.RecordOutcome(t, runstate.OutcomeBuildFailure, res.Stderr)
		return
	}
	log.Printf("[executor] BUILD SUCCESS %s", t.ID())

	if !r.opts.TestOnly && r.opts.MulledTest {
		log.Printf("[executor] TEST START %s", t.ID())
		r.tracker.MarkTesting(t)

		testRes, err := r.tester.Test(ctx, res.ArtifactPath)
		if err != nil {
			log.Printf("[executor] TEST ERROR %s: %v", t.ID(), err)
			r.tracker.RecordOutcome(t, runstate.OutcomeInvocationError, err.Error())
			return
		}
		if !testRes.Succeeded() {
			log.Printf("[executor] TEST FAILED %s", t.ID())
			r.tracker.RecordOutcome(t, runstate.OutcomeTestFailure, testRes.Stderr)
			return
		}
		log.Printf("[executor] TEST SUCCESS %s", t.ID())
	}

	if !r.opts.TestOnly && r.opts.Publish {
		uploadRes, err := r.uploader.Upload(ctx, res.ArtifactPath)
		if err != nil {
			log.Printf("[executor] UPLOAD ERROR %s: %v", t.ID(), err)
			r.tracker.RecordOutcome(t, runstate.OutcomeUploadFailure, err.Error())
			return
		}
		if uploadRes.AlreadyExists {
			log.Printf("[executor] UPLOAD %s: already exists, treating as success", t.ID())
		} else if !uploadRes.Succeeded() {
			log.Printf("[executor] UPLOAD FAILED %s", t.ID())
			r.tracker.RecordOutcome(t, runstate.OutcomeUploadFailure, "upload rejected")
			return
		}
	}

	r.tracker.RecordOutcome(t, runstate.OutcomeSuccess, "")
}
