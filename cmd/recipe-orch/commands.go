package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hochfrequenz/recipe-build-orchestrator/internal/builder"
	"github.com/hochfrequenz/recipe-build-orchestrator/internal/config"
	"github.com/hochfrequenz/recipe-build-orchestrator/internal/depgraph"
	"github.com/hochfrequenz/recipe-build-orchestrator/internal/domain"
	"github.com/hochfrequenz/recipe-build-orchestrator/internal/executor"
	"github.com/hochfrequenz/recipe-build-orchestrator/internal/metadata"
	"github.com/hochfrequenz/recipe-build-orchestrator/internal/notify"
	"github.com/hochfrequenz/recipe-build-orchestrator/internal/planner"
	"github.com/hochfrequenz/recipe-build-orchestrator/internal/report"
	"github.com/hochfrequenz/recipe-build-orchestrator/internal/runstate"
	"github.com/hochfrequenz/recipe-build-orchestrator/internal/runstore"
	"github.com/hochfrequenz/recipe-build-orchestrator/internal/shard"
)

var (
	buildShards     int
	buildShardIndex int
	buildPackages   string
	buildTestOnly   bool
	buildNoMulled   bool
	buildDocker     bool
	buildPublish    bool
	buildForce      bool
	planShards      int
	planPackages    string
	planTestOnly    bool
	statusLimit     int
)

func init() {
	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Build one shard of the recipe graph",
		RunE:  runBuild,
	}
	buildCmd.Flags().IntVar(&buildShards, "shards", 0, "total shard count (default $SUBDAGS or 1)")
	buildCmd.Flags().IntVar(&buildShardIndex, "shard-index", 0, "shard to build (default $SUBDAG or 0)")
	buildCmd.Flags().StringVar(&buildPackages, "packages", "*", "glob of packages to consider")
	buildCmd.Flags().BoolVar(&buildTestOnly, "test-only", false, "test existing packages instead of building")
	buildCmd.Flags().BoolVar(&buildNoMulled, "no-mulled-test", false, "skip the container test after building")
	buildCmd.Flags().BoolVar(&buildDocker, "docker", false, "build inside the configured container image")
	buildCmd.Flags().BoolVar(&buildPublish, "publish", false, "upload built artifacts to the channel")
	buildCmd.Flags().BoolVar(&buildForce, "force", false, "rebuild packages whose artifact already exists")
	rootCmd.AddCommand(buildCmd)

	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Print shards and per-shard build order without building",
		RunE:  runPlan,
	}
	planCmd.Flags().IntVar(&planShards, "shards", 1, "total shard count")
	planCmd.Flags().StringVar(&planPackages, "packages", "*", "glob of packages to consider")
	planCmd.Flags().BoolVar(&planTestOnly, "test-only", false, "partition per package as a test run would")
	rootCmd.AddCommand(planCmd)

	reportCmd := &cobra.Command{
		Use:   "report [RUN_ID]",
		Short: "Render the report of the latest (or given) run",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runReport,
	}
	rootCmd.AddCommand(reportCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "List recent runs",
		RunE:  runStatus,
	}
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "number of runs to list")
	rootCmd.AddCommand(statusCmd)
}

func loadConfig() (*config.Config, error) {
	return config.LoadWithLocalFallback(configPath)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// envInt reads an integer environment variable, returning fallback when
// unset or unparseable.
func envInt(name string, fallback int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// loadGraph loads recipes matching glob and assembles the dependency
// graph, minus blacklisted packages.
func loadGraph(ctx context.Context, cfg *config.Config, glob string) (*depgraph.Graph, map[string]*metadata.Recipe, error) {
	source := metadata.NewSource(cfg.General.RecipeDir, cfg.General.Debug)

	names, err := source.ListPackages(glob)
	if err != nil {
		return nil, nil, err
	}

	recipes, err := source.LoadRecipes(ctx, names)
	if err != nil {
		return nil, nil, err
	}

	blacklist, err := metadata.LoadBlacklist(cfg.Build.Blacklists)
	if err != nil {
		return nil, nil, err
	}

	pkgs := make([]string, 0, len(recipes))
	deps := make(map[string][]string, len(recipes))
	for name, r := range recipes {
		pkgs = append(pkgs, name)
		deps[name] = r.Dependencies()
	}

	g, err := depgraph.New(pkgs, deps, blacklist)
	if err != nil {
		return nil, nil, err
	}
	return g, recipes, nil
}

// shardOutcome is what one shard build produced. Verdict is nil when
// the shard had nothing to do.
type shardOutcome struct {
	Verdict *runstate.Verdict
	RunID   string
}

// runShard executes the full pipeline for one shard: load, partition,
// plan, build, persist, report.
func runShard(ctx context.Context, cfg *config.Config, glob string, shardIndex, shardCount int, opts executor.Options, docker bool) (*shardOutcome, error) {
	g, recipes, err := loadGraph(ctx, cfg, glob)
	if err != nil {
		return nil, err
	}
	if g.Len() == 0 {
		fmt.Println("Nothing to be done.")
		return &shardOutcome{}, nil
	}

	shards, err := shard.Partition(g, shardCount, opts.TestOnly)
	if err != nil {
		return nil, err
	}
	sh, ok := shard.Select(shards, shardIndex)
	if !ok {
		fmt.Println("Nothing to be done.")
		return &shardOutcome{}, nil
	}

	order, err := planner.Plan(g, sh)
	if err != nil {
		return nil, err
	}

	packages := metadata.ExpandTargets(recipes, cfg.ExpandEnvMatrix(), cfg.General.BldDir)
	targets := planner.Targets(order, packages)
	if len(targets) == 0 {
		fmt.Println("Nothing to be done.")
		return &shardOutcome{}, nil
	}

	byPkg := make(map[string][]*domain.Target, len(order))
	for _, name := range order {
		byPkg[name] = packages[name].Targets
	}
	tracker := runstate.New(g, byPkg)

	b, tester, uploader := collaborators(cfg, opts, docker)
	runner := executor.New(b, tester, uploader, tracker, opts)

	store, err := runstore.New(cfg.General.DatabasePath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	runID, err := store.CreateRun(shardIndex, shardCount, opts.TestOnly)
	if err != nil {
		return nil, err
	}

	if err := runner.Run(ctx, targets); err != nil {
		return nil, err
	}

	v := tracker.Verdict()
	if err := store.FinishRun(runID, tracker.Results(), v.Success); err != nil {
		return nil, err
	}

	fmt.Print(report.Render(v))
	notifyVerdict(cfg, runID, shardIndex, v)

	return &shardOutcome{Verdict: v, RunID: runID}, nil
}

func notifyVerdict(cfg *config.Config, runID string, shardIndex int, v *runstate.Verdict) {
	if cfg.Notifications.SlackWebhook == "" {
		return
	}
	n := notify.NewSlackNotifier(cfg.Notifications.SlackWebhook)
	if err := n.Send(notify.FromVerdict(runID, shardIndex, v)); err != nil {
		log.Printf("[notify] slack notification failed: %v", err)
	}
}

// collaborators picks the build, test and upload implementations from
// config and flags.
func collaborators(cfg *config.Config, opts executor.Options, docker bool) (builder.Builder, builder.Tester, builder.Uploader) {
	var b builder.Builder
	if docker {
		b = builder.NewDockerBuilder(builder.DockerConfig{
			Image:    cfg.Build.DockerImage,
			Command:  cfg.Build.Command,
			Channels: cfg.Build.Channels,
			BldDir:   cfg.General.BldDir,
			TestOnly: opts.TestOnly,
			Debug:    cfg.General.Debug,
		})
	} else {
		b = builder.NewLocalBuilder(builder.LocalConfig{
			Command:  cfg.Build.Command,
			Channels: cfg.Build.Channels,
			TestOnly: opts.TestOnly,
			Debug:    cfg.General.Debug,
		})
	}

	tester := builder.NewMulledTester(builder.MulledTesterConfig{
		Command: cfg.Test.Command,
		Debug:   cfg.General.Debug,
	})
	uploader := builder.NewAnacondaUploader(builder.AnacondaUploaderConfig{
		Command:  cfg.Upload.Command,
		TokenEnv: cfg.Upload.TokenEnv,
		Debug:    cfg.General.Debug,
	})
	return b, tester, uploader
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// CI sets SUBDAGS/SUBDAG; explicit flags win
	shardCount := buildShards
	if !cmd.Flags().Changed("shards") {
		shardCount = envInt("SUBDAGS", 1)
	}
	shardIndex := buildShardIndex
	if !cmd.Flags().Changed("shard-index") {
		shardIndex = envInt("SUBDAG", 0)
	}

	opts := executor.Options{
		TestOnly:   buildTestOnly,
		MulledTest: !buildNoMulled,
		Publish:    buildPublish || cfg.Upload.Publish,
		Force:      buildForce,
		Debug:      cfg.General.Debug,
	}

	ctx, cancel := signalContext()
	defer cancel()

	out, err := runShard(ctx, cfg, buildPackages, shardIndex, shardCount, opts, buildDocker)
	if err != nil {
		return err
	}
	if out.Verdict != nil && !out.Verdict.Success {
		return fmt.Errorf("build failed: %d failed, %d skipped of %d targets",
			len(out.Verdict.Failed), len(out.Verdict.Skipped), out.Verdict.Total)
	}
	return nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	g, _, err := loadGraph(ctx, cfg, planPackages)
	if err != nil {
		return err
	}
	if g.Len() == 0 {
		fmt.Println("Nothing to be done.")
		return nil
	}

	shards, err := shard.Partition(g, planShards, planTestOnly)
	if err != nil {
		return err
	}

	for i, sh := range shards {
		order, err := planner.Plan(g, sh)
		if err != nil {
			return err
		}
		fmt.Printf("Shard %d/%d (%d packages):\n", i, planShards, len(order))
		for _, name := range order {
			fmt.Printf("  %s\n", name)
		}
	}
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := runstore.New(cfg.General.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	var run *runstore.Run
	if len(args) > 0 {
		run, err = store.GetRun(args[0])
	} else {
		run, err = store.LatestRun()
	}
	if err != nil {
		return err
	}
	if run == nil {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	rows, err := store.ListResults(run.ID)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s (shard %d/%d)\n", run.ID, run.ShardIndex, run.ShardCount)
	fmt.Print(report.Render(verdictFromRows(run, rows)))
	return nil
}

// verdictFromRows reconstructs a verdict from persisted target rows so
// past runs render through the same report path as live ones.
func verdictFromRows(run *runstore.Run, rows []*runstore.TargetRow) *runstate.Verdict {
	v := &runstate.Verdict{Success: run.Status == domain.RunSucceeded}
	for _, row := range rows {
		v.Total++
		res := runstate.TargetResult{
			Target:   &domain.Target{Package: row.Package, Env: parseEnv(row.Env)},
			Status:   row.Status,
			Kind:     row.FailureKind,
			Detail:   row.Detail,
			CausedBy: row.CausedBy,
		}
		switch row.Status {
		case domain.StatusFailed:
			v.Failed = append(v.Failed, res)
		case domain.StatusSkipped:
			v.Skipped = append(v.Skipped, res)
		}
	}
	return v
}

// parseEnv reverses Target.EnvString ("k=v;k=v")
func parseEnv(s string) map[string]string {
	if s == "" {
		return nil
	}
	env := make(map[string]string)
	for _, part := range strings.Split(s, ";") {
		if k, val, ok := strings.Cut(part, "="); ok {
			env[k] = val
		}
	}
	return env
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := runstore.New(cfg.General.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(statusLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSHARD\tMODE\tSTATUS\tSTARTED\tFINISHED")
	for _, r := range runs {
		mode := "build"
		if r.TestOnly {
			mode = "test"
		}
		started, finished := "-", "-"
		if r.StartedAt != nil {
			started = r.StartedAt.Format("2006-01-02 15:04")
		}
		if r.FinishedAt != nil {
			finished = r.FinishedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%d/%d\t%s\t%s\t%s\t%s\n",
			r.ID, r.ShardIndex, r.ShardCount, mode, r.Status, started, finished)
	}
	return w.Flush()
}
