package main

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hochfrequenz/recipe-build-orchestrator/internal/batch"
	"github.com/hochfrequenz/recipe-build-orchestrator/internal/dispatch"
	"github.com/hochfrequenz/recipe-build-orchestrator/internal/executor"
	"github.com/hochfrequenz/recipe-build-orchestrator/internal/observer"
)

var (
	coordShards   int
	coordTestOnly bool
	coordPort     int
	workerServer  string
	workerID      string
	daemonFile    string
)

func init() {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the recipe tree and print affected packages",
		RunE:  runWatch,
	}
	rootCmd.AddCommand(watchCmd)

	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run scheduled bulk builds from a schedule file",
		RunE:  runDaemon,
	}
	daemonCmd.Flags().StringVar(&daemonFile, "schedule", "schedule.toml", "schedule file path")
	rootCmd.AddCommand(daemonCmd)

	coordCmd := &cobra.Command{
		Use:   "coordinator",
		Short: "Hand out build shards to workers over WebSocket",
		RunE:  runCoordinator,
	}
	coordCmd.Flags().IntVar(&coordShards, "shards", 2, "total shard count to distribute")
	coordCmd.Flags().BoolVar(&coordTestOnly, "test-only", false, "workers test instead of build")
	coordCmd.Flags().IntVar(&coordPort, "port", 0, "listen port (default from config)")
	rootCmd.AddCommand(coordCmd)

	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Build shards assigned by a coordinator",
		RunE:  runWorker,
	}
	workerCmd.Flags().StringVar(&workerServer, "server", "ws://localhost:8081/ws", "coordinator WebSocket URL")
	workerCmd.Flags().StringVar(&workerID, "id", "", "worker ID (default hostname plus random suffix)")
	rootCmd.AddCommand(workerCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	g, _, err := loadGraph(ctx, cfg, "*")
	if err != nil {
		return err
	}

	watcher, err := observer.NewRecipeWatcher(cfg.General.RecipeDir, func(packages []string) {
		affected := make(map[string]bool)
		for _, pkg := range packages {
			if !g.Has(pkg) {
				continue
			}
			affected[pkg] = true
			for _, dep := range g.TransitiveDependents(pkg) {
				affected[dep] = true
			}
		}
		if len(affected) == 0 {
			return
		}
		names := make([]string, 0, len(affected))
		for name := range affected {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Printf("changed: %s -> rebuild %s\n",
			strings.Join(packages, ", "), strings.Join(names, ", "))
	})
	if err != nil {
		return err
	}

	fmt.Printf("Watching %s (%d packages), Ctrl-C to stop\n", cfg.General.RecipeDir, g.Len())
	watcher.Start(ctx)
	<-ctx.Done()
	watcher.Stop()
	return nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	schedule, err := batch.LoadScheduleConfig(daemonFile)
	if err != nil {
		return err
	}
	if len(schedule.Bulks) == 0 {
		return fmt.Errorf("no bulk builds configured in %s", daemonFile)
	}

	ctx, cancel := signalContext()
	defer cancel()

	sched := batch.NewScheduler(schedule)
	go func() {
		<-ctx.Done()
		sched.Stop()
	}()

	sched.Start(func(bulk batch.BulkConfig) {
		opts := executor.Options{
			TestOnly:   bulk.TestOnly,
			MulledTest: true,
			Publish:    cfg.Upload.Publish,
			Debug:      cfg.General.Debug,
		}
		for i := 0; i < bulk.ShardCount; i++ {
			if ctx.Err() != nil {
				return
			}
			if _, err := runShard(ctx, cfg, bulk.Packages, i, bulk.ShardCount, opts, false); err != nil {
				log.Printf("[daemon] bulk %q shard %d failed: %v", bulk.Name, i, err)
			}
		}
	})
	return nil
}

func runCoordinator(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	port := coordPort
	if port == 0 {
		port = cfg.Coordinator.Port
	}

	ctx, cancel := signalContext()
	defer cancel()

	coord := dispatch.NewCoordinator(dispatch.CoordinatorConfig{
		Port:       port,
		ShardCount: coordShards,
		TestOnly:   coordTestOnly,
	})
	if err := coord.Start(ctx); err != nil {
		return err
	}

	select {
	case <-coord.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	failed := 0
	for _, res := range coord.Results() {
		fmt.Printf("shard %d (%s): success=%v built=%d failed=%d skipped=%d\n",
			res.ShardIndex, res.WorkerID, res.Success, res.Built, res.Failed, res.Skipped)
		if !res.Success {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d shards failed", failed, coordShards)
	}
	fmt.Printf("All %d shards succeeded.\n", coordShards)
	return nil
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	id := workerID
	if id == "" {
		host, _ := os.Hostname()
		id = fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
	}

	ctx, cancel := signalContext()
	defer cancel()

	worker, err := dispatch.NewWorker(dispatch.WorkerConfig{
		ServerURL: workerServer,
		WorkerID:  id,
	})
	if err != nil {
		return err
	}
	defer worker.Close()

	if err := worker.Connect(); err != nil {
		return err
	}
	log.Printf("[worker] %s connected to %s", id, workerServer)

	return worker.Run(func(shardIndex, shardCount int, testOnly bool) dispatch.ShardResult {
		opts := executor.Options{
			TestOnly:   testOnly,
			MulledTest: true,
			Publish:    cfg.Upload.Publish,
			Debug:      cfg.General.Debug,
		}
		res := dispatch.ShardResult{ShardIndex: shardIndex, WorkerID: id}

		out, err := runShard(ctx, cfg, "*", shardIndex, shardCount, opts, false)
		if err != nil {
			log.Printf("[worker] shard %d failed: %v", shardIndex, err)
			return res
		}
		if out.Verdict == nil {
			// empty shard counts as success
			res.Success = true
			return res
		}
		res.Success = out.Verdict.Success
		res.Built = out.Verdict.Total - len(out.Verdict.Failed) - len(out.Verdict.Skipped)
		res.Failed = len(out.Verdict.Failed)
		res.Skipped = len(out.Verdict.Skipped)
		return res
	})
}
