package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "recipe-orch",
		Short: "Recipe Build Orchestrator - dependency-aware package build scheduler",
		Long: `Recipe Build Orchestrator builds a repository of package recipes in
dependency order. It partitions the recipe graph into shards for parallel
CI workers, builds each target per environment combination, optionally
tests artifacts in containers and uploads them to the package channel.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
