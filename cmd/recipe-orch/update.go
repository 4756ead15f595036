package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hochfrequenz/recipe-build-orchestrator/internal/updater"
)

// version is set at build time via -ldflags
var version = "dev"

func init() {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
	rootCmd.AddCommand(versionCmd)

	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Update to the latest release",
		RunE:  runUpdate,
	}
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	latest, err := updater.LatestVersion()
	if err != nil {
		return err
	}

	if !updater.NeedsUpdate(version, latest) {
		fmt.Printf("Already up to date (%s).\n", version)
		return nil
	}

	fmt.Printf("Updating %s -> %s ...\n", version, latest)
	if err := updater.SelfUpdate(latest); err != nil {
		return err
	}
	fmt.Println("Updated. Restart to use the new version.")
	return nil
}
