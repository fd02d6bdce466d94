// Package cmd wires the three user-facing entry points (run, validate,
// snapshot) plus version onto a cobra command tree, following the
// rootCmd/AddCommand/persistent-flag idiom this pack's zicongmei-gke-mcp
// repo uses for its own CLI.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/healthwatch/healthwatch/pkg/config"
)

// snapshotFileName is the default basename of the regenerated status
// snapshot inside settings.output_dir; spec.md never names the file, only
// the directory setting that contains it.
const snapshotFileName = "status.json"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "healthwatch",
	Short: "Periodic, fan-out HTTP(S) health-check engine",
	Long: "healthwatch probes a configured population of HTTP(S) endpoints on a schedule, " +
		"classifies each outcome into PASS/DEGRADED/FAIL, appends an append-only CSV history, " +
		"and publishes a snapshot JSON for a static status page.",
}

// Execute adds every child command to rootCmd and runs it. Called once
// from main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the configuration YAML file (default: searched in the standard locations)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(versionCmd)
}

// configLoaderOpts returns the loader options implied by the --config
// flag, or nil to fall back to the loader's built-in candidate paths.
func configLoaderOpts() []config.LoaderOption {
	if configPath == "" {
		return nil
	}
	return []config.LoaderOption{config.WithConfigPaths(configPath)}
}

func loadConfig() (*config.Config, error) {
	return config.NewLoader(configLoaderOpts()...).Load()
}

func serviceNames(cfg *config.Config) []string {
	names := make([]string, len(cfg.Pings))
	for i, svc := range cfg.Pings {
		names[i] = svc.Name
	}
	return names
}
