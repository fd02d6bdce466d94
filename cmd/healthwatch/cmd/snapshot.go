package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/healthwatch/healthwatch/internal/model"
	"github.com/healthwatch/healthwatch/internal/runtime"
	"github.com/healthwatch/healthwatch/internal/snapshot"
)

var snapshotOut string

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Write the current snapshot to the configured output file",
	Long: "Writes a snapshot synthesized from whatever ServiceRuntime state can be " +
		"derived from the configuration alone (all-PENDING on a cold invocation); " +
		"used by external smoke flows to verify the publication path without " +
		"running the full orchestrator.",
	RunE: runSnapshotCmd,
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotOut, "out", "", "output path for the snapshot JSON (default: <settings.output_dir>/status.json)")
}

func runSnapshotCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	table := runtime.NewTable(serviceNames(cfg))

	defs := make(map[string]model.ServiceDefinition, len(cfg.Pings))
	for _, svc := range cfg.Pings {
		defs[svc.Name] = svc
	}

	rows := table.Snapshot()
	entries := make([]snapshot.Entry, len(rows))
	for i, row := range rows {
		entries[i] = snapshot.Entry{Definition: defs[row.Name], Runtime: row.Runtime}
	}

	out := snapshotOut
	if out == "" {
		out = filepath.Join(cfg.Settings.OutputDir, snapshotFileName)
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("create snapshot output directory: %w", err)
	}

	if err := snapshot.Write(out, entries); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	fmt.Printf("snapshot written to %s\n", out)
	return nil
}
