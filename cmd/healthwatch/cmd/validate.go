package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/healthwatch/healthwatch/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Parse and validate the configuration without starting the orchestrator",
	Run: func(cmd *cobra.Command, args []string) {
		if _, ok := config.LoadAndReport(configLoaderOpts()...); !ok {
			os.Exit(1)
		}
		fmt.Println("configuration is valid")
	},
}
