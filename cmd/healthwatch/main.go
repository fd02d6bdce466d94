// Command healthwatch runs the periodic, fan-out HTTP(S) health-check
// engine: run/validate/snapshot/version subcommands over the probe
// pipeline in internal/.
package main

import "github.com/healthwatch/healthwatch/cmd/healthwatch/cmd"

func main() {
	cmd.Execute()
}
