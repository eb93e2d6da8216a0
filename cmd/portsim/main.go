package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "portsim",
		Short: "portsim - discrete port resource allocation simulator",
		Long: `portsim simulates a commercial port: vessels arrive into a priority
queue, a berth allocator binds them to free berths, operations run to a
scheduled end, and berths periodically drop out for maintenance.

State lives in a SQLite database so a run can be stopped, inspected with
'portsim stats', and resumed.`,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(statsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
