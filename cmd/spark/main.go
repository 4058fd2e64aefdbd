package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/spark/cmd/spark/commands"
	"github.com/teranos/spark/logger"
)

var rootCmd = &cobra.Command{
	Use:   "spark",
	Short: "spark - human-in-the-loop content coach",
	Long: `spark - a content coach that drafts, you approve.

spark watches the clock, drafts posts and replies with an LLM backend,
and routes every draft through an approval card in your channel. Nothing
reaches the platform without an explicit operator signal.

Available commands:
  am      - Manage spark configuration ("I am")
  run     - Start the coach daemon (scheduler + workflows)
  task    - Run a single workflow once
  db      - Manage spark database operations
  version - Show version information

Examples:
  spark am show            # Show current configuration
  spark run                # Start the daemon
  spark task --name scan   # Run one opportunity scan now
  spark db stats           # Show database statistics`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize global logger before any command runs
		// Skip for commands that don't need logging output (like 'am show')
		if cmd.Name() != "show" {
			if err := logger.Initialize(false); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")

	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.TaskCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
