package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/spark/am"
	"github.com/teranos/spark/logger"
	"github.com/teranos/spark/sym"
)

var taskName string

// TaskCmd runs a single workflow once, outside the scheduler
var TaskCmd = &cobra.Command{
	Use:   "task",
	Short: sym.Coach + " Run a single workflow once",
	Long: sym.Coach + ` Run one named workflow immediately and exit.

Workflow names match the scheduler entries:
  suggest    - Morning suggestion session
  afternoon  - Build-in-public draft session
  scan       - Opportunity scan with reply drafting
  summary    - Daily summary
  weekly     - Weekly brief
  metrics    - Engagement snapshot sweep

One extra name is manual-only:
  voice      - Style pattern report for the watched handles

Workflow-internal failures (a failed generation, an unreachable account)
are contained and logged, matching daemon behavior; the command only
fails on setup errors.

Example:
  spark task --name scan`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := am.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		database, err := openDatabase("")
		if err != nil {
			return err
		}
		defer database.Close()

		c := buildCoach(cfg, database)
		if err := c.RunTask(context.Background(), taskName); err != nil {
			// report but exit clean, like a scheduled run would
			logger.Logger.Errorw("Task failed", logger.FieldTask, taskName, logger.FieldError, err)
		}
		return nil
	},
}

func init() {
	TaskCmd.Flags().StringVar(&taskName, "name", "", "Workflow to run (required)")
	TaskCmd.MarkFlagRequired("name")
}
