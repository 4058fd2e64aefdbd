package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/spark/am"
	"github.com/teranos/spark/coach/schedule"
	"github.com/teranos/spark/logger"
	"github.com/teranos/spark/sym"
)

// RunCmd starts the coach daemon: the minute-tick scheduler plus every
// configured workflow.
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: sym.Pulse + " Start the coach daemon",
	Long: sym.Pulse + ` Start the coach daemon in foreground mode.

The daemon will:
- Tick once per minute and fire due workflows
- Post approval cards to the configured channel
- Enforce the daily generation budget
- Pick up config edits without a restart
- Run until interrupted (Ctrl+C)

Example:
  spark run`,
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
		offset := time.Duration(cfg.Coach.UTCOffsetMinutes) * time.Minute
		scheduler := schedule.NewScheduler(c.Entries(), offset, logger.Logger)
		scheduler.Start()

		// Hot-reload budget, schedule, and watchlist edits. A missing
		// config file is fine; we just run on defaults without a watcher.
		watcher, err := am.NewConfigWatcher(am.UserConfigPath())
		if err != nil {
			logger.Logger.Debugw("Config watcher disabled", logger.FieldError, err)
		} else {
			watcher.OnReload(func(next *am.Config) error {
				if err := c.ApplyConfig(next); err != nil {
					logger.Logger.Warnw("Rejected invalid config edit", logger.FieldError, err)
					return err
				}
				return nil
			})
			watcher.Start()
			defer watcher.Stop()
		}

		fmt.Printf("%s Coach daemon started\n", sym.PulseOpen)
		fmt.Printf("  Channel:      %s\n", cfg.Slack.ChannelID)
		fmt.Printf("  UTC offset:   %+dmin\n", cfg.Coach.UTCOffsetMinutes)
		fmt.Printf("  Daily budget: $%.2f\n", cfg.Coach.DailyBudgetUSD)
		fmt.Printf("\n%s Press Ctrl+C to stop\n\n", sym.Pulse)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		fmt.Printf("\n%s Stopping...\n", sym.PulseClose)
		scheduler.Stop()
		fmt.Printf("%s Coach daemon stopped\n", sym.PulseClose)
		return nil
	},
}
