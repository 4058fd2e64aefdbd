package commands

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/spark/am"
	"github.com/teranos/spark/errors"
	"github.com/teranos/spark/sym"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: sym.DB + " Manage spark database",
	Long: sym.DB + ` db — Manage spark database operations

Examples:
  spark db stats      # Show database statistics`,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	Long:  "Display counts of journaled posts, engagement snapshots, learned themes, and today's budget state",
	RunE:  runDbStats,
}

func init() {
	DbCmd.AddCommand(dbStatsCmd)
}

func runDbStats(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	database, err := openDatabase("")
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	var posts, replies, snapshots, themes, selections int
	rows := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM post_events WHERE kind = 'post'`, &posts},
		{`SELECT COUNT(*) FROM post_events WHERE kind = 'reply'`, &replies},
		{`SELECT COUNT(*) FROM metrics_snapshots`, &snapshots},
		{`SELECT COUNT(*) FROM theme_weights`, &themes},
		{`SELECT COUNT(*) FROM selections`, &selections},
	}
	for _, r := range rows {
		if err := database.QueryRow(r.query).Scan(r.dest); err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("failed to query storage stats: %w", err)
		}
	}

	var budgetDate string
	var spent float64
	var drafts int
	err = database.QueryRow(`SELECT date, spend_usd, drafts FROM budget_state ORDER BY date DESC LIMIT 1`).
		Scan(&budgetDate, &spent, &drafts)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to query budget state: %w", err)
	}

	fmt.Printf("%s Database Statistics\n", sym.DB)
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
	fmt.Printf("Database Path:    %s\n", cfg.Database.Path)
	fmt.Printf("Published Posts:  %d\n", posts)
	fmt.Printf("Published Replies:%d\n", replies)
	fmt.Printf("Snapshots:        %d\n", snapshots)
	fmt.Printf("Themes Tracked:   %d\n", themes)
	fmt.Printf("Selections:       %d\n", selections)
	if budgetDate != "" {
		fmt.Printf("\nBudget (%s): $%.2f spent across %d drafts (cap $%.2f)\n",
			budgetDate, spent, drafts, cfg.Coach.DailyBudgetUSD)
	}
	return nil
}
