package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/vigil/am"
	"github.com/example/vigil/errors"
	"github.com/example/vigil/watch"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the vigil database",
	Long: `Database operations.

Examples:
  vigil db stats    # Show watch counts and database location`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	Long:  "Display watch counts per status and the database location.",
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

	counts := map[string]int{}
	rows, err := database.Query(`SELECT status, COUNT(*) FROM watches GROUP BY status`)
	if err != nil {
		return fmt.Errorf("failed to query watch stats: %w", err)
	}
	defer rows.Close()

	total := 0
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return fmt.Errorf("failed to scan watch stats: %w", err)
		}
		counts[status] = count
		total += count
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read watch stats: %w", err)
	}

	fmt.Printf("Database Statistics\n")
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
	fmt.Printf("Database Path: %s\n", cfg.DatabasePath())
	fmt.Printf("Total Watches: %d\n\n", total)
	for _, status := range []string{
		watch.StatusActive,
		watch.StatusFired,
		watch.StatusExpired,
		watch.StatusCancelled,
	} {
		fmt.Printf("  %-10s %d\n", status, counts[status])
	}

	return nil
}
