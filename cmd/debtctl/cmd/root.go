package cmd

import (
	"github.com/spf13/cobra"

	"github.com/warp/debt-engine/debt"
	"github.com/warp/debt-engine/id"
	"github.com/warp/debt-engine/store/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   "debtctl",
	Short: "Inspect and drive the family debt engine from the command line",
	Long: `Debtctl operates directly on the debt engine database.

It provides tools for:
  - Printing amortization schedules and next-payment projections
  - Applying monthly accruals to a single account
  - Running pending updates across a whole family
  - Summarizing a family's debts`,
}

var dbPath string

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "./data/debts.db", "path to SQLite database")
}

// openStore opens the database and builds an engine over it.
// Callers must Close the returned store.
func openStore() (*sqlite.Store, *debt.Engine, error) {
	store, err := sqlite.New(dbPath)
	if err != nil {
		return nil, nil, err
	}
	return store, debt.NewEngine(store, id.New), nil
}
