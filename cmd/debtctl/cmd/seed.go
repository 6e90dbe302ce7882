package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/warp/debt-engine/factory"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with a demo family and its debts",
	Args:  cobra.NoArgs,
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	store, _, err := openStore()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	familyID := uuid.New()
	ctx := context.Background()

	for _, account := range factory.DemoLoans(familyID) {
		if err := store.CreateAccount(ctx, account); err != nil {
			return fmt.Errorf("create %s: %w", account.Name, err)
		}
		fmt.Printf("Created %-12s %s\n", account.Name, account.ID)
	}

	fmt.Printf("\nFamily: %s\n", familyID)
	fmt.Printf("Try: debtctl summaries %s --db %s\n", familyID, dbPath)
	return nil
}
