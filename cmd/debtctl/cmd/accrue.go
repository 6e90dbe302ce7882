package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/warp/debt-engine/debt"
)

var accrueCmd = &cobra.Command{
	Use:   "accrue <account-id>",
	Short: "Apply one monthly accrual to a debt account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccrue,
}

var runUpdatesCmd = &cobra.Command{
	Use:   "run-updates <family-id>",
	Short: "Apply all pending monthly accruals for a family",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunUpdates,
}

func init() {
	rootCmd.AddCommand(accrueCmd)
	rootCmd.AddCommand(runUpdatesCmd)
}

func runAccrue(cmd *cobra.Command, args []string) error {
	accountID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid account id: %w", err)
	}

	store, engine, err := openStore()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	result, err := engine.ApplyMonthlyUpdate(context.Background(), accountID)
	if err != nil {
		var notYet *debt.NotYetDueError
		if errors.As(err, &notYet) {
			fmt.Printf("Not due yet: next update on %s (%d days remaining)\n",
				notYet.DueDate, notYet.DaysRemaining)
			return nil
		}
		return err
	}

	fmt.Printf("Applied accrual for %s\n", result.AccountID)
	fmt.Printf("  interest added %s, new balance %s, %d months remaining\n",
		result.InterestAdded.StringFixed(2), result.NewBalance.StringFixed(2),
		result.RemainingMonths)
	return nil
}

func runRunUpdates(cmd *cobra.Command, args []string) error {
	familyID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid family id: %w", err)
	}

	store, engine, err := openStore()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	result, err := engine.RunMonthlyUpdatesForFamily(context.Background(), familyID)
	if err != nil {
		return err
	}

	fmt.Printf("Applied %d accrual(s)\n", result.UpdatedCount)
	for _, r := range result.Results {
		fmt.Printf("  %s: +%s interest, balance %s\n",
			r.AccountID, r.InterestAdded.StringFixed(2), r.NewBalance.StringFixed(2))
	}
	for _, e := range result.Errors {
		var notYet *debt.NotYetDueError
		if errors.As(e.Err, &notYet) {
			fmt.Printf("  %s: not due until %s\n", e.AccountID, notYet.DueDate)
			continue
		}
		fmt.Printf("  %s: ERROR %v\n", e.AccountID, e.Err)
	}
	return nil
}
