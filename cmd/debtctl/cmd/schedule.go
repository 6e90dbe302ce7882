package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/warp/debt-engine/debt"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule <account-id>",
	Short: "Print the forward amortization schedule for a debt account",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchedule,
}

var nextCmd = &cobra.Command{
	Use:   "next <account-id>",
	Short: "Print the next-payment projection for a debt account",
	Args:  cobra.ExactArgs(1),
	RunE:  runNext,
}

var scheduleLimit int

func init() {
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(nextCmd)

	scheduleCmd.Flags().IntVarP(&scheduleLimit, "limit", "n", 0, "max rows to print (0 = all)")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	accountID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid account id: %w", err)
	}

	store, _, err := openStore()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	snap, err := store.GetAccountWithCurrentBalance(context.Background(), accountID)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}

	balance := snap.Account.Terms.Principal
	if snap.CurrentBalance != nil {
		balance = snap.CurrentBalance.Amount
	}

	sched := debt.GenerateSchedule(snap.Account.Terms, balance, snap.Account.State.RemainingMonths)
	if sched == nil {
		return fmt.Errorf("no schedule: account has no interest rate or no months remaining")
	}

	fmt.Printf("%s  (balance %s, monthly payment %s)\n\n",
		snap.Account.Name, balance.StringFixed(2), sched.MonthlyPayment.StringFixed(2))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tDATE\tPRINCIPAL\tINTEREST\tTOTAL\tBALANCE")
	for i, p := range sched.Payments {
		if scheduleLimit > 0 && i >= scheduleLimit {
			fmt.Fprintf(w, "...\t(%d more rows)\t\t\t\t\n", len(sched.Payments)-i)
			break
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			p.Period, p.Date,
			p.Principal.StringFixed(2), p.Interest.StringFixed(2),
			p.Total.StringFixed(2), p.RemainingBalance.StringFixed(2))
	}
	w.Flush()

	fmt.Printf("\nTotal interest: %s   Total paid: %s\n",
		sched.TotalInterest.StringFixed(2), sched.TotalPaid.StringFixed(2))
	return nil
}

func runNext(cmd *cobra.Command, args []string) error {
	accountID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid account id: %w", err)
	}

	store, _, err := openStore()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	snap, err := store.GetAccountWithCurrentBalance(context.Background(), accountID)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}

	balance := snap.Account.Terms.Principal
	if snap.CurrentBalance != nil {
		balance = snap.CurrentBalance.Amount
	}

	payment := debt.NextPayment(snap.Account.Terms, balance)
	if payment == nil {
		return fmt.Errorf("no projection: account has no interest rate")
	}

	fmt.Printf("%s next payment on %s\n", snap.Account.Name, payment.Date)
	fmt.Printf("  principal %s + interest %s = %s (balance after: %s)\n",
		payment.Principal.StringFixed(2), payment.Interest.StringFixed(2),
		payment.Total.StringFixed(2), payment.RemainingBalance.StringFixed(2))
	return nil
}
