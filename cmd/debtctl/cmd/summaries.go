package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var summariesCmd = &cobra.Command{
	Use:   "summaries <family-id>",
	Short: "Summarize a family's debt accounts",
	Args:  cobra.ExactArgs(1),
	RunE:  runSummaries,
}

func init() {
	rootCmd.AddCommand(summariesCmd)
}

func runSummaries(cmd *cobra.Command, args []string) error {
	familyID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid family id: %w", err)
	}

	store, engine, err := openStore()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	summaries, err := engine.DebtSummaries(context.Background(), familyID)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("No debt accounts.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tBALANCE\tMONTHS LEFT\tNEXT PAYMENT\tPAYOFF\tINTEREST LEFT")
	for _, s := range summaries {
		next := "-"
		if s.NextPayment != nil {
			next = s.NextPayment.Total.StringFixed(2)
		}
		payoff := "-"
		if s.PayoffDate != nil {
			payoff = s.PayoffDate.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			s.Name, s.CurrentBalance.StringFixed(2), s.RemainingMonths,
			next, payoff, s.TotalInterestRemaining.StringFixed(2))
	}
	return w.Flush()
}
