package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/itswl/balance-alert/pkg/renewal"
)

var subscriptionsCmd = &cobra.Command{
	Use:   "subscriptions",
	Short: "Show upcoming subscription renewals",
	RunE:  runSubscriptions,
}

func init() {
	rootCmd.AddCommand(subscriptionsCmd)
}

func runSubscriptions(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	subs, err := cfg.EnabledSubscriptions()
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		fmt.Println("No subscriptions configured.")
		return nil
	}

	today := time.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "NAME\tCYCLE\tNEXT RENEWAL\tDAYS LEFT\tAMOUNT\tALERT\n")

	for _, sub := range subs {
		outcome, err := renewal.Evaluate(sub, today)
		if err != nil {
			return err
		}
		amount := "-"
		if sub.Amount > 0 {
			amount = fmt.Sprintf("%s %.2f", sub.Currency, sub.Amount)
		}
		alert := ""
		if outcome.NeedAlert {
			alert = "DUE SOON"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			sub.Name, sub.Cycle,
			outcome.NextRenewal.Format("2006-01-02"),
			outcome.DaysUntilRenewal, amount, alert)
	}
	return w.Flush()
}
