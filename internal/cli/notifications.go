package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Show notification history",
	RunE:  runNotifications,
}

func init() {
	rootCmd.AddCommand(notificationsCmd)
	notificationsCmd.Flags().StringP("rule", "r", "", "Filter by rule ID")
	notificationsCmd.Flags().IntP("limit", "l", 20, "Maximum records to show")
}

func runNotifications(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ruleID, _ := cmd.Flags().GetString("rule")
	limit, _ := cmd.Flags().GetInt("limit")

	records, err := store.ListNotifications(cmd.Context(), ruleID, limit)
	if err != nil {
		return fmt.Errorf("list notifications: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No notifications sent yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SENT AT\tRULE\tRECIPIENT\tSTOCK\tTHRESHOLD\n")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
			r.SentAt.Format(time.RFC3339), r.RuleID, r.Recipient, r.StockLevel, r.Threshold)
	}
	w.Flush()

	return nil
}
