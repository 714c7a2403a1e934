package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opsgrove/stockwatch/pkg/model"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Manage notification workers",
}

var workerAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a worker",
	RunE:  runWorkerAdd,
}

var workerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workers",
	RunE:  runWorkerList,
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.AddCommand(workerAddCmd, workerListCmd)

	workerAddCmd.Flags().StringP("username", "u", "", "Unique worker username")
	workerAddCmd.Flags().StringP("chat-id", "c", "", "Messaging identity (e.g. Telegram chat ID)")
	_ = workerAddCmd.MarkFlagRequired("username")
	_ = workerAddCmd.MarkFlagRequired("chat-id")
}

func runWorkerAdd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	username, _ := cmd.Flags().GetString("username")
	chatID, _ := cmd.Flags().GetString("chat-id")

	worker := &model.Worker{Username: username, ChatID: chatID}
	if err := store.CreateWorker(cmd.Context(), worker); err != nil {
		return fmt.Errorf("add worker: %w", err)
	}

	fmt.Printf("Added worker %s (chat %s)\n", username, chatID)
	return nil
}

func runWorkerList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	workers, err := store.ListWorkers(cmd.Context())
	if err != nil {
		return fmt.Errorf("list workers: %w", err)
	}

	if len(workers) == 0 {
		fmt.Println("No workers registered. Use 'stockwatch worker add' to register one.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "USERNAME\tCHAT ID\tACTIVE\n")
	for _, worker := range workers {
		fmt.Fprintf(w, "%s\t%s\t%t\n", worker.Username, worker.ChatID, worker.Active)
	}
	w.Flush()

	return nil
}
