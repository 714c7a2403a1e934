package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsgrove/stockwatch/pkg/model"
)

var stockCmd = &cobra.Command{
	Use:   "stock",
	Short: "Query and adjust sellable-product inventory",
}

var stockShowCmd = &cobra.Command{
	Use:   "show <product-type>",
	Short: "Show net availability for a product type",
	Args:  cobra.ExactArgs(1),
	RunE:  runStockShow,
}

// Inventory is normally produced by the sales system; this exists for local
// setups and testing.
var stockAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an inventory entry",
	RunE:  runStockAdd,
}

func init() {
	rootCmd.AddCommand(stockCmd)
	stockCmd.AddCommand(stockShowCmd, stockAddCmd)

	stockAddCmd.Flags().StringP("product-type", "p", "", "Sellable product type")
	stockAddCmd.Flags().Int64P("available", "a", 0, "Available quantity")
	stockAddCmd.Flags().Int64P("reserved", "r", 0, "Reserved quantity")
	_ = stockAddCmd.MarkFlagRequired("product-type")
}

func runStockShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	stock, err := store.AvailableStock(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d available\n", args[0], stock)
	return nil
}

func runStockAdd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	productType, _ := cmd.Flags().GetString("product-type")
	available, _ := cmd.Flags().GetInt64("available")
	reserved, _ := cmd.Flags().GetInt64("reserved")

	entry := &model.InventoryEntry{
		ProductType: productType,
		Available:   available,
		Reserved:    reserved,
	}
	if err := store.AddInventory(cmd.Context(), entry); err != nil {
		return err
	}

	stock, err := store.AvailableStock(cmd.Context(), productType)
	if err != nil {
		return err
	}
	fmt.Printf("Added inventory entry; %s now at %d available\n", productType, stock)
	return nil
}
