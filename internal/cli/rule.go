package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opsgrove/stockwatch/pkg/model"
)

var ruleCmd = &cobra.Command{
	Use:   "rule",
	Short: "Manage replenishment rules",
}

var ruleAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a replenishment rule",
	Long: `Create a rule binding a bulk stock item to a sellable product type.
When the product type's net availability falls to or below the threshold,
the item's assigned worker is notified with pickup instructions.`,
	RunE: runRuleAdd,
}

var ruleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List replenishment rules",
	RunE:  runRuleList,
}

var ruleEnableCmd = &cobra.Command{
	Use:   "enable <rule-id>",
	Short: "Enable a rule",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setRuleActive(cmd, args[0], true) },
}

var ruleDisableCmd = &cobra.Command{
	Use:   "disable <rule-id>",
	Short: "Disable a rule",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setRuleActive(cmd, args[0], false) },
}

func init() {
	rootCmd.AddCommand(ruleCmd)
	ruleCmd.AddCommand(ruleAddCmd, ruleListCmd, ruleEnableCmd, ruleDisableCmd)

	ruleAddCmd.Flags().StringP("item", "i", "", "Bulk stock item name")
	ruleAddCmd.Flags().StringP("product-type", "p", "", "Sellable product type (exact, case-sensitive)")
	ruleAddCmd.Flags().Int64P("threshold", "t", 0, "Low stock threshold")
	_ = ruleAddCmd.MarkFlagRequired("item")
	_ = ruleAddCmd.MarkFlagRequired("product-type")
	_ = ruleAddCmd.MarkFlagRequired("threshold")

	ruleListCmd.Flags().Bool("all", false, "Include disabled rules")
}

func runRuleAdd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	itemName, _ := cmd.Flags().GetString("item")
	productType, _ := cmd.Flags().GetString("product-type")
	threshold, _ := cmd.Flags().GetInt64("threshold")
	if threshold < 0 {
		return fmt.Errorf("threshold must be non-negative, got %d", threshold)
	}

	item, err := store.GetItemByName(cmd.Context(), itemName)
	if err != nil {
		return err
	}

	rule := &model.ReplenishmentRule{
		ItemID:      item.ID,
		ProductType: productType,
		Threshold:   threshold,
	}
	if err := store.CreateRule(cmd.Context(), rule); err != nil {
		return fmt.Errorf("add rule: %w", err)
	}

	fmt.Printf("Added rule:\n")
	fmt.Printf("  ID:           %s\n", rule.ID)
	fmt.Printf("  Item:         %s\n", item.Name)
	fmt.Printf("  Product type: %s\n", productType)
	fmt.Printf("  Threshold:    %d\n", threshold)

	return nil
}

func runRuleList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	all, _ := cmd.Flags().GetBool("all")
	rules, err := store.ListRules(cmd.Context(), all)
	if err != nil {
		return fmt.Errorf("list rules: %w", err)
	}

	if len(rules) == 0 {
		fmt.Println("No replenishment rules. Use 'stockwatch rule add' to create one.")
		return nil
	}

	items, err := store.ListItems(cmd.Context(), true)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}
	names := make(map[string]string, len(items))
	for _, item := range items {
		names[item.ID] = item.Name
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tITEM\tPRODUCT TYPE\tTHRESHOLD\tACTIVE\n")
	for _, rule := range rules {
		itemName := names[rule.ItemID]
		if itemName == "" {
			itemName = rule.ItemID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\n",
			rule.ID, itemName, rule.ProductType, rule.Threshold, rule.Active)
	}
	w.Flush()

	return nil
}

func setRuleActive(cmd *cobra.Command, ruleID string, active bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SetRuleActive(cmd.Context(), ruleID, active); err != nil {
		return err
	}

	if active {
		fmt.Printf("Enabled rule %s\n", ruleID)
	} else {
		fmt.Printf("Disabled rule %s\n", ruleID)
	}
	return nil
}
