package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/opsgrove/stockwatch/pkg/imaging"
	"github.com/opsgrove/stockwatch/pkg/model"
)

var itemCmd = &cobra.Command{
	Use:   "item",
	Short: "Manage bulk stock items",
}

var itemAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a bulk stock item",
	RunE:  runItemAdd,
}

var itemListCmd = &cobra.Command{
	Use:   "list",
	Short: "List bulk stock items",
	RunE:  runItemList,
}

var itemQuantityCmd = &cobra.Command{
	Use:   "set-quantity <name>",
	Short: "Set the current quantity of an item",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemQuantity,
}

var itemAssignCmd = &cobra.Command{
	Use:   "assign <name>",
	Short: "Assign or clear the responsible worker",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemAssign,
}

var itemProcessCmd = &cobra.Command{
	Use:   "process <name>",
	Short: "Mark an item as processed",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemProcess,
}

var itemDeactivateCmd = &cobra.Command{
	Use:   "deactivate <name>",
	Short: "Deactivate an item (soft delete)",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemDeactivate,
}

var itemAttachCmd = &cobra.Command{
	Use:   "attach <name>",
	Short: "Attach pickup-instruction media to an item",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemAttach,
}

func init() {
	rootCmd.AddCommand(itemCmd)
	itemCmd.AddCommand(itemAddCmd, itemListCmd, itemQuantityCmd, itemAssignCmd,
		itemProcessCmd, itemDeactivateCmd, itemAttachCmd)

	itemAddCmd.Flags().StringP("name", "n", "", "Item name")
	itemAddCmd.Flags().Float64P("quantity", "q", 0, "Initial quantity")
	itemAddCmd.Flags().StringP("unit", "u", "", "Unit of measure (e.g. kg, boxes)")
	itemAddCmd.Flags().StringP("instructions", "i", "", "Pickup instructions for the worker")
	itemAddCmd.Flags().StringP("worker", "w", "", "Assigned worker username (optional)")
	_ = itemAddCmd.MarkFlagRequired("name")
	_ = itemAddCmd.MarkFlagRequired("unit")
	_ = itemAddCmd.MarkFlagRequired("instructions")

	itemListCmd.Flags().Bool("all", false, "Include inactive items")

	itemQuantityCmd.Flags().Float64P("quantity", "q", 0, "New quantity")
	_ = itemQuantityCmd.MarkFlagRequired("quantity")

	itemAssignCmd.Flags().StringP("worker", "w", "", "Worker username (empty clears the assignment)")

	itemProcessCmd.Flags().Bool("undo", false, "Clear the processed flag instead")

	itemAttachCmd.Flags().String("kind", "photo", "Media kind (photo or video)")
	itemAttachCmd.Flags().String("file-id", "", "Cached transport file identifier")
	itemAttachCmd.Flags().String("file", "", "Local file to process and store")
}

func runItemAdd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	name, _ := cmd.Flags().GetString("name")
	quantity, _ := cmd.Flags().GetFloat64("quantity")
	unit, _ := cmd.Flags().GetString("unit")
	instructions, _ := cmd.Flags().GetString("instructions")
	workerName, _ := cmd.Flags().GetString("worker")

	item := &model.BulkStockItem{
		Name:               name,
		Quantity:           quantity,
		Unit:               unit,
		PickupInstructions: instructions,
	}

	if workerName != "" {
		worker, err := store.GetWorkerByUsername(cmd.Context(), workerName)
		if err != nil {
			return fmt.Errorf("resolve worker %q: %w", workerName, err)
		}
		item.AssignedWorkerID = worker.ID
	}

	if err := store.CreateItem(cmd.Context(), item); err != nil {
		return fmt.Errorf("add item: %w", err)
	}

	fmt.Printf("Added item:\n")
	fmt.Printf("  ID:       %s\n", item.ID)
	fmt.Printf("  Name:     %s\n", item.Name)
	fmt.Printf("  Quantity: %g %s\n", item.Quantity, item.Unit)
	if workerName != "" {
		fmt.Printf("  Worker:   %s\n", workerName)
	}

	return nil
}

func runItemList(cmd *cobra.Command, _ []string) error {
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
	items, err := store.ListItems(cmd.Context(), all)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}

	if len(items) == 0 {
		fmt.Println("No bulk stock items. Use 'stockwatch item add' to create one.")
		return nil
	}

	workers, err := store.ListWorkers(cmd.Context())
	if err != nil {
		return fmt.Errorf("list workers: %w", err)
	}
	usernames := make(map[string]string, len(workers))
	for _, w := range workers {
		usernames[w.ID] = w.Username
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "NAME\tQUANTITY\tUNIT\tWORKER\tACTIVE\tPROCESSED\n")
	for _, item := range items {
		worker := "-"
		if item.AssignedWorkerID != "" {
			if name, ok := usernames[item.AssignedWorkerID]; ok {
				worker = name
			} else {
				worker = item.AssignedWorkerID
			}
		}
		fmt.Fprintf(w, "%s\t%g\t%s\t%s\t%t\t%t\n",
			item.Name, item.Quantity, item.Unit, worker, item.Active, item.Processed)
	}
	w.Flush()

	return nil
}

func runItemQuantity(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	item, err := store.GetItemByName(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	quantity, _ := cmd.Flags().GetFloat64("quantity")
	if quantity < 0 {
		return fmt.Errorf("quantity must be non-negative, got %g", quantity)
	}

	if err := store.UpdateItemQuantity(cmd.Context(), item.ID, quantity); err != nil {
		return fmt.Errorf("set quantity: %w", err)
	}

	fmt.Printf("Set %s quantity to %g %s\n", item.Name, quantity, item.Unit)
	return nil
}

func runItemAssign(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	item, err := store.GetItemByName(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	workerName, _ := cmd.Flags().GetString("worker")
	workerID := ""
	if workerName != "" {
		worker, err := store.GetWorkerByUsername(cmd.Context(), workerName)
		if err != nil {
			return fmt.Errorf("resolve worker %q: %w", workerName, err)
		}
		workerID = worker.ID
	}

	if err := store.AssignWorker(cmd.Context(), item.ID, workerID); err != nil {
		return fmt.Errorf("assign worker: %w", err)
	}

	if workerID == "" {
		fmt.Printf("Cleared worker assignment for %s\n", item.Name)
	} else {
		fmt.Printf("Assigned %s to %s\n", item.Name, workerName)
	}
	return nil
}

func runItemProcess(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	item, err := store.GetItemByName(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	undo, _ := cmd.Flags().GetBool("undo")
	if err := store.SetItemProcessed(cmd.Context(), item.ID, !undo); err != nil {
		return fmt.Errorf("set processed: %w", err)
	}

	if undo {
		fmt.Printf("Cleared processed flag for %s\n", item.Name)
	} else {
		fmt.Printf("Marked %s as processed\n", item.Name)
	}
	return nil
}

func runItemDeactivate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	item, err := store.GetItemByName(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if err := store.DeactivateItem(cmd.Context(), item.ID); err != nil {
		return fmt.Errorf("deactivate item: %w", err)
	}

	fmt.Printf("Deactivated %s (rules on it stop being evaluated)\n", item.Name)
	return nil
}

func runItemAttach(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	item, err := store.GetItemByName(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	kindFlag, _ := cmd.Flags().GetString("kind")
	kind := model.MediaKind(kindFlag)
	if kind != model.MediaPhoto && kind != model.MediaVideo {
		return fmt.Errorf("unknown media kind %q (photo or video)", kindFlag)
	}

	fileID, _ := cmd.Flags().GetString("file-id")
	file, _ := cmd.Flags().GetString("file")
	if fileID == "" && file == "" {
		return fmt.Errorf("either --file-id or --file is required")
	}

	media := &model.BulkStockMedia{
		ItemID: item.ID,
		Kind:   kind,
		FileID: fileID,
		Path:   file,
	}

	// Photos get validated, downscaled and copied into the media directory.
	if file != "" && kind == model.MediaPhoto {
		src, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("open photo: %w", err)
		}
		photo, err := imaging.Process(src)
		src.Close()
		if err != nil {
			return err
		}

		if err := os.MkdirAll(cfg.Media.Dir, 0o755); err != nil {
			return fmt.Errorf("create media directory: %w", err)
		}
		dest := filepath.Join(cfg.Media.Dir, uuid.New().String()+".jpg")
		if err := os.WriteFile(dest, photo.Data, 0o644); err != nil {
			return fmt.Errorf("store photo: %w", err)
		}
		media.Path = dest
	}

	if err := store.AddMedia(cmd.Context(), media); err != nil {
		return fmt.Errorf("attach media: %w", err)
	}

	fmt.Printf("Attached %s to %s\n", kind, item.Name)
	if media.Path != "" {
		fmt.Printf("  Stored at: %s\n", media.Path)
	}
	return nil
}
