package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opsgrove/stockwatch/pkg/model"
	"github.com/opsgrove/stockwatch/pkg/storage"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Import workers, items, rules and inventory from a YAML file",
	Long: `Import a declarative setup file. Existing workers and items are matched
by username and name and reused rather than duplicated.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().StringP("file", "f", "", "Seed file path")
	_ = seedCmd.MarkFlagRequired("file")
}

type seedFile struct {
	Workers []struct {
		Username string `yaml:"username"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"workers"`
	Items []struct {
		Name         string  `yaml:"name"`
		Quantity     float64 `yaml:"quantity"`
		Unit         string  `yaml:"unit"`
		Instructions string  `yaml:"instructions"`
		Worker       string  `yaml:"worker"`
		Media        []struct {
			Kind   string `yaml:"kind"`
			FileID string `yaml:"file_id"`
			Path   string `yaml:"path"`
		} `yaml:"media"`
	} `yaml:"items"`
	Rules []struct {
		Item        string `yaml:"item"`
		ProductType string `yaml:"product_type"`
		Threshold   int64  `yaml:"threshold"`
	} `yaml:"rules"`
	Inventory []struct {
		ProductType string `yaml:"product_type"`
		Available   int64  `yaml:"available"`
		Reserved    int64  `yaml:"reserved"`
	} `yaml:"inventory"`
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("file")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()

	workers := make(map[string]string)
	for _, w := range seed.Workers {
		id, err := seedWorker(ctx, store, w.Username, w.ChatID)
		if err != nil {
			return err
		}
		workers[w.Username] = id
	}

	items := make(map[string]string)
	for _, it := range seed.Items {
		workerID := ""
		if it.Worker != "" {
			id, ok := workers[it.Worker]
			if !ok {
				existing, err := store.GetWorkerByUsername(ctx, it.Worker)
				if err != nil {
					return fmt.Errorf("item %q references unknown worker %q", it.Name, it.Worker)
				}
				id = existing.ID
			}
			workerID = id
		}

		itemID, err := seedItem(ctx, store, it.Name, it.Quantity, it.Unit, it.Instructions, workerID)
		if err != nil {
			return err
		}
		items[it.Name] = itemID

		for _, m := range it.Media {
			media := &model.BulkStockMedia{
				ItemID: itemID,
				Kind:   model.MediaKind(m.Kind),
				FileID: m.FileID,
				Path:   m.Path,
			}
			if err := store.AddMedia(ctx, media); err != nil {
				return fmt.Errorf("seed media for %q: %w", it.Name, err)
			}
		}
	}

	for _, r := range seed.Rules {
		itemID, ok := items[r.Item]
		if !ok {
			existing, err := store.GetItemByName(ctx, r.Item)
			if err != nil {
				return fmt.Errorf("rule references unknown item %q", r.Item)
			}
			itemID = existing.ID
		}
		rule := &model.ReplenishmentRule{
			ItemID:      itemID,
			ProductType: r.ProductType,
			Threshold:   r.Threshold,
		}
		if err := store.CreateRule(ctx, rule); err != nil {
			return fmt.Errorf("seed rule %s/%s: %w", r.Item, r.ProductType, err)
		}
	}

	for _, inv := range seed.Inventory {
		entry := &model.InventoryEntry{
			ProductType: inv.ProductType,
			Available:   inv.Available,
			Reserved:    inv.Reserved,
		}
		if err := store.AddInventory(ctx, entry); err != nil {
			return fmt.Errorf("seed inventory %q: %w", inv.ProductType, err)
		}
	}

	fmt.Printf("Seeded %d workers, %d items, %d rules, %d inventory entries\n",
		len(seed.Workers), len(seed.Items), len(seed.Rules), len(seed.Inventory))
	return nil
}

func seedWorker(ctx context.Context, store storage.Storage, username, chatID string) (string, error) {
	existing, err := store.GetWorkerByUsername(ctx, username)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}

	worker := &model.Worker{Username: username, ChatID: chatID}
	if err := store.CreateWorker(ctx, worker); err != nil {
		return "", fmt.Errorf("seed worker %q: %w", username, err)
	}
	return worker.ID, nil
}

func seedItem(ctx context.Context, store storage.Storage, name string, quantity float64, unit, instructions, workerID string) (string, error) {
	existing, err := store.GetItemByName(ctx, name)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}

	item := &model.BulkStockItem{
		Name:               name,
		Quantity:           quantity,
		Unit:               unit,
		PickupInstructions: instructions,
		AssignedWorkerID:   workerID,
	}
	if err := store.CreateItem(ctx, item); err != nil {
		return "", fmt.Errorf("seed item %q: %w", name, err)
	}
	return item.ID, nil
}
