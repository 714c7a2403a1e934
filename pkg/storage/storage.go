package storage

import (
	"context"
	"errors"

	"github.com/opsgrove/stockwatch/pkg/model"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines the persistence layer for bulk stock items, replenishment
// rules, workers, the notification ledger, and the inventory read surface.
type Storage interface {
	// CreateItem persists a new bulk stock item.
	CreateItem(ctx context.Context, item *model.BulkStockItem) error

	// GetItem retrieves an item by ID.
	GetItem(ctx context.Context, id string) (*model.BulkStockItem, error)

	// GetItemByName retrieves an item by its unique name.
	GetItemByName(ctx context.Context, name string) (*model.BulkStockItem, error)

	// ListItems returns items ordered by name. Inactive items are excluded
	// unless includeInactive is set.
	ListItems(ctx context.Context, includeInactive bool) ([]model.BulkStockItem, error)

	// UpdateItemQuantity sets the current quantity of an item.
	UpdateItemQuantity(ctx context.Context, id string, quantity float64) error

	// AssignWorker sets or clears (workerID == "") the assigned worker.
	AssignWorker(ctx context.Context, itemID, workerID string) error

	// SetItemProcessed flags an item as processed or not.
	SetItemProcessed(ctx context.Context, id string, processed bool) error

	// DeactivateItem soft-deletes an item. Its rules stop being evaluated
	// but historical records stay intact.
	DeactivateItem(ctx context.Context, id string) error

	// AddMedia attaches a media file to an item.
	AddMedia(ctx context.Context, media *model.BulkStockMedia) error

	// ListMedia returns an item's media in creation order.
	ListMedia(ctx context.Context, itemID string) ([]model.BulkStockMedia, error)

	// CreateWorker persists a new worker.
	CreateWorker(ctx context.Context, worker *model.Worker) error

	// GetWorker retrieves a worker by ID.
	GetWorker(ctx context.Context, id string) (*model.Worker, error)

	// GetWorkerByUsername retrieves a worker by unique username.
	GetWorkerByUsername(ctx context.Context, username string) (*model.Worker, error)

	// ListWorkers returns all workers ordered by username.
	ListWorkers(ctx context.Context) ([]model.Worker, error)

	// CreateRule persists a new replenishment rule.
	CreateRule(ctx context.Context, rule *model.ReplenishmentRule) error

	// GetRule retrieves a rule by ID.
	GetRule(ctx context.Context, id string) (*model.ReplenishmentRule, error)

	// ListRules returns all rules ordered by creation time.
	ListRules(ctx context.Context, includeInactive bool) ([]model.ReplenishmentRule, error)

	// SetRuleActive enables or disables a rule.
	SetRuleActive(ctx context.Context, id string, active bool) error

	// ListActiveRules returns active rules whose parent item is also active,
	// each with the item resolved, in a stable order.
	ListActiveRules(ctx context.Context) ([]model.ActiveRule, error)

	// LatestNotification returns the most recent notification record for a
	// rule, or ErrNotFound if none was ever sent.
	LatestNotification(ctx context.Context, ruleID string) (*model.NotificationRecord, error)

	// RecordNotification appends a notification record. Records are never
	// updated or deleted.
	RecordNotification(ctx context.Context, record *model.NotificationRecord) error

	// ListNotifications returns records newest first, optionally filtered by
	// rule. limit <= 0 means no limit.
	ListNotifications(ctx context.Context, ruleID string, limit int) ([]model.NotificationRecord, error)

	// AvailableStock returns the net availability of a sellable product type:
	// SUM(available) - SUM(reserved) over its inventory entries, clamped to
	// zero. A product type with no entries has stock 0.
	AvailableStock(ctx context.Context, productType string) (int64, error)

	// AddInventory appends an inventory entry for a product type. Used by
	// seeds and tests; live inventory is produced elsewhere.
	AddInventory(ctx context.Context, entry *model.InventoryEntry) error

	// Close releases resources.
	Close() error
}
