package model

import "time"

// MediaKind identifies the type of a pickup-instruction attachment.
type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

// BulkStockItem is a raw-material source whose depletion triggers worker
// notifications. Items are deactivated rather than deleted so historical
// rules and notification records keep valid references.
type BulkStockItem struct {
	ID                 string    `json:"id" db:"id"`
	Name               string    `json:"name" db:"name"`
	Quantity           float64   `json:"quantity" db:"quantity"`
	Unit               string    `json:"unit" db:"unit"`
	PickupInstructions string    `json:"pickup_instructions" db:"pickup_instructions"`
	AssignedWorkerID   string    `json:"assigned_worker_id,omitempty" db:"assigned_worker_id"`
	Active             bool      `json:"active" db:"active"`
	Processed          bool      `json:"processed" db:"processed"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// BulkStockMedia is an attachment shown alongside pickup instructions.
// Immutable once created; removed only with its parent item.
type BulkStockMedia struct {
	ID        string    `json:"id" db:"id"`
	ItemID    string    `json:"item_id" db:"item_id"`
	Kind      MediaKind `json:"kind" db:"kind"`
	FileID    string    `json:"file_id" db:"file_id"`
	Path      string    `json:"path,omitempty" db:"path"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ReplenishmentRule binds a bulk stock item to a sellable product type.
// When the product type's availability falls to or below Threshold, the
// item's assigned worker is notified. Product type matching is exact and
// case-sensitive.
type ReplenishmentRule struct {
	ID          string    `json:"id" db:"id"`
	ItemID      string    `json:"item_id" db:"item_id"`
	ProductType string    `json:"product_type" db:"product_type"`
	Threshold   int64     `json:"threshold" db:"threshold"`
	Active      bool      `json:"active" db:"active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ActiveRule is a rule joined with its parent item, as returned by the
// rule store for evaluation. Both sides are guaranteed active.
type ActiveRule struct {
	Rule ReplenishmentRule `json:"rule"`
	Item BulkStockItem     `json:"item"`
}

// NotificationRecord logs one delivered low-stock alert. Records are
// append-only: the most recent record per rule anchors the cooldown.
type NotificationRecord struct {
	ID         string    `json:"id" db:"id"`
	RuleID     string    `json:"rule_id" db:"rule_id"`
	WorkerID   string    `json:"worker_id,omitempty" db:"worker_id"`
	Recipient  string    `json:"recipient" db:"recipient"`
	StockLevel int64     `json:"stock_level" db:"stock_level"`
	Threshold  int64     `json:"threshold" db:"threshold"`
	SentAt     time.Time `json:"sent_at" db:"sent_at"`
}

// Worker is a notification target with a messaging identity.
type Worker struct {
	ID        string    `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	ChatID    string    `json:"chat_id" db:"chat_id"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// InventoryEntry is one row of the sellable-product inventory the monitor
// reads. Net availability of a product type is SUM(available) - SUM(reserved)
// over its entries. Inventory is produced elsewhere; this module only reads
// it (seeds and tests may write it).
type InventoryEntry struct {
	ProductType string `json:"product_type" db:"product_type"`
	Available   int64  `json:"available" db:"available"`
	Reserved    int64  `json:"reserved" db:"reserved"`
}
