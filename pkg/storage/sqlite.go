package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/opsgrove/stockwatch/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLite implements the Storage interface using an SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for concurrent reads, foreign keys for cascades
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) CreateItem(ctx context.Context, item *model.BulkStockItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	item.Active = true

	var worker any
	if item.AssignedWorkerID != "" {
		worker = item.AssignedWorkerID
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bulk_stock_items (id, name, quantity, unit, pickup_instructions, assigned_worker_id, active, processed, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?, ?)`,
		item.ID, item.Name, item.Quantity, item.Unit, item.PickupInstructions,
		worker, item.Processed, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert bulk stock item: %w", err)
	}
	return nil
}

const itemColumns = `id, name, quantity, unit, pickup_instructions, assigned_worker_id, active, processed, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }) (*model.BulkStockItem, error) {
	var item model.BulkStockItem
	var worker sql.NullString
	err := row.Scan(&item.ID, &item.Name, &item.Quantity, &item.Unit, &item.PickupInstructions,
		&worker, &item.Active, &item.Processed, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	item.AssignedWorkerID = worker.String
	return &item, nil
}

func (s *SQLite) GetItem(ctx context.Context, id string) (*model.BulkStockItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM bulk_stock_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("item %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

func (s *SQLite) GetItemByName(ctx context.Context, name string) (*model.BulkStockItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM bulk_stock_items WHERE name = ?`, name)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("item %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get item by name: %w", err)
	}
	return item, nil
}

func (s *SQLite) ListItems(ctx context.Context, includeInactive bool) ([]model.BulkStockItem, error) {
	query := `SELECT ` + itemColumns + ` FROM bulk_stock_items`
	if !includeInactive {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []model.BulkStockItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item row: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *SQLite) UpdateItemQuantity(ctx context.Context, id string, quantity float64) error {
	return s.updateItem(ctx, id, "quantity = ?", quantity)
}

func (s *SQLite) AssignWorker(ctx context.Context, itemID, workerID string) error {
	var worker any
	if workerID != "" {
		worker = workerID
	}
	return s.updateItem(ctx, itemID, "assigned_worker_id = ?", worker)
}

func (s *SQLite) SetItemProcessed(ctx context.Context, id string, processed bool) error {
	return s.updateItem(ctx, id, "processed = ?", processed)
}

func (s *SQLite) DeactivateItem(ctx context.Context, id string) error {
	return s.updateItem(ctx, id, "active = 0")
}

func (s *SQLite) updateItem(ctx context.Context, id, set string, args ...any) error {
	args = append(args, time.Now().UTC(), id)
	result, err := s.db.ExecContext(ctx,
		`UPDATE bulk_stock_items SET `+set+`, updated_at = ? WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("item %q: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLite) AddMedia(ctx context.Context, media *model.BulkStockMedia) error {
	if media.ID == "" {
		media.ID = uuid.New().String()
	}
	if media.CreatedAt.IsZero() {
		media.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bulk_stock_media (id, item_id, kind, file_id, path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		media.ID, media.ItemID, media.Kind, media.FileID, media.Path, media.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert media: %w", err)
	}
	return nil
}

func (s *SQLite) ListMedia(ctx context.Context, itemID string) ([]model.BulkStockMedia, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_id, kind, file_id, path, created_at
		 FROM bulk_stock_media WHERE item_id = ? ORDER BY created_at, id`, itemID)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()

	var media []model.BulkStockMedia
	for rows.Next() {
		var m model.BulkStockMedia
		if err := rows.Scan(&m.ID, &m.ItemID, &m.Kind, &m.FileID, &m.Path, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan media row: %w", err)
		}
		media = append(media, m)
	}
	return media, rows.Err()
}

func (s *SQLite) CreateWorker(ctx context.Context, worker *model.Worker) error {
	if worker.ID == "" {
		worker.ID = uuid.New().String()
	}
	if worker.CreatedAt.IsZero() {
		worker.CreatedAt = time.Now().UTC()
	}
	worker.Active = true

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workers (id, username, chat_id, active, created_at) VALUES (?, ?, ?, 1, ?)`,
		worker.ID, worker.Username, worker.ChatID, worker.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert worker: %w", err)
	}
	return nil
}

func (s *SQLite) GetWorker(ctx context.Context, id string) (*model.Worker, error) {
	return s.getWorker(ctx, "id", id)
}

func (s *SQLite) GetWorkerByUsername(ctx context.Context, username string) (*model.Worker, error) {
	return s.getWorker(ctx, "username", username)
}

func (s *SQLite) getWorker(ctx context.Context, field, value string) (*model.Worker, error) {
	var w model.Worker
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, chat_id, active, created_at FROM workers WHERE `+field+` = ?`, value,
	).Scan(&w.ID, &w.Username, &w.ChatID, &w.Active, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("worker %q: %w", value, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get worker: %w", err)
	}
	return &w, nil
}

func (s *SQLite) ListWorkers(ctx context.Context) ([]model.Worker, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, chat_id, active, created_at FROM workers ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	defer rows.Close()

	var workers []model.Worker
	for rows.Next() {
		var w model.Worker
		if err := rows.Scan(&w.ID, &w.Username, &w.ChatID, &w.Active, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan worker row: %w", err)
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

func (s *SQLite) CreateRule(ctx context.Context, rule *model.ReplenishmentRule) error {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now
	rule.Active = true

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO replenishment_rules (id, item_id, product_type, threshold, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 1, ?, ?)`,
		rule.ID, rule.ItemID, rule.ProductType, rule.Threshold, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

func (s *SQLite) GetRule(ctx context.Context, id string) (*model.ReplenishmentRule, error) {
	var r model.ReplenishmentRule
	err := s.db.QueryRowContext(ctx,
		`SELECT id, item_id, product_type, threshold, active, created_at, updated_at
		 FROM replenishment_rules WHERE id = ?`, id,
	).Scan(&r.ID, &r.ItemID, &r.ProductType, &r.Threshold, &r.Active, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("rule %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return &r, nil
}

func (s *SQLite) ListRules(ctx context.Context, includeInactive bool) ([]model.ReplenishmentRule, error) {
	query := `SELECT id, item_id, product_type, threshold, active, created_at, updated_at
		 FROM replenishment_rules`
	if !includeInactive {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var rules []model.ReplenishmentRule
	for rows.Next() {
		var r model.ReplenishmentRule
		if err := rows.Scan(&r.ID, &r.ItemID, &r.ProductType, &r.Threshold, &r.Active, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan rule row: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (s *SQLite) SetRuleActive(ctx context.Context, id string, active bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE replenishment_rules SET active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("rule %q: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLite) ListActiveRules(ctx context.Context) ([]model.ActiveRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.item_id, r.product_type, r.threshold, r.active, r.created_at, r.updated_at,
		        i.id, i.name, i.quantity, i.unit, i.pickup_instructions, i.assigned_worker_id,
		        i.active, i.processed, i.created_at, i.updated_at
		 FROM replenishment_rules r
		 JOIN bulk_stock_items i ON r.item_id = i.id
		 WHERE r.active = 1 AND i.active = 1
		 ORDER BY r.created_at, r.id`)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	defer rows.Close()

	var active []model.ActiveRule
	for rows.Next() {
		var ar model.ActiveRule
		var worker sql.NullString
		err := rows.Scan(
			&ar.Rule.ID, &ar.Rule.ItemID, &ar.Rule.ProductType, &ar.Rule.Threshold,
			&ar.Rule.Active, &ar.Rule.CreatedAt, &ar.Rule.UpdatedAt,
			&ar.Item.ID, &ar.Item.Name, &ar.Item.Quantity, &ar.Item.Unit,
			&ar.Item.PickupInstructions, &worker, &ar.Item.Active, &ar.Item.Processed,
			&ar.Item.CreatedAt, &ar.Item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan active rule row: %w", err)
		}
		ar.Item.AssignedWorkerID = worker.String
		active = append(active, ar)
	}
	return active, rows.Err()
}

func (s *SQLite) LatestNotification(ctx context.Context, ruleID string) (*model.NotificationRecord, error) {
	var r model.NotificationRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT id, rule_id, worker_id, recipient, stock_level, threshold, sent_at
		 FROM notification_records WHERE rule_id = ?
		 ORDER BY sent_at DESC, id DESC LIMIT 1`, ruleID,
	).Scan(&r.ID, &r.RuleID, &r.WorkerID, &r.Recipient, &r.StockLevel, &r.Threshold, &r.SentAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("notification for rule %q: %w", ruleID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest notification: %w", err)
	}
	return &r, nil
}

func (s *SQLite) RecordNotification(ctx context.Context, record *model.NotificationRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.SentAt.IsZero() {
		record.SentAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_records (id, rule_id, worker_id, recipient, stock_level, threshold, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.RuleID, record.WorkerID, record.Recipient,
		record.StockLevel, record.Threshold, record.SentAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification record: %w", err)
	}
	return nil
}

func (s *SQLite) ListNotifications(ctx context.Context, ruleID string, limit int) ([]model.NotificationRecord, error) {
	query := `SELECT id, rule_id, worker_id, recipient, stock_level, threshold, sent_at
		 FROM notification_records`
	var args []any
	if ruleID != "" {
		query += ` WHERE rule_id = ?`
		args = append(args, ruleID)
	}
	query += ` ORDER BY sent_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var records []model.NotificationRecord
	for rows.Next() {
		var r model.NotificationRecord
		if err := rows.Scan(&r.ID, &r.RuleID, &r.WorkerID, &r.Recipient, &r.StockLevel, &r.Threshold, &r.SentAt); err != nil {
			return nil, fmt.Errorf("scan notification row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLite) AvailableStock(ctx context.Context, productType string) (int64, error) {
	var stock int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(available) - SUM(reserved), 0) FROM products WHERE product_type = ?`,
		productType,
	).Scan(&stock)
	if err != nil {
		return 0, fmt.Errorf("available stock for %q: %w", productType, err)
	}
	// Oversold inventory can net negative; callers only care about sellable stock.
	if stock < 0 {
		stock = 0
	}
	return stock, nil
}

func (s *SQLite) AddInventory(ctx context.Context, entry *model.InventoryEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (id, product_type, available, reserved) VALUES (?, ?, ?, ?)`,
		uuid.New().String(), entry.ProductType, entry.Available, entry.Reserved,
	)
	if err != nil {
		return fmt.Errorf("add inventory: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
