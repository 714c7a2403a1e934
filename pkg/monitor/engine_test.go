package monitor_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsgrove/stockwatch/pkg/model"
	"github.com/opsgrove/stockwatch/pkg/monitor"
	"github.com/opsgrove/stockwatch/pkg/notify"
	"github.com/opsgrove/stockwatch/pkg/storage"
)

// fakeClock lets tests move time forward without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeAlerter records every payload it is asked to deliver.
type fakeAlerter struct {
	mu       sync.Mutex
	payloads []notify.Payload
	err      error
}

func (a *fakeAlerter) Send(_ context.Context, p notify.Payload) (*notify.DeliveryResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	a.payloads = append(a.payloads, p)
	return &notify.DeliveryResult{Recipient: p.Recipient}, nil
}

func (a *fakeAlerter) sent() []notify.Payload {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]notify.Payload(nil), a.payloads...)
}

// faultStore wraps a real store and injects failures per call site.
type faultStore struct {
	storage.Storage
	failStockFor string
	failRecord   bool
}

func (f *faultStore) AvailableStock(ctx context.Context, productType string) (int64, error) {
	if f.failStockFor != "" && productType == f.failStockFor {
		return 0, errors.New("inventory backend unavailable")
	}
	return f.Storage.AvailableStock(ctx, productType)
}

func (f *faultStore) RecordNotification(ctx context.Context, record *model.NotificationRecord) error {
	if f.failRecord {
		return errors.New("disk full")
	}
	return f.Storage.RecordNotification(ctx, record)
}

type engineFixture struct {
	store   *storage.SQLite
	alerter *fakeAlerter
	clock   *fakeClock
}

func newFixture(t *testing.T) *engineFixture {
	t.Helper()
	db, err := storage.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &engineFixture{store: db, alerter: &fakeAlerter{}, clock: newFakeClock()}
}

func (f *engineFixture) engine(t *testing.T, opts monitor.Options) *monitor.Engine {
	t.Helper()
	return monitor.NewEngine(f.store, f.alerter, f.clock, opts, discardLogger())
}

func (f *engineFixture) engineOn(t *testing.T, store storage.Storage, opts monitor.Options) *monitor.Engine {
	t.Helper()
	return monitor.NewEngine(store, f.alerter, f.clock, opts, discardLogger())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedRule creates a worker, an item assigned to them and a rule on the item.
func (f *engineFixture) seedRule(t *testing.T, productType string, threshold int64) *model.ReplenishmentRule {
	t.Helper()
	ctx := context.Background()

	worker := &model.Worker{Username: "worker-" + productType, ChatID: "chat-" + productType}
	require.NoError(t, f.store.CreateWorker(ctx, worker))

	item := &model.BulkStockItem{
		Name:               "Crate of " + productType,
		Quantity:           50,
		Unit:               "kg",
		PickupInstructions: "warehouse dock 2",
		AssignedWorkerID:   worker.ID,
	}
	require.NoError(t, f.store.CreateItem(ctx, item))

	rule := &model.ReplenishmentRule{ItemID: item.ID, ProductType: productType, Threshold: threshold}
	require.NoError(t, f.store.CreateRule(ctx, rule))
	return rule
}

func (f *engineFixture) setStock(t *testing.T, productType string, available, reserved int64) {
	t.Helper()
	require.NoError(t, f.store.AddInventory(context.Background(), &model.InventoryEntry{
		ProductType: productType, Available: available, Reserved: reserved,
	}))
}

func TestEngine_AboveThreshold_NoNotification(t *testing.T) {
	f := newFixture(t)
	f.seedRule(t, "Banana", 10)
	f.setStock(t, "Banana", 15, 0)

	summary, err := f.engine(t, monitor.Options{}).EvaluateAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Evaluated)
	assert.Equal(t, 0, summary.Notified)
	assert.Equal(t, 1, summary.SkippedHealthy)
	assert.Empty(t, f.alerter.sent())
}

func TestEngine_BelowThreshold_SendsAndRecords(t *testing.T) {
	f := newFixture(t)
	rule := f.seedRule(t, "Banana", 10)
	f.setStock(t, "Banana", 9, 1)

	summary, err := f.engine(t, monitor.Options{}).EvaluateAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Notified)
	assert.Empty(t, summary.Failures)

	sent := f.alerter.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Crate of Banana", sent[0].ItemName)
	assert.Equal(t, int64(8), sent[0].Stock)
	assert.Equal(t, int64(10), sent[0].Threshold)
	assert.Equal(t, "chat-Banana", sent[0].Recipient)
	assert.Equal(t, "warehouse dock 2", sent[0].PickupInstructions)

	record, err := f.store.LatestNotification(context.Background(), rule.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8), record.StockLevel)
	assert.Equal(t, int64(10), record.Threshold)
	assert.Equal(t, "chat-Banana", record.Recipient)
	assert.WithinDuration(t, f.clock.Now(), record.SentAt, time.Second)
}

func TestEngine_ExactThreshold_Triggers(t *testing.T) {
	f := newFixture(t)
	f.seedRule(t, "Banana", 10)
	f.setStock(t, "Banana", 10, 0)

	summary, err := f.engine(t, monitor.Options{}).EvaluateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Notified)
}

func TestEngine_MissingInventory_TreatedAsZero(t *testing.T) {
	f := newFixture(t)
	f.seedRule(t, "Banana", 10)

	summary, err := f.engine(t, monitor.Options{}).EvaluateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Notified)

	sent := f.alerter.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, int64(0), sent[0].Stock)
}

func TestEngine_Cooldown_SuppressesRepeat(t *testing.T) {
	f := newFixture(t)
	f.seedRule(t, "Banana", 10)
	f.setStock(t, "Banana", 5, 0)
	eng := f.engine(t, monitor.Options{})
	ctx := context.Background()

	_, err := eng.EvaluateAll(ctx)
	require.NoError(t, err)
	require.Len(t, f.alerter.sent(), 1)

	// Still low one hour later, inside the two hour cooldown.
	f.clock.Advance(time.Hour)
	summary, err := eng.EvaluateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Notified)
	assert.Equal(t, 1, summary.SkippedCooldown)
	assert.Len(t, f.alerter.sent(), 1)
}

func TestEngine_CooldownExpired_SendsAgain(t *testing.T) {
	f := newFixture(t)
	f.seedRule(t, "Banana", 10)
	f.setStock(t, "Banana", 5, 0)
	eng := f.engine(t, monitor.Options{})
	ctx := context.Background()

	_, err := eng.EvaluateAll(ctx)
	require.NoError(t, err)

	f.clock.Advance(2*time.Hour + time.Minute)
	summary, err := eng.EvaluateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Notified)
	assert.Len(t, f.alerter.sent(), 2)
}

func TestEngine_RecoveredStock_StaysSilent(t *testing.T) {
	f := newFixture(t)
	f.seedRule(t, "Banana", 10)
	f.setStock(t, "Banana", 8, 0)
	eng := f.engine(t, monitor.Options{})
	ctx := context.Background()

	_, err := eng.EvaluateAll(ctx)
	require.NoError(t, err)
	require.Len(t, f.alerter.sent(), 1)

	// Replenished above the threshold: no alert even after the cooldown.
	f.setStock(t, "Banana", 20, 0)
	f.clock.Advance(3 * time.Hour)
	summary, err := eng.EvaluateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Notified)
	assert.Equal(t, 1, summary.SkippedHealthy)
	assert.Len(t, f.alerter.sent(), 1)
}

func TestEngine_UnassignedItem_UsesFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item := &model.BulkStockItem{Name: "Orphan Crate", Quantity: 10, Unit: "kg"}
	require.NoError(t, f.store.CreateItem(ctx, item))
	rule := &model.ReplenishmentRule{ItemID: item.ID, ProductType: "Plum", Threshold: 4}
	require.NoError(t, f.store.CreateRule(ctx, rule))

	eng := f.engine(t, monitor.Options{FallbackRecipient: "ops-channel"})
	summary, err := eng.EvaluateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Notified)

	sent := f.alerter.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ops-channel", sent[0].Recipient)

	record, err := f.store.LatestNotification(ctx, rule.ID)
	require.NoError(t, err)
	assert.Empty(t, record.WorkerID)
	assert.Equal(t, "ops-channel", record.Recipient)
}

func TestEngine_UnassignedItem_NoFallback_ConfigurationFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item := &model.BulkStockItem{Name: "Orphan Crate", Quantity: 10, Unit: "kg"}
	require.NoError(t, f.store.CreateItem(ctx, item))
	rule := &model.ReplenishmentRule{ItemID: item.ID, ProductType: "Plum", Threshold: 4}
	require.NoError(t, f.store.CreateRule(ctx, rule))

	summary, err := f.engine(t, monitor.Options{}).EvaluateAll(ctx)
	require.NoError(t, err)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, monitor.FailureConfiguration, summary.Failures[0].Kind)
	assert.Equal(t, rule.ID, summary.Failures[0].RuleID)
	assert.Empty(t, f.alerter.sent())
}

func TestEngine_StockQueryFailure_IsolatedPerRule(t *testing.T) {
	f := newFixture(t)
	f.seedRule(t, "Banana", 10)
	f.seedRule(t, "Apple", 10)
	f.setStock(t, "Apple", 3, 0)

	store := &faultStore{Storage: f.store, failStockFor: "Banana"}
	summary, err := f.engineOn(t, store, monitor.Options{}).EvaluateAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Evaluated)
	assert.Equal(t, 1, summary.Notified)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, monitor.FailureQuery, summary.Failures[0].Kind)

	sent := f.alerter.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Apple", sent[0].ProductType)
}

func TestEngine_DeliveryFailure_NothingRecorded(t *testing.T) {
	f := newFixture(t)
	rule := f.seedRule(t, "Banana", 10)
	f.setStock(t, "Banana", 5, 0)
	f.alerter.err = errors.New("recipient unreachable")
	eng := f.engine(t, monitor.Options{})
	ctx := context.Background()

	summary, err := eng.EvaluateAll(ctx)
	require.NoError(t, err)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, monitor.FailureDelivery, summary.Failures[0].Kind)

	_, err = f.store.LatestNotification(ctx, rule.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// No record means no cooldown: the next pass retries immediately.
	f.alerter.err = nil
	summary, err = eng.EvaluateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Notified)
}

func TestEngine_LedgerWriteFailure_FlaggedAfterDelivery(t *testing.T) {
	f := newFixture(t)
	rule := f.seedRule(t, "Banana", 10)
	f.setStock(t, "Banana", 5, 0)

	store := &faultStore{Storage: f.store, failRecord: true}
	summary, err := f.engineOn(t, store, monitor.Options{}).EvaluateAll(context.Background())
	require.NoError(t, err)

	// The alert was delivered before the write failed.
	assert.Len(t, f.alerter.sent(), 1)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, monitor.FailureLedgerWrite, summary.Failures[0].Kind)

	_, err = f.store.LatestNotification(context.Background(), rule.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEngine_WorkerWithoutChatID_FallsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	worker := &model.Worker{Username: "gone", ChatID: ""}
	require.NoError(t, f.store.CreateWorker(ctx, worker))
	item := &model.BulkStockItem{Name: "Crate", Quantity: 5, Unit: "kg", AssignedWorkerID: worker.ID}
	require.NoError(t, f.store.CreateItem(ctx, item))
	rule := &model.ReplenishmentRule{ItemID: item.ID, ProductType: "Pear", Threshold: 4}
	require.NoError(t, f.store.CreateRule(ctx, rule))

	eng := f.engine(t, monitor.Options{FallbackRecipient: "ops-channel"})
	summary, err := eng.EvaluateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Notified)

	sent := f.alerter.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ops-channel", sent[0].Recipient)
}

func TestEngine_ManyRules_BoundedConcurrency(t *testing.T) {
	f := newFixture(t)
	for _, pt := range []string{"A", "B", "C", "D", "E", "F", "G", "H"} {
		f.seedRule(t, pt, 10)
		f.setStock(t, pt, 2, 0)
	}

	summary, err := f.engine(t, monitor.Options{Concurrency: 2}).EvaluateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, summary.Evaluated)
	assert.Equal(t, 8, summary.Notified)
	assert.Len(t, f.alerter.sent(), 8)
}
