package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opsgrove/stockwatch/pkg/model"
	"github.com/opsgrove/stockwatch/pkg/notify"
	"github.com/opsgrove/stockwatch/pkg/storage"
)

// Default evaluation knobs, overridable via Options.
const (
	DefaultCooldown    = 2 * time.Hour
	DefaultSendTimeout = 30 * time.Second
	DefaultConcurrency = 4
)

// Alerter delivers a formatted low-stock alert.
type Alerter interface {
	Send(ctx context.Context, p notify.Payload) (*notify.DeliveryResult, error)
}

// RecipientKind tags the outcome of recipient resolution.
type RecipientKind string

const (
	RecipientWorker     RecipientKind = "worker"
	RecipientFallback   RecipientKind = "fallback"
	RecipientUnresolved RecipientKind = "unresolved"
)

// Recipient is a resolved notification target.
type Recipient struct {
	Kind     RecipientKind
	WorkerID string
	Address  string
}

// Options tunes an evaluation pass.
type Options struct {
	// Cooldown is the minimum time between two notifications for the same rule.
	Cooldown time.Duration

	// SendTimeout bounds each delivery attempt so one unreachable recipient
	// cannot stall the pass.
	SendTimeout time.Duration

	// Concurrency bounds how many rules are evaluated in parallel.
	Concurrency int

	// FallbackRecipient receives alerts for items without a reachable
	// assigned worker. Empty disables fallback routing.
	FallbackRecipient string
}

// Summary reports the outcome of one evaluation pass.
type Summary struct {
	StartedAt       time.Time     `json:"started_at"`
	Evaluated       int           `json:"evaluated"`
	Notified        int           `json:"notified"`
	SkippedHealthy  int           `json:"skipped_healthy"`
	SkippedCooldown int           `json:"skipped_cooldown"`
	Failures        []RuleFailure `json:"failures,omitempty"`
}

// Engine runs evaluation passes over all active replenishment rules. It owns
// no persistent state; passes are safe to repeat.
type Engine struct {
	store   storage.Storage
	alerter Alerter
	clock   Clock
	opts    Options
	logger  *slog.Logger
}

// NewEngine creates an engine. Zero option fields fall back to defaults.
func NewEngine(store storage.Storage, alerter Alerter, clock Clock, opts Options, logger *slog.Logger) *Engine {
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &Engine{
		store:   store,
		alerter: alerter,
		clock:   clock,
		opts:    opts,
		logger:  logger,
	}
}

// EvaluateAll runs one pass over all active rules. A single rule's failure
// never aborts the pass; the returned error covers only the initial rule
// listing, which the pass cannot proceed without.
func (e *Engine) EvaluateAll(ctx context.Context) (*Summary, error) {
	rules, err := e.store.ListActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}

	summary := &Summary{StartedAt: e.clock.Now()}
	summary.Evaluated = len(rules)

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, e.opts.Concurrency)
	)

	for _, ar := range rules {
		wg.Add(1)
		sem <- struct{}{}
		go func(ar model.ActiveRule) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := e.evaluateRule(ctx, ar)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case outcome.failure != nil:
				summary.Failures = append(summary.Failures, *outcome.failure)
			case outcome.notified:
				summary.Notified++
			case outcome.cooldown:
				summary.SkippedCooldown++
			default:
				summary.SkippedHealthy++
			}
		}(ar)
	}
	wg.Wait()

	e.logger.Info("evaluation pass finished",
		"evaluated", summary.Evaluated,
		"notified", summary.Notified,
		"skipped_healthy", summary.SkippedHealthy,
		"skipped_cooldown", summary.SkippedCooldown,
		"failures", len(summary.Failures),
	)
	return summary, nil
}

type ruleOutcome struct {
	notified bool
	cooldown bool
	failure  *RuleFailure
}

func fail(ar model.ActiveRule, kind FailureKind, err error) ruleOutcome {
	f := newFailure(ar.Rule.ID, ar.Item.Name, kind, err)
	return ruleOutcome{failure: &f}
}

func (e *Engine) evaluateRule(ctx context.Context, ar model.ActiveRule) ruleOutcome {
	rule, item := ar.Rule, ar.Item

	if rule.ProductType == "" {
		return fail(ar, FailureConfiguration, errors.New("empty product type"))
	}
	if rule.Threshold < 0 {
		return fail(ar, FailureConfiguration, fmt.Errorf("negative threshold %d", rule.Threshold))
	}

	stock, err := e.store.AvailableStock(ctx, rule.ProductType)
	if err != nil {
		return fail(ar, FailureQuery, err)
	}
	if stock > rule.Threshold {
		return ruleOutcome{}
	}

	now := e.clock.Now()
	last, err := e.store.LatestNotification(ctx, rule.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fail(ar, FailureQuery, err)
	}
	if last != nil && now.Sub(last.SentAt) < e.opts.Cooldown {
		return ruleOutcome{cooldown: true}
	}

	recipient, err := e.resolveRecipient(ctx, item)
	if err != nil {
		return fail(ar, FailureQuery, err)
	}
	if recipient.Kind == RecipientUnresolved {
		return fail(ar, FailureConfiguration, errors.New("no assigned worker and no fallback recipient configured"))
	}

	// Media is best-effort even at lookup time.
	media, err := e.store.ListMedia(ctx, item.ID)
	if err != nil {
		e.logger.Warn("media lookup failed, sending alert without attachments",
			"item", item.Name, "error", err)
		media = nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, e.opts.SendTimeout)
	defer cancel()

	result, err := e.alerter.Send(sendCtx, notify.Payload{
		ItemName:           item.Name,
		ProductType:        rule.ProductType,
		Stock:              stock,
		Threshold:          rule.Threshold,
		PickupInstructions: item.PickupInstructions,
		Recipient:          recipient.Address,
		Media:              media,
	})
	if err != nil {
		return fail(ar, FailureDelivery, err)
	}

	e.logger.Info("low stock notification sent",
		"rule", rule.ID,
		"item", item.Name,
		"product_type", rule.ProductType,
		"stock", stock,
		"threshold", rule.Threshold,
		"recipient", result.Recipient,
		"used_fallback", result.UsedFallback,
	)

	record := &model.NotificationRecord{
		RuleID:     rule.ID,
		WorkerID:   recipient.WorkerID,
		Recipient:  result.Recipient,
		StockLevel: stock,
		Threshold:  rule.Threshold,
		SentAt:     now,
	}
	if err := e.store.RecordNotification(ctx, record); err != nil {
		// The alert went out but the cooldown has no anchor: the same alert
		// may be re-sent next tick.
		e.logger.Error("notification delivered but not recorded, duplicate alert possible",
			"rule", rule.ID,
			"item", item.Name,
			"recipient", result.Recipient,
			"error", err,
		)
		return fail(ar, FailureLedgerWrite, err)
	}

	return ruleOutcome{notified: true}
}

// resolveRecipient picks the delivery target for an item: the assigned worker
// when one is set, reachable and active, otherwise the configured fallback.
func (e *Engine) resolveRecipient(ctx context.Context, item model.BulkStockItem) (Recipient, error) {
	if item.AssignedWorkerID != "" {
		worker, err := e.store.GetWorker(ctx, item.AssignedWorkerID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return Recipient{Kind: RecipientUnresolved}, err
		}
		if err == nil && worker.Active && worker.ChatID != "" {
			return Recipient{Kind: RecipientWorker, WorkerID: worker.ID, Address: worker.ChatID}, nil
		}
	}
	if e.opts.FallbackRecipient != "" {
		return Recipient{Kind: RecipientFallback, Address: e.opts.FallbackRecipient}, nil
	}
	return Recipient{Kind: RecipientUnresolved}, nil
}
