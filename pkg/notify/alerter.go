package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Alerter formats and delivers low-stock alerts over a Transport. If delivery
// to the primary recipient fails and a fallback recipient is configured, the
// alert is retried once against the fallback before the failure is reported.
type Alerter struct {
	transport Transport
	fallback  string
	logger    *slog.Logger
}

// NewAlerter creates an alerter. fallback may be empty, in which case failed
// deliveries are not retried elsewhere.
func NewAlerter(transport Transport, fallback string, logger *slog.Logger) *Alerter {
	return &Alerter{
		transport: transport,
		fallback:  fallback,
		logger:    logger,
	}
}

// Send delivers the alert. Media is best-effort: a media failure is logged
// but does not fail delivery of the text alert.
func (a *Alerter) Send(ctx context.Context, p Payload) (*DeliveryResult, error) {
	text := FormatAlert(p)

	result, primaryErr := a.deliver(ctx, p.Recipient, text, p)
	if primaryErr == nil {
		return result, nil
	}

	if a.fallback == "" || a.fallback == p.Recipient {
		return nil, fmt.Errorf("deliver to %q: %w", p.Recipient, primaryErr)
	}

	a.logger.Warn("primary delivery failed, retrying fallback",
		"transport", a.transport.Name(),
		"recipient", p.Recipient,
		"fallback", a.fallback,
		"error", primaryErr,
	)

	result, fallbackErr := a.deliver(ctx, a.fallback, text, p)
	if fallbackErr != nil {
		return nil, fmt.Errorf("deliver to %q (fallback %q also failed: %v): %w",
			p.Recipient, a.fallback, fallbackErr, primaryErr)
	}
	result.UsedFallback = true
	return result, nil
}

func (a *Alerter) deliver(ctx context.Context, recipient, text string, p Payload) (*DeliveryResult, error) {
	result := &DeliveryResult{Recipient: recipient}

	if len(p.Media) > 0 {
		if err := a.transport.SendMedia(ctx, recipient, p.Media); err != nil {
			result.MediaFailed = len(p.Media)
			a.logger.Warn("media delivery failed",
				"transport", a.transport.Name(),
				"recipient", recipient,
				"item", p.ItemName,
				"error", err,
			)
		} else {
			result.MediaSent = len(p.Media)
		}
	}

	if err := a.transport.SendText(ctx, recipient, text); err != nil {
		return nil, err
	}
	return result, nil
}

// FormatAlert renders the deterministic alert message for a payload.
func FormatAlert(p Payload) string {
	var b strings.Builder
	b.WriteString("LOW STOCK ALERT\n\n")
	fmt.Fprintf(&b, "Bulk stock: %s\n", p.ItemName)
	fmt.Fprintf(&b, "Product type: %s\n", p.ProductType)
	fmt.Fprintf(&b, "Current stock: %d\n", p.Stock)
	fmt.Fprintf(&b, "Threshold: %d\n\n", p.Threshold)
	fmt.Fprintf(&b, "Pickup instructions:\n%s\n\n", p.PickupInstructions)
	b.WriteString("Please process this bulk stock item as soon as possible.")
	return b.String()
}
