package notify

import (
	"context"

	"github.com/opsgrove/stockwatch/pkg/model"
)

// Payload carries everything needed to deliver one low-stock alert.
type Payload struct {
	ItemName           string                 `json:"item_name"`
	ProductType        string                 `json:"product_type"`
	Stock              int64                  `json:"stock"`
	Threshold          int64                  `json:"threshold"`
	PickupInstructions string                 `json:"pickup_instructions"`
	Recipient          string                 `json:"recipient"`
	Media              []model.BulkStockMedia `json:"media,omitempty"`
}

// DeliveryResult reports who ultimately received an alert.
type DeliveryResult struct {
	Recipient    string `json:"recipient"`
	UsedFallback bool   `json:"used_fallback"`
	MediaSent    int    `json:"media_sent"`
	MediaFailed  int    `json:"media_failed"`
}

// Transport delivers messages to a messaging identity. Implementations must
// be safe for concurrent use.
type Transport interface {
	// Name returns the transport identifier.
	Name() string

	// SendText delivers a text message to the recipient.
	SendText(ctx context.Context, recipient, text string) error

	// SendMedia delivers media attachments to the recipient.
	SendMedia(ctx context.Context, recipient string, media []model.BulkStockMedia) error
}
