package notify_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsgrove/stockwatch/pkg/model"
	"github.com/opsgrove/stockwatch/pkg/notify"
)

// fakeTransport scripts per-recipient failures and records calls.
type fakeTransport struct {
	textErr  map[string]error
	mediaErr map[string]error

	texts []sentText
	media []sentMedia
}

type sentText struct {
	recipient string
	text      string
}

type sentMedia struct {
	recipient string
	count     int
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) SendText(_ context.Context, recipient, text string) error {
	if err := f.textErr[recipient]; err != nil {
		return err
	}
	f.texts = append(f.texts, sentText{recipient, text})
	return nil
}

func (f *fakeTransport) SendMedia(_ context.Context, recipient string, media []model.BulkStockMedia) error {
	if err := f.mediaErr[recipient]; err != nil {
		return err
	}
	f.media = append(f.media, sentMedia{recipient, len(media)})
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPayload() notify.Payload {
	return notify.Payload{
		ItemName:           "Flour Sack A",
		ProductType:        "Banana",
		Stock:              8,
		Threshold:          10,
		PickupInstructions: "back room, shelf 3",
		Recipient:          "chat-1",
	}
}

func TestAlerter_Send(t *testing.T) {
	transport := &fakeTransport{}
	alerter := notify.NewAlerter(transport, "", testLogger())

	result, err := alerter.Send(context.Background(), testPayload())
	require.NoError(t, err)
	assert.Equal(t, "chat-1", result.Recipient)
	assert.False(t, result.UsedFallback)

	require.Len(t, transport.texts, 1)
	assert.Equal(t, "chat-1", transport.texts[0].recipient)
	assert.Contains(t, transport.texts[0].text, "Flour Sack A")
}

func TestAlerter_PrimaryFails_FallbackUsed(t *testing.T) {
	transport := &fakeTransport{
		textErr: map[string]error{"chat-1": errors.New("blocked")},
	}
	alerter := notify.NewAlerter(transport, "ops-channel", testLogger())

	result, err := alerter.Send(context.Background(), testPayload())
	require.NoError(t, err)
	assert.Equal(t, "ops-channel", result.Recipient)
	assert.True(t, result.UsedFallback)

	require.Len(t, transport.texts, 1)
	assert.Equal(t, "ops-channel", transport.texts[0].recipient)
}

func TestAlerter_BothFail(t *testing.T) {
	transport := &fakeTransport{
		textErr: map[string]error{
			"chat-1":      errors.New("blocked"),
			"ops-channel": errors.New("also blocked"),
		},
	}
	alerter := notify.NewAlerter(transport, "ops-channel", testLogger())

	_, err := alerter.Send(context.Background(), testPayload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ops-channel")
	assert.Empty(t, transport.texts)
}

func TestAlerter_NoFallbackConfigured(t *testing.T) {
	transport := &fakeTransport{
		textErr: map[string]error{"chat-1": errors.New("blocked")},
	}
	alerter := notify.NewAlerter(transport, "", testLogger())

	_, err := alerter.Send(context.Background(), testPayload())
	assert.Error(t, err)
}

func TestAlerter_FallbackSameAsPrimary_NotRetried(t *testing.T) {
	transport := &fakeTransport{
		textErr: map[string]error{"chat-1": errors.New("blocked")},
	}
	alerter := notify.NewAlerter(transport, "chat-1", testLogger())

	_, err := alerter.Send(context.Background(), testPayload())
	assert.Error(t, err)
	assert.Empty(t, transport.texts)
}

func TestAlerter_MediaFailure_DoesNotFailDelivery(t *testing.T) {
	transport := &fakeTransport{
		mediaErr: map[string]error{"chat-1": errors.New("file too big")},
	}
	alerter := notify.NewAlerter(transport, "", testLogger())

	p := testPayload()
	p.Media = []model.BulkStockMedia{
		{Kind: model.MediaPhoto, FileID: "photo-1"},
		{Kind: model.MediaPhoto, FileID: "photo-2"},
	}

	result, err := alerter.Send(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 0, result.MediaSent)
	assert.Equal(t, 2, result.MediaFailed)
	require.Len(t, transport.texts, 1)
}

func TestAlerter_MediaSentBeforeText(t *testing.T) {
	transport := &fakeTransport{}
	alerter := notify.NewAlerter(transport, "", testLogger())

	p := testPayload()
	p.Media = []model.BulkStockMedia{{Kind: model.MediaVideo, FileID: "vid-1"}}

	result, err := alerter.Send(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 1, result.MediaSent)
	require.Len(t, transport.media, 1)
	assert.Equal(t, "chat-1", transport.media[0].recipient)
}

func TestFormatAlert(t *testing.T) {
	got := notify.FormatAlert(testPayload())

	want := "LOW STOCK ALERT\n\n" +
		"Bulk stock: Flour Sack A\n" +
		"Product type: Banana\n" +
		"Current stock: 8\n" +
		"Threshold: 10\n\n" +
		"Pickup instructions:\nback room, shelf 3\n\n" +
		"Please process this bulk stock item as soon as possible."
	assert.Equal(t, want, got)

	// Identical payloads render identically.
	assert.Equal(t, got, notify.FormatAlert(testPayload()))
}
