package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"coopwatch/models"

	"go.uber.org/zap"
)

const (
	// LogOnlyChannel is reported when no delivery channel is configured
	LogOnlyChannel = "log"

	previewRunes = 80
)

// Channel delivers a formatted message to the operator
type Channel interface {
	Name() string
	Send(ctx context.Context, message string) error
}

// Gateway fans a message out to every configured channel
type Gateway struct {
	channels []Channel
	timeout  time.Duration
	logger   *zap.Logger
}

// NewGateway creates a gateway over the given channels; nil channels are skipped.
// With no channels left the gateway runs in log-only mode.
func NewGateway(logger *zap.Logger, timeout time.Duration, channels ...Channel) *Gateway {
	g := &Gateway{
		timeout: timeout,
		logger:  logger,
	}
	for _, ch := range channels {
		if ch != nil {
			g.channels = append(g.channels, ch)
		}
	}
	return g
}

// LogOnly reports whether sends are only logged
func (g *Gateway) LogOnly() bool {
	return len(g.channels) == 0
}

// Channels lists configured channel names
func (g *Gateway) Channels() []string {
	names := make([]string, 0, len(g.channels))
	for _, ch := range g.channels {
		names = append(names, ch.Name())
	}
	return names
}

// Send delivers message through all channels concurrently, each bounded by the
// gateway timeout. Failures are logged and reported, never returned.
func (g *Gateway) Send(ctx context.Context, message string) []models.DeliveryResult {
	if g.LogOnly() {
		g.logger.Info("Notification (log-only mode)",
			zap.String("channel", LogOnlyChannel),
			zap.String("message", message))
		deliveriesTotal.WithLabelValues(LogOnlyChannel, deliveryResultLabel(false)).Inc()
		return []models.DeliveryResult{{Channel: LogOnlyChannel, Delivered: false}}
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	results := make([]models.DeliveryResult, len(g.channels))
	var wg sync.WaitGroup
	for i, ch := range g.channels {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := ch.Send(ctx, message)
			results[i] = models.DeliveryResult{Channel: ch.Name(), Delivered: err == nil, Err: err}
		}()
	}
	wg.Wait()

	for _, r := range results {
		deliveriesTotal.WithLabelValues(r.Channel, deliveryResultLabel(r.Delivered)).Inc()
		if r.Err != nil {
			g.logger.Error("Failed to deliver notification",
				zap.String("channel", r.Channel),
				zap.String("preview", preview(message)),
				zap.Error(r.Err))
		}
	}
	return results
}

// preview shortens a message to one line for logs
func preview(message string) string {
	flat := strings.Join(strings.Fields(plainText(message)), " ")
	runes := []rune(flat)
	if len(runes) <= previewRunes {
		return flat
	}
	return string(runes[:previewRunes]) + "…"
}

var htmlTags = strings.NewReplacer(
	"<b>", "", "</b>", "",
	"<i>", "", "</i>", "",
	"<code>", "", "</code>", "",
	"&lt;", "<", "&gt;", ">", "&#39;", "'", "&#34;", "\"", "&amp;", "&",
)

// plainText drops the Telegram HTML markup used by the message formatters
func plainText(message string) string {
	return htmlTags.Replace(message)
}
