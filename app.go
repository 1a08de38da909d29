package main

import (
	"context"
	"fmt"
	"io"

	"coopwatch/config"
	"coopwatch/services"

	"go.uber.org/zap"
)

// facilityStore is everything the engine reads from and writes to
type facilityStore interface {
	services.FacilityReader
	services.ConsumptionReader
	services.JobLedger
	services.AlertRecordWriter
	services.AlertBatchSink
}

type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     facilityStore
	gate      *services.CooldownGate
	gateway   *services.Gateway
	notifier  *services.Notifier
	scheduler *services.DailyScheduler
	batcher   *services.AlertRecordBatcher
}

// buildApp wires the engine. With batched set, alert records go through an
// AlertRecordBatcher that the caller must Start.
func buildApp(cfg *config.Config, logger *zap.Logger, batched bool) (*app, error) {
	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		gate:    services.NewCooldownGate(),
		gateway: services.NewGateway(logger, cfg.DeliveryTimeout, deliveryChannels(cfg, logger)...),
	}

	switch {
	case !cfg.HasDeliveryChannel():
		logger.Warn("No delivery channel configured, notifications will only be logged")
	case a.gateway.LogOnly():
		logger.Error("Every configured delivery channel failed to initialize, notifications will only be logged")
	default:
		logger.Info("Delivery channels ready", zap.Strings("channels", a.gateway.Channels()))
	}

	var records services.AlertRecordWriter = store
	if batched {
		a.batcher = services.NewAlertRecordBatcher(cfg, store, logger)
		records = a.batcher
	}

	clock := services.SystemClock()
	a.notifier = services.NewNotifier(cfg, clock, store, a.gate, a.gateway, records, logger)

	a.scheduler, err = services.NewDailyScheduler(cfg, clock, store, store, store, a.gate, a.notifier, logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func openStore(cfg *config.Config, logger *zap.Logger) (facilityStore, error) {
	switch cfg.Store {
	case config.StoreMemory:
		facility, err := config.LoadFacilityFile(cfg.FacilityFile)
		if err != nil {
			return nil, err
		}
		logger.Info("Using in-memory store", zap.String("facility_file", cfg.FacilityFile))
		return services.NewMemoryStoreFromFacility(facility, cfg.Location)
	case config.StoreFirebase:
		store, err := services.NewFirebaseStore(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Firebase store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// deliveryChannels builds every configured channel. A channel that fails to
// initialize is skipped so the others keep working.
func deliveryChannels(cfg *config.Config, logger *zap.Logger) []services.Channel {
	var channels []services.Channel

	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		telegram, err := services.NewTelegramChannel(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.DeliveryTimeout, logger)
		if err != nil {
			logger.Error("Failed to initialize Telegram channel", zap.Error(err))
		} else {
			channels = append(channels, telegram)
		}
	}

	if cfg.EmailURL != "" {
		email, err := services.NewEmailChannel(cfg.EmailURL, logger)
		if err != nil {
			logger.Error("Failed to initialize email channel", zap.Error(err))
		} else {
			channels = append(channels, email)
		}
	}

	if cfg.WebhookURL != "" {
		channels = append(channels, services.NewWebhookChannel(cfg.WebhookURL, cfg.DeliveryTimeout, logger))
		logger.Info("Hardware alert webhook initialized", zap.String("url", cfg.WebhookURL))
	}

	return channels
}

// startupMessage is sent once the service is ready
func (a *app) startupMessage(ctx context.Context) {
	message := "🟢 <b>Coopwatch Monitoring Service Started</b>\n\n" +
		"📡 Facility store: " + a.cfg.Store + "\n" +
		"🐔 Watching house climate, tanks, pumps and feed stock\n\n" +
		"✅ System is ready and operational!"
	a.gateway.Send(ctx, message)
}

// close releases the store once nothing writes to it anymore
func (a *app) close() {
	closer, ok := a.store.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		a.logger.Error("Error closing facility store", zap.Error(err))
	}
}
