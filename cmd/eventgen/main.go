package main

import (
	"context"
	"encoding/json"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"coopwatch/config"
	"coopwatch/models"
	"coopwatch/services"

	"go.uber.org/zap"
)

var (
	eventType   = flag.String("type", "reading", "Event type: reading, tank_level, device_toggle, feed_stock, stock_replenished")
	kind        = flag.String("kind", "heat", "Reading kind (heat, humidity_high)")
	subKey      = flag.String("sub", "house-1", "Sensor identifier for readings")
	value       = flag.Float64("value", 35, "Reading value")
	tankID      = flag.String("tank", "tank-1", "Tank ID")
	percent     = flag.Float64("percent", 15, "Tank level percent")
	deviceID    = flag.String("device", "pump-1", "Device ID")
	on          = flag.Bool("on", true, "Device state for device_toggle")
	siloID      = flag.String("silo", "silo-1", "Silo ID")
	kg          = flag.Float64("kg", 300, "Feed stock in kg")
	rabbitMQURL = flag.String("rabbitmq", "", "RabbitMQ URL (default from config)")
)

func buildEvent() *models.FacilityEvent {
	event := &models.FacilityEvent{
		Type:      models.EventType(*eventType),
		Timestamp: time.Now(),
	}
	switch event.Type {
	case models.EventReading:
		event.Kind = models.AlertKind(*kind)
		event.SubKey = *subKey
		event.Value = *value
	case models.EventTankLevel:
		event.TankID = *tankID
		event.Percent = *percent
	case models.EventDeviceToggle:
		event.DeviceID = *deviceID
		event.On = *on
	case models.EventFeedStock:
		event.SiloID = *siloID
		event.Kg = *kg
	case models.EventStockReplenished:
		event.SiloID = *siloID
	}
	return event
}

func main() {
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	if *rabbitMQURL != "" {
		cfg.RabbitMQURL = *rabbitMQURL
	}

	queue, err := services.NewEventQueue(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to event queue", zap.Error(err))
	}
	defer queue.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	event := buildEvent()
	messageID, err := queue.Publish(ctx, event)
	if err != nil {
		logger.Fatal("Failed to publish event", zap.Error(err))
	}

	prettyJSON, _ := json.MarshalIndent(event, "", "  ")
	logger.Info("✅ Facility event published",
		zap.String("message_id", messageID),
		zap.String("exchange", cfg.RabbitMQExchange))
	logger.Info("Sent data:\n" + string(prettyJSON))

	select {
	case <-time.After(2 * time.Second):
		logger.Info("Message should be processed. Check your delivery channels!")
	case <-ctx.Done():
		logger.Info("Interrupted")
	}
}
