package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coopwatch/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

var (
	interval   = flag.Duration("interval", 5*time.Second, "Time between simulated events")
	house      = flag.String("house", "house-1", "Sensor identifier for climate readings")
	tankID     = flag.String("tank", "tank-1", "Tank ID")
	pumpID     = flag.String("pump", "pump-1", "Fill pump device ID")
	siloID     = flag.String("silo", "silo-1", "Feed silo ID")
	heatProb   = flag.Float64("heat", 0.1, "Probability of a heat spike (0.0-1.0)")
	mqttBroker = flag.String("broker", "localhost:1883", "MQTT broker address (host:port)")
	mqttUser   = flag.String("user", "coopwatch", "MQTT username")
	mqttPass   = flag.String("pass", "coopwatch", "MQTT password")
	mqttTopic  = flag.String("topic", "facility_events", "MQTT topic to publish to")
)

// HouseSimulator produces a plausible stream of poultry house events: climate
// readings, a tank that drains and gets refilled by a pump, and a feed silo
type HouseSimulator struct {
	heatProbability float64
	baseTemp        float64
	baseHumidity    float64
	tankPercent     float64
	pumpOn          bool
	feedKg          float64
	step            int
}

func NewHouseSimulator(heatProb float64) *HouseSimulator {
	return &HouseSimulator{
		heatProbability: heatProb,
		baseTemp:        28.0,
		baseHumidity:    65.0,
		tankPercent:     80.0,
		feedKg:          2000.0,
	}
}

// Next returns the events for one simulation step
func (h *HouseSimulator) Next() []*models.FacilityEvent {
	now := time.Now()
	h.step++

	temperature := h.baseTemp + rand.Float64()*3.0 - 1.5
	if rand.Float64() < h.heatProbability {
		temperature = 33.0 + rand.Float64()*5.0
	}
	humidity := h.baseHumidity + rand.Float64()*10.0 - 5.0

	events := []*models.FacilityEvent{
		{Type: models.EventReading, Kind: models.AlertHeat, SubKey: *house, Value: round1(temperature), Timestamp: now},
		{Type: models.EventReading, Kind: models.AlertHumidityHigh, SubKey: *house, Value: round1(humidity), Timestamp: now},
	}

	// Drinkers drain the tank; the pump refills it from 15% to full
	if h.pumpOn {
		h.tankPercent = math.Min(100, h.tankPercent+8)
	} else {
		h.tankPercent = math.Max(0, h.tankPercent-1.5-rand.Float64())
	}
	switch {
	case !h.pumpOn && h.tankPercent <= 15:
		h.pumpOn = true
		events = append(events, &models.FacilityEvent{Type: models.EventDeviceToggle, DeviceID: *pumpID, On: true, Timestamp: now})
	case h.pumpOn && h.tankPercent >= 100:
		h.pumpOn = false
		events = append(events, &models.FacilityEvent{Type: models.EventDeviceToggle, DeviceID: *pumpID, On: false, Timestamp: now})
	}
	events = append(events, &models.FacilityEvent{Type: models.EventTankLevel, TankID: *tankID, Percent: math.Round(h.tankPercent), Timestamp: now})

	// Feed is reported every tenth step and delivered when nearly empty
	if h.step%10 == 0 {
		h.feedKg -= 40 + rand.Float64()*20
		if h.feedKg < 100 {
			h.feedKg = 2000
			events = append(events, &models.FacilityEvent{Type: models.EventStockReplenished, SiloID: *siloID, Timestamp: now})
		}
		events = append(events, &models.FacilityEvent{Type: models.EventFeedStock, SiloID: *siloID, Kg: math.Round(h.feedKg), Timestamp: now})
	}

	return events
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func main() {
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("House simulator started",
		zap.Duration("interval", *interval),
		zap.Float64("heat_probability", *heatProb),
		zap.String("mqtt_broker", *mqttBroker),
		zap.String("mqtt_topic", *mqttTopic),
	)
	logger.Info("Press Ctrl+C to stop gracefully")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", *mqttBroker))
	opts.SetClientID(fmt.Sprintf("%s-simulator", *house))
	opts.SetUsername(*mqttUser)
	opts.SetPassword(*mqttPass)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)

	opts.OnConnect = func(client mqtt.Client) {
		logger.Info("Connected to MQTT broker",
			zap.String("broker", *mqttBroker))
	}

	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Error("MQTT connection lost", zap.Error(err))
	}

	mqttClient := mqtt.NewClient(opts)
	if token := mqttClient.Connect(); token.Wait() && token.Error() != nil {
		logger.Fatal("Failed to connect to MQTT broker", zap.Error(token.Error()))
	}
	defer mqttClient.Disconnect(250)

	sim := NewHouseSimulator(*heatProb)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	messageCount := 0
	startTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			logger.Info("🛑 Shutting down gracefully...",
				zap.Int("total_messages", messageCount),
				zap.Duration("total_uptime", time.Since(startTime)),
			)
			return

		case <-ticker.C:
			for _, event := range sim.Next() {
				jsonData, err := json.Marshal(event)
				if err != nil {
					logger.Error("Failed to marshal event", zap.Error(err))
					continue
				}

				token := mqttClient.Publish(*mqttTopic, 1, false, jsonData)
				if token.Wait() && token.Error() != nil {
					logger.Error("Failed to publish MQTT message",
						zap.Error(token.Error()),
						zap.Int("message_count", messageCount))
					continue
				}
				messageCount++

				logger.Debug("Published MQTT message",
					zap.String("type", string(event.Type)),
					zap.String("topic", *mqttTopic),
					zap.ByteString("data", jsonData))
			}

			if messageCount > 0 && messageCount%100 < 5 {
				logger.Info("📊 MQTT messages published",
					zap.Int("count", messageCount),
					zap.Float64("rate", float64(messageCount)/time.Since(startTime).Seconds()))
			}
		}
	}
}
