package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"coopwatch/config"
	"coopwatch/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier turns facility events into operator notifications. It owns the
// cooldown decisions and the pump watchdog; delivery happens asynchronously.
type Notifier struct {
	cooldowns       map[models.AlertKind]time.Duration
	feedLowKg       float64
	deliveryTimeout time.Duration
	loc             *time.Location

	clock    Clock
	facility FacilityReader
	gate     *CooldownGate
	watchdog *PumpWatchdog
	gateway  *Gateway
	records  AlertRecordWriter
	logger   *zap.Logger

	// closeMu orders wg.Add against Close
	closeMu sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
}

// NewNotifier wires a notifier. records may be nil, in which case alerts are only delivered.
func NewNotifier(cfg *config.Config, clock Clock, facility FacilityReader, gate *CooldownGate, gateway *Gateway, records AlertRecordWriter, logger *zap.Logger) *Notifier {
	n := &Notifier{
		cooldowns:       cfg.Cooldowns(),
		feedLowKg:       cfg.FeedLowKg,
		deliveryTimeout: cfg.DeliveryTimeout,
		loc:             cfg.Location,
		clock:           clock,
		facility:        facility,
		gate:            gate,
		gateway:         gateway,
		records:         records,
		logger:          logger,
	}
	if n.loc == nil {
		n.loc = time.UTC
	}
	n.watchdog = NewPumpWatchdog(clock, cfg.WatchdogDuration, n.checkLeftRunning, logger)
	return n
}

// Watchdog exposes the pump watchdog for inspection
func (n *Notifier) Watchdog() *PumpWatchdog {
	return n.watchdog
}

// OnReading evaluates a heat or humidity reading taken at currentAge and emits an
// alert when it breaches the stage limit and the cooldown permits. It reports
// whether an alert was emitted.
func (n *Notifier) OnReading(ctx context.Context, kind models.AlertKind, subKey string, currentAge int, value float64) bool {
	if kind != models.AlertHeat && kind != models.AlertHumidityHigh {
		n.logger.Warn("Ignoring reading of unsupported kind", zap.String("alert_kind", string(kind)))
		return false
	}

	evaluator := NewThresholdEvaluator(n.thresholdTable(ctx, kind))
	breached, limit, stage := evaluator.Evaluate(currentAge, value)
	if !breached {
		return false
	}

	now := n.clock.Now()
	if !n.acquire(models.NewCooldownKey(kind, subKey), now) {
		return false
	}

	n.logger.Info("Threshold breached",
		zap.String("alert_kind", string(kind)),
		zap.String("sub_key", subKey),
		zap.Float64("value", value),
		zap.Float64("limit", limit),
		zap.String("stage", stage),
		zap.Int("age", currentAge))

	n.emit(ctx, kind, subKey, ThresholdMessage(kind, subKey, value, limit, stage, currentAge, now.In(n.loc)))
	return true
}

// OnSensorReading is OnReading with the lot age looked up from the facility.
// An unknown age makes the evaluator fall back to its default limit.
func (n *Notifier) OnSensorReading(ctx context.Context, kind models.AlertKind, subKey string, value float64) bool {
	age, err := n.facility.CurrentAge(ctx, n.clock.Now())
	if err != nil {
		n.logger.Warn("Failed to resolve lot age, using fallback limit", zap.Error(err))
		age = -1
	}
	return n.OnReading(ctx, kind, subKey, age, value)
}

// OnTankLevel maps a tank fill percentage onto at most one tier alert
func (n *Notifier) OnTankLevel(ctx context.Context, tankID string, percent float64) bool {
	var kind models.AlertKind
	switch {
	case percent >= 100:
		// Topping up re-arms the low tiers
		n.gate.ResetTankAlarms(tankID)
		kind = models.AlertTankFull
	case percent <= 10:
		kind = models.AlertTankCritical
	case percent <= 20:
		kind = models.AlertTankLow
	default:
		return false
	}

	now := n.clock.Now()
	if !n.acquire(models.NewCooldownKey(kind, tankID), now) {
		return false
	}

	n.logger.Info("Tank level alert",
		zap.String("alert_kind", string(kind)),
		zap.String("tank_id", tankID),
		zap.Float64("percent", percent))

	n.emit(ctx, kind, tankID, TankMessage(kind, tankID, percent, now.In(n.loc)))
	return true
}

// OnDeviceToggle drives the watchdog and announces the transition
func (n *Notifier) OnDeviceToggle(ctx context.Context, deviceID string, turnedOn bool) {
	n.recordDeviceState(ctx, deviceID, turnedOn)
	name := n.deviceName(ctx, deviceID)

	if turnedOn {
		armedAt := n.watchdog.Arm(deviceID)
		n.emit(ctx, models.AlertDeviceOn, deviceID, ActivationMessage(name, armedAt.In(n.loc).Hour()))
		return
	}

	armedAt, wasArmed := n.watchdog.Disarm(deviceID)
	var elapsed time.Duration
	if wasArmed {
		elapsed = n.clock.Now().Sub(armedAt)
	}
	n.emit(ctx, models.AlertDeviceOff, deviceID, DeactivationMessage(name, elapsed, wasArmed))
}

// OnFeedStock alerts when a silo drops below the configured minimum
func (n *Notifier) OnFeedStock(ctx context.Context, siloID string, kg float64) bool {
	if kg >= n.feedLowKg {
		return false
	}

	now := n.clock.Now()
	if !n.acquire(models.NewCooldownKey(models.AlertFeedStockLow, siloID), now) {
		return false
	}

	n.logger.Info("Feed stock low",
		zap.String("silo_id", siloID),
		zap.Float64("kg", kg))

	n.emit(ctx, models.AlertFeedStockLow, siloID, FeedStockMessage(siloID, kg, n.feedLowKg, now.In(n.loc)))
	return true
}

// OnStockReplenished re-arms the feed alert of a silo
func (n *Notifier) OnStockReplenished(ctx context.Context, siloID string) {
	n.gate.Reset(models.NewCooldownKey(models.AlertFeedStockLow, siloID))
	n.logger.Info("Feed stock replenished", zap.String("silo_id", siloID))
}

// HandleEvent routes a queued facility event to the matching entry point
func (n *Notifier) HandleEvent(ctx context.Context, event *models.FacilityEvent) error {
	if event == nil {
		return errors.New("nil event")
	}

	switch event.Type {
	case models.EventReading:
		if event.Kind != models.AlertHeat && event.Kind != models.AlertHumidityHigh {
			return fmt.Errorf("unsupported reading kind %q", event.Kind)
		}
		n.OnSensorReading(ctx, event.Kind, event.SubKey, event.Value)
	case models.EventTankLevel:
		if event.TankID == "" {
			return errors.New("tank_level event without tank_id")
		}
		n.OnTankLevel(ctx, event.TankID, event.Percent)
	case models.EventDeviceToggle:
		if event.DeviceID == "" {
			return errors.New("device_toggle event without device_id")
		}
		n.OnDeviceToggle(ctx, event.DeviceID, event.On)
	case models.EventFeedStock:
		if event.SiloID == "" {
			return errors.New("feed_stock event without silo_id")
		}
		n.OnFeedStock(ctx, event.SiloID, event.Kg)
	case models.EventStockReplenished:
		if event.SiloID == "" {
			return errors.New("stock_replenished event without silo_id")
		}
		n.OnStockReplenished(ctx, event.SiloID)
	default:
		return fmt.Errorf("unknown event type %q", event.Type)
	}
	return nil
}

// Notify emits an ungated alert. Daily jobs use it.
func (n *Notifier) Notify(ctx context.Context, kind models.AlertKind, subKey, message string) {
	n.emit(ctx, kind, subKey, message)
}

// Wait blocks until in-flight deliveries have finished
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// Close stops the watchdog, refuses new alerts and waits for in-flight deliveries
func (n *Notifier) Close() {
	n.closeMu.Lock()
	n.closed = true
	n.closeMu.Unlock()

	n.watchdog.Close()
	n.wg.Wait()
}

// checkLeftRunning is the watchdog callback
func (n *Notifier) checkLeftRunning(ctx context.Context, deviceID string, armedAt time.Time) {
	device, err := n.facility.Device(ctx, deviceID)
	if err != nil {
		n.logger.Warn("Failed to re-read device state",
			zap.String("device_id", deviceID),
			zap.Error(err))
		return
	}
	if !device.On {
		n.logger.Debug("Device already off at watchdog check", zap.String("device_id", deviceID))
		return
	}
	// Turned off while the state was being read
	if ctx.Err() != nil {
		return
	}

	now := n.clock.Now()
	if !n.acquire(models.NewCooldownKey(models.AlertPumpLeftRunning, deviceID), now) {
		return
	}

	elapsed := now.Sub(armedAt)
	n.logger.Warn("Device left running",
		zap.String("device_id", deviceID),
		zap.Duration("elapsed", elapsed))

	name := device.Name
	if name == "" {
		name = deviceID
	}
	n.emit(ctx, models.AlertPumpLeftRunning, deviceID, PumpLeftRunningMessage(name, elapsed, now.In(n.loc)))
}

func (n *Notifier) acquire(key models.CooldownKey, now time.Time) bool {
	if n.gate.TryAcquire(key, n.cooldowns[key.Kind], now) {
		return true
	}
	alertsSuppressedTotal.WithLabelValues(string(key.Kind)).Inc()
	n.logger.Debug("Alert suppressed by cooldown", zap.String("key", key.String()))
	return false
}

// emit hands message to the gateway on its own goroutine and persists the outcome
func (n *Notifier) emit(ctx context.Context, kind models.AlertKind, subKey, message string) {
	n.closeMu.RLock()
	if n.closed {
		n.closeMu.RUnlock()
		n.logger.Warn("Notifier closed, dropping alert",
			zap.String("alert_kind", string(kind)),
			zap.String("preview", preview(message)))
		return
	}
	n.wg.Add(1)
	n.closeMu.RUnlock()

	alertsEmittedTotal.WithLabelValues(string(kind)).Inc()
	at := n.clock.Now()
	// Delivery outlives the triggering event
	base := context.WithoutCancel(ctx)

	go func() {
		defer n.wg.Done()

		sendCtx, cancel := context.WithTimeout(base, n.deliveryTimeout)
		results := n.gateway.Send(sendCtx, message)
		cancel()

		if n.records == nil {
			return
		}
		record := models.NewAlertRecord(uuid.NewString(), kind, subKey, message, results, at)
		writeCtx, cancel := context.WithTimeout(base, n.deliveryTimeout)
		defer cancel()
		if err := n.records.WriteAlert(writeCtx, record); err != nil {
			alertRecordsDroppedTotal.Inc()
			n.logger.Warn("Failed to persist alert record",
				zap.String("alert_id", record.ID),
				zap.String("alert_kind", string(kind)),
				zap.Error(err))
		}
	}()
}

func (n *Notifier) thresholdTable(ctx context.Context, kind models.AlertKind) models.ThresholdTable {
	table, err := n.facility.ThresholdTable(ctx, kind)
	if err != nil && !errors.Is(err, ErrNotFound) {
		n.logger.Warn("Failed to read threshold table, using defaults",
			zap.String("alert_kind", string(kind)),
			zap.Error(err))
	}
	if err != nil || len(table) == 0 {
		return models.DefaultThresholds[kind]
	}
	return table
}

func (n *Notifier) deviceName(ctx context.Context, deviceID string) string {
	device, err := n.facility.Device(ctx, deviceID)
	if err != nil || device.Name == "" {
		return deviceID
	}
	return device.Name
}

func (n *Notifier) recordDeviceState(ctx context.Context, deviceID string, on bool) {
	writer, ok := n.facility.(DeviceStateWriter)
	if !ok {
		return
	}
	if err := writer.SetDeviceState(ctx, deviceID, on); err != nil {
		n.logger.Warn("Failed to record device state",
			zap.String("device_id", deviceID),
			zap.Bool("on", on),
			zap.Error(err))
	}
}
