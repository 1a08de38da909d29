package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// WatchdogCheck runs when a device has stayed on for the watchdog duration.
// ctx is cancelled as soon as the device is turned off or re-armed.
type WatchdogCheck func(ctx context.Context, deviceID string, armedAt time.Time)

type watchdogEntry struct {
	armedAt time.Time
	ctx     context.Context
	cancel  context.CancelFunc
	timer   Timer
	fired   bool
}

// PumpWatchdog keeps at most one pending delayed check per device
type PumpWatchdog struct {
	clock  Clock
	delay  time.Duration
	check  WatchdogCheck
	logger *zap.Logger

	base       context.Context
	cancelBase context.CancelFunc

	mu      sync.Mutex
	entries map[string]*watchdogEntry
}

// NewPumpWatchdog creates a watchdog that calls check after delay of continuous activity
func NewPumpWatchdog(clock Clock, delay time.Duration, check WatchdogCheck, logger *zap.Logger) *PumpWatchdog {
	base, cancel := context.WithCancel(context.Background())
	return &PumpWatchdog{
		clock:      clock,
		delay:      delay,
		check:      check,
		logger:     logger,
		base:       base,
		cancelBase: cancel,
		entries:    make(map[string]*watchdogEntry),
	}
}

// Arm starts a fresh timer for deviceID, replacing any pending one
func (w *PumpWatchdog) Arm(deviceID string) time.Time {
	now := w.clock.Now()
	ctx, cancel := context.WithCancel(w.base)
	entry := &watchdogEntry{
		armedAt: now,
		ctx:     ctx,
		cancel:  cancel,
	}

	w.mu.Lock()
	previous := w.entries[deviceID]
	w.entries[deviceID] = entry
	// Timer is created under the lock so fire always observes entry.timer set
	entry.timer = w.clock.AfterFunc(w.delay, func() { w.fire(deviceID, entry) })
	w.mu.Unlock()

	if previous != nil {
		previous.stop()
		w.logger.Debug("Watchdog re-armed",
			zap.String("device_id", deviceID),
			zap.Time("previous_armed_at", previous.armedAt))
	} else {
		w.logger.Debug("Watchdog armed",
			zap.String("device_id", deviceID),
			zap.Duration("delay", w.delay))
	}
	return now
}

// Disarm cancels the pending check for deviceID. It returns when the device was
// armed, whether or not the check already fired. Calling it on an idle device is a no-op.
func (w *PumpWatchdog) Disarm(deviceID string) (armedAt time.Time, wasArmed bool) {
	w.mu.Lock()
	entry := w.entries[deviceID]
	delete(w.entries, deviceID)
	w.mu.Unlock()

	if entry == nil {
		return time.Time{}, false
	}
	entry.stop()
	w.logger.Debug("Watchdog disarmed",
		zap.String("device_id", deviceID),
		zap.Bool("had_fired", entry.fired))
	return entry.armedAt, true
}

// ArmedSince reports when deviceID was armed
func (w *PumpWatchdog) ArmedSince(deviceID string) (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	entry, ok := w.entries[deviceID]
	if !ok {
		return time.Time{}, false
	}
	return entry.armedAt, true
}

// Pending returns the number of armed devices
func (w *PumpWatchdog) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// Close cancels every pending check
func (w *PumpWatchdog) Close() {
	w.cancelBase()

	w.mu.Lock()
	entries := w.entries
	w.entries = make(map[string]*watchdogEntry)
	w.mu.Unlock()

	for _, entry := range entries {
		entry.stop()
	}
}

func (w *PumpWatchdog) fire(deviceID string, entry *watchdogEntry) {
	if entry.ctx.Err() != nil {
		return
	}

	w.mu.Lock()
	current := w.entries[deviceID] == entry
	if current {
		entry.fired = true
	}
	w.mu.Unlock()

	// A re-arm or disarm won the race
	if !current {
		return
	}

	watchdogFiredTotal.Inc()
	w.logger.Info("Watchdog fired",
		zap.String("device_id", deviceID),
		zap.Time("armed_at", entry.armedAt))
	w.check(entry.ctx, deviceID, entry.armedAt)
}

func (e *watchdogEntry) stop() {
	e.cancel()
	if e.timer != nil {
		e.timer.Stop()
	}
}
