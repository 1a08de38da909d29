package services

import (
	"sync"
	"time"

	"coopwatch/models"
)

// CooldownGate is a keyed rate limiter. At most one caller per key is
// permitted within a window, even when callers race.
type CooldownGate struct {
	mu       sync.Mutex
	lastSent map[models.CooldownKey]time.Time
}

func NewCooldownGate() *CooldownGate {
	return &CooldownGate{
		lastSent: make(map[models.CooldownKey]time.Time),
	}
}

// TryAcquire permits an emission for key and records now when the key has no
// record or its record is at least window old. A denied call leaves state untouched.
func (g *CooldownGate) TryAcquire(key models.CooldownKey, window time.Duration, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if last, exists := g.lastSent[key]; exists && now.Sub(last) < window {
		return false
	}
	g.lastSent[key] = now
	return true
}

// Reset forgets key so the next TryAcquire is permitted
func (g *CooldownGate) Reset(key models.CooldownKey) {
	g.mu.Lock()
	delete(g.lastSent, key)
	g.mu.Unlock()
}

// ResetAll forgets every key
func (g *CooldownGate) ResetAll() {
	g.mu.Lock()
	g.lastSent = make(map[models.CooldownKey]time.Time)
	g.mu.Unlock()
}

// ResetTankAlarms re-arms the low and critical alerts of a tank once it has been topped up
func (g *CooldownGate) ResetTankAlarms(tankID string) {
	g.mu.Lock()
	delete(g.lastSent, models.NewCooldownKey(models.AlertTankLow, tankID))
	delete(g.lastSent, models.NewCooldownKey(models.AlertTankCritical, tankID))
	g.mu.Unlock()
}

// LastSent returns when key last passed the gate
func (g *CooldownGate) LastSent(key models.CooldownKey) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.lastSent[key]
	return t, ok
}

// Len returns the number of tracked keys
func (g *CooldownGate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.lastSent)
}
