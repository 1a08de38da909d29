package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type checkRecorder struct {
	mu    sync.Mutex
	calls []time.Time
}

func (r *checkRecorder) check(_ context.Context, _ string, armedAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, armedAt)
}

func (r *checkRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func newTestWatchdog(t *testing.T) (*PumpWatchdog, *fakeClock, *checkRecorder) {
	t.Helper()
	clock := newFakeClock(time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC))
	recorder := &checkRecorder{}
	w := NewPumpWatchdog(clock, 30*time.Minute, recorder.check, zaptest.NewLogger(t))
	t.Cleanup(w.Close)
	return w, clock, recorder
}

func TestPumpWatchdog_OffBeforeDelayNeverFires(t *testing.T) {
	w, clock, recorder := newTestWatchdog(t)

	w.Arm("pump-1")
	clock.Advance(10 * time.Minute)
	_, wasArmed := w.Disarm("pump-1")
	clock.Advance(time.Hour)

	assert.True(t, wasArmed)
	assert.Zero(t, recorder.count())
	assert.Zero(t, w.Pending())
}

func TestPumpWatchdog_FiresExactlyOnce(t *testing.T) {
	w, clock, recorder := newTestWatchdog(t)

	armedAt := w.Arm("pump-1")
	clock.Advance(29 * time.Minute)
	assert.Zero(t, recorder.count())

	clock.Advance(time.Minute)
	require.Equal(t, 1, recorder.count())
	assert.Equal(t, armedAt, recorder.calls[0])

	clock.Advance(2 * time.Hour)
	assert.Equal(t, 1, recorder.count())
}

func TestPumpWatchdog_OffOnResetsElapsedBase(t *testing.T) {
	w, clock, recorder := newTestWatchdog(t)
	t0 := clock.Now()

	w.Arm("pump-1")
	clock.Advance(10 * time.Minute)
	w.Disarm("pump-1")
	clock.Advance(5 * time.Minute)
	second := w.Arm("pump-1")
	clock.Advance(20 * time.Minute) // past the first arm's deadline

	assert.Zero(t, recorder.count())

	armedAt, wasArmed := w.Disarm("pump-1")
	require.True(t, wasArmed)
	assert.Equal(t, t0.Add(15*time.Minute), armedAt)
	assert.Equal(t, second, armedAt)
	assert.Equal(t, 20*time.Minute, clock.Now().Sub(armedAt))
}

func TestPumpWatchdog_RearmWhileArmedKeepsOneCheck(t *testing.T) {
	w, clock, recorder := newTestWatchdog(t)

	w.Arm("pump-1")
	clock.Advance(20 * time.Minute)
	second := w.Arm("pump-1")
	assert.Equal(t, 1, w.Pending())

	clock.Advance(15 * time.Minute)
	assert.Zero(t, recorder.count(), "first deadline was cancelled")

	clock.Advance(15 * time.Minute)
	require.Equal(t, 1, recorder.count())
	assert.Equal(t, second, recorder.calls[0])
}

func TestPumpWatchdog_DisarmAfterFireReportsArmedAt(t *testing.T) {
	w, clock, recorder := newTestWatchdog(t)

	armedAt := w.Arm("pump-1")
	clock.Advance(45 * time.Minute)
	require.Equal(t, 1, recorder.count())

	got, wasArmed := w.Disarm("pump-1")
	assert.True(t, wasArmed)
	assert.Equal(t, armedAt, got)
}

func TestPumpWatchdog_DisarmIdleIsNoop(t *testing.T) {
	w, _, _ := newTestWatchdog(t)

	armedAt, wasArmed := w.Disarm("pump-1")
	assert.False(t, wasArmed)
	assert.True(t, armedAt.IsZero())

	_, wasArmed = w.Disarm("pump-1")
	assert.False(t, wasArmed)
}

func TestPumpWatchdog_StaleFireIsNoop(t *testing.T) {
	w, _, recorder := newTestWatchdog(t)

	w.Arm("pump-1")
	w.mu.Lock()
	stale := w.entries["pump-1"]
	w.mu.Unlock()

	w.Disarm("pump-1")
	w.fire("pump-1", stale)

	w.Arm("pump-1")
	w.fire("pump-1", stale)

	assert.Zero(t, recorder.count())
}

func TestPumpWatchdog_DevicesAreIndependent(t *testing.T) {
	w, clock, recorder := newTestWatchdog(t)

	w.Arm("pump-1")
	clock.Advance(10 * time.Minute)
	w.Arm("nebulizer-1")
	w.Disarm("pump-1")

	armedAt, ok := w.ArmedSince("nebulizer-1")
	require.True(t, ok)

	clock.Advance(30 * time.Minute)
	require.Equal(t, 1, recorder.count())
	assert.Equal(t, armedAt, recorder.calls[0])
}

func TestPumpWatchdog_CloseCancelsPending(t *testing.T) {
	w, clock, recorder := newTestWatchdog(t)

	w.Arm("pump-1")
	w.Arm("pump-2")
	w.Close()
	clock.Advance(time.Hour)

	assert.Zero(t, recorder.count())
	assert.Zero(t, w.Pending())
}
