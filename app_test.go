package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"coopwatch/config"
	"coopwatch/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

const facilityYAML = `
lot_start: "2026-04-01"
devices:
  - id: pump-1
    name: Fill pump
`

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "facility.yaml")
	require.NoError(t, os.WriteFile(path, []byte(facilityYAML), 0o600))

	return &config.Config{
		Store:             config.StoreMemory,
		FacilityFile:      path,
		Location:          time.UTC,
		WatchdogDuration:  30 * time.Minute,
		DeliveryTimeout:   time.Second,
		SchedulerTick:     time.Second,
		HealthCalendarAt:  "07:00",
		WaterSummaryAt:    "20:00",
		AlertBatchSize:    5,
		AlertBatchTimeout: time.Second,
	}
}

func TestBuildApp_MemoryStoreLogOnly(t *testing.T) {
	a, err := buildApp(memoryConfig(t), zaptest.NewLogger(t), false)
	require.NoError(t, err)
	defer a.notifier.Close()

	assert.True(t, a.gateway.LogOnly())
	assert.Nil(t, a.batcher)

	device, err := a.store.Device(t.Context(), "pump-1")
	require.NoError(t, err)
	assert.Equal(t, "Fill pump", device.Name)
}

func TestBuildApp_Batched(t *testing.T) {
	a, err := buildApp(memoryConfig(t), zaptest.NewLogger(t), true)
	require.NoError(t, err)
	defer a.notifier.Close()

	assert.NotNil(t, a.batcher)
}

func TestBuildApp_MissingFacilityFile(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.FacilityFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := buildApp(cfg, zaptest.NewLogger(t), false)
	assert.Error(t, err)
}

func TestDeliveryChannels(t *testing.T) {
	cfg := memoryConfig(t)
	assert.Empty(t, deliveryChannels(cfg, zaptest.NewLogger(t)))

	cfg.WebhookURL = "http://annunciator.local"
	cfg.EmailURL = "not a url"
	channels := deliveryChannels(cfg, zaptest.NewLogger(t))

	// the broken email URL is skipped, the webhook stays
	require.Len(t, channels, 1)
	assert.Equal(t, "webhook", channels[0].Name())
}

func TestBuildApp_AllChannelsFailed(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.EmailURL = "not a url"
	core, logs := observer.New(zapcore.InfoLevel)

	a, err := buildApp(cfg, zap.New(core), false)
	require.NoError(t, err)
	defer a.notifier.Close()

	assert.True(t, a.gateway.LogOnly())
	failed := logs.FilterMessageSnippet("failed to initialize").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.ErrorLevel, failed[0].Level)
	assert.Zero(t, logs.FilterMessageSnippet("No delivery channel configured").Len())
}

func TestBuildApp_NoChannelsWarns(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	a, err := buildApp(memoryConfig(t), zap.New(core), false)
	require.NoError(t, err)
	defer a.notifier.Close()

	warned := logs.FilterMessageSnippet("No delivery channel configured").All()
	require.Len(t, warned, 1)
	assert.Equal(t, zapcore.WarnLevel, warned[0].Level)
}

type closingStore struct {
	*services.MemoryStore
	closed int
	err    error
}

func (c *closingStore) Close() error {
	c.closed++
	return c.err
}

func TestApp_CloseReleasesStore(t *testing.T) {
	store := &closingStore{MemoryStore: services.NewMemoryStore(time.UTC)}
	a := &app{logger: zaptest.NewLogger(t), store: store}

	a.close()
	assert.Equal(t, 1, store.closed)

	core, logs := observer.New(zapcore.InfoLevel)
	store.err = errors.New("connection reset")
	a.logger = zap.New(core)
	a.close()
	assert.Equal(t, 2, store.closed)
	assert.Equal(t, 1, logs.FilterMessage("Error closing facility store").Len())

	// stores without Close are left alone
	plain := &app{logger: zaptest.NewLogger(t), store: services.NewMemoryStore(time.UTC)}
	assert.NotPanics(t, plain.close)
}

func TestCheckCLIJob(t *testing.T) {
	assert.ErrorContains(t, checkCLIJob(services.JobMidnightReset), "only runs inside serve")
	assert.NoError(t, checkCLIJob(services.JobHealthCalendar))
	assert.NoError(t, checkCLIJob(services.JobWaterSummary))
}
