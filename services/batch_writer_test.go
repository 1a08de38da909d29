package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"coopwatch/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type batchSink struct {
	mu       sync.Mutex
	batches  [][]models.AlertRecord
	failures int
}

func (s *batchSink) WriteAlerts(_ context.Context, records []models.AlertRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("firebase: 503 service unavailable")
	}
	s.batches = append(s.batches, append([]models.AlertRecord(nil), records...))
	return nil
}

func (s *batchSink) Batches() [][]models.AlertRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]models.AlertRecord(nil), s.batches...)
}

func (s *batchSink) total() int {
	n := 0
	for _, b := range s.Batches() {
		n += len(b)
	}
	return n
}

func testRecord(i int) models.AlertRecord {
	return models.AlertRecord{ID: fmt.Sprintf("alert-%d", i), Kind: models.AlertHeat, Timestamp: time.Now()}
}

func startBatcher(t *testing.T, sink AlertBatchSink) *AlertRecordBatcher {
	t.Helper()
	bw := NewAlertRecordBatcher(testConfig(), sink, zaptest.NewLogger(t))
	bw.retryBackoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go bw.Start(ctx)
	t.Cleanup(func() {
		cancel()
		bw.WaitForShutdown(time.Second)
	})
	return bw
}

func TestAlertRecordBatcher_FlushesOnSize(t *testing.T) {
	sink := &batchSink{}
	cfg := testConfig()
	cfg.AlertBatchTimeout = time.Hour
	bw := NewAlertRecordBatcher(cfg, sink, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(t.Context())
	go bw.Start(ctx)
	defer func() {
		cancel()
		bw.WaitForShutdown(time.Second)
	}()

	require.NoError(t, bw.WriteAlert(ctx, testRecord(1)))
	require.NoError(t, bw.WriteAlert(ctx, testRecord(2)))

	assert.Eventually(t, func() bool { return len(sink.Batches()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, sink.Batches()[0], 2)
}

func TestAlertRecordBatcher_FlushesOnTimeout(t *testing.T) {
	sink := &batchSink{}
	bw := startBatcher(t, sink)

	require.NoError(t, bw.WriteAlert(t.Context(), testRecord(1)))

	assert.Eventually(t, func() bool { return sink.total() == 1 }, time.Second, 5*time.Millisecond)
}

func TestAlertRecordBatcher_FlushesOnShutdown(t *testing.T) {
	sink := &batchSink{}
	cfg := testConfig()
	cfg.AlertBatchSize = 10
	cfg.AlertBatchTimeout = time.Hour
	bw := NewAlertRecordBatcher(cfg, sink, zaptest.NewLogger(t))

	for i := range 3 {
		require.NoError(t, bw.WriteAlert(t.Context(), testRecord(i)))
	}

	ctx, cancel := context.WithCancel(t.Context())
	go bw.Start(ctx)
	cancel()

	require.True(t, bw.WaitForShutdown(time.Second))
	assert.Equal(t, 3, sink.total())
	assert.Zero(t, bw.Pending())
}

func TestAlertRecordBatcher_RetriesFailedFlush(t *testing.T) {
	sink := &batchSink{failures: 2}
	bw := startBatcher(t, sink)

	require.NoError(t, bw.WriteAlert(t.Context(), testRecord(1)))
	require.NoError(t, bw.WriteAlert(t.Context(), testRecord(2)))

	assert.Eventually(t, func() bool { return sink.total() == 2 }, time.Second, 5*time.Millisecond)
}

func TestAlertRecordBatcher_BufferFull(t *testing.T) {
	bw := NewAlertRecordBatcher(testConfig(), &batchSink{}, zaptest.NewLogger(t))

	// Not started: capacity is four batches
	for i := range 8 {
		require.NoError(t, bw.WriteAlert(t.Context(), testRecord(i)))
	}
	assert.ErrorIs(t, bw.WriteAlert(t.Context(), testRecord(9)), ErrBufferFull)
	assert.Equal(t, 8, bw.Pending())
}

func TestAlertRecordBatcher_WaitForShutdownTimesOut(t *testing.T) {
	bw := NewAlertRecordBatcher(testConfig(), &batchSink{}, zaptest.NewLogger(t))
	assert.False(t, bw.WaitForShutdown(10*time.Millisecond))
}
