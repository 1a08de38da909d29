package services

import (
	"context"
	"errors"
	"time"

	"coopwatch/config"
	"coopwatch/models"

	"go.uber.org/zap"
)

// ErrBufferFull is returned by WriteAlert when the batcher cannot keep up
var ErrBufferFull = errors.New("alert record buffer full")

// AlertRecordBatcher queues alert records and writes them to a batch sink by
// size or timeout
type AlertRecordBatcher struct {
	sink         AlertBatchSink
	logger       *zap.Logger
	incoming     chan models.AlertRecord
	buffer       []models.AlertRecord
	maxBatchSize int
	batchTimeout time.Duration
	retryBackoff time.Duration
	shutdownChan chan struct{}
}

// NewAlertRecordBatcher creates a batcher; call Start to begin flushing
func NewAlertRecordBatcher(cfg *config.Config, sink AlertBatchSink, logger *zap.Logger) *AlertRecordBatcher {
	size := cfg.AlertBatchSize
	if size <= 0 {
		size = 20
	}
	timeout := cfg.AlertBatchTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AlertRecordBatcher{
		sink:         sink,
		logger:       logger,
		incoming:     make(chan models.AlertRecord, size*4),
		buffer:       make([]models.AlertRecord, 0, size),
		maxBatchSize: size,
		batchTimeout: timeout,
		retryBackoff: time.Second,
		shutdownChan: make(chan struct{}),
	}
}

// WriteAlert enqueues record without blocking
func (bw *AlertRecordBatcher) WriteAlert(_ context.Context, record models.AlertRecord) error {
	select {
	case bw.incoming <- record:
		return nil
	default:
		return ErrBufferFull
	}
}

// Start flushes queued records until ctx is cancelled, then flushes what is left
func (bw *AlertRecordBatcher) Start(ctx context.Context) {
	defer close(bw.shutdownChan)

	bw.logger.Info("Starting alert record batcher",
		zap.Int("max_batch_size", bw.maxBatchSize),
		zap.Duration("batch_timeout", bw.batchTimeout))

	flushTimer := time.NewTimer(bw.batchTimeout)
	defer flushTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			bw.logger.Info("Alert batcher received shutdown signal")
			bw.drain()
			// Final flush must not inherit the cancellation
			bw.flushBuffer(context.WithoutCancel(ctx))
			return

		case record := <-bw.incoming:
			bw.buffer = append(bw.buffer, record)

			bw.logger.Debug("Added alert record to buffer",
				zap.String("alert_id", record.ID),
				zap.Int("buffer_size", len(bw.buffer)),
				zap.Int("max_batch_size", bw.maxBatchSize))

			if len(bw.buffer) >= bw.maxBatchSize {
				if !flushTimer.Stop() {
					select {
					case <-flushTimer.C:
					default:
					}
				}
				bw.flushBuffer(ctx)
				flushTimer.Reset(bw.batchTimeout)
			}

		case <-flushTimer.C:
			if len(bw.buffer) > 0 {
				bw.logger.Debug("Batch timeout reached, flushing alert records",
					zap.Int("buffer_size", len(bw.buffer)))
				bw.flushBuffer(ctx)
			}
			flushTimer.Reset(bw.batchTimeout)
		}
	}
}

func (bw *AlertRecordBatcher) drain() {
	for {
		select {
		case record := <-bw.incoming:
			bw.buffer = append(bw.buffer, record)
		default:
			return
		}
	}
}

// flushBuffer writes the buffer to the sink with bounded retries
func (bw *AlertRecordBatcher) flushBuffer(ctx context.Context) {
	if len(bw.buffer) == 0 {
		return
	}

	batch := make([]models.AlertRecord, len(bw.buffer))
	copy(batch, bw.buffer)
	bw.buffer = bw.buffer[:0]

	maxRetries := 3
	var err error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		err = bw.sink.WriteAlerts(ctx, batch)
		if err == nil {
			bw.logger.Info("Flushed alert records",
				zap.Int("batch_size", len(batch)))
			return
		}

		bw.logger.Error("Failed to flush alert records",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Int("batch_size", len(batch)),
			zap.Error(err))

		if attempt < maxRetries {
			select {
			case <-time.After(time.Duration(attempt) * bw.retryBackoff):
			case <-ctx.Done():
				attempt = maxRetries
			}
		}
	}

	alertRecordsDroppedTotal.Add(float64(len(batch)))
	bw.logger.Error("Failed to flush alert records after all retries, records lost",
		zap.Int("batch_size", len(batch)),
		zap.Error(err))
}

// WaitForShutdown waits for Start to return
func (bw *AlertRecordBatcher) WaitForShutdown(timeout time.Duration) bool {
	select {
	case <-bw.shutdownChan:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Pending returns the number of queued records not yet in a batch
func (bw *AlertRecordBatcher) Pending() int {
	return len(bw.incoming)
}
