package services

import (
	"context"
	"fmt"
	"time"

	"coopwatch/config"
	"coopwatch/models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const (
	lotStartPath   = "facility/lot_start"
	devicesPath    = "facility/devices"
	thresholdsPath = "facility/thresholds"
	waterPath      = "consumption/water"
	alertsPath     = "alerts"
	jobsPath       = "jobs"
)

// FirebaseStore keeps facility state, consumption, alert records and the job
// ledger in the Realtime Database
type FirebaseStore struct {
	client      *db.Client
	databaseURL string
	loc         *time.Location
	logger      *zap.Logger
}

func NewFirebaseStore(cfg *config.Config, logger *zap.Logger) (*FirebaseStore, error) {
	ctx := context.Background()

	// Parse the service account JSON from environment variable
	serviceAccountJSON := []byte(cfg.FirebaseServiceAccountJSON)

	conf := &firebase.Config{
		DatabaseURL: cfg.FirebaseDbUrl,
	}

	opt := option.WithCredentialsJSON(serviceAccountJSON)
	app, err := firebase.NewApp(ctx, conf, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting database client: %w", err)
	}

	fs := &FirebaseStore{
		client:      client,
		databaseURL: cfg.FirebaseDbUrl,
		loc:         cfg.Location,
		logger:      logger,
	}

	if err := fs.testConnection(ctx); err != nil {
		logger.Error("Firebase connection test failed", zap.Error(err))
		return nil, fmt.Errorf("firebase connection test failed: %w", err)
	}

	return fs, nil
}

// testConnection tests Firebase connection with retry logic
func (fs *FirebaseStore) testConnection(ctx context.Context) error {
	maxRetries := 3

	for attempt := 1; attempt <= maxRetries; attempt++ {
		fs.logger.Info("Testing Firebase connection", zap.Int("attempt", attempt), zap.Int("max_retries", maxRetries))

		var lotStart string
		err := fs.client.NewRef(lotStartPath).Get(ctx, &lotStart)
		if err == nil {
			fs.logger.Info("Firebase connection successful")
			return nil
		}

		fs.logger.Warn("Firebase connection failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(err))

		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}

	return fmt.Errorf("failed to connect to Firebase after %d attempts", maxRetries)
}

// CurrentAge counts days since the lot start date stored at facility/lot_start
func (fs *FirebaseStore) CurrentAge(ctx context.Context, now time.Time) (int, error) {
	var raw string
	if err := fs.client.NewRef(lotStartPath).Get(ctx, &raw); err != nil {
		return 0, fmt.Errorf("error getting lot start: %w", err)
	}
	if raw == "" {
		return 0, fmt.Errorf("lot start: %w", ErrNotFound)
	}
	start, err := models.ParseDayKey(raw)
	if err != nil {
		return 0, err
	}
	return models.NewDayKey(now, fs.loc).DaysSince(start), nil
}

func (fs *FirebaseStore) Device(ctx context.Context, deviceID string) (models.Device, error) {
	var device *models.Device
	if err := fs.client.NewRef(devicesPath).Child(deviceID).Get(ctx, &device); err != nil {
		return models.Device{}, fmt.Errorf("error getting device %s: %w", deviceID, err)
	}
	if device == nil {
		return models.Device{}, fmt.Errorf("device %s: %w", deviceID, ErrNotFound)
	}
	device.ID = deviceID
	return *device, nil
}

// SetDeviceState records the latest toggle so the watchdog re-check sees it
func (fs *FirebaseStore) SetDeviceState(ctx context.Context, deviceID string, on bool) error {
	err := fs.client.NewRef(devicesPath).Child(deviceID).Update(ctx, map[string]interface{}{
		"on":         on,
		"updated_at": time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("error updating device %s: %w", deviceID, err)
	}
	return nil
}

func (fs *FirebaseStore) ThresholdTable(ctx context.Context, kind models.AlertKind) (models.ThresholdTable, error) {
	var table models.ThresholdTable
	if err := fs.client.NewRef(thresholdsPath).Child(string(kind)).Get(ctx, &table); err != nil {
		return nil, fmt.Errorf("error getting thresholds for %s: %w", kind, err)
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("thresholds for %s: %w", kind, ErrNotFound)
	}
	return table, nil
}

func (fs *FirebaseStore) WaterTotal(ctx context.Context, day models.DayKey) (float64, error) {
	var total *float64
	if err := fs.client.NewRef(waterPath).Child(day.String()).Get(ctx, &total); err != nil {
		return 0, fmt.Errorf("error getting water total: %w", err)
	}
	if total == nil {
		return 0, fmt.Errorf("water total %s: %w", day, ErrNotFound)
	}
	return *total, nil
}

func (fs *FirebaseStore) WriteAlert(ctx context.Context, record models.AlertRecord) error {
	if err := fs.client.NewRef(alertsPath).Child(record.ID).Set(ctx, record); err != nil {
		return fmt.Errorf("error writing alert: %w", err)
	}
	return nil
}

// WriteAlerts stores a batch in a single multi-path update
func (fs *FirebaseStore) WriteAlerts(ctx context.Context, records []models.AlertRecord) error {
	if len(records) == 0 {
		return nil
	}

	updates := make(map[string]interface{}, len(records))
	for _, record := range records {
		updates[record.ID] = record
	}

	if err := fs.client.NewRef(alertsPath).Update(ctx, updates); err != nil {
		return fmt.Errorf("error writing batch: %w", err)
	}

	fs.logger.Debug("Alert batch written",
		zap.Int("batch_size", len(records)))
	return nil
}

func (fs *FirebaseStore) LastRun(ctx context.Context, job string) (models.DayKey, error) {
	var raw string
	if err := fs.client.NewRef(jobsPath).Child(job).Get(ctx, &raw); err != nil {
		return models.DayKey{}, fmt.Errorf("error getting last run of %s: %w", job, err)
	}
	if raw == "" {
		return models.DayKey{}, fmt.Errorf("last run of %s: %w", job, ErrNotFound)
	}
	return models.ParseDayKey(raw)
}

func (fs *FirebaseStore) MarkRun(ctx context.Context, job string, day models.DayKey) error {
	if err := fs.client.NewRef(jobsPath).Child(job).Set(ctx, day.String()); err != nil {
		return fmt.Errorf("error marking run of %s: %w", job, err)
	}
	return nil
}

// Close ends use of the store. The RTDB client keeps no connection of its own,
// so there is nothing to release beyond the shutdown log line.
func (fs *FirebaseStore) Close() error {
	fs.logger.Info("Firebase store closed", zap.String("database_url", fs.databaseURL))
	return nil
}
