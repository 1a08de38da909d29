package services

import (
	"context"
	"errors"
	"testing"

	"coopwatch/config"
	"coopwatch/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDecodeEvent(t *testing.T) {
	event, err := decodeEvent([]byte(`{"type":"tank_level","tank_id":"tank-1","percent":12.5,"timestamp":"2026-05-01T10:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, models.EventTankLevel, event.Type)
	assert.Equal(t, "tank-1", event.TankID)
	assert.InDelta(t, 12.5, event.Percent, 0.0001)
	assert.Equal(t, 2026, event.Timestamp.Year())
}

func TestDecodeEvent_DefaultsTimestamp(t *testing.T) {
	event, err := decodeEvent([]byte(`{"type":"device_toggle","device_id":"pump-1","on":true}`))
	require.NoError(t, err)
	assert.True(t, event.On)
	assert.False(t, event.Timestamp.IsZero())
}

func TestDecodeEvent_Malformed(t *testing.T) {
	for _, body := range []string{`not json`, `{}`, `{"type":""}`, `[1,2]`} {
		_, err := decodeEvent([]byte(body))
		assert.ErrorIs(t, err, errMalformed, body)
	}
}

type ackRecorder struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *ackRecorder) Ack(uint64, bool) error { a.acked++; return nil }

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

func (a *ackRecorder) Reject(uint64, bool) error { return nil }

type handlerFunc func(ctx context.Context, event *models.FacilityEvent) error

func (f handlerFunc) HandleEvent(ctx context.Context, event *models.FacilityEvent) error {
	return f(ctx, event)
}

func TestEventQueue_ProcessMessage(t *testing.T) {
	q := &EventQueue{logger: zaptest.NewLogger(t)}
	ok := handlerFunc(func(context.Context, *models.FacilityEvent) error { return nil })
	failing := handlerFunc(func(context.Context, *models.FacilityEvent) error { return errors.New("unknown event type") })

	tests := []struct {
		name       string
		body       string
		handler    EventHandler
		wantAcked  int
		wantNacked int
	}{
		{"handled", `{"type":"feed_stock","silo_id":"silo-1","kg":300}`, ok, 1, 0},
		{"malformed", `{"silo_id":"silo-1"}`, ok, 0, 1},
		{"handler error", `{"type":"door_open"}`, failing, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acks := &ackRecorder{}
			q.processMessage(t.Context(), amqp.Delivery{Acknowledger: acks, Body: []byte(tt.body)}, tt.handler)

			assert.Equal(t, tt.wantAcked, acks.acked)
			assert.Equal(t, tt.wantNacked, acks.nacked)
			assert.False(t, acks.requeue)
		})
	}
}

func TestEventQueue_Routing(t *testing.T) {
	q := &EventQueue{config: &config.Config{RabbitMQExchange: "coop", RabbitMQQueue: "facility_events"}}

	assert.Equal(t, "facility.tank_level", eventRoutingKey(models.EventTankLevel))
	assert.Equal(t, []queueBinding{
		{exchange: "coop", key: "facility.#"},
		{exchange: "amq.topic", key: "facility_events"},
	}, q.bindings())
}
