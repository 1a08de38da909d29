package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"coopwatch/config"
	"coopwatch/models"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// EventHandler processes one decoded facility event
type EventHandler interface {
	HandleEvent(ctx context.Context, event *models.FacilityEvent) error
}

// errMalformed marks messages that can never be processed and must not be requeued
var errMalformed = errors.New("malformed event")

const (
	// mqttExchange is where the broker's MQTT plugin publishes controller messages
	mqttExchange = "amq.topic"

	eventRoutingPrefix = "facility."
)

// EventQueue carries facility events over RabbitMQ. The service consumes from
// it; tools publish to it.
type EventQueue struct {
	config    *config.Config
	logger    *zap.Logger
	reconnect chan bool
	isClosing atomic.Bool

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

type queueBinding struct {
	exchange string
	key      string
}

// NewEventQueue connects to RabbitMQ and declares the topology
func NewEventQueue(cfg *config.Config, logger *zap.Logger) (*EventQueue, error) {
	q := &EventQueue{
		config:    cfg,
		logger:    logger,
		reconnect: make(chan bool),
	}

	if err := q.connect(); err != nil {
		return nil, err
	}

	return q, nil
}

// eventRoutingKey routes an event by its type, e.g. facility.tank_level
func eventRoutingKey(eventType models.EventType) string {
	return eventRoutingPrefix + string(eventType)
}

// bindings lists every route onto the event queue: typed keys on the facility
// exchange, and the MQTT topic for house controllers
func (q *EventQueue) bindings() []queueBinding {
	return []queueBinding{
		{exchange: q.config.RabbitMQExchange, key: eventRoutingPrefix + "#"},
		{exchange: mqttExchange, key: q.config.RabbitMQQueue},
	}
}

func (q *EventQueue) connect() error {
	q.logger.Info("Connecting to RabbitMQ", zap.String("exchange", q.config.RabbitMQExchange))

	var conn *amqp.Connection
	var err error

	maxRetries := 5
	for attempt := 1; attempt <= maxRetries; attempt++ {
		conn, err = amqp.Dial(q.config.RabbitMQURL)
		if err == nil {
			break
		}

		q.logger.Warn("RabbitMQ dial failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(err))

		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt) * 2 * time.Second)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := q.declare(channel); err != nil {
		conn.Close()
		return err
	}

	q.mu.Lock()
	q.conn = conn
	q.channel = channel
	q.mu.Unlock()

	q.logger.Info("Event queue ready", zap.String("queue", q.config.RabbitMQQueue))
	go q.handleReconnect(conn)
	return nil
}

func (q *EventQueue) declare(channel *amqp.Channel) error {
	if err := channel.Qos(10, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	// durable, not auto-deleted, not internal
	if err := channel.ExchangeDeclare(q.config.RabbitMQExchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", q.config.RabbitMQExchange, err)
	}

	// durable, shared
	queue, err := channel.QueueDeclare(q.config.RabbitMQQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", q.config.RabbitMQQueue, err)
	}

	for _, b := range q.bindings() {
		if err := channel.QueueBind(queue.Name, b.key, b.exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind %s to %s/%s: %w", queue.Name, b.exchange, b.key, err)
		}
		q.logger.Debug("Queue bound",
			zap.String("queue", queue.Name),
			zap.String("exchange", b.exchange),
			zap.String("routing_key", b.key))
	}
	return nil
}

// handleReconnect reconnects when conn drops unexpectedly
func (q *EventQueue) handleReconnect(conn *amqp.Connection) {
	closeErr := <-conn.NotifyClose(make(chan *amqp.Error, 1))
	if q.isClosing.Load() {
		q.logger.Info("RabbitMQ connection closed gracefully")
		return
	}

	q.logger.Error("RabbitMQ connection lost", zap.Error(closeErr))

	for !q.isClosing.Load() {
		q.logger.Info("Attempting to reconnect to RabbitMQ...")
		err := q.connect()
		if err == nil {
			q.logger.Info("Successfully reconnected to RabbitMQ")
			select {
			case q.reconnect <- true:
			case <-time.After(5 * time.Second):
			}
			return
		}

		q.logger.Error("Failed to reconnect", zap.Error(err))
		time.Sleep(5 * time.Second)
	}
}

// Consume delivers events to handler until ctx is cancelled. It resubscribes
// after a reconnect.
func (q *EventQueue) Consume(ctx context.Context, handler EventHandler) error {
	for {
		q.mu.RLock()
		channel := q.channel
		q.mu.RUnlock()

		// manual ack, shared queue
		deliveries, err := channel.Consume(q.config.RabbitMQQueue, "coopwatch", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", q.config.RabbitMQQueue, err)
		}
		q.logger.Info("Consuming facility events", zap.String("queue", q.config.RabbitMQQueue))

		if done := q.drain(ctx, deliveries, handler); done {
			q.logger.Info("Event consumption stopped")
			return nil
		}
	}
}

// drain processes deliveries until ctx ends (true) or the subscription must be
// renewed (false)
func (q *EventQueue) drain(ctx context.Context, deliveries <-chan amqp.Delivery, handler EventHandler) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case <-q.reconnect:
			q.logger.Info("Resubscribing after reconnect")
			return false
		case msg, ok := <-deliveries:
			if !ok {
				q.logger.Warn("Delivery channel closed, resubscribing")
				time.Sleep(time.Second)
				return false
			}
			q.processMessage(ctx, msg, handler)
		}
	}
}

// processMessage acks handled events and rejects malformed ones without requeue
func (q *EventQueue) processMessage(ctx context.Context, msg amqp.Delivery, handler EventHandler) {
	event, err := decodeEvent(msg.Body)
	if err == nil {
		q.logger.Debug("Received facility event",
			zap.String("message_id", msg.MessageId),
			zap.String("type", string(event.Type)))
		err = handler.HandleEvent(ctx, event)
	}

	if err != nil {
		q.logger.Error("Failed to process message",
			zap.Error(err),
			zap.String("message_id", msg.MessageId))
		msg.Nack(false, false)
		return
	}
	msg.Ack(false)
}

func decodeEvent(body []byte) (*models.FacilityEvent, error) {
	var event models.FacilityEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if event.Type == "" {
		return nil, fmt.Errorf("%w: missing type", errMalformed)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return &event, nil
}

// Publish sends event to the facility exchange under its typed routing key and
// returns the message ID
func (q *EventQueue) Publish(ctx context.Context, event *models.FacilityEvent) (string, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event: %w", err)
	}

	q.mu.RLock()
	channel := q.channel
	q.mu.RUnlock()

	messageID := uuid.NewString()
	key := eventRoutingKey(event.Type)
	err = channel.PublishWithContext(ctx, q.config.RabbitMQExchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish %s: %w", key, err)
	}

	q.logger.Debug("Published facility event",
		zap.String("message_id", messageID),
		zap.String("routing_key", key))
	return messageID, nil
}

// Close stops reconnecting and closes the channel and connection
func (q *EventQueue) Close() error {
	q.isClosing.Store(true)

	q.mu.Lock()
	defer q.mu.Unlock()

	var errs []error
	if q.channel != nil {
		if err := q.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if q.conn != nil {
		if err := q.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}

	q.logger.Info("Event queue closed")
	return errors.Join(errs...)
}
