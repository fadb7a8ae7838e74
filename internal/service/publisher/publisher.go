package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/oshokin/iaq-supervisor/internal/config"
	domain "github.com/oshokin/iaq-supervisor/internal/domain/iaq"
	"github.com/oshokin/iaq-supervisor/internal/logger"
)

// Publisher fans a run's event records out to an MQTT broker as JSON, one
// message per record, so downstream dashboards can consume them live.
type Publisher struct {
	// client is the connected MQTT session.
	client paho.Client
	// topic receives every event record.
	topic string

	// callTimeout bounds a single publish acknowledgement.
	callTimeout time.Duration
}

// Option configures publisher behaviour.
type Option func(*Publisher)

// WithCallTimeout sets a default timeout for publish acknowledgements.
func WithCallTimeout(timeout time.Duration) Option {
	return func(p *Publisher) {
		if timeout > 0 {
			p.callTimeout = timeout
		}
	}
}

const (
	// DefaultCallTimeout bounds a single publish acknowledgement.
	DefaultCallTimeout = 5 * time.Second

	// connectTimeout bounds the initial broker handshake.
	connectTimeout = 10 * time.Second

	// disconnectQuiesceMillis is the grace period for in-flight messages on close.
	disconnectQuiesceMillis = 1000

	// connectRetryInterval paces reconnection attempts.
	connectRetryInterval = 5 * time.Second
)

var (
	// errBrokerRequired is returned when no broker address is configured.
	errBrokerRequired = errors.New("broker address must be provided")
	// errConnectTimeout is returned when the broker handshake does not finish in time.
	errConnectTimeout = errors.New("broker connection timeout")
	// errPublishTimeout is returned when a publish is not acknowledged in time.
	errPublishTimeout = errors.New("publish timeout")
)

// Connect establishes an MQTT session using the configured broker, topic and
// client identity.
func Connect(cfg config.MQTTConfig, opts ...Option) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, errBrokerRequired
	}

	clientOptions := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(connectRetryInterval)

	client := paho.NewClient(clientOptions)

	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, errConnectTimeout
	}

	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	publisher := &Publisher{
		client:      client,
		topic:       cfg.Topic,
		callTimeout: DefaultCallTimeout,
	}

	for _, opt := range opts {
		opt(publisher)
	}

	return publisher, nil
}

// PublishRecord sends one event record as a JSON message at QoS 1: dropped
// corrective actions would silently skew any downstream tally.
func (p *Publisher) PublishRecord(record domain.EventRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode event record: %w", err)
	}

	token := p.client.Publish(p.topic, 1, false, payload)
	if !token.WaitTimeout(p.callTimeout) {
		return errPublishTimeout
	}

	if err = token.Error(); err != nil {
		return fmt.Errorf("publish event record: %w", err)
	}

	return nil
}

// PublishAll sends the whole event log in order. Individual failures are
// logged and counted, not fatal: reports on disk remain the source of truth.
func (p *Publisher) PublishAll(ctx context.Context, records []domain.EventRecord) {
	ctx = logger.WithName(ctx, "publisher")

	failed := 0

	for _, record := range records {
		if err := p.PublishRecord(record); err != nil {
			failed++

			logger.ErrorKV(ctx, "Publish failed", "event", record.Event, "error", err)
		}
	}

	logger.InfoKV(ctx, "Event records published",
		"topic", p.topic, "total", len(records), "failed", failed)
}

// Close disconnects from the broker after letting in-flight messages drain.
func (p *Publisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}

	p.client.Disconnect(disconnectQuiesceMillis)

	return nil
}
