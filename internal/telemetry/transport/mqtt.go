package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"sync"
	"syscall"

	"github.com/nerrad567/fieldlogger/internal/infrastructure/config"
	"github.com/nerrad567/fieldlogger/internal/infrastructure/mqtt"
)

// Publish parameters for telemetry.
const (
	publishQoS      = 1
	publishRetained = false
)

// Publisher is one broker connection as seen by the MQTT transport.
// *mqtt.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
	MarkDisconnected()
	Close() error
}

// BrokerDialer opens a connection to one broker.
type BrokerDialer func(broker mqtt.Broker) (Publisher, error)

// MQTTDialer returns a BrokerDialer using the paho client with the
// broker defaults from config.yaml.
func MQTTDialer(cfg config.MQTTConfig, logger Logger) BrokerDialer {
	return func(broker mqtt.Broker) (Publisher, error) {
		c, err := mqtt.Connect(cfg, broker)
		if err != nil {
			return nil, err
		}
		if logger != nil {
			c.SetLogger(logger)
		}
		return c, nil
	}
}

// BrokerPool shares broker connections between MQTT transports, keyed by
// host:port.
//
// Thread Safety: all methods are safe for concurrent use.
type BrokerPool struct {
	dial BrokerDialer

	mu    sync.Mutex
	conns map[string]Publisher
}

// NewBrokerPool creates an empty pool.
func NewBrokerPool(dial BrokerDialer) *BrokerPool {
	return &BrokerPool{
		dial:  dial,
		conns: make(map[string]Publisher),
	}
}

// Get returns the shared connection to broker, dialling when there is
// none or the previous one was marked disconnected.
func (p *BrokerPool) Get(broker mqtt.Broker) (Publisher, error) {
	key := broker.Addr()

	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.conns[key]; ok {
		if c.IsConnected() {
			return c, nil
		}
		_ = c.Close() //nolint:errcheck // Stale connection, replaced below
		delete(p.conns, key)
	}

	c, err := p.dial(broker)
	if err != nil {
		return nil, err
	}
	p.conns[key] = c
	return c, nil
}

// Len returns the number of pooled connections.
func (p *BrokerPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Close disconnects every pooled connection.
func (p *BrokerPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for key, c := range p.conns {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		delete(p.conns, key)
	}
	return errors.Join(errs...)
}

// MQTT publishes payloads to a broker topic.
type MQTT struct {
	pool   *BrokerPool
	broker mqtt.Broker
	logger Logger

	mu      sync.Mutex
	defunct bool
}

// NewMQTT creates an MQTT transport for uri. No connection is made until
// the first Send.
func NewMQTT(uri string, pool *BrokerPool, logger Logger) (*MQTT, error) {
	broker, err := brokerFromURI(uri)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &MQTT{pool: pool, broker: broker, logger: logger}, nil
}

// Send implements Transport. The topic is the URI path.
func (m *MQTT) Send(ctx context.Context, msg *Message) error {
	if m.isDefunct() {
		return ErrDefunct
	}

	topic, err := Topic(msg.URI)
	if err != nil {
		return err
	}

	client, err := m.pool.Get(m.broker)
	if err != nil {
		if errors.Is(err, mqtt.ErrClientUnavailable) {
			m.markDefunct(err)
			return fmt.Errorf("%w: %w", ErrDefunct, err)
		}
		return err
	}

	if err := client.Publish(ctx, topic, msg.Payload, publishQoS, publishRetained); err != nil {
		if isConnectionReset(err) || !client.IsConnected() {
			client.MarkDisconnected()
		}
		return err
	}
	return nil
}

// Close implements Transport. The broker connection belongs to the pool.
func (m *MQTT) Close() error { return nil }

func (m *MQTT) isDefunct() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.defunct
}

// markDefunct logs the first time only.
func (m *MQTT) markDefunct(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.defunct {
		return
	}
	m.defunct = true
	m.logger.Error("mqtt client unavailable, transport disabled", "broker", m.broker.Addr(), "error", err)
}

func brokerFromURI(uri string) (mqtt.Broker, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Hostname() == "" {
		return mqtt.Broker{}, fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	broker := mqtt.Broker{Host: u.Hostname(), TLS: u.Scheme == SchemeMQTTS}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return mqtt.Broker{}, fmt.Errorf("%w: port %q", ErrInvalidURI, p)
		}
		broker.Port = port
	}
	return broker, nil
}

// isConnectionReset reports errors after which the connection must be
// re-established.
func isConnectionReset(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, mqtt.ErrNotConnected)
}
