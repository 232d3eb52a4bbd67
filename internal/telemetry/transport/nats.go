package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS connection constants.
const (
	natsConnectTimeout = 10 * time.Second
	natsFlushTimeout   = 5 * time.Second
	natsDefaultPort    = "4222"
)

// NATSConn is one server connection as seen by the NATS transport.
// *nats.Conn satisfies it.
type NATSConn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	IsConnected() bool
	Close()
}

// NATSDialer opens a connection to one server URL.
type NATSDialer func(url string) (NATSConn, error)

// DialNATS connects with reconnection disabled; the pool redials on the
// next publish instead.
func DialNATS(name string) NATSDialer {
	return func(url string) (NATSConn, error) {
		opts := []nats.Option{
			nats.Timeout(natsConnectTimeout),
			nats.NoReconnect(),
		}
		if name != "" {
			opts = append(opts, nats.Name(name))
		}
		conn, err := nats.Connect(url, opts...)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// NATSPool shares server connections between NATS transports, keyed by
// host:port.
//
// Thread Safety: all methods are safe for concurrent use.
type NATSPool struct {
	dial NATSDialer

	mu    sync.Mutex
	conns map[string]NATSConn
}

// NewNATSPool creates an empty pool.
func NewNATSPool(dial NATSDialer) *NATSPool {
	return &NATSPool{dial: dial, conns: make(map[string]NATSConn)}
}

// Get returns the shared connection for hostport.
func (p *NATSPool) Get(hostport string) (NATSConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.conns[hostport]; ok {
		if c.IsConnected() {
			return c, nil
		}
		c.Close()
		delete(p.conns, hostport)
	}

	c, err := p.dial("nats://" + hostport)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats %s: %w", hostport, err)
	}
	p.conns[hostport] = c
	return c, nil
}

// Close closes every pooled connection.
func (p *NATSPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, c := range p.conns {
		c.Close()
		delete(p.conns, key)
	}
	return nil
}

// NATS publishes payloads to a subject derived from the URI path.
type NATS struct {
	pool     *NATSPool
	hostport string
}

// NewNATS creates a NATS transport for uri.
func NewNATS(uri string, pool *NATSPool) (*NATS, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Hostname() == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	hostport := u.Host
	if u.Port() == "" {
		hostport = u.Hostname() + ":" + natsDefaultPort
	}
	return &NATS{pool: pool, hostport: hostport}, nil
}

// Subject converts a slash separated topic into a NATS subject.
func Subject(topic string) string {
	return strings.ReplaceAll(strings.Trim(topic, "/"), "/", ".")
}

// Send implements Transport. The publish is flushed so a nil error means
// the server received the message.
func (n *NATS) Send(ctx context.Context, msg *Message) error {
	topic, err := Topic(msg.URI)
	if err != nil {
		return err
	}

	conn, err := n.pool.Get(n.hostport)
	if err != nil {
		return err
	}

	if err := conn.Publish(Subject(topic), msg.Payload); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, natsFlushTimeout)
	defer cancel()
	if err := conn.FlushWithContext(ctx); err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) || !conn.IsConnected() {
			conn.Close()
		}
		return fmt.Errorf("nats flush: %w", err)
	}
	return nil
}

// Close implements Transport.
func (n *NATS) Close() error { return nil }
