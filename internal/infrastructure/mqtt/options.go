package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/nerrad567/fieldlogger/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for a connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12

	// Default broker ports.
	defaultPort    = 1883
	defaultTLSPort = 8883
)

// Broker identifies one MQTT broker.
type Broker struct {
	Host string
	Port int
	TLS  bool
}

// Addr returns host:port, filling in the default port.
func (b Broker) Addr() string {
	port := b.Port
	if port == 0 {
		port = defaultPort
		if b.TLS {
			port = defaultTLSPort
		}
	}
	return net.JoinHostPort(b.Host, strconv.Itoa(port))
}

// URL returns the paho broker URL (tcp:// or ssl://).
func (b Broker) URL() string {
	scheme := "tcp"
	if b.TLS {
		scheme = "ssl"
	}
	return scheme + "://" + b.Addr()
}

// buildClientOptions creates paho MQTT options.
//
// This configures:
//   - Broker URL (tcp:// or ssl://)
//   - A client ID unique to this connection
//   - Authentication credentials (if provided)
//   - TLS, optionally verified against a private CA
//   - Clean session, no automatic reconnect
func buildClientOptions(cfg config.MQTTConfig, broker Broker) (*pahomqtt.ClientOptions, error) {
	if broker.Host == "" {
		return nil, fmt.Errorf("%w: empty broker host", ErrClientUnavailable)
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(broker.URL())
	opts.SetClientID(clientID(cfg.ClientID))

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)

	// The transport reconnects on the next publish instead.
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	timeout := defaultConnectTimeout
	if cfg.Reconnect.MaxDelay > 0 && time.Duration(cfg.Reconnect.MaxDelay)*time.Second < timeout {
		timeout = time.Duration(cfg.Reconnect.MaxDelay) * time.Second
	}
	opts.SetConnectTimeout(timeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if broker.TLS {
		tlsConfig, err := buildTLSConfig(cfg.TLS)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}

	return opts, nil
}

func buildTLSConfig(cfg config.MQTTTLSConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tlsMinVersion}
	if cfg.CAFile == "" {
		return tlsConfig, nil
	}

	pem, err := os.ReadFile(cfg.CAFile)
	if err != nil {
		return nil, fmt.Errorf("%w: reading CA file: %w", ErrClientUnavailable, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("%w: no certificates in %s", ErrClientUnavailable, cfg.CAFile)
	}
	tlsConfig.RootCAs = pool
	return tlsConfig, nil
}

// clientID appends a short random suffix so connections to several brokers,
// or a fast restart after deep sleep, never collide on the broker.
func clientID(prefix string) string {
	if prefix == "" {
		prefix = "fieldlogger"
	}
	return prefix + "-" + uuid.NewString()[:8]
}
