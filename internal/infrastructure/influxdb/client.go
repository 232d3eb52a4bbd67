package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// Default timeouts for InfluxDB operations.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	// httpRequestTimeout bounds each HTTP request, in seconds.
	httpRequestTimeout = 15
)

// Options identify one InfluxDB v2 bucket.
type Options struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Client wraps the InfluxDB v2 client for one bucket.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	opts     Options

	connected bool
	mu        sync.RWMutex
}

// Connect creates a client and verifies the server answers a ping.
//
// Parameters:
//   - ctx: Context for the initial ping
//   - opts: Server URL, token, organisation and bucket
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: ErrConnectionFailed if the server cannot be reached
func Connect(ctx context.Context, opts Options) (*Client, error) {
	client := influxdb2.NewClientWithOptions(
		opts.URL,
		opts.Token,
		influxdb2.DefaultOptions().SetHTTPRequestTimeout(httpRequestTimeout),
	)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	return &Client{
		client:    client,
		writeAPI:  client.WriteAPIBlocking(opts.Org, opts.Bucket),
		opts:      opts,
		connected: true,
	}, nil
}

// Close shuts down the underlying client.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.client.Close()

	return nil
}

// HealthCheck verifies the InfluxDB connection is alive and functioning.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Bucket returns the bucket points are written to.
func (c *Client) Bucket() string {
	return c.opts.Bucket
}
