package transport

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/nerrad567/fieldlogger/internal/infrastructure/influxdb"
)

const defaultMeasurement = "fieldlogger"

// InfluxDB writes the outbound fields as one point per frame. The URI
// path is ignored; the bucket, organisation and token come from the
// target settings.
type InfluxDB struct {
	opts        influxdb.Options
	measurement string

	mu     sync.Mutex
	client *influxdb.Client
}

// NewInfluxDB creates an InfluxDB transport. influxdb:// maps to http://
// and influxdbs:// to https://.
//
// Settings: org, bucket, token, measurement (default "fieldlogger").
func NewInfluxDB(uri string, settings Settings) (*InfluxDB, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	scheme := "http"
	if u.Scheme == SchemeInfluxDBS {
		scheme = "https"
	}
	return &InfluxDB{
		opts: influxdb.Options{
			URL:    scheme + "://" + u.Host,
			Token:  settings.string("token", ""),
			Org:    settings.string("org", ""),
			Bucket: settings.string("bucket", ""),
		},
		measurement: settings.string("measurement", defaultMeasurement),
	}, nil
}

// Send implements Transport.
func (i *InfluxDB) Send(ctx context.Context, msg *Message) error {
	client, err := i.connect(ctx)
	if err != nil {
		return err
	}
	if err := client.WritePoint(ctx, i.measurement, msg.Tags, msg.Fields, msg.Time); err != nil {
		if hErr := client.HealthCheck(ctx); hErr != nil {
			i.drop(client)
		}
		return err
	}
	return nil
}

// Close implements Transport.
func (i *InfluxDB) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.client == nil {
		return nil
	}
	err := i.client.Close()
	i.client = nil
	return err
}

func (i *InfluxDB) connect(ctx context.Context) (*influxdb.Client, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.client != nil && i.client.IsConnected() {
		return i.client, nil
	}
	client, err := influxdb.Connect(ctx, i.opts)
	if err != nil {
		return nil, err
	}
	i.client = client
	return client, nil
}

// drop closes client so the next Send reconnects. A client already
// replaced by another Send is left alone.
func (i *InfluxDB) drop(client *influxdb.Client) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.client != client {
		return
	}
	_ = client.Close() //nolint:errcheck // Unhealthy connection, replaced on next Send
	i.client = nil
}
