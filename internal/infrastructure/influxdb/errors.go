package influxdb

import "errors"

// Sentinel errors for InfluxDB operations.
var (
	// ErrNotConnected indicates the client is closed.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed indicates the initial ping failed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrWriteFailed indicates a write was rejected.
	ErrWriteFailed = errors.New("influxdb: write failed")

	// ErrNoFields indicates a point without fields.
	ErrNoFields = errors.New("influxdb: point has no fields")
)
