package telemetry

import "errors"

var (
	// ErrNoEndpoint is returned for a target without an endpoint.
	ErrNoEndpoint = errors.New("telemetry: target has no endpoint")

	// ErrNoTransport is returned when Deps carries no transport pool.
	ErrNoTransport = errors.New("telemetry: no transport pool")
)
