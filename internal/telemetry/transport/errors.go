package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedScheme is returned for a URI scheme no transport handles.
	ErrUnsupportedScheme = errors.New("transport: unsupported scheme")

	// ErrInvalidURI is returned for a URI that cannot be parsed.
	ErrInvalidURI = errors.New("transport: invalid uri")

	// ErrNoCapability is returned when a transport needs a connectivity
	// capability (modem, radio, persistent state) that was not provided.
	ErrNoCapability = errors.New("transport: connectivity capability not available")

	// ErrDefunct is returned by a publish/subscribe transport whose client
	// could not be created at all. It never recovers.
	ErrDefunct = errors.New("transport: client unavailable")

	// ErrUnknownDownlink is returned for a downlink on an unrecognised port.
	ErrUnknownDownlink = errors.New("transport: unrecognised downlink")

	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("transport: closed")
)

// TransportError is returned by request/response transports for a
// response that is not a success.
type TransportError struct {
	Status int
	Reason string
	Body   string
}

// Error implements error.
func (e *TransportError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("transport: HTTP %d %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("transport: HTTP %d %s: %s", e.Status, e.Reason, e.Body)
}
