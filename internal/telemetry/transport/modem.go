package transport

import (
	"context"
	"fmt"
)

// Modem is the capability of a cellular modem to run an HTTP POST
// through its own IP stack.
type Modem interface {
	HTTPPost(ctx context.Context, url, contentType string, body []byte) (status int, response []byte, err error)
}

// ModemHTTP is the request/response transport routed through a modem.
type ModemHTTP struct {
	modem Modem
}

// NewModemHTTP creates a modem-routed transport.
func NewModemHTTP(modem Modem) (*ModemHTTP, error) {
	if modem == nil {
		return nil, fmt.Errorf("%w: modem", ErrNoCapability)
	}
	return &ModemHTTP{modem: modem}, nil
}

// Send implements Transport with the same success rule as HTTP.
func (m *ModemHTTP) Send(ctx context.Context, msg *Message) error {
	status, body, err := m.modem.HTTPPost(ctx, msg.URI, msg.ContentType, msg.Payload)
	if err != nil {
		return fmt.Errorf("modem post: %w", err)
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return checkStatus(status, body)
}

// Close implements Transport.
func (m *ModemHTTP) Close() error { return nil }
