package connectivity

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	modemDialTimeout    = 30 * time.Second
	modemRequestTimeout = 60 * time.Second
	maxModemResponse    = 4096
)

// Modem is a cellular PPP link. Its HTTP requests are bound to the PPP
// interface so they never leave through another medium.
type Modem struct {
	*Interface

	client *http.Client
}

// NewModem wraps iface as a modem.
func NewModem(iface *Interface) *Modem {
	dialer := &net.Dialer{
		Timeout: modemDialTimeout,
		Control: bindToDevice(iface.InterfaceName()),
	}
	return &Modem{
		Interface: iface,
		client: &http.Client{
			Timeout: modemRequestTimeout,
			Transport: &http.Transport{
				DialContext:       dialer.DialContext,
				DisableKeepAlives: true,
			},
		},
	}
}

// HTTPPost posts body to url over the modem link.
//
// Returns:
//   - status: the HTTP status code
//   - response: up to 4 KiB of the response body
//   - error: link or request failure; a non-2xx status is not an error here
func (m *Modem) HTTPPost(ctx context.Context, url, contentType string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("building request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // Body fully handled below

	out, err := io.ReadAll(io.LimitReader(resp.Body, maxModemResponse))
	if err != nil {
		return resp.StatusCode, out, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, out, nil
}
