package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// defaultHTTPTimeout bounds one request when the target sets no timeout.
	defaultHTTPTimeout = 30 * time.Second

	// maxErrorBody is how much of a failed response body is kept.
	maxErrorBody = 512
)

// HTTP posts payloads to a request/response endpoint.
type HTTP struct {
	client *http.Client
}

// NewHTTP creates an HTTP transport. A nil client gets one with timeout.
func NewHTTP(client *http.Client, timeout time.Duration) *HTTP {
	if client == nil {
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTP{client: client}
}

// Send implements Transport.
//
// Returns:
//   - error: *TransportError for any status other than 200 and 201,
//     a wrapped net/http error when the request fails outright
func (h *HTTP) Send(ctx context.Context, msg *Message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, msg.URI, bytes.NewReader(msg.Payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if msg.ContentType != "" {
		req.Header.Set("Content-Type", msg.ContentType)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to %s: %w", req.URL.Host, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Body fully handled below

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // Body is diagnostic only
	return checkStatus(resp.StatusCode, body)
}

// Close implements Transport.
func (h *HTTP) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

func checkStatus(status int, body []byte) error {
	if status == http.StatusOK || status == http.StatusCreated {
		return nil
	}
	return &TransportError{
		Status: status,
		Reason: http.StatusText(status),
		Body:   strings.TrimSpace(string(body)),
	}
}
