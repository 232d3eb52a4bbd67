package transport

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/fieldlogger/internal/reading"
)

// URI schemes.
const (
	SchemeHTTP      = "http"
	SchemeHTTPS     = "https"
	SchemeMQTT      = "mqtt"
	SchemeMQTTS     = "mqtts"
	SchemeNATS      = "nats"
	SchemeLoRa      = "lora"
	SchemeInfluxDB  = "influxdb"
	SchemeInfluxDBS = "influxdbs"
)

// ViaModem routes request/response transports through the modem capability.
const ViaModem = "modem"

// Transport sends one payload per call.
type Transport interface {
	// Send delivers msg. A nil error means the endpoint accepted it.
	Send(ctx context.Context, msg *Message) error

	// Close releases anything the transport owns. Shared broker
	// connections are closed by their pool, not here.
	Close() error
}

// Message is one delivery.
type Message struct {
	// URI is the full endpoint URI including topology path and suffix.
	URI string

	Payload     []byte
	ContentType string

	// Fields and Tags carry the outbound mapping for transports that
	// write structured points instead of an opaque payload.
	Fields reading.Fields
	Tags   map[string]string

	Time time.Time
}

// Logger defines the logging interface used by transports.
// Compatible with logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Suffix returns the path suffix appended after the topology template.
//
// Request/response endpoints receive "/data", publish/subscribe topics
// are qualified with the format ("/data.json"). Radio and InfluxDB
// targets take no suffix.
func Suffix(scheme, format string) string {
	switch strings.ToLower(scheme) {
	case SchemeHTTP, SchemeHTTPS:
		return "/data"
	case SchemeMQTT, SchemeMQTTS, SchemeNATS:
		return "/data." + format
	default:
		return ""
	}
}

// Scheme returns the lower-cased scheme of uri.
func Scheme(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", ErrInvalidURI
	}
	if u.Scheme == "" {
		return "", ErrInvalidURI
	}
	return strings.ToLower(u.Scheme), nil
}

// Topic returns the URI path without its leading slash.
func Topic(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", ErrInvalidURI
	}
	return strings.TrimPrefix(u.Path, "/"), nil
}

// Settings is a target's free-form transport configuration.
type Settings map[string]any

func (s Settings) string(key, def string) string {
	if v, ok := s[key].(string); ok && v != "" {
		return v
	}
	return def
}

func (s Settings) int(key string, def int) int {
	switch v := s[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
