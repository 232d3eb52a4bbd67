package codec

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/fieldlogger/internal/reading"
)

// Format names.
const (
	FormatJSON         = "json"
	FormatURLEncoded   = "urlencoded"
	FormatLPP          = "lpp"
	FormatCBOR         = "cbor"
	FormatLineProtocol = "lineprotocol"
	FormatCSV          = "csv"
)

// Codec serializes one outbound mapping.
type Codec interface {
	// Name returns the format name.
	Name() string

	// ContentType returns the MIME type sent with request/response transports.
	ContentType() string

	// Marshal serializes fields. at is the frame time; formats that carry
	// no timestamp ignore it.
	Marshal(fields reading.Fields, at time.Time) ([]byte, error)
}

// Logger defines the logging interface used by codecs.
type Logger interface {
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// Options tune format-specific behaviour.
type Options struct {
	// Measurement is the line protocol measurement name.
	Measurement string

	// Tags are added to every line protocol point.
	Tags map[string]string

	// Logger receives lpp drop notices.
	Logger Logger
}

// Lookup returns the codec for a format name.
//
// Returns:
//   - ErrFormatNotImplemented: csv
//   - ErrUnknownFormat: anything else unrecognised
func Lookup(format string, opts Options) (Codec, error) {
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	switch strings.ToLower(format) {
	case "", FormatJSON:
		return JSON{}, nil
	case FormatURLEncoded:
		return URLEncoded{}, nil
	case FormatLPP:
		return &LPP{logger: opts.Logger}, nil
	case FormatCBOR:
		return CBOR{}, nil
	case FormatLineProtocol:
		return NewLineProtocol(opts.Measurement, opts.Tags), nil
	case FormatCSV:
		return nil, fmt.Errorf("%w: %s", ErrFormatNotImplemented, format)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// ContentEncoding transforms serialized bytes before they are sent.
type ContentEncoding string

// Content encodings.
const (
	EncodingIdentity ContentEncoding = "identity"
	EncodingBase64   ContentEncoding = "base64"
)

// ParseEncoding validates an encoding name. Empty means identity.
func ParseEncoding(name string) (ContentEncoding, error) {
	switch ContentEncoding(strings.ToLower(name)) {
	case "", EncodingIdentity:
		return EncodingIdentity, nil
	case EncodingBase64:
		return EncodingBase64, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownEncoding, name)
	}
}

// Apply encodes data.
func (e ContentEncoding) Apply(data []byte) []byte {
	if e != EncodingBase64 {
		return data
	}
	out := make([]byte, base64.StdEncoding.EncodedLen(len(data)))
	base64.StdEncoding.Encode(out, data)
	return out
}
