package codec

import "errors"

var (
	// ErrUnknownFormat is returned by Lookup for a format name it does not know.
	ErrUnknownFormat = errors.New("codec: unknown format")

	// ErrFormatNotImplemented is returned by Lookup for formats that are
	// recognised but deliberately unsupported (csv).
	ErrFormatNotImplemented = errors.New("codec: format not implemented")

	// ErrEmptyPoint is returned when a line protocol point would carry no fields.
	ErrEmptyPoint = errors.New("codec: point has no fields")

	// ErrUnknownEncoding is returned by ParseEncoding.
	ErrUnknownEncoding = errors.New("codec: unknown content encoding")
)
