package codec

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/nerrad567/fieldlogger/internal/reading"
)

// URLEncoded serializes fields as a form body.
type URLEncoded struct{}

// Name implements Codec.
func (URLEncoded) Name() string { return FormatURLEncoded }

// ContentType implements Codec.
func (URLEncoded) ContentType() string { return "application/x-www-form-urlencoded" }

// Marshal implements Codec. Keys are emitted in sorted order.
func (URLEncoded) Marshal(fields reading.Fields, _ time.Time) ([]byte, error) {
	form := make(url.Values, len(fields))
	for k, v := range fields {
		form.Set(k, formatValue(v))
	}
	return []byte(form.Encode()), nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case string:
		return val
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}
