package codec

import (
	"encoding/json"
	"time"

	"github.com/nerrad567/fieldlogger/internal/reading"
)

// JSON serializes fields as one flat JSON object.
type JSON struct{}

// Name implements Codec.
func (JSON) Name() string { return FormatJSON }

// ContentType implements Codec.
func (JSON) ContentType() string { return "application/json" }

// Marshal implements Codec.
func (JSON) Marshal(fields reading.Fields, _ time.Time) ([]byte, error) {
	if fields == nil {
		fields = reading.Fields{}
	}
	return json.Marshal(map[string]any(fields))
}
