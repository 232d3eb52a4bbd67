package codec

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/nerrad567/fieldlogger/internal/reading"
)

var cborMode cbor.EncMode

func init() {
	var err error
	cborMode, err = cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: cbor encoder mode: %v", err))
	}
}

// CBOR serializes fields as one canonical CBOR map.
type CBOR struct{}

// Name implements Codec.
func (CBOR) Name() string { return FormatCBOR }

// ContentType implements Codec.
func (CBOR) ContentType() string { return "application/cbor" }

// Marshal implements Codec.
func (CBOR) Marshal(fields reading.Fields, _ time.Time) ([]byte, error) {
	if fields == nil {
		fields = reading.Fields{}
	}
	return cborMode.Marshal(map[string]any(fields))
}
