package codec

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/fieldlogger/internal/reading"
)

const defaultMeasurement = "fieldlogger"

// LineProtocol serializes fields as a single InfluxDB line protocol point,
// accepted by InfluxDB 1.x and VictoriaMetrics on /write.
type LineProtocol struct {
	measurement string
	tags        map[string]string
}

// NewLineProtocol returns a line protocol codec. An empty measurement
// defaults to "fieldlogger".
func NewLineProtocol(measurement string, tags map[string]string) *LineProtocol {
	if measurement == "" {
		measurement = defaultMeasurement
	}
	return &LineProtocol{measurement: measurement, tags: tags}
}

// Name implements Codec.
func (*LineProtocol) Name() string { return FormatLineProtocol }

// ContentType implements Codec.
func (*LineProtocol) ContentType() string { return "text/plain; charset=utf-8" }

// Marshal implements Codec.
func (l *LineProtocol) Marshal(fields reading.Fields, at time.Time) ([]byte, error) {
	if len(fields) == 0 {
		return nil, ErrEmptyPoint
	}
	return []byte(formatLineProtocol(l.measurement, l.tags, fields, at)), nil
}

// formatLineProtocol formats a point as
// measurement,tag1=val1 field1=val1,field2=val2 timestamp_ns
// with tags and fields sorted for deterministic output.
func formatLineProtocol(measurement string, tags map[string]string, fields reading.Fields, t time.Time) string {
	var b strings.Builder

	b.WriteString(escapeMeasurement(measurement))

	tagKeys := make([]string, 0, len(tags))
	for k := range tags {
		tagKeys = append(tagKeys, k)
	}
	sort.Strings(tagKeys)
	for _, k := range tagKeys {
		b.WriteByte(',')
		b.WriteString(escapeTag(k))
		b.WriteByte('=')
		b.WriteString(escapeTag(tags[k]))
	}

	b.WriteByte(' ')
	for i, k := range fields.Keys() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(escapeTag(k))
		b.WriteByte('=')
		switch val := fields[k].(type) {
		case float64:
			b.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
		case int:
			b.WriteString(strconv.Itoa(val) + "i")
		case int64:
			b.WriteString(strconv.FormatInt(val, 10) + "i")
		case bool:
			b.WriteString(strconv.FormatBool(val))
		case string:
			b.WriteString(strconv.Quote(val))
		default:
			fmt.Fprintf(&b, "%v", val)
		}
	}

	b.WriteByte(' ')
	b.WriteString(strconv.FormatInt(t.UnixNano(), 10))

	return b.String()
}

// escapeTag escapes commas, equals signs and spaces; newlines are stripped.
func escapeTag(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, " ", "\\ ")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "=", "\\=")
	return s
}

// escapeMeasurement escapes commas and spaces; newlines are stripped.
func escapeMeasurement(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, " ", "\\ ")
	s = strings.ReplaceAll(s, ",", "\\,")
	return s
}
