package influxdb

import (
	"context"
	"fmt"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePoint writes one point and waits for the server to accept it.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - measurement: The measurement name
//   - tags: Indexed key-value pairs (low cardinality: node, realm)
//   - fields: The values; must not be empty
//   - timestamp: The point time
//
// Example:
//
//	err := client.WritePoint(ctx, "fieldlogger",
//	    map[string]string{"node": "node-01"},
//	    map[string]any{"system.temperature": 44.7},
//	    frame.StartedAt)
func (c *Client) WritePoint(ctx context.Context, measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if len(fields) == 0 {
		return ErrNoFields
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	if err := c.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}
