// Package influxdb provides InfluxDB v2 connectivity for influxdb://
// telemetry targets.
//
// It wraps the official influxdb-client-go v2 library. Unlike a long-running
// service, the logger writes one point per cycle and then may power down,
// so writes go through the blocking write API: when WritePoint returns the
// point is on the server or the error says why not.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, influxdb.Options{
//	    URL:    "http://influx.example.org:8086",
//	    Token:  token,
//	    Org:    "field",
//	    Bucket: "loggers",
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.WritePoint(ctx, "fieldlogger",
//	    map[string]string{"node": "node-01"},
//	    map[string]any{"system.temperature": 44.7},
//	    time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
package influxdb
