// Package mqtt provides the MQTT broker connection used by publish/subscribe
// telemetry targets.
//
// One Client represents one broker connection. Telemetry targets pointing
// at the same host:port share a Client through the transport package's
// broker pool.
//
// Reconnection is explicit: paho's auto-reconnect is disabled so that a
// logger that wakes, publishes and sleeps never has a background goroutine
// fighting the sleep cycle. When a publish fails with a connection-reset
// class error the caller marks the client disconnected and dials again on
// the next publish.
//
// # Security Considerations
//
//   - mqtts:// endpoints use TLS 1.2+; mqtt.tls.ca_file pins a private CA
//   - Credentials come from mqtt.auth or FIELDLOGGER_MQTT_USERNAME/PASSWORD
//   - Never log the password
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.Broker{Host: "broker.example.org", Port: 1883})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Publish(ctx, "mqttkit-1/testdrive/area-42/node-01/data.json", payload, 1, false)
package mqtt
