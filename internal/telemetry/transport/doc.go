// Package transport delivers serialized payloads to telemetry endpoints.
//
// A Transport is chosen by the scheme of a target's full URI:
//
//	http, https      POST, success on 200 or 201 (optionally through a modem)
//	mqtt, mqtts      publish at QoS 1, not retained, topic = URI path
//	nats             publish, subject = URI path with "/" replaced by "."
//	lora             radio uplink with a status trailer, one downlink receive
//	influxdb(s)      one point per frame through the InfluxDB v2 write API
//
// Transports never dial in their constructors. Connections are made on the
// first Send and, for brokers, shared across every transport pointing at
// the same host:port.
//
// The LoRa transport is the only one with inbound traffic: a downlink on
// port 1 sets the sleep interval override in minutes (zero clears it) and
// a downlink on port 2 sets the pause flag. Both go straight to nvstate so
// they survive deep sleep.
package transport
