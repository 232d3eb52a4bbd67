// Package telemetry fans each cycle's frame out to the configured targets.
//
// Every enabled target becomes an Adapter binding four things resolved
// once at startup: a topology (URI template and field transform), a codec,
// an optional content encoding and a transport. The full channel URI is
//
//	endpoint + "/" + expanded template + transport suffix
//
// e.g. "mqtt://broker/mqttkit-1/testdrive/area-42/node-01/data.json".
//
// The Manager transmits to adapters one after another. A failing adapter
// never stops the others: every error, and every panic, becomes a false
// entry in the Outcome for that channel.
package telemetry
