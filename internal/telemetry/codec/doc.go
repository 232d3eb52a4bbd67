// Package codec serializes a target's outbound field mapping.
//
// Formats are looked up by the name used in the telemetry target
// configuration:
//
//	json          application/json object, keys sorted
//	urlencoded    application/x-www-form-urlencoded
//	lpp           Cayenne LPP compact binary, for radio links
//	cbor          canonical CBOR map
//	lineprotocol  one InfluxDB line protocol point
//	csv           rejected with ErrFormatNotImplemented
//
// Lookup fails on unknown or unimplemented formats so a misconfigured
// target stops the logger at setup, never at transmit time.
//
// A ContentEncoding (identity or base64) is applied to the serialized
// bytes afterwards.
package codec
