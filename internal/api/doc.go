// Package api implements the local administrative HTTP API of the field
// logger.
//
// This package provides:
//   - Health and status endpoints (mode, last cycle, persistent state)
//   - The most recent inbound readings from the read cache
//   - Maintenance mode get/set
//   - Dotted configuration lookups with secrets redacted
//   - The Prometheus scrape endpoint
//
// The API binds to localhost by default. It is meant for a technician on
// site (or an SSH tunnel), so there is no authentication layer.
package api
