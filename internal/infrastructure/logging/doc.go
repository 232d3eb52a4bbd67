// Package logging provides structured logging for the field logger.
//
// This package wraps Go's standard log/slog package so every subsystem
// (bus, sensor, telemetry, duty cycle) logs with the same shape.
//
// # Features
//
//   - JSON output for unattended deployments, text for bench work
//   - Default fields (service, version, boot) on all log entries
//   - Appending to a log file on persistent storage
//   - A ring of recent entries served by the admin API
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "file"     # stdout, stderr, file
//	  file: "/data/log/fieldlogger.log"
//	  recent: 200        # entries kept for GET /api/v1/logs
//
// # Usage
//
//	logger, err := logging.New(cfg.Logging, "1.0.0")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//	logger.Info("cycle complete", "succeeded", 2, "total", 3)
//
// Never log broker passwords or tokens.
package logging
