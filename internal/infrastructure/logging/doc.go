// Package logging provides structured logging for Hearth Core.
//
// It wraps log/slog with configuration-driven level, format and output
// selection, and stamps every record with the service name and version.
//
// Usage:
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("mqtt connected", "broker", addr)
//
// Component loggers can be derived with With:
//
//	bridgeLog := log.With("component", "bridge")
package logging
