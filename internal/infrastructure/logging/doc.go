// Package logging provides structured logging for the BTHome bridge.
//
// It wraps log/slog so every component logs the same way: JSON in
// production, text when developing, and a service/version pair on every
// entry.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("scanner started", "hci_device", 0)
//	bleLogger := logger.With("component", "ble")
//
// Components never depend on this package directly. They accept a small
// Logger interface (Debug/Info/Warn/Error) that *Logger satisfies.
package logging
