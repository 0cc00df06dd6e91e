package utils

import "go.uber.org/zap"

// NewLogger returns the process-wide zap logger. Debug mode uses the
// development config (console encoder, debug level) for working against a
// local inventory; otherwise the production config (JSON, info level).
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// NewProductionLogger returns a production zap logger regardless of debug
// settings, for callers that always want structured JSON output.
func NewProductionLogger() (*zap.Logger, error) {
	return zap.NewProduction()
}
