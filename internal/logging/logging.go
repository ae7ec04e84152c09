// Package logging builds the zap loggers used across the service and CLI
// entry points.
package logging

import "go.uber.org/zap"

// New builds a production zap logger, or a development logger with
// human-readable output when dev is true.
func New(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// WithRun returns a child logger scoped to one backtest run.
func WithRun(base *zap.Logger, jobID, symbol, timeframe string) *zap.Logger {
	return base.With(
		zap.String("job_id", jobID),
		zap.String("symbol", symbol),
		zap.String("timeframe", timeframe),
	)
}
