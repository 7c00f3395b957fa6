package zorm

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a production zap logger at the given level
// ("debug", "info", "warn", "error"). It falls back to the development
// configuration when the production one cannot be built.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("%w: log level %q", ErrInvalidConfig, level)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(lvl)
		return cfg.Build()
	}

	return logger, nil
}

// queryTracer logs executed statements.
type queryTracer struct {
	logger        *zap.Logger
	slowThreshold time.Duration
}

func newQueryTracer(logger *zap.Logger, slowThreshold time.Duration) *queryTracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &queryTracer{logger: logger, slowThreshold: slowThreshold}
}

// Trace logs one statement. rows is -1 when unknown. Not-found results are
// expected outcomes of relation resolution and are logged at debug level.
func (t *queryTracer) Trace(op string, begin time.Time, query string, args []any, rows int64, err error) {
	elapsed := time.Since(begin)

	fields := []zap.Field{
		zap.String("op", op),
		zap.String("duration", fmt.Sprintf("%.3fms", float64(elapsed.Nanoseconds())/1e6)),
		zap.String("sql", query),
		zap.Any("args", args),
	}

	if rows != -1 {
		fields = append(fields, zap.Int64("rows", rows))
	}

	switch {
	case err != nil && !errors.Is(err, ErrRecordNotFound):
		fields = append(fields, zap.Error(err))
		t.logger.Error("SQL executed", fields...)

	case t.slowThreshold != 0 && elapsed > t.slowThreshold:
		fields = append(fields, zap.String("slow_threshold", t.slowThreshold.String()))
		t.logger.Warn("SLOW SQL executed", fields...)

	default:
		t.logger.Debug("SQL executed", fields...)
	}
}
