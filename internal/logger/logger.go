package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"riskfolio/internal/config"
)

// New builds the process logger, named after the service so batch stage logs
// are attributable when several services share a sink. Timestamps are ISO8601
// regardless of encoding; daily runs are correlated across stages by time.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Encoding != "" {
		zc.Encoding = cfg.Encoding
	}
	if level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level)); err == nil {
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	zc.DisableCaller = cfg.DisableCaller
	zc.DisableStacktrace = cfg.DisableStacktrace
	zc.OutputPaths = []string{"stdout"}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if cfg.Sampling {
		zc.Sampling = &zap.SamplingConfig{Initial: 100, Thereafter: 100}
	} else {
		zc.Sampling = nil
	}

	log, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return log.Named("riskd"), nil
}
