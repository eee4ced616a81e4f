package main

import (
	"context"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"drccmis/pkg/config"
)

var _ log.Logger = (*zapLogger)(nil)

// zapLogger adapts zap to the kratos logger the library packages take.
type zapLogger struct {
	log *zap.Logger
}

func (l *zapLogger) Log(level log.Level, keyvals ...interface{}) error {
	if len(keyvals)%2 != 0 {
		keyvals = append(keyvals, "KEYVALS UNPAIRED")
	}

	var msg string
	fields := make([]zap.Field, 0, len(keyvals)/2)
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		if key == log.DefaultMessageKey {
			msg = fmt.Sprint(keyvals[i+1])
			continue
		}
		fields = append(fields, zap.Any(key, keyvals[i+1]))
	}

	switch level {
	case log.LevelDebug:
		l.log.Debug(msg, fields...)
	case log.LevelInfo:
		l.log.Info(msg, fields...)
	case log.LevelWarn:
		l.log.Warn(msg, fields...)
	case log.LevelError, log.LevelFatal:
		// fatal is logged as error, the commands decide how to exit
		l.log.Error(msg, fields...)
	}
	return nil
}

// initLogger 初始化日志
func initLogger(cfg *config.Config) (*zap.Logger, log.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if cfg.Service.Environment == "development" {
		zapConfig = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	// command output goes to stdout
	zapConfig.OutputPaths = []string{"stderr"}

	z, err := zapConfig.Build()
	if err != nil {
		return nil, nil, err
	}

	logger := log.With(log.NewFilter(&zapLogger{log: z}, log.FilterKey("password", "client_password")),
		"service.name", cfg.Service.Name,
		"service.version", cfg.Service.Version,
		"trace.id", log.Valuer(traceID),
	)
	return z, logger, nil
}

func traceID(ctx context.Context) interface{} {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}
