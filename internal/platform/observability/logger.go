package observability

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/auric-atelier/api/internal/platform/requestctx"
)

const defaultLogLevel = "info"

// NewLogger constructs a production-ready zap logger emitting structured JSON.
func NewLogger() (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))))); err != nil {
		// Fallback to default level when env var is unset or invalid.
		_ = level.UnmarshalText([]byte(defaultLogLevel))
	}

	encoderCfg := zapcore.EncoderConfig{
		MessageKey: "message",
		TimeKey:    "timestamp",
		LevelKey:   "severity",
		EncodeTime: zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(strings.ToUpper(level.String()))
		},
		CallerKey:     "caller",
		StacktraceKey: "stacktrace",
	}

	cfg := zap.Config{
		Level:             level,
		Encoding:          "json",
		EncoderConfig:     encoderCfg,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     false,
		DisableStacktrace: true,
	}

	return cfg.Build()
}

// WithLogger injects the logger into the provided context.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return requestctx.WithLogger(ctx, logger)
}

// FromContext retrieves the logger from context, defaulting to a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	return requestctx.Logger(ctx)
}
