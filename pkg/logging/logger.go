// 结构化日志
package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/finvalue-ai/finvalue/pkg/config"
	"go.temporal.io/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// NewLogger 创建日志记录器
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	// 解析日志级别
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "json" {
		encoderConfig = zap.NewProductionEncoderConfig()
	} else {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	var output zapcore.WriteSyncer
	switch cfg.Output {
	case "stderr":
		output = zapcore.AddSync(os.Stderr)
	default:
		output = zapcore.AddSync(os.Stdout)
	}

	core := zapcore.NewCore(encoder, output, level)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// TemporalLogger 适配 Temporal SDK 的日志接口
type TemporalLogger struct {
	logger *zap.Logger
}

// NewTemporalLogger 创建 Temporal 日志适配器
func NewTemporalLogger(logger *zap.Logger) log.Logger {
	return &TemporalLogger{logger: logger.With(zap.String("component", "temporal")).WithOptions(zap.AddCallerSkip(1))}
}

func (l *TemporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, toZapFields(keyvals)...)
}

func (l *TemporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, toZapFields(keyvals)...)
}

func (l *TemporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, toZapFields(keyvals)...)
}

func (l *TemporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, toZapFields(keyvals)...)
}

// With 实现 log.WithLogger
func (l *TemporalLogger) With(keyvals ...interface{}) log.Logger {
	return &TemporalLogger{logger: l.logger.With(toZapFields(keyvals)...)}
}

func toZapFields(keyvals []interface{}) []zap.Field {
	if len(keyvals)%2 != 0 {
		return nil
	}

	fields := make([]zap.Field, 0, len(keyvals)/2)
	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		if err, ok := keyvals[i+1].(error); ok {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keyvals[i+1]))
	}
	return fields
}

// UnaryClientInterceptor 记录失败的 gRPC 调用（Temporal 前端）
func UnaryClientInterceptor(logger *zap.Logger) grpc.UnaryClientInterceptor {
	logger = logger.With(zap.String("component", "grpc"))
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		if err != nil {
			logger.Warn("gRPC call failed",
				zap.String("method", method),
				zap.String("code", status.Code(err).String()),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
		}
		return err
	}
}

var sensitiveFields = map[string]bool{
	"api_key":  true,
	"password": true,
	"token":    true,
	"secret":   true,
	"key":      true,
}

// SanitizeForLog 敏感数据脱敏
func SanitizeForLog(data map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(data))
	for k, v := range data {
		if sensitiveFields[strings.ToLower(k)] {
			if s, ok := v.(string); ok && s == "" {
				result[k] = ""
				continue
			}
			result[k] = "***REDACTED***"
		} else {
			result[k] = v
		}
	}
	return result
}
