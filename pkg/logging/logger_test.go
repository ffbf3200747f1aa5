package logging

import (
	"context"
	"errors"
	"testing"

	"github.com/finvalue-ai/finvalue/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestNewLoggerLevel(t *testing.T) {
	logger, err := NewLogger(config.LoggingConfig{Level: "warn", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	logger, err = NewLogger(config.LoggingConfig{Level: "bogus"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestTemporalLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tl := NewTemporalLogger(zap.New(core))

	tl.Info("Activity started", "activity", "Analyze", "attempt", 2)
	tl.Warn("odd keyvals", "dangling")
	tl.Error("Activity failed", "error", errors.New("boom"))

	entries := logs.FilterMessage("Activity started").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "temporal", fields["component"])
	assert.Equal(t, "Analyze", fields["activity"])
	assert.EqualValues(t, 2, fields["attempt"])

	assert.Len(t, logs.FilterMessage("odd keyvals").All()[0].Context, 1)
	assert.Equal(t, "boom", logs.FilterMessage("Activity failed").All()[0].ContextMap()["error"])
}

func TestUnaryClientInterceptor(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	interceptor := UnaryClientInterceptor(zap.New(core))

	ok := func(context.Context, string, interface{}, interface{}, *grpc.ClientConn, ...grpc.CallOption) error {
		return nil
	}
	require.NoError(t, interceptor(context.Background(), "/temporal.api.workflowservice.v1.WorkflowService/GetSystemInfo", nil, nil, nil, ok))
	assert.Zero(t, logs.Len())

	failing := func(context.Context, string, interface{}, interface{}, *grpc.ClientConn, ...grpc.CallOption) error {
		return status.Error(codes.Unavailable, "connection refused")
	}
	err := interceptor(context.Background(), "/temporal.api.workflowservice.v1.WorkflowService/StartWorkflowExecution", nil, nil, nil, failing)
	assert.Equal(t, codes.Unavailable, status.Code(err))

	entries := logs.FilterMessage("gRPC call failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Unavailable", entries[0].ContextMap()["code"])
}

func TestSanitizeForLog(t *testing.T) {
	in := map[string]interface{}{
		"token":    "abc",
		"Password": "p",
		"secret":   "",
		"provider": "tushare",
	}

	out := SanitizeForLog(in)

	assert.Equal(t, "***REDACTED***", out["token"])
	assert.Equal(t, "***REDACTED***", out["Password"])
	assert.Equal(t, "", out["secret"])
	assert.Equal(t, "tushare", out["provider"])
	assert.Equal(t, "abc", in["token"])
}
