package observability

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogrusLoggerFieldChaining(t *testing.T) {
	underlying, hook := logrustest.NewNullLogger()
	logger := NewLogrusLogger(underlying)

	logger.WithFields(map[string]interface{}{"component": "dispatcher"}).
		WithErr(errors.New("boom")).
		Error("tool call failed")

	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, "tool call failed", entry.Message)
	assert.Equal(t, "dispatcher", entry.Data["component"])
	require.Contains(t, entry.Data, logrus.ErrorKey)
	assert.EqualError(t, entry.Data[logrus.ErrorKey].(error), "boom")
}

func TestZapLoggerFieldChaining(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapLogger(zap.New(core))

	logger.WithFields(map[string]interface{}{"component": "dispatcher"}).
		WithErr(errors.New("boom")).
		Error("tool call failed")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "tool call failed", entries[0].Message)

	fields := entries[0].ContextMap()
	assert.Equal(t, "dispatcher", fields["component"])
	assert.Equal(t, "boom", fields[ErrorLogField])
}

func TestZapLoggerLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := NewZapLogger(zap.New(core))

	logger.Debug("hidden")
	logger.Info("shown")
	logger.Warn("shown too")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "shown", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestNullLoggerChainsToItself(t *testing.T) {
	logger := NewNullLogger()
	assert.Same(t, logger, logger.WithFields(map[string]interface{}{"k": "v"}))
	assert.Same(t, logger, logger.WithErr(errors.New("boom")))
}
