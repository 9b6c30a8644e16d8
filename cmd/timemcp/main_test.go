package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/timemcp/config"
	"github.com/shaharia-lab/timemcp/observability"
)

func TestBuildLogger(t *testing.T) {
	t.Run("logrus backend", func(t *testing.T) {
		logger, err := buildLogger(config.LoggingConfig{
			Backend: config.LogBackendLogrus,
			Level:   "info",
			Format:  "json",
		})
		require.NoError(t, err)
		assert.IsType(t, &observability.LogrusLogger{}, logger)
	})

	t.Run("empty backend defaults to logrus", func(t *testing.T) {
		logger, err := buildLogger(config.LoggingConfig{Level: "debug"})
		require.NoError(t, err)
		assert.IsType(t, &observability.LogrusLogger{}, logger)
	})

	t.Run("zap backend", func(t *testing.T) {
		logger, err := buildLogger(config.LoggingConfig{
			Backend: config.LogBackendZap,
			Level:   "warn",
			Format:  "json",
		})
		require.NoError(t, err)
		assert.IsType(t, &observability.ZapLogger{}, logger)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := buildLogger(config.LoggingConfig{Backend: "syslog"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "syslog")
	})

	t.Run("invalid logrus level", func(t *testing.T) {
		_, err := buildLogger(config.LoggingConfig{Level: "loud"})
		require.Error(t, err)
	})

	t.Run("invalid zap level", func(t *testing.T) {
		_, err := buildLogger(config.LoggingConfig{
			Backend: config.LogBackendZap,
			Level:   "loud",
		})
		require.Error(t, err)
	})
}
