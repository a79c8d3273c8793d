package observ

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerHonorsLevel(t *testing.T) {
	logger, err := NewLogger("production", "warn")
	require.NoError(t, err)

	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestNewLoggerBadLevelFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger("development", "chatty")
	require.NoError(t, err)

	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}
