package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestGetInstanceIsShared(t *testing.T) {
	assert.Same(t, GetInstance(), GetInstance())
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { loggerLevel.SetLevel(zapcore.InfoLevel) })

	require.NoError(t, SetLevel("debug"))
	assert.True(t, GetInstance().Core().Enabled(zapcore.DebugLevel))

	assert.Error(t, SetLevel("chatty"))
	assert.Equal(t, zapcore.DebugLevel, loggerLevel.Level(), "unknown level leaves the current one")
}
