package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		enabled zapcore.Level
		off     zapcore.Level
	}{
		{"development debug", Config{Level: "debug", Format: "development"}, zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"json warn", Config{Level: "WARN", Format: "json"}, zapcore.WarnLevel, zapcore.InfoLevel},
		{"defaults", Config{}, zapcore.InfoLevel, zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.off))
		})
	}
}

func TestNew_None(t *testing.T) {
	logger, err := New(Config{Level: "debug", Format: "none"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.ErrorLevel))
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.ErrorContains(t, err, "invalid log level")

	_, err = New(Config{Format: "xml"})
	assert.ErrorContains(t, err, "unknown log format")

	assert.NotNil(t, Must(Config{Format: "xml"}))
}
