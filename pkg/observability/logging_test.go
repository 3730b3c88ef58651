package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestDetermineLogLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zap.DebugLevel,
		"INFO":    zap.InfoLevel,
		" warn ":  zap.WarnLevel,
		"warning": zap.WarnLevel,
		"error":   zap.ErrorLevel,
		"fatal":   zap.FatalLevel,
		"":        zap.InfoLevel,
		"verbose": zap.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, DetermineLogLevel(in), "level %q", in)
	}
}

func TestInitLoggerLevel(t *testing.T) {
	logger := InitLogger("warn", "marketplace-sync", "test")
	defer func() { _ = logger.Sync() }()

	core := logger.Desugar().Core()
	assert.False(t, core.Enabled(zap.InfoLevel))
	assert.True(t, core.Enabled(zap.WarnLevel))
}
