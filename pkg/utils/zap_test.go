package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestSetLevel(t *testing.T) {
	defer func() { _ = SetLevel("debug") }()

	assert.NoError(t, SetLevel("warn"))
	assert.False(t, GetLogger().Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, GetLogger().Desugar().Core().Enabled(zapcore.WarnLevel))

	assert.Error(t, SetLevel("loud"))
}
