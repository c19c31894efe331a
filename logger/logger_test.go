package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	l, err := New(false)
	require.NoError(t, err)
	assert.False(t, l.Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Desugar().Core().Enabled(zapcore.WarnLevel))

	d, err := New(true)
	require.NoError(t, err)
	assert.True(t, d.Desugar().Core().Enabled(zapcore.DebugLevel))
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Infow("discarded", "k", "v")
	assert.False(t, l.Desugar().Core().Enabled(zapcore.ErrorLevel))
}
