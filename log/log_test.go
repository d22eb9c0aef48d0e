package log

import (
	"testing"

	pclog "github.com/pingcap/log"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestInit(t *testing.T) {
	assert.NoError(t, Init("debug", ""))
	assert.Equal(t, zapcore.DebugLevel, pclog.GetLevel())
	assert.NoError(t, SetLevel("WARN"))
	assert.Equal(t, zapcore.WarnLevel, pclog.GetLevel())
	assert.Error(t, SetLevel("loud"))
	assert.NoError(t, Init("info", ""))
	Sync()
}
