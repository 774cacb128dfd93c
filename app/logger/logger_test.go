package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"meta-harvest/app/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestFileOutput(t *testing.T) {
	dir := t.TempDir()
	log := New(config.LogConfig{Level: "info", Format: "json", Output: "file", Dir: dir, MaxSize: 1})

	log.Named("harvest").Infof("处理 %s", "item-1")
	log.Debugf("不会写入")
	log.WithField("run", "r1").Warn("带字段")
	log.WithError(errors.New("磁盘已满")).Error("写入失败")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(filepath.Join(dir, time.Now().Format("2006-01-02")+".log"))
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "处理 item-1")
	assert.Contains(t, out, `"logger":"harvest"`)
	assert.Contains(t, out, `"run":"r1"`)
	assert.Contains(t, out, `"error":"磁盘已满"`)
	assert.NotContains(t, out, "不会写入")
}

func TestNop(t *testing.T) {
	log := NewNop()
	assert.NotPanics(t, func() {
		log.Infof("x %d", 1)
		log.With().Errorf("y")
		_ = log.Close()
	})
}
