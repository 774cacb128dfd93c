package filewatcher

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"meta-harvest/app/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldTrigger(t *testing.T) {
	assert.True(t, ShouldTrigger("out/song.json"))
	assert.False(t, ShouldTrigger("out/song.json.tmp"))
	assert.False(t, ShouldTrigger("out/notes.txt"))
}

func TestRecordWatcherDebounces(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	w, err := NewRecordWatcher(dir, 100*time.Millisecond, func() { calls.Add(1) }, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	for _, name := range []string{"a.json", "b.json", "c.json"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(`{}`), 0644))
	}

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRecordWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	w, err := NewRecordWatcher(dir, 50*time.Millisecond, func() { calls.Add(1) }, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.json.tmp"), []byte(`{`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte(`hi`), 0644))

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestRecordWatcherStartErrors(t *testing.T) {
	w, err := NewRecordWatcher(filepath.Join(t.TempDir(), "missing"), time.Second, func() {}, logger.NewNop())
	require.NoError(t, err)
	assert.Error(t, w.Start())

	dir := t.TempDir()
	w, err = NewRecordWatcher(dir, time.Second, func() {}, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, w.Start())
	assert.Error(t, w.Start())
	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}
