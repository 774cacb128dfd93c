package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"meta-harvest/app/config"
	"meta-harvest/app/extractor"
	"meta-harvest/app/logger"
	"meta-harvest/app/storage"
	"meta-harvest/app/utils/retry"

	"github.com/stretchr/testify/require"
)

// fakeSource 可控的提取器：fail 中的标识总是失败，explode 中的标识触发 panic
type fakeSource struct {
	mu      sync.Mutex
	calls   map[string]int
	order   []string
	fail    map[string]bool
	explode map[string]bool
	delay   time.Duration
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		calls:   make(map[string]int),
		fail:    make(map[string]bool),
		explode: make(map[string]bool),
	}
}

func (f *fakeSource) Extract(ctx context.Context, id string) (map[string]any, error) {
	f.mu.Lock()
	f.calls[id]++
	f.order = append(f.order, id)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.explode[id] {
		panic("extractor exploded")
	}
	if f.fail[id] {
		return nil, errors.New("network unreachable")
	}

	key := id[strings.LastIndex(id, "/")+1:]
	return map[string]any{
		"id":          key,
		"title":       "Artist " + key + " - Track (Official Video)",
		"uploader":    "Uploader",
		"uploader_id": "@uploader",
		"channel":     "Channel",
		"tags":        []any{"a", "b", "c"},
		"duration":    float64(215),
		"upload_date": "20230115",
		"view_count":  float64(1000),
		"webpage_url": id,
	}, nil
}

func (f *fakeSource) callsFor(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

// countingSleeper 不真正等待，只记录次数，可被多个工作者并发调用
type countingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *countingSleeper) Sleep(ctx context.Context, d time.Duration) {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
}

func harvestConfig(dir string) config.HarvestConfig {
	return config.HarvestConfig{
		OutputDir:    dir,
		Mode:         config.ModeBoth,
		Workers:      2,
		MaxAttempts:  3,
		InitialDelay: 5 * time.Second,
	}
}

func newTestHarvest(t *testing.T, ext extractor.Extractor) (*HarvestService, *storage.RecordStore, *countingSleeper) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewRecordStore(dir)
	require.NoError(t, err)

	svc := NewHarvestService(harvestConfig(dir), ext, store, logger.NewNop())
	sleeper := &countingSleeper{}
	svc.SetSleeper(sleeper)
	return svc, store, sleeper
}

var _ retry.Sleeper = (*countingSleeper)(nil)
