package service

import (
	"context"
	"fmt"
	"time"

	"meta-harvest/app/config"
	"meta-harvest/app/extractor"
	"meta-harvest/app/logger"
	"meta-harvest/app/model"
	"meta-harvest/app/storage"
	"meta-harvest/app/utils/retry"

	"go.uber.org/zap"
)

// HarvestService 批量获取条目元数据并逐条落盘
type HarvestService struct {
	logger    *logger.Logger
	config    config.HarvestConfig
	extractor extractor.Extractor
	store     *storage.RecordStore
	sleeper   retry.Sleeper
}

// NewHarvestService 创建批量抓取服务
func NewHarvestService(cfg config.HarvestConfig, ext extractor.Extractor, store *storage.RecordStore, log *logger.Logger) *HarvestService {
	return &HarvestService{
		logger:    log,
		config:    cfg,
		extractor: ext,
		store:     store,
		sleeper:   retry.RealSleeper,
	}
}

// SetSleeper 替换重试等待的实现
func (s *HarvestService) SetSleeper(sleeper retry.Sleeper) {
	s.sleeper = sleeper
}

// Close 释放提取器资源
func (s *HarvestService) Close() error {
	return extractor.Close(s.extractor)
}

// Run 按模式运行，both 时先串行后并行，两次运行处理同一列表
func (s *HarvestService) Run(ctx context.Context, ids []string, mode string) ([]Summary, error) {
	switch mode {
	case config.ModeSerial:
		return []Summary{s.RunSerial(ctx, model.NewWorkItems(ids))}, nil
	case config.ModeParallel:
		return []Summary{s.RunParallel(ctx, model.NewWorkItems(ids), s.config.Workers)}, nil
	case config.ModeBoth:
		serial := s.RunSerial(ctx, model.NewWorkItems(ids))
		if err := ctx.Err(); err != nil {
			return []Summary{serial}, err
		}
		parallel := s.RunParallel(ctx, model.NewWorkItems(ids), s.config.Workers)
		return []Summary{serial, parallel}, nil
	default:
		return nil, fmt.Errorf("未知的运行模式: %s", mode)
	}
}

// RunSerial 按输入顺序逐个处理，前一个条目（包括重试）结束后才开始下一个
func (s *HarvestService) RunSerial(ctx context.Context, items []model.WorkItem) Summary {
	s.logger.Infof("开始串行抓取，共 %d 个条目", len(items))

	agg := NewResultAggregator(config.ModeSerial, s.logger)
	for _, item := range items {
		agg.Submit(runTask(ctx, item, s.fetch))
	}

	summary := agg.Close()
	s.logSummary(summary)
	return summary
}

// RunParallel 最多 workers 个条目同时处理，各条目的结果在完成时提交
func (s *HarvestService) RunParallel(ctx context.Context, items []model.WorkItem, workers int) Summary {
	pool := NewWorkerPool(workers, s.logger)
	s.logger.Infof("开始并行抓取，共 %d 个条目，并发数 %d", len(items), pool.Workers())

	agg := NewResultAggregator(config.ModeParallel, s.logger)
	agg.Collect(pool.Run(ctx, items, s.fetch))

	summary := agg.Close()
	s.logSummary(summary)
	return summary
}

// fetch 提取、构建并保存一条记录，失败时按策略重试
func (s *HarvestService) fetch(ctx context.Context, item model.WorkItem) (outcome model.FetchOutcome) {
	var (
		record  *model.MetadataRecord
		path    string
		attempt int
	)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("❌ %s 处理时发生异常: %v", item.ID, r)
			outcome = model.Failed(item, fmt.Errorf("任务异常: %v", r), attempt)
		}
	}()

	policy := s.policy(item)
	state, err := policy.Execute(ctx, func(ctx context.Context, n int) error {
		attempt = n
		info, err := s.extractor.Extract(ctx, item.ID)
		if err != nil {
			return err
		}
		rec, err := model.BuildRecord(info)
		if err != nil {
			return err
		}
		p, err := s.store.Save(rec)
		if err != nil {
			return err
		}
		record, path = rec, p
		return nil
	})
	if err != nil {
		return model.Failed(item, err, state.Attempt)
	}
	return model.Succeeded(item, record, path, state.Attempt)
}

func (s *HarvestService) policy(item model.WorkItem) retry.Policy {
	log := s.logger
	return retry.Policy{
		MaxAttempts:  s.config.MaxAttempts,
		InitialDelay: s.config.InitialDelay,
		Sleeper:      s.sleeper,
		Observer: func(e retry.Event) {
			switch e.Kind {
			case retry.EventAttempt:
				log.Debugf("🎵 处理 %s (第 %d/%d 次)", item.ID, e.Attempt, e.MaxAttempts)
			case retry.EventSuccess:
				log.Infof("✅ %s 处理成功 (第 %d 次)", item.ID, e.Attempt)
			case retry.EventRetry:
				log.Warnf("⚠️ %s 第 %d 次失败: %v，%s 后重试", item.ID, e.Attempt, e.Err, e.Delay)
			case retry.EventGiveUp:
				log.Errorf("❌ %s 在 %d 次尝试后放弃: %v", item.ID, e.Attempt, e.Err)
			}
		},
	}
}

func (s *HarvestService) logSummary(summary Summary) {
	s.logger.WithField("run_id", summary.RunID).Info("抓取运行完成",
		zap.String("mode", summary.Mode),
		zap.Int("total", summary.Total),
		zap.Int("successful", summary.Successful),
		zap.Int("failed", summary.Failed),
		zap.Duration("elapsed", summary.Elapsed.Round(time.Millisecond)),
	)
}
