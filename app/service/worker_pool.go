package service

import (
	"context"
	"fmt"
	"time"

	"meta-harvest/app/logger"
	"meta-harvest/app/model"

	"golang.org/x/sync/errgroup"
)

// Task 处理一个工作单元并返回最终结果，内部完成全部重试
type Task func(ctx context.Context, item model.WorkItem) model.FetchOutcome

// WorkerPool 最多同时运行 workers 个任务的工作池
type WorkerPool struct {
	logger  *logger.Logger
	workers int
}

// NewWorkerPool 创建工作池，workers 小于 1 时按 1 处理
func NewWorkerPool(workers int, log *logger.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{logger: log, workers: workers}
}

// Workers 并发上限
func (p *WorkerPool) Workers() int {
	return p.workers
}

// Run 并发处理所有条目。每个条目完成时立即把结果写入返回的通道，
// 全部完成后通道关闭。调用方必须读完通道。
func (p *WorkerPool) Run(ctx context.Context, items []model.WorkItem, task Task) <-chan model.FetchOutcome {
	out := make(chan model.FetchOutcome, p.workers)

	go func() {
		defer close(out)

		var g errgroup.Group
		g.SetLimit(p.workers)
		for _, item := range items {
			g.Go(func() error {
				out <- runTask(ctx, item, task)
				return nil
			})
		}
		_ = g.Wait()

		p.logger.Debugf("工作池已处理 %d 个条目 (并发 %d)", len(items), p.workers)
	}()

	return out
}

// runTask 执行任务，任务中的 panic 转换为失败结果，此时至少计一次尝试
func runTask(ctx context.Context, item model.WorkItem, task Task) (outcome model.FetchOutcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			outcome = model.Failed(item, fmt.Errorf("任务异常: %v", r), max(item.Attempt, 1))
		}
		outcome.Duration = time.Since(start)
	}()
	return task(ctx, item)
}
