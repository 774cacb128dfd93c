package service

import (
	"context"
	"errors"
	"fmt"

	"meta-harvest/app/logger"

	"github.com/robfig/cron/v3"
)

// Scheduler 按 cron 表达式定时触发流水线
type Scheduler struct {
	logger   *logger.Logger
	cron     *cron.Cron
	pipeline *Pipeline
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewScheduler 创建调度器，expr 为标准五段 cron 表达式
func NewScheduler(expr string, pipeline *Pipeline, log *logger.Logger) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		logger:   log,
		cron:     cron.New(),
		pipeline: pipeline,
		ctx:      ctx,
		cancel:   cancel,
	}

	if _, err := s.cron.AddFunc(expr, s.tick); err != nil {
		cancel()
		return nil, fmt.Errorf("无效的定时表达式 %q: %w", expr, err)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	s.logger.Info("⏰ 定时运行开始")
	err := s.pipeline.RunOnce(s.ctx)
	switch {
	case errors.Is(err, ErrPipelineBusy):
		s.logger.Warn("上一次运行尚未结束，跳过本次定时运行")
	case err != nil:
		s.logger.Errorf("定时运行失败: %v", err)
	}
}

// Start 启动调度
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("定时调度已启动")
}

// Stop 停止调度并等待正在执行的运行结束
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("定时调度已停止")
}
