package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"meta-harvest/app/logger"
	"meta-harvest/app/utils/urllist"
)

// ErrPipelineBusy 已有运行在进行中
var ErrPipelineBusy = errors.New("已有运行在进行中")

// maxHistory 保留的运行汇总数量
const maxHistory = 50

// Pipeline 读取条目列表，运行批量抓取，然后合并数据集。
// 同一时间只允许一次运行，并保留最近的运行记录供查询。
type Pipeline struct {
	logger      *logger.Logger
	inputFile   string
	mode        string
	harvest     *HarvestService
	consolidate *ConsolidateService

	wg         sync.WaitGroup // 后台运行
	mu         sync.RWMutex
	running    bool
	startedAt  time.Time
	summaries  []Summary
	lastReport *ConsolidationReport
	lastErr    error
}

// NewPipeline 创建流水线
func NewPipeline(inputFile, mode string, harvest *HarvestService, consolidate *ConsolidateService, log *logger.Logger) *Pipeline {
	return &Pipeline{
		logger:      log,
		inputFile:   inputFile,
		mode:        mode,
		harvest:     harvest,
		consolidate: consolidate,
	}
}

// Status 流水线当前状态
type Status struct {
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"started_at,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	Runs      int       `json:"runs"`
}

// RunOnce 同步执行一次完整运行
func (p *Pipeline) RunOnce(ctx context.Context) error {
	if !p.acquire() {
		return ErrPipelineBusy
	}
	defer p.release()

	err := p.run(ctx)
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
	return err
}

// Trigger 在后台开始一次运行，已有运行时返回 ErrPipelineBusy
func (p *Pipeline) Trigger(ctx context.Context) error {
	if !p.acquire() {
		return ErrPipelineBusy
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.release()
		err := p.run(ctx)
		if err != nil {
			p.logger.Errorf("后台运行失败: %v", err)
		}
		p.mu.Lock()
		p.lastErr = err
		p.mu.Unlock()
	}()
	return nil
}

// Wait 等待 Trigger 启动的后台运行结束，ctx 到期时返回其错误
func (p *Pipeline) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 释放抓取服务持有的资源，调用前应先等待运行结束
func (p *Pipeline) Close() error {
	return p.harvest.Close()
}

func (p *Pipeline) run(ctx context.Context) error {
	ids, err := urllist.Load(p.inputFile)
	if err != nil {
		return err
	}
	p.logger.Infof("从 %s 读取到 %d 个条目", p.inputFile, len(ids))

	summaries, err := p.harvest.Run(ctx, ids, p.mode)
	p.recordSummaries(summaries...)
	if err != nil {
		return fmt.Errorf("批量抓取失败: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("运行被取消: %w", err)
	}

	report, err := p.consolidate.Run()
	p.mu.Lock()
	p.lastReport = report
	p.mu.Unlock()
	return err
}

func (p *Pipeline) acquire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return false
	}
	p.running = true
	p.startedAt = time.Now()
	return true
}

func (p *Pipeline) release() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

func (p *Pipeline) recordSummaries(summaries ...Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.summaries = append(p.summaries, summaries...)
	if over := len(p.summaries) - maxHistory; over > 0 {
		p.summaries = append([]Summary(nil), p.summaries[over:]...)
	}
}

// Summaries 最近的运行汇总，最新的在最后
func (p *Pipeline) Summaries() []Summary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return append([]Summary(nil), p.summaries...)
}

// LastReport 最近一次合并结果，尚未合并时为 nil
func (p *Pipeline) LastReport() *ConsolidationReport {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.lastReport
}

// Status 当前状态
func (p *Pipeline) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	st := Status{Running: p.running, Runs: len(p.summaries)}
	if p.running {
		st.StartedAt = p.startedAt
	}
	if p.lastErr != nil {
		st.LastError = p.lastErr.Error()
	}
	return st
}
