package service

import (
	"fmt"
	"io"
	"time"

	"meta-harvest/app/logger"
	"meta-harvest/app/model"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

// FailureReport 汇总中的一条失败信息
type FailureReport struct {
	ID       string `json:"id"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error"`
}

// Summary 一次批处理运行的汇总，Successful + Failed 恒等于 Total
type Summary struct {
	RunID      string          `json:"run_id"`
	Mode       string          `json:"mode"`
	Total      int             `json:"total"`
	Successful int             `json:"successful"`
	Failed     int             `json:"failed"`
	StartedAt  time.Time       `json:"started_at"`
	Elapsed    time.Duration   `json:"elapsed"`
	Failures   []FailureReport `json:"failures,omitempty"`
}

// ResultAggregator 收集工作者提交的结果。
// 计数只由内部 goroutine 修改，工作者通过通道提交，不共享可变状态。
type ResultAggregator struct {
	logger  *logger.Logger
	in      chan model.FetchOutcome
	done    chan struct{}
	summary Summary
	started time.Time
}

// NewResultAggregator 创建并启动聚合器，必须调用 Close 取得汇总
func NewResultAggregator(mode string, log *logger.Logger) *ResultAggregator {
	now := time.Now()
	a := &ResultAggregator{
		logger:  log,
		in:      make(chan model.FetchOutcome),
		done:    make(chan struct{}),
		started: now,
		summary: Summary{
			RunID:     uuid.NewString(),
			Mode:      mode,
			StartedAt: now,
		},
	}
	go a.run()
	return a
}

// RunID 本次运行的标识
func (a *ResultAggregator) RunID() string {
	return a.summary.RunID
}

// Submit 提交一个结果，可以被多个 goroutine 并发调用
func (a *ResultAggregator) Submit(outcome model.FetchOutcome) {
	a.in <- outcome
}

// Collect 提交通道中的所有结果，直到通道关闭
func (a *ResultAggregator) Collect(outcomes <-chan model.FetchOutcome) {
	for outcome := range outcomes {
		a.Submit(outcome)
	}
}

// Close 停止接收并返回汇总。调用后不能再 Submit
func (a *ResultAggregator) Close() Summary {
	close(a.in)
	<-a.done
	a.summary.Elapsed = time.Since(a.started)
	return a.summary
}

func (a *ResultAggregator) run() {
	defer close(a.done)

	for outcome := range a.in {
		a.summary.Total++
		if outcome.OK() {
			a.summary.Successful++
			a.logger.Debugf("✅ [%s] %s 已保存到 %s", a.summary.Mode, outcome.Item.ID, outcome.Path)
			continue
		}

		a.summary.Failed++
		errMsg := ""
		if outcome.Err != nil {
			errMsg = outcome.Err.Error()
		}
		a.summary.Failures = append(a.summary.Failures, FailureReport{
			ID:       outcome.Item.ID,
			Attempts: outcome.Attempts,
			Error:    errMsg,
		})
	}
}

// Print 输出可读的运行汇总
func (s Summary) Print(w io.Writer) {
	title := color.New(color.FgCyan, color.Bold)
	ok := color.New(color.FgGreen)
	bad := color.New(color.FgRed)

	title.Fprintf(w, "=== %s 运行汇总 (%s) ===\n", s.Mode, s.RunID)
	fmt.Fprintf(w, "条目总数: %d\n", s.Total)
	ok.Fprintf(w, "成功: %d\n", s.Successful)
	if s.Failed > 0 {
		bad.Fprintf(w, "失败: %d\n", s.Failed)
		for _, f := range s.Failures {
			bad.Fprintf(w, "  - %s (%d 次尝试): %s\n", f.ID, f.Attempts, f.Error)
		}
	} else {
		fmt.Fprintf(w, "失败: 0\n")
	}
	fmt.Fprintf(w, "耗时: %.2f 秒\n", s.Elapsed.Seconds())
}
