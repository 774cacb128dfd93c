// Package retry 提供按指数退避重试单个操作的策略。
//
// 退避只阻塞调用方所在的 goroutine，延迟为 InitialDelay * 2^(attempt-1)，
// 最后一次尝试失败后不再等待。
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted 所有尝试都失败
var ErrExhausted = errors.New("重试次数已用尽")

// Sleeper 抽象的等待，测试中可以替换为不真正等待的实现。ctx 取消时应尽快返回
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration)
}

// SleeperFunc 函数形式的 Sleeper
type SleeperFunc func(context.Context, time.Duration)

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) { f(ctx, d) }

// RealSleeper 真正等待 d，ctx 取消时提前返回
var RealSleeper Sleeper = SleeperFunc(sleepContext)

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// EventKind 重试过程中的事件类型
type EventKind string

const (
	EventAttempt EventKind = "attempt"
	EventSuccess EventKind = "success"
	EventRetry   EventKind = "retry"
	EventGiveUp  EventKind = "give_up"
)

// Event 每次尝试都会产生的事件
type Event struct {
	Kind        EventKind
	Attempt     int
	MaxAttempts int
	Delay       time.Duration
	Err         error
}

// State 一个条目处理期间的重试状态，只属于处理该条目的 goroutine
type State struct {
	Attempt int
	LastErr error
	Delay   time.Duration
}

// Policy 重试策略
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Sleeper      Sleeper
	Observer     func(Event)
}

// Backoff 第 attempt 次失败之后的等待时间
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return p.InitialDelay * time.Duration(int64(1)<<(attempt-1))
}

// Next 根据本次尝试的错误推进状态。返回 true 表示需要在 state.Delay 之后再次尝试
func (p Policy) Next(state *State, err error) bool {
	state.LastErr = err
	state.Delay = 0
	if err == nil {
		p.emit(Event{Kind: EventSuccess, Attempt: state.Attempt, MaxAttempts: p.maxAttempts()})
		return false
	}
	if state.Attempt >= p.maxAttempts() {
		p.emit(Event{Kind: EventGiveUp, Attempt: state.Attempt, MaxAttempts: p.maxAttempts(), Err: err})
		return false
	}
	state.Delay = p.Backoff(state.Attempt)
	p.emit(Event{Kind: EventRetry, Attempt: state.Attempt, MaxAttempts: p.maxAttempts(), Delay: state.Delay, Err: err})
	return true
}

// Execute 执行 op，失败时按退避重试。返回最终状态，全部失败时错误包装 ErrExhausted 和最后一次错误
func (p Policy) Execute(ctx context.Context, op func(ctx context.Context, attempt int) error) (State, error) {
	var state State
	for {
		state.Attempt++
		p.emit(Event{Kind: EventAttempt, Attempt: state.Attempt, MaxAttempts: p.maxAttempts()})

		err := op(ctx, state.Attempt)
		if err != nil && ctx.Err() != nil {
			// 运行被取消，不再重试
			state.LastErr = err
			p.emit(Event{Kind: EventGiveUp, Attempt: state.Attempt, MaxAttempts: p.maxAttempts(), Err: err})
			break
		}
		if !p.Next(&state, err) {
			break
		}
		p.sleeper().Sleep(ctx, state.Delay)
		if ctx.Err() != nil {
			// 等待期间运行被取消
			p.emit(Event{Kind: EventGiveUp, Attempt: state.Attempt, MaxAttempts: p.maxAttempts(), Err: state.LastErr})
			break
		}
	}

	if state.LastErr != nil {
		return state, fmt.Errorf("%w (%d 次尝试): %w", ErrExhausted, state.Attempt, state.LastErr)
	}
	return state, nil
}

func (p Policy) maxAttempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) sleeper() Sleeper {
	if p.Sleeper == nil {
		return RealSleeper
	}
	return p.Sleeper
}

func (p Policy) emit(e Event) {
	if p.Observer != nil {
		p.Observer(e)
	}
}
