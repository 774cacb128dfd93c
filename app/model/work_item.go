package model

import (
	"fmt"
	"time"
)

// WorkItem 批处理中的一个工作单元，只由处理它的工作者持有
type WorkItem struct {
	ID      string `json:"id"`      // 远程条目标识（通常是 URL）
	Attempt int    `json:"attempt"` // 已经进行的尝试次数
}

// NewWorkItems 将标识列表转换为工作单元
func NewWorkItems(ids []string) []WorkItem {
	items := make([]WorkItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, WorkItem{ID: id})
	}
	return items
}

// OutcomeStatus 抓取结果状态
type OutcomeStatus string

// 状态常量
const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailure OutcomeStatus = "failure"
)

// FetchOutcome 一个工作单元的最终结果，成功时带有记录和落盘路径，失败时带有最后一次错误
type FetchOutcome struct {
	Item     WorkItem
	Status   OutcomeStatus
	Record   *MetadataRecord
	Path     string
	Err      error
	Attempts int
	Duration time.Duration
}

// Succeeded 创建成功结果
func Succeeded(item WorkItem, record *MetadataRecord, path string, attempts int) FetchOutcome {
	item.Attempt = attempts
	return FetchOutcome{
		Item:     item,
		Status:   OutcomeSuccess,
		Record:   record,
		Path:     path,
		Attempts: attempts,
	}
}

// Failed 创建失败结果
func Failed(item WorkItem, err error, attempts int) FetchOutcome {
	item.Attempt = attempts
	return FetchOutcome{
		Item:     item,
		Status:   OutcomeFailure,
		Err:      err,
		Attempts: attempts,
	}
}

// OK 是否成功
func (o FetchOutcome) OK() bool {
	return o.Status == OutcomeSuccess
}

func (o FetchOutcome) String() string {
	if o.OK() {
		return fmt.Sprintf("FetchOutcome{item=%s status=%s attempts=%d path=%s}", o.Item.ID, o.Status, o.Attempts, o.Path)
	}
	return fmt.Sprintf("FetchOutcome{item=%s status=%s attempts=%d err=%v}", o.Item.ID, o.Status, o.Attempts, o.Err)
}
