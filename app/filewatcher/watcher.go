package filewatcher

import (
	"fmt"
	"os"
	"sync"
	"time"

	"meta-harvest/app/logger"
	"meta-harvest/app/utils/pathhelper"

	"github.com/fsnotify/fsnotify"
)

// RecordWatcher 监控记录目录，记录文件变化平息 debounce 之后调用 onChange
type RecordWatcher struct {
	dir      string
	debounce time.Duration
	onChange func()
	watcher  *fsnotify.Watcher
	logger   *logger.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
	watching bool
	mu       sync.RWMutex

	// 事件循环和定时器回调共用
	timerMu sync.Mutex
	timer   *time.Timer
}

// NewRecordWatcher 创建新的记录目录监控器
func NewRecordWatcher(dir string, debounce time.Duration, onChange func(), log *logger.Logger) (*RecordWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监控器失败: %w", err)
	}

	return &RecordWatcher{
		dir:      dir,
		debounce: debounce,
		onChange: onChange,
		watcher:  watcher,
		logger:   log,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start 启动文件监控
func (w *RecordWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watching {
		return fmt.Errorf("记录目录监控器已经在运行")
	}

	if _, err := os.Stat(w.dir); os.IsNotExist(err) {
		return fmt.Errorf("监控目录不存在: %s", w.dir)
	}

	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("添加监控目录失败: %w", err)
	}

	w.watching = true
	w.wg.Add(1)
	go w.watchLoop()

	w.logger.Infof("开始监控记录目录: %s", w.dir)
	return nil
}

// Stop 停止文件监控，尚未触发的合并被取消
func (w *RecordWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.watching {
		return nil
	}

	close(w.stopCh)
	err := w.watcher.Close()
	w.wg.Wait()
	w.watching = false

	w.timerMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timerMu.Unlock()

	w.logger.Infof("记录目录监控器已停止")
	return err
}

// watchLoop 监控事件循环
func (w *RecordWatcher) watchLoop() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("记录目录监控器错误: %v", err)

		case <-w.stopCh:
			return
		}
	}
}

// handleEvent 只关心 JSON 记录文件的创建、写入、重命名和删除，临时文件忽略
func (w *RecordWatcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return
	}
	if !ShouldTrigger(event.Name) {
		return
	}

	w.logger.Debugf("记录文件变化: %s (%s)", event.Name, event.Op)
	w.schedule()
}

// schedule 重置防抖定时器
func (w *RecordWatcher) schedule() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.onChange)
}

// ShouldTrigger 文件变化是否需要重新合并
func ShouldTrigger(path string) bool {
	return pathhelper.HasExtension(path, "json") && !pathhelper.IsTempFile(path)
}
