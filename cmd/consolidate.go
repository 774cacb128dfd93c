package cmd

import (
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"meta-harvest/app/config"
	"meta-harvest/app/filewatcher"
	"meta-harvest/app/logger"
	"meta-harvest/app/schema"
	"meta-harvest/app/service"

	"github.com/spf13/cobra"
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "把单条记录合并为规范数据集",
	Run: func(cmd *cobra.Command, args []string) {
		bindFlags(cmd, map[string]string{
			"input":  "consolidate.input_dir",
			"output": "consolidate.output_dir",
		})
		cfg := config.Load()

		log := logger.New(cfg.Log)
		defer log.Sync()

		svc := service.NewConsolidateService(cfg.Consolidate, log)

		watch, _ := cmd.Flags().GetBool("watch")
		if !watch {
			report, err := svc.Run()
			report.Print(os.Stdout)
			if err != nil {
				log.Sync()
				os.Exit(1)
			}
			return
		}

		// 监控模式下多次合并串行执行
		var mu sync.Mutex
		consolidate := func() {
			mu.Lock()
			defer mu.Unlock()

			report, err := svc.Run()
			report.Print(os.Stdout)
			var unexpected *schema.UnexpectedColumnError
			if errors.As(err, &unexpected) {
				log.Warnf("记录中存在未知列 %s，等待下一次变化", unexpected.Column)
			}
		}
		consolidate()

		watcher, err := filewatcher.NewRecordWatcher(cfg.Consolidate.InputDir, cfg.Consolidate.WatchDebounce, consolidate, log.Named("watcher"))
		if err != nil {
			log.Fatalf("创建监控器失败: %v", err)
		}
		if err := watcher.Start(); err != nil {
			log.Fatalf("启动监控器失败: %v", err)
		}

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("收到关闭信号，停止监控...")

		if err := watcher.Stop(); err != nil {
			log.Errorf("停止监控器失败: %v", err)
		}
	},
}

func init() {
	consolidateCmd.Flags().String("input", "", "单条记录所在目录")
	consolidateCmd.Flags().String("output", "", "数据集输出目录")
	consolidateCmd.Flags().Bool("watch", false, "监控记录目录，变化后重新合并")
	rootCmd.AddCommand(consolidateCmd)
}
