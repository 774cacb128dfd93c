package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"meta-harvest/app/config"
	"meta-harvest/app/logger"
	"meta-harvest/app/utils/urllist"

	"github.com/spf13/cobra"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "批量抓取列表中条目的元数据",
	Run: func(cmd *cobra.Command, args []string) {
		bindFlags(cmd, map[string]string{
			"input":   "harvest.input_file",
			"output":  "harvest.output_dir",
			"mode":    "harvest.mode",
			"workers": "harvest.workers",
		})
		cfg := config.Load()

		log := logger.New(cfg.Log)
		defer log.Sync()

		ids, err := urllist.Load(cfg.Harvest.InputFile)
		if err != nil {
			log.Fatalf("读取条目列表失败: %v", err)
		}

		svc, err := newHarvestService(cfg, log)
		if err != nil {
			log.Fatalf("创建抓取服务失败: %v", err)
		}
		defer svc.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		summaries, err := svc.Run(ctx, ids, cfg.Harvest.Mode)
		for _, summary := range summaries {
			summary.Print(os.Stdout)
		}
		if err != nil {
			log.Errorf("抓取被中断: %v", err)
		}
	},
}

func init() {
	harvestCmd.Flags().String("input", "", "条目列表文件，每行一个")
	harvestCmd.Flags().String("output", "", "单条记录输出目录")
	harvestCmd.Flags().String("mode", "", "运行模式: serial, parallel 或 both")
	harvestCmd.Flags().Int("workers", 0, "并行工作者数量")
	rootCmd.AddCommand(harvestCmd)
}
