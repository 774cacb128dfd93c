package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"meta-harvest/app/config"
	"meta-harvest/app/logger"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "抓取后立即合并",
	Run: func(cmd *cobra.Command, args []string) {
		bindFlags(cmd, map[string]string{
			"mode":    "harvest.mode",
			"workers": "harvest.workers",
		})
		cfg := config.Load()

		log := logger.New(cfg.Log)
		defer log.Sync()

		pipeline, err := newPipeline(cfg, log)
		if err != nil {
			log.Fatalf("%v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		err = pipeline.RunOnce(ctx)
		if cerr := pipeline.Close(); cerr != nil {
			log.Warnf("释放提取器失败: %v", cerr)
		}
		for _, summary := range pipeline.Summaries() {
			summary.Print(os.Stdout)
		}
		if report := pipeline.LastReport(); report != nil {
			report.Print(os.Stdout)
		}
		if err != nil {
			log.Errorf("运行失败: %v", err)
			log.Sync()
			os.Exit(1)
		}
	},
}

func init() {
	runCmd.Flags().String("mode", "", "运行模式: serial, parallel 或 both")
	runCmd.Flags().Int("workers", 0, "并行工作者数量")
	rootCmd.AddCommand(runCmd)
}
