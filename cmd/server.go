package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meta-harvest/app/config"
	"meta-harvest/app/logger"
	"meta-harvest/app/server"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动状态服务和定时运行",
	Run: func(cmd *cobra.Command, args []string) {
		bindFlags(cmd, map[string]string{
			"port":     "server.port",
			"schedule": "server.schedule",
		})
		cfg := config.Load()

		// 创建日志器
		log := logger.New(cfg.Log)
		defer log.Sync()

		if cfg.Log.Level != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}

		pipeline, err := newPipeline(cfg, log)
		if err != nil {
			log.Fatalf("%v", err)
		}

		srv, err := server.New(cfg, pipeline, log)
		if err != nil {
			log.Fatalf("创建服务器失败: %v", err)
		}

		// 在协程中启动服务器
		go func() {
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("启动服务器失败: %v", err)
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("收到关闭信号，正在关闭服务器...")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Errorf("服务器关闭失败: %v", err)
		}
		log.Info("服务器已退出")
	},
}

func init() {
	serverCmd.Flags().String("port", "", "监听端口")
	serverCmd.Flags().String("schedule", "", "cron 表达式，例如 \"0 3 * * *\"")
	rootCmd.AddCommand(serverCmd)
}
