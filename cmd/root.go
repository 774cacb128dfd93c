package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"

	"meta-harvest/app/config"
	"meta-harvest/app/extractor"
	"meta-harvest/app/logger"
	"meta-harvest/app/service"
	"meta-harvest/app/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "meta-harvest",
	Short:   "媒体元数据批量抓取与合并工具",
	Long:    "批量获取远程媒体条目的元数据并逐条保存，然后合并为一个经过校验的规范数据集",
	Version: "1.0.0",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径 (默认 ./data/config.yaml 或 ./config.yaml)")
}

// initConfig 设置配置文件搜索路径和环境变量，实际读取在 config.Load 中进行
func initConfig() {
	// .env 不存在时忽略
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Println("读取 .env 失败:", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("./data") // 相对于当前工作目录的 data 文件夹
		viper.AddConfigPath(".")      // 当前目录
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// HARVEST_HARVEST_WORKERS 对应 harvest.workers
	viper.SetEnvPrefix("HARVEST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// bindFlags 把命令行参数绑定到配置键，只有显式设置的参数会覆盖配置文件
func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for flag, key := range keys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := viper.BindPFlag(key, f); err != nil {
				log.Fatalf("绑定参数 %s 失败: %v", flag, err)
			}
		}
	}
}

// newHarvestService 根据配置组装抓取服务
func newHarvestService(cfg *config.Config, log *logger.Logger) (*service.HarvestService, error) {
	ext, err := extractor.New(cfg.Extractor, cfg.Harvest.OutputDir, log)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewRecordStore(cfg.Harvest.OutputDir)
	if err != nil {
		return nil, err
	}
	return service.NewHarvestService(cfg.Harvest, ext, store, log.Named("harvest")), nil
}

// newPipeline 根据配置组装完整流水线
func newPipeline(cfg *config.Config, log *logger.Logger) (*service.Pipeline, error) {
	harvest, err := newHarvestService(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("创建抓取服务失败: %w", err)
	}
	consolidate := service.NewConsolidateService(cfg.Consolidate, log.Named("consolidate"))
	return service.NewPipeline(cfg.Harvest.InputFile, cfg.Harvest.Mode, harvest, consolidate, log), nil
}
