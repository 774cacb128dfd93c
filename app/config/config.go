package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Harvest     HarvestConfig     `mapstructure:"harvest"`
	Extractor   ExtractorConfig   `mapstructure:"extractor"`
	Consolidate ConsolidateConfig `mapstructure:"consolidate"`
	Log         LogConfig         `mapstructure:"log"`
	Server      ServerConfig      `mapstructure:"server"`
}

type HarvestConfig struct {
	InputFile    string        `mapstructure:"input_file"`    // 每行一个条目标识
	OutputDir    string        `mapstructure:"output_dir"`    // 单条记录的输出目录
	Mode         string        `mapstructure:"mode"`          // serial, parallel 或 both
	Workers      int           `mapstructure:"workers"`       // 并行工作者数量
	MaxAttempts  int           `mapstructure:"max_attempts"`  // 每个条目的最大尝试次数
	InitialDelay time.Duration `mapstructure:"initial_delay"` // 首次重试前的等待时间
}

type ExtractorConfig struct {
	Kind          string        `mapstructure:"kind"` // ytdlp 或 http
	Binary        string        `mapstructure:"binary"`
	Timeout       time.Duration `mapstructure:"timeout"`
	DownloadAudio bool          `mapstructure:"download_audio"`
	AudioFormat   string        `mapstructure:"audio_format"`
	CertFile      string        `mapstructure:"cert_file"` // 证书包路径，仅传递给提取器
	BaseURL       string        `mapstructure:"base_url"`  // http 提取器的服务地址
	APIKey        string        `mapstructure:"api_key"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"` // 0 表示不缓存
}

type ConsolidateConfig struct {
	InputDir      string        `mapstructure:"input_dir"`
	OutputDir     string        `mapstructure:"output_dir"`
	OutputFile    string        `mapstructure:"output_file"`
	IgnoreColumns []string      `mapstructure:"ignore_columns"` // 合并时静默丢弃的列
	WatchDebounce time.Duration `mapstructure:"watch_debounce"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`      // json 或 text
	Output     string `mapstructure:"output"`      // stdout 或 file
	Dir        string `mapstructure:"dir"`         // 日志文件目录
	MaxSize    int    `mapstructure:"max_size"`    // 兆字节
	MaxBackups int    `mapstructure:"max_backups"` // 备份数量
	MaxAge     int    `mapstructure:"max_age"`     // 天数
	Compress   bool   `mapstructure:"compress"`    // 是否压缩旧文件
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	Schedule string `mapstructure:"schedule"` // cron 表达式，为空则不定时运行
}

func Load() *Config {
	setDefaults(viper.GetViper())

	// 读取配置
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("未找到配置文件，使用默认配置")
		} else {
			log.Fatalf("读取配置文件出错: %v", err)
		}
	}

	config, err := Decode(viper.GetViper())
	if err != nil {
		log.Fatalf("%v", err)
	}

	return config
}

// Decode 将给定 viper 实例中的配置解码并验证
func Decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解码配置: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &config, nil
}

// setDefaults 设置默认配置
func setDefaults(v *viper.Viper) {
	v.SetDefault("harvest.input_file", "video_urls.txt")
	v.SetDefault("harvest.output_dir", "audio_output")
	v.SetDefault("harvest.mode", "both")
	v.SetDefault("harvest.workers", 5)
	v.SetDefault("harvest.max_attempts", 3)
	v.SetDefault("harvest.initial_delay", 5*time.Second)

	v.SetDefault("extractor.kind", "ytdlp")
	v.SetDefault("extractor.binary", "yt-dlp")
	v.SetDefault("extractor.timeout", 2*time.Minute)
	v.SetDefault("extractor.download_audio", false)
	v.SetDefault("extractor.audio_format", "bestaudio[ext=m4a]/bestaudio")
	v.SetDefault("extractor.cache_ttl", 30*time.Minute)

	v.SetDefault("consolidate.input_dir", "audio_output")
	v.SetDefault("consolidate.output_dir", "metadata_output")
	v.SetDefault("consolidate.output_file", "combined_metadata.csv")
	v.SetDefault("consolidate.ignore_columns", []string{"uploader_id", "channel", "track"})
	v.SetDefault("consolidate.watch_debounce", 2*time.Second)

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.dir", "logs")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", true)

	v.SetDefault("server.port", "5000")
}

// validateConfig 验证配置的有效性
func validateConfig(config *Config) error {
	switch config.Harvest.Mode {
	case ModeSerial, ModeParallel, ModeBoth:
	default:
		return fmt.Errorf("未知的运行模式: %s", config.Harvest.Mode)
	}
	if config.Harvest.Workers <= 0 {
		return fmt.Errorf("工作者数量必须大于 0")
	}
	if config.Harvest.MaxAttempts <= 0 {
		return fmt.Errorf("最大尝试次数必须大于 0")
	}
	if config.Harvest.InitialDelay < 0 {
		return fmt.Errorf("重试延迟不能为负数")
	}
	if config.Harvest.OutputDir == "" {
		return fmt.Errorf("记录输出目录未设置")
	}
	switch config.Extractor.Kind {
	case ExtractorYtDlp:
	case ExtractorHTTP:
		if config.Extractor.BaseURL == "" {
			return fmt.Errorf("http 提取器需要设置 extractor.base_url")
		}
	default:
		return fmt.Errorf("未知的提取器类型: %s", config.Extractor.Kind)
	}
	if config.Consolidate.OutputFile == "" {
		return fmt.Errorf("合并输出文件名未设置")
	}
	return nil
}

// 运行模式常量
const (
	ModeSerial   = "serial"
	ModeParallel = "parallel"
	ModeBoth     = "both"
)

// 提取器类型常量
const (
	ExtractorYtDlp = "ytdlp"
	ExtractorHTTP  = "http"
)

// Defaults 返回只包含默认值的配置，默认值无法解码属于程序错误
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Sprintf("无法解码默认配置: %v", err))
	}
	return &config
}
