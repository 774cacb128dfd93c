// Package extractor 获取远程条目的原始元数据。
package extractor

import (
	"context"
	"fmt"
	"io"

	"meta-harvest/app/config"
	"meta-harvest/app/logger"
)

// Extractor 根据条目标识返回原始元数据
type Extractor interface {
	Extract(ctx context.Context, id string) (map[string]any, error)
}

// Func 函数形式的 Extractor
type Func func(ctx context.Context, id string) (map[string]any, error)

func (f Func) Extract(ctx context.Context, id string) (map[string]any, error) {
	return f(ctx, id)
}

// New 根据配置创建提取器，CacheTTL 大于 0 时包装一层缓存
func New(cfg config.ExtractorConfig, outputDir string, log *logger.Logger) (Extractor, error) {
	var ext Extractor
	switch cfg.Kind {
	case config.ExtractorYtDlp:
		ext = NewYtDlp(cfg, outputDir)
	case config.ExtractorHTTP:
		ext = NewHTTP(cfg)
	default:
		return nil, fmt.Errorf("未知的提取器类型: %s", cfg.Kind)
	}

	log.Infof("使用提取器: %s", cfg.Kind)
	if cfg.CacheTTL > 0 {
		return NewCached(ext, cfg.CacheTTL), nil
	}
	return ext, nil
}

// Close 释放提取器持有的资源，未实现 io.Closer 的提取器直接返回
func Close(ext Extractor) error {
	if c, ok := ext.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
