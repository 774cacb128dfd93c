package extractor

import (
	"context"
	"fmt"
	"net/http"

	"meta-harvest/app/config"

	"resty.dev/v3"
)

// HTTP 通过远程元数据服务获取条目信息，服务返回与 yt-dlp 相同结构的 JSON
type HTTP struct {
	client *resty.Client
}

// NewHTTP 创建 HTTP 提取器
func NewHTTP(cfg config.ExtractorConfig) *HTTP {
	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	if cfg.APIKey != "" {
		client.SetQueryParam("api_key", cfg.APIKey)
	}
	if cfg.CertFile != "" {
		client.SetRootCertificates(cfg.CertFile)
	}

	return &HTTP{client: client}
}

// Extract 请求 /extract?url=<id>
func (h *HTTP) Extract(ctx context.Context, id string) (map[string]any, error) {
	var info map[string]any

	resp, err := h.client.R().
		SetContext(ctx).
		SetQueryParam("url", id).
		SetResult(&info).
		Get("/extract")
	if err != nil {
		return nil, fmt.Errorf("请求元数据失败: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("获取元数据失败，状态码: %d, 响应: %s", resp.StatusCode(), resp.String())
	}
	if info == nil {
		return nil, fmt.Errorf("元数据响应为空: %s", id)
	}

	return info, nil
}

// Close 释放客户端资源
func (h *HTTP) Close() error {
	return h.client.Close()
}
