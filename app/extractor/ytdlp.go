package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"meta-harvest/app/config"
)

// YtDlp 调用本地 yt-dlp 获取条目信息
type YtDlp struct {
	binaryPath    string
	timeout       time.Duration
	downloadAudio bool
	audioFormat   string
	outputDir     string
	certFile      string
}

// NewYtDlp 创建 yt-dlp 提取器
func NewYtDlp(cfg config.ExtractorConfig, outputDir string) *YtDlp {
	binary := cfg.Binary
	if binary == "" {
		binary = "yt-dlp" // 假设 yt-dlp 在 PATH 中
	}
	return &YtDlp{
		binaryPath:    binary,
		timeout:       cfg.Timeout,
		downloadAudio: cfg.DownloadAudio,
		audioFormat:   cfg.AudioFormat,
		outputDir:     outputDir,
		certFile:      cfg.CertFile,
	}
}

// Extract 运行 yt-dlp 并解析输出的 JSON
func (d *YtDlp) Extract(ctx context.Context, id string) (map[string]any, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, d.binaryPath, d.args(id)...)
	if d.certFile != "" {
		cmd.Env = append(os.Environ(), "SSL_CERT_FILE="+d.certFile)
	}

	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("yt-dlp 执行失败: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	return parseInfo(out.Bytes())
}

// args 组装命令行参数，只下载元数据时跳过媒体下载
func (d *YtDlp) args(id string) []string {
	args := []string{"--dump-single-json", "--no-playlist", "--no-warnings"}
	if d.downloadAudio {
		args = append(args,
			"--no-simulate",
			"-f", d.audioFormat,
			"-o", filepath.Join(d.outputDir, "%(title)s.%(ext)s"),
		)
	} else {
		args = append(args, "--skip-download")
	}
	return append(args, id)
}

func parseInfo(data []byte) (map[string]any, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("yt-dlp 没有返回任何数据")
	}
	var info map[string]any
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("解析 yt-dlp 输出失败: %w", err)
	}
	return info, nil
}
