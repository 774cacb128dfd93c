// Package urllist 读取每行一个标识的列表文件。
package urllist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Load 读取列表文件，丢弃空行并去掉每行首尾空白
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开列表文件失败: %w", err)
	}
	defer f.Close()

	ids, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("读取列表文件 %s 失败: %w", path, err)
	}
	return ids, nil
}

// Parse 按 UTF-8 解码；带 BOM 的 UTF-8 或 UTF-16 文件按 BOM 解码
func Parse(r io.Reader) ([]string, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	scanner := bufio.NewScanner(transform.NewReader(r, decoder))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	ids := []string{}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
