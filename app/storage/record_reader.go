package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"meta-harvest/app/model"
	"meta-harvest/app/utils/pathhelper"
)

// SkippedFile 无法解析而被跳过的记录文件
type SkippedFile struct {
	Path string
	Err  error
}

// LoadRecords 读取目录下所有 JSON 记录文件，文件可以是单个对象或对象数组。
// 文件按名称排序读取；解析失败的文件被跳过并返回
func LoadRecords(dir string) ([]model.Row, []SkippedFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("读取记录目录失败: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !pathhelper.HasExtension(entry.Name(), "json") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)

	var rows []model.Row
	var skipped []SkippedFile
	for _, file := range files {
		fileRows, err := ReadRecordFile(file)
		if err != nil {
			skipped = append(skipped, SkippedFile{Path: file, Err: err})
			continue
		}
		rows = append(rows, fileRows...)
	}
	return rows, skipped, nil
}

// ReadRecordFile 解析一个记录文件
func ReadRecordFile(path string) ([]model.Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("解析 JSON 失败: %w", err)
	}

	switch v := doc.(type) {
	case map[string]any:
		return []model.Row{normalizeObject(v)}, nil
	case []any:
		rows := make([]model.Row, 0, len(v))
		for i, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("第 %d 个元素不是对象", i)
			}
			rows = append(rows, normalizeObject(obj))
		}
		return rows, nil
	default:
		return nil, fmt.Errorf("记录文件必须是对象或对象数组")
	}
}

func normalizeObject(obj map[string]any) model.Row {
	row := make(model.Row, len(obj))
	for k, v := range obj {
		row[k] = normalize(v)
	}
	return row
}

// normalize 整数转为 int64，其它数字转为 float64，纯字符串数组转为 []string
func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case []any:
		allStrings := true
		for i := range x {
			x[i] = normalize(x[i])
			if _, ok := x[i].(string); !ok {
				allStrings = false
			}
		}
		if allStrings {
			out := make([]string, len(x))
			for i := range x {
				out[i] = x[i].(string)
			}
			return out
		}
		return x
	case map[string]any:
		return map[string]any(normalizeObject(x))
	}
	return v
}
