package storage

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"meta-harvest/app/model"
)

// ExportDateLayout CSV 中日期列的格式
const ExportDateLayout = "2006-01-02"

// WriteDataset 把数据集按列顺序写成 CSV，表头为列名，不写行号
func WriteDataset(path string, ds *model.Dataset) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(ds.Columns); err != nil {
		return fmt.Errorf("写入表头失败: %w", err)
	}

	record := make([]string, len(ds.Columns))
	for i, row := range ds.Rows {
		for j, col := range ds.Columns {
			cell, err := FormatCell(row[col])
			if err != nil {
				return fmt.Errorf("第 %d 行列 '%s' 无法导出: %w", i, col, err)
			}
			record[j] = cell
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("写入第 %d 行失败: %w", i, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("写入 CSV 失败: %w", err)
	}

	return writeFileAtomic(path, buf.Bytes())
}

// FormatCell 单元格的文本形式。空值为空字符串，列表为 JSON 数组
func FormatCell(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case int:
		return strconv.Itoa(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	case time.Time:
		return x.Format(ExportDateLayout), nil
	case []string:
		data, err := json.Marshal(x)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
