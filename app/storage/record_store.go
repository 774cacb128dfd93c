package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"meta-harvest/app/model"
	"meta-harvest/app/utils/pathhelper"
)

// RecordStore 把每条记录写成输出目录中的一个 JSON 文件。
// 文件名由标题生成；同名文件属于其它 id 时追加序号，属于同一 id 时覆盖。
type RecordStore struct {
	dir     string
	mu      sync.Mutex
	claimed map[string]string // 文件名 -> 记录 id
}

// NewRecordStore 创建存储并确保目录存在
func NewRecordStore(dir string) (*RecordStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建记录目录失败: %w", err)
	}
	return &RecordStore{
		dir:     dir,
		claimed: make(map[string]string),
	}, nil
}

// Dir 输出目录
func (s *RecordStore) Dir() string {
	return s.dir
}

// Save 写入记录并返回文件路径
func (s *RecordStore) Save(record *model.MetadataRecord) (string, error) {
	data, err := encodeRecord(record)
	if err != nil {
		return "", fmt.Errorf("序列化记录失败: %w", err)
	}

	path := filepath.Join(s.dir, s.claim(record)+".json")
	if err := writeFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// claim 为记录选定一个不会覆盖其它条目的文件名
func (s *RecordStore) claim(record *model.MetadataRecord) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := pathhelper.SanitizeFileName(record.Title)
	if base == "" {
		base = pathhelper.SanitizeFileName(record.ID)
	}
	if base == "" {
		base = "record"
	}

	for n := 1; ; n++ {
		name := pathhelper.NumberedName(base, n)
		if owner, ok := s.claimed[name]; ok {
			if owner == record.ID {
				return name
			}
			continue
		}

		owner, exists := s.ownerOnDisk(name)
		if !exists || owner == record.ID {
			s.claimed[name] = record.ID
			return name
		}
	}
}

// ownerOnDisk 读取已有文件中记录的 id。无法解析的文件视为属于其它条目
func (s *RecordStore) ownerOnDisk(name string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(s.dir, name+".json"))
	if err != nil {
		return "", !os.IsNotExist(err)
	}

	var single struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &single); err == nil {
		return single.ID, true
	}
	var many []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &many); err == nil && len(many) > 0 {
		return many[0].ID, true
	}
	return "", true
}

func encodeRecord(record *model.MetadataRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(record); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeFileAtomic 先写临时文件再重命名，失败时删除临时文件
func writeFileAtomic(path string, data []byte) (err error) {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("创建文件失败: %w", err)
	}
	defer func() {
		if err != nil {
			file.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err = file.Write(data); err != nil {
		return fmt.Errorf("写入文件内容失败: %w", err)
	}
	if err = file.Sync(); err != nil {
		return fmt.Errorf("刷新文件到磁盘失败: %w", err)
	}
	if err = file.Close(); err != nil {
		return fmt.Errorf("关闭文件失败: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("重命名文件失败: %w", err)
	}
	return nil
}
