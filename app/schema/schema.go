// Package schema 描述规范数据集的列、类型以及转换规则。
package schema

import (
	"fmt"
	"sort"

	"meta-harvest/app/model"
)

// FieldType 字段的语义类型
type FieldType int

const (
	TypeText FieldType = iota
	TypeInteger
	TypeTextList
	TypeTimestamp
)

func (t FieldType) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeInteger:
		return "integer"
	case TypeTextList:
		return "text_list"
	case TypeTimestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Field 一个已声明的列
type Field struct {
	Name string
	Type FieldType
}

// 列名常量
const (
	ColumnID              = "id"
	ColumnTitle           = "title"
	ColumnUploader        = "uploader"
	ColumnArtist          = "artist"
	ColumnAlbum           = "album"
	ColumnDescription     = "description"
	ColumnTags            = "tags"
	ColumnDurationSeconds = "duration_seconds"
	ColumnViewCount       = "view_count"
	ColumnLikeCount       = "like_count"
	ColumnTagCount        = "tag_count"
	ColumnUploadDate      = "upload_date"
	ColumnYearUploaded    = "year_uploaded"
	ColumnWebpageURL      = "webpage_url"
	ColumnLegibleTitle    = "legible_title"
)

// RecordOnlyColumns 单条记录文件会写入、但不进入数据集的列
func RecordOnlyColumns() []string {
	return []string{"uploader_id", "channel", "track"}
}

// Schema 固定的列定义。declared 来自输入数据，derived 在合并时重新计算
type Schema struct {
	declared []Field
	derived  []Field
	index    map[string]Field
}

// New 创建 schema，列名不能重复
func New(declared, derived []Field) (*Schema, error) {
	s := &Schema{
		declared: declared,
		derived:  derived,
		index:    make(map[string]Field, len(declared)+len(derived)),
	}
	for _, f := range append(append([]Field{}, declared...), derived...) {
		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("重复的列定义: %s", f.Name)
		}
		s.index[f.Name] = f
	}
	return s, nil
}

// Default 媒体元数据的规范 schema
func Default() *Schema {
	s, err := New([]Field{
		{ColumnID, TypeText},
		{ColumnTitle, TypeText},
		{ColumnUploader, TypeText},
		{ColumnArtist, TypeText},
		{ColumnAlbum, TypeText},
		{ColumnDescription, TypeText},
		{ColumnTags, TypeTextList},
		{ColumnDurationSeconds, TypeInteger},
		{ColumnViewCount, TypeInteger},
		{ColumnLikeCount, TypeInteger},
		{ColumnTagCount, TypeInteger},
		{ColumnUploadDate, TypeTimestamp},
		{ColumnYearUploaded, TypeInteger},
		{ColumnWebpageURL, TypeText},
	}, []Field{
		{ColumnLegibleTitle, TypeText},
	})
	if err != nil {
		panic(err)
	}
	return s
}

// Declared 已声明的列，按定义顺序
func (s *Schema) Declared() []Field {
	return s.declared
}

// Columns 输出数据集的列：已声明列加派生列
func (s *Schema) Columns() []string {
	cols := make([]string, 0, len(s.declared)+len(s.derived))
	for _, f := range s.declared {
		cols = append(cols, f.Name)
	}
	for _, f := range s.derived {
		cols = append(cols, f.Name)
	}
	return cols
}

// Lookup 查找列定义
func (s *Schema) Lookup(name string) (Field, bool) {
	f, ok := s.index[name]
	return f, ok
}

// IsDerived 是否为合并时计算的列
func (s *Schema) IsDerived(name string) bool {
	for _, f := range s.derived {
		if f.Name == name {
			return true
		}
	}
	return false
}

// UnexpectedColumnError 输入中出现了既未声明也未忽略的列，这是合并时唯一的致命错误
type UnexpectedColumnError struct {
	Column string
}

func (e *UnexpectedColumnError) Error() string {
	return fmt.Sprintf("意外的列: %s", e.Column)
}

// Project 只保留已声明的列。被忽略的列和派生列静默丢弃，其它列返回 UnexpectedColumnError
func (s *Schema) Project(row model.Row, ignored map[string]struct{}) (model.Row, error) {
	out := make(model.Row, len(s.declared))
	for _, key := range sortedKeys(row) {
		if _, skip := ignored[key]; skip || s.IsDerived(key) {
			continue
		}
		if _, ok := s.index[key]; !ok {
			return nil, &UnexpectedColumnError{Column: key}
		}
		out[key] = row[key]
	}
	return out, nil
}

func sortedKeys(row model.Row) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
