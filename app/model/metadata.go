package model

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
)

var (
	ErrMissingTitle = errors.New("提取结果缺少标题")
	ErrMissingID    = errors.New("提取结果缺少 ID")
)

// MetadataRecord 单个条目的元数据记录，落盘后不再修改
type MetadataRecord struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Uploader        *string  `json:"uploader"`
	UploaderID      *string  `json:"uploader_id"`
	Channel         *string  `json:"channel"`
	Track           *string  `json:"track"`
	Artist          *string  `json:"artist"`
	Album           *string  `json:"album"`
	Description     *string  `json:"description"`
	Tags            []string `json:"tags"`
	DurationSeconds *int64   `json:"duration_seconds"`
	UploadDate      *string  `json:"upload_date"` // YYYYMMDD
	ViewCount       *int64   `json:"view_count"`
	LikeCount       *int64   `json:"like_count"`
	WebpageURL      *string  `json:"webpage_url"`

	// 派生字段
	YearUploaded *int64 `json:"year_uploaded"`
	TagCount     int64  `json:"tag_count"`
}

// BuildRecord 从提取器返回的原始信息中筛选字段，并计算派生字段
func BuildRecord(info map[string]any) (*MetadataRecord, error) {
	title := stringField(info, "title")
	if title == nil || *title == "" {
		return nil, ErrMissingTitle
	}
	id := stringField(info, "id")
	if id == nil || *id == "" {
		return nil, ErrMissingID
	}

	tags := stringsField(info, "tags")
	record := &MetadataRecord{
		ID:              *id,
		Title:           *title,
		Uploader:        stringField(info, "uploader"),
		UploaderID:      stringField(info, "uploader_id"),
		Channel:         stringField(info, "channel"),
		Track:           stringField(info, "track"),
		Artist:          stringField(info, "artist"),
		Album:           stringField(info, "album"),
		Description:     stringField(info, "description"),
		Tags:            tags,
		DurationSeconds: intField(info, "duration"),
		UploadDate:      stringField(info, "upload_date"),
		ViewCount:       intField(info, "view_count"),
		LikeCount:       intField(info, "like_count"),
		WebpageURL:      stringField(info, "webpage_url"),
		TagCount:        int64(len(tags)),
	}
	record.YearUploaded = yearOf(record.UploadDate)

	return record, nil
}

// yearOf 取 YYYYMMDD 的前四位作为年份
func yearOf(uploadDate *string) *int64 {
	if uploadDate == nil || len(*uploadDate) < 4 {
		return nil
	}
	year, err := strconv.ParseInt((*uploadDate)[:4], 10, 64)
	if err != nil {
		return nil
	}
	return &year
}

func stringField(info map[string]any, key string) *string {
	s, ok := info[key].(string)
	if !ok {
		return nil
	}
	return &s
}

// stringsField 读取字符串数组，缺失时返回空数组而不是 nil
func stringsField(info map[string]any, key string) []string {
	out := []string{}
	switch v := info[key].(type) {
	case []string:
		out = append(out, v...)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

func intField(info map[string]any, key string) *int64 {
	var n int64
	switch v := info[key].(type) {
	case int:
		n = int64(v)
	case int64:
		n = v
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		n = int64(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			n = i
		} else if f, err := v.Float64(); err == nil {
			n = int64(f)
		} else {
			return nil
		}
	default:
		return nil
	}
	return &n
}
