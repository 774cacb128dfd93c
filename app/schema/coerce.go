package schema

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout 落盘记录中 upload_date 的格式
const DateLayout = "20060102"

// Matches 值的运行时形态是否已经符合类型。nil 对所有类型都合法
func (t FieldType) Matches(v any) bool {
	if v == nil {
		return true
	}
	switch t {
	case TypeText:
		_, ok := v.(string)
		return ok
	case TypeInteger:
		_, ok := v.(int64)
		return ok
	case TypeTextList:
		_, ok := v.([]string)
		return ok
	case TypeTimestamp:
		_, ok := v.(time.Time)
		return ok
	}
	return false
}

// Coerce 尝试把值转换为该类型。对任意输入都不会 panic
func (t FieldType) Coerce(v any) (any, bool) {
	switch t {
	case TypeText:
		return toText(v)
	case TypeInteger:
		return toInteger(v)
	case TypeTextList:
		return toTextList(v)
	case TypeTimestamp:
		return toTimestamp(v)
	}
	return nil, false
}

func toText(v any) (any, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, false
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	case json.Number:
		return x.String(), true
	}
	return nil, false
}

func toInteger(v any) (any, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return floatToInt(x)
	case json.Number:
		return toInteger(x.String())
	case string:
		s := strings.TrimSpace(x)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return floatToInt(f)
		}
	}
	return nil, false
}

// floatToInt 截断小数部分，超出 int64 范围视为失败
func floatToInt(f float64) (any, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	t := math.Trunc(f)
	if t < math.MinInt64 || t >= math.MaxInt64 {
		return nil, false
	}
	return int64(t), true
}

func toTextList(v any) (any, bool) {
	switch x := v.(type) {
	case []string:
		return x, true
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := toText(item)
			if !ok {
				return nil, false
			}
			out = append(out, s.(string))
		}
		return out, true
	case string:
		out := []string{}
		for _, part := range strings.Split(x, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, true
	}
	return nil, false
}

func toTimestamp(v any) (any, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		return dateValue(x)
	case int64:
		return dateValue(strconv.FormatInt(x, 10))
	case int:
		return dateValue(strconv.Itoa(x))
	case float64:
		if i, ok := floatToInt(x); ok && float64(i.(int64)) == x {
			return dateValue(strconv.FormatInt(i.(int64), 10))
		}
	case json.Number:
		return dateValue(x.String())
	}
	return nil, false
}

func dateValue(s string) (any, bool) {
	t, ok := ParseDate(s)
	if !ok {
		return nil, false
	}
	return t, true
}

// ParseDate 严格按 YYYYMMDD 解析日期
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) != len(DateLayout) {
		return time.Time{}, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return time.Time{}, false
		}
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
