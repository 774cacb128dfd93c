package schema

import (
	"fmt"

	"meta-harvest/app/model"
)

// Outcome 单元格校验的处理结果
type Outcome string

const (
	OutcomeCoerced Outcome = "coerced"
	OutcomeNulled  Outcome = "nulled"
)

// Diagnostic 一个单元格的校验诊断，只写入本次运行的日志
type Diagnostic struct {
	Field    string
	Row      int
	Expected FieldType
	Actual   any
	Outcome  Outcome
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("列 '%s' 第 %d 行: 期望 %s, 实际 %T(%v), 处理结果 %s",
		d.Field, d.Row, d.Expected, d.Actual, d.Actual, d.Outcome)
}

// Report 一次校验的汇总
type Report struct {
	Rows           int
	Diagnostics    []Diagnostic
	MissingColumns []string // 所有行都没有的已声明列
}

// Count 统计某种处理结果的诊断数量
func (r *Report) Count(outcome Outcome) int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Outcome == outcome {
			n++
		}
	}
	return n
}

// Valid 没有缺失的已声明列，并且转换后没有残留的类型不匹配
func (r *Report) Valid() bool {
	return len(r.MissingColumns) == 0 && r.Count(OutcomeNulled) == 0
}

// CheckColumns 检查行中是否含有未知的列
func (s *Schema) CheckColumns(row model.Row) error {
	for _, key := range sortedKeys(row) {
		if _, ok := s.Lookup(key); !ok {
			return &UnexpectedColumnError{Column: key}
		}
	}
	return nil
}

// ValidateRow 就地校验并转换一行。只有未知列会返回错误，类型问题只产生诊断
func (s *Schema) ValidateRow(row model.Row, index int) ([]Diagnostic, error) {
	if err := s.CheckColumns(row); err != nil {
		return nil, err
	}

	var diags []Diagnostic
	for _, name := range s.Columns() {
		v, ok := row[name]
		if !ok {
			continue
		}
		field, _ := s.Lookup(name)
		if field.Type.Matches(v) {
			continue
		}

		d := Diagnostic{Field: name, Row: index, Expected: field.Type, Actual: v}
		if converted, ok := field.Type.Coerce(v); ok {
			row[name] = converted
			d.Outcome = OutcomeCoerced
		} else {
			row[name] = nil
			d.Outcome = OutcomeNulled
		}
		diags = append(diags, d)
	}
	return diags, nil
}

// Validate 校验所有行。未知列会在修改任何数据之前中止校验
func (s *Schema) Validate(rows []model.Row) (*Report, error) {
	for _, row := range rows {
		if err := s.CheckColumns(row); err != nil {
			return nil, err
		}
	}

	report := &Report{Rows: len(rows)}
	seen := make(map[string]bool, len(s.declared))
	for i, row := range rows {
		diags, err := s.ValidateRow(row, i)
		if err != nil {
			return nil, err
		}
		report.Diagnostics = append(report.Diagnostics, diags...)
		for key := range row {
			seen[key] = true
		}
	}

	for _, f := range s.Declared() {
		if !seen[f.Name] {
			report.MissingColumns = append(report.MissingColumns, f.Name)
		}
	}
	return report, nil
}
