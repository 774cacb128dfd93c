package model

// Row 合并阶段的一行数据，键为列名
type Row map[string]any

// Clone 浅拷贝一行
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Present 列存在且不为空
func (r Row) Present(column string) bool {
	v, ok := r[column]
	return ok && v != nil
}

// Dataset 合并后的规范数据集，按 id 唯一
type Dataset struct {
	Columns []string
	Rows    []Row
}

// Len 行数
func (d *Dataset) Len() int {
	return len(d.Rows)
}
