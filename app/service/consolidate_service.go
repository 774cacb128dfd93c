package service

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"meta-harvest/app/config"
	"meta-harvest/app/logger"
	"meta-harvest/app/model"
	"meta-harvest/app/schema"
	"meta-harvest/app/storage"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

// Stage 合并运行所处的阶段
type Stage string

const (
	StageLoading    Stage = "loading"
	StageProjecting Stage = "projecting"
	StageCleaning   Stage = "cleaning"
	StageValidating Stage = "validating"
	StageExporting  Stage = "exporting"
	StageDone       Stage = "done"
	StageAborted    Stage = "aborted"
)

// legibleTitleWords 可读标题保留的最大词数
const legibleTitleWords = 5

// ConsolidationReport 一次合并运行的结果
type ConsolidationReport struct {
	RunID          string        `json:"run_id"`
	Stage          Stage         `json:"stage"`
	SkippedFiles   []string      `json:"skipped_files,omitempty"` // 无法解析而跳过的文件
	LoadedRows     int           `json:"loaded_rows"`
	DroppedRows    int           `json:"dropped_rows"`
	DuplicateRows  int           `json:"duplicate_rows"`
	Rows           int           `json:"rows"`
	Coerced        int           `json:"coerced"`
	Nulled         int           `json:"nulled"`
	MissingColumns []string      `json:"missing_columns,omitempty"`
	Valid          bool          `json:"valid"`
	OutputPath     string        `json:"output_path,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	Elapsed        time.Duration `json:"elapsed"`
	Error          string        `json:"error,omitempty"`

	Validation *schema.Report `json:"-"`
	Dataset    *model.Dataset `json:"-"`
}

// ConsolidateService 把目录中的单条记录合并为一个规范数据集
type ConsolidateService struct {
	logger  *logger.Logger
	config  config.ConsolidateConfig
	schema  *schema.Schema
	ignored map[string]struct{}
}

// NewConsolidateService 创建合并服务。记录文件自带的附加列总是被忽略，配置中的 ignore_columns 在此基础上追加
func NewConsolidateService(cfg config.ConsolidateConfig, log *logger.Logger) *ConsolidateService {
	builtin := schema.RecordOnlyColumns()
	ignored := make(map[string]struct{}, len(builtin)+len(cfg.IgnoreColumns))
	for _, col := range append(builtin, cfg.IgnoreColumns...) {
		ignored[col] = struct{}{}
	}
	return &ConsolidateService{
		logger:  log,
		config:  cfg,
		schema:  schema.Default(),
		ignored: ignored,
	}
}

// OutputPath 数据集输出路径
func (s *ConsolidateService) OutputPath() string {
	return filepath.Join(s.config.OutputDir, s.config.OutputFile)
}

// Run 执行一次合并：加载、投影、清理、校验、导出。
// 出现未知列时在投影阶段中止，返回的错误为 *schema.UnexpectedColumnError
func (s *ConsolidateService) Run() (*ConsolidationReport, error) {
	report := &ConsolidationReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	defer func() {
		report.Elapsed = time.Since(report.StartedAt)
	}()

	s.enter(report, StageLoading)
	rows, skipped, err := storage.LoadRecords(s.config.InputDir)
	if err != nil {
		return s.abort(report, err)
	}
	for _, f := range skipped {
		s.logger.Warnf("跳过无法解析的记录文件 %s: %v", f.Path, f.Err)
		report.SkippedFiles = append(report.SkippedFiles, f.Path)
	}
	report.LoadedRows = len(rows)
	s.logger.Infof("已加载 %d 行记录", len(rows))

	s.enter(report, StageProjecting)
	projected := make([]model.Row, 0, len(rows))
	for _, row := range rows {
		p, err := s.schema.Project(row, s.ignored)
		if err != nil {
			return s.abort(report, err)
		}
		projected = append(projected, p)
	}

	s.enter(report, StageCleaning)
	cleaned, dropped, duplicates := Clean(projected)
	report.DroppedRows = dropped
	report.DuplicateRows = duplicates
	report.Rows = len(cleaned)
	if dropped > 0 {
		s.logger.Warnf("丢弃 %d 行缺少 id、标题或有效上传日期的记录", dropped)
	}
	if duplicates > 0 {
		s.logger.Infof("去除 %d 行重复记录", duplicates)
	}

	s.enter(report, StageValidating)
	validation, err := s.schema.Validate(cleaned)
	if err != nil {
		return s.abort(report, err)
	}
	report.Validation = validation
	report.Coerced = validation.Count(schema.OutcomeCoerced)
	report.Nulled = validation.Count(schema.OutcomeNulled)
	report.MissingColumns = validation.MissingColumns
	report.Valid = validation.Valid()
	s.logDiagnostics(validation)

	s.enter(report, StageExporting)
	ds := &model.Dataset{Columns: s.schema.Columns(), Rows: cleaned}
	path := s.OutputPath()
	if err := storage.WriteDataset(path, ds); err != nil {
		return s.abort(report, fmt.Errorf("导出数据集失败: %w", err))
	}
	report.Dataset = ds
	report.OutputPath = path

	s.enter(report, StageDone)
	if report.Valid {
		s.logger.Infof("✅ 数据集已导出到 %s，共 %d 行，校验通过", path, ds.Len())
	} else {
		s.logger.Warnf("⚠️ 数据集已导出到 %s，共 %d 行，校验未通过", path, ds.Len())
	}
	return report, nil
}

func (s *ConsolidateService) enter(report *ConsolidationReport, stage Stage) {
	report.Stage = stage
	s.logger.Debugf("合并运行 %s 进入阶段 %s", report.RunID, stage)
}

func (s *ConsolidateService) abort(report *ConsolidationReport, err error) (*ConsolidationReport, error) {
	var unexpected *schema.UnexpectedColumnError
	if errors.As(err, &unexpected) {
		report.Stage = StageAborted
		s.logger.Errorf("🛑 合并中止: %v", err)
	} else {
		s.logger.Errorf("合并在阶段 %s 失败: %v", report.Stage, err)
	}
	report.Error = err.Error()
	return report, err
}

func (s *ConsolidateService) logDiagnostics(report *schema.Report) {
	for _, d := range report.Diagnostics {
		if d.Outcome == schema.OutcomeNulled {
			s.logger.Warnf("类型不匹配: %s", d)
		} else {
			s.logger.Debugf("类型转换: %s", d)
		}
	}
	for _, col := range report.MissingColumns {
		s.logger.Warnf("缺少列: %s", col)
	}
	s.logger.Infof("校验完成: %d 行, 转换 %d 个, 置空 %d 个, 缺少 %d 列",
		report.Rows, report.Count(schema.OutcomeCoerced), report.Count(schema.OutcomeNulled), len(report.MissingColumns))
}

// Clean 解析上传日期并丢弃无效行，填充缺省的数值列，计算可读标题，按 id 去重（保留第一条）。
// 返回保留的行、丢弃的无效行数和重复行数
func Clean(rows []model.Row) ([]model.Row, int, int) {
	kept := make([]model.Row, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	dropped, duplicates := 0, 0

	for _, row := range rows {
		row = row.Clone()

		uploaded, ok := uploadDate(row)
		if !ok || !requiredText(row, schema.ColumnID) || !requiredText(row, schema.ColumnTitle) {
			dropped++
			continue
		}
		row[schema.ColumnUploadDate] = uploaded

		for _, col := range []string{schema.ColumnViewCount, schema.ColumnLikeCount, schema.ColumnDurationSeconds} {
			if !row.Present(col) {
				row[col] = int64(0)
			}
		}
		if !row.Present(schema.ColumnTagCount) {
			row[schema.ColumnTagCount] = tagCount(row[schema.ColumnTags])
		}
		if !row.Present(schema.ColumnYearUploaded) {
			row[schema.ColumnYearUploaded] = int64(uploaded.Year())
		}

		title, _ := schema.TypeText.Coerce(row[schema.ColumnTitle])
		row[schema.ColumnLegibleTitle] = LegibleTitle(title.(string))

		id, _ := schema.TypeText.Coerce(row[schema.ColumnID])
		if _, dup := seen[id.(string)]; dup {
			duplicates++
			continue
		}
		seen[id.(string)] = struct{}{}
		kept = append(kept, row)
	}
	return kept, dropped, duplicates
}

// LegibleTitle 取第一个 '-'、'|' 或 ':' 之前的部分并去掉首尾空白，超过 5 个词时只保留前 5 个
func LegibleTitle(title string) string {
	if i := strings.IndexAny(title, "-|:"); i >= 0 {
		title = title[:i]
	}
	title = strings.TrimSpace(title)

	words := strings.Fields(title)
	if len(words) > legibleTitleWords {
		return strings.Join(words[:legibleTitleWords], " ")
	}
	return title
}

func uploadDate(row model.Row) (time.Time, bool) {
	v, ok := schema.TypeTimestamp.Coerce(row[schema.ColumnUploadDate])
	if !ok {
		return time.Time{}, false
	}
	return v.(time.Time), true
}

// requiredText 列存在、可以转为文本且不为空白
func requiredText(row model.Row, column string) bool {
	if !row.Present(column) {
		return false
	}
	v, ok := schema.TypeText.Coerce(row[column])
	return ok && strings.TrimSpace(v.(string)) != ""
}

// tagCount 按校验后 tags 的取值计数，无法转换为列表时为 0
func tagCount(tags any) int64 {
	v, ok := schema.TypeTextList.Coerce(tags)
	if !ok {
		return 0
	}
	return int64(len(v.([]string)))
}

// Print 输出可读的合并结果
func (r *ConsolidationReport) Print(w io.Writer) {
	title := color.New(color.FgCyan, color.Bold)
	title.Fprintf(w, "=== 合并结果 (%s) ===\n", r.RunID)
	fmt.Fprintf(w, "阶段: %s\n", r.Stage)
	if r.Error != "" {
		color.New(color.FgRed).Fprintf(w, "错误: %s\n", r.Error)
		return
	}
	fmt.Fprintf(w, "读取行数: %d, 丢弃: %d, 重复: %d, 输出: %d\n", r.LoadedRows, r.DroppedRows, r.DuplicateRows, r.Rows)
	fmt.Fprintf(w, "类型转换: %d, 置空: %d\n", r.Coerced, r.Nulled)
	if len(r.MissingColumns) > 0 {
		fmt.Fprintf(w, "缺少列: %s\n", strings.Join(r.MissingColumns, ", "))
	}
	if r.Valid {
		color.New(color.FgGreen).Fprintf(w, "校验通过，已导出到 %s\n", r.OutputPath)
	} else {
		color.New(color.FgYellow).Fprintf(w, "校验未通过，已导出到 %s\n", r.OutputPath)
	}
}
