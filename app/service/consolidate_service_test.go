package service

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"meta-harvest/app/config"
	"meta-harvest/app/logger"
	"meta-harvest/app/model"
	"meta-harvest/app/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completeRecord = `{
  "id": "%s",
  "title": "%s",
  "uploader": "Someone",
  "uploader_id": "@someone",
  "channel": "Someone",
  "track": null,
  "artist": null,
  "album": null,
  "description": "desc",
  "tags": ["a", "b", "c"],
  "duration_seconds": 200,
  "upload_date": "20230115",
  "view_count": 10,
  "like_count": 2,
  "webpage_url": "https://example.com",
  "year_uploaded": 2023,
  "tag_count": 3
}`

func newTestConsolidator(t *testing.T) (*ConsolidateService, string) {
	t.Helper()
	in := t.TempDir()
	cfg := config.ConsolidateConfig{
		InputDir:      in,
		OutputDir:     filepath.Join(t.TempDir(), "metadata_output"),
		OutputFile:    "combined_metadata.csv",
		IgnoreColumns: []string{"uploader_id", "channel", "track"},
	}
	return NewConsolidateService(cfg, logger.NewNop()), in
}

func writeRecord(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func readCSV(t *testing.T, path string) []map[string]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, records)

	header := records[0]
	var rows []map[string]string
	for _, rec := range records[1:] {
		row := make(map[string]string, len(header))
		for i, col := range header {
			row[col] = rec[i]
		}
		rows = append(rows, row)
	}
	return rows
}

func TestConsolidateValidDataset(t *testing.T) {
	svc, in := newTestConsolidator(t)
	writeRecord(t, in, "one.json", fmt.Sprintf(completeRecord, "id1", "Artist Name - Song Title (Official Video)"))
	writeRecord(t, in, "two.json", "["+fmt.Sprintf(completeRecord, "id2", "Short Title")+"]")

	report, err := svc.Run()
	require.NoError(t, err)

	assert.Equal(t, StageDone, report.Stage)
	assert.True(t, report.Valid)
	assert.Equal(t, 2, report.Rows)
	assert.Equal(t, 0, report.Nulled)
	assert.Empty(t, report.MissingColumns)
	assert.Equal(t, svc.OutputPath(), report.OutputPath)

	rows := readCSV(t, report.OutputPath)
	require.Len(t, rows, 2)
	assert.Equal(t, "id1", rows[0]["id"])
	assert.Equal(t, "Artist Name", rows[0]["legible_title"])
	assert.Equal(t, "Short Title", rows[1]["legible_title"])
	assert.Equal(t, "2023-01-15", rows[0]["upload_date"])
	assert.Equal(t, `["a","b","c"]`, rows[0]["tags"])
	assert.NotContains(t, rows[0], "uploader_id")
	assert.Equal(t, "", rows[0]["artist"])
}

func TestConsolidateColumnOrder(t *testing.T) {
	svc, in := newTestConsolidator(t)
	writeRecord(t, in, "one.json", fmt.Sprintf(completeRecord, "id1", "T"))

	report, err := svc.Run()
	require.NoError(t, err)

	f, err := os.Open(report.OutputPath)
	require.NoError(t, err)
	defer f.Close()
	header, err := csv.NewReader(f).Read()
	require.NoError(t, err)
	assert.Equal(t, schema.Default().Columns(), header)
}

func TestConsolidateDedupKeepsFirst(t *testing.T) {
	svc, in := newTestConsolidator(t)
	writeRecord(t, in, "a.json", fmt.Sprintf(completeRecord, "abc", "First Version"))
	writeRecord(t, in, "b.json", fmt.Sprintf(completeRecord, "abc", "Second Version"))

	report, err := svc.Run()
	require.NoError(t, err)
	assert.Equal(t, 1, report.DuplicateRows)

	rows := readCSV(t, report.OutputPath)
	require.Len(t, rows, 1)
	assert.Equal(t, "abc", rows[0]["id"])
	assert.Equal(t, "First Version", rows[0]["title"])
}

func TestConsolidateUnexpectedColumnAborts(t *testing.T) {
	svc, in := newTestConsolidator(t)
	writeRecord(t, in, "a.json", fmt.Sprintf(completeRecord, "a", "A"))
	writeRecord(t, in, "b.json", `{"id":"b","title":"B","upload_date":"20230101","format_note":"hd"}`)

	report, err := svc.Run()
	require.Error(t, err)

	var unexpected *schema.UnexpectedColumnError
	require.True(t, errors.As(err, &unexpected))
	assert.Equal(t, "format_note", unexpected.Column)
	assert.Equal(t, StageAborted, report.Stage)
	assert.NoFileExists(t, svc.OutputPath())
}

func TestConsolidateSkipsBrokenFiles(t *testing.T) {
	svc, in := newTestConsolidator(t)
	writeRecord(t, in, "a.json", fmt.Sprintf(completeRecord, "a", "A"))
	writeRecord(t, in, "broken.json", `{"id":`)

	report, err := svc.Run()
	require.NoError(t, err)
	assert.Equal(t, 1, report.Rows)
	assert.Len(t, report.SkippedFiles, 1)
}

func TestConsolidateMissingInputDir(t *testing.T) {
	svc := NewConsolidateService(config.ConsolidateConfig{
		InputDir:   filepath.Join(t.TempDir(), "missing"),
		OutputDir:  t.TempDir(),
		OutputFile: "out.csv",
	}, logger.NewNop())

	report, err := svc.Run()
	require.Error(t, err)
	assert.Equal(t, StageLoading, report.Stage)
}

func TestConsolidateReportsTypeMismatch(t *testing.T) {
	svc, in := newTestConsolidator(t)
	writeRecord(t, in, "a.json", `{
		"id": 12345, "title": "Numeric id", "uploader": null, "artist": null, "album": null,
		"description": null, "tags": "x, y", "duration_seconds": "180", "view_count": "many",
		"like_count": 1, "tag_count": 2, "upload_date": 20230115, "year_uploaded": 2023, "webpage_url": null
	}`)

	report, err := svc.Run()
	require.NoError(t, err)
	assert.Equal(t, 1, report.Nulled)
	assert.False(t, report.Valid)

	rows := readCSV(t, report.OutputPath)
	require.Len(t, rows, 1)
	assert.Equal(t, "12345", rows[0]["id"])
	assert.Equal(t, `["x","y"]`, rows[0]["tags"])
	assert.Equal(t, "180", rows[0]["duration_seconds"])
	assert.Equal(t, "", rows[0]["view_count"])
}

func TestConsolidateMissingDeclaredColumnIsInvalid(t *testing.T) {
	svc, in := newTestConsolidator(t)
	writeRecord(t, in, "a.json", `{"id":"a","title":"A","upload_date":"20230115"}`)

	report, err := svc.Run()
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.Contains(t, report.MissingColumns, schema.ColumnArtist)
	assert.NotContains(t, report.MissingColumns, schema.ColumnViewCount, "numeric columns are filled during cleaning")
}

func TestClean(t *testing.T) {
	rows := []model.Row{
		{"id": "a", "title": "A", "upload_date": "20230115", "tags": []string{"a", "b", "c"}},
		{"id": "b", "title": "B", "upload_date": "2023-01-15"},
		{"id": "c", "upload_date": "20230115"},
		{"id": "", "title": "Empty id", "upload_date": "20230115"},
		{"title": "No id", "upload_date": "20230115"},
		{"id": "d", "title": nil, "upload_date": "20230115"},
		{"id": "a", "title": "A again", "upload_date": "20240101"},
		{"id": "e", "title": "E", "upload_date": "20220301", "view_count": int64(5), "tag_count": int64(9), "year_uploaded": int64(1999)},
	}

	kept, dropped, duplicates := Clean(rows)
	assert.Equal(t, 5, dropped)
	assert.Equal(t, 1, duplicates)
	require.Len(t, kept, 2)

	a := kept[0]
	assert.Equal(t, "A", a["title"])
	assert.Equal(t, time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC), a["upload_date"])
	assert.Equal(t, int64(2023), a["year_uploaded"])
	assert.Equal(t, int64(3), a["tag_count"])
	assert.Equal(t, int64(0), a["view_count"])
	assert.Equal(t, int64(0), a["like_count"])
	assert.Equal(t, int64(0), a["duration_seconds"])
	assert.Equal(t, "A", a["legible_title"])

	e := kept[1]
	assert.Equal(t, int64(5), e["view_count"])
	assert.Equal(t, int64(9), e["tag_count"])
	assert.Equal(t, int64(1999), e["year_uploaded"])

	assert.Equal(t, "20230115", rows[0]["upload_date"], "input rows are not modified")
}

func TestCleanMissingTagsCountsZero(t *testing.T) {
	kept, _, _ := Clean([]model.Row{{"id": "x", "title": "X", "upload_date": "20230115"}})
	require.Len(t, kept, 1)
	assert.Equal(t, int64(0), kept[0]["tag_count"])
}

func TestCleanTagCountFollowsCoercedTags(t *testing.T) {
	kept, _, _ := Clean([]model.Row{
		{"id": "s", "title": "S", "upload_date": "20230115", "tags": "x, y"},
		{"id": "m", "title": "M", "upload_date": "20230115", "tags": []any{"x", map[string]any{"k": "v"}}},
		{"id": "l", "title": "L", "upload_date": "20230115", "tags": []any{"x", int64(7)}},
	})
	require.Len(t, kept, 3)
	assert.Equal(t, int64(2), kept[0]["tag_count"])
	assert.Equal(t, int64(0), kept[1]["tag_count"])
	assert.Equal(t, int64(2), kept[2]["tag_count"])
}

func TestConsolidateIgnoresRecordOnlyColumnsWithoutConfig(t *testing.T) {
	in := t.TempDir()
	writeRecord(t, in, "a.json", fmt.Sprintf(completeRecord, "a", "A"))

	svc := NewConsolidateService(config.ConsolidateConfig{
		InputDir:   in,
		OutputDir:  t.TempDir(),
		OutputFile: "combined_metadata.csv",
	}, logger.NewNop())

	report, err := svc.Run()
	require.NoError(t, err)
	assert.Equal(t, StageDone, report.Stage)
	assert.Equal(t, 1, report.Rows)
}

func TestConsolidateConfiguredIgnoreColumnsAreAdded(t *testing.T) {
	in := t.TempDir()
	writeRecord(t, in, "a.json", `{"id":"a","title":"A","upload_date":"20230115","uploader_id":"@a","format_note":"hd"}`)

	svc := NewConsolidateService(config.ConsolidateConfig{
		InputDir:      in,
		OutputDir:     t.TempDir(),
		OutputFile:    "combined_metadata.csv",
		IgnoreColumns: []string{"format_note"},
	}, logger.NewNop())

	report, err := svc.Run()
	require.NoError(t, err)
	assert.Equal(t, StageDone, report.Stage)

	rows := readCSV(t, report.OutputPath)
	require.Len(t, rows, 1)
	assert.NotContains(t, rows[0], "format_note")
	assert.NotContains(t, rows[0], "uploader_id")
}

func TestLegibleTitle(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Artist Name - Song Title (Official Video)", "Artist Name"},
		{"A B C D E F G", "A B C D E"},
		{"Short Title", "Short Title"},
		{"Band | Live at the Arena", "Band"},
		{"Podcast: Episode 12", "Podcast"},
		{"One:Two - Three", "One"},
		{"  padded  title  ", "padded  title"},
		{"- leading delimiter", ""},
		{"", ""},
		{"one two three four five six - tail", "one two three four five"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LegibleTitle(tt.title), tt.title)
	}
}
