// Package export writes tabular search results to CSV, JSON and Excel
// files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/records"
	apperrors "github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/errors"
)

type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatExcel Format = "excel"
	FormatPDF   Format = "pdf"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatCSV, nil
	case "xlsx":
		return FormatExcel, nil
	case FormatCSV, FormatJSON, FormatExcel, FormatPDF:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", apperrors.ErrUnsupportedFormat, s)
}

// Extension is the file extension written for f, without the dot.
func (f Format) Extension() string {
	if f == FormatExcel {
		return "xlsx"
	}
	return string(f)
}

// Table is a header row plus string cells. Objects, when set, is what the
// JSON writer encodes instead of header-keyed rows.
type Table struct {
	Sheet   string
	Headers []string
	Rows    [][]string
	Objects any
}

// TaskTable lays tasks out one per row.
func TaskTable(tasks []records.Task, now time.Time) Table {
	t := Table{
		Sheet: "Tasks",
		Headers: []string{
			"Key", "Title", "Compliance Area", "Subcategory", "Priority", "Status",
			"Allocated To", "Task Setter", "Manager", "Date Logged", "Target Date",
			"Completed Date", "Overdue", "Tags", "Description",
		},
	}
	objs := make([]map[string]any, 0, len(tasks))
	for _, task := range tasks {
		t.Rows = append(t.Rows, []string{
			task.Key, task.Title, task.ComplianceArea, task.Subcategory, task.Priority, task.Status,
			strings.Join(task.AllocatedTo, ", "), task.TaskSetter, task.Manager, task.DateLogged,
			task.TargetDate, task.CompletedDate, strconv.FormatBool(task.IsOverdue(now)),
			strings.Join(task.Tags, ", "), task.Description,
		})
		objs = append(objs, task.Map(now))
	}
	t.Objects = objs
	return t
}

// Row is one generic search result line.
type Row struct {
	Type      string  `json:"type"`
	Title     string  `json:"title"`
	Summary   string  `json:"summary"`
	Relevance float64 `json:"relevance"`
	Key       string  `json:"key"`
}

// ResultTable lays out mixed record types with the generic columns.
func ResultTable(rows []Row) Table {
	t := Table{
		Sheet:   "Search Results",
		Headers: []string{"Type", "Title", "Summary", "Relevance", "Key"},
		Objects: rows,
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			r.Type, r.Title, r.Summary, fmt.Sprintf("%.2f", r.Relevance), r.Key,
		})
	}
	if rows == nil {
		t.Objects = []Row{}
	}
	return t
}

// FileName is the export file name for a run at t.
func FileName(t time.Time, f Format) string {
	return fmt.Sprintf("Search_Results_%s.%s", t.Format("20060102_150405"), f.Extension())
}

// WriteFile writes t to path in format f, creating parent directories.
func WriteFile(path string, f Format, t Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	switch f {
	case FormatCSV:
		return writeCSV(path, t)
	case FormatJSON:
		return writeJSON(path, t)
	case FormatExcel:
		return writeExcel(path, t)
	}
	return fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, f)
}

func writeCSV(path string, t Table) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	w := csv.NewWriter(file)
	if err := w.Write(t.Headers); err != nil {
		file.Close()
		return fmt.Errorf("writing csv header: %w", err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		file.Close()
		return fmt.Errorf("writing csv rows: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, t Table) error {
	v := t.Objects
	if v == nil {
		objs := make([]map[string]string, 0, len(t.Rows))
		for _, row := range t.Rows {
			obj := make(map[string]string, len(t.Headers))
			for i, h := range t.Headers {
				if i < len(row) {
					obj[h] = row[i]
				}
			}
			objs = append(objs, obj)
		}
		v = objs
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding json export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func writeExcel(path string, t Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := t.Sheet
	if sheet == "" {
		sheet = "Sheet1"
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	header := make([]any, len(t.Headers))
	for i, h := range t.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("writing excel header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	if len(t.Headers) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(t.Headers), 1)
		if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
			return fmt.Errorf("styling excel header: %w", err)
		}
	}
	for i, row := range t.Rows {
		cells := make([]any, len(row))
		for j, c := range row {
			cells[j] = c
		}
		start, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, start, &cells); err != nil {
			return fmt.Errorf("writing excel row %d: %w", i+2, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}
