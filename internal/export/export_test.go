package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/worktracker/internal/model"
	"github.com/xuri/excelize/v2"
)

var exportNow = time.Date(2024, 12, 18, 14, 30, 0, 0, time.UTC)

func sampleItems(t *testing.T) []model.ItemWithWeek {
	t.Helper()
	start, err := model.ParseDate("2024-12-16")
	if err != nil {
		t.Fatal(err)
	}
	done := 18
	return []model.ItemWithWeek{
		{
			WorkItem: model.WorkItem{
				ID: 1, Type: model.TaskPlanned, Title: "Quarterly report, draft",
				StartDate: start, EndDate: start.AddDays(2),
				AssignedPoints: 20, CompletionPoints: &done,
				PlannedWork: "outline", ActualWork: "outline and charts", Status: model.StatusCompleted,
			},
			WeekStart: start, WeekEnd: start.AddDays(4),
		},
		{
			WorkItem: model.WorkItem{
				ID: 2, Type: model.TaskAdhoc, Title: "On-call", AssignedPoints: 10, Status: model.StatusTodo,
			},
			WeekStart: start, WeekEnd: start.AddDays(4),
		},
	}
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := CSV(&buf, sampleItems(t)); err != nil {
		t.Fatalf("CSV: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if strings.Join(rows[0], "|") != strings.Join(Columns, "|") {
		t.Errorf("header = %v", rows[0])
	}
	first := rows[1]
	if first[2] != "Quarterly report, draft" {
		t.Errorf("title = %q", first[2])
	}
	if first[5] != "2024-12-16" || first[6] != "2024-12-18" {
		t.Errorf("dates = %q..%q", first[5], first[6])
	}
	if first[8] != "18" {
		t.Errorf("completion = %q, want 18", first[8])
	}
	if second := rows[2]; second[8] != "" || second[5] != "" {
		t.Errorf("unset fields should be empty, got completion=%q start=%q", second[8], second[5])
	}
}

func TestCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := CSV(&buf, nil); err != nil {
		t.Fatalf("CSV: %v", err)
	}
	if got := strings.Count(buf.String(), "\n"); got != 1 {
		t.Errorf("lines = %d, want header only", got)
	}
}

func TestExcel(t *testing.T) {
	var buf bytes.Buffer
	if err := Excel(&buf, sampleItems(t), exportNow); err != nil {
		t.Fatalf("Excel: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != "Work Items" || sheets[1] != "Summary" {
		t.Fatalf("sheets = %v", sheets)
	}

	rows, err := f.GetRows("Work Items")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0][0] != "Week Start" || rows[1][7] != "20" {
		t.Errorf("unexpected cells: header %q, points %q", rows[0][0], rows[1][7])
	}

	summary, err := f.GetRows("Summary")
	if err != nil {
		t.Fatalf("GetRows summary: %v", err)
	}
	var joined []string
	for _, r := range summary {
		joined = append(joined, strings.Join(r, ""))
	}
	all := strings.Join(joined, "\n")
	for _, want := range []string{"Total Items: 2", "Export Date: 2024-12-18", "Total Assigned Points: 30", "Total Completion Points: 18"} {
		if !strings.Contains(all, want) {
			t.Errorf("summary missing %q:\n%s", want, all)
		}
	}
}

func TestPDF(t *testing.T) {
	items := sampleItems(t)
	week := &model.WorkWeek{ID: 1, WeekStart: items[0].WeekStart, WeekEnd: items[0].WeekEnd, TotalPoints: 80, OOODays: 1}
	plain := []model.WorkItem{items[0].WorkItem, items[1].WorkItem}

	var buf bytes.Buffer
	if err := PDF(&buf, week, plain, exportNow); err != nil {
		t.Fatalf("PDF: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Errorf("output does not start with a PDF header")
	}

	buf.Reset()
	if err := PDF(&buf, week, nil, exportNow); err != nil {
		t.Fatalf("PDF without items: %v", err)
	}
}

func TestFilenames(t *testing.T) {
	if got := ExportFilename("csv", exportNow); got != "work_tracker_export_20241218.csv" {
		t.Errorf("ExportFilename = %q", got)
	}
	start, _ := model.ParseDate("2024-12-16")
	if got := WeekFilename(start); got != "work_tracker_week_2024-12-16.pdf" {
		t.Errorf("WeekFilename = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("abcdefghijkl", 8); got != "abcde..." {
		t.Errorf("truncate long = %q", got)
	}
}
