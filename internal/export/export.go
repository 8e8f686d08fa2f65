// Package export renders report rows as CSV, Excel and PDF downloads.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dukerupert/worktracker/internal/model"
)

const (
	ContentTypeCSV   = "text/csv"
	ContentTypeExcel = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypePDF   = "application/pdf"
)

// Columns is the header row shared by the CSV and Excel exports.
var Columns = []string{
	"Week Start", "Week End", "Title", "Type", "Status", "Start Date", "End Date",
	"Assigned Points", "Completion Points", "Planned Work", "Actual Work", "Next Week Plan",
}

func record(it model.ItemWithWeek) []string {
	completion := ""
	if it.CompletionPoints != nil {
		completion = strconv.Itoa(*it.CompletionPoints)
	}
	return []string{
		it.WeekStart.String(),
		it.WeekEnd.String(),
		it.Title,
		string(it.Type),
		string(it.Status),
		it.StartDate.String(),
		it.EndDate.String(),
		strconv.Itoa(it.AssignedPoints),
		completion,
		it.PlannedWork,
		it.ActualWork,
		it.NextWeekPlan,
	}
}

// CSV writes a header row followed by one row per item.
func CSV(w io.Writer, items []model.ItemWithWeek) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, it := range items {
		if err := cw.Write(record(it)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func ExportFilename(ext string, now time.Time) string {
	return fmt.Sprintf("work_tracker_export_%s.%s", now.Format("20060102"), ext)
}

func WeekFilename(weekStart model.Date) string {
	return fmt.Sprintf("work_tracker_week_%s.pdf", weekStart)
}
