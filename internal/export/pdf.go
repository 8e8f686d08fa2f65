package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dukerupert/worktracker/internal/capacity"
	"github.com/dukerupert/worktracker/internal/model"
	"github.com/go-pdf/fpdf"
)

var pdfColumns = []struct {
	title string
	width float64
}{
	{"Title", 70},
	{"Type", 25},
	{"Status", 27},
	{"Assigned", 22},
	{"Completed", 22},
	{"Dates", 24},
}

// PDF writes an A4 report for one week: a capacity line then the item table.
func PDF(w io.Writer, week *model.WorkWeek, items []model.WorkItem, now time.Time) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Weekly Report "+week.WeekStart.String(), false)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "Weekly Report: "+week.Label())
	pdf.Ln(12)

	used := capacity.UsedPoints(items)
	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Capacity: %d points (%d OOO days)   Assigned: %d   Remaining: %d   Utilisation: %d%%",
		week.TotalPoints, week.OOODays, used, week.TotalPoints-used, capacity.Percent(used, week.TotalPoints)))
	pdf.Ln(7)
	pdf.SetFont("Arial", "I", 9)
	pdf.Cell(0, 6, "Generated "+now.Format("2006-01-02 15:04"))
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(0x1E, 0x29, 0x3B)
	pdf.SetTextColor(255, 255, 255)
	for _, c := range pdfColumns {
		pdf.CellFormat(c.width, 8, c.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(0, 0, 0)
	if len(items) == 0 {
		pdf.CellFormat(totalWidth(), 8, "No work items for this week.", "1", 1, "C", false, 0, "")
	}
	for _, it := range items {
		completed := ""
		if it.CompletionPoints != nil {
			completed = strconv.Itoa(*it.CompletionPoints)
		}
		dates := ""
		if !it.StartDate.IsZero() {
			dates = it.StartDate.Format("01/02")
			if !it.EndDate.IsZero() {
				dates += "-" + it.EndDate.Format("01/02")
			}
		}
		cells := []string{
			truncate(tr(it.Title), 42),
			it.Type.Label(),
			it.Status.Label(),
			strconv.Itoa(it.AssignedPoints),
			completed,
			dates,
		}
		for i, c := range pdfColumns {
			align := "L"
			if i >= 3 {
				align = "C"
			}
			pdf.CellFormat(c.width, 7, cells[i], "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	for _, it := range items {
		if it.PlannedWork == "" && it.ActualWork == "" && it.NextWeekPlan == "" {
			continue
		}
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 10)
		pdf.MultiCell(0, 6, tr(it.Title), "", "", false)
		pdf.SetFont("Arial", "", 9)
		for _, note := range []struct{ label, text string }{
			{"Planned", it.PlannedWork},
			{"Actual", it.ActualWork},
			{"Next week", it.NextWeekPlan},
		} {
			if note.text != "" {
				pdf.MultiCell(0, 5, note.label+": "+tr(note.text), "", "", false)
			}
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func totalWidth() float64 {
	var sum float64
	for _, c := range pdfColumns {
		sum += c.width
	}
	return sum
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
