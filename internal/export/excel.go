package export

import (
	"fmt"
	"io"
	"time"

	"github.com/dukerupert/worktracker/internal/model"
	"github.com/xuri/excelize/v2"
)

const (
	itemsSheet   = "Work Items"
	summarySheet = "Summary"
	maxColWidth  = 50
)

// Excel writes a workbook with a styled "Work Items" sheet and a "Summary" sheet.
func Excel(w io.Writer, items []model.ItemWithWeek, now time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", itemsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"1E293B"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	widths := make([]int, len(Columns))
	for i, h := range Columns {
		f.SetCellValue(itemsSheet, cell(i, 1), h)
		widths[i] = len(h)
	}
	f.SetCellStyle(itemsSheet, cell(0, 1), cell(len(Columns)-1, 1), headerStyle)

	totalAssigned, totalCompletion := 0, 0
	for r, it := range items {
		row := record(it)
		for c, v := range row {
			// Numbers stay numeric so spreadsheet formulas work on them.
			switch {
			case c == 7:
				f.SetCellValue(itemsSheet, cell(c, r+2), it.AssignedPoints)
			case c == 8 && it.CompletionPoints != nil:
				f.SetCellValue(itemsSheet, cell(c, r+2), *it.CompletionPoints)
			default:
				f.SetCellValue(itemsSheet, cell(c, r+2), v)
			}
			widths[c] = max(widths[c], len(v))
		}
		totalAssigned += it.AssignedPoints
		totalCompletion += it.CompletionOrZero()
	}
	for i, wd := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(itemsSheet, col, col, float64(min(wd+2, maxColWidth)))
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}
	titleStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return fmt.Errorf("title style: %w", err)
	}
	f.SetCellValue(summarySheet, "A1", "Work Tracker Export Summary")
	f.SetCellStyle(summarySheet, "A1", "A1", titleStyle)
	f.SetCellValue(summarySheet, "A3", fmt.Sprintf("Total Items: %d", len(items)))
	f.SetCellValue(summarySheet, "A4", fmt.Sprintf("Export Date: %s", now.Format(model.DateLayout)))
	f.SetCellValue(summarySheet, "A5", fmt.Sprintf("Total Assigned Points: %d", totalAssigned))
	f.SetCellValue(summarySheet, "A6", fmt.Sprintf("Total Completion Points: %d", totalCompletion))
	f.SetColWidth(summarySheet, "A", "A", 40)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col+1, row)
	return name
}
