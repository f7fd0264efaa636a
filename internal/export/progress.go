// Package export renders a user's review progress as an xlsx workbook.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/example/lexibot/pkg/models"
)

const sheetName = "Progress"

var headers = []string{"Term", "Definition", "Last Grade", "Reviews", "Ease", "Interval (days)", "Last Studied", "Next Review"}

var gradeLabels = map[int]string{1: "Forget", 2: "Hard", 3: "Normal", 4: "Easy"}

// WriteProgress writes one row per studied word to w, ordered as given
// (callers pass them sorted by next review date).
func WriteProgress(w io.Writer, items []models.StudyItem) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %v", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to remove default sheet: %v", err)
	}

	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to build header cell name: %v", err)
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("failed to write header: %v", err)
		}
	}

	rowNum := 2
	for _, item := range items {
		if item.Record == nil {
			continue
		}
		row := []interface{}{
			item.Word.Term,
			item.Word.Definition,
			gradeLabels[item.Record.Familiarity],
			item.Record.ReviewCount,
			item.Record.EaseFactor,
			item.Record.IntervalDays,
			item.Record.LastStudiedAt.Format("2006-01-02"),
			item.Record.NextReviewAt.Format("2006-01-02"),
		}
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return fmt.Errorf("failed to build cell name: %v", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %v", rowNum, err)
		}
		rowNum++
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %v", err)
	}
	return nil
}
