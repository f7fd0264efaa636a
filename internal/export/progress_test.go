package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/example/lexibot/pkg/models"
)

func TestWriteProgress(t *testing.T) {
	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	rec := models.NewReviewRecord(1, 1, 7)
	rec.Familiarity = 3
	rec.ReviewCount = 4
	rec.IntervalDays = 15
	rec.LastStudiedAt = now
	rec.NextReviewAt = now.AddDate(0, 0, 15)

	items := []models.StudyItem{
		{Word: models.Word{ID: 7, Term: "serendipity", Definition: "happy accident"}, Record: &rec},
		{Word: models.Word{ID: 8, Term: "unseen", Definition: "skipped"}}, // no record, skipped
	}

	var buf bytes.Buffer
	require.NoError(t, WriteProgress(&buf, items))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetCellValue(sheetName, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Term", got)

	got, err = f.GetCellValue(sheetName, "A2")
	require.NoError(t, err)
	assert.Equal(t, "serendipity", got)

	got, err = f.GetCellValue(sheetName, "C2")
	require.NoError(t, err)
	assert.Equal(t, "Normal", got)

	got, err = f.GetCellValue(sheetName, "H2")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-25", got)

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 2) // header + one studied word
}

func TestWriteProgressEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteProgress(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Term", rows[0][0])
}
