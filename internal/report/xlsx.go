package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"builddesk/internal/domain"
)

const (
	sheetLatest  = "Latest"
	sheetHistory = "History"
)

// BuildWorkbook lays out the latest pass and the score history on two
// sheets. The caller owns the returned file and must Close it.
func BuildWorkbook(p domain.Project, history []domain.HealthSnapshot) (*excelize.File, error) {
	f := excelize.NewFile()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", sheetLatest); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetHistory); err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}

	rows := [][]any{
		{"Project", projectTitle(p)},
		{"Status", p.Status},
	}
	var latest domain.HealthSnapshot
	if len(history) > 0 {
		latest = history[0]
		rows = append(rows,
			[]any{"Overall score", latest.OverallScore},
			[]any{"Overall status", string(latest.Status)},
			[]any{"Scored at", latest.ScoredAt.Format(time.RFC3339)},
		)
	}
	for i, row := range rows {
		if err := setRow(f, sheetLatest, i+1, row); err != nil {
			f.Close()
			return nil, err
		}
	}

	dimStart := len(rows) + 2
	if err := writeTable(f, sheetLatest, dimStart, headerStyle,
		[]string{"Dimension", "Score", "Status", "Trend", "Details"},
		dimensionRows(latest.Dimensions)); err != nil {
		f.Close()
		return nil, err
	}

	histRows := make([][]any, len(history))
	for i, s := range history {
		histRows[i] = []any{s.ScoredAt.Format(time.RFC3339), s.OverallScore, string(s.Status)}
		for _, d := range domain.Dimensions {
			histRows[i] = append(histRows[i], dimensionScore(s.Dimensions, d))
		}
	}
	headers := []string{"Scored At", "Overall", "Status"}
	for _, d := range domain.Dimensions {
		headers = append(headers, string(d))
	}
	if err := writeTable(f, sheetHistory, 1, headerStyle, headers, histRows); err != nil {
		f.Close()
		return nil, err
	}

	for _, sheet := range []string{sheetLatest, sheetHistory} {
		if err := f.SetColWidth(sheet, "A", "H", 16); err != nil {
			f.Close()
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

// WriteXLSXFile saves the workbook next to the markdown report.
func WriteXLSXFile(outputDir string, p domain.Project, history []domain.HealthSnapshot, date time.Time) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}
	f, err := BuildWorkbook(p, history)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(outputDir, baseName(p, date)+".xlsx")
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	return path, nil
}

func writeTable(f *excelize.File, sheet string, startRow, headerStyle int, headers []string, rows [][]any) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, startRow)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return err
		}
	}
	for i, row := range rows {
		if err := setRow(f, sheet, startRow+1+i, row); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func dimensionRows(dims []domain.DimensionResult) [][]any {
	out := make([][]any, len(dims))
	for i, d := range dims {
		out[i] = []any{string(d.Name), d.Score, string(d.Status), string(d.Trend), d.Details}
	}
	return out
}

// dimensionScore leaves the cell empty for dimensions that were not scored.
func dimensionScore(dims []domain.DimensionResult, name domain.Dimension) any {
	for _, d := range dims {
		if d.Name == name {
			return d.Score
		}
	}
	return ""
}
