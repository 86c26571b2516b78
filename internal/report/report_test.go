package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"builddesk/internal/domain"
)

var generated = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func sampleProject() domain.Project {
	return domain.Project{
		ID:            4,
		Name:          "Harbor Tower / Phase 2",
		Status:        "active",
		StartDate:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		Budget:        1000000,
		ActualCost:    420000,
		CompletionPct: 38,
	}
}

func sampleHistory() []domain.HealthSnapshot {
	return []domain.HealthSnapshot{
		{
			ID: 2, ProjectID: 4, OverallScore: 62.5, Status: domain.StatusWarning,
			ScoredAt: time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC),
			Dimensions: []domain.DimensionResult{
				{Name: domain.DimensionSchedule, Score: 60, Status: domain.StatusWarning, Trend: domain.TrendDown, Details: "variance -6.2 | behind"},
				{Name: domain.DimensionSafety, Score: 75, Status: domain.StatusGood, Trend: domain.TrendStable},
				{Name: domain.DimensionTeam, Score: 50, Status: domain.StatusWarning, Trend: domain.TrendUp},
				{Name: domain.DimensionProgress, Score: 65, Status: domain.StatusGood, Trend: domain.TrendStable},
			},
		},
		{ID: 1, ProjectID: 4, OverallScore: 70, Status: domain.StatusGood, ScoredAt: time.Date(2026, 2, 23, 6, 0, 0, 0, time.UTC)},
	}
}

func TestRenderMarkdown(t *testing.T) {
	got := RenderMarkdown(sampleProject(), sampleHistory(), generated)
	for _, want := range []string{
		"# Project Health: Harbor Tower / Phase 2",
		"## Latest score: 62.5 (warning)",
		"| schedule | 60 | warning | down | variance -6.2 \\| behind |",
		"Not scored: budget",
		"## History",
		"| 2026-02-23 06:00 | 70.0 | good |",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("markdown missing %q:\n%s", want, got)
		}
	}
}

func TestRenderMarkdownNeverScored(t *testing.T) {
	got := RenderMarkdown(sampleProject(), nil, generated)
	if !strings.Contains(got, "has not been scored yet") || strings.Contains(got, "## History") {
		t.Fatalf("unexpected markdown:\n%s", got)
	}
}

func TestExportWritesBothFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	files, err := Export(dir, sampleProject(), sampleHistory(), generated)
	if err != nil {
		t.Fatalf("Export error: %v", err)
	}
	if filepath.Base(files.Markdown) != "Harbor_Tower___Phase_2_health_20260302.md" {
		t.Fatalf("unexpected markdown name %q", files.Markdown)
	}
	if _, err := os.Stat(files.Markdown); err != nil {
		t.Fatalf("markdown not written: %v", err)
	}

	f, err := excelize.OpenFile(files.XLSX)
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()

	if got := f.GetSheetList(); strings.Join(got, ",") != "Latest,History" {
		t.Fatalf("unexpected sheets %v", got)
	}
	if v, _ := f.GetCellValue(sheetLatest, "B1"); v != "Harbor Tower / Phase 2" {
		t.Fatalf("B1 = %q", v)
	}
	if v, _ := f.GetCellValue(sheetLatest, "B4"); v != "warning" {
		t.Fatalf("overall status cell = %q", v)
	}

	rows, err := f.GetRows(sheetHistory)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 history rows, got %d", len(rows))
	}
	if strings.Join(rows[0], ",") != "Scored At,Overall,Status,schedule,budget,safety,team,progress" {
		t.Fatalf("unexpected history header %v", rows[0])
	}
	if rows[1][3] != "60" || rows[1][4] != "" {
		t.Fatalf("expected schedule score and empty budget cell, got %v", rows[1])
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := sanitizeFilename(` a/b:c*d?"e" `); got != "a_b_c_d__e_" {
		t.Fatalf("sanitizeFilename = %q", got)
	}
}
