// Package report writes project health passes to markdown and XLSX files.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"builddesk/internal/domain"
)

// RenderMarkdown renders the latest pass in detail followed by the score
// history. history is newest first, as returned by the store.
func RenderMarkdown(p domain.Project, history []domain.HealthSnapshot, generated time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Project Health: %s\n\n", projectTitle(p))
	fmt.Fprintf(&b, "Generated %s\n\n", generated.Format("2006-01-02 15:04 MST"))

	fmt.Fprintf(&b, "- Status: %s\n", p.Status)
	fmt.Fprintf(&b, "- Schedule: %s to %s\n", p.StartDate.Format("2006-01-02"), p.EndDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "- Budget: %.2f (spent %.2f)\n", p.Budget, p.ActualCost)
	fmt.Fprintf(&b, "- Completion: %.1f%%\n\n", p.CompletionPct)

	if len(history) == 0 {
		b.WriteString("_This project has not been scored yet._\n")
		return b.String()
	}

	latest := history[0]
	fmt.Fprintf(&b, "## Latest score: %.1f (%s)\n\n", latest.OverallScore, latest.Status)
	fmt.Fprintf(&b, "Scored %s\n\n", latest.ScoredAt.Format("2006-01-02 15:04"))
	b.WriteString("| Dimension | Score | Status | Trend | Details |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, d := range latest.Dimensions {
		fmt.Fprintf(&b, "| %s | %.0f | %s | %s | %s |\n", d.Name, d.Score, d.Status, d.Trend, escapeCell(d.Details))
	}
	if missing := missingDimensions(latest.Dimensions); len(missing) > 0 {
		fmt.Fprintf(&b, "\nNot scored: %s\n", strings.Join(missing, ", "))
	}

	if len(history) > 1 {
		b.WriteString("\n## History\n\n")
		b.WriteString("| Scored at | Overall | Status |\n")
		b.WriteString("|---|---|---|\n")
		for _, s := range history {
			fmt.Fprintf(&b, "| %s | %.1f | %s |\n", s.ScoredAt.Format("2006-01-02 15:04"), s.OverallScore, s.Status)
		}
	}
	return b.String()
}

// WriteMarkdownFile writes content as <project>_<yyyymmdd>.md under outputDir.
func WriteMarkdownFile(content, outputDir string, p domain.Project, date time.Time) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(outputDir, baseName(p, date)+".md")
	return path, os.WriteFile(path, []byte(content), 0644)
}

func baseName(p domain.Project, date time.Time) string {
	return fmt.Sprintf("%s_health_%s", sanitizeFilename(projectTitle(p)), date.Format("20060102"))
}

func projectTitle(p domain.Project) string {
	if strings.TrimSpace(p.Name) != "" {
		return p.Name
	}
	return fmt.Sprintf("project-%d", p.ID)
}

func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_", " ", "_")
	return replacer.Replace(strings.TrimSpace(s))
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func missingDimensions(scored []domain.DimensionResult) []string {
	have := make(map[domain.Dimension]bool, len(scored))
	for _, d := range scored {
		have[d.Name] = true
	}
	var out []string
	for _, d := range domain.Dimensions {
		if !have[d] {
			out = append(out, string(d))
		}
	}
	return out
}
