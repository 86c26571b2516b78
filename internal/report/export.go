package report

import (
	"time"

	"builddesk/internal/domain"
)

// Files are the paths produced by Export.
type Files struct {
	Markdown string
	XLSX     string
}

// Export writes both report formats for one project into outputDir.
func Export(outputDir string, p domain.Project, history []domain.HealthSnapshot, generated time.Time) (Files, error) {
	md, err := WriteMarkdownFile(RenderMarkdown(p, history, generated), outputDir, p, generated)
	if err != nil {
		return Files{}, err
	}
	xlsx, err := WriteXLSXFile(outputDir, p, history, generated)
	if err != nil {
		return Files{Markdown: md}, err
	}
	return Files{Markdown: md, XLSX: xlsx}, nil
}
