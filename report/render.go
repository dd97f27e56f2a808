package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"exam-server-go/models"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var (
	prosePolicy = bluemonday.UGCPolicy()

	reportTemplate = template.Must(template.New("report.html.tmpl").Funcs(template.FuncMap{
		"prose": prose,
		"pct":   func(v int) int { return max(0, min(v, 100)) },
	}).ParseFS(templateFS, "templates/report.html.tmpl"))
)

// prose sanitizes model-written text and keeps its line breaks.
func prose(s string) template.HTML {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\n", "<br>")
	return template.HTML(prosePolicy.Sanitize(s))
}

// Render produces the standalone HTML document of a report.
func Render(data models.ReportData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}
