package report

import (
	"encoding/json"
	"strings"

	"exam-server-go/models"
)

type chartData struct {
	Student []int `json:"student"`
	Average []int `json:"average"`
}

// aiResponse is the document the analyzer is asked to return.
type aiResponse struct {
	MetaVersion string `json:"metaVersion"`
	Stats       struct {
		DomainChartData *chartData `json:"domainChartData"`
	} `json:"stats"`
	Analysis *models.ReportAnalysis `json:"analysis"`
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimPrefix(t, "json")
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}

// ParseAnalysis decodes analyzer output. Text that is not the expected JSON
// document is kept verbatim as the summary; ok reports which case applied.
func ParseAnalysis(text string) (resp aiResponse, ok bool) {
	body := stripFences(text)
	if err := json.Unmarshal([]byte(body), &resp); err != nil || resp.Analysis == nil {
		return aiResponse{Analysis: &models.ReportAnalysis{Summary: strings.TrimSpace(text)}}, false
	}
	return resp, true
}
