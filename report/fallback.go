package report

import (
	"fmt"

	"exam-server-go/models"
	"exam-server-go/scoring"
)

const (
	defaultPropensityTitle = "분석 중"
	defaultPropensityText  = "성향 분석 데이터가 생성 중입니다."
)

// StatusColor buckets a domain percentage into a display color.
func StatusColor(pct int) string {
	switch {
	case pct >= 80:
		return "blue"
	case pct >= 70:
		return "green"
	case pct >= 60:
		return "orange"
	default:
		return "red"
	}
}

func subjectDetails(domains []scoring.DomainStat) []models.SubjectDetail {
	out := make([]models.SubjectDetail, 0, len(domains))
	for _, d := range domains {
		out = append(out, models.SubjectDetail{
			Name:         d.Name,
			Score:        d.Percentage,
			ScoreText:    fmt.Sprintf("취득 %d점 / 만점 %d점 (%d/%d문항 정답)", d.EarnedScore, d.MaxScore, d.Correct, d.Total),
			StatusColor:  StatusColor(d.Percentage),
			AnalysisText: fmt.Sprintf("%s 영역에서 %d%%의 정답률을 기록했습니다.", d.Name, d.Percentage),
		})
	}
	return out
}

// insights picks the best and worst domains as strengths and weaknesses.
func insights(domains []scoring.DomainStat) (strengths, weaknesses []models.Insight) {
	strengths, weaknesses = []models.Insight{}, []models.Insight{}
	for _, d := range domains {
		switch {
		case d.Percentage >= 80:
			strengths = append(strengths, models.Insight{
				Title:       d.Name,
				Description: fmt.Sprintf("%s 영역에서 %d%%의 높은 정답률을 보였습니다.", d.Name, d.Percentage),
			})
		case d.Percentage < 60:
			weaknesses = append(weaknesses, models.Insight{
				Title:       d.Name,
				Description: fmt.Sprintf("%s 영역 %d문항 중 %d문항을 놓쳤습니다.", d.Name, d.Total, len(d.IncorrectQuestions)),
			})
		}
	}
	return strengths, weaknesses
}

// FallbackAnalysis is the analysis used when the analyzer is unavailable.
func FallbackAnalysis(f *Facts) models.ReportAnalysis {
	strengths, weaknesses := insights(f.Domains)
	return models.ReportAnalysis{
		Summary:        fmt.Sprintf("%s 학생의 성적 분석 결과입니다.", f.StudentName),
		SubjectDetails: subjectDetails(f.Domains),
		Strengths:      strengths,
		Weaknesses:     weaknesses,
		Propensity: models.Propensity{
			TypeTitle:       defaultPropensityTitle,
			TypeDescription: defaultPropensityText,
		},
	}
}

// completeAnalysis fills whatever the analyzer left empty from the fallback.
func completeAnalysis(a models.ReportAnalysis, fb models.ReportAnalysis) models.ReportAnalysis {
	if a.Summary == "" {
		a.Summary = fb.Summary
	}
	if len(a.SubjectDetails) == 0 {
		a.SubjectDetails = fb.SubjectDetails
	}
	if a.Strengths == nil {
		a.Strengths = fb.Strengths
	}
	if a.Weaknesses == nil {
		a.Weaknesses = fb.Weaknesses
	}
	if a.Propensity.TypeTitle == "" {
		a.Propensity = fb.Propensity
	}
	return a
}
