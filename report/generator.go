package report

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"exam-server-go/db"
	"exam-server-go/models"
	"exam-server-go/scoring"
)

const metaVersion = "v2"

// Outcomes of a generation, used as the metrics label.
const (
	OutcomeAI       = "ai"
	OutcomeRaw      = "raw"
	OutcomeFallback = "fallback"
)

// cumulativeDistribution is the reference cumulative share of students per
// grade band drawn under the percentile chart.
var cumulativeDistribution = []int{3, 8, 16, 28, 43, 61, 77, 90, 97, 100}

// ErrNotSubmitted is returned for attempts that have not been submitted.
var ErrNotSubmitted = fmt.Errorf("attempt not submitted: %w", db.ErrNotFound)

type Generator struct {
	analyzer Analyzer
	logger   *zap.Logger
}

func NewGenerator(analyzer Analyzer, logger *zap.Logger) *Generator {
	return &Generator{analyzer: analyzer, logger: logger}
}

// Collect computes the facts of a report subject.
func Collect(subj *db.ReportSubject) (*Facts, error) {
	a := subj.Attempt
	if !a.Submitted() {
		return nil, ErrNotSubmitted
	}
	result := scoring.Grade(subj.Exam.Questions, a.Answers, subj.Exam.TotalScore)
	// stored values win over a re-grade against an edited answer key
	if a.Score != nil && a.MaxScore != nil {
		result.Score, result.MaxScore = *a.Score, *a.MaxScore
		if result.MaxScore > 0 {
			result.Percentage = float64(result.Score) / float64(result.MaxScore) * 100
		}
		result.Grade = scoring.CalculateGrade(result.Percentage)
	}
	if a.Grade != nil {
		result.Grade = *a.Grade
	}
	if a.CorrectCount != nil {
		result.CorrectCount = *a.CorrectCount
	}

	rank, total := scoring.Rank(a.ID, subj.Siblings)
	f := &Facts{
		School:      subj.Student.School,
		Level:       subj.Student.Grade,
		Exam:        subj.Exam,
		Answers:     a.Answers,
		Result:      result,
		Domains:     scoring.DomainStats(subj.Exam.Questions, a.Answers),
		Rank:        rank,
		RankTotal:   total,
		SubmittedAt: a.SubmittedAt.Format("2006. 1. 2."),
	}
	if subj.Student.User != nil {
		f.StudentName = subj.Student.User.Name
	}
	return f, nil
}

// Build produces the report for a submitted attempt. Analyzer failures never
// fail the build; the computed analysis is used instead.
func (g *Generator) Build(ctx context.Context, subj *db.ReportSubject) (*models.AIReport, string, error) {
	facts, err := Collect(subj)
	if err != nil {
		return nil, "", err
	}

	fallback := FallbackAnalysis(facts)
	analysis, chart, outcome := fallback, (*chartData)(nil), OutcomeFallback

	prompt, err := BuildPrompt(facts)
	if err != nil {
		return nil, "", err
	}
	text, err := g.analyzer.Analyze(ctx, prompt)
	switch {
	case errors.Is(err, ErrAnalyzerDisabled):
	case err != nil:
		g.logger.Warn("Report analyzer failed, using computed analysis",
			zap.String("attempt_id", subj.Attempt.ID), zap.Error(err))
	default:
		resp, ok := ParseAnalysis(text)
		if ok {
			outcome = OutcomeAI
			chart = resp.Stats.DomainChartData
		} else {
			outcome = OutcomeRaw
			g.logger.Warn("Report analyzer returned non-JSON output",
				zap.String("attempt_id", subj.Attempt.ID), zap.Int("length", len(text)))
		}
		analysis = completeAnalysis(*resp.Analysis, fallback)
	}

	data := models.ReportData{
		MetaVersion:  metaVersion,
		StudentInfo:  studentInfo(facts),
		ScoreSummary: scoreSummary(facts),
		Charts:       charts(facts, chart),
		Analysis:     analysis,
	}
	html, err := Render(data)
	if err != nil {
		return nil, "", err
	}

	summary := analysis.Summary
	if summary == "" {
		summary = "분석 완료"
	}
	return &models.AIReport{
		AttemptID:   subj.Attempt.ID,
		StudentID:   subj.Attempt.StudentID,
		ExamID:      subj.Attempt.ExamID,
		Analysis:    data,
		Summary:     summary,
		HTMLContent: html,
	}, outcome, nil
}

func orUnset(s string) string {
	if s == "" {
		return "미지정"
	}
	return s
}

func studentInfo(f *Facts) models.StudentInfo {
	return models.StudentInfo{
		Name:   f.StudentName,
		School: orUnset(f.School),
		Date:   f.SubmittedAt,
		Level:  orUnset(f.Level),
		Exam:   f.Exam.Title,
	}
}

func scoreSummary(f *Facts) models.ScoreSummary {
	return models.ScoreSummary{
		Grade:         f.Result.Grade,
		RawScore:      f.Result.Score,
		RawScoreMax:   f.Result.MaxScore,
		Percentage:    f.Result.RoundedPercentage(),
		StandardScore: scoring.StandardScore(f.Result.Grade, f.Result.Score, f.Result.MaxScore),
		Percentile:    scoring.Percentile(f.Rank, f.RankTotal),
		Rank:          f.Rank,
		RankTotal:     f.RankTotal,
	}
}

func charts(f *Facts, ai *chartData) models.ReportCharts {
	c := models.ReportCharts{
		Labels:         make([]string, 0, len(f.Domains)),
		ScoreChartData: make([]int, 0, len(f.Domains)),
		PercentileChartData: models.PercentileChart{
			StudentPercentile: scoring.Percentile(f.Rank, f.RankTotal),
			CumulativeData:    cumulativeDistribution,
		},
		PredictionChartData: scoring.Prediction(f.Result.RoundedPercentage()),
	}
	average := make([]int, 0, len(f.Domains))
	for _, d := range f.Domains {
		c.Labels = append(c.Labels, d.Name)
		c.ScoreChartData = append(c.ScoreChartData, d.Percentage)
		average = append(average, placeholderAverage)
	}
	c.RadarChartData = models.RadarChart{Student: c.ScoreChartData, Average: average}
	if ai != nil && len(ai.Student) == len(c.Labels) && len(ai.Average) == len(c.Labels) {
		c.RadarChartData = models.RadarChart{Student: ai.Student, Average: ai.Average}
	}
	return c
}
