package report

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"exam-server-go/db"
	"exam-server-go/models"
)

type fakeAnalyzer struct {
	text   string
	err    error
	prompt string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.text, f.err
}

func intp(v int) *int { return &v }

// subject builds a four-question exam where the student got the two 독서
// questions right, plus one higher-scoring sibling attempt.
func subject() *db.ReportSubject {
	questions := []models.Question{
		{Number: 1, Domain: "독서", Difficulty: "중", CorrectAnswer: 3, Points: 5},
		{Number: 2, Domain: "문학", Difficulty: "상", CorrectAnswer: 1, Points: 5},
		{Number: 3, Domain: "독서", Difficulty: "하", CorrectAnswer: 2, Points: 5},
		{Number: 4, Domain: "문학", Difficulty: "중", CorrectAnswer: 4, Points: 5},
	}
	submitted := time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)
	attempt := &models.ExamAttempt{
		ID:             "att-1",
		ExamID:         "exam-1",
		StudentID:      "stu-1",
		DistributionID: "dist-1",
		Answers:        models.Answers{"1": 1, "2": 0, "3": 1, "4": 0},
		Score:          intp(10),
		MaxScore:       intp(20),
		Grade:          intp(5),
		CorrectCount:   intp(2),
		SubmittedAt:    &submitted,
	}
	other := models.ExamAttempt{ID: "att-2", Score: intp(15), SubmittedAt: &submitted}
	return &db.ReportSubject{
		Attempt: attempt,
		Exam: &models.Exam{
			ID: "exam-1", Title: "국어 진단평가", Subject: "국어",
			TotalQuestions: 4, TotalScore: 20, Questions: questions,
		},
		Student: &models.Student{
			ID: "stu-1", School: "한빛고", Grade: "고1",
			User: &models.User{Name: "김하나"},
		},
		Siblings: []models.ExamAttempt{*attempt, other},
	}
}

func TestCollect(t *testing.T) {
	f, err := Collect(subject())
	require.NoError(t, err)

	assert.Equal(t, "김하나", f.StudentName)
	assert.Equal(t, 10, f.Result.Score)
	assert.Equal(t, 5, f.Result.Grade)
	assert.Equal(t, 2, f.Rank)
	assert.Equal(t, 2, f.RankTotal)
	assert.Equal(t, "2025. 5. 10.", f.SubmittedAt)
	require.Len(t, f.Domains, 2)
	assert.Equal(t, "독서", f.Domains[0].Name)
	assert.Equal(t, 100, f.Domains[0].Percentage)
	assert.Equal(t, 0, f.Domains[1].Percentage)
}

func TestCollectRejectsUnsubmitted(t *testing.T) {
	subj := subject()
	subj.Attempt.SubmittedAt = nil

	_, err := Collect(subj)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestBuildPrompt(t *testing.T) {
	f, err := Collect(subject())
	require.NoError(t, err)

	prompt, err := BuildPrompt(f)
	require.NoError(t, err)

	assert.Contains(t, prompt, "[입력 데이터]")
	assert.Contains(t, prompt, `"학생명": "김하나"`)
	assert.Contains(t, prompt, `"순위": "2/2"`)
	assert.Contains(t, prompt, Philosophy("고1"))
	assert.Contains(t, prompt, `"틀린문항"`)
}

func TestPhilosophyDefault(t *testing.T) {
	assert.Equal(t, defaultPhilosophy, Philosophy("초6"))
	assert.NotEqual(t, defaultPhilosophy, Philosophy("고3"))
}

func TestParseAnalysis(t *testing.T) {
	t.Run("fenced json", func(t *testing.T) {
		text := "```json\n{\"analysis\":{\"summary\":\"잘했어요\"},\"stats\":{\"domainChartData\":{\"student\":[1],\"average\":[2]}}}\n```"
		resp, ok := ParseAnalysis(text)
		require.True(t, ok)
		assert.Equal(t, "잘했어요", resp.Analysis.Summary)
		require.NotNil(t, resp.Stats.DomainChartData)
		assert.Equal(t, []int{1}, resp.Stats.DomainChartData.Student)
	})

	t.Run("plain text", func(t *testing.T) {
		resp, ok := ParseAnalysis("  분석 결과 요약입니다.  ")
		assert.False(t, ok)
		assert.Equal(t, "분석 결과 요약입니다.", resp.Analysis.Summary)
	})

	t.Run("json without analysis", func(t *testing.T) {
		_, ok := ParseAnalysis(`{"metaVersion":"v2"}`)
		assert.False(t, ok)
	})
}

func TestStatusColor(t *testing.T) {
	for pct, want := range map[int]string{100: "blue", 80: "blue", 75: "green", 60: "orange", 59: "red"} {
		assert.Equal(t, want, StatusColor(pct), strconv.Itoa(pct))
	}
}

func TestBuildWithAnalyzer(t *testing.T) {
	fake := &fakeAnalyzer{text: `{"analysis":{"summary":"독서 영역이 뛰어납니다.<script>alert(1)</script>","propensity":{"typeTitle":"분석형","typeDescription":"꼼꼼합니다."}},"stats":{"domainChartData":{"student":[100,0],"average":[70,60]}}}`}
	g := NewGenerator(fake, zap.NewNop())

	r, outcome, err := g.Build(context.Background(), subject())
	require.NoError(t, err)

	assert.Equal(t, OutcomeAI, outcome)
	assert.NotEmpty(t, fake.prompt)
	assert.Equal(t, "att-1", r.AttemptID)
	assert.Equal(t, "stu-1", r.StudentID)
	assert.Equal(t, "분석형", r.Analysis.Analysis.Propensity.TypeTitle)
	// details left out by the model come from the computed analysis
	require.Len(t, r.Analysis.Analysis.SubjectDetails, 2)
	assert.Equal(t, "blue", r.Analysis.Analysis.SubjectDetails[0].StatusColor)
	assert.Equal(t, []int{70, 60}, r.Analysis.Charts.RadarChartData.Average)
	assert.Equal(t, []string{"독서", "문학"}, r.Analysis.Charts.Labels)
	assert.Equal(t, []int{50, 55, 60, 65}, r.Analysis.Charts.PredictionChartData)
	assert.Equal(t, 0.0, r.Analysis.ScoreSummary.Percentile)
	assert.Equal(t, 65, r.Analysis.ScoreSummary.StandardScore)

	assert.Contains(t, r.HTMLContent, "독서 영역이 뛰어납니다.")
	assert.NotContains(t, r.HTMLContent, "<script>alert(1)")
}

func TestBuildFallsBack(t *testing.T) {
	t.Run("analyzer error", func(t *testing.T) {
		g := NewGenerator(&fakeAnalyzer{err: errors.New("quota exceeded")}, zap.NewNop())
		r, outcome, err := g.Build(context.Background(), subject())
		require.NoError(t, err)

		assert.Equal(t, OutcomeFallback, outcome)
		assert.Equal(t, "김하나 학생의 성적 분석 결과입니다.", r.Summary)
		assert.Equal(t, defaultPropensityTitle, r.Analysis.Analysis.Propensity.TypeTitle)
		require.Len(t, r.Analysis.Analysis.Strengths, 1)
		require.Len(t, r.Analysis.Analysis.Weaknesses, 1)
		assert.Equal(t, "문학", r.Analysis.Analysis.Weaknesses[0].Title)
		assert.Equal(t, []int{65, 65}, r.Analysis.Charts.RadarChartData.Average)
	})

	t.Run("disabled", func(t *testing.T) {
		g := NewGenerator(&fakeAnalyzer{err: ErrAnalyzerDisabled}, zap.NewNop())
		_, outcome, err := g.Build(context.Background(), subject())
		require.NoError(t, err)
		assert.Equal(t, OutcomeFallback, outcome)
	})

	t.Run("raw text", func(t *testing.T) {
		g := NewGenerator(&fakeAnalyzer{text: "전반적으로 안정적인 성취를 보였습니다."}, zap.NewNop())
		r, outcome, err := g.Build(context.Background(), subject())
		require.NoError(t, err)
		assert.Equal(t, OutcomeRaw, outcome)
		assert.Equal(t, "전반적으로 안정적인 성취를 보였습니다.", r.Summary)
		assert.Len(t, r.Analysis.Analysis.SubjectDetails, 2)
	})
}

func TestRender(t *testing.T) {
	html, err := Render(models.ReportData{
		StudentInfo: models.StudentInfo{Name: "<b>이두리</b>", Exam: "모의고사"},
		Analysis: models.ReportAnalysis{
			Summary: "첫 줄\n둘째 줄",
			SubjectDetails: []models.SubjectDetail{
				{Name: "독서", Score: 140, StatusColor: "blue"},
			},
		},
		Charts: models.ReportCharts{PredictionChartData: []int{70, 75}},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, "&lt;b&gt;이두리&lt;/b&gt;")
	assert.Contains(t, html, "첫 줄<br")
	assert.Contains(t, html, "width: 100%")
	assert.Contains(t, html, "70% → 75%")
}
