package report

import (
	"encoding/json"
	"fmt"
	"strconv"

	"exam-server-go/models"
	"exam-server-go/scoring"
)

// placeholderAverage stands in for the cohort domain average until enough
// attempts exist to compute one.
const placeholderAverage = 65

var gradePhilosophy = map[string]string{
	"중1": "기초 독해력과 어휘력을 다지는 시기로, 글을 끝까지 읽는 습관 형성에 집중합니다.",
	"중2": "문단 간 관계를 파악하며 구조적으로 읽는 힘을 기르는 시기입니다.",
	"중3": "고등 과정을 대비해 비문학 독해 전략과 문학 감상의 틀을 정립합니다.",
	"고1": "수능형 지문에 적응하며 영역별 약점을 조기에 진단하고 보완합니다.",
	"고2": "고난도 지문과 선택지 판단력을 강화해 등급 상승의 기반을 만듭니다.",
	"고3": "실전 시간 관리와 오답 패턴 교정으로 목표 등급을 안정적으로 확보합니다.",
}

const defaultPhilosophy = "학생 개개인의 강점과 약점을 정확히 진단하여 맞춤형 학습 방향을 제시합니다."

const instructions = `당신은 국어 학습 컨설턴트입니다. 아래 [입력 데이터]의 시험 결과를 분석하여 학부모와 학생이 읽을 성적 분석 보고서를 작성하세요.

반드시 아래 형식의 JSON 하나만 출력하세요. 설명 문장이나 코드 블록 표시는 넣지 마세요.
{
  "metaVersion": "v2",
  "stats": {"domainChartData": {"student": [정수], "average": [정수]}},
  "analysis": {
    "summary": "총평 (3~5문장)",
    "subjectDetails": [{"name": "영역명", "score": 정답률, "scoreText": "취득 점수 설명", "statusColor": "blue|green|orange|red", "analysisText": "영역 분석"}],
    "strengths": [{"title": "강점", "description": "설명"}],
    "weaknesses": [{"title": "약점", "description": "설명"}],
    "propensity": {"typeTitle": "학습 성향", "typeDescription": "설명"}
  }
}

작성 원칙:
- 영역별 성취도와 틀린 문항의 유형, 난이도를 근거로 구체적으로 서술합니다.
- 프로그램 철학에 맞추어 다음 학습 방향을 제시합니다.
- 학생을 비난하는 표현은 사용하지 않습니다.`

type answerRow struct {
	Number        int    `json:"문항번호"`
	Domain        string `json:"영역"`
	Difficulty    string `json:"난이도"`
	Type          string `json:"유형"`
	Subcategory   string `json:"소분류"`
	CorrectAnswer int    `json:"정답"`
	Mark          int    `json:"학생답안"`
}

type domainAchievement struct {
	Domain     string `json:"영역"`
	Correct    int    `json:"정답수"`
	Total      int    `json:"문항수"`
	Percentage int    `json:"정답률"`
}

type studentAnswer struct {
	Name        string              `json:"학생명"`
	Level       string              `json:"학년"`
	Exam        string              `json:"시험명"`
	RawScore    int                 `json:"원점수"`
	MaxScore    int                 `json:"만점"`
	Percentage  int                 `json:"정답률"`
	Grade       int                 `json:"등급"`
	Rank        string              `json:"순위"`
	Philosophy  string              `json:"프로그램철학"`
	Achievement []domainAchievement `json:"영역별성취도"`
}

type masterCSV struct {
	Wrong []answerRow `json:"틀린문항"`
	Right []answerRow `json:"맞은문항"`
}

type averageData struct {
	Takers        int            `json:"응시학생수"`
	DomainAverage map[string]int `json:"영역별평균"`
}

type promptInput struct {
	StudentAnswer studentAnswer `json:"studentAnswer"`
	MasterCSV     masterCSV     `json:"masterCsv"`
	Average       averageData   `json:"average"`
}

// Philosophy returns the program philosophy text for a school year.
func Philosophy(level string) string {
	if p, ok := gradePhilosophy[level]; ok {
		return p
	}
	return defaultPhilosophy
}

// BuildPrompt renders the analyzer prompt for a computed report.
func BuildPrompt(f *Facts) (string, error) {
	in := promptInput{
		StudentAnswer: studentAnswer{
			Name:       f.StudentName,
			Level:      f.Level,
			Exam:       f.Exam.Title,
			RawScore:   f.Result.Score,
			MaxScore:   f.Result.MaxScore,
			Percentage: f.Result.RoundedPercentage(),
			Grade:      f.Result.Grade,
			Rank:       fmt.Sprintf("%d/%d", f.Rank, f.RankTotal),
			Philosophy: Philosophy(f.Level),
		},
		MasterCSV: masterCSV{Wrong: []answerRow{}, Right: []answerRow{}},
		Average: averageData{
			Takers:        f.RankTotal,
			DomainAverage: make(map[string]int, len(f.Domains)),
		},
	}
	for _, d := range f.Domains {
		in.StudentAnswer.Achievement = append(in.StudentAnswer.Achievement, domainAchievement{
			Domain:     d.Name,
			Correct:    d.Correct,
			Total:      d.Total,
			Percentage: d.Percentage,
		})
		in.Average.DomainAverage[d.Name] = placeholderAverage
	}
	for _, q := range f.Exam.Questions {
		row := answerRow{
			Number:        q.Number,
			Domain:        scoring.DomainOf(q),
			Difficulty:    q.Difficulty,
			Type:          q.TypeAnalysis,
			Subcategory:   q.Subcategory,
			CorrectAnswer: q.CorrectAnswer,
			Mark:          f.Answers[strconv.Itoa(q.Number)],
		}
		if scoring.IsCorrect(q, f.Answers) {
			in.MasterCSV.Right = append(in.MasterCSV.Right, row)
		} else {
			in.MasterCSV.Wrong = append(in.MasterCSV.Wrong, row)
		}
	}

	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode prompt data: %w", err)
	}
	return instructions + "\n\n[입력 데이터]\n" + string(data), nil
}

// Facts are the computed numbers a report is built from.
type Facts struct {
	StudentName string
	School      string
	Level       string
	Exam        *models.Exam
	Answers     models.Answers
	Result      scoring.Result
	Domains     []scoring.DomainStat
	Rank        int
	RankTotal   int
	SubmittedAt string
}
