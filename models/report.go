package models

// ReportData is the structured content behind an AI report. It is stored as
// JSON on the report row and rendered into the HTML document.
type ReportData struct {
	MetaVersion  string         `json:"metaVersion"`
	StudentInfo  StudentInfo    `json:"studentInfo"`
	ScoreSummary ScoreSummary   `json:"scoreSummary"`
	Charts       ReportCharts   `json:"charts"`
	Analysis     ReportAnalysis `json:"analysis"`
}

type StudentInfo struct {
	Name   string `json:"name"`
	School string `json:"school"`
	Date   string `json:"date"`
	Level  string `json:"level"`
	Exam   string `json:"exam"`
}

type ScoreSummary struct {
	Grade         int     `json:"grade"`
	RawScore      int     `json:"rawScore"`
	RawScoreMax   int     `json:"rawScoreMax"`
	Percentage    int     `json:"percentage"`
	StandardScore int     `json:"standardScore"`
	Percentile    float64 `json:"percentile"`
	Rank          int     `json:"rank"`
	RankTotal     int     `json:"rankTotal"`
}

type ReportCharts struct {
	Labels              []string        `json:"labels"`
	ScoreChartData      []int           `json:"scoreChartData"`
	PercentileChartData PercentileChart `json:"percentileChartData"`
	RadarChartData      RadarChart      `json:"radarChartData"`
	PredictionChartData []int           `json:"predictionChartData"`
}

type PercentileChart struct {
	StudentPercentile float64 `json:"studentPercentile"`
	CumulativeData    []int   `json:"cumulativeData"`
}

type RadarChart struct {
	Student []int `json:"student"`
	Average []int `json:"average"`
}

type ReportAnalysis struct {
	Summary        string          `json:"summary"`
	SubjectDetails []SubjectDetail `json:"subjectDetails"`
	Strengths      []Insight       `json:"strengths"`
	Weaknesses     []Insight       `json:"weaknesses"`
	Propensity     Propensity      `json:"propensity"`
}

type SubjectDetail struct {
	Name         string `json:"name"`
	Score        int    `json:"score"`
	ScoreText    string `json:"scoreText"`
	StatusColor  string `json:"statusColor"`
	AnalysisText string `json:"analysisText"`
}

type Insight struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Propensity struct {
	TypeTitle       string `json:"typeTitle"`
	TypeDescription string `json:"typeDescription"`
}
