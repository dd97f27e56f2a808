// Package scoring grades exam attempts and derives the statistics used by
// reports and dashboards.
package scoring

import (
	"math"
	"sort"
	"strconv"

	"exam-server-go/models"
)

// MarkCorrect is the answer mark that counts a question as correct.
const MarkCorrect = 1

// DefaultDomain is used for questions that carry neither a domain nor a category.
const DefaultDomain = "독서"

// CalculateGrade maps a percentage to the nine-band grade scale (1 is best).
func CalculateGrade(percentage float64) int {
	switch {
	case percentage >= 96:
		return 1
	case percentage >= 89:
		return 2
	case percentage >= 77:
		return 3
	case percentage >= 60:
		return 4
	case percentage >= 40:
		return 5
	case percentage >= 25:
		return 6
	case percentage >= 15:
		return 7
	case percentage >= 8:
		return 8
	default:
		return 9
	}
}

// Result is the outcome of grading one attempt.
type Result struct {
	Score        int
	MaxScore     int
	CorrectCount int
	Percentage   float64
	Grade        int
}

// RoundedPercentage is the percentage shown to users.
func (r Result) RoundedPercentage() int {
	return int(math.Round(r.Percentage))
}

// Grade scores answers against the exam's questions.
func Grade(questions []models.Question, answers models.Answers, totalScore int) Result {
	res := Result{MaxScore: totalScore}
	for _, q := range questions {
		if IsCorrect(q, answers) {
			res.Score += q.Points
			res.CorrectCount++
		}
	}
	if totalScore > 0 {
		res.Percentage = float64(res.Score) / float64(totalScore) * 100
	}
	res.Grade = CalculateGrade(res.Percentage)
	return res
}

// IsCorrect reports whether the question is marked correct in answers.
func IsCorrect(q models.Question, answers models.Answers) bool {
	return answers[strconv.Itoa(q.Number)] == MarkCorrect
}

// DomainOf returns the reporting domain of a question.
func DomainOf(q models.Question) string {
	if q.Domain != "" {
		return q.Domain
	}
	if q.Category != "" {
		return q.Category
	}
	return DefaultDomain
}

// DomainStat aggregates one domain of an attempt.
type DomainStat struct {
	Name               string `json:"name"`
	Correct            int    `json:"correct"`
	Total              int    `json:"total"`
	EarnedScore        int    `json:"earnedScore"`
	MaxScore           int    `json:"maxScore"`
	Percentage         int    `json:"percentage"`
	IncorrectQuestions []int  `json:"incorrectQuestions"`
}

// DomainStats groups questions by domain in order of first appearance.
func DomainStats(questions []models.Question, answers models.Answers) []DomainStat {
	index := make(map[string]int)
	var stats []DomainStat
	for _, q := range questions {
		name := DomainOf(q)
		i, ok := index[name]
		if !ok {
			i = len(stats)
			index[name] = i
			stats = append(stats, DomainStat{Name: name, IncorrectQuestions: []int{}})
		}
		d := &stats[i]
		d.Total++
		d.MaxScore += q.Points
		if IsCorrect(q, answers) {
			d.Correct++
			d.EarnedScore += q.Points
		} else {
			d.IncorrectQuestions = append(d.IncorrectQuestions, q.Number)
		}
	}
	for i := range stats {
		if stats[i].Total > 0 {
			stats[i].Percentage = int(math.Round(float64(stats[i].Correct) / float64(stats[i].Total) * 100))
		}
	}
	return stats
}

// Rank returns the 1-based position of attemptID among the submitted
// attempts by descending score, and the number of submitted attempts.
// Rank is 0 when attemptID is not among them.
func Rank(attemptID string, attempts []models.ExamAttempt) (rank, total int) {
	submitted := make([]models.ExamAttempt, 0, len(attempts))
	for _, a := range attempts {
		if a.Submitted() && a.Score != nil {
			submitted = append(submitted, a)
		}
	}
	sort.SliceStable(submitted, func(i, j int) bool {
		return *submitted[i].Score > *submitted[j].Score
	})
	for i, a := range submitted {
		if a.ID == attemptID {
			return i + 1, len(submitted)
		}
	}
	return 0, len(submitted)
}

// Percentile is the share of submitted attempts ranked below, to one decimal.
func Percentile(rank, total int) float64 {
	if total == 0 || rank == 0 {
		return 0
	}
	return math.Round(100*(1-float64(rank)/float64(total))*10) / 10
}

// StandardScore approximates a standardized score from the grade band and the
// raw score ratio.
func StandardScore(grade, score, maxScore int) int {
	ratio := 0.0
	if maxScore > 0 {
		ratio = float64(score) / float64(maxScore)
	}
	switch {
	case grade <= 2:
		return int(math.Round(80 + ratio*20))
	case grade <= 4:
		return int(math.Round(70 + ratio*10))
	default:
		return int(math.Round(60 + ratio*10))
	}
}

// Prediction projects the percentage over the next four sittings.
func Prediction(percentage int) []int {
	out := make([]int, 4)
	for i := range out {
		out[i] = min(percentage+5*i, 100)
	}
	return out
}
