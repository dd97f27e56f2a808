package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Question is one item of an exam answer key.
type Question struct {
	Number         int    `json:"number"`
	Difficulty     string `json:"difficulty,omitempty"`
	Domain         string `json:"domain,omitempty"`
	Category       string `json:"category,omitempty"`
	TypeAnalysis   string `json:"typeAnalysis,omitempty"`
	QuestionIntent string `json:"questionIntent,omitempty"`
	Subcategory    string `json:"subcategory,omitempty"`
	Explanation    string `json:"explanation,omitempty"`
	CorrectAnswer  int    `json:"correctAnswer"`
	Points         int    `json:"points"`
}

// Trend describes what a group of questions has in common.
type Trend struct {
	QuestionNumbers string `json:"questionNumbers"`
	Description     string `json:"description"`
}

type Exam struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	Title          string     `gorm:"size:255;not null" json:"title"`
	Subject        string     `gorm:"size:100;not null" json:"subject"`
	Grade          string     `gorm:"size:20" json:"grade,omitempty"`
	Description    string     `json:"description,omitempty"`
	TotalQuestions int        `gorm:"not null" json:"totalQuestions"`
	TotalScore     int        `gorm:"not null" json:"totalScore"`
	Questions      []Question `gorm:"type:text;serializer:json" json:"questionsData"`
	Trends         []Trend    `gorm:"type:text;serializer:json" json:"examTrends"`
	OverallReview  string     `json:"overallReview,omitempty"`
	CreatedBy      string     `gorm:"size:36" json:"createdBy,omitempty"`
	CreatedAt      time.Time  `gorm:"index" json:"createdAt"`
}

func (e *Exam) BeforeCreate(*gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// ExamSummary is the short form of an exam embedded in list responses.
type ExamSummary struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Subject        string `json:"subject"`
	TotalQuestions int    `json:"totalQuestions"`
	TotalScore     int    `json:"totalScore"`
}

func (e *Exam) Summary() ExamSummary {
	return ExamSummary{
		ID:             e.ID,
		Title:          e.Title,
		Subject:        e.Subject,
		TotalQuestions: e.TotalQuestions,
		TotalScore:     e.TotalScore,
	}
}

// ExamDistribution hands an exam to a branch, optionally narrowed to a class
// or to an explicit student list (see DistributionStudent).
type ExamDistribution struct {
	ID                   string    `gorm:"primaryKey;size:36" json:"id"`
	ExamID               string    `gorm:"size:36;index;not null" json:"examId"`
	BranchID             string    `gorm:"size:64;index;not null" json:"branchId"`
	ClassID              *string   `gorm:"size:36;index" json:"classId"`
	ParentDistributionID *string   `gorm:"size:36" json:"parentDistributionId"`
	StartDate            time.Time `gorm:"not null" json:"startDate"`
	EndDate              time.Time `gorm:"not null" json:"endDate"`
	DistributedBy        string    `gorm:"size:36" json:"distributedBy"`
	CreatedAt            time.Time `json:"createdAt"`
}

func (d *ExamDistribution) BeforeCreate(*gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

type DistributionStudent struct {
	DistributionID string `gorm:"primaryKey;size:36" json:"distributionId"`
	StudentID      string `gorm:"primaryKey;size:36;index" json:"studentId"`
}

// Answers maps a question number (as a string key) to the mark recorded for
// it. A mark of 1 means the question was answered correctly.
type Answers map[string]int

// ExamAttempt is not started while absent, in progress while SubmittedAt is
// nil and submitted afterwards.
type ExamAttempt struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	ExamID         string     `gorm:"size:36;index;not null" json:"examId"`
	StudentID      string     `gorm:"size:36;not null;uniqueIndex:idx_attempt_student_distribution" json:"studentId"`
	DistributionID string     `gorm:"size:36;not null;uniqueIndex:idx_attempt_student_distribution" json:"distributionId"`
	Answers        Answers    `gorm:"type:text;serializer:json" json:"answers"`
	Score          *int       `json:"score"`
	MaxScore       *int       `json:"maxScore"`
	Grade          *int       `json:"grade"`
	CorrectCount   *int       `json:"correctCount"`
	StartedAt      time.Time  `json:"startedAt"`
	SubmittedAt    *time.Time `gorm:"index" json:"submittedAt"`
	GradedAt       *time.Time `json:"gradedAt"`
}

func (a *ExamAttempt) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.StartedAt.IsZero() {
		a.StartedAt = time.Now()
	}
	if a.Answers == nil {
		a.Answers = Answers{}
	}
	return nil
}

func (a *ExamAttempt) Submitted() bool { return a.SubmittedAt != nil }

// AIReport stores the analysis document generated for a submitted attempt.
type AIReport struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	AttemptID   string     `gorm:"size:36;uniqueIndex;not null" json:"attemptId"`
	StudentID   string     `gorm:"size:36;index;not null" json:"studentId"`
	ExamID      string     `gorm:"size:36;index;not null" json:"examId"`
	Analysis    ReportData `gorm:"type:text;serializer:json" json:"analysis"`
	Summary     string     `json:"summary"`
	HTMLContent string     `json:"htmlContent,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func (AIReport) TableName() string { return "ai_reports" }

func (r *AIReport) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
