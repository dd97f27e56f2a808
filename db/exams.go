package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"exam-server-go/models"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page selects one window of a list. A zero Page means "everything".
type Page struct {
	Number int
	Size   int
}

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Number <= 0 {
		p.Number = 1
	}
	switch {
	case p.Size > MaxPageSize:
		p.Size = MaxPageSize
	case p.Size <= 0:
		p.Size = DefaultPageSize
	}
	return p
}

// Scope is a gorm scope applying offset and limit.
func (p Page) Scope() func(*gorm.DB) *gorm.DB {
	p = p.Normalize()
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset((p.Number - 1) * p.Size).Limit(p.Size)
	}
}

// ListExams returns exams in creation order.
func (s *Store) ListExams(ctx context.Context) ([]models.Exam, error) {
	var exams []models.Exam
	if err := s.DB.WithContext(ctx).Order("created_at").Find(&exams).Error; err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}
	return exams, nil
}

// ListExamsPage returns one page of exams plus the total row count.
func (s *Store) ListExamsPage(ctx context.Context, page Page) ([]models.Exam, int64, error) {
	var total int64
	if err := s.DB.WithContext(ctx).Model(&models.Exam{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count exams: %w", err)
	}
	exams := make([]models.Exam, 0)
	if err := s.DB.WithContext(ctx).Order("created_at").Scopes(page.Scope()).Find(&exams).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list exams: %w", err)
	}
	return exams, total, nil
}

// AvailableExams lists exam summaries for distribution pickers.
func (s *Store) AvailableExams(ctx context.Context) ([]models.ExamSummary, error) {
	exams, err := s.ListExams(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.ExamSummary, 0, len(exams))
	for i := range exams {
		out = append(out, exams[i].Summary())
	}
	return out, nil
}

func (s *Store) GetExam(ctx context.Context, id string) (*models.Exam, error) {
	var e models.Exam
	if err := s.DB.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "exam")
	}
	return &e, nil
}

// CreateExam inserts an exam. Trends default to an empty list.
func (s *Store) CreateExam(ctx context.Context, e *models.Exam) error {
	if e.Trends == nil {
		e.Trends = []models.Trend{}
	}
	if err := s.DB.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("failed to create exam: %w", err)
	}
	s.Logger.Info("Exam created", zap.String("exam_id", e.ID), zap.String("title", e.Title), zap.Int("questions", len(e.Questions)))
	return nil
}

// ExamPatch is a partial exam update; nil fields are left untouched.
type ExamPatch struct {
	Title          *string            `json:"title"`
	Subject        *string            `json:"subject"`
	Grade          *string            `json:"grade"`
	Description    *string            `json:"description"`
	TotalQuestions *int               `json:"totalQuestions"`
	TotalScore     *int               `json:"totalScore"`
	Questions      *[]models.Question `json:"questionsData"`
	Trends         *[]models.Trend    `json:"examTrends"`
	OverallReview  *string            `json:"overallReview"`
}

// PatchExam applies a partial update and returns the stored exam.
func (s *Store) PatchExam(ctx context.Context, id string, p ExamPatch) (*models.Exam, error) {
	e, err := s.GetExam(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Subject != nil {
		e.Subject = *p.Subject
	}
	if p.Grade != nil {
		e.Grade = *p.Grade
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.TotalQuestions != nil {
		e.TotalQuestions = *p.TotalQuestions
	}
	if p.TotalScore != nil {
		e.TotalScore = *p.TotalScore
	}
	if p.Questions != nil {
		e.Questions = *p.Questions
	}
	if p.Trends != nil {
		e.Trends = *p.Trends
	}
	if p.OverallReview != nil {
		e.OverallReview = *p.OverallReview
	}
	if err := s.DB.WithContext(ctx).Save(e).Error; err != nil {
		return nil, fmt.Errorf("failed to update exam: %w", err)
	}
	return e, nil
}

// DeleteExam removes an exam with its distributions, attempts and reports.
// Deleting a missing exam is not an error.
func (s *Store) DeleteExam(ctx context.Context, id string) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		distIDs := tx.Model(&models.ExamDistribution{}).Select("id").Where("exam_id = ?", id)
		if err := tx.Where("exam_id = ?", id).Delete(&models.AIReport{}).Error; err != nil {
			return fmt.Errorf("failed to delete reports: %w", err)
		}
		if err := tx.Where("exam_id = ?", id).Delete(&models.ExamAttempt{}).Error; err != nil {
			return fmt.Errorf("failed to delete attempts: %w", err)
		}
		if err := tx.Where("distribution_id IN (?)", distIDs).Delete(&models.DistributionStudent{}).Error; err != nil {
			return fmt.Errorf("failed to delete distribution students: %w", err)
		}
		if err := tx.Where("exam_id = ?", id).Delete(&models.ExamDistribution{}).Error; err != nil {
			return fmt.Errorf("failed to delete distributions: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&models.Exam{}).Error; err != nil {
			return fmt.Errorf("failed to delete exam: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.Logger.Info("Exam deleted", zap.String("exam_id", id))
	return nil
}
