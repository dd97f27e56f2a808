package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"exam-server-go/models"
)

func (s *Store) GetReport(ctx context.Context, id string) (*models.AIReport, error) {
	var r models.AIReport
	if err := s.DB.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "report")
	}
	return &r, nil
}

func (s *Store) ReportByAttempt(ctx context.Context, attemptID string) (*models.AIReport, error) {
	var r models.AIReport
	if err := s.DB.WithContext(ctx).Where("attempt_id = ?", attemptID).First(&r).Error; err != nil {
		return nil, notFound(err, "report")
	}
	return &r, nil
}

// SaveReport stores a generated report. A report already present for the
// attempt yields ErrConflict.
func (s *Store) SaveReport(ctx context.Context, r *models.AIReport) error {
	err := s.DB.WithContext(ctx).Create(r).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("report for attempt %s: %w", r.AttemptID, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// DeleteAllReports drops every stored report so they can be regenerated.
func (s *Store) DeleteAllReports(ctx context.Context) (int64, error) {
	res := s.DB.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.AIReport{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete reports: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// reportIDsByAttempt maps attempt ids to the ids of their reports.
func (s *Store) reportIDsByAttempt(ctx context.Context, attemptIDs []string) (map[string]string, error) {
	out := make(map[string]string)
	if len(attemptIDs) == 0 {
		return out, nil
	}
	var rows []models.AIReport
	if err := s.DB.WithContext(ctx).
		Select("id", "attempt_id").
		Where("attempt_id IN ?", attemptIDs).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load reports: %w", err)
	}
	for _, r := range rows {
		out[r.AttemptID] = r.ID
	}
	return out, nil
}

// ReportSubject gathers what report generation reads about one attempt.
type ReportSubject struct {
	Attempt  *models.ExamAttempt
	Exam     *models.Exam
	Student  *models.Student
	Siblings []models.ExamAttempt
}

// LoadReportSubject loads the attempt with its exam, student and the other
// attempts of the same exam.
func (s *Store) LoadReportSubject(ctx context.Context, attemptID string) (*ReportSubject, error) {
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	exam, err := s.GetExam(ctx, a.ExamID)
	if err != nil {
		return nil, err
	}
	st, err := s.GetStudent(ctx, a.StudentID)
	if err != nil {
		return nil, err
	}
	siblings, err := s.ExamAttempts(ctx, a.ExamID)
	if err != nil {
		return nil, err
	}
	return &ReportSubject{Attempt: a, Exam: exam, Student: st, Siblings: siblings}, nil
}
