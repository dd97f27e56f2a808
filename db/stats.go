package db

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"exam-server-go/models"
)

// BranchActivity is one branch row of the admin dashboard.
type BranchActivity struct {
	BranchID     string `json:"branchId"`
	BranchName   string `json:"branchName"`
	StudentCount int64  `json:"studentCount"`
	ExamCount    int64  `json:"examCount"`
	AverageScore int    `json:"averageScore"`
}

// GradeCount is the number of submitted attempts in one grade band.
type GradeCount struct {
	Grade int   `json:"grade"`
	Count int64 `json:"count"`
}

// AdminStats is the admin dashboard summary.
type AdminStats struct {
	TotalStudents     int64            `json:"totalStudents"`
	TotalBranches     int64            `json:"totalBranches"`
	TotalExams        int64            `json:"totalExams"`
	AverageScore      int              `json:"averageScore"`
	BranchStats       []BranchActivity `json:"branchStats"`
	GradeDistribution []GradeCount     `json:"gradeDistribution"`
}

// RecentExam is an entry of the recent-activity feed.
type RecentExam struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Subject   string    `json:"subject"`
	CreatedAt time.Time `json:"createdAt"`
}

// AdminStats aggregates platform totals. A grade other than "" or "all"
// narrows the student counts to that school year.
func (s *Store) AdminStats(ctx context.Context, grade string) (*AdminStats, error) {
	filterGrade := grade != "" && grade != "all"
	db := s.DB.WithContext(ctx)
	out := &AdminStats{}

	studentQ := db.Model(&models.Student{})
	if filterGrade {
		studentQ = studentQ.Where("grade = ?", grade)
	}
	if err := studentQ.Count(&out.TotalStudents).Error; err != nil {
		return nil, fmt.Errorf("failed to count students: %w", err)
	}
	if err := db.Model(&models.Branch{}).Count(&out.TotalBranches).Error; err != nil {
		return nil, fmt.Errorf("failed to count branches: %w", err)
	}
	if err := db.Model(&models.Exam{}).Count(&out.TotalExams).Error; err != nil {
		return nil, fmt.Errorf("failed to count exams: %w", err)
	}
	avg, err := s.averageSubmittedScore(ctx, "")
	if err != nil {
		return nil, err
	}
	out.AverageScore = avg

	var branches []models.Branch
	if err := db.Order("display_order").Find(&branches).Error; err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	out.BranchStats = make([]BranchActivity, 0, len(branches))
	for _, b := range branches {
		row := BranchActivity{BranchID: b.ID, BranchName: b.Name}
		q := db.Model(&models.Student{}).Where("branch_id = ?", b.ID)
		if filterGrade {
			q = q.Where("grade = ?", grade)
		}
		if err := q.Count(&row.StudentCount).Error; err != nil {
			return nil, fmt.Errorf("failed to count branch students: %w", err)
		}
		if err := db.Model(&models.ExamAttempt{}).
			Where("student_id IN (?)", s.DB.Model(&models.Student{}).Select("id").Where("branch_id = ?", b.ID)).
			Count(&row.ExamCount).Error; err != nil {
			return nil, fmt.Errorf("failed to count branch attempts: %w", err)
		}
		if row.AverageScore, err = s.averageSubmittedScore(ctx, b.ID); err != nil {
			return nil, err
		}
		out.BranchStats = append(out.BranchStats, row)
	}

	var bands []struct {
		Grade int
		Count int64
	}
	if err := db.Model(&models.ExamAttempt{}).
		Select("grade, COUNT(*) AS count").
		Where("submitted_at IS NOT NULL AND grade IS NOT NULL").
		Group("grade").
		Scan(&bands).Error; err != nil {
		return nil, fmt.Errorf("failed to count grades: %w", err)
	}
	byGrade := make(map[int]int64, len(bands))
	for _, b := range bands {
		byGrade[b.Grade] = b.Count
	}
	out.GradeDistribution = make([]GradeCount, 0, 9)
	for g := 1; g <= 9; g++ {
		out.GradeDistribution = append(out.GradeDistribution, GradeCount{Grade: g, Count: byGrade[g]})
	}
	return out, nil
}

// averageSubmittedScore is the rounded mean score of submitted attempts,
// optionally limited to one branch.
func (s *Store) averageSubmittedScore(ctx context.Context, branchID string) (int, error) {
	q := s.DB.WithContext(ctx).Model(&models.ExamAttempt{}).Where("submitted_at IS NOT NULL")
	if branchID != "" {
		q = q.Where("student_id IN (?)", s.DB.Model(&models.Student{}).Select("id").Where("branch_id = ?", branchID))
	}
	var avg sql.NullFloat64
	if err := q.Select("AVG(score)").Scan(&avg).Error; err != nil {
		return 0, fmt.Errorf("failed to average scores: %w", err)
	}
	if !avg.Valid {
		return 0, nil
	}
	return int(math.Round(avg.Float64)), nil
}

// RecentExams returns the newest exams.
func (s *Store) RecentExams(ctx context.Context, limit int) ([]RecentExam, error) {
	var exams []models.Exam
	if err := s.DB.WithContext(ctx).
		Select("id", "title", "subject", "created_at").
		Order("created_at DESC").
		Limit(limit).
		Find(&exams).Error; err != nil {
		return nil, fmt.Errorf("failed to list recent exams: %w", err)
	}
	out := make([]RecentExam, 0, len(exams))
	for _, e := range exams {
		out = append(out, RecentExam{ID: e.ID, Title: e.Title, Subject: e.Subject, CreatedAt: e.CreatedAt})
	}
	return out, nil
}
