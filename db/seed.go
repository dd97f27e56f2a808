package db

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"exam-server-go/models"
)

// CheckAndSeedData seeds the initial accounts and a sample exam when no
// admin account exists yet. It reports whether seeding ran.
func (s *Store) CheckAndSeedData(ctx context.Context) (bool, error) {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("role = ?", models.RoleAdmin).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check for existing admin: %w", err)
	}
	if count > 0 {
		s.Logger.Info("Existing admin found, skipping seed data", zap.Int64("admins", count))
		return false, nil
	}
	s.Logger.Info("No admin account found, adding initial data")
	if err := s.SeedInitialData(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// SeedInitialData creates an admin, one branch with its manager, one student
// and a sample exam.
func (s *Store) SeedInitialData(ctx context.Context) error {
	hashes := make(map[string]string, 3)
	for _, p := range []string{"allga", "allga1", "password123"} {
		h, err := HashPassword(p)
		if err != nil {
			return err
		}
		hashes[p] = h
	}

	branchID := "branch-gangnam"
	admin := models.User{
		Username:     "allga",
		PasswordHash: hashes["allga"],
		Role:         models.RoleAdmin,
		Name:         "시스템 관리자",
		Email:        "admin@olga.com",
		IsActive:     true,
	}
	branch := models.Branch{
		ID:          branchID,
		Name:        "강남점",
		Address:     "서울시 강남구 테헤란로 123",
		Phone:       "02-1234-5678",
		ManagerName: "김관리",
	}
	manager := models.User{
		Username:     "allga1",
		PasswordHash: hashes["allga1"],
		Role:         models.RoleBranch,
		Name:         "김관리",
		Email:        "gangnam@olga.com",
		BranchID:     &branchID,
		IsActive:     true,
	}
	studentUser := models.User{
		Username:     "kim_minsu",
		PasswordHash: hashes["password123"],
		Role:         models.RoleStudent,
		Name:         "김민수",
		Email:        "minsu@example.com",
		Phone:        "010-9999-8888",
		BranchID:     &branchID,
		IsActive:     true,
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range []interface{}{&admin, &branch, &manager, &studentUser} {
			if err := tx.Create(row).Error; err != nil {
				return fmt.Errorf("failed to seed %T: %w", row, err)
			}
		}
		student := models.Student{
			UserID:      studentUser.ID,
			BranchID:    branchID,
			School:      "강남고등학교",
			Grade:       "고1",
			ParentPhone: "010-1234-5678",
		}
		if err := tx.Create(&student).Error; err != nil {
			return fmt.Errorf("failed to seed student: %w", err)
		}
		exam := sampleExam(admin.ID)
		if err := tx.Create(exam).Error; err != nil {
			return fmt.Errorf("failed to seed exam: %w", err)
		}
		s.Logger.Info("Initial data added",
			zap.String("admin", admin.Username),
			zap.String("manager", manager.Username),
			zap.String("student", studentUser.Username))
		return nil
	})
}

func sampleExam(createdBy string) *models.Exam {
	questions := make([]models.Question, 30)
	total := 0
	for i := range questions {
		difficulty := "상"
		switch {
		case i < 10:
			difficulty = "하"
		case i < 20:
			difficulty = "중"
		}
		points := 3
		if i >= 25 {
			points = 4
		}
		questions[i] = models.Question{
			Number:        i + 1,
			Difficulty:    difficulty,
			Category:      "대수",
			Subcategory:   "이차함수",
			CorrectAnswer: i%5 + 1,
			Points:        points,
		}
		total += points
	}
	return &models.Exam{
		Title:          "수학 모의고사 1회",
		Subject:        "수학",
		Grade:          "고1",
		Description:    "1학기 중간고사 범위",
		TotalQuestions: len(questions),
		TotalScore:     total,
		Questions:      questions,
		Trends: []models.Trend{
			{QuestionNumbers: "1,2,3,4,5", Description: "이차함수의 기본 개념"},
			{QuestionNumbers: "6,7,8,9,10", Description: "이차함수의 그래프"},
		},
		OverallReview: "전체적으로 균형잡힌 출제입니다. 기본 개념부터 심화 문제까지 골고루 출제되었습니다.",
		CreatedBy:     createdBy,
	}
}

// DistributeAll hands every exam to every branch for the next days, skipping
// exam/branch pairs that already have a distribution.
func (s *Store) DistributeAll(ctx context.Context, days int) (created, skipped int, err error) {
	var admin models.User
	if err := s.DB.WithContext(ctx).Where("role = ?", models.RoleAdmin).Order("created_at").First(&admin).Error; err != nil {
		return 0, 0, notFound(err, "admin")
	}
	var branches []models.Branch
	if err := s.DB.WithContext(ctx).Find(&branches).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to list branches: %w", err)
	}
	exams, err := s.ListExams(ctx)
	if err != nil {
		return 0, 0, err
	}
	var existing []models.ExamDistribution
	if err := s.DB.WithContext(ctx).Select("exam_id", "branch_id").Find(&existing).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to list distributions: %w", err)
	}
	type pair struct{ exam, branch string }
	have := make(map[pair]bool, len(existing))
	for _, d := range existing {
		have[pair{d.ExamID, d.BranchID}] = true
	}

	start := s.Now()
	end := start.Add(time.Duration(days) * 24 * time.Hour)
	for _, e := range exams {
		for _, b := range branches {
			if have[pair{e.ID, b.ID}] {
				skipped++
				continue
			}
			d := models.ExamDistribution{
				ExamID:        e.ID,
				BranchID:      b.ID,
				StartDate:     start,
				EndDate:       end,
				DistributedBy: admin.ID,
			}
			if err := s.DB.WithContext(ctx).Create(&d).Error; err != nil {
				return created, skipped, fmt.Errorf("failed to distribute %s to %s: %w", e.ID, b.ID, err)
			}
			s.Logger.Info("Distributed", zap.String("exam", e.Title), zap.String("branch", b.Name))
			created++
		}
	}
	return created, skipped, nil
}
