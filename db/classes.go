package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"exam-server-go/models"
)

// ClassInput holds the editable fields of a class.
type ClassInput struct {
	Name        string
	Grade       string
	Description string
}

// ListClasses returns the classes of a branch in creation order.
func (s *Store) ListClasses(ctx context.Context, branchID string) ([]models.Clazz, error) {
	classes := make([]models.Clazz, 0)
	if err := s.DB.WithContext(ctx).
		Where("branch_id = ?", branchID).
		Order("created_at").
		Find(&classes).Error; err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	return classes, nil
}

func (s *Store) CreateClass(ctx context.Context, branchID string, in ClassInput) (*models.Clazz, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("class name is empty: %w", ErrInvalid)
	}
	c := models.Clazz{
		Name:        in.Name,
		BranchID:    branchID,
		Grade:       in.Grade,
		Description: in.Description,
	}
	if err := s.DB.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, fmt.Errorf("failed to create class: %w", err)
	}
	s.Logger.Info("Class created", zap.String("class_id", c.ID), zap.String("branch_id", branchID))
	return &c, nil
}

// GetClass loads a class of the given branch.
func (s *Store) GetClass(ctx context.Context, id, branchID string) (*models.Clazz, error) {
	var c models.Clazz
	if err := s.DB.WithContext(ctx).
		Where("id = ? AND branch_id = ?", id, branchID).
		First(&c).Error; err != nil {
		return nil, notFound(err, "class")
	}
	return &c, nil
}

func (s *Store) UpdateClass(ctx context.Context, id, branchID string, in ClassInput) (*models.Clazz, error) {
	c, err := s.GetClass(ctx, id, branchID)
	if err != nil {
		return nil, err
	}
	c.Name = in.Name
	c.Grade = in.Grade
	c.Description = in.Description
	if err := s.DB.WithContext(ctx).Save(c).Error; err != nil {
		return nil, fmt.Errorf("failed to update class: %w", err)
	}
	return c, nil
}

// AssignStudent puts a student of the branch into one of its classes.
// A second assignment of the same pair yields ErrConflict.
func (s *Store) AssignStudent(ctx context.Context, classID, studentID, branchID string) error {
	if _, err := s.GetClass(ctx, classID, branchID); err != nil {
		return err
	}
	if _, err := s.GetStudentInBranch(ctx, studentID, branchID); err != nil {
		return err
	}
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.StudentClass{}).
		Where("student_id = ? AND class_id = ?", studentID, classID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check class membership: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("student already in class: %w", ErrConflict)
	}
	link := models.StudentClass{StudentID: studentID, ClassID: classID}
	if err := s.DB.WithContext(ctx).Create(&link).Error; err != nil {
		return fmt.Errorf("failed to assign student: %w", err)
	}
	return nil
}

// UnassignStudent removes a student from a class; absent links are ignored.
func (s *Store) UnassignStudent(ctx context.Context, classID, studentID, branchID string) error {
	if _, err := s.GetClass(ctx, classID, branchID); err != nil {
		return err
	}
	if err := s.DB.WithContext(ctx).
		Where("student_id = ? AND class_id = ?", studentID, classID).
		Delete(&models.StudentClass{}).Error; err != nil {
		return fmt.Errorf("failed to unassign student: %w", err)
	}
	return nil
}

// ClassMembers lists the students of a class with their logins.
func (s *Store) ClassMembers(ctx context.Context, classID, branchID string) ([]models.Student, error) {
	if _, err := s.GetClass(ctx, classID, branchID); err != nil {
		return nil, err
	}
	students := make([]models.Student, 0)
	if err := s.DB.WithContext(ctx).
		Preload("User").
		Where("id IN (?)", s.DB.Model(&models.StudentClass{}).Select("student_id").Where("class_id = ?", classID)).
		Find(&students).Error; err != nil {
		return nil, fmt.Errorf("failed to list class members: %w", err)
	}
	return students, nil
}

func (s *Store) classMemberSet(ctx context.Context, classID string) (map[string]bool, error) {
	var links []models.StudentClass
	if err := s.DB.WithContext(ctx).Where("class_id = ?", classID).Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to load class members: %w", err)
	}
	set := make(map[string]bool, len(links))
	for _, l := range links {
		set[l.StudentID] = true
	}
	return set, nil
}
