package db

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"exam-server-go/models"
)

// ParentInput holds what a branch manager supplies for a parent account.
type ParentInput struct {
	Username  string
	Password  string
	Name      string
	Phone     string
	StudentID string
}

// ListParents returns the branch's parents ordered by name.
func (s *Store) ListParents(ctx context.Context, branchID string) ([]models.Parent, error) {
	parents := make([]models.Parent, 0)
	if err := s.DB.WithContext(ctx).
		Preload("User").
		Where("branch_id = ?", branchID).
		Find(&parents).Error; err != nil {
		return nil, fmt.Errorf("failed to list parents: %w", err)
	}
	sort.SliceStable(parents, func(i, j int) bool {
		return parentName(&parents[i]) < parentName(&parents[j])
	})
	return parents, nil
}

// CreateParent opens a parent login and links it to a student of the branch.
func (s *Store) CreateParent(ctx context.Context, branchID string, in ParentInput) (*models.Parent, error) {
	if in.Username == "" || in.Password == "" || in.Name == "" || in.StudentID == "" {
		return nil, fmt.Errorf("parent fields missing: %w", ErrInvalid)
	}
	if _, err := s.GetStudentInBranch(ctx, in.StudentID, branchID); err != nil {
		return nil, err
	}
	taken, err := s.UsernameTaken(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("username %q: %w", in.Username, ErrConflict)
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username:     in.Username,
		PasswordHash: hash,
		Role:         models.RoleParent,
		Name:         in.Name,
		Phone:        in.Phone,
		BranchID:     &branchID,
		IsActive:     true,
	}
	parent := models.Parent{BranchID: branchID}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create parent user: %w", err)
		}
		parent.UserID = user.ID
		if err := tx.Create(&parent).Error; err != nil {
			return fmt.Errorf("failed to create parent: %w", err)
		}
		link := models.StudentParent{StudentID: in.StudentID, ParentID: parent.ID}
		if err := tx.Create(&link).Error; err != nil {
			return fmt.Errorf("failed to link parent: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	parent.User = &user
	return &parent, nil
}

func parentName(p *models.Parent) string {
	if p.User == nil {
		return ""
	}
	return p.User.Name
}
