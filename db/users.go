package db

import (
	"context"
	"fmt"

	"exam-server-go/models"
)

// GetUserByUsername loads an account by login name.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := s.DB.WithContext(ctx).Where("username = ?", username).First(&u).Error
	if err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

// UsernameTaken reports whether a login name is already in use.
func (s *Store) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return count > 0, nil
}

// Authenticate returns the active account matching the credentials.
// Unknown users, inactive users and wrong passwords all yield ErrNotFound.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	u, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !u.IsActive || !VerifyPassword(password, u.PasswordHash) {
		return nil, fmt.Errorf("credentials: %w", ErrNotFound)
	}
	return u, nil
}

// BranchManager returns the manager account of a branch.
func (s *Store) BranchManager(ctx context.Context, branchID string) (*models.User, error) {
	var u models.User
	err := s.DB.WithContext(ctx).
		Where("branch_id = ? AND role = ?", branchID, models.RoleBranch).
		Order("created_at").
		First(&u).Error
	if err != nil {
		return nil, notFound(err, "branch manager")
	}
	return &u, nil
}

// StudentAccount returns the login of a student in the given branch.
func (s *Store) StudentAccount(ctx context.Context, studentID, branchID string) (*models.User, error) {
	st, err := s.GetStudentInBranch(ctx, studentID, branchID)
	if err != nil {
		return nil, err
	}
	return s.GetUserByID(ctx, st.UserID)
}

// ParentAccount returns the login of a parent in the given branch.
func (s *Store) ParentAccount(ctx context.Context, parentID, branchID string) (*models.User, error) {
	var p models.Parent
	err := s.DB.WithContext(ctx).
		Where("id = ? AND branch_id = ?", parentID, branchID).
		First(&p).Error
	if err != nil {
		return nil, notFound(err, "parent")
	}
	return s.GetUserByID(ctx, p.UserID)
}
