package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"exam-server-go/models"
)

// BranchWithManager is a branch row joined with its manager login.
type BranchWithManager struct {
	models.Branch
	Username string `json:"username,omitempty"`
	UserID   string `json:"userId,omitempty"`
}

// NewBranch carries everything needed to open a branch and its manager account.
type NewBranch struct {
	ID          string
	Name        string
	Address     string
	Phone       string
	ManagerName string
	Username    string
	Password    string
}

// ListBranches returns every branch by display order with its manager login.
func (s *Store) ListBranches(ctx context.Context) ([]BranchWithManager, error) {
	var branches []models.Branch
	if err := s.DB.WithContext(ctx).Order("display_order, created_at").Find(&branches).Error; err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}

	var managers []models.User
	if err := s.DB.WithContext(ctx).
		Where("role = ?", models.RoleBranch).
		Order("created_at").
		Find(&managers).Error; err != nil {
		return nil, fmt.Errorf("failed to list branch managers: %w", err)
	}
	byBranch := make(map[string]models.User, len(managers))
	for _, m := range managers {
		if m.BranchID == nil {
			continue
		}
		if _, seen := byBranch[*m.BranchID]; !seen {
			byBranch[*m.BranchID] = m
		}
	}

	out := make([]BranchWithManager, 0, len(branches))
	for _, b := range branches {
		row := BranchWithManager{Branch: b}
		if m, ok := byBranch[b.ID]; ok {
			row.Username = m.Username
			row.UserID = m.ID
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *Store) GetBranch(ctx context.Context, id string) (*models.Branch, error) {
	var b models.Branch
	if err := s.DB.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "branch")
	}
	return &b, nil
}

// CreateBranch opens a branch and its manager login in one transaction.
// A taken username yields ErrConflict.
func (s *Store) CreateBranch(ctx context.Context, in NewBranch) (*BranchWithManager, error) {
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

	var maxOrder int
	if err := s.DB.WithContext(ctx).Model(&models.Branch{}).
		Select("COALESCE(MAX(display_order), -1)").Scan(&maxOrder).Error; err != nil {
		return nil, fmt.Errorf("failed to read display order: %w", err)
	}

	branch := models.Branch{
		ID:           in.ID,
		Name:         in.Name,
		Address:      in.Address,
		Phone:        in.Phone,
		ManagerName:  in.ManagerName,
		DisplayOrder: maxOrder + 1,
	}
	managerName := in.ManagerName
	if managerName == "" {
		managerName = in.Name
	}

	var manager models.User
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&branch).Error; err != nil {
			return fmt.Errorf("failed to create branch: %w", err)
		}
		manager = models.User{
			Username:     in.Username,
			PasswordHash: hash,
			Role:         models.RoleBranch,
			Name:         managerName,
			BranchID:     &branch.ID,
			IsActive:     true,
		}
		if err := tx.Create(&manager).Error; err != nil {
			return fmt.Errorf("failed to create branch manager: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("Branch created", zap.String("branch_id", branch.ID), zap.String("manager", manager.Username))
	return &BranchWithManager{Branch: branch, Username: manager.Username, UserID: manager.ID}, nil
}

// BranchUpdate holds the editable branch fields.
type BranchUpdate struct {
	Name        string
	Address     string
	Phone       string
	ManagerName string
}

func (s *Store) UpdateBranch(ctx context.Context, id string, in BranchUpdate) (*models.Branch, error) {
	b, err := s.GetBranch(ctx, id)
	if err != nil {
		return nil, err
	}
	b.Name = in.Name
	b.Address = in.Address
	b.Phone = in.Phone
	b.ManagerName = in.ManagerName
	if err := s.DB.WithContext(ctx).Save(b).Error; err != nil {
		return nil, fmt.Errorf("failed to update branch: %w", err)
	}
	return b, nil
}

// DeleteBranch removes a branch together with its accounts, classes,
// distributions, attempts and reports.
func (s *Store) DeleteBranch(ctx context.Context, id string) error {
	if _, err := s.GetBranch(ctx, id); err != nil {
		return err
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		studentIDs := tx.Model(&models.Student{}).Select("id").Where("branch_id = ?", id)
		parentIDs := tx.Model(&models.Parent{}).Select("id").Where("branch_id = ?", id)
		classIDs := tx.Model(&models.Clazz{}).Select("id").Where("branch_id = ?", id)
		distIDs := tx.Model(&models.ExamDistribution{}).Select("id").Where("branch_id = ?", id)

		steps := []struct {
			what string
			run  func() error
		}{
			{"reports", func() error {
				return tx.Where("student_id IN (?)", studentIDs).Delete(&models.AIReport{}).Error
			}},
			{"attempts", func() error {
				return tx.Where("student_id IN (?) OR distribution_id IN (?)", studentIDs, distIDs).Delete(&models.ExamAttempt{}).Error
			}},
			{"distribution students", func() error {
				return tx.Where("distribution_id IN (?)", distIDs).Delete(&models.DistributionStudent{}).Error
			}},
			{"distributions", func() error {
				return tx.Where("branch_id = ?", id).Delete(&models.ExamDistribution{}).Error
			}},
			{"class members", func() error {
				return tx.Where("class_id IN (?)", classIDs).Delete(&models.StudentClass{}).Error
			}},
			{"classes", func() error {
				return tx.Where("branch_id = ?", id).Delete(&models.Clazz{}).Error
			}},
			{"parent links", func() error {
				return tx.Where("student_id IN (?) OR parent_id IN (?)", studentIDs, parentIDs).Delete(&models.StudentParent{}).Error
			}},
			{"students", func() error {
				return tx.Where("branch_id = ?", id).Delete(&models.Student{}).Error
			}},
			{"parents", func() error {
				return tx.Where("branch_id = ?", id).Delete(&models.Parent{}).Error
			}},
			{"users", func() error {
				return tx.Where("branch_id = ?", id).Delete(&models.User{}).Error
			}},
			{"branch", func() error {
				return tx.Where("id = ?", id).Delete(&models.Branch{}).Error
			}},
		}
		for _, step := range steps {
			if err := step.run(); err != nil {
				return fmt.Errorf("failed to delete %s: %w", step.what, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.Logger.Info("Branch deleted", zap.String("branch_id", id))
	return nil
}

// ReorderBranches sets each branch's display order to its index in ids.
func (s *Store) ReorderBranches(ctx context.Context, ids []string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, id := range ids {
			if err := tx.Model(&models.Branch{}).Where("id = ?", id).Update("display_order", i).Error; err != nil {
				return fmt.Errorf("failed to reorder branch %s: %w", id, err)
			}
		}
		return nil
	})
}
