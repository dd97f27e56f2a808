package db

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"exam-server-go/models"
)

// MinPhoneDigits is the shortest phone accepted as a student login.
const MinPhoneDigits = 4

// PhoneDigits strips everything but digits from a phone number.
func PhoneDigits(phone string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
}

// InitialPassword is the first password of a student account: the last four
// digits of the phone number.
func InitialPassword(phone string) string {
	d := PhoneDigits(phone)
	if len(d) <= MinPhoneDigits {
		return d
	}
	return d[len(d)-MinPhoneDigits:]
}

// StudentInput holds the fields a branch manager supplies for a student.
type StudentInput struct {
	Name        string
	Phone       string
	School      string
	Grade       string
	ParentPhone string
	// Password, when set on update, replaces the current password.
	Password string
}

// StudentProfile is a student with login and branch.
type StudentProfile struct {
	models.Student
	Branch *models.Branch `json:"branch"`
}

// ParentBrief is the linked parent shown in the student list.
type ParentBrief struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	User   struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	} `json:"user"`
}

// StudentWithParent is one row of the branch student list.
type StudentWithParent struct {
	models.Student
	Parent *ParentBrief `json:"parent"`
}

// StudentByUserID loads the student profile behind a login.
func (s *Store) StudentByUserID(ctx context.Context, userID string) (*models.Student, error) {
	var st models.Student
	if err := s.DB.WithContext(ctx).Preload("User").Where("user_id = ?", userID).First(&st).Error; err != nil {
		return nil, notFound(err, "student")
	}
	return &st, nil
}

func (s *Store) GetStudent(ctx context.Context, id string) (*models.Student, error) {
	var st models.Student
	if err := s.DB.WithContext(ctx).Preload("User").First(&st, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "student")
	}
	return &st, nil
}

// GetStudentInBranch loads a student only if it belongs to branchID.
func (s *Store) GetStudentInBranch(ctx context.Context, id, branchID string) (*models.Student, error) {
	var st models.Student
	if err := s.DB.WithContext(ctx).
		Preload("User").
		Where("id = ? AND branch_id = ?", id, branchID).
		First(&st).Error; err != nil {
		return nil, notFound(err, "student")
	}
	return &st, nil
}

// MyProfile returns the student behind a login with its branch.
func (s *Store) MyProfile(ctx context.Context, userID string) (*StudentProfile, error) {
	st, err := s.StudentByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := &StudentProfile{Student: *st}
	if b, err := s.GetBranch(ctx, st.BranchID); err == nil {
		p.Branch = b
	}
	return p, nil
}

// ListStudents returns the branch's students by enrollment with their first
// linked parent.
func (s *Store) ListStudents(ctx context.Context, branchID string) ([]StudentWithParent, error) {
	var students []models.Student
	if err := s.DB.WithContext(ctx).
		Preload("User").
		Where("branch_id = ?", branchID).
		Order("enrollment_date").
		Find(&students).Error; err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}

	var parents []models.Parent
	if err := s.DB.WithContext(ctx).
		Preload("User").
		Where("branch_id = ?", branchID).
		Find(&parents).Error; err != nil {
		return nil, fmt.Errorf("failed to list parents: %w", err)
	}
	parentByID := make(map[string]*models.Parent, len(parents))
	for i := range parents {
		parentByID[parents[i].ID] = &parents[i]
	}
	var links []models.StudentParent
	if err := s.DB.WithContext(ctx).
		Where("parent_id IN (?)", s.DB.Model(&models.Parent{}).Select("id").Where("branch_id = ?", branchID)).
		Order("parent_id").
		Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to list parent links: %w", err)
	}
	firstParent := make(map[string]*models.Parent)
	for _, l := range links {
		if _, ok := firstParent[l.StudentID]; ok {
			continue
		}
		if p := parentByID[l.ParentID]; p != nil {
			firstParent[l.StudentID] = p
		}
	}

	out := make([]StudentWithParent, 0, len(students))
	for _, st := range students {
		row := StudentWithParent{Student: st}
		if p := firstParent[st.ID]; p != nil {
			brief := &ParentBrief{ID: p.ID, UserID: p.UserID}
			if p.User != nil {
				brief.User.Name = p.User.Name
				brief.User.Phone = p.User.Phone
			}
			row.Parent = brief
		}
		out = append(out, row)
	}
	return out, nil
}

// CreateStudent opens a student login keyed by phone number. The phone must
// have at least four digits and must not already be a username.
func (s *Store) CreateStudent(ctx context.Context, branchID string, in StudentInput) (*models.Student, error) {
	if in.Name == "" || in.Phone == "" {
		return nil, fmt.Errorf("name and phone are required: %w", ErrInvalid)
	}
	if len(PhoneDigits(in.Phone)) < MinPhoneDigits {
		return nil, fmt.Errorf("phone %q too short: %w", in.Phone, ErrInvalid)
	}
	taken, err := s.UsernameTaken(ctx, in.Phone)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("phone %q: %w", in.Phone, ErrConflict)
	}
	hash, err := HashPassword(InitialPassword(in.Phone))
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username:     in.Phone,
		PasswordHash: hash,
		Role:         models.RoleStudent,
		Name:         in.Name,
		Phone:        in.Phone,
		BranchID:     &branchID,
		IsActive:     true,
	}
	student := models.Student{
		BranchID:       branchID,
		School:         in.School,
		Grade:          in.Grade,
		ParentPhone:    in.ParentPhone,
		EnrollmentDate: s.Now(),
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create student user: %w", err)
		}
		student.UserID = user.ID
		if err := tx.Create(&student).Error; err != nil {
			return fmt.Errorf("failed to create student: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	student.User = &user
	s.Logger.Debug("Student created", zap.String("student_id", student.ID), zap.String("branch_id", branchID))
	return &student, nil
}

// UpdateStudent edits a branch student. A new phone re-keys the username.
func (s *Store) UpdateStudent(ctx context.Context, id, branchID string, in StudentInput) (*models.Student, error) {
	st, err := s.GetStudentInBranch(ctx, id, branchID)
	if err != nil {
		return nil, err
	}
	user, err := s.GetUserByID(ctx, st.UserID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Name != "" {
		updates["name"] = in.Name
	}
	if in.Phone != "" && in.Phone != user.Phone {
		if len(PhoneDigits(in.Phone)) < MinPhoneDigits {
			return nil, fmt.Errorf("phone %q too short: %w", in.Phone, ErrInvalid)
		}
		other, err := s.GetUserByUsername(ctx, in.Phone)
		switch {
		case err == nil && other.ID != user.ID:
			return nil, fmt.Errorf("phone %q: %w", in.Phone, ErrConflict)
		case err != nil && !isNotFound(err):
			return nil, err
		}
		updates["phone"] = in.Phone
		updates["username"] = in.Phone
	}
	if strings.TrimSpace(in.Password) != "" {
		hash, err := HashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		updates["password_hash"] = hash
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to update student user: %w", err)
			}
		}
		if err := tx.Model(&models.Student{}).Where("id = ?", st.ID).Updates(map[string]interface{}{
			"school":       in.School,
			"grade":        in.Grade,
			"parent_phone": in.ParentPhone,
		}).Error; err != nil {
			return fmt.Errorf("failed to update student: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetStudent(ctx, st.ID)
}

// LatestExam is the most recent submitted result of a student.
type LatestExam struct {
	Title       string     `json:"title"`
	Score       *int       `json:"score"`
	MaxScore    *int       `json:"maxScore"`
	Grade       *int       `json:"grade"`
	Percentage  int        `json:"percentage"`
	SubmittedAt *time.Time `json:"submittedAt"`
}

// BranchStudent is one row of the branch results overview.
type BranchStudent struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Grade      string      `json:"grade"`
	LatestExam *LatestExam `json:"latestExam"`
}

// BranchStudents lists the branch's students with their latest result.
func (s *Store) BranchStudents(ctx context.Context, branchID string) ([]BranchStudent, error) {
	var students []models.Student
	if err := s.DB.WithContext(ctx).
		Preload("User").
		Where("branch_id = ?", branchID).
		Order("enrollment_date").
		Find(&students).Error; err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}

	var attempts []models.ExamAttempt
	if err := s.DB.WithContext(ctx).
		Where("submitted_at IS NOT NULL AND student_id IN (?)",
			s.DB.Model(&models.Student{}).Select("id").Where("branch_id = ?", branchID)).
		Order("submitted_at").
		Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	latest := make(map[string]*models.ExamAttempt, len(attempts))
	for i := range attempts {
		latest[attempts[i].StudentID] = &attempts[i]
	}

	examIDs := make([]string, 0, len(latest))
	for _, a := range latest {
		examIDs = append(examIDs, a.ExamID)
	}
	titles := make(map[string]string, len(examIDs))
	if len(examIDs) > 0 {
		var exams []models.Exam
		if err := s.DB.WithContext(ctx).Select("id", "title").Where("id IN ?", examIDs).Find(&exams).Error; err != nil {
			return nil, fmt.Errorf("failed to load exams: %w", err)
		}
		for _, e := range exams {
			titles[e.ID] = e.Title
		}
	}

	out := make([]BranchStudent, 0, len(students))
	for _, st := range students {
		row := BranchStudent{ID: st.ID, Grade: st.Grade}
		if st.User != nil {
			row.Name = st.User.Name
		}
		if a := latest[st.ID]; a != nil {
			le := &LatestExam{
				Title:       titles[a.ExamID],
				Score:       a.Score,
				MaxScore:    a.MaxScore,
				Grade:       a.Grade,
				SubmittedAt: a.SubmittedAt,
			}
			if a.MaxScore != nil && *a.MaxScore > 0 && a.Score != nil {
				le.Percentage = int(math.Round(float64(*a.Score) / float64(*a.MaxScore) * 100))
			}
			row.LatestExam = le
		}
		out = append(out, row)
	}
	return out, nil
}

// BranchStats summarizes a branch's activity.
type BranchStats struct {
	TotalStudents     int64   `json:"totalStudents"`
	TotalAttempts     int64   `json:"totalAttempts"`
	CompletedAttempts int64   `json:"completedAttempts"`
	AvgScore          float64 `json:"avgScore"`
}

func (s *Store) BranchStats(ctx context.Context, branchID string) (*BranchStats, error) {
	var st BranchStats
	if err := s.DB.WithContext(ctx).Model(&models.Student{}).
		Where("branch_id = ?", branchID).Count(&st.TotalStudents).Error; err != nil {
		return nil, fmt.Errorf("failed to count students: %w", err)
	}
	studentIDs := s.DB.Model(&models.Student{}).Select("id").Where("branch_id = ?", branchID)
	if err := s.DB.WithContext(ctx).Model(&models.ExamAttempt{}).
		Where("student_id IN (?)", studentIDs).Count(&st.TotalAttempts).Error; err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}

	var agg struct {
		Count int64
		Sum   float64
	}
	if err := s.DB.WithContext(ctx).Model(&models.ExamAttempt{}).
		Select("COUNT(*) AS count, COALESCE(SUM(score), 0) AS sum").
		Where("submitted_at IS NOT NULL AND student_id IN (?)", studentIDs).
		Scan(&agg).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate scores: %w", err)
	}
	st.CompletedAttempts = agg.Count
	if agg.Count > 0 {
		st.AvgScore = math.Round(agg.Sum/float64(agg.Count)*10) / 10
	}
	return &st, nil
}
