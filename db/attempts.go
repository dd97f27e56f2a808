package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"exam-server-go/models"
	"exam-server-go/scoring"
)

// GradedAttempt is an attempt after grading with its rounded percentage.
type GradedAttempt struct {
	models.ExamAttempt
	Percentage int `json:"percentage"`
}

// StudentQuestion is a question with the answer key and explanation removed.
type StudentQuestion struct {
	Number       int    `json:"number"`
	Difficulty   string `json:"difficulty,omitempty"`
	Category     string `json:"category,omitempty"`
	Domain       string `json:"domain,omitempty"`
	Subcategory  string `json:"subcategory,omitempty"`
	TypeAnalysis string `json:"typeAnalysis,omitempty"`
	Points       int    `json:"points"`
}

// StudentExam is an exam as shown to a student sitting it.
type StudentExam struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Subject        string            `json:"subject"`
	Grade          string            `json:"grade,omitempty"`
	Description    string            `json:"description,omitempty"`
	TotalQuestions int               `json:"totalQuestions"`
	TotalScore     int               `json:"totalScore"`
	Questions      []StudentQuestion `json:"questionsData"`
}

// MyExamDetail is the payload a student needs to sit a distributed exam.
type MyExamDetail struct {
	Exam         StudentExam             `json:"exam"`
	Distribution models.ExamDistribution `json:"distribution"`
	Attempt      *models.ExamAttempt     `json:"attempt"`
}

// HideAnswers strips the answer key from an exam.
func HideAnswers(e *models.Exam) StudentExam {
	out := StudentExam{
		ID:             e.ID,
		Title:          e.Title,
		Subject:        e.Subject,
		Grade:          e.Grade,
		Description:    e.Description,
		TotalQuestions: e.TotalQuestions,
		TotalScore:     e.TotalScore,
		Questions:      make([]StudentQuestion, 0, len(e.Questions)),
	}
	for _, q := range e.Questions {
		out.Questions = append(out.Questions, StudentQuestion{
			Number:       q.Number,
			Difficulty:   q.Difficulty,
			Category:     q.Category,
			Domain:       q.Domain,
			Subcategory:  q.Subcategory,
			TypeAnalysis: q.TypeAnalysis,
			Points:       q.Points,
		})
	}
	return out
}

// MyExamDetail loads a distribution for a student who is targeted by it.
func (s *Store) MyExamDetail(ctx context.Context, student *models.Student, distID string) (*MyExamDetail, error) {
	d, err := s.GetDistribution(ctx, distID)
	if err != nil {
		return nil, err
	}
	ok, err := s.IsEligible(ctx, d, student)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("distribution %s: %w", distID, ErrForbidden)
	}
	exam, err := s.GetExam(ctx, d.ExamID)
	if err != nil {
		return nil, err
	}
	attempt, err := s.findAttempt(ctx, s.DB.WithContext(ctx), student.ID, d.ID)
	if err != nil {
		return nil, err
	}
	return &MyExamDetail{Exam: HideAnswers(exam), Distribution: *d, Attempt: attempt}, nil
}

func (s *Store) GetAttempt(ctx context.Context, id string) (*models.ExamAttempt, error) {
	var a models.ExamAttempt
	if err := s.DB.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "attempt")
	}
	return &a, nil
}

// findAttempt returns the attempt of a student on a distribution or nil.
func (s *Store) findAttempt(_ context.Context, tx *gorm.DB, studentID, distID string) (*models.ExamAttempt, error) {
	var a models.ExamAttempt
	err := tx.Where("student_id = ? AND distribution_id = ?", studentID, distID).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load attempt: %w", err)
	}
	return &a, nil
}

// AuthorizeAttempt checks that viewer may see the attempt: students their
// own, parents their children's, branch managers their branch's.
func (s *Store) AuthorizeAttempt(ctx context.Context, viewer *models.SessionUser, a *models.ExamAttempt) error {
	switch viewer.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleStudent:
		me, err := s.StudentByUserID(ctx, viewer.ID)
		if err != nil || me.ID != a.StudentID {
			return fmt.Errorf("attempt %s: %w", a.ID, ErrForbidden)
		}
		return nil
	case models.RoleBranch:
		st, err := s.GetStudent(ctx, a.StudentID)
		if err != nil {
			return err
		}
		if st.BranchID != viewer.BranchID {
			return fmt.Errorf("attempt %s: %w", a.ID, ErrForbidden)
		}
		return nil
	case models.RoleParent:
		var count int64
		err := s.DB.WithContext(ctx).Model(&models.StudentParent{}).
			Where("student_id = ? AND parent_id IN (?)", a.StudentID,
				s.DB.Model(&models.Parent{}).Select("id").Where("user_id = ?", viewer.ID)).
			Count(&count).Error
		if err != nil {
			return fmt.Errorf("failed to check parent link: %w", err)
		}
		if count == 0 {
			return fmt.Errorf("attempt %s: %w", a.ID, ErrForbidden)
		}
		return nil
	}
	return fmt.Errorf("role %q: %w", viewer.Role, ErrForbidden)
}

// StartAttempt opens the student's attempt on a distribution. The student
// must be targeted, the window must be open and no attempt may exist yet.
func (s *Store) StartAttempt(ctx context.Context, student *models.Student, distID string) (*models.ExamAttempt, error) {
	d, err := s.GetDistribution(ctx, distID)
	if err != nil {
		return nil, err
	}
	ok, err := s.IsEligible(ctx, d, student)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("distribution %s: %w", distID, ErrForbidden)
	}
	if !WindowOpen(d, s.Now()) {
		return nil, fmt.Errorf("distribution %s outside its window: %w", distID, ErrInvalid)
	}
	return s.createAttempt(ctx, d, student.ID)
}

// BranchCreateAttempt opens an attempt on behalf of a branch student so the
// manager can enter marks from a paper sheet.
func (s *Store) BranchCreateAttempt(ctx context.Context, branchID, studentID, distID string) (*models.ExamAttempt, error) {
	if _, err := s.GetStudentInBranch(ctx, studentID, branchID); err != nil {
		return nil, err
	}
	var d models.ExamDistribution
	if err := s.DB.WithContext(ctx).
		Where("id = ? AND branch_id = ?", distID, branchID).
		First(&d).Error; err != nil {
		return nil, notFound(err, "distribution")
	}
	return s.createAttempt(ctx, &d, studentID)
}

func (s *Store) createAttempt(ctx context.Context, d *models.ExamDistribution, studentID string) (*models.ExamAttempt, error) {
	var attempt models.ExamAttempt
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.findAttempt(ctx, tx, studentID, d.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("attempt exists for distribution %s: %w", d.ID, ErrConflict)
		}
		attempt = models.ExamAttempt{
			ExamID:         d.ExamID,
			StudentID:      studentID,
			DistributionID: d.ID,
			Answers:        models.Answers{},
			StartedAt:      s.Now(),
		}
		if err := tx.Create(&attempt).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("attempt exists for distribution %s: %w", d.ID, ErrConflict)
			}
			return fmt.Errorf("failed to create attempt: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("Attempt started",
		zap.String("attempt_id", attempt.ID),
		zap.String("student_id", studentID),
		zap.String("distribution_id", d.ID))
	return &attempt, nil
}

// ownAttempt loads an attempt that belongs to studentID.
func (s *Store) ownAttempt(ctx context.Context, id, studentID string) (*models.ExamAttempt, error) {
	a, err := s.GetAttempt(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.StudentID != studentID {
		return nil, fmt.Errorf("attempt %s: %w", id, ErrForbidden)
	}
	return a, nil
}

// SaveAnswers stores a draft of answers on an unsubmitted attempt.
func (s *Store) SaveAnswers(ctx context.Context, id, studentID string, answers models.Answers) (*models.ExamAttempt, error) {
	a, err := s.ownAttempt(ctx, id, studentID)
	if err != nil {
		return nil, err
	}
	if a.Submitted() {
		return nil, fmt.Errorf("attempt %s already submitted: %w", id, ErrConflict)
	}
	if answers == nil {
		answers = models.Answers{}
	}
	res := s.DB.WithContext(ctx).Model(&models.ExamAttempt{}).
		Where("id = ? AND submitted_at IS NULL", id).
		Select("answers").
		Updates(&models.ExamAttempt{Answers: answers})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to save answers: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("attempt %s already submitted: %w", id, ErrConflict)
	}
	a.Answers = answers
	return a, nil
}

// SubmitAttempt grades and closes the student's own attempt. Nil answers
// grade the last saved draft.
func (s *Store) SubmitAttempt(ctx context.Context, id, studentID string, answers models.Answers) (*GradedAttempt, error) {
	a, err := s.ownAttempt(ctx, id, studentID)
	if err != nil {
		return nil, err
	}
	if a.Submitted() {
		return nil, fmt.Errorf("attempt %s already submitted: %w", id, ErrConflict)
	}
	if answers == nil {
		answers = a.Answers
	}
	return s.grade(ctx, a, answers, true)
}

// BranchGrade enters marks for a branch student's attempt and grades it,
// replacing any earlier grading.
func (s *Store) BranchGrade(ctx context.Context, id, branchID string, answers models.Answers) (*GradedAttempt, error) {
	a, err := s.GetAttempt(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetStudentInBranch(ctx, a.StudentID, branchID); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("attempt %s: %w", id, ErrForbidden)
		}
		return nil, err
	}
	return s.grade(ctx, a, answers, false)
}

var gradedColumns = []string{"answers", "score", "max_score", "grade", "correct_count", "submitted_at", "graded_at"}

// grade scores answers and stamps the attempt. With onlyOpen set the update
// only applies to an attempt that is still unsubmitted.
func (s *Store) grade(ctx context.Context, a *models.ExamAttempt, answers models.Answers, onlyOpen bool) (*GradedAttempt, error) {
	exam, err := s.GetExam(ctx, a.ExamID)
	if err != nil {
		return nil, err
	}
	if answers == nil {
		answers = models.Answers{}
	}
	res := scoring.Grade(exam.Questions, answers, exam.TotalScore)
	now := s.Now()

	q := s.DB.WithContext(ctx).Model(&models.ExamAttempt{}).Where("id = ?", a.ID)
	if onlyOpen {
		q = q.Where("submitted_at IS NULL")
	}
	upd := q.Select(gradedColumns).Updates(&models.ExamAttempt{
		Answers:      answers,
		Score:        &res.Score,
		MaxScore:     &res.MaxScore,
		Grade:        &res.Grade,
		CorrectCount: &res.CorrectCount,
		SubmittedAt:  &now,
		GradedAt:     &now,
	})
	if upd.Error != nil {
		return nil, fmt.Errorf("failed to grade attempt: %w", upd.Error)
	}
	if upd.RowsAffected == 0 {
		return nil, fmt.Errorf("attempt %s already submitted: %w", a.ID, ErrConflict)
	}

	a.Answers = answers
	a.Score = &res.Score
	a.MaxScore = &res.MaxScore
	a.Grade = &res.Grade
	a.CorrectCount = &res.CorrectCount
	a.SubmittedAt = &now
	a.GradedAt = &now

	s.Logger.Info("Attempt graded",
		zap.String("attempt_id", a.ID),
		zap.Int("score", res.Score),
		zap.Int("max_score", res.MaxScore),
		zap.Int("grade", res.Grade))
	return &GradedAttempt{ExamAttempt: *a, Percentage: res.RoundedPercentage()}, nil
}

// CompletedAttempt is a submitted attempt in the branch result list.
type CompletedAttempt struct {
	AttemptID   string     `json:"attemptId"`
	StudentID   string     `json:"studentId"`
	StudentName string     `json:"studentName"`
	BranchID    string     `json:"branchId"`
	ExamID      string     `json:"examId"`
	ExamTitle   string     `json:"examTitle"`
	ExamSubject string     `json:"examSubject"`
	Score       *int       `json:"score"`
	MaxScore    *int       `json:"maxScore"`
	Grade       *int       `json:"grade"`
	SubmittedAt *time.Time `json:"submittedAt"`
	HasReport   bool       `json:"hasReport"`
	ReportID    *string    `json:"reportId"`
}

// CompletedAttempts lists submitted attempts, newest first. An empty
// branchID covers every branch.
func (s *Store) CompletedAttempts(ctx context.Context, branchID string) ([]CompletedAttempt, error) {
	q := s.DB.WithContext(ctx).Where("submitted_at IS NOT NULL").Order("submitted_at DESC")
	if branchID != "" {
		q = q.Where("student_id IN (?)", s.DB.Model(&models.Student{}).Select("id").Where("branch_id = ?", branchID))
	}
	var attempts []models.ExamAttempt
	if err := q.Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to list completed attempts: %w", err)
	}
	if len(attempts) == 0 {
		return []CompletedAttempt{}, nil
	}

	studentIDs := make([]string, 0, len(attempts))
	examIDs := make([]string, 0, len(attempts))
	attemptIDs := make([]string, 0, len(attempts))
	for _, a := range attempts {
		studentIDs = append(studentIDs, a.StudentID)
		examIDs = append(examIDs, a.ExamID)
		attemptIDs = append(attemptIDs, a.ID)
	}
	var students []models.Student
	if err := s.DB.WithContext(ctx).Preload("User").Where("id IN ?", studentIDs).Find(&students).Error; err != nil {
		return nil, fmt.Errorf("failed to load students: %w", err)
	}
	studentByID := make(map[string]*models.Student, len(students))
	for i := range students {
		studentByID[students[i].ID] = &students[i]
	}
	var exams []models.Exam
	if err := s.DB.WithContext(ctx).Select("id", "title", "subject").Where("id IN ?", examIDs).Find(&exams).Error; err != nil {
		return nil, fmt.Errorf("failed to load exams: %w", err)
	}
	examByID := make(map[string]*models.Exam, len(exams))
	for i := range exams {
		examByID[exams[i].ID] = &exams[i]
	}
	reports, err := s.reportIDsByAttempt(ctx, attemptIDs)
	if err != nil {
		return nil, err
	}

	out := make([]CompletedAttempt, 0, len(attempts))
	for _, a := range attempts {
		st, ok := studentByID[a.StudentID]
		if !ok {
			continue
		}
		exam, ok := examByID[a.ExamID]
		if !ok {
			continue
		}
		row := CompletedAttempt{
			AttemptID:   a.ID,
			StudentID:   st.ID,
			BranchID:    st.BranchID,
			ExamID:      exam.ID,
			ExamTitle:   exam.Title,
			ExamSubject: exam.Subject,
			Score:       a.Score,
			MaxScore:    a.MaxScore,
			Grade:       a.Grade,
			SubmittedAt: a.SubmittedAt,
		}
		if st.User != nil {
			row.StudentName = st.User.Name
		}
		if rid, ok := reports[a.ID]; ok {
			row.HasReport = true
			row.ReportID = &rid
		}
		out = append(out, row)
	}
	return out, nil
}

// DeleteAttempt removes a branch student's attempt and its report.
func (s *Store) DeleteAttempt(ctx context.Context, id, branchID string) error {
	a, err := s.GetAttempt(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.GetStudentInBranch(ctx, a.StudentID, branchID); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("attempt %s: %w", id, ErrForbidden)
		}
		return err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("attempt_id = ?", id).Delete(&models.AIReport{}).Error; err != nil {
			return fmt.Errorf("failed to delete report: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&models.ExamAttempt{}).Error; err != nil {
			return fmt.Errorf("failed to delete attempt: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.Logger.Info("Attempt deleted", zap.String("attempt_id", id))
	return nil
}

// ExamAttempts returns every attempt of an exam.
func (s *Store) ExamAttempts(ctx context.Context, examID string) ([]models.ExamAttempt, error) {
	var attempts []models.ExamAttempt
	if err := s.DB.WithContext(ctx).Where("exam_id = ?", examID).Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to list exam attempts: %w", err)
	}
	return attempts, nil
}

// RegradeSubmitted re-scores every submitted attempt against the current
// answer keys and returns how many rows changed.
func (s *Store) RegradeSubmitted(ctx context.Context) (int, error) {
	var attempts []models.ExamAttempt
	if err := s.DB.WithContext(ctx).Where("submitted_at IS NOT NULL").Find(&attempts).Error; err != nil {
		return 0, fmt.Errorf("failed to list submitted attempts: %w", err)
	}
	exams := make(map[string]*models.Exam)
	changed := 0
	for i := range attempts {
		a := &attempts[i]
		exam, ok := exams[a.ExamID]
		if !ok {
			e, err := s.GetExam(ctx, a.ExamID)
			if err != nil {
				s.Logger.Warn("Skipping attempt with missing exam", zap.String("attempt_id", a.ID), zap.Error(err))
				continue
			}
			exams[a.ExamID] = e
			exam = e
		}
		res := scoring.Grade(exam.Questions, a.Answers, exam.TotalScore)
		if intEq(a.Score, res.Score) && intEq(a.MaxScore, res.MaxScore) &&
			intEq(a.Grade, res.Grade) && intEq(a.CorrectCount, res.CorrectCount) {
			continue
		}
		if err := s.DB.WithContext(ctx).Model(&models.ExamAttempt{}).Where("id = ?", a.ID).Updates(map[string]interface{}{
			"score":         res.Score,
			"max_score":     res.MaxScore,
			"grade":         res.Grade,
			"correct_count": res.CorrectCount,
			"graded_at":     s.Now(),
		}).Error; err != nil {
			return changed, fmt.Errorf("failed to regrade attempt %s: %w", a.ID, err)
		}
		changed++
	}
	return changed, nil
}

func intEq(p *int, v int) bool {
	return p != nil && *p == v
}
