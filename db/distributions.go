package db

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"exam-server-go/models"
)

// DistributionView is a distribution with its exam summary and parent.
type DistributionView struct {
	models.ExamDistribution
	Exam               models.ExamSummary       `json:"exam"`
	ParentDistribution *models.ExamDistribution `json:"parentDistribution"`
}

// NewDistribution describes one distribution request fanned out over BranchIDs.
type NewDistribution struct {
	ExamID               string
	BranchIDs            []string
	ClassID              *string
	StudentIDs           []string
	StartDate            time.Time
	EndDate              time.Time
	ParentDistributionID *string
	DistributedBy        string
}

// ListDistributions returns distributions in creation order. An empty
// branchID lists every branch.
func (s *Store) ListDistributions(ctx context.Context, branchID string) ([]DistributionView, error) {
	q := s.DB.WithContext(ctx).Order("created_at")
	if branchID != "" {
		q = q.Where("branch_id = ?", branchID)
	}
	var dists []models.ExamDistribution
	if err := q.Find(&dists).Error; err != nil {
		return nil, fmt.Errorf("failed to list distributions: %w", err)
	}

	exams, err := s.examsByID(ctx, dists)
	if err != nil {
		return nil, err
	}

	parentIDs := make([]string, 0)
	for _, d := range dists {
		if d.ParentDistributionID != nil {
			parentIDs = append(parentIDs, *d.ParentDistributionID)
		}
	}
	parents := make(map[string]models.ExamDistribution, len(parentIDs))
	if len(parentIDs) > 0 {
		var rows []models.ExamDistribution
		if err := s.DB.WithContext(ctx).Where("id IN ?", parentIDs).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to load parent distributions: %w", err)
		}
		for _, r := range rows {
			parents[r.ID] = r
		}
	}

	out := make([]DistributionView, 0, len(dists))
	for _, d := range dists {
		exam, ok := exams[d.ExamID]
		if !ok {
			continue
		}
		view := DistributionView{ExamDistribution: d, Exam: exam.Summary()}
		if d.ParentDistributionID != nil {
			if p, ok := parents[*d.ParentDistributionID]; ok {
				view.ParentDistribution = &p
			}
		}
		out = append(out, view)
	}
	return out, nil
}

// CreateDistributions creates one distribution per branch and records the
// explicit student list on each.
func (s *Store) CreateDistributions(ctx context.Context, in NewDistribution) ([]models.ExamDistribution, error) {
	if !in.StartDate.Before(in.EndDate) {
		return nil, fmt.Errorf("start date must precede end date: %w", ErrInvalid)
	}
	if len(in.BranchIDs) == 0 {
		return nil, fmt.Errorf("no target branch: %w", ErrInvalid)
	}
	if _, err := s.GetExam(ctx, in.ExamID); err != nil {
		return nil, err
	}
	if in.ClassID != nil && *in.ClassID == "" {
		in.ClassID = nil
	}

	created := make([]models.ExamDistribution, 0, len(in.BranchIDs))
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, branchID := range in.BranchIDs {
			d := models.ExamDistribution{
				ExamID:               in.ExamID,
				BranchID:             branchID,
				ClassID:              in.ClassID,
				ParentDistributionID: in.ParentDistributionID,
				StartDate:            in.StartDate,
				EndDate:              in.EndDate,
				DistributedBy:        in.DistributedBy,
			}
			if err := tx.Create(&d).Error; err != nil {
				return fmt.Errorf("failed to create distribution: %w", err)
			}
			if err := replaceDistributionStudents(tx, d.ID, in.StudentIDs); err != nil {
				return err
			}
			created = append(created, d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("Exam distributed",
		zap.String("exam_id", in.ExamID),
		zap.Int("branches", len(in.BranchIDs)),
		zap.Int("students", len(in.StudentIDs)))
	return created, nil
}

func replaceDistributionStudents(tx *gorm.DB, distID string, studentIDs []string) error {
	if err := tx.Where("distribution_id = ?", distID).Delete(&models.DistributionStudent{}).Error; err != nil {
		return fmt.Errorf("failed to clear distribution students: %w", err)
	}
	if len(studentIDs) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(studentIDs))
	rows := make([]models.DistributionStudent, 0, len(studentIDs))
	for _, id := range studentIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		rows = append(rows, models.DistributionStudent{DistributionID: distID, StudentID: id})
	}
	if len(rows) == 0 {
		return nil
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to record distribution students: %w", err)
	}
	return nil
}

func (s *Store) GetDistribution(ctx context.Context, id string) (*models.ExamDistribution, error) {
	var d models.ExamDistribution
	if err := s.DB.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "distribution")
	}
	return &d, nil
}

// ownedDistribution loads a distribution and checks it belongs to branchID
// when one is given.
func (s *Store) ownedDistribution(ctx context.Context, id, branchID string) (*models.ExamDistribution, error) {
	d, err := s.GetDistribution(ctx, id)
	if err != nil {
		return nil, err
	}
	if branchID != "" && d.BranchID != branchID {
		return nil, fmt.Errorf("distribution %s: %w", id, ErrForbidden)
	}
	return d, nil
}

// ReassignDistribution retargets a distribution to a class or an explicit
// student list. An empty branchID skips the ownership check.
func (s *Store) ReassignDistribution(ctx context.Context, id, branchID string, classID *string, studentIDs []string) error {
	d, err := s.ownedDistribution(ctx, id, branchID)
	if err != nil {
		return err
	}
	if classID != nil && *classID == "" {
		classID = nil
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(d).Update("class_id", classID).Error; err != nil {
			return fmt.Errorf("failed to update distribution: %w", err)
		}
		return replaceDistributionStudents(tx, d.ID, studentIDs)
	})
}

// DeleteDistribution removes a distribution with its student list, attempts
// and reports. Children keep existing without a parent.
func (s *Store) DeleteDistribution(ctx context.Context, id, branchID string) error {
	if _, err := s.ownedDistribution(ctx, id, branchID); err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		attemptIDs := tx.Model(&models.ExamAttempt{}).Select("id").Where("distribution_id = ?", id)
		if err := tx.Where("attempt_id IN (?)", attemptIDs).Delete(&models.AIReport{}).Error; err != nil {
			return fmt.Errorf("failed to delete reports: %w", err)
		}
		if err := tx.Where("distribution_id = ?", id).Delete(&models.ExamAttempt{}).Error; err != nil {
			return fmt.Errorf("failed to delete attempts: %w", err)
		}
		if err := tx.Where("distribution_id = ?", id).Delete(&models.DistributionStudent{}).Error; err != nil {
			return fmt.Errorf("failed to delete distribution students: %w", err)
		}
		if err := tx.Model(&models.ExamDistribution{}).
			Where("parent_distribution_id = ?", id).
			Update("parent_distribution_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach child distributions: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&models.ExamDistribution{}).Error; err != nil {
			return fmt.Errorf("failed to delete distribution: %w", err)
		}
		return nil
	})
}

// RosterEntry is one targeted student of a distribution with attempt state.
type RosterEntry struct {
	StudentID    string         `json:"studentId"`
	StudentName  string         `json:"studentName"`
	StudentPhone string         `json:"studentPhone"`
	School       string         `json:"school,omitempty"`
	Grade        string         `json:"studentGrade,omitempty"`
	AttemptID    *string        `json:"attemptId"`
	Answers      models.Answers `json:"answers"`
	Score        *int           `json:"score"`
	MaxScore     *int           `json:"maxScore"`
	ExamGrade    *int           `json:"grade"`
	CorrectCount *int           `json:"correctCount"`
	SubmittedAt  *time.Time     `json:"submittedAt"`
	HasAttempt   bool           `json:"hasAttempt"`
	IsSubmitted  bool           `json:"isSubmitted"`
	HasReport    bool           `json:"hasReport"`
	ReportID     *string        `json:"reportId"`
}

// Roster is the branch view of a distribution.
type Roster struct {
	Distribution models.ExamDistribution `json:"distribution"`
	Exam         models.Exam             `json:"exam"`
	Students     []RosterEntry           `json:"students"`
}

// DistributionRoster lists the students a branch distribution targets.
// Distributions of other branches read as missing.
func (s *Store) DistributionRoster(ctx context.Context, id, branchID string) (*Roster, error) {
	var d models.ExamDistribution
	if err := s.DB.WithContext(ctx).
		Where("id = ? AND branch_id = ?", id, branchID).
		First(&d).Error; err != nil {
		return nil, notFound(err, "distribution")
	}
	exam, err := s.GetExam(ctx, d.ExamID)
	if err != nil {
		return nil, err
	}

	var students []models.Student
	if err := s.DB.WithContext(ctx).
		Preload("User").
		Where("branch_id = ?", branchID).
		Find(&students).Error; err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	listed, err := s.listedStudents(ctx, []string{d.ID})
	if err != nil {
		return nil, err
	}
	var members map[string]bool
	if d.ClassID != nil {
		members, err = s.classMemberSet(ctx, *d.ClassID)
		if err != nil {
			return nil, err
		}
	}

	var attempts []models.ExamAttempt
	if err := s.DB.WithContext(ctx).Where("distribution_id = ?", d.ID).Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	byStudent := make(map[string]*models.ExamAttempt, len(attempts))
	attemptIDs := make([]string, 0, len(attempts))
	for i := range attempts {
		byStudent[attempts[i].StudentID] = &attempts[i]
		attemptIDs = append(attemptIDs, attempts[i].ID)
	}
	reports, err := s.reportIDsByAttempt(ctx, attemptIDs)
	if err != nil {
		return nil, err
	}

	roster := &Roster{Distribution: d, Exam: *exam, Students: make([]RosterEntry, 0)}
	for i := range students {
		st := &students[i]
		classes := map[string]bool{}
		if d.ClassID != nil && members[st.ID] {
			classes[*d.ClassID] = true
		}
		if !Eligible(&d, st, classes, listed[d.ID]) {
			continue
		}
		entry := RosterEntry{StudentID: st.ID, School: st.School, Grade: st.Grade}
		if st.User != nil {
			entry.StudentName = st.User.Name
			entry.StudentPhone = st.User.Phone
		}
		if a := byStudent[st.ID]; a != nil {
			id := a.ID
			entry.AttemptID = &id
			entry.Answers = a.Answers
			entry.Score = a.Score
			entry.MaxScore = a.MaxScore
			entry.ExamGrade = a.Grade
			entry.CorrectCount = a.CorrectCount
			entry.SubmittedAt = a.SubmittedAt
			entry.HasAttempt = true
			entry.IsSubmitted = a.Submitted()
			if a.Submitted() {
				if rid, ok := reports[a.ID]; ok {
					entry.HasReport = true
					entry.ReportID = &rid
				}
			}
		}
		roster.Students = append(roster.Students, entry)
	}
	return roster, nil
}
