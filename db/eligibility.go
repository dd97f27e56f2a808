package db

import (
	"context"
	"fmt"
	"time"

	"exam-server-go/models"
)

// Student-facing states of a distributed exam.
const (
	StatusAvailable  = "available"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusUpcoming   = "upcoming"
	StatusExpired    = "expired"
)

// Eligible decides whether a distribution targets the student.
//
// classIDs holds the classes the student belongs to; listed holds the
// explicit student list of the distribution. A class target wins over the
// list, and an empty list targets the whole branch.
func Eligible(dist *models.ExamDistribution, student *models.Student, classIDs, listed map[string]bool) bool {
	if dist.BranchID != student.BranchID {
		return false
	}
	if dist.ClassID != nil && *dist.ClassID != "" {
		return classIDs[*dist.ClassID]
	}
	if len(listed) > 0 {
		return listed[student.ID]
	}
	return true
}

// MyExamStatus derives the student-facing state of a distribution.
// A submitted attempt is completed regardless of the window.
func MyExamStatus(dist *models.ExamDistribution, attempt *models.ExamAttempt, now time.Time) string {
	if attempt != nil && attempt.Submitted() {
		return StatusCompleted
	}
	switch {
	case now.Before(dist.StartDate):
		return StatusUpcoming
	case now.After(dist.EndDate):
		return StatusExpired
	case attempt != nil:
		return StatusInProgress
	default:
		return StatusAvailable
	}
}

// WindowOpen reports whether now falls inside the distribution window.
func WindowOpen(dist *models.ExamDistribution, now time.Time) bool {
	return !now.Before(dist.StartDate) && !now.After(dist.EndDate)
}

func (s *Store) studentClassSet(ctx context.Context, studentID string) (map[string]bool, error) {
	var links []models.StudentClass
	if err := s.DB.WithContext(ctx).Where("student_id = ?", studentID).Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to load student classes: %w", err)
	}
	set := make(map[string]bool, len(links))
	for _, l := range links {
		set[l.ClassID] = true
	}
	return set, nil
}

// listedStudents returns the explicit student lists keyed by distribution id.
func (s *Store) listedStudents(ctx context.Context, distIDs []string) (map[string]map[string]bool, error) {
	out := make(map[string]map[string]bool)
	if len(distIDs) == 0 {
		return out, nil
	}
	var rows []models.DistributionStudent
	if err := s.DB.WithContext(ctx).Where("distribution_id IN ?", distIDs).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load distribution students: %w", err)
	}
	for _, r := range rows {
		if out[r.DistributionID] == nil {
			out[r.DistributionID] = make(map[string]bool)
		}
		out[r.DistributionID][r.StudentID] = true
	}
	return out, nil
}

// IsEligible evaluates Eligible against stored class and list membership.
func (s *Store) IsEligible(ctx context.Context, dist *models.ExamDistribution, student *models.Student) (bool, error) {
	classes, err := s.studentClassSet(ctx, student.ID)
	if err != nil {
		return false, err
	}
	listed, err := s.listedStudents(ctx, []string{dist.ID})
	if err != nil {
		return false, err
	}
	return Eligible(dist, student, classes, listed[dist.ID]), nil
}

// AttemptSummary is the short form of an attempt in the student's exam list.
type AttemptSummary struct {
	ID           string     `json:"id"`
	Score        *int       `json:"score"`
	Grade        *int       `json:"grade"`
	CorrectCount *int       `json:"correctCount"`
	SubmittedAt  *time.Time `json:"submittedAt"`
}

// MyExam is one entry of a student's exam list.
type MyExam struct {
	Distribution models.ExamDistribution `json:"distribution"`
	Exam         models.ExamSummary      `json:"exam"`
	Attempt      *AttemptSummary         `json:"attempt"`
	Status       string                  `json:"status"`
	HasReport    bool                    `json:"hasReport"`
}

// MyExams lists the distributions targeting the student with attempt state.
func (s *Store) MyExams(ctx context.Context, student *models.Student) ([]MyExam, error) {
	var dists []models.ExamDistribution
	if err := s.DB.WithContext(ctx).
		Where("branch_id = ?", student.BranchID).
		Order("created_at").
		Find(&dists).Error; err != nil {
		return nil, fmt.Errorf("failed to list distributions: %w", err)
	}

	classes, err := s.studentClassSet(ctx, student.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(dists))
	for _, d := range dists {
		ids = append(ids, d.ID)
	}
	listed, err := s.listedStudents(ctx, ids)
	if err != nil {
		return nil, err
	}

	exams, err := s.examsByID(ctx, dists)
	if err != nil {
		return nil, err
	}

	var attempts []models.ExamAttempt
	if err := s.DB.WithContext(ctx).Where("student_id = ?", student.ID).Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	byDist := make(map[string]*models.ExamAttempt, len(attempts))
	attemptIDs := make([]string, 0, len(attempts))
	for i := range attempts {
		byDist[attempts[i].DistributionID] = &attempts[i]
		attemptIDs = append(attemptIDs, attempts[i].ID)
	}
	reports, err := s.reportIDsByAttempt(ctx, attemptIDs)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	out := make([]MyExam, 0, len(dists))
	for i := range dists {
		d := &dists[i]
		if !Eligible(d, student, classes, listed[d.ID]) {
			continue
		}
		exam, ok := exams[d.ExamID]
		if !ok {
			continue
		}
		entry := MyExam{Distribution: *d, Exam: exam.Summary()}
		a := byDist[d.ID]
		if a != nil {
			entry.Attempt = &AttemptSummary{
				ID:           a.ID,
				Score:        a.Score,
				Grade:        a.Grade,
				CorrectCount: a.CorrectCount,
				SubmittedAt:  a.SubmittedAt,
			}
			_, entry.HasReport = reports[a.ID]
		}
		entry.Status = MyExamStatus(d, a, now)
		out = append(out, entry)
	}
	return out, nil
}

// examsByID loads the exams referenced by dists.
func (s *Store) examsByID(ctx context.Context, dists []models.ExamDistribution) (map[string]*models.Exam, error) {
	ids := make([]string, 0, len(dists))
	for _, d := range dists {
		ids = append(ids, d.ExamID)
	}
	out := make(map[string]*models.Exam, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var exams []models.Exam
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&exams).Error; err != nil {
		return nil, fmt.Errorf("failed to load exams: %w", err)
	}
	for i := range exams {
		out[exams[i].ID] = &exams[i]
	}
	return out, nil
}
