package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exam-server-go/db"
	"exam-server-go/db/dbtest"
	"exam-server-go/models"
)

var now = time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*db.Store, *dbtest.Fixture) {
	t.Helper()
	s := dbtest.NewStore(t)
	dbtest.FixedClock(s, now)
	return s, dbtest.Seed(t, s)
}

func distribute(t *testing.T, s *db.Store, fx *dbtest.Fixture, classID *string, students ...string) *models.ExamDistribution {
	t.Helper()
	dists, err := s.CreateDistributions(context.Background(), db.NewDistribution{
		ExamID:        fx.Exam.ID,
		BranchIDs:     []string{fx.Branch.ID},
		ClassID:       classID,
		StudentIDs:    students,
		StartDate:     now.Add(-time.Hour),
		EndDate:       now.Add(24 * time.Hour),
		DistributedBy: fx.Branch.UserID,
	})
	require.NoError(t, err)
	require.Len(t, dists, 1)
	return &dists[0]
}

func TestAuthenticate(t *testing.T) {
	s, fx := setup(t)
	ctx := context.Background()

	u, err := s.Authenticate(ctx, "mgr-a", "pass-a")
	require.NoError(t, err)
	assert.Equal(t, models.RoleBranch, u.Role)
	require.NotNil(t, u.BranchID)
	assert.Equal(t, fx.Branch.ID, *u.BranchID)

	_, err = s.Authenticate(ctx, "mgr-a", "wrong")
	assert.ErrorIs(t, err, db.ErrNotFound)
	_, err = s.Authenticate(ctx, "nobody", "pass-a")
	assert.ErrorIs(t, err, db.ErrNotFound)

	// Student login is the phone with the last four digits as password.
	st, err := s.Authenticate(ctx, "010-0000-1000", "1000")
	require.NoError(t, err)
	assert.Equal(t, fx.Students[0].UserID, st.ID)

	require.NoError(t, s.DB.Model(&models.User{}).Where("id = ?", st.ID).Update("is_active", false).Error)
	_, err = s.Authenticate(ctx, "010-0000-1000", "1000")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestBranches(t *testing.T) {
	s, fx := setup(t)
	ctx := context.Background()

	_, err := s.CreateBranch(ctx, db.NewBranch{Name: "dup", Username: "mgr-a", Password: "x"})
	assert.ErrorIs(t, err, db.ErrConflict)

	list, err := s.ListBranches(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, fx.Branch.ID, list[0].ID)
	assert.Equal(t, "mgr-a", list[0].Username)
	assert.Equal(t, 1, list[1].DisplayOrder)

	require.NoError(t, s.ReorderBranches(ctx, []string{fx.Other.ID, fx.Branch.ID}))
	list, err = s.ListBranches(ctx)
	require.NoError(t, err)
	assert.Equal(t, fx.Other.ID, list[0].ID)

	updated, err := s.UpdateBranch(ctx, fx.Other.ID, db.BranchUpdate{Name: "송도 본점", Phone: "032-000-0000"})
	require.NoError(t, err)
	assert.Equal(t, "송도 본점", updated.Name)

	_, err = s.UpdateBranch(ctx, "missing", db.BranchUpdate{Name: "x"})
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestDeleteBranchCascades(t *testing.T) {
	s, fx := setup(t)
	ctx := context.Background()

	d := distribute(t, s, fx, nil)
	a, err := s.StartAttempt(ctx, fx.Students[0], d.ID)
	require.NoError(t, err)
	_, err = s.SubmitAttempt(ctx, a.ID, fx.Students[0].ID, dbtest.Marks(5))
	require.NoError(t, err)
	require.NoError(t, s.SaveReport(ctx, &models.AIReport{AttemptID: a.ID, StudentID: a.StudentID, ExamID: a.ExamID}))

	require.NoError(t, s.DeleteBranch(ctx, fx.Branch.ID))

	for _, m := range []interface{}{&models.Student{}, &models.ExamDistribution{}, &models.ExamAttempt{}, &models.AIReport{}} {
		var n int64
		require.NoError(t, s.DB.Model(m).Count(&n).Error)
		assert.Zero(t, n, "%T", m)
	}
	var users int64
	require.NoError(t, s.DB.Model(&models.User{}).Count(&users).Error)
	assert.Equal(t, int64(2), users, "admin and the other manager remain")

	assert.ErrorIs(t, s.DeleteBranch(ctx, fx.Branch.ID), db.ErrNotFound)
}

func TestExamPatchAndDelete(t *testing.T) {
	s, fx := setup(t)
	ctx := context.Background()

	title := "국어 모의고사 2회"
	e, err := s.PatchExam(ctx, fx.Exam.ID, db.ExamPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, e.Title)
	assert.Equal(t, "국어", e.Subject)
	assert.Len(t, e.Questions, 10)

	_, err = s.PatchExam(ctx, "missing", db.ExamPatch{Title: &title})
	assert.ErrorIs(t, err, db.ErrNotFound)

	page, total, err := s.ListExamsPage(ctx, db.Page{Number: 1, Size: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, page, 1)

	d := distribute(t, s, fx, nil)
	_, err = s.StartAttempt(ctx, fx.Students[0], d.ID)
	require.NoError(t, err)

	require.NoError(t, s.DeleteExam(ctx, fx.Exam.ID))
	_, err = s.GetExam(ctx, fx.Exam.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)
	_, err = s.GetDistribution(ctx, d.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestPageNormalize(t *testing.T) {
	assert.Equal(t, db.Page{Number: 1, Size: db.DefaultPageSize}, db.Page{}.Normalize())
	assert.Equal(t, db.Page{Number: 3, Size: db.MaxPageSize}, db.Page{Number: 3, Size: 1000}.Normalize())
}

func TestCreateDistributionsValidation(t *testing.T) {
	s, fx := setup(t)
	ctx := context.Background()

	_, err := s.CreateDistributions(ctx, db.NewDistribution{
		ExamID: fx.Exam.ID, BranchIDs: []string{fx.Branch.ID},
		StartDate: now, EndDate: now,
	})
	assert.ErrorIs(t, err, db.ErrInvalid)

	_, err = s.CreateDistributions(ctx, db.NewDistribution{
		ExamID: fx.Exam.ID, StartDate: now, EndDate: now.Add(time.Hour),
	})
	assert.ErrorIs(t, err, db.ErrInvalid)

	_, err = s.CreateDistributions(ctx, db.NewDistribution{
		ExamID: "missing", BranchIDs: []string{fx.Branch.ID},
		StartDate: now, EndDate: now.Add(time.Hour),
	})
	assert.ErrorIs(t, err, db.ErrNotFound)

	dists, err := s.CreateDistributions(ctx, db.NewDistribution{
		ExamID: fx.Exam.ID, BranchIDs: []string{fx.Branch.ID, fx.Other.ID},
		StartDate: now, EndDate: now.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Len(t, dists, 2)

	all, err := s.ListDistributions(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	own, err := s.ListDistributions(ctx, fx.Other.ID)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, fx.Exam.Title, own[0].Exam.Title)
}

func TestRosterFollowsTargeting(t *testing.T) {
	s, fx := setup(t)
	ctx := context.Background()
	a, b, c := fx.Students[0], fx.Students[1], fx.Students[2]

	whole := distribute(t, s, fx, nil)
	roster, err := s.DistributionRoster(ctx, whole.ID, fx.Branch.ID)
	require.NoError(t, err)
	assert.Len(t, roster.Students, 3)

	listed := distribute(t, s, fx, nil, b.ID)
	roster, err = s.DistributionRoster(ctx, listed.ID, fx.Branch.ID)
	require.NoError(t, err)
	require.Len(t, roster.Students, 1)
	assert.Equal(t, b.ID, roster.Students[0].StudentID)
	assert.Equal(t, "이두리", roster.Students[0].StudentName)

	class, err := s.CreateClass(ctx, fx.Branch.ID, db.ClassInput{Name: "A반"})
	require.NoError(t, err)
	require.NoError(t, s.AssignStudent(ctx, class.ID, a.ID, fx.Branch.ID))
	require.NoError(t, s.AssignStudent(ctx, class.ID, c.ID, fx.Branch.ID))
	assert.ErrorIs(t, s.AssignStudent(ctx, class.ID, c.ID, fx.Branch.ID), db.ErrConflict)

	require.NoError(t, s.ReassignDistribution(ctx, listed.ID, fx.Branch.ID, &class.ID, nil))
	roster, err = s.DistributionRoster(ctx, listed.ID, fx.Branch.ID)
	require.NoError(t, err)
	ids := []string{}
	for _, e := range roster.Students {
		ids = append(ids, e.StudentID)
	}
	assert.ElementsMatch(t, []string{a.ID, c.ID}, ids)

	// Rosters of another branch's distribution are hidden.
	_, err = s.DistributionRoster(ctx, listed.ID, fx.Other.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)
	assert.ErrorIs(t, s.ReassignDistribution(ctx, listed.ID, fx.Other.ID, nil, nil), db.ErrForbidden)
	assert.ErrorIs(t, s.DeleteDistribution(ctx, listed.ID, fx.Other.ID), db.ErrForbidden)
	require.NoError(t, s.DeleteDistribution(ctx, listed.ID, fx.Branch.ID))
}

func TestMyExamsStatuses(t *testing.T) {
	s, fx := setup(t)
	ctx := context.Background()
	st := fx.Students[0]

	open := distribute(t, s, fx, nil)
	_, err := s.CreateDistributions(ctx, db.NewDistribution{
		ExamID: fx.Exam.ID, BranchIDs: []string{fx.Branch.ID},
		StartDate: now.Add(48 * time.Hour), EndDate: now.Add(72 * time.Hour),
	})
	require.NoError(t, err)
	distribute(t, s, fx, nil, fx.Students[1].ID)

	exams, err := s.MyExams(ctx, st)
	require.NoError(t, err)
	require.Len(t, exams, 2)
	statuses := map[string]string{}
	for _, e := range exams {
		statuses[e.Distribution.ID] = e.Status
	}
	assert.Equal(t, db.StatusAvailable, statuses[open.ID])

	a, err := s.StartAttempt(ctx, st, open.ID)
	require.NoError(t, err)
	exams, err = s.MyExams(ctx, st)
	require.NoError(t, err)
	for _, e := range exams {
		if e.Distribution.ID == open.ID {
			assert.Equal(t, db.StatusInProgress, e.Status)
			require.NotNil(t, e.Attempt)
			assert.Equal(t, a.ID, e.Attempt.ID)
		} else {
			assert.Equal(t, db.StatusUpcoming, e.Status)
		}
	}
}

func TestAttemptLifecycle(t *testing.T) {
	s, fx := setup(t)
	ctx := context.Background()
	st := fx.Students[0]
	d := distribute(t, s, fx, nil)

	a, err := s.StartAttempt(ctx, st, d.ID)
	require.NoError(t, err)
	assert.False(t, a.Submitted())

	_, err = s.StartAttempt(ctx, st, d.ID)
	assert.ErrorIs(t, err, db.ErrConflict)

	_, err = s.SaveAnswers(ctx, a.ID, fx.Students[1].ID, dbtest.Marks(3))
	assert.ErrorIs(t, err, db.ErrForbidden)

	saved, err := s.SaveAnswers(ctx, a.ID, st.ID, dbtest.Marks(3))
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Answers["3"])

	graded, err := s.SubmitAttempt(ctx, a.ID, st.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, graded.Score)
	assert.Equal(t, 6, *graded.Score)
	assert.Equal(t, 20, *graded.MaxScore)
	assert.Equal(t, 3, *graded.CorrectCount)
	assert.Equal(t, 30, graded.Percentage)
	assert.Equal(t, 6, *graded.Grade)
	assert.True(t, graded.Submitted())

	_, err = s.SubmitAttempt(ctx, a.ID, st.ID, dbtest.Marks(10))
	assert.ErrorIs(t, err, db.ErrConflict)
	_, err = s.SaveAnswers(ctx, a.ID, st.ID, dbtest.Marks(10))
	assert.ErrorIs(t, err, db.ErrConflict)

	stored, err := s.GetAttempt(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, *stored.Score)
	assert.Equal(t, models.Answers(dbtest.Marks(3)), stored.Answers)

	completed, err := s.CompletedAttempts(ctx, fx.Branch.ID)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "김하나", completed[0].StudentName)
	assert.False(t, completed[0].HasReport)

	none, err := s.CompletedAttempts(ctx, fx.Other.ID)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStartAttemptRules(t *testing.T) {
	s, fx := setup(t)
	ctx := context.Background()

	listed := distribute(t, s, fx, nil, fx.Students[1].ID)
	_, err := s.StartAttempt(ctx, fx.Students[0], listed.ID)
	assert.ErrorIs(t, err, db.ErrForbidden)

	dists, err := s.CreateDistributions(ctx, db.NewDistribution{
		ExamID: fx.Exam.ID, BranchIDs: []string{fx.Branch.ID},
		StartDate: now.Add(time.Hour), EndDate: now.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	_, err = s.StartAttempt(ctx, fx.Students[0], dists[0].ID)
	assert.ErrorIs(t, err, db.ErrInvalid)

	_, err = s.StartAttempt(ctx, fx.Students[0], "missing")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestBranchGradeAndDelete(t *testing.T) {
	s, fx := setup(t)
	ctx := context.Background()
	d := distribute(t, s, fx, nil)
	st := fx.Students[2]

	_, err := s.BranchCreateAttempt(ctx, fx.Other.ID, st.ID, d.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)

	a, err := s.BranchCreateAttempt(ctx, fx.Branch.ID, st.ID, d.ID)
	require.NoError(t, err)

	_, err = s.BranchGrade(ctx, a.ID, fx.Other.ID, dbtest.Marks(10))
	assert.ErrorIs(t, err, db.ErrForbidden)

	graded, err := s.BranchGrade(ctx, a.ID, fx.Branch.ID, dbtest.Marks(10))
	require.NoError(t, err)
	assert.Equal(t, 20, *graded.Score)
	assert.Equal(t, 1, *graded.Grade)
	assert.Equal(t, 100, graded.Percentage)

	// Re-grading replaces the earlier marks.
	graded, err = s.BranchGrade(ctx, a.ID, fx.Branch.ID, dbtest.Marks(8))
	require.NoError(t, err)
	assert.Equal(t, 16, *graded.Score)

	assert.ErrorIs(t, s.DeleteAttempt(ctx, a.ID, fx.Other.ID), db.ErrForbidden)
	require.NoError(t, s.DeleteAttempt(ctx, a.ID, fx.Branch.ID))
	_, err = s.GetAttempt(ctx, a.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestAuthorizeAttempt(t *testing.T) {
	s, fx := setup(t)
	ctx := context.Background()
	d := distribute(t, s, fx, nil)
	a, err := s.StartAttempt(ctx, fx.Students[0], d.ID)
	require.NoError(t, err)

	owner := &models.SessionUser{ID: fx.Students[0].UserID, Role: models.RoleStudent}
	other := &models.SessionUser{ID: fx.Students[1].UserID, Role: models.RoleStudent}
	manager := &models.SessionUser{ID: fx.Branch.UserID, Role: models.RoleBranch, BranchID: fx.Branch.ID}
	foreign := &models.SessionUser{ID: fx.Other.UserID, Role: models.RoleBranch, BranchID: fx.Other.ID}
	admin := &models.SessionUser{ID: fx.Admin.ID, Role: models.RoleAdmin}

	assert.NoError(t, s.AuthorizeAttempt(ctx, owner, a))
	assert.NoError(t, s.AuthorizeAttempt(ctx, manager, a))
	assert.NoError(t, s.AuthorizeAttempt(ctx, admin, a))
	assert.ErrorIs(t, s.AuthorizeAttempt(ctx, other, a), db.ErrForbidden)
	assert.ErrorIs(t, s.AuthorizeAttempt(ctx, foreign, a), db.ErrForbidden)

	p, err := s.CreateParent(ctx, fx.Branch.ID, db.ParentInput{
		Username: "mom", Password: "pw", Name: "김엄마", StudentID: fx.Students[0].ID,
	})
	require.NoError(t, err)
	parent := &models.SessionUser{ID: p.UserID, Role: models.RoleParent, BranchID: fx.Branch.ID}
	assert.NoError(t, s.AuthorizeAttempt(ctx, parent, a))
}

func TestStudentsAndStats(t *testing.T) {
	s, fx := setup(t)
	ctx := context.Background()

	_, err := s.CreateStudent(ctx, fx.Branch.ID, db.StudentInput{Name: "중복", Phone: "010-0000-1000"})
	assert.ErrorIs(t, err, db.ErrConflict)
	_, err = s.CreateStudent(ctx, fx.Branch.ID, db.StudentInput{Name: "짧음", Phone: "12"})
	assert.ErrorIs(t, err, db.ErrInvalid)

	updated, err := s.UpdateStudent(ctx, fx.Students[0].ID, fx.Branch.ID, db.StudentInput{
		Name: "김하나", Phone: "010-5555-6666", School: "강남고", Grade: "고2", Password: "newpass",
	})
	require.NoError(t, err)
	assert.Equal(t, "고2", updated.Grade)
	assert.Equal(t, "010-5555-6666", updated.User.Username)
	_, err = s.Authenticate(ctx, "010-5555-6666", "newpass")
	require.NoError(t, err)

	_, err = s.UpdateStudent(ctx, fx.Students[1].ID, fx.Branch.ID, db.StudentInput{Phone: "010-5555-6666"})
	assert.ErrorIs(t, err, db.ErrConflict)
	_, err = s.UpdateStudent(ctx, fx.Students[1].ID, fx.Other.ID, db.StudentInput{Name: "x"})
	assert.ErrorIs(t, err, db.ErrNotFound)

	d := distribute(t, s, fx, nil)
	for i, correct := range []int{10, 5} {
		a, err := s.StartAttempt(ctx, fx.Students[i], d.ID)
		require.NoError(t, err)
		_, err = s.SubmitAttempt(ctx, a.ID, fx.Students[i].ID, dbtest.Marks(correct))
		require.NoError(t, err)
	}
	_, err = s.StartAttempt(ctx, fx.Students[2], d.ID)
	require.NoError(t, err)

	stats, err := s.BranchStats(ctx, fx.Branch.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalStudents)
	assert.Equal(t, int64(3), stats.TotalAttempts)
	assert.Equal(t, int64(2), stats.CompletedAttempts)
	assert.Equal(t, 15.0, stats.AvgScore)

	rows, err := s.BranchStudents(ctx, fx.Branch.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	byID := map[string]db.BranchStudent{}
	for _, r := range rows {
		byID[r.ID] = r
	}
	require.NotNil(t, byID[fx.Students[0].ID].LatestExam)
	assert.Equal(t, 100, byID[fx.Students[0].ID].LatestExam.Percentage)
	assert.Nil(t, byID[fx.Students[2].ID].LatestExam)

	admin, err := s.AdminStats(ctx, "all")
	require.NoError(t, err)
	assert.Equal(t, int64(3), admin.TotalStudents)
	assert.Equal(t, int64(2), admin.TotalBranches)
	assert.Equal(t, 15, admin.AverageScore)
	require.Len(t, admin.GradeDistribution, 9)
	assert.Equal(t, int64(1), admin.GradeDistribution[0].Count)
	assert.Equal(t, int64(1), admin.GradeDistribution[4].Count)

	filtered, err := s.AdminStats(ctx, "고2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), filtered.TotalStudents)

	recent, err := s.RecentExams(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestClassesAndParents(t *testing.T) {
	s, fx := setup(t)
	ctx := context.Background()

	_, err := s.CreateClass(ctx, fx.Branch.ID, db.ClassInput{})
	assert.ErrorIs(t, err, db.ErrInvalid)

	c, err := s.CreateClass(ctx, fx.Branch.ID, db.ClassInput{Name: "B반", Grade: "고1"})
	require.NoError(t, err)
	_, err = s.UpdateClass(ctx, c.ID, fx.Other.ID, db.ClassInput{Name: "x"})
	assert.ErrorIs(t, err, db.ErrNotFound)
	c, err = s.UpdateClass(ctx, c.ID, fx.Branch.ID, db.ClassInput{Name: "B반 심화"})
	require.NoError(t, err)
	assert.Equal(t, "B반 심화", c.Name)

	require.NoError(t, s.AssignStudent(ctx, c.ID, fx.Students[0].ID, fx.Branch.ID))
	members, err := s.ClassMembers(ctx, c.ID, fx.Branch.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.NoError(t, s.UnassignStudent(ctx, c.ID, fx.Students[0].ID, fx.Branch.ID))
	members, err = s.ClassMembers(ctx, c.ID, fx.Branch.ID)
	require.NoError(t, err)
	assert.Empty(t, members)

	_, err = s.CreateParent(ctx, fx.Branch.ID, db.ParentInput{Username: "mgr-a", Password: "x", Name: "x", StudentID: fx.Students[0].ID})
	assert.ErrorIs(t, err, db.ErrConflict)
	for _, name := range []string{"최부모", "강부모"} {
		_, err := s.CreateParent(ctx, fx.Branch.ID, db.ParentInput{
			Username: name, Password: "pw", Name: name, Phone: "010-1111-2222", StudentID: fx.Students[0].ID,
		})
		require.NoError(t, err)
	}
	parents, err := s.ListParents(ctx, fx.Branch.ID)
	require.NoError(t, err)
	require.Len(t, parents, 2)
	assert.Equal(t, "강부모", parents[0].User.Name)

	list, err := s.ListStudents(ctx, fx.Branch.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for _, row := range list {
		if row.ID == fx.Students[0].ID {
			require.NotNil(t, row.Parent)
			assert.Equal(t, "010-1111-2222", row.Parent.User.Phone)
		} else {
			assert.Nil(t, row.Parent)
		}
	}
}

func TestSeedAndDistributeAll(t *testing.T) {
	s := dbtest.NewStore(t)
	dbtest.FixedClock(s, now)
	ctx := context.Background()

	seeded, err := s.CheckAndSeedData(ctx)
	require.NoError(t, err)
	assert.True(t, seeded)
	seeded, err = s.CheckAndSeedData(ctx)
	require.NoError(t, err)
	assert.False(t, seeded)

	_, err = s.Authenticate(ctx, "allga", "allga")
	require.NoError(t, err)

	created, skipped, err := s.DistributeAll(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Zero(t, skipped)
	created, skipped, err = s.DistributeAll(ctx, 30)
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Equal(t, 1, skipped)
}

func TestRegradeSubmitted(t *testing.T) {
	s, fx := setup(t)
	ctx := context.Background()
	d := distribute(t, s, fx, nil)
	a, err := s.StartAttempt(ctx, fx.Students[0], d.ID)
	require.NoError(t, err)
	_, err = s.SubmitAttempt(ctx, a.ID, fx.Students[0].ID, dbtest.Marks(5))
	require.NoError(t, err)

	n, err := s.RegradeSubmitted(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	qs := dbtest.Questions(10)
	for i := range qs {
		qs[i].Points = 4
	}
	total := 40
	_, err = s.PatchExam(ctx, fx.Exam.ID, db.ExamPatch{Questions: &qs, TotalScore: &total})
	require.NoError(t, err)

	n, err = s.RegradeSubmitted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	stored, err := s.GetAttempt(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, *stored.Score)
	assert.Equal(t, 40, *stored.MaxScore)
}
