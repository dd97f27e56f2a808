// Package dbtest opens throwaway SQLite-backed stores for tests.
package dbtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"exam-server-go/db"
	"exam-server-go/models"
)

// NewStore returns a migrated in-memory store private to the test.
func NewStore(t testing.TB) *db.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return db.NewStore(gdb, zap.NewNop())
}

// FixedClock pins the store clock to now.
func FixedClock(s *db.Store, now time.Time) {
	s.SetClock(func() time.Time { return now })
}

// Fixture is a small populated branch.
type Fixture struct {
	Admin    *models.User
	Branch   *db.BranchWithManager
	Other    *db.BranchWithManager
	Exam     *models.Exam
	Students []*models.Student
}

// Questions builds n two-point questions alternating between two domains.
func Questions(n int) []models.Question {
	qs := make([]models.Question, n)
	for i := range qs {
		domain := "문학"
		if i%2 == 1 {
			domain = "독서"
		}
		qs[i] = models.Question{Number: i + 1, Domain: domain, CorrectAnswer: i%5 + 1, Points: 2}
	}
	return qs
}

// Seed creates an admin, two branches, a ten-question exam and three
// students in the first branch.
func Seed(t testing.TB, s *db.Store) *Fixture {
	t.Helper()
	ctx := context.Background()
	fx := &Fixture{}

	hash, err := db.HashPassword("admin-pass")
	require.NoError(t, err)
	fx.Admin = &models.User{Username: "admin", PasswordHash: hash, Role: models.RoleAdmin, Name: "관리자", IsActive: true}
	require.NoError(t, s.DB.Create(fx.Admin).Error)

	fx.Branch, err = s.CreateBranch(ctx, db.NewBranch{ID: "branch-a", Name: "강남점", Username: "mgr-a", Password: "pass-a"})
	require.NoError(t, err)
	fx.Other, err = s.CreateBranch(ctx, db.NewBranch{ID: "branch-b", Name: "송도점", Username: "mgr-b", Password: "pass-b"})
	require.NoError(t, err)

	fx.Exam = &models.Exam{
		Title:          "국어 모의고사",
		Subject:        "국어",
		TotalQuestions: 10,
		TotalScore:     20,
		Questions:      Questions(10),
		CreatedBy:      fx.Admin.ID,
	}
	require.NoError(t, s.CreateExam(ctx, fx.Exam))

	for i, name := range []string{"김하나", "이두리", "박세나"} {
		st, err := s.CreateStudent(ctx, fx.Branch.ID, db.StudentInput{
			Name:  name,
			Phone: fmt.Sprintf("010-0000-100%d", i),
			Grade: "고1",
		})
		require.NoError(t, err)
		fx.Students = append(fx.Students, st)
	}
	return fx
}

// Marks marks the first n of ten questions correct.
func Marks(correct int) models.Answers {
	a := models.Answers{}
	for i := 1; i <= 10; i++ {
		if i <= correct {
			a[fmt.Sprint(i)] = 1
		} else {
			a[fmt.Sprint(i)] = 0
		}
	}
	return a
}
