package db_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"exam-server-go/db"
)

func workbook(t *testing.T, cells map[string]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for axis, v := range cells {
		require.NoError(t, f.SetCellValue(sheet, axis, v))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParseExamWorkbook(t *testing.T) {
	cells := map[string]interface{}{
		"A1": "3월 모의고사", "A2": "국어",
		"A4": 1, "B4": "상", "C4": "문학", "D4": "추론", "E4": "현대시", "F4": "해설1", "G4": 3, "H4": 3,
		"A5": 2, "G5": 5,
		"A6": "반복", // ignored: not a number
		"A7": 1, "B7": "하", "C7": "독서", "G7": 4, "H7": 2,
		"A50": "1-2", "B50": "문학 영역 비중 증가",
		"A51": "3", // ignored: no description
		"A54": "전반적으로 평이함",
	}
	exam, err := db.ParseExamWorkbook(workbook(t, cells))
	require.NoError(t, err)

	assert.Equal(t, "3월 모의고사", exam.Title)
	assert.Equal(t, "국어", exam.Subject)
	require.Len(t, exam.Questions, 2)

	q2 := exam.Questions[0]
	assert.Equal(t, 2, q2.Number)
	assert.Equal(t, "중", q2.Difficulty)
	assert.Equal(t, "미분류", q2.Domain)
	assert.Equal(t, 2, q2.Points)
	assert.Equal(t, 5, q2.CorrectAnswer)

	// The later row for question 1 replaces the earlier one.
	q1 := exam.Questions[1]
	assert.Equal(t, 1, q1.Number)
	assert.Equal(t, "하", q1.Difficulty)
	assert.Equal(t, "독서", q1.Domain)
	assert.Equal(t, q1.Domain, q1.Category)
	assert.Equal(t, 4, q1.CorrectAnswer)

	assert.Equal(t, 2, exam.TotalQuestions)
	assert.Equal(t, 4, exam.TotalScore)
	require.Len(t, exam.Trends, 1)
	assert.Equal(t, "1-2", exam.Trends[0].QuestionNumbers)
	assert.Equal(t, "전반적으로 평이함", exam.OverallReview)
}

func TestParseExamWorkbookDefaultsAndErrors(t *testing.T) {
	exam, err := db.ParseExamWorkbook(workbook(t, map[string]interface{}{"A4": 1, "G4": 2}))
	require.NoError(t, err)
	assert.Equal(t, "제목 없음", exam.Title)
	assert.Equal(t, "과목 미지정", exam.Subject)

	_, err = db.ParseExamWorkbook(workbook(t, map[string]interface{}{"A1": "제목", "A4": 7}))
	var sheetErr *db.SheetError
	require.True(t, errors.As(err, &sheetErr))
	assert.Contains(t, sheetErr.Message, "7번")
	assert.ErrorIs(t, err, db.ErrInvalid)

	_, err = db.ParseExamWorkbook(workbook(t, map[string]interface{}{"A1": "제목"}))
	require.True(t, errors.As(err, &sheetErr))
	assert.Equal(t, "문제 데이터를 찾을 수 없습니다.", sheetErr.Message)

	// Rows past the question block are not questions.
	_, err = db.ParseExamWorkbook(workbook(t, map[string]interface{}{"A49": 1, "G49": 1}))
	assert.ErrorIs(t, err, db.ErrInvalid)

	_, err = db.ParseExamWorkbook(bytes.NewBufferString("not a workbook"))
	assert.ErrorIs(t, err, db.ErrInvalid)
}

func TestImportStudentsFromExcel(t *testing.T) {
	s, fx := setup(t)
	cells := map[string]interface{}{
		"A1": "이름", "B1": "연락처", "C1": "학교", "D1": "학년", "E1": "학부모 연락처",
		"A2": "정하늘", "B2": "010-2222-3333", "C2": "송도고", "D2": "고2", "E2": "010-9999-0000",
		"A3": "누락", // no phone
		"A4": "중복", "B4": "010-2222-3333",
		"A5": "기존", "B5": "010-0000-1000", // already a student login
		"A6": "짧은번호", "B6": "12",
		"A7": "한바다", "B7": "010-4444-5555",
	}
	res, err := s.ImportStudentsFromExcel(context.Background(), workbook(t, cells), fx.Branch.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)

	skipped := map[int]bool{}
	for _, r := range res.Skipped {
		skipped[r.Row] = true
	}
	assert.Equal(t, map[int]bool{3: true, 4: true, 5: true, 6: true}, skipped)

	u, err := s.Authenticate(context.Background(), "010-2222-3333", "3333")
	require.NoError(t, err)
	st, err := s.StudentByUserID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "송도고", st.School)
	assert.Equal(t, fx.Branch.ID, st.BranchID)
}

func TestExportRosterWorkbook(t *testing.T) {
	s, fx := setup(t)
	ctx := context.Background()
	d := distribute(t, s, fx, nil)
	a, err := s.StartAttempt(ctx, fx.Students[0], d.ID)
	require.NoError(t, err)
	_, err = s.SubmitAttempt(ctx, a.ID, fx.Students[0].ID, nil)
	require.NoError(t, err)

	roster, err := s.DistributionRoster(ctx, d.ID, fx.Branch.ID)
	require.NoError(t, err)
	buf, err := db.ExportRosterWorkbook(roster)
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "이름", rows[0][0])

	found := false
	for _, r := range rows[1:] {
		if r[0] == "김하나" {
			found = true
			assert.Equal(t, "O", r[5])
			assert.Equal(t, "0", r[6])
			assert.Equal(t, fmt.Sprint(fx.Exam.TotalScore), r[7])
		}
	}
	assert.True(t, found)
}
