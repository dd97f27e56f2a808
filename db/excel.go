package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"exam-server-go/models"
)

// Exam workbook layout (1-based rows on the first sheet).
const (
	examTitleRow       = 1
	examSubjectRow     = 2
	examFirstQuestion  = 4
	examLastQuestion   = 48
	examFirstTrend     = 50
	examLastTrend      = 52
	examOverallReview  = 54
	defaultExamTitle   = "제목 없음"
	defaultExamSubject = "과목 미지정"
	defaultDifficulty  = "중"
	defaultExamDomain  = "미분류"
	defaultPoints      = 2
)

// SheetError is a problem with an uploaded workbook that the uploader can fix.
type SheetError struct {
	Message string
}

func (e *SheetError) Error() string { return e.Message }

func (e *SheetError) Unwrap() error { return ErrInvalid }

// leadingInt parses the integer prefix of s, ignoring surrounding spaces, so
// "3", "3.0" and "3번" all read as 3.
func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || end == 0 && (s[end] == '-' || s[end] == '+')) {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

func cell(rows [][]string, row, col int) string {
	r := row - 1
	if r < 0 || r >= len(rows) || col >= len(rows[r]) {
		return ""
	}
	return strings.TrimSpace(rows[r][col])
}

func firstSheetRows(f *excelize.File) ([][]string, error) {
	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, &SheetError{Message: "엑셀 파일에 시트가 없습니다."}
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows from sheet %s: %w", sheetName, err)
	}
	return rows, nil
}

// ParseExamWorkbook reads an exam answer key from an uploaded workbook.
// A question repeated in the sheet keeps its last row.
func ParseExamWorkbook(r io.Reader) (*models.Exam, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &SheetError{Message: "엑셀 파일을 읽을 수 없습니다."}
	}
	defer f.Close()

	rows, err := firstSheetRows(f)
	if err != nil {
		return nil, err
	}

	exam := &models.Exam{
		Title:   cell(rows, examTitleRow, 0),
		Subject: cell(rows, examSubjectRow, 0),
	}
	if exam.Title == "" {
		exam.Title = defaultExamTitle
	}
	if exam.Subject == "" {
		exam.Subject = defaultExamSubject
	}

	questions := make([]models.Question, 0, examLastQuestion-examFirstQuestion+1)
	for row := examFirstQuestion; row <= examLastQuestion; row++ {
		number, ok := leadingInt(cell(rows, row, 0))
		if !ok {
			continue
		}
		for i := range questions {
			if questions[i].Number == number {
				questions = append(questions[:i], questions[i+1:]...)
				break
			}
		}

		answer, ok := leadingInt(cell(rows, row, 6))
		if !ok {
			return nil, &SheetError{Message: fmt.Sprintf("%d번 문제의 필수 정보가 누락되었습니다.", number)}
		}
		points, ok := leadingInt(cell(rows, row, 7))
		if !ok || points == 0 {
			points = defaultPoints
		}
		q := models.Question{
			Number:        number,
			Difficulty:    cell(rows, row, 1),
			Domain:        cell(rows, row, 2),
			TypeAnalysis:  cell(rows, row, 3),
			Subcategory:   cell(rows, row, 4),
			Explanation:   cell(rows, row, 5),
			CorrectAnswer: answer,
			Points:        points,
		}
		if q.Difficulty == "" {
			q.Difficulty = defaultDifficulty
		}
		if q.Domain == "" {
			q.Domain = defaultExamDomain
		}
		q.Category = q.Domain
		q.QuestionIntent = q.TypeAnalysis
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return nil, &SheetError{Message: "문제 데이터를 찾을 수 없습니다."}
	}

	trends := make([]models.Trend, 0)
	for row := examFirstTrend; row <= examLastTrend; row++ {
		numbers, desc := cell(rows, row, 0), cell(rows, row, 1)
		if numbers != "" && desc != "" {
			trends = append(trends, models.Trend{QuestionNumbers: numbers, Description: desc})
		}
	}

	exam.Questions = questions
	exam.Trends = trends
	exam.OverallReview = cell(rows, examOverallReview, 0)
	exam.TotalQuestions = len(questions)
	for _, q := range questions {
		exam.TotalScore += q.Points
	}
	return exam, nil
}

// SkippedRow is a spreadsheet row that was not imported.
type SkippedRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// ImportResult reports the outcome of a bulk student import.
type ImportResult struct {
	Imported int          `json:"importedCount"`
	Skipped  []SkippedRow `json:"skipped"`
}

// ImportStudentsFromExcel reads students from the first sheet and adds them
// to the branch. Columns: name, phone, school, grade, parent phone; the first
// row is a header. Rows that cannot be imported are skipped and reported.
func (s *Store) ImportStudentsFromExcel(ctx context.Context, file io.Reader, branchID string) (*ImportResult, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		s.Logger.Warn("Error opening Excel reader", zap.Error(err))
		return nil, &SheetError{Message: "엑셀 파일을 읽을 수 없습니다."}
	}
	defer func() {
		if err := f.Close(); err != nil {
			s.Logger.Warn("Error closing excel file", zap.Error(err))
		}
	}()

	rows, err := firstSheetRows(f)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Skipped: make([]SkippedRow, 0)}
	seen := make(map[string]int)
	for i := range rows {
		if i == 0 {
			continue
		}
		rowNum := i + 1
		in := StudentInput{
			Name:        cell(rows, rowNum, 0),
			Phone:       cell(rows, rowNum, 1),
			School:      cell(rows, rowNum, 2),
			Grade:       cell(rows, rowNum, 3),
			ParentPhone: cell(rows, rowNum, 4),
		}
		if in.Name == "" && in.Phone == "" {
			continue
		}
		if in.Name == "" || in.Phone == "" {
			result.Skipped = append(result.Skipped, SkippedRow{Row: rowNum, Reason: "이름 또는 연락처 누락"})
			continue
		}
		if first, dup := seen[in.Phone]; dup {
			result.Skipped = append(result.Skipped, SkippedRow{Row: rowNum, Reason: fmt.Sprintf("%d행과 연락처 중복", first)})
			continue
		}
		seen[in.Phone] = rowNum

		if _, err := s.CreateStudent(ctx, branchID, in); err != nil {
			switch {
			case errors.Is(err, ErrConflict):
				result.Skipped = append(result.Skipped, SkippedRow{Row: rowNum, Reason: "이미 사용 중인 연락처"})
			case errors.Is(err, ErrInvalid):
				result.Skipped = append(result.Skipped, SkippedRow{Row: rowNum, Reason: "연락처는 최소 4자리 이상이어야 합니다"})
			default:
				return result, fmt.Errorf("import stopped at row %d: %w", rowNum, err)
			}
			continue
		}
		result.Imported++
	}

	s.Logger.Info("Students imported",
		zap.String("branch_id", branchID),
		zap.Int("imported", result.Imported),
		zap.Int("skipped", len(result.Skipped)))
	return result, nil
}

var rosterHeader = []interface{}{
	"이름", "연락처", "학교", "학년", "응시", "제출", "점수", "만점", "등급", "정답 수", "제출 시각", "리포트",
}

// ExportRosterWorkbook writes a distribution roster as a single-sheet workbook.
func ExportRosterWorkbook(roster *Roster) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "결과"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &rosterHeader); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(sheet, 1, 1, style)
	}

	for i, st := range roster.Students {
		row := []interface{}{
			st.StudentName,
			st.StudentPhone,
			st.School,
			st.Grade,
			yesNo(st.HasAttempt),
			yesNo(st.IsSubmitted),
			intOrBlank(st.Score),
			intOrBlank(st.MaxScore),
			intOrBlank(st.ExamGrade),
			intOrBlank(st.CorrectCount),
			timeOrBlank(st.SubmittedAt),
			yesNo(st.HasReport),
		}
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, axis, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buf, nil
}

func yesNo(b bool) string {
	if b {
		return "O"
	}
	return "X"
}

func intOrBlank(p *int) interface{} {
	if p == nil {
		return ""
	}
	return *p
}

func timeOrBlank(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}
