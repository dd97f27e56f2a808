package handlers

import (
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"exam-server-go/db"
	"exam-server-go/middleware"
	"exam-server-go/models"
)

const msgExamNotFound = "시험을 찾을 수 없습니다."

type createExamRequest struct {
	Title          string            `json:"title" binding:"required"`
	Subject        string            `json:"subject" binding:"required"`
	Grade          string            `json:"grade"`
	Description    string            `json:"description"`
	TotalQuestions int               `json:"totalQuestions" binding:"required,min=1"`
	TotalScore     int               `json:"totalScore" binding:"required,min=1"`
	Questions      []models.Question `json:"questionsData" binding:"required,min=1"`
	Trends         []models.Trend    `json:"examTrends"`
	OverallReview  string            `json:"overallReview"`
}

// ListExams handles GET /api/exams
func (h *APIHandler) ListExams(c *gin.Context) {
	page, paged := pageQuery(c)
	if !paged {
		exams, err := h.Store.ListExams(c.Request.Context())
		if err != nil {
			h.fail(c, err, messages{})
			return
		}
		respond(c, http.StatusOK, exams)
		return
	}
	exams, total, err := h.Store.ListExamsPage(c.Request.Context(), page)
	if err != nil {
		h.fail(c, err, messages{})
		return
	}
	respond(c, http.StatusOK, newPaginatedResponse(exams, total, page))
}

// AvailableExams handles GET /api/exams/available
func (h *APIHandler) AvailableExams(c *gin.Context) {
	exams, err := h.Store.AvailableExams(c.Request.Context())
	if err != nil {
		h.fail(c, err, messages{})
		return
	}
	respond(c, http.StatusOK, exams)
}

// GetExam handles GET /api/exams/:id
func (h *APIHandler) GetExam(c *gin.Context) {
	exam, err := h.Store.GetExam(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, messages{NotFound: msgExamNotFound})
		return
	}
	respond(c, http.StatusOK, exam)
}

// CreateExam handles POST /api/exams
func (h *APIHandler) CreateExam(c *gin.Context) {
	var req createExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, msgBadRequest)
		return
	}
	exam := &models.Exam{
		Title:          req.Title,
		Subject:        req.Subject,
		Grade:          req.Grade,
		Description:    req.Description,
		TotalQuestions: req.TotalQuestions,
		TotalScore:     req.TotalScore,
		Questions:      req.Questions,
		Trends:         req.Trends,
		OverallReview:  req.OverallReview,
		CreatedBy:      middleware.CurrentUser(c).ID,
	}
	if err := h.Store.CreateExam(c.Request.Context(), exam); err != nil {
		h.fail(c, err, messages{})
		return
	}
	respondMessage(c, http.StatusCreated, exam, "시험이 등록되었습니다.")
}

// UpdateExam handles PATCH /api/exams/:id
func (h *APIHandler) UpdateExam(c *gin.Context) {
	var patch db.ExamPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		abort(c, http.StatusBadRequest, msgBadRequest)
		return
	}
	exam, err := h.Store.PatchExam(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.fail(c, err, messages{NotFound: msgExamNotFound})
		return
	}
	respondMessage(c, http.StatusOK, exam, "시험이 수정되었습니다.")
}

// DeleteExam handles DELETE /api/exams/:id
func (h *APIHandler) DeleteExam(c *gin.Context) {
	if err := h.Store.DeleteExam(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err, messages{})
		return
	}
	respondMessage(c, http.StatusOK, nil, "시험이 삭제되었습니다.")
}

// excelUpload returns the multipart "file" after checking extension and size.
func (h *APIHandler) excelUpload(c *gin.Context) (multipart.File, *multipart.FileHeader, bool) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		abort(c, http.StatusBadRequest, "Excel 파일을 업로드해주세요.")
		return nil, nil, false
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
		file.Close()
		abort(c, http.StatusBadRequest, "Excel 파일만 업로드 가능합니다.")
		return nil, nil, false
	}
	if header.Size > h.Server.UploadMaxBytes {
		file.Close()
		abort(c, http.StatusBadRequest, "파일 크기가 너무 큽니다.")
		return nil, nil, false
	}
	return file, header, true
}

// UploadExam handles POST /api/exams/upload
func (h *APIHandler) UploadExam(c *gin.Context) {
	file, header, valid := h.excelUpload(c)
	if !valid {
		return
	}
	defer file.Close()

	exam, err := db.ParseExamWorkbook(file)
	if err != nil {
		h.Logger.Warn("Exam workbook rejected", zap.String("file", header.Filename), zap.Error(err))
		h.fail(c, err, messages{Invalid: "Excel 파일을 읽을 수 없습니다."})
		return
	}
	exam.CreatedBy = middleware.CurrentUser(c).ID
	if err := h.Store.CreateExam(c.Request.Context(), exam); err != nil {
		h.fail(c, err, messages{})
		return
	}
	respondMessage(c, http.StatusCreated, exam, "시험이 업로드되었습니다.")
}
