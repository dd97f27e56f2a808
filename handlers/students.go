package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"exam-server-go/db"
	"exam-server-go/middleware"
)

const (
	msgStudentNotFound = "학생 정보를 찾을 수 없습니다."
	msgPhoneTaken      = "이미 사용 중인 연락처입니다."
	msgPhoneTooShort   = "연락처는 최소 4자리 이상이어야 합니다."
)

type createStudentRequest struct {
	Name        string `json:"name" binding:"required"`
	Phone       string `json:"phone" binding:"required,phone"`
	School      string `json:"school"`
	Grade       string `json:"grade"`
	ParentPhone string `json:"parentPhone"`
}

type updateStudentRequest struct {
	Name        string `json:"name"`
	Phone       string `json:"phone" binding:"omitempty,phone"`
	School      string `json:"school"`
	Grade       string `json:"grade"`
	ParentPhone string `json:"parentPhone"`
	Password    string `json:"password"`
}

// bindMessage explains a binding failure, singling out phone format errors.
func bindMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() == "phone" {
				return msgPhoneTooShort
			}
		}
	}
	return msgBadRequest
}

// MyStudentProfile handles GET /api/students/me
func (h *APIHandler) MyStudentProfile(c *gin.Context) {
	profile, err := h.Store.MyProfile(c.Request.Context(), middleware.CurrentUser(c).ID)
	if err != nil {
		h.fail(c, err, messages{NotFound: msgStudentNotFound})
		return
	}
	respond(c, http.StatusOK, profile)
}

// ListStudents handles GET /api/students
func (h *APIHandler) ListStudents(c *gin.Context) {
	students, err := h.Store.ListStudents(c.Request.Context(), middleware.CurrentUser(c).BranchID)
	if err != nil {
		h.fail(c, err, messages{})
		return
	}
	respond(c, http.StatusOK, students)
}

// CreateStudent handles POST /api/students
func (h *APIHandler) CreateStudent(c *gin.Context) {
	var req createStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, bindMessage(err))
		return
	}
	st, err := h.Store.CreateStudent(c.Request.Context(), middleware.CurrentUser(c).BranchID, db.StudentInput{
		Name:        req.Name,
		Phone:       req.Phone,
		School:      req.School,
		Grade:       req.Grade,
		ParentPhone: req.ParentPhone,
	})
	if err != nil {
		h.fail(c, err, messages{Conflict: msgPhoneTaken, Invalid: msgPhoneTooShort})
		return
	}
	respondMessage(c, http.StatusCreated, st, "학생이 등록되었습니다. 초기 비밀번호는 연락처 뒤 4자리입니다.")
}

// UpdateStudent handles PUT /api/students/:id
func (h *APIHandler) UpdateStudent(c *gin.Context) {
	var req updateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, bindMessage(err))
		return
	}
	st, err := h.Store.UpdateStudent(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c).BranchID, db.StudentInput{
		Name:        req.Name,
		Phone:       req.Phone,
		School:      req.School,
		Grade:       req.Grade,
		ParentPhone: req.ParentPhone,
		Password:    req.Password,
	})
	if err != nil {
		h.fail(c, err, messages{NotFound: msgStudentNotFound, Conflict: msgPhoneTaken, Invalid: msgPhoneTooShort})
		return
	}
	respondMessage(c, http.StatusOK, st, "학생 정보가 수정되었습니다.")
}

// ImportStudents handles POST /api/students/import
func (h *APIHandler) ImportStudents(c *gin.Context) {
	file, header, valid := h.excelUpload(c)
	if !valid {
		return
	}
	defer file.Close()

	branchID := middleware.CurrentUser(c).BranchID
	result, err := h.Store.ImportStudentsFromExcel(c.Request.Context(), file, branchID)
	if err != nil {
		h.Logger.Warn("Student import failed", zap.String("file", header.Filename), zap.Error(err))
		h.fail(c, err, messages{Invalid: "Excel 파일을 읽을 수 없습니다."})
		return
	}
	h.Logger.Info("Students imported",
		zap.String("branch_id", branchID),
		zap.Int("imported", result.Imported),
		zap.Int("skipped", len(result.Skipped)))
	respondMessage(c, http.StatusOK, result, "학생 일괄 등록이 완료되었습니다.")
}

// BranchStudents handles GET /api/students/branch-students and
// GET /api/branch-students/branch-students
func (h *APIHandler) BranchStudents(c *gin.Context) {
	students, err := h.Store.BranchStudents(c.Request.Context(), middleware.CurrentUser(c).BranchID)
	if err != nil {
		h.fail(c, err, messages{})
		return
	}
	respond(c, http.StatusOK, students)
}

// BranchStats handles GET /api/branch-students/stats
func (h *APIHandler) BranchStats(c *gin.Context) {
	stats, err := h.Store.BranchStats(c.Request.Context(), middleware.CurrentUser(c).BranchID)
	if err != nil {
		h.fail(c, err, messages{})
		return
	}
	respond(c, http.StatusOK, stats)
}
