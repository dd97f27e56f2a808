package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"exam-server-go/metrics"
	"exam-server-go/middleware"
	"exam-server-go/models"
)

const (
	msgAttemptNotFound  = "시험 응시 기록을 찾을 수 없습니다."
	msgAlreadySubmitted = "이미 제출된 시험입니다."
)

type startAttemptRequest struct {
	DistributionID string `json:"distributionId" binding:"required"`
}

type answersRequest struct {
	Answers models.Answers `json:"answers"`
}

type branchCreateAttemptRequest struct {
	StudentID      string `json:"studentId" binding:"required"`
	DistributionID string `json:"distributionId" binding:"required"`
}

// MyExams handles GET /api/my-exams
func (h *APIHandler) MyExams(c *gin.Context) {
	st, found := h.currentStudent(c)
	if !found {
		return
	}
	exams, err := h.Store.MyExams(c.Request.Context(), st)
	if err != nil {
		h.fail(c, err, messages{})
		return
	}
	respond(c, http.StatusOK, exams)
}

// MyExam handles GET /api/my-exams/:distributionId
func (h *APIHandler) MyExam(c *gin.Context) {
	st, found := h.currentStudent(c)
	if !found {
		return
	}
	detail, err := h.Store.MyExamDetail(c.Request.Context(), st, c.Param("distributionId"))
	if err != nil {
		h.fail(c, err, messages{NotFound: msgExamNotFound, Forbidden: "배포 대상이 아닌 시험입니다."})
		return
	}
	respond(c, http.StatusOK, detail)
}

// GetAttempt handles GET /api/exam-attempts/:id
func (h *APIHandler) GetAttempt(c *gin.Context) {
	ctx := c.Request.Context()
	a, err := h.Store.GetAttempt(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err, messages{NotFound: msgAttemptNotFound})
		return
	}
	if err := h.Store.AuthorizeAttempt(ctx, middleware.CurrentUser(c), a); err != nil {
		h.fail(c, err, messages{NotFound: msgAttemptNotFound})
		return
	}
	respond(c, http.StatusOK, a)
}

// StartAttempt handles POST /api/exam-attempts
func (h *APIHandler) StartAttempt(c *gin.Context) {
	var req startAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, msgBadRequest)
		return
	}
	st, found := h.currentStudent(c)
	if !found {
		return
	}
	a, err := h.Store.StartAttempt(c.Request.Context(), st, req.DistributionID)
	if err != nil {
		h.fail(c, err, messages{
			NotFound:  msgDistributionNotFound,
			Conflict:  "이미 응시한 시험입니다.",
			Invalid:   "응시 기간이 아닙니다.",
			Forbidden: "배포 대상이 아닌 시험입니다.",
		})
		return
	}
	respond(c, http.StatusCreated, a)
}

// SaveAnswers handles PUT /api/exam-attempts/:id
func (h *APIHandler) SaveAnswers(c *gin.Context) {
	var req answersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, msgBadRequest)
		return
	}
	st, found := h.currentStudent(c)
	if !found {
		return
	}
	a, err := h.Store.SaveAnswers(c.Request.Context(), c.Param("id"), st.ID, req.Answers)
	if err != nil {
		h.fail(c, err, messages{NotFound: msgAttemptNotFound, Conflict: msgAlreadySubmitted})
		return
	}
	respond(c, http.StatusOK, a)
}

// SubmitAttempt handles POST /api/exam-attempts/:id/submit
func (h *APIHandler) SubmitAttempt(c *gin.Context) {
	var req answersRequest
	// an empty body grades the saved draft
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		abort(c, http.StatusBadRequest, msgBadRequest)
		return
	}
	st, found := h.currentStudent(c)
	if !found {
		return
	}
	graded, err := h.Store.SubmitAttempt(c.Request.Context(), c.Param("id"), st.ID, req.Answers)
	if err != nil {
		h.fail(c, err, messages{NotFound: msgAttemptNotFound, Conflict: msgAlreadySubmitted})
		return
	}
	metrics.AttemptSubmitted()
	h.Logger.Info("Attempt submitted",
		zap.String("attempt_id", graded.ID),
		zap.Intp("score", graded.Score),
		zap.Int("percentage", graded.Percentage))
	respondMessage(c, http.StatusOK, graded, "시험이 제출되었습니다.")
}

// CompletedAttempts handles GET /api/exam-attempts/branch/completed
func (h *APIHandler) CompletedAttempts(c *gin.Context) {
	rows, err := h.Store.CompletedAttempts(c.Request.Context(), branchScope(middleware.CurrentUser(c)))
	if err != nil {
		h.fail(c, err, messages{})
		return
	}
	respond(c, http.StatusOK, rows)
}

// BranchCreateAttempt handles POST /api/exam-attempts/branch-create
func (h *APIHandler) BranchCreateAttempt(c *gin.Context) {
	var req branchCreateAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, msgBadRequest)
		return
	}
	a, err := h.Store.BranchCreateAttempt(c.Request.Context(), middleware.CurrentUser(c).BranchID, req.StudentID, req.DistributionID)
	if err != nil {
		h.fail(c, err, messages{NotFound: msgDistributionNotFound, Conflict: "이미 응시 기록이 있는 학생입니다."})
		return
	}
	respond(c, http.StatusCreated, a)
}

// BranchGrade handles PUT /api/exam-attempts/:id/branch-grade
func (h *APIHandler) BranchGrade(c *gin.Context) {
	var req answersRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Answers == nil {
		abort(c, http.StatusBadRequest, msgBadRequest)
		return
	}
	graded, err := h.Store.BranchGrade(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c).BranchID, req.Answers)
	if err != nil {
		h.fail(c, err, messages{NotFound: msgAttemptNotFound})
		return
	}
	metrics.AttemptSubmitted()
	respondMessage(c, http.StatusOK, graded, "채점이 완료되었습니다.")
}

// DeleteAttempt handles DELETE /api/exam-attempts/:id
func (h *APIHandler) DeleteAttempt(c *gin.Context) {
	if err := h.Store.DeleteAttempt(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c).BranchID); err != nil {
		h.fail(c, err, messages{NotFound: msgAttemptNotFound})
		return
	}
	respondMessage(c, http.StatusOK, nil, "응시 기록이 삭제되었습니다.")
}
