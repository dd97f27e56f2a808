package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"exam-server-go/db"
	"exam-server-go/middleware"
)

const msgClassNotFound = "반을 찾을 수 없습니다."

type classRequest struct {
	Name        string `json:"name" binding:"required"`
	Grade       string `json:"grade"`
	Description string `json:"description"`
}

func (r classRequest) input() db.ClassInput {
	return db.ClassInput{Name: r.Name, Grade: r.Grade, Description: r.Description}
}

// ListClasses handles GET /api/classes
func (h *APIHandler) ListClasses(c *gin.Context) {
	classes, err := h.Store.ListClasses(c.Request.Context(), middleware.CurrentUser(c).BranchID)
	if err != nil {
		h.fail(c, err, messages{})
		return
	}
	respond(c, http.StatusOK, classes)
}

// CreateClass handles POST /api/classes
func (h *APIHandler) CreateClass(c *gin.Context) {
	var req classRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "반 이름을 입력해주세요.")
		return
	}
	class, err := h.Store.CreateClass(c.Request.Context(), middleware.CurrentUser(c).BranchID, req.input())
	if err != nil {
		h.fail(c, err, messages{})
		return
	}
	respondMessage(c, http.StatusCreated, class, "반이 생성되었습니다.")
}

// UpdateClass handles PUT /api/classes/:id
func (h *APIHandler) UpdateClass(c *gin.Context) {
	var req classRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "반 이름을 입력해주세요.")
		return
	}
	class, err := h.Store.UpdateClass(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c).BranchID, req.input())
	if err != nil {
		h.fail(c, err, messages{NotFound: msgClassNotFound})
		return
	}
	respondMessage(c, http.StatusOK, class, "반 정보가 수정되었습니다.")
}

// ClassStudents handles GET /api/classes/:id/students
func (h *APIHandler) ClassStudents(c *gin.Context) {
	students, err := h.Store.ClassMembers(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c).BranchID)
	if err != nil {
		h.fail(c, err, messages{NotFound: msgClassNotFound})
		return
	}
	respond(c, http.StatusOK, students)
}

// AssignStudent handles POST /api/classes/:id/students/:studentId
func (h *APIHandler) AssignStudent(c *gin.Context) {
	err := h.Store.AssignStudent(c.Request.Context(), c.Param("id"), c.Param("studentId"), middleware.CurrentUser(c).BranchID)
	if err != nil {
		h.fail(c, err, messages{NotFound: msgClassNotFound, Conflict: "이미 배정된 학생입니다."})
		return
	}
	respondMessage(c, http.StatusOK, nil, "학생이 반에 배정되었습니다.")
}

// UnassignStudent handles DELETE /api/classes/:id/students/:studentId
func (h *APIHandler) UnassignStudent(c *gin.Context) {
	err := h.Store.UnassignStudent(c.Request.Context(), c.Param("id"), c.Param("studentId"), middleware.CurrentUser(c).BranchID)
	if err != nil {
		h.fail(c, err, messages{NotFound: msgClassNotFound})
		return
	}
	respondMessage(c, http.StatusOK, nil, "학생이 반에서 제외되었습니다.")
}
