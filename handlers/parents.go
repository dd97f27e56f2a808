package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"exam-server-go/db"
	"exam-server-go/middleware"
)

type createParentRequest struct {
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
	Name      string `json:"name" binding:"required"`
	Phone     string `json:"phone"`
	StudentID string `json:"studentId" binding:"required"`
}

// ListParents handles GET /api/parents
func (h *APIHandler) ListParents(c *gin.Context) {
	parents, err := h.Store.ListParents(c.Request.Context(), middleware.CurrentUser(c).BranchID)
	if err != nil {
		h.fail(c, err, messages{})
		return
	}
	respond(c, http.StatusOK, parents)
}

// CreateParent handles POST /api/parents
func (h *APIHandler) CreateParent(c *gin.Context) {
	var req createParentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, msgBadRequest)
		return
	}
	parent, err := h.Store.CreateParent(c.Request.Context(), middleware.CurrentUser(c).BranchID, db.ParentInput{
		Username:  req.Username,
		Password:  req.Password,
		Name:      req.Name,
		Phone:     req.Phone,
		StudentID: req.StudentID,
	})
	if err != nil {
		h.fail(c, err, messages{NotFound: msgStudentNotFound, Conflict: "이미 사용 중인 아이디입니다."})
		return
	}
	respondMessage(c, http.StatusCreated, parent, "학부모 계정이 생성되었습니다.")
}
