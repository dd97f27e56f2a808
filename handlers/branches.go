package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"exam-server-go/db"
)

const msgBranchNotFound = "지점을 찾을 수 없습니다."

type createBranchRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name" binding:"required"`
	Address     string `json:"address"`
	Phone       string `json:"phone"`
	ManagerName string `json:"managerName"`
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
}

type updateBranchRequest struct {
	Name        string `json:"name" binding:"required"`
	Address     string `json:"address"`
	Phone       string `json:"phone"`
	ManagerName string `json:"managerName"`
}

type reorderBranchesRequest struct {
	BranchIDs []string `json:"branchIds" binding:"required"`
}

// ListBranches handles GET /api/branches
func (h *APIHandler) ListBranches(c *gin.Context) {
	branches, err := h.Store.ListBranches(c.Request.Context())
	if err != nil {
		h.fail(c, err, messages{})
		return
	}
	respond(c, http.StatusOK, branches)
}

// CreateBranch handles POST /api/branches
func (h *APIHandler) CreateBranch(c *gin.Context) {
	var req createBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, msgBadRequest)
		return
	}
	branch, err := h.Store.CreateBranch(c.Request.Context(), db.NewBranch{
		ID:          req.ID,
		Name:        req.Name,
		Address:     req.Address,
		Phone:       req.Phone,
		ManagerName: req.ManagerName,
		Username:    req.Username,
		Password:    req.Password,
	})
	if err != nil {
		h.fail(c, err, messages{Conflict: "이미 사용 중인 아이디입니다."})
		return
	}
	respondMessage(c, http.StatusCreated, branch, "지점이 생성되었습니다.")
}

// UpdateBranch handles PUT /api/branches/:id
func (h *APIHandler) UpdateBranch(c *gin.Context) {
	var req updateBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, msgBadRequest)
		return
	}
	branch, err := h.Store.UpdateBranch(c.Request.Context(), c.Param("id"), db.BranchUpdate{
		Name:        req.Name,
		Address:     req.Address,
		Phone:       req.Phone,
		ManagerName: req.ManagerName,
	})
	if err != nil {
		h.fail(c, err, messages{NotFound: msgBranchNotFound})
		return
	}
	respondMessage(c, http.StatusOK, branch, "지점 정보가 수정되었습니다.")
}

// DeleteBranch handles DELETE /api/branches/:id
func (h *APIHandler) DeleteBranch(c *gin.Context) {
	if err := h.Store.DeleteBranch(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err, messages{NotFound: msgBranchNotFound})
		return
	}
	respondMessage(c, http.StatusOK, nil, "지점이 삭제되었습니다.")
}

// ReorderBranches handles POST /api/branches/reorder
func (h *APIHandler) ReorderBranches(c *gin.Context) {
	var req reorderBranchesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, msgBadRequest)
		return
	}
	if err := h.Store.ReorderBranches(c.Request.Context(), req.BranchIDs); err != nil {
		h.fail(c, err, messages{})
		return
	}
	respondMessage(c, http.StatusOK, nil, "지점 순서가 변경되었습니다.")
}
