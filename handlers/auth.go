package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"exam-server-go/db"
	"exam-server-go/middleware"
	"exam-server-go/models"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	UserType string `json:"userType" binding:"omitempty,oneof=admin branch student parent"`
}

const msgBadCredentials = "아이디 또는 비밀번호가 올바르지 않습니다."

// startSession stores u under a fresh session id, drops the previous one and
// sets the cookie.
func (h *APIHandler) startSession(c *gin.Context, u *models.User) (*models.SessionUser, error) {
	ctx := c.Request.Context()
	if old := middleware.SessionID(c); old != "" {
		if err := h.Sessions.Delete(ctx, old); err != nil {
			h.Logger.Warn("Failed to drop previous session", zap.Error(err))
		}
	}
	su := models.NewSessionUser(u)
	id := db.NewSessionID()
	if err := h.Sessions.Save(ctx, id, su); err != nil {
		return nil, err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.Session.CookieName, id, int(h.Session.TTL.Seconds()), "/", "", h.Session.Secure, true)
	middleware.SetUser(c, su)
	return su, nil
}

// Login handles POST /api/auth/login
func (h *APIHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "아이디와 비밀번호를 입력해주세요.")
		return
	}
	u, err := h.Store.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			abort(c, http.StatusUnauthorized, msgBadCredentials)
			return
		}
		h.fail(c, err, messages{})
		return
	}
	if req.UserType != "" && req.UserType != u.Role {
		abort(c, http.StatusUnauthorized, msgBadCredentials)
		return
	}
	su, err := h.startSession(c, u)
	if err != nil {
		h.fail(c, err, messages{})
		return
	}
	h.Logger.Info("User logged in", zap.String("user_id", u.ID), zap.String("role", u.Role))
	respondMessage(c, http.StatusOK, su, "로그인 성공")
}

// Me handles GET /api/auth/me
func (h *APIHandler) Me(c *gin.Context) {
	respond(c, http.StatusOK, middleware.CurrentUser(c))
}

// Logout handles POST /api/auth/logout
func (h *APIHandler) Logout(c *gin.Context) {
	if id := middleware.SessionID(c); id != "" {
		if err := h.Sessions.Delete(c.Request.Context(), id); err != nil {
			h.fail(c, err, messages{})
			return
		}
	}
	c.SetCookie(h.Session.CookieName, "", -1, "/", "", h.Session.Secure, true)
	respondMessage(c, http.StatusOK, nil, "로그아웃 되었습니다.")
}

func (h *APIHandler) impersonate(c *gin.Context, u *models.User, err error, notFound string) {
	if err != nil {
		h.fail(c, err, messages{NotFound: notFound})
		return
	}
	actor := middleware.CurrentUser(c)
	su, err := h.startSession(c, u)
	if err != nil {
		h.fail(c, err, messages{})
		return
	}
	h.Logger.Info("Impersonation started",
		zap.String("actor_id", actor.ID),
		zap.String("target_id", u.ID),
		zap.String("target_role", u.Role))
	respondMessage(c, http.StatusOK, su, u.Name+" 계정으로 전환되었습니다.")
}

// ImpersonateBranch handles POST /api/auth/impersonate/:branchId
func (h *APIHandler) ImpersonateBranch(c *gin.Context) {
	u, err := h.Store.BranchManager(c.Request.Context(), c.Param("branchId"))
	h.impersonate(c, u, err, "지점 관리자 계정을 찾을 수 없습니다.")
}

// ImpersonateStudent handles POST /api/auth/impersonate/student/:studentId and
// POST /api/students/:id/login-as
func (h *APIHandler) ImpersonateStudent(c *gin.Context) {
	id := c.Param("studentId")
	if id == "" {
		id = c.Param("id")
	}
	branchID := middleware.CurrentUser(c).BranchID
	u, err := h.Store.StudentAccount(c.Request.Context(), id, branchID)
	h.impersonate(c, u, err, "학생 정보를 찾을 수 없습니다.")
}

// ImpersonateParent handles POST /api/auth/impersonate/parent/:parentId
func (h *APIHandler) ImpersonateParent(c *gin.Context) {
	branchID := middleware.CurrentUser(c).BranchID
	u, err := h.Store.ParentAccount(c.Request.Context(), c.Param("parentId"), branchID)
	h.impersonate(c, u, err, "학부모 정보를 찾을 수 없습니다.")
}
