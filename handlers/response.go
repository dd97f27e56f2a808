package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"exam-server-go/db"
)

const (
	msgUnauthorized = "인증이 필요합니다."
	msgForbidden    = "권한이 없습니다."
	msgBadRequest   = "필수 정보를 모두 입력해주세요."
	msgNotFound     = "요청한 정보를 찾을 수 없습니다."
	msgConflict     = "이미 존재하는 정보입니다."
	msgServerError  = "서버 오류가 발생했습니다."
)

// messages overrides the client-facing text per error class.
type messages struct {
	NotFound  string
	Conflict  string
	Invalid   string
	Forbidden string
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondMessage(c *gin.Context, status int, data interface{}, message string) {
	body := gin.H{"success": true, "message": message}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}

func pick(custom, fallback string) string {
	if custom != "" {
		return custom
	}
	return fallback
}

// fail maps a store error to a status code and message. Unexpected errors are
// logged and answered with a generic 500.
func (h *APIHandler) fail(c *gin.Context, err error, m messages) {
	var sheet *db.SheetError
	switch {
	case errors.As(err, &sheet):
		abort(c, http.StatusBadRequest, sheet.Message)
	case errors.Is(err, db.ErrNotFound):
		abort(c, http.StatusNotFound, pick(m.NotFound, msgNotFound))
	case errors.Is(err, db.ErrForbidden):
		abort(c, http.StatusForbidden, pick(m.Forbidden, msgForbidden))
	case errors.Is(err, db.ErrConflict):
		abort(c, http.StatusBadRequest, pick(m.Conflict, msgConflict))
	case errors.Is(err, db.ErrInvalid):
		abort(c, http.StatusBadRequest, pick(m.Invalid, msgBadRequest))
	default:
		h.Logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Error(err))
		abort(c, http.StatusInternalServerError, msgServerError)
	}
}
