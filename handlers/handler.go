// Package handlers implements the JSON API of the exam server on gin.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"exam-server-go/config"
	"exam-server-go/db"
	"exam-server-go/middleware"
	"exam-server-go/models"
	"exam-server-go/report"
)

// ReportBuilder turns a submitted attempt into a report.
type ReportBuilder interface {
	Build(ctx context.Context, subj *db.ReportSubject) (*models.AIReport, string, error)
}

// APIHandler holds the dependencies shared by every route.
type APIHandler struct {
	Store    *db.Store
	Sessions db.SessionStore
	Locker   db.Locker
	Reports  ReportBuilder
	Server   config.ServerConfig
	Session  config.SessionConfig
	Logger   *zap.Logger
}

// Deps are the collaborators of NewAPIHandler.
type Deps struct {
	Store    *db.Store
	Sessions db.SessionStore
	Locker   db.Locker
	Reports  ReportBuilder
	Server   config.ServerConfig
	Session  config.SessionConfig
	Logger   *zap.Logger
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(d Deps) *APIHandler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &APIHandler{
		Store:    d.Store,
		Sessions: d.Sessions,
		Locker:   d.Locker,
		Reports:  d.Reports,
		Server:   d.Server,
		Session:  d.Session,
		Logger:   d.Logger,
	}
}

var _ ReportBuilder = (*report.Generator)(nil)

// currentStudent loads the student profile of the logged-in student.
func (h *APIHandler) currentStudent(c *gin.Context) (*models.Student, bool) {
	u := middleware.CurrentUser(c)
	st, err := h.Store.StudentByUserID(c.Request.Context(), u.ID)
	if err != nil {
		h.fail(c, err, messages{NotFound: "학생 정보를 찾을 수 없습니다."})
		return nil, false
	}
	return st, true
}

// PingHandler answers liveness probes.
func PingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Pong!"})
}
