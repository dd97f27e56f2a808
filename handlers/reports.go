package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"exam-server-go/db"
	"exam-server-go/metrics"
	"exam-server-go/middleware"
	"exam-server-go/models"
	"exam-server-go/report"
)

const (
	msgSubmittedNotFound = "제출된 시험을 찾을 수 없습니다."
	msgReportNotFound    = "보고서를 찾을 수 없습니다."
	msgReportExists      = "이미 보고서가 생성되었습니다."
	msgReportInProgress  = "보고서를 생성하고 있습니다. 잠시 후 다시 시도해주세요."
)

// GenerateReport handles POST /api/reports/generate/:attemptId
func (h *APIHandler) GenerateReport(c *gin.Context) {
	ctx := c.Request.Context()
	attemptID := c.Param("attemptId")

	a, err := h.Store.GetAttempt(ctx, attemptID)
	if err != nil {
		h.fail(c, err, messages{NotFound: msgSubmittedNotFound})
		return
	}
	if err := h.Store.AuthorizeAttempt(ctx, middleware.CurrentUser(c), a); err != nil {
		h.fail(c, err, messages{NotFound: msgSubmittedNotFound})
		return
	}
	if existing, found := h.existingReport(c, attemptID); found {
		if existing != nil {
			respondMessage(c, http.StatusOK, existing, msgReportExists)
		}
		return
	}
	if !a.Submitted() {
		abort(c, http.StatusNotFound, msgSubmittedNotFound)
		return
	}

	release, err := h.Locker.Acquire(ctx, attemptID)
	if errors.Is(err, db.ErrLocked) {
		abort(c, http.StatusConflict, msgReportInProgress)
		return
	}
	if err != nil {
		h.fail(c, err, messages{})
		return
	}
	defer release()

	// a concurrent request may have finished while we waited for the lock
	if existing, found := h.existingReport(c, attemptID); found {
		if existing != nil {
			respondMessage(c, http.StatusOK, existing, msgReportExists)
		}
		return
	}

	subj, err := h.Store.LoadReportSubject(ctx, attemptID)
	if err != nil {
		h.fail(c, err, messages{NotFound: msgSubmittedNotFound})
		return
	}
	r, outcome, err := h.Reports.Build(ctx, subj)
	if err != nil {
		if errors.Is(err, report.ErrNotSubmitted) {
			abort(c, http.StatusNotFound, msgSubmittedNotFound)
			return
		}
		h.fail(c, err, messages{})
		return
	}
	if err := h.Store.SaveReport(ctx, r); err != nil {
		h.fail(c, err, messages{Conflict: msgReportExists})
		return
	}
	metrics.ReportGenerated(outcome)
	h.Logger.Info("Report generated",
		zap.String("report_id", r.ID),
		zap.String("attempt_id", attemptID),
		zap.String("outcome", outcome))
	respondMessage(c, http.StatusCreated, r, "보고서가 생성되었습니다.")
}

// existingReport looks up the attempt's report. found is true when a report
// exists or when the lookup failed and a response was already written.
func (h *APIHandler) existingReport(c *gin.Context, attemptID string) (r *models.AIReport, found bool) {
	r, err := h.Store.ReportByAttempt(c.Request.Context(), attemptID)
	switch {
	case err == nil:
		return r, true
	case errors.Is(err, db.ErrNotFound):
		return nil, false
	default:
		h.fail(c, err, messages{})
		return nil, true
	}
}

// authorizeReport applies the attempt visibility rules to a report.
func (h *APIHandler) authorizeReport(c *gin.Context, r *models.AIReport) error {
	return h.Store.AuthorizeAttempt(c.Request.Context(), middleware.CurrentUser(c),
		&models.ExamAttempt{ID: r.AttemptID, StudentID: r.StudentID})
}

// ReportHTML handles GET /api/reports/:reportId
func (h *APIHandler) ReportHTML(c *gin.Context) {
	notFound := func() {
		c.Data(http.StatusNotFound, "text/html; charset=utf-8", []byte("<h1>"+msgReportNotFound+"</h1>"))
	}
	r, err := h.Store.GetReport(c.Request.Context(), c.Param("reportId"))
	if errors.Is(err, db.ErrNotFound) {
		notFound()
		return
	}
	if err != nil {
		h.fail(c, err, messages{})
		return
	}
	if err := h.authorizeReport(c, r); err != nil {
		h.fail(c, err, messages{NotFound: msgReportNotFound})
		return
	}
	html := r.HTMLContent
	if html == "" {
		if html, err = report.Render(r.Analysis); err != nil {
			h.fail(c, err, messages{})
			return
		}
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// ReportByAttempt handles GET /api/reports/attempt/:attemptId
func (h *APIHandler) ReportByAttempt(c *gin.Context) {
	r, err := h.Store.ReportByAttempt(c.Request.Context(), c.Param("attemptId"))
	if err != nil {
		h.fail(c, err, messages{NotFound: msgReportNotFound})
		return
	}
	if err := h.authorizeReport(c, r); err != nil {
		h.fail(c, err, messages{NotFound: msgReportNotFound})
		return
	}
	respond(c, http.StatusOK, r)
}
