package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const recentActivityLimit = 5

// AdminStats handles GET /api/admin/stats
func (h *APIHandler) AdminStats(c *gin.Context) {
	stats, err := h.Store.AdminStats(c.Request.Context(), c.Query("grade"))
	if err != nil {
		h.fail(c, err, messages{})
		return
	}
	respond(c, http.StatusOK, stats)
}

// RecentActivity handles GET /api/admin/recent-activity
func (h *APIHandler) RecentActivity(c *gin.Context) {
	exams, err := h.Store.RecentExams(c.Request.Context(), recentActivityLimit)
	if err != nil {
		h.fail(c, err, messages{})
		return
	}
	respond(c, http.StatusOK, exams)
}
