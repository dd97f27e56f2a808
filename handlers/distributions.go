package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"exam-server-go/db"
	"exam-server-go/middleware"
	"exam-server-go/models"
)

const (
	msgDistributionNotFound = "배포를 찾을 수 없습니다."
	msgBadWindow            = "시작일은 종료일보다 이전이어야 합니다."
	xlsxContentType         = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type createDistributionRequest struct {
	ExamID               string   `json:"examId" binding:"required"`
	BranchIDs            []string `json:"branchIds"`
	ClassID              *string  `json:"classId"`
	StudentIDs           []string `json:"studentIds"`
	StartDate            string   `json:"startDate" binding:"required"`
	EndDate              string   `json:"endDate" binding:"required"`
	ParentDistributionID *string  `json:"parentDistributionId"`
}

type reassignDistributionRequest struct {
	ClassID    *string  `json:"classId"`
	StudentIDs []string `json:"studentIds"`
}

// parseDate accepts RFC 3339 timestamps or plain dates. A plain end date
// covers the whole day.
func parseDate(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}
	return t, nil
}

// branchScope is the branch a viewer is limited to; admins see every branch.
func branchScope(u *models.SessionUser) string {
	if u.Role == models.RoleAdmin {
		return ""
	}
	return u.BranchID
}

// ListDistributions handles GET /api/distributions
func (h *APIHandler) ListDistributions(c *gin.Context) {
	dists, err := h.Store.ListDistributions(c.Request.Context(), branchScope(middleware.CurrentUser(c)))
	if err != nil {
		h.fail(c, err, messages{})
		return
	}
	respond(c, http.StatusOK, dists)
}

// CreateDistribution handles POST /api/distributions
func (h *APIHandler) CreateDistribution(c *gin.Context) {
	var req createDistributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, msgBadRequest)
		return
	}
	start, err := parseDate(req.StartDate, false)
	if err != nil {
		abort(c, http.StatusBadRequest, "시작일 형식이 올바르지 않습니다.")
		return
	}
	end, err := parseDate(req.EndDate, true)
	if err != nil {
		abort(c, http.StatusBadRequest, "종료일 형식이 올바르지 않습니다.")
		return
	}
	if !start.Before(end) {
		abort(c, http.StatusBadRequest, msgBadWindow)
		return
	}

	u := middleware.CurrentUser(c)
	in := db.NewDistribution{
		ExamID:        req.ExamID,
		ClassID:       req.ClassID,
		StudentIDs:    req.StudentIDs,
		StartDate:     start,
		EndDate:       end,
		DistributedBy: u.ID,
	}
	if u.Role == models.RoleAdmin {
		if len(req.BranchIDs) == 0 {
			abort(c, http.StatusBadRequest, "지점을 선택해주세요.")
			return
		}
		in.BranchIDs = req.BranchIDs
	} else {
		in.BranchIDs = []string{u.BranchID}
		in.ParentDistributionID = req.ParentDistributionID
	}

	created, err := h.Store.CreateDistributions(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err, messages{NotFound: msgExamNotFound, Invalid: msgBadWindow})
		return
	}
	respondMessage(c, http.StatusCreated, created, fmt.Sprintf("%d개 지점에 시험이 배포되었습니다.", len(created)))
}

// GetDistribution handles GET /api/distributions/:id
func (h *APIHandler) GetDistribution(c *gin.Context) {
	d, err := h.Store.GetDistribution(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, messages{NotFound: msgDistributionNotFound})
		return
	}
	if scope := branchScope(middleware.CurrentUser(c)); scope != "" && d.BranchID != scope {
		abort(c, http.StatusForbidden, msgForbidden)
		return
	}
	respond(c, http.StatusOK, d)
}

// UpdateDistribution handles PUT /api/distributions/:id
func (h *APIHandler) UpdateDistribution(c *gin.Context) {
	var req reassignDistributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, msgBadRequest)
		return
	}
	err := h.Store.ReassignDistribution(c.Request.Context(), c.Param("id"),
		branchScope(middleware.CurrentUser(c)), req.ClassID, req.StudentIDs)
	if err != nil {
		h.fail(c, err, messages{NotFound: msgDistributionNotFound})
		return
	}
	respondMessage(c, http.StatusOK, nil, "배포 대상이 수정되었습니다.")
}

// DeleteDistribution handles DELETE /api/distributions/:id
func (h *APIHandler) DeleteDistribution(c *gin.Context) {
	err := h.Store.DeleteDistribution(c.Request.Context(), c.Param("id"), branchScope(middleware.CurrentUser(c)))
	if err != nil {
		h.fail(c, err, messages{NotFound: msgDistributionNotFound})
		return
	}
	respondMessage(c, http.StatusOK, nil, "배포가 삭제되었습니다.")
}

// DistributionStudents handles GET /api/distributions/:id/students
func (h *APIHandler) DistributionStudents(c *gin.Context) {
	roster, err := h.Store.DistributionRoster(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c).BranchID)
	if err != nil {
		h.fail(c, err, messages{NotFound: msgDistributionNotFound})
		return
	}
	respond(c, http.StatusOK, roster)
}

// ExportDistribution handles GET /api/distributions/:id/results.xlsx
func (h *APIHandler) ExportDistribution(c *gin.Context) {
	roster, err := h.Store.DistributionRoster(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c).BranchID)
	if err != nil {
		h.fail(c, err, messages{NotFound: msgDistributionNotFound})
		return
	}
	buf, err := db.ExportRosterWorkbook(roster)
	if err != nil {
		h.fail(c, err, messages{})
		return
	}
	name := fmt.Sprintf("%s_결과.xlsx", roster.Exam.Title)
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(name))
	h.Logger.Debug("Roster exported", zap.String("distribution_id", roster.Distribution.ID), zap.Int("rows", len(roster.Students)))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
