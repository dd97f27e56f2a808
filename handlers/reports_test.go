package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exam-server-go/models"
)

func TestGenerateReport(t *testing.T) {
	ts := newServer(t)
	mgr := ts.manager()
	dist := ts.distribute(mgr, nil)
	ts.submitted(1, dist, 9)
	graded := ts.submitted(0, dist, 6)

	ts.analyzer.err = nil
	ts.analyzer.text = "```json\n{\"analysis\":{\"summary\":\"문학 영역 보완이 필요합니다.\"}}\n```"

	student := ts.student(0)
	w := ts.do(http.MethodPost, "/api/reports/generate/"+graded.ID, nil, student)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var r models.AIReport
	decode(t, w, &r)
	assert.Equal(t, graded.ID, r.AttemptID)
	assert.Equal(t, "문학 영역 보완이 필요합니다.", r.Summary)
	assert.Equal(t, 2, r.Analysis.ScoreSummary.Rank)
	assert.Equal(t, 2, r.Analysis.ScoreSummary.RankTotal)
	assert.Equal(t, []string{"문학", "독서"}, r.Analysis.Charts.Labels)

	// a second request returns the stored report
	w = ts.do(http.MethodPost, "/api/reports/generate/"+graded.ID, nil, mgr)
	require.Equal(t, http.StatusOK, w.Code)
	var again models.AIReport
	assert.Equal(t, msgReportExists, decode(t, w, &again).Message)
	assert.Equal(t, r.ID, again.ID)

	w = ts.do(http.MethodGet, "/api/reports/"+r.ID, nil, student)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "문학 영역 보완이 필요합니다.")

	w = ts.do(http.MethodGet, "/api/reports/missing", nil, student)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "<h1>보고서를 찾을 수 없습니다.</h1>")

	w = ts.do(http.MethodGet, "/api/reports/attempt/"+graded.ID, nil, mgr)
	require.Equal(t, http.StatusOK, w.Code)

	// other students and other branches cannot read it
	w = ts.do(http.MethodGet, "/api/reports/"+r.ID, nil, ts.student(1))
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = ts.do(http.MethodGet, "/api/reports/attempt/"+graded.ID, nil, ts.login("mgr-b", "pass-b"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(http.MethodGet, "/api/exam-attempts/branch/completed", nil, mgr)
	assert.Contains(t, w.Body.String(), r.ID)
}

func TestGenerateReportRules(t *testing.T) {
	ts := newServer(t)
	mgr := ts.manager()
	dist := ts.distribute(mgr, nil)

	student := ts.student(0)
	w := ts.do(http.MethodPost, "/api/exam-attempts", map[string]string{"distributionId": dist.ID}, student)
	require.Equal(t, http.StatusCreated, w.Code)
	var open models.ExamAttempt
	decode(t, w, &open)

	w = ts.do(http.MethodPost, "/api/reports/generate/"+open.ID, nil, student)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, msgSubmittedNotFound, decode(t, w, nil).Message)

	w = ts.do(http.MethodPost, "/api/reports/generate/missing", nil, student)
	assert.Equal(t, http.StatusNotFound, w.Code)

	graded := ts.submitted(1, dist, 5)
	w = ts.do(http.MethodPost, "/api/reports/generate/"+graded.ID, nil, student)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// generation already running for this attempt
	release, err := ts.locker.Acquire(t.Context(), graded.ID)
	require.NoError(t, err)
	w = ts.do(http.MethodPost, "/api/reports/generate/"+graded.ID, nil, mgr)
	assert.Equal(t, http.StatusConflict, w.Code)
	release()

	// analyzer disabled: computed analysis is stored
	w = ts.do(http.MethodPost, "/api/reports/generate/"+graded.ID, nil, mgr)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var r models.AIReport
	decode(t, w, &r)
	assert.Equal(t, "이두리 학생의 성적 분석 결과입니다.", r.Summary)
	assert.Empty(t, ts.locker.held)
}
