package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"exam-server-go/config"
	"exam-server-go/db"
	"exam-server-go/db/dbtest"
	"exam-server-go/models"
	"exam-server-go/report"
)

var now = time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)

type memSessions struct {
	mu   sync.Mutex
	data map[string]*models.SessionUser
}

func (m *memSessions) Get(_ context.Context, id string) (*models.SessionUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[id], nil
}

func (m *memSessions) Save(_ context.Context, id string, u *models.SessionUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id] = u
	return nil
}

func (m *memSessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *fakeLocker) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, db.ErrLocked
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, nil
}

type fakeAnalyzer struct {
	text string
	err  error
}

func (f *fakeAnalyzer) Analyze(context.Context, string) (string, error) {
	return f.text, f.err
}

type testServer struct {
	t        *testing.T
	router   *gin.Engine
	store    *db.Store
	fx       *dbtest.Fixture
	sessions *memSessions
	locker   *fakeLocker
	analyzer *fakeAnalyzer
}

func newServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := dbtest.NewStore(t)
	dbtest.FixedClock(store, now)
	fx := dbtest.Seed(t, store)

	ts := &testServer{
		t:        t,
		store:    store,
		fx:       fx,
		sessions: &memSessions{data: map[string]*models.SessionUser{}},
		locker:   &fakeLocker{held: map[string]bool{}},
		analyzer: &fakeAnalyzer{err: report.ErrAnalyzerDisabled},
	}
	h := NewAPIHandler(Deps{
		Store:    store,
		Sessions: ts.sessions,
		Locker:   ts.locker,
		Reports:  report.NewGenerator(ts.analyzer, zap.NewNop()),
		Server: config.ServerConfig{
			CORSOrigins:    []string{"http://localhost:5173"},
			UploadMaxBytes: 1 << 20,
		},
		Session: config.SessionConfig{CookieName: "sid", TTL: time.Hour},
		Logger:  zap.NewNop(),
	})
	ts.router = NewRouter(h)
	return ts
}

func (ts *testServer) serve(req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) do(method, path string, body interface{}, cookie *http.Cookie) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return ts.serve(req, cookie)
}

func (ts *testServer) upload(path, filename string, content []byte, cookie *http.Cookie) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(ts.t, err)
	_, err = part.Write(content)
	require.NoError(ts.t, err)
	require.NoError(ts.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return ts.serve(req, cookie)
}

// login signs in and returns the session cookie.
func (ts *testServer) login(username, password string) *http.Cookie {
	ts.t.Helper()
	w := ts.do(http.MethodPost, "/api/auth/login", gin.H{"username": username, "password": password}, nil)
	require.Equal(ts.t, http.StatusOK, w.Code, w.Body.String())
	for _, c := range w.Result().Cookies() {
		if c.Name == "sid" {
			return c
		}
	}
	ts.t.Fatalf("login %s: no session cookie", username)
	return nil
}

func (ts *testServer) admin() *http.Cookie   { return ts.login("admin", "admin-pass") }
func (ts *testServer) manager() *http.Cookie { return ts.login("mgr-a", "pass-a") }

// student logs in as the i-th seeded student.
func (ts *testServer) student(i int) *http.Cookie {
	return ts.login(fmt.Sprintf("010-0000-100%d", i), fmt.Sprintf("100%d", i))
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data), string(env.Data))
	}
	return env
}

// distribute creates an open distribution of the seeded exam in branch A.
func (ts *testServer) distribute(cookie *http.Cookie, extra gin.H) models.ExamDistribution {
	ts.t.Helper()
	body := gin.H{
		"examId":    ts.fx.Exam.ID,
		"startDate": now.Add(-time.Hour).Format(time.RFC3339),
		"endDate":   now.Add(24 * time.Hour).Format(time.RFC3339),
	}
	for k, v := range extra {
		body[k] = v
	}
	w := ts.do(http.MethodPost, "/api/distributions", body, cookie)
	require.Equal(ts.t, http.StatusCreated, w.Code, w.Body.String())
	var created []models.ExamDistribution
	decode(ts.t, w, &created)
	require.Len(ts.t, created, 1)
	return created[0]
}

// submitted starts and submits an attempt for the i-th student with the
// given number of correct marks.
func (ts *testServer) submitted(i int, dist models.ExamDistribution, correct int) db.GradedAttempt {
	ts.t.Helper()
	cookie := ts.student(i)
	w := ts.do(http.MethodPost, "/api/exam-attempts", gin.H{"distributionId": dist.ID}, cookie)
	require.Equal(ts.t, http.StatusCreated, w.Code, w.Body.String())
	var a models.ExamAttempt
	decode(ts.t, w, &a)

	w = ts.do(http.MethodPost, "/api/exam-attempts/"+a.ID+"/submit", gin.H{"answers": dbtest.Marks(correct)}, cookie)
	require.Equal(ts.t, http.StatusOK, w.Code, w.Body.String())
	var graded db.GradedAttempt
	decode(ts.t, w, &graded)
	return graded
}
