package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattmezza/biopatch/internal/account"
	"github.com/mattmezza/biopatch/internal/clock"
	"github.com/mattmezza/biopatch/internal/dashboard"
	"github.com/mattmezza/biopatch/internal/insights"
	"github.com/mattmezza/biopatch/internal/session"
	"github.com/mattmezza/biopatch/internal/state"
)

type testServer struct {
	router  *mux.Router
	clock   *clock.Fake
	entered []string
}

func newTestServer() *testServer {
	c := clock.NewFake(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	dash := dashboard.New(c, session.Options{}, nil)
	srv := NewServer(dash, account.NewRegistry(), insights.NewGenerator(1), c, nil)
	ts := &testServer{clock: c}
	srv.OnEnter(func(user string) { ts.entered = append(ts.entered, user) })
	ts.router = srv.Router()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer()
	rec := ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK\n", rec.Body.String())
}

func TestCommandsBeforeEnter(t *testing.T) {
	ts := newTestServer()

	snap := decode[state.Snapshot](t, ts.do(t, http.MethodGet, "/dashboard", ""))
	assert.False(t, snap.Entered)

	testCases := []struct {
		path string
		code int
	}{
		{"/alerts/high_glucose/approve", http.StatusConflict},
		{"/alerts/low_spo2/reject", http.StatusConflict},
		{"/issues/abc/approve", http.StatusConflict},
		{"/actions/diagnostics", http.StatusConflict},
		{"/actions/export", http.StatusConflict},
		{"/alerts/fever/approve", http.StatusBadRequest},
	}
	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, tc.path, "")
			assert.Equal(t, tc.code, rec.Code)
			assert.NotEmpty(t, decode[errorResponse](t, rec).Error)
		})
	}
}

func TestSignupAndLogin(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(t, http.MethodPost, "/accounts/login", `{"email":"ada@example.com","password":"pw"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/accounts/signup", `{"name":"Ada","email":"ada@example.com","password":"pw","agreed_terms":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "data consent is required")

	rec = ts.do(t, http.MethodPost, "/accounts/signup", `{"name":"Ada","email":"ada@example.com","password":"pw","agreed_terms":true,"data_consent":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, account.User{Name: "Ada", Email: "ada@example.com"}, decode[account.User](t, rec))

	snap := decode[state.Snapshot](t, ts.do(t, http.MethodGet, "/dashboard", ""))
	require.True(t, snap.Entered)
	assert.Equal(t, "Ada", snap.User)
	var texts []string
	for _, e := range snap.Log {
		texts = append(texts, e.Text)
	}
	assert.Contains(t, texts, session.AccountText)
	assert.Contains(t, texts, session.InitializedText)

	rec = ts.do(t, http.MethodPost, "/accounts/login", `{"email":"ada@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/accounts/login", `{"email":"","password":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/accounts/login", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/accounts/login", `{"email":"ada@example.com","password":"pw"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{"Ada", "Ada"}, ts.entered)
}

func TestAlertFlow(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(t, http.MethodPost, "/dashboard/enter", `{"user":"Grace"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[state.Snapshot](t, rec).Entered)

	ts.clock.Advance(15 * time.Second)

	rec = ts.do(t, http.MethodPost, "/alerts/high_glucose/reject", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[CommandResponse](t, rec)
	require.True(t, resp.Applied)
	require.NotNil(t, resp.Issue)
	issueID := resp.Issue.ID

	rec = ts.do(t, http.MethodPost, "/alerts/high_glucose/approve", "")
	assert.False(t, decode[CommandResponse](t, rec).Applied, "already resolved")

	rec = ts.do(t, http.MethodPost, "/issues/"+issueID+"/approve", "")
	assert.True(t, decode[CommandResponse](t, rec).Applied)
	rec = ts.do(t, http.MethodPost, "/issues/"+issueID+"/approve", "")
	assert.False(t, decode[CommandResponse](t, rec).Applied)

	snap := decode[state.Snapshot](t, ts.do(t, http.MethodGet, "/dashboard", ""))
	assert.Equal(t, 90, snap.Record.Glucose)
	assert.Empty(t, snap.Issues)

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodPost, "/actions/diagnostics", "").Code)
	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodPost, "/actions/export", "").Code)
	snap = decode[state.Snapshot](t, ts.do(t, http.MethodGet, "/dashboard", ""))
	require.NotEmpty(t, snap.Log)
	assert.Equal(t, session.ExportText, snap.Log[0].Text)

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodPost, "/dashboard/leave", "").Code)
	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, "/actions/diagnostics", "").Code)
}

func TestEnterWithoutBody(t *testing.T) {
	ts := newTestServer()
	rec := ts.do(t, http.MethodPost, "/dashboard/enter", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[state.Snapshot](t, rec).Entered)
}

func TestInsights(t *testing.T) {
	ts := newTestServer()
	rec := ts.do(t, http.MethodGet, "/insights", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[InsightsResponse](t, rec)
	assert.Len(t, resp.Samples, insights.Hours)
	assert.Len(t, resp.Summary, len(insights.Fields()))
	assert.True(t, ts.clock.Now().Equal(resp.Samples[insights.Hours-1].At))
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer()
	rec := ts.do(t, http.MethodGet, "/alerts/high_glucose/approve", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
