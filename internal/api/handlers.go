package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mattmezza/biopatch/internal/account"
	"github.com/mattmezza/biopatch/internal/condition"
	"github.com/mattmezza/biopatch/internal/dashboard"
	"github.com/mattmezza/biopatch/internal/insights"
	"github.com/mattmezza/biopatch/internal/issues"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type EnterRequest struct {
	User string `json:"user"`
}

// CommandResponse reports whether a command changed anything. Stale
// commands are not errors; they come back with Applied false.
type CommandResponse struct {
	Applied bool          `json:"applied"`
	Issue   *issues.Issue `json:"issue,omitempty"`
}

type InsightsResponse struct {
	Samples []insights.Sample  `json:"samples"`
	Summary []insights.Summary `json:"summary"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req account.Signup
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := s.accounts.Register(req)
	if err != nil {
		s.writeAccountError(w, err)
		return
	}
	s.enter(dashboard.EnterOptions{User: user.Name, NewAccount: true})
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := s.accounts.Login(req.Email, req.Password)
	if err != nil {
		s.writeAccountError(w, err)
		return
	}
	s.enter(dashboard.EnterOptions{User: user.Name})
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) EnterHandler(w http.ResponseWriter, r *http.Request) {
	var req EnterRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	s.enter(dashboard.EnterOptions{User: req.User})
	writeJSON(w, http.StatusOK, s.dash.Snapshot())
}

func (s *Server) LeaveHandler(w http.ResponseWriter, r *http.Request) {
	s.dash.Leave()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) SnapshotHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dash.Snapshot())
}

func (s *Server) ApproveNowHandler(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseCondition(w, r)
	if !ok {
		return
	}
	applied, err := s.dash.ApproveNow(kind)
	if err != nil {
		writeDashboardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CommandResponse{Applied: applied})
}

func (s *Server) RejectNowHandler(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseCondition(w, r)
	if !ok {
		return
	}
	issue, applied, err := s.dash.RejectNow(kind)
	if err != nil {
		writeDashboardError(w, err)
		return
	}
	resp := CommandResponse{Applied: applied}
	if applied {
		resp.Issue = &issue
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) ApproveIssueHandler(w http.ResponseWriter, r *http.Request) {
	applied, err := s.dash.ApproveIssue(mux.Vars(r)["id"])
	if err != nil {
		writeDashboardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CommandResponse{Applied: applied})
}

func (s *Server) DiagnosticsHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.dash.RunDiagnostics(); err != nil {
		writeDashboardError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) ExportHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.dash.ExportAnonymizedData(); err != nil {
		writeDashboardError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) InsightsHandler(w http.ResponseWriter, r *http.Request) {
	samples := s.insights.Last24h(s.clock.Now())
	writeJSON(w, http.StatusOK, InsightsResponse{Samples: samples, Summary: insights.Summarize(samples)})
}

func (s *Server) enter(opts dashboard.EnterOptions) {
	if s.onEnter != nil {
		s.onEnter(opts.User)
	}
	s.dash.Enter(opts)
	s.logger.Info("Dashboard entered over HTTP", zap.String("user", opts.User))
}

func (s *Server) writeAccountError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, account.ErrIncompleteSignup), errors.Is(err, account.ErrMissingCredentials):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, account.ErrNoAccount):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, account.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err)
	default:
		s.logger.Error("Account operation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeDashboardError(w http.ResponseWriter, err error) {
	if errors.Is(err, dashboard.ErrNotEntered) {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeError(w, http.StatusInternalServerError, err)
}

func parseCondition(w http.ResponseWriter, r *http.Request) (condition.Kind, bool) {
	kind, err := condition.ParseKind(mux.Vars(r)["condition"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return "", false
	}
	return kind, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
