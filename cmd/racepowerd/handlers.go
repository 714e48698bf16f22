package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"racepower-backend/lib/zwiftpower"
	"racepower-backend/services/racedata"
)

// sessionHeader carries the caller's serialized session as a json
// string array. The daemon never stores it.
const sessionHeader = "x-zwift-session"

const maxCredentialLength = 255

type server struct {
	svc racedata.Service
}

func RegisterRoutes(mux *http.ServeMux, svc racedata.Service) {
	s := server{svc: svc}

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("GET /api/race/{raceId}/riders", logged(s.handleRiders))
	mux.HandleFunc("GET /api/race/{raceId}/analysis", logged(s.handleAnalysis))
	mux.HandleFunc("GET /api/race/{raceId}/fit-files", logged(s.handleFitFiles))
}

// logged wraps data routes with request logging. The login route is
// deliberately not wrapped so credential traffic never reaches the log.
func logged(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next(w, r)
		slog.InfoContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func sessionFromRequest(r *http.Request) ([]string, error) {
	raw := r.Header.Get(sessionHeader)
	if raw == "" {
		return nil, nil
	}
	var session []string
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Session []string `json:"session"`
}

func (s server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	if len(req.Username) > maxCredentialLength || len(req.Password) > maxCredentialLength {
		writeError(w, http.StatusBadRequest, "credential too long")
		return
	}

	session, err := s.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		var authErr *zwiftpower.AuthError
		if errors.As(err, &authErr) && authErr.Kind == zwiftpower.AuthInvalidCredentials {
			writeError(w, http.StatusUnauthorized, "login rejected by upstream")
			return
		}
		// no detail on purpose, the cause may be adjacent to credentials
		slog.ErrorContext(r.Context(), "login failed", "err", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Session: session})
}

func (s server) handleRiders(w http.ResponseWriter, r *http.Request) {
	session, err := sessionFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed session header")
		return
	}

	roster, err := s.svc.Roster(r.Context(), session, r.PathValue("raceId"))
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	if roster == nil {
		roster = []zwiftpower.Rider{}
	}
	writeJSON(w, http.StatusOK, roster)
}

func (s server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	session, err := sessionFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed session header")
		return
	}

	out, err := s.svc.RaceAnalysis(r.Context(), session, r.PathValue("raceId"))
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	if out == nil {
		out = []zwiftpower.Analysis{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s server) handleFitFiles(w http.ResponseWriter, r *http.Request) {
	session, err := sessionFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed session header")
		return
	}

	files, err := s.svc.RaceFitFiles(r.Context(), session, r.PathValue("raceId"))
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	if files == nil {
		files = []zwiftpower.FitFile{}
	}
	writeJSON(w, http.StatusOK, files)
}

func writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "upstream fetch failed",
		"path", r.URL.Path,
		"err", err,
	)

	var fetchErr *zwiftpower.FetchError
	if errors.As(err, &fetchErr) && fetchErr.Kind == zwiftpower.FetchRateLimited {
		writeError(w, http.StatusServiceUnavailable, "upstream is rate limiting, retry later")
		return
	}
	writeError(w, http.StatusBadGateway, "upstream fetch failed")
}
