package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/sitepulse/internal/alert"
	"github.com/hamed0406/sitepulse/internal/domain"
	apimw "github.com/hamed0406/sitepulse/internal/httpapi/middleware"
	"github.com/hamed0406/sitepulse/internal/repo"
	"github.com/hamed0406/sitepulse/internal/scheduler"
)

type Checker interface {
	RunSingleCheck(ctx context.Context, id domain.EndpointID) (domain.CheckResult, error)
}

type Server struct {
	Logger  *zap.Logger
	Store   repo.Gateway
	Checker Checker
	Live    http.Handler // websocket hub; nil disables /ws
}

func NewServer(l *zap.Logger, store repo.Gateway, c Checker, live http.Handler) *Server {
	return &Server{Logger: l, Store: store, Checker: c, Live: live}
}

type Options struct {
	Keys           apimw.Keys
	AllowedOrigins []string // empty allows any origin
	PublicRPM      int
	PublicBurst    int
	AdminRPM       int
	AdminBurst     int
}

func (s *Server) Router(o Options) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	origins := o.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(o.PublicRPM, o.PublicBurst))
		r.Use(apimw.RequireAny(o.Keys))

		r.Get("/api/endpoints", s.handleListEndpoints)
		r.Get("/api/endpoints/{id}/state", s.handleState)
		r.Get("/api/diagnosis", s.handleDiagnosis)
		if s.Live != nil {
			r.Handle("/ws", s.Live)
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(o.AdminRPM, o.AdminBurst))
		r.Use(apimw.RequireAdmin(o.Keys))

		r.Post("/api/endpoints", s.handleAddEndpoint)
		r.Post("/api/endpoints/{id}/check", s.handleCheck)
		r.Put("/api/workspaces/{id}/settings", s.handleWorkspaceSettings)
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

type addPayload struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	WorkspaceID string `json:"workspace_id"`
	Paused      bool   `json:"paused"`
}

func (s *Server) handleAddEndpoint(w http.ResponseWriter, r *http.Request) {
	var p addPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if !isValidHTTPURL(p.URL) {
		writeError(w, http.StatusBadRequest, "url must be http(s) with a host")
		return
	}

	e := &domain.Endpoint{
		WorkspaceID: domain.WorkspaceID(p.WorkspaceID),
		Name:        strings.TrimSpace(p.Name),
		URL:         normalizeHTTPURL(p.URL),
		Active:      !p.Paused,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.Store.AddEndpoint(r.Context(), e); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			writeError(w, http.StatusConflict, "endpoint already exists")
			return
		}
		s.Logger.Error("api_add_endpoint_error", zap.String("url", e.URL), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not add")
		return
	}
	s.Logger.Info("api_endpoint_added", zap.String("endpoint_id", string(e.ID)), zap.String("url", e.URL))

	resp := map[string]any{"endpoint": e}
	// a first check gives immediate feedback; paused endpoints are not probed
	if e.Active && s.Checker != nil {
		res, err := s.Checker.RunSingleCheck(r.Context(), e.ID)
		if err != nil {
			resp["check_error"] = err.Error()
		} else {
			resp["result"] = res
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListEndpoints(w http.ResponseWriter, r *http.Request) {
	eps, err := s.Store.ListEndpoints(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	writeJSON(w, http.StatusOK, eps)
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	id := domain.EndpointID(chi.URLParam(r, "id"))
	res, err := s.Checker.RunSingleCheck(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, "endpoint not found")
	case errors.Is(err, scheduler.ErrCheckInProgress):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.Logger.Error("api_check_error", zap.String("endpoint_id", string(id)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "check failed")
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	id := domain.EndpointID(chi.URLParam(r, "id"))
	if _, err := s.Store.Endpoint(r.Context(), id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "endpoint not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup error")
		return
	}
	st, err := s.Store.RuntimeState(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "state error")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDiagnosis(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var msg *string
	if v := q.Get("error"); v != "" {
		msg = &v
	}
	var code *int
	if v := q.Get("status"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "status must be an integer")
			return
		}
		code = &n
	}
	writeJSON(w, http.StatusOK, map[string]string{"diagnosis": alert.Diagnose(msg, code)})
}

type settingsPayload struct {
	TimeoutMS        int   `json:"timeout_ms"`
	MaxRetries       int   `json:"max_retries"`
	RetryDelayMS     int64 `json:"retry_delay_ms"`
	FailureThreshold int   `json:"failure_threshold"`
	NotifyDelayMS    int64 `json:"notify_delay_ms"`
}

func (s *Server) handleWorkspaceSettings(w http.ResponseWriter, r *http.Request) {
	var p settingsPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	c := domain.CheckConfig{
		Timeout:          time.Duration(p.TimeoutMS) * time.Millisecond,
		MaxRetries:       p.MaxRetries,
		RetryDelay:       time.Duration(p.RetryDelayMS) * time.Millisecond,
		FailureThreshold: p.FailureThreshold,
		NotifyDelay:      time.Duration(p.NotifyDelayMS) * time.Millisecond,
	}.Normalize()
	ws := domain.WorkspaceID(chi.URLParam(r, "id"))
	if err := s.Store.SetWorkspaceConfig(r.Context(), ws, c); err != nil {
		s.Logger.Error("api_settings_error", zap.String("workspace_id", string(ws)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not save settings")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func isValidHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Hostname() != ""
}

// normalizeHTTPURL lowercases scheme and host, drops default ports and a
// bare trailing slash so duplicates compare equal.
func normalizeHTTPURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	switch {
	case port != "":
		host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		host = "[" + host + "]"
	}
	u.Host = host
	if u.Path == "/" {
		u.Path = ""
	}
	return u.String()
}
