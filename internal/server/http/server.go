package internalhttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ldomjan/sharedcal/internal/app"
	"github.com/ldomjan/sharedcal/internal/auth"
	"github.com/ldomjan/sharedcal/internal/holiday"
	"github.com/ldomjan/sharedcal/internal/hub"
	"github.com/ldomjan/sharedcal/internal/storage"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	Host          string
	Port          int
	HolidayRegion string
}

type Server struct {
	srv      *http.Server
	addr     string
	app      *app.App
	auth     *auth.Service
	hub      *hub.Hub
	holidays *holiday.Fetcher
	region   string
}

func NewServer(config Config, app *app.App, authService *auth.Service, h *hub.Hub, holidays *holiday.Fetcher) *Server {
	addr := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
	region := config.HolidayRegion
	if region == "" {
		region = "HR"
	}
	s := &Server{
		addr:     addr,
		app:      app,
		auth:     authService,
		hub:      h,
		holidays: holidays,
		region:   region,
	}
	s.srv = &http.Server{Addr: addr, Handler: loggingMiddleware(s.routes())}
	return s
}

func (s *Server) Start(_ context.Context) error {
	log.Printf("starting http server on %s", s.addr)
	err := s.srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/register", s.handleRegister)
	mux.HandleFunc("/api/auth/login", s.handleLogin)
	mux.HandleFunc("/api/users/me", s.requireAuth(s.handleCurrentUser))
	mux.HandleFunc("/api/users", s.requireAuth(s.handleUsers))
	mux.HandleFunc("/api/users/", s.requireAuth(s.handleUserByID))
	mux.HandleFunc("/api/events", s.requireAuth(s.handleEvents))
	mux.HandleFunc("/api/events/", s.requireAuth(s.handleEventByID))
	mux.HandleFunc("/api/holidays", s.requireAuth(s.handleHolidays))
	mux.HandleFunc("/ws", s.requireAuth(s.handleSocket))
	return mux
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	user, err := s.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	token, user, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"token": token, "user": user})
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, _ *http.Request, user storage.User) {
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request, _ storage.User) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	users, err := s.app.ListUsers(r.Context())
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleUserByID(w http.ResponseWriter, r *http.Request, user storage.User) {
	id := strings.TrimPrefix(r.URL.Path, "/api/users/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		u, err := s.app.Storage.GetUser(r.Context(), id)
		if err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	case http.MethodPatch:
		var patch storage.User
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		u, err := s.app.UpdateUser(r.Context(), user.ID, id, patch)
		if err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	case http.MethodDelete:
		if err := s.app.RemoveUser(r.Context(), user.ID, id); err != nil {
			writeStorageError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, user storage.User) {
	switch r.Method {
	case http.MethodGet:
		events, err := s.app.ListEvents(r.Context())
		if err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, events)
	case http.MethodPost:
		var e storage.Event
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		created, err := s.app.CreateEvent(r.Context(), user.ID, e)
		if err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleEventByID(w http.ResponseWriter, r *http.Request, user storage.User) {
	id := strings.TrimPrefix(r.URL.Path, "/api/events/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		e, err := s.app.GetEvent(r.Context(), id)
		if err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	case http.MethodPut:
		var e storage.Event
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		updated, err := s.app.UpdateEvent(r.Context(), user.ID, id, e)
		if err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		removed, err := s.app.RemoveEvent(r.Context(), user.ID, id)
		if err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, removed)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleHolidays proxies the public-holiday feed. A feed failure is
// not a calendar failure: the client gets an empty set and a warning
// lands in the log.
func (s *Server) handleHolidays(w http.ResponseWriter, r *http.Request, _ storage.User) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	year := time.Now().Year()
	if y := r.URL.Query().Get("year"); y != "" {
		parsed, err := strconv.Atoi(y)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid year")
			return
		}
		year = parsed
	}
	region := r.URL.Query().Get("region")
	if region == "" {
		region = s.region
	}

	holidays, err := s.holidays.Fetch(r.Context(), year, region)
	if err != nil {
		log.Warnf("holiday feed unavailable: %v", err)
		holidays = []holiday.Event{}
	}
	writeJSON(w, http.StatusOK, holidays)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"message": message})
}

func writeStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFoundEvent), errors.Is(err, storage.ErrNotFoundUser):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrEmptyTitle), errors.Is(err, storage.ErrIncorrectEventTime):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrDuplicateEventID), errors.Is(err, storage.ErrDuplicateUsername):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrNotOwner):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		log.Errorf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
