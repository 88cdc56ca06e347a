package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/P-Jhao/agentForage-backend-sub001/internal/agents"
	"github.com/P-Jhao/agentForage-backend-sub001/internal/config"
	"github.com/P-Jhao/agentForage-backend-sub001/internal/feedback"
	"github.com/P-Jhao/agentForage-backend-sub001/internal/observability"
	"github.com/P-Jhao/agentForage-backend-sub001/internal/push"
	"github.com/P-Jhao/agentForage-backend-sub001/internal/taskruntime"
)

type Server struct {
	cfg             config.Config
	registry        *push.Registry
	taskService     *taskruntime.Service
	feedbackService *feedback.Service
	agentService    *agents.Service
	metrics         *observability.Metrics
	upgrader        websocket.Upgrader
}

func New(
	cfg config.Config,
	registry *push.Registry,
	taskService *taskruntime.Service,
	feedbackService *feedback.Service,
	agentService *agents.Service,
	metrics *observability.Metrics,
) *Server {
	return &Server{
		cfg:             cfg,
		registry:        registry,
		taskService:     taskService,
		feedbackService: feedbackService,
		agentService:    agentService,
		metrics:         metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from the
				// same origin, so other websites cannot attach to a user's
				// push stream if the service is ever exposed beyond localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/v1/events", s.handleEventsSSE)
	r.Get("/v1/events/ws", s.handleEventsWS)
	r.Get("/v1/events/stats", s.handleEventStats)

	r.Post("/v1/tasks", s.handleCreateTask)
	r.Get("/v1/tasks", s.handleListTasks)
	r.Get("/v1/tasks/{id}", s.handleGetTask)
	r.Post("/v1/tasks/{id}/cancel", s.handleCancelTask)
	r.Post("/v1/tasks/{id}/title", s.handleRenameTask)

	r.Post("/v1/feedback", s.handleSubmitFeedback)
	r.Get("/v1/feedback", s.handleListFeedback)

	r.Post("/v1/agents", s.handleCreateAgent)
	r.Put("/v1/agents/{id}", s.handleUpdateAgent)
	r.Get("/v1/agents/{id}", s.handleGetAgent)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ready",
		"store_mode": s.storeMode(),
	})
}

func (s *Server) storeMode() string {
	if strings.TrimSpace(s.cfg.DatabaseURL) != "" {
		return "postgres"
	}
	return "in-memory"
}

// userID resolves the acting principal. Browsers cannot set headers on
// EventSource connections, so the query parameter works as a fallback.
func userID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get("user_id"))
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
