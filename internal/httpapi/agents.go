package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/P-Jhao/agentForage-backend-sub001/internal/agents"
)

type agentRequest struct {
	UserID string                   `json:"user_id"`
	Name   string                   `json:"name"`
	Tools  []agents.ToolDescriptor `json:"tools"`
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req agentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		req.UserID = userID(r)
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}

	agent, err := s.agentService.CreateAgent(r.Context(), req.UserID, req.Name, req.Tools)
	if err != nil {
		respondError(w, http.StatusBadRequest, "agent_create_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, agent)
}

func (s *Server) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	agentID := strings.TrimSpace(chi.URLParam(r, "id"))
	if agentID == "" {
		respondError(w, http.StatusBadRequest, "invalid_agent_id", "missing agent id")
		return
	}

	// An empty name means "keep the current one"; only tools present in the
	// body are applied. Both fields absent is a valid no-op resave.
	var req agentRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	agent, err := s.agentService.UpdateAgent(r.Context(), agentID, req.Name, req.Tools)
	if err != nil {
		if errors.Is(err, agents.ErrAgentNotFound) {
			respondError(w, http.StatusNotFound, "agent_not_found", err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, "agent_update_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, agent)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agentID := strings.TrimSpace(chi.URLParam(r, "id"))
	if agentID == "" {
		respondError(w, http.StatusBadRequest, "invalid_agent_id", "missing agent id")
		return
	}

	agent, err := s.agentService.GetAgent(r.Context(), agentID)
	if err != nil {
		if errors.Is(err, agents.ErrAgentNotFound) {
			respondError(w, http.StatusNotFound, "agent_not_found", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "agent_get_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, agent)
}
