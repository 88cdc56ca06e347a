package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/P-Jhao/agentForage-backend-sub001/internal/feedback"
)

type submitFeedbackRequest struct {
	UserID  string `json:"user_id"`
	TaskID  string `json:"task_id"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (s *Server) handleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req submitFeedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		req.UserID = userID(r)
	}

	fb, err := s.feedbackService.Submit(r.Context(), req.UserID, req.TaskID, req.Rating, req.Comment)
	if err != nil {
		if errors.Is(err, feedback.ErrRateLimited) {
			respondError(w, http.StatusTooManyRequests, "rate_limited", err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, "feedback_rejected", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, fb)
}

func (s *Server) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "X-User-ID header or user_id query parameter is required")
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		if n > 500 {
			n = 500
		}
		limit = n
	}

	items, err := s.feedbackService.ListByUser(r.Context(), uid, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "feedback_list_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":  uid,
		"feedback": items,
	})
}
