package httpapi

import (
	"net/http"
	"time"

	"github.com/P-Jhao/agentForage-backend-sub001/internal/push"
)

const connBuffer = 64

// handleEventsSSE streams task events for one principal as server-sent
// events. Each open browser tab holds its own connection; broadcasts reach
// every tab independently.
func (s *Server) handleEventsSSE(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "X-User-ID header or user_id query parameter is required")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support flushing")
		return
	}

	conn := push.NewChanConn(connBuffer)
	handle := s.registry.Subscribe(uid, conn)
	s.metrics.ActiveConnections.Set(float64(s.registry.Stats().Connections))
	defer func() {
		s.registry.Unsubscribe(uid, handle)
		conn.Close()
		s.metrics.ActiveConnections.Set(float64(s.registry.Stats().Connections))
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-conn.Events():
			if !ok {
				return
			}
			frame, err := push.EncodeFrame(evt)
			if err != nil {
				continue
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
			s.metrics.PushEvents.WithLabelValues(string(evt.Type)).Inc()
		}
	}
}

// handleEventsWS carries the same event stream over a websocket for clients
// that keep a long-lived connection instead of an EventSource.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "X-User-ID header or user_id query parameter is required")
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	conn := push.NewChanConn(connBuffer)
	handle := s.registry.Subscribe(uid, conn)
	s.metrics.ActiveConnections.Set(float64(s.registry.Stats().Connections))
	defer func() {
		s.registry.Unsubscribe(uid, handle)
		conn.Close()
		s.metrics.ActiveConnections.Set(float64(s.registry.Stats().Connections))
	}()

	// Reader goroutine exists only to notice the peer going away; inbound
	// payloads are discarded.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		ws.SetReadLimit(4 << 10)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-readerDone:
			return
		case <-r.Context().Done():
			return
		case evt, ok := <-conn.Events():
			if !ok {
				return
			}
			_ = ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := ws.WriteJSON(evt); err != nil {
				return
			}
			s.metrics.PushEvents.WithLabelValues(string(evt.Type)).Inc()
		}
	}
}

func (s *Server) handleEventStats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.registry.Stats())
}
