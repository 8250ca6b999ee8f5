// ABOUTME: HTTP handlers for health, readiness, ledger listing, stats, and the live turn stream
// ABOUTME: Ledger turns are served as JSON pages; the stream uses server-sent events

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/2389/coven-helpdesk/internal/conversation"
	"github.com/2389/coven-helpdesk/internal/store"
)

// TurnJSON is the wire form of a ledger turn.
type TurnJSON struct {
	ID        string `json:"id"`
	EventID   string `json:"event_id,omitempty"`
	Transport string `json:"transport"`
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
	Direction string `json:"direction"`
	Text      string `json:"text"`
	Intent    string `json:"intent,omitempty"`
	Outcome   string `json:"outcome"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
}

// ListTurnsResponse is the body of GET /api/turns.
type ListTurnsResponse struct {
	Turns      []TurnJSON `json:"turns"`
	NextCursor string     `json:"next_cursor,omitempty"`
	HasMore    bool       `json:"has_more"`
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	conversation.Stats
	Outcomes   map[store.Outcome]int `json:"outcomes"`
	Transports map[string]bool       `json:"transports"`
}

func toTurnJSON(t store.Turn) TurnJSON {
	return TurnJSON{
		ID:        t.ID,
		EventID:   t.EventID,
		Transport: t.Transport,
		UserID:    t.UserID,
		ChannelID: t.ChannelID,
		Direction: string(t.Direction),
		Text:      t.Text,
		Intent:    t.Intent,
		Outcome:   string(t.Outcome),
		Error:     t.Error,
		CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK once every configured transport is connected.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.Readiness.Status()
	if !s.deps.Readiness.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = fmt.Fprintf(w, "transports not ready (%d configured)", len(status))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d transports)", len(status))
}

// handleListTurns serves GET /api/turns?user=&since=&limit=&cursor=
func (s *Server) handleListTurns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := store.ListTurnsParams{
		UserID: q.Get("user"),
		Cursor: q.Get("cursor"),
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			s.sendJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		params.Limit = limit
	}
	if sinceStr := q.Get("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			s.sendJSONError(w, http.StatusBadRequest, "since must be an RFC3339 timestamp")
			return
		}
		params.Since = &since
	}

	result, err := s.deps.Ledger.ListTurns(r.Context(), params)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCursor) {
			s.sendJSONError(w, http.StatusBadRequest, "invalid cursor")
			return
		}
		s.logger.Error("failed to list turns", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := ListTurnsResponse{
		Turns:      make([]TurnJSON, len(result.Turns)),
		NextCursor: result.NextCursor,
		HasMore:    result.HasMore,
	}
	for i, t := range result.Turns {
		resp.Turns[i] = toTurnJSON(t)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetTurn(w http.ResponseWriter, r *http.Request) {
	turn, err := s.deps.Ledger.GetTurn(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusNotFound, "turn not found")
			return
		}
		s.logger.Error("failed to get turn", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, toTurnJSON(*turn))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	outcomes, err := s.deps.Ledger.CountByOutcome(r.Context())
	if err != nil {
		s.logger.Error("failed to count outcomes", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := StatsResponse{
		Outcomes:   outcomes,
		Transports: s.deps.Readiness.Status(),
	}
	if s.deps.Stats != nil {
		resp.Stats = s.deps.Stats.Stats()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleStream serves GET /api/turns/stream?user= as server-sent events,
// one "turn" event per recorded turn until the client disconnects.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("streaming not supported")
		s.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	userID := r.URL.Query().Get("user")
	turns, subID := s.deps.Broadcaster.Subscribe(r.Context(), userID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	s.writeSSEEvent(w, "subscribed", map[string]string{"subscription_id": subID, "user_id": userID})
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case turn, ok := <-turns:
			if !ok {
				return
			}
			s.writeSSEEvent(w, "turn", toTurnJSON(turn))
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes a single SSE event to the response writer.
func (s *Server) writeSSEEvent(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to marshal SSE data", "error", err)
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, dataJSON)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
