package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/aquasense/aquavoice/internal/config"
	"github.com/aquasense/aquavoice/internal/conversation"
	"github.com/aquasense/aquavoice/internal/observability"
	"github.com/aquasense/aquavoice/internal/protocol"
	"github.com/aquasense/aquavoice/internal/session"
)

const (
	wsWriteTimeout  = 10 * time.Second
	wsPongTimeout   = 60 * time.Second
	wsPingInterval  = 25 * time.Second
	wsMaxMessageLen = 16 * 1024
	maxBodyBytes    = 64 * 1024
)

var errEmptyBody = errors.New("request body is empty")

// Server is the HTTP/WebSocket gateway in front of per-session
// conversation orchestrators.
type Server struct {
	cfg      config.Config
	sessions *session.Manager
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func NewServer(cfg config.Config, sessions *session.Manager, metrics *observability.Metrics) *Server {
	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		metrics:  metrics,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Method(http.MethodGet, "/metrics", s.metricsHandler())

	r.Route("/v1/voice", func(r chi.Router) {
		r.Post("/session", s.handleCreateSession)
		r.Post("/session/{sessionID}/end", s.handleEndSession)
		r.Get("/session/{sessionID}/turns", s.handleTurns)
		r.Get("/session/ws", s.handleWS)
	})

	r.Get("/v1/perf/latency", s.handlePerfLatency)
	r.Post("/v1/perf/latency/reset", s.handlePerfLatencyReset)

	return r
}

func (s *Server) metricsHandler() http.Handler {
	return observability.MetricsHandler()
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.cfg.AllowAnyOrigin {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"active_sessions": s.sessions.ActiveCount(),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	locale := strings.TrimSpace(req.Locale)
	if locale == "" {
		locale = s.cfg.DefaultLocale
	}

	sess := s.sessions.Create(locale, strings.TrimSpace(req.VoiceHint))
	if s.metrics != nil {
		s.metrics.ConversationEvents.WithLabelValues("session_created").Inc()
		s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	}
	slog.Info("session created", "session_id", sess.ID, "locale", sess.Locale)

	respondJSON(w, http.StatusCreated, session.CreateResponse{
		SessionID:       sess.ID,
		Locale:          sess.Locale,
		Status:          sess.Status,
		StartedAt:       sess.StartedAt,
		LastActivityAt:  sess.LastActivityAt,
		InactivityTTLMS: s.cfg.SessionInactivityTimeout.Milliseconds(),
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := s.sessions.End(sessionID); err != nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	if s.metrics != nil {
		s.metrics.ConversationEvents.WithLabelValues("session_ended").Inc()
		s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	}
	slog.Info("session ended", "session_id", sessionID)
	respondJSON(w, http.StatusOK, map[string]string{"session_id": sessionID, "status": "ended"})
}

func (s *Server) handleTurns(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	sess, err := s.sessions.Get(sessionID)
	if err != nil || sess.Status != session.StatusActive {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	if sess.Conversation == nil {
		respondError(w, http.StatusConflict, "session has no conversation")
		return
	}

	turns := sess.Conversation.Turns()
	payload := make([]protocol.TurnPayload, 0, len(turns))
	for _, t := range turns {
		payload = append(payload, turnPayload(t))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"state":      string(sess.Conversation.State()),
		"turns":      payload,
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "session_id query parameter is required")
		return
	}
	sess, err := s.sessions.Get(sessionID)
	if err != nil || sess.Status != session.StatusActive {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	conv := sess.Conversation
	if conv == nil {
		respondError(w, http.StatusConflict, "session has no conversation")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "session_id", sessionID, "error", err)
		return
	}
	defer conn.Close()
	slog.Info("websocket connected", "session_id", sessionID)
	defer slog.Info("websocket disconnected", "session_id", sessionID)

	conn.SetReadLimit(wsMaxMessageLen)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})

	if s.metrics != nil {
		s.metrics.ConversationEvents.WithLabelValues("ws_connected").Inc()
		defer s.metrics.ConversationEvents.WithLabelValues("ws_disconnected").Inc()
	}

	events, unsubscribe := conv.Subscribe()
	defer unsubscribe()

	// The reader goroutine may still push error frames while this handler
	// unwinds, so the writer is stopped with a signal rather than by
	// closing outbound.
	outbound := make(chan any, 64)
	writerStop := make(chan struct{})
	writerDone := make(chan struct{})
	go s.writeLoop(conn, outbound, writerStop, writerDone)
	defer func() {
		close(writerStop)
		<-writerDone
	}()

	// Tell the client where the conversation stands before any command.
	outbound <- protocol.StateChanged{
		Type:      protocol.TypeStateChanged,
		SessionID: sessionID,
		State:     string(conv.State()),
	}

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		s.readLoop(r, conn, sessionID, conv, outbound)
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			msg := s.eventPayload(sessionID, ev)
			if msg == nil {
				continue
			}
			select {
			case outbound <- msg:
			default:
				// Slow client: drop rather than stall the conversation.
				if s.metrics != nil {
					s.metrics.WSMessages.WithLabelValues("outbound_dropped").Inc()
				}
			}
		case <-readerDone:
			return
		}
	}
}

func (s *Server) writeLoop(conn *websocket.Conn, outbound <-chan any, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-stop:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-outbound:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
			if s.metrics != nil {
				s.metrics.WSMessages.WithLabelValues("outbound").Inc()
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) readLoop(r *http.Request, conn *websocket.Conn, sessionID string, conv *conversation.Orchestrator, outbound chan<- any) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if s.metrics != nil {
			s.metrics.WSMessages.WithLabelValues("inbound").Inc()
		}

		cmd, err := protocol.ParseClientMessage(raw)
		if err != nil {
			s.sendError(outbound, sessionID, conv, "invalid_command", err.Error())
			continue
		}
		if cmd.SessionID != sessionID {
			s.sendError(outbound, sessionID, conv, "invalid_command", "session_id does not match connection")
			continue
		}
		_ = s.sessions.Touch(sessionID)

		var opErr error
		switch cmd.Type {
		case protocol.TypeStartTurn:
			opErr = conv.StartTurn(r.Context())
		case protocol.TypeStopTurn:
			opErr = conv.StopTurn(r.Context())
		case protocol.TypeCancelTurn:
			conv.CancelTurn()
		case protocol.TypeAcknowledge:
			opErr = conv.Acknowledge()
		case protocol.TypeClearConversation:
			conv.ClearConversation()
		}
		if opErr != nil {
			s.sendError(outbound, sessionID, conv, "command_rejected", opErr.Error())
		}
	}
}

func (s *Server) sendError(outbound chan<- any, sessionID string, conv *conversation.Orchestrator, code, detail string) {
	ev := protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: sessionID,
		State:     string(conv.State()),
		Code:      code,
		Detail:    detail,
	}
	select {
	case outbound <- ev:
	default:
	}
}

func (s *Server) eventPayload(sessionID string, ev conversation.Event) any {
	switch ev.Type {
	case conversation.EventStateChanged:
		return protocol.StateChanged{
			Type:      protocol.TypeStateChanged,
			SessionID: sessionID,
			State:     string(ev.State),
		}
	case conversation.EventTurnAppended:
		if ev.Turn == nil {
			return nil
		}
		return protocol.TurnAppended{
			Type:      protocol.TypeTurnAppended,
			SessionID: sessionID,
			Turn:      turnPayload(*ev.Turn),
		}
	case conversation.EventPartialTranscript:
		return protocol.PartialTranscript{
			Type:      protocol.TypePartialTranscript,
			SessionID: sessionID,
			Text:      ev.Partial,
		}
	case conversation.EventErrored:
		return protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: sessionID,
			State:     string(ev.State),
			Code:      ev.Code,
			Detail:    ev.Detail,
		}
	default:
		return nil
	}
}

func turnPayload(t conversation.Turn) protocol.TurnPayload {
	p := protocol.TurnPayload{
		ID:        t.ID,
		Role:      string(t.Role),
		Text:      t.Text,
		PivotText: t.PivotText,
		CreatedAt: t.CreatedAt.UnixMilli(),
	}
	for _, item := range t.Items {
		p.Items = append(p.Items, protocol.ItemPayload{
			ID:           item.ID,
			Name:         item.Name,
			Category:     item.Category,
			Description:  item.Description,
			Price:        item.Price,
			Unit:         item.Unit,
			Manufacturer: item.Manufacturer,
		})
	}
	return p
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return errEmptyBody
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}
