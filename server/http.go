package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"chat-relay/auth"
	"chat-relay/domain"
	relayerrors "chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/services"
)

// Server carries the request/response surface around the relay: session
// bootstrap, history retrieval, search, the websocket upgrade and debug
// stats.
type Server struct {
	log        *slog.Logger
	relay      services.IRelayService
	handler    *Handler
	verifier   *auth.Verifier
	monitoring *observability.MonitoringManager
	upgrader   websocket.Upgrader
}

func NewServer(log *slog.Logger, relay services.IRelayService, handler *Handler,
	verifier *auth.Verifier, monitoring *observability.MonitoringManager) *Server {
	return &Server{
		log:        log,
		relay:      relay,
		handler:    handler,
		verifier:   verifier,
		monitoring: monitoring,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin policing belongs to the fronting proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/sessions", s.authenticated(s.handleBootstrap)).Methods(http.MethodPost)
	router.HandleFunc("/history", s.authenticated(s.handleHistory)).Methods(http.MethodGet)
	router.HandleFunc("/history/search", s.authenticated(s.handleSearch)).Methods(http.MethodGet)
	router.HandleFunc("/ws", s.handleWebsocket).Methods(http.MethodGet)
	router.HandleFunc("/debug/stats", s.handleStats).Methods(http.MethodGet)
	return router
}

// authenticated enforces the bearer credential when a secret is configured.
// The relay consumes identity as a precondition; it never issues tokens.
func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.verifier.Enabled() {
			if _, err := s.verifier.ResolveBearer(r.Header.Get("Authorization")); err != nil {
				writeError(w, relayerrors.MapToHTTPStatus(err), "invalid credentials")
				return
			}
		}
		next(w, r)
	}
}

type bootstrapBody struct {
	UserID1 string `json:"userId1"`
	UserID2 string `json:"userId2"`
}

type bootstrapResponse struct {
	SessionID string `json:"sessionId"`
}

func (s *Server) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	var body bootstrapBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	sessionID, err := s.relay.Bootstrap(body.UserID1, body.UserID2)
	if err != nil {
		writeError(w, relayerrors.MapToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, bootstrapResponse{SessionID: sessionID})
}

type historyMessage struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Content   string    `json:"content"`
	ReplyTo   *string   `json:"replyTo"`
	Lang      string    `json:"lang"`
	Timestamp time.Time `json:"timestamp"`
}

// handleHistory serves the conversation between two users, oldest first.
// Store errors are retried once and then answered with an empty page: the
// caller cannot act on a storage failure, so it is logged instead of
// surfaced.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	userA, userB := query.Get("userA"), query.Get("userB")
	limit, _ := strconv.Atoi(query.Get("limit"))

	var before *time.Time
	if raw := query.Get("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "before must be RFC3339")
			return
		}
		before = &parsed
	}

	messages, err := s.relay.History(userA, userB, limit, before)
	if err != nil && relayerrors.MapToHTTPStatus(err) == http.StatusBadRequest {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		messages, err = s.relay.History(userA, userB, limit, before)
		if err != nil {
			s.log.Error("History unavailable after retry", "err", err)
			messages = nil
		}
	}

	writeJSON(w, http.StatusOK, lo.Map(messages, func(item domain.Message, _ int) historyMessage {
		return historyMessage{
			ID:        item.ID.String(),
			Sender:    item.Sender,
			Recipient: item.Recipient,
			Content:   item.Content,
			ReplyTo:   item.ReplyTo,
			Lang:      item.Lang,
			Timestamp: item.CreatedAt,
		}
	}))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))

	hits, err := s.relay.Search(r.Context(), query.Get("q"), query.Get("user"), limit)
	if err != nil {
		writeError(w, relayerrors.MapToHTTPStatus(err), err.Error())
		return
	}
	if hits == nil {
		hits = []repositories.SearchHit{}
	}
	writeJSON(w, http.StatusOK, hits)
}

// handleWebsocket upgrades the request and hands the socket to the frame
// handler. With auth enabled the token may come from the Authorization
// header or, for browser clients, a token query parameter.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	var authUserID string
	if s.verifier.Enabled() {
		var err error
		if token := r.URL.Query().Get("token"); token != "" {
			authUserID, err = s.verifier.Resolve(token)
		} else {
			authUserID, err = s.verifier.ResolveBearer(r.Header.Get("Authorization"))
		}
		if err != nil {
			writeError(w, relayerrors.MapToHTTPStatus(err), "invalid credentials")
			return
		}
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", "err", err)
		return
	}
	s.handler.HandleConn(r.Context(), ws, authUserID)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.monitoring.Collect())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
