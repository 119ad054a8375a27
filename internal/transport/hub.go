package transport

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/clipsentry/clipsentry/internal/domain"
)

// Hub is the daemon-side endpoint. It accepts agent, UI and offscreen
// sessions, dispatches their envelopes to the coordinator handler, and
// lets the clearer push commands to individual sessions.
type Hub struct {
	logger    *zap.Logger
	authToken string
	handler   Handler
	upgrader  websocket.Upgrader
	server    *http.Server

	mu       sync.RWMutex
	sessions map[string]*session
	activeID string // agent session that most recently sent an event
}

type session struct {
	info    domain.SessionInfo
	conn    *websocket.Conn
	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan domain.Response
	gone      bool
}

// NewHub creates a hub. handler receives every inbound envelope; authToken
// guards the upgrade endpoint.
func NewHub(authToken string, handler Handler, logger *zap.Logger) *Hub {
	return &Hub{
		logger:    logger,
		authToken: authToken,
		handler:   handler,
		sessions:  make(map[string]*session),
	}
}

// Router returns the HTTP routes served by the hub.
func (h *Hub) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/ws", h.handleWS)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

// Start serves the hub on addr until Shutdown.
func (h *Hub) Start(addr string) error {
	h.server = &http.Server{Addr: addr, Handler: h.Router()}
	err := h.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the listener and closes all sessions.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	for _, s := range h.sessions {
		s.conn.Close()
	}
	h.mu.Unlock()
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	if h.authToken != "" && r.Header.Get(HeaderToken) != h.authToken {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	role := domain.SessionRole(r.Header.Get(HeaderRole))
	switch role {
	case domain.RoleAgent, domain.RoleUI, domain.RoleOffscreen:
	default:
		http.Error(w, "unknown session role", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	s := &session{
		info: domain.SessionInfo{
			ID:          uuid.NewString(),
			Role:        role,
			SourceURL:   r.Header.Get(HeaderURL),
			ConnectedAt: time.Now(),
		},
		conn:    conn,
		pending: make(map[string]chan domain.Response),
	}

	h.mu.Lock()
	h.sessions[s.info.ID] = s
	h.mu.Unlock()

	h.logger.Info("session connected",
		zap.String("session", s.info.ID),
		zap.String("role", string(role)),
		zap.String("url", s.info.SourceURL))

	h.readPump(s)
}

// readPump processes one session's frames sequentially, preserving the
// per-sender ordering guarantee.
func (h *Hub) readPump(s *session) {
	defer h.dropSession(s)

	for {
		var f frame
		if err := s.conn.ReadJSON(&f); err != nil {
			h.logger.Debug("session read ended",
				zap.String("session", s.info.ID), zap.Error(err))
			return
		}

		switch {
		case f.Response != nil:
			s.deliver(*f.Response)
		case f.Envelope != nil:
			if s.info.Role == domain.RoleAgent {
				h.markActive(s.info.ID)
			}
			resp := h.handler(s.info, *f.Envelope)
			resp.ID = f.Envelope.ID
			if err := s.write(frame{Response: &resp}); err != nil {
				h.logger.Debug("response write failed",
					zap.String("session", s.info.ID), zap.Error(err))
				return
			}
		}
	}
}

func (h *Hub) dropSession(s *session) {
	h.mu.Lock()
	delete(h.sessions, s.info.ID)
	if h.activeID == s.info.ID {
		h.activeID = ""
	}
	h.mu.Unlock()

	s.conn.Close()
	s.abortPending()

	h.logger.Info("session disconnected", zap.String("session", s.info.ID))
}

func (h *Hub) markActive(id string) {
	h.mu.Lock()
	h.activeID = id
	h.mu.Unlock()
}

// Sessions returns connected sessions with the given role, oldest first.
func (h *Hub) Sessions(role domain.SessionRole) []domain.SessionInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := lo.FilterMap(lo.Values(h.sessions), func(s *session, _ int) (domain.SessionInfo, bool) {
		return s.info, s.info.Role == role
	})
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ConnectedAt.Before(infos[j].ConnectedAt)
	})
	return infos
}

// ActiveSession returns the agent session that most recently sent an
// event, if it is still connected.
func (h *Hub) ActiveSession() (domain.SessionInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[h.activeID]
	if !ok {
		return domain.SessionInfo{}, false
	}
	return s.info, true
}

// RequestSession delivers env to one session and awaits its response
// within the context deadline.
func (h *Hub) RequestSession(ctx context.Context, sessionID string, env domain.Envelope) (domain.Response, error) {
	h.mu.RLock()
	s, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		return domain.Response{}, domain.ErrEndpointGone
	}

	if env.ID == "" {
		env.ID = uuid.NewString()
	}

	ch := s.addPending(env.ID)
	if ch == nil {
		return domain.Response{}, domain.ErrEndpointGone
	}
	defer s.removePending(env.ID)

	if err := s.write(frame{Envelope: &env}); err != nil {
		return domain.Response{}, domain.ErrEndpointGone
	}

	select {
	case <-ctx.Done():
		return domain.Response{}, domain.ErrTimeout
	case resp, open := <-ch:
		if !open {
			return domain.Response{}, domain.ErrEndpointGone
		}
		return resp, nil
	}
}

func (s *session) write(f frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(f)
}

func (s *session) addPending(id string) chan domain.Response {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	if s.gone {
		return nil
	}
	ch := make(chan domain.Response, 1)
	s.pending[id] = ch
	return ch
}

func (s *session) removePending(id string) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	delete(s.pending, id)
}

func (s *session) deliver(resp domain.Response) {
	s.pendingMu.Lock()
	ch, ok := s.pending[resp.ID]
	if ok {
		delete(s.pending, resp.ID)
	}
	s.pendingMu.Unlock()
	if ok {
		ch <- resp
	}
}

// abortPending fails every in-flight request once the session is gone.
func (s *session) abortPending() {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.gone = true
	for id, ch := range s.pending {
		close(ch)
		delete(s.pending, id)
	}
}

// Ensure Hub satisfies the clearer's directory dependency.
var _ domain.SessionDirectory = (*Hub)(nil)
