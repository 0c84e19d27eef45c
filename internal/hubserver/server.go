// Package hubserver wires together the HTTP surface: the WebSocket upgrade
// endpoint, health and metrics, and the two admin notify endpoints the
// external app uses to push lobby and match-status changes.
package hubserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/outpoot/editmash-hub/internal/authn"
	"github.com/outpoot/editmash-hub/internal/config"
	"github.com/outpoot/editmash-hub/internal/eventbus"
	"github.com/outpoot/editmash-hub/internal/external"
	"github.com/outpoot/editmash-hub/internal/lobbybridge"
	"github.com/outpoot/editmash-hub/internal/metrics"
	"github.com/outpoot/editmash-hub/internal/registry"
	"github.com/outpoot/editmash-hub/internal/room"
	"github.com/outpoot/editmash-hub/internal/transport"
	"github.com/outpoot/editmash-hub/internal/wire"
)

// Server owns every shared collaborator and the HTTP listener.
type Server struct {
	config *config.Config
	logger *log.Logger

	httpServer *http.Server
	upgrader   websocket.Upgrader

	registry *registry.Registry
	rooms    *room.Manager
	lobbies  *lobbybridge.Bridge
	external *external.Client
	bus      *eventbus.Client

	metrics  *metrics.Metrics
	sampler  *metrics.SystemSampler
	jwtMgr   *authn.JWTManager

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg *config.Config, logger *log.Logger) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())

	m := metrics.NewMetrics()
	extClient := external.NewClient(cfg.External.BaseURL, cfg.External.APIKey, cfg.External.TimeoutDuration())

	var bus *eventbus.Client
	if cfg.NATS.URL != "" {
		var err error
		bus, err = eventbus.NewClient(eventbus.Config{
			URL:           cfg.NATS.URL,
			MaxReconnects: cfg.NATS.MaxReconnects,
			ReconnectWait: time.Duration(cfg.NATS.ReconnectWait) * time.Millisecond,
		}, m, logger)
		if err != nil {
			logger.Printf("hubserver: event bus unavailable, continuing without cross-trigger refresh: %v", err)
			bus = nil
		}
	}

	var jwtMgr *authn.JWTManager
	if cfg.Auth.RequireAuth {
		jwtMgr = authn.NewJWTManager(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenExpiration)*time.Second)
	}

	s := &Server{
		config:   cfg,
		logger:   logger,
		upgrader: transport.Upgrader(cfg.WebSocket.ReadBufferSize, cfg.WebSocket.WriteBufferSize, cfg.WebSocket.CheckOrigin),
		registry: registry.New(),
		external: extClient,
		bus:      bus,
		metrics:  m,
		sampler:  metrics.NewSystemSampler(),
		jwtMgr:   jwtMgr,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.rooms = room.NewManager(extClient, m, logger, room.Options{
		BatchWindow:         time.Duration(cfg.Room.BatchWindowMs) * time.Millisecond,
		PersistenceDebounce: time.Duration(cfg.Room.PersistenceDebounce) * time.Second,
		ChatHistorySize:     cfg.Room.ChatHistorySize,
	})
	s.lobbies = lobbybridge.NewBridge(extClient, bus, logger)

	s.setupHTTPServer()
	return s, nil
}

func (s *Server) setupHTTPServer() {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	if s.config.Metrics.EnablePrometheus {
		mux.Handle(s.config.Metrics.MetricsPath, promhttp.Handler())
	}
	mux.HandleFunc("/notify/lobbies", authn.RequireAdminBearer(s.config.Auth.AdminAPIKey, s.handleNotifyLobbies))
	mux.HandleFunc("/notify/match", authn.RequireAdminBearer(s.config.Auth.AdminAPIKey, s.handleNotifyMatch))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:      corsMiddleware(mux),
		ReadTimeout:  s.config.Server.ReadTimeoutDuration(),
		WriteTimeout: s.config.Server.WriteTimeoutDuration(),
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	var claims *authn.Claims
	if s.jwtMgr != nil {
		var err error
		claims, err = s.jwtMgr.WebSocketAuth(r)
		if err != nil {
			s.metrics.RecordConnectionError()
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("hubserver: upgrade failed: %v", err)
		s.metrics.RecordConnectionError()
		return
	}

	client := transport.NewClient(conn, s, s.metrics, s.logger, transport.Options{
		IdleTimeout: s.config.WebSocket.IdleTimeout(),
		PingPeriod:  s.config.WebSocket.PingInterval(),
		MaxMessage:  s.config.Server.MaxMessageSize,
	})
	if claims != nil {
		client.SetClaims(claims)
		client.BindUser(claims.UserID, claims.Username)
	}

	s.metrics.IncrementConnections()
	connectedAt := time.Now()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		client.WritePump()
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.metrics.DecrementConnections(time.Since(connectedAt))
		client.ReadPump()
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sampler.Update()
	resp := map[string]interface{}{
		"status":           "ok",
		"timestamp":        time.Now().UnixMilli(),
		"connections":      s.registry.Count(),
		"matches":          s.rooms.RoomCount(),
		"lobbySubscribers": s.lobbies.SubscriberCount(),
		"uptimeSeconds":    s.metrics.Uptime().Seconds(),
		"system":           s.sampler.Snapshot(),
		"eventBus":         s.bus != nil && s.bus.IsConnected(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleNotifyLobbies(w http.ResponseWriter, r *http.Request) {
	s.lobbies.Notify()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

type notifyMatchRequest struct {
	MatchID       string              `json:"matchId"`
	Status        wire.MatchStatusValue `json:"status"`
	TimeRemaining *float64            `json:"timeRemaining,omitempty"`
}

func (s *Server) handleNotifyMatch(w http.ResponseWriter, r *http.Request) {
	var req notifyMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.MatchID == "" {
		http.Error(w, "matchId is required", http.StatusBadRequest)
		return
	}

	rm, ok := s.rooms.Get(req.MatchID)
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{"ok": true})
		return
	}
	rm.BroadcastMatchStatus(req.Status, req.TimeRemaining)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// Start launches the HTTP listener and blocks until Shutdown closes it or
// the listener fails.
func (s *Server) Start() error {
	s.logger.Printf("hubserver: listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("hubserver: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight connections and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Printf("hubserver: shutting down")
	s.cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Printf("hubserver: http shutdown error: %v", err)
	}
	if s.bus != nil {
		s.bus.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Printf("hubserver: shutdown complete")
	case <-ctx.Done():
		s.logger.Printf("hubserver: shutdown timed out waiting for connections")
	}
	return nil
}
