// Package gateway exposes the conversation engine over websocket.
// Clients drive a conversation with JSON control frames and complete
// user utterances as binary frames; the gateway streams notification
// events back as JSON and synthesized audio chunks as binary frames.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parleyhq/parley/pkg/config"
	"github.com/parleyhq/parley/pkg/logger"
	"github.com/parleyhq/parley/pkg/orchestrator"
)

const (
	readDeadline  = 120 * time.Second
	pingInterval  = 30 * time.Second
	writeDeadline = 10 * time.Second
)

// Server is the websocket front door. One connection hosts at most one
// conversation at a time.
type Server struct {
	cfg      config.GatewayConfig
	orch     *orchestrator.Orchestrator
	upgrader websocket.Upgrader
	server   *http.Server
	ctx      context.Context
	cancel   context.CancelFunc
	clients  sync.Map // map[string]*client
}

func NewServer(cfg config.GatewayConfig, orch *orchestrator.Orchestrator) *Server {
	return &Server{
		cfg:  cfg,
		orch: orch,
		upgrader: websocket.Upgrader{
			// Local deployment; origin checking is the reverse
			// proxy's job when one is put in front.
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// Start begins serving and returns once the listener is up.
func (s *Server) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.server = &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("gateway listen on %s: %w", addr, err)
	}
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error("gateway", "Gateway serve failed", map[string]any{"error": err.Error()})
		}
	}()

	logger.Info("gateway", "Gateway listening", map[string]any{"address": addr})
	return nil
}

// Stop closes every client connection and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	s.clients.Range(func(key, value any) bool {
		if c, ok := value.(*client); ok {
			c.close()
		}
		s.clients.Delete(key)
		return true
	})

	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("gateway shutdown: %w", err)
		}
	}
	logger.Info("gateway", "Gateway stopped", nil)
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("gateway", "Upgrade failed", map[string]any{"error": err.Error()})
		return
	}

	c := &client{id: r.RemoteAddr, conn: conn, srv: s}
	s.clients.Store(c.id, c)
	logger.Info("gateway", "Client connected", map[string]any{"client": c.id})

	go c.run(s.ctx)
}
