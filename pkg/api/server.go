// Package api serves the monitor API of a running channel: capability health
// over REST and a live stream of bus events over WebSocket.
package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sipeed/feishuclaw/pkg/config"
	"github.com/sipeed/feishuclaw/pkg/kernel"
	"github.com/sipeed/feishuclaw/pkg/logger"
)

// Server is the HTTP monitor for one channel kernel.
type Server struct {
	config      config.MonitorConfig
	kernel      *kernel.Kernel
	wsHub       *WSHub
	eventBridge *EventBridge
	startTime   time.Time
	server      *http.Server
	mu          sync.Mutex
}

// NewServer creates a monitor for k. Events are taken from the kernel's bus.
func NewServer(cfg config.MonitorConfig, k *kernel.Kernel) *Server {
	s := &Server{
		config:    cfg,
		kernel:    k,
		startTime: time.Now(),
	}
	s.wsHub = NewWSHub(s)
	s.eventBridge = NewEventBridge(k.Bus(), s.wsHub)
	return s
}

// Handler returns the routed and authenticated HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/ws", s.wsHub.HandleWebSocket)
	return authMiddleware(s.config.APIKey, mux)
}

// Start binds the listener and serves in the background until Stop or ctx
// cancellation. The hub and event bridge run for the lifetime of ctx.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	logger.InfoCF("api", "Monitor API server starting", map[string]interface{}{
		"addr": ln.Addr().String(),
	})

	go s.wsHub.Run(ctx)
	go s.eventBridge.Run(ctx)

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.ErrorCF("api", "Server error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// healthResponse is the body of GET /api/health.
type healthResponse struct {
	Healthy       bool            `json:"healthy"`
	UptimeSeconds int             `json:"uptime_seconds"`
	Capabilities  []kernel.Health `json:"capabilities"`
}

func (s *Server) health(ctx context.Context) healthResponse {
	report := s.kernel.HealthCheckAll(ctx)
	return healthResponse{
		Healthy:       kernel.AllHealthy(report),
		UptimeSeconds: int(time.Since(s.startTime).Seconds()),
		Capabilities:  report,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "GET required"})
		return
	}
	resp := s.health(r.Context())
	status := http.StatusOK
	if !resp.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
