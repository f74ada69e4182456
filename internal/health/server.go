// Package health serves liveness and readiness probes for the prediction API.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Check reports whether one dependency of the service is usable
type Check func(ctx context.Context) error

// HealthResponse is returned by /health and /live
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp,omitempty"`
	Uptime    string `json:"uptime,omitempty"`
	Version   string `json:"version,omitempty"`
	Commit    string `json:"commit,omitempty"`
}

// ReadyResponse is returned by /ready
type ReadyResponse struct {
	Status   string            `json:"status"`
	Service  string            `json:"service"`
	Checks   map[string]string `json:"checks,omitempty"`
	Duration string            `json:"duration,omitempty"`
}

// Config holds the configuration for the health server
type Config struct {
	ServiceName string
	Version     string
	Commit      string
	Port        string
	Logger      *logrus.Logger
	Checks      map[string]Check
	// CheckTimeout bounds a whole readiness evaluation
	CheckTimeout time.Duration
}

// Server answers probes on its own port so a slow prediction cannot starve them
type Server struct {
	cfg     Config
	started time.Time
	server  *http.Server

	mu     sync.RWMutex
	ready  bool
	checks map[string]Check
}

// NewServer creates a new health check server
func NewServer(cfg Config) *Server {
	if cfg.Port == "" {
		cfg.Port = "8081"
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 3 * time.Second
	}

	s := &Server{cfg: cfg, started: time.Now(), checks: make(map[string]Check, len(cfg.Checks))}
	for name, check := range cfg.Checks {
		s.checks[name] = check
	}
	return s
}

// Register adds or replaces a named readiness check
func (s *Server) Register(name string, check Check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

// SetReady marks the server as ready to accept traffic
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// IsReady returns whether the server is ready
func (s *Server) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Handler returns the probe endpoints
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/live", s.handleLive)
	mux.HandleFunc("/ready", s.handleReady)
	return mux
}

// Start binds the port and serves in the background until ctx is done. A port
// that cannot be bound is reported immediately.
func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", ":"+s.cfg.Port)
	if err != nil {
		return fmt.Errorf("failed to listen on health port %s: %w", s.cfg.Port, err)
	}

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logf(logrus.InfoLevel, logrus.Fields{"port": s.cfg.Port}, "Health check server starting")

	go func() {
		if err := s.server.Serve(lis); err != nil && err != http.ErrServerClosed {
			s.logf(logrus.ErrorLevel, logrus.Fields{"error": err.Error()}, "Health check server error")
		}
	}()

	go func() {
		<-ctx.Done()
		_ = s.Shutdown()
	}()

	return nil
}

// Shutdown gracefully shuts down the health check server
func (s *Server) Shutdown() error {
	if s.server == nil {
		return nil
	}
	s.logf(logrus.InfoLevel, nil, "Health check server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   s.cfg.ServiceName,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(s.started).Truncate(time.Second).String(),
		Version:   s.cfg.Version,
		Commit:    s.cfg.Commit,
	})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Service: s.cfg.ServiceName})
}

// handleReady runs every check concurrently; all of them and the ready flag
// must pass
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	results := s.runChecks(r.Context())

	healthy := true
	if s.IsReady() {
		results["service"] = "ok"
	} else {
		results["service"] = "not_ready"
		healthy = false
	}
	for _, result := range results {
		if result != "ok" {
			healthy = false
		}
	}

	resp := ReadyResponse{
		Status:   "ok",
		Service:  s.cfg.ServiceName,
		Checks:   results,
		Duration: time.Since(start).String(),
	}
	status := http.StatusOK
	if !healthy {
		resp.Status = "not_ready"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) runChecks(ctx context.Context) map[string]string {
	s.mu.RLock()
	checks := make(map[string]Check, len(s.checks))
	for name, check := range s.checks {
		checks[name] = check
	}
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.CheckTimeout)
	defer cancel()

	var mu sync.Mutex
	results := make(map[string]string, len(checks)+1)
	g, gctx := errgroup.WithContext(ctx)
	for name, check := range checks {
		name, check := name, check
		g.Go(func() error {
			result := "ok"
			if err := check(gctx); err != nil {
				result = "error: " + err.Error()
			}
			mu.Lock()
			results[name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Server) logf(level logrus.Level, fields logrus.Fields, msg string) {
	if s.cfg.Logger == nil {
		return
	}
	s.cfg.Logger.WithFields(fields).WithField("service", s.cfg.ServiceName).Log(level, msg)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
