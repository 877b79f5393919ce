package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"quickflare/internal/logger"
	"quickflare/internal/models"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	tunnel    *CloudflaredManager
	version   string
	startTime time.Time
}

/**
 * Create the control server around a tunnel manager
 * @param {*CloudflaredManager} tunnel - The supervised tunnel
 * @param {string} version - Software version reported by /healthz
 * @returns {*Server} Returns new server instance
 */
func NewServer(tunnel *CloudflaredManager, version string) *Server {
	return &Server{
		tunnel:    tunnel,
		version:   version,
		startTime: time.Now(),
	}
}

func (s *Server) Tunnel() *CloudflaredManager {
	return s.tunnel
}

/**
 * Build the readiness probe response
 * @returns {models.HealthResponse} Returns version, start time, uptime and tunnel status
 * @description
 * - Status is UP while the tunnel runs, DEGRADED otherwise
 * @example
 * health := server.GetHealthz()
 * fmt.Printf("Server status: %s, Uptime: %s\n", health.Status, health.Uptime)
 */
func (s *Server) GetHealthz() models.HealthResponse {
	st := s.tunnel.State()

	status := "UP"
	if st.Status != models.StatusRunning {
		status = "DEGRADED"
	}
	return models.HealthResponse{
		Version:   s.version,
		StartTime: s.startTime.Format(time.RFC3339),
		Status:    status,
		Uptime:    time.Since(s.startTime).Truncate(time.Second).String(),
		Tunnel:    string(st.Status),
	}
}

type ListenAddr struct {
	Network string
	Address string
}

// ParseListenAddr accepts "host:port" or "unix:///path/to.sock"
func ParseListenAddr(addr string) ListenAddr {
	if path, ok := strings.CutPrefix(addr, "unix://"); ok {
		return ListenAddr{Network: "unix", Address: path}
	}
	return ListenAddr{Network: "tcp", Address: addr}
}

/**
 * Create a listener for the control API
 * @param {ListenAddr} addr - Listener address
 * @returns {(net.Listener, error)} Returns the listener
 * @description
 * - A stale unix socket file is removed first
 */
func CreateListener(addr ListenAddr) (net.Listener, error) {
	if addr.Network == "unix" {
		if err := os.Remove(addr.Address); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove existing socket file: %w", err)
		}
	}
	ln, err := net.Listen(addr.Network, addr.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to create listener on %s://%s: %w", addr.Network, addr.Address, err)
	}
	return ln, nil
}

/**
 * Serve the control API until ctx is cancelled
 * @param {context.Context} ctx - Cancelling it shuts the HTTP server down
 * @param {net.Listener} ln - Listener created by CreateListener
 * @param {http.Handler} handler - Router of the control API
 * @returns {error} Returns serve errors other than a clean shutdown
 */
func (s *Server) Serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	logger.Infof("Control API listening on %s", ln.Addr())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Control API shutdown: %v", err)
		return err
	}
	return nil
}
