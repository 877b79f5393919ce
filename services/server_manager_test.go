package services

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"quickflare/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseListenAddr(t *testing.T) {
	assert.Equal(t, ListenAddr{Network: "tcp", Address: "127.0.0.1:8099"}, ParseListenAddr("127.0.0.1:8099"))
	assert.Equal(t, ListenAddr{Network: "unix", Address: "/run/quickflare.sock"}, ParseListenAddr("unix:///run/quickflare.sock"))
}

func TestGetHealthz(t *testing.T) {
	env := newTestEnv(t, quickPayload, nil)
	s := NewServer(env.manager, "1.0.0")

	h := s.GetHealthz()
	assert.Equal(t, "1.0.0", h.Version)
	assert.Equal(t, "DEGRADED", h.Status)
	assert.Equal(t, string(models.StatusStopped), h.Tunnel)

	_, err := env.manager.Start(context.Background())
	require.NoError(t, err)
	h = s.GetHealthz()
	assert.Equal(t, "UP", h.Status)
	assert.Equal(t, string(models.StatusRunning), h.Tunnel)
	assert.Same(t, env.manager, s.Tunnel())
}

func TestServeUntilCancelled(t *testing.T) {
	env := newTestEnv(t, quickPayload, nil)
	s := NewServer(env.manager, "dev")

	ln, err := CreateListener(ParseListenAddr("127.0.0.1:0"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Serve(ctx, ln, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "pong")
		}))
	}()

	rsp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(rsp.Body)
	rsp.Body.Close()
	assert.Equal(t, "pong", string(body))

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
