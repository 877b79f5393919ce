package rpc

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","method":"` + r.Method + `"}`))
	})
	mux.HandleFunc("/fail", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"edge unreachable"}`))
	})
	return mux
}

func TestClientGetPost(t *testing.T) {
	srv := httptest.NewServer(testHandler())
	defer srv.Close()

	c := NewClient(strings.TrimPrefix(srv.URL, "http://"), time.Second)

	var out map[string]string
	require.NoError(t, c.Get(context.Background(), "/ok", &out))
	assert.Equal(t, "GET", out["method"])

	require.NoError(t, c.Post(context.Background(), "/ok", &out))
	assert.Equal(t, "POST", out["method"])
}

func TestClientAPIError(t *testing.T) {
	srv := httptest.NewServer(testHandler())
	defer srv.Close()

	c := NewClient(strings.TrimPrefix(srv.URL, "http://"), time.Second)
	err := c.Post(context.Background(), "/fail", nil)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "edge unreachable", apiErr.Message)

	err = c.Get(context.Background(), "/missing", nil)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestClientUnixSocket(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix sockets")
	}
	sock := filepath.Join(t.TempDir(), "q.sock")
	ln, err := net.Listen("unix", sock)
	require.NoError(t, err)
	srv := &http.Server{Handler: testHandler()}
	go srv.Serve(ln)
	defer srv.Close()

	c := NewClient("unix://"+sock, time.Second)
	var out map[string]string
	require.NoError(t, c.Get(context.Background(), "/ok", &out))
	assert.Equal(t, "success", out["status"])
}

func TestClientConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(testHandler())
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	err := NewClient(addr, time.Second).Get(context.Background(), "/ok", nil)
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
