package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillTunnelDefaults(t *testing.T) {
	var tc TunnelConfig
	FillTunnelDefaults(&tc)

	assert.Equal(t, DefaultHost, tc.Host)
	assert.Equal(t, DefaultPort, tc.Port)
	assert.Equal(t, 0, tc.MetricsPort)
	assert.Equal(t, os.TempDir(), tc.Path)
	assert.Equal(t, 300*time.Second, tc.KeepAliveInterval)
	assert.Equal(t, 5*time.Minute, tc.RestartGrace)
	assert.Equal(t, 10, tc.ProbeAttempts)
	assert.Equal(t, 3*time.Second, tc.ProbeInterval)
}

func TestFillTunnelDefaultsKeepsValues(t *testing.T) {
	tc := TunnelConfig{Host: "192.168.1.168", Port: 8096, Path: "/opt/bin", ProbeAttempts: 3}
	FillTunnelDefaults(&tc)

	assert.Equal(t, "192.168.1.168", tc.Host)
	assert.Equal(t, 8096, tc.Port)
	assert.Equal(t, "/opt/bin", tc.Path)
	assert.Equal(t, 3, tc.ProbeAttempts)
}

func TestLoadConfigFromFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	file := filepath.Join(dir, "quickflare.yaml")
	content := `
log:
  level: debug
tunnel:
  host: 10.0.0.2
  port: 8096
  tunnel_id: my-tunnel
  keep_alive: true
  keep_alive_interval: 1m
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0644))

	cfg, err := LoadConfig(file)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "10.0.0.2", cfg.Tunnel.Host)
	assert.Equal(t, 8096, cfg.Tunnel.Port)
	assert.Equal(t, "my-tunnel", cfg.Tunnel.TunnelID)
	assert.True(t, cfg.Tunnel.KeepAlive)
	assert.Equal(t, time.Minute, cfg.Tunnel.KeepAliveInterval)
	assert.Equal(t, DefaultProbeAttempts, cfg.Tunnel.ProbeAttempts)
	assert.Equal(t, "release", Get().Server.Mode)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
