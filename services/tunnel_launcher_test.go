package services

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"quickflare/internal/config"
	"quickflare/internal/platform"
	"quickflare/internal/provision"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLauncher(t *testing.T, key platform.Key) *TunnelLauncher {
	a, err := platform.DefaultTable().Resolve(key)
	require.NoError(t, err)
	cfg := config.TunnelConfig{Host: "192.168.1.168", Port: 8096, MetricsPort: 8123, Path: "/opt/quickflare"}
	return NewTunnelLauncher(cfg, a, &fakeProvisioner{})
}

func TestModeFromConfig(t *testing.T) {
	assert.Equal(t, ModeQuick, ModeFromConfig(config.TunnelConfig{}).Kind)
	assert.Equal(t, TunnelMode{Kind: ModeNamed, TunnelID: "abc"}, ModeFromConfig(config.TunnelConfig{TunnelID: "abc"}))
	assert.Equal(t, TunnelMode{Kind: ModeConfig, ConfigPath: "/etc/cf.yml"},
		ModeFromConfig(config.TunnelConfig{TunnelID: "abc", ConfigPath: "/etc/cf.yml"}))
	assert.Equal(t, "quick", TunnelMode{}.String())
	assert.True(t, TunnelMode{Kind: ModeConfig}.Preconfigured())
}

func TestCommandLineQuick(t *testing.T) {
	l := testLauncher(t, platform.Key{OS: "linux", Arch: "amd64"})
	cmd, args := l.CommandLine("/opt/quickflare/cloudflared-linux-amd64", TunnelMode{Kind: ModeQuick})

	assert.Equal(t, "/opt/quickflare/cloudflared-linux-amd64", cmd)
	assert.Equal(t, []string{"tunnel", "--metrics", "127.0.0.1:8123", "--url", "http://192.168.1.168:8096"}, args)
}

func TestCommandLineNamed(t *testing.T) {
	l := testLauncher(t, platform.Key{OS: "linux", Arch: "amd64"})
	_, args := l.CommandLine("cloudflared", TunnelMode{Kind: ModeNamed, TunnelID: "my-tunnel"})

	assert.Equal(t, []string{"tunnel", "--metrics", "127.0.0.1:8123",
		"--url", "http://192.168.1.168:8096", "run", "my-tunnel"}, args)
}

func TestCommandLineConfigIgnoresLocalTarget(t *testing.T) {
	l := testLauncher(t, platform.Key{OS: "windows", Arch: "amd64"})
	_, args := l.CommandLine("cloudflared.exe", TunnelMode{Kind: ModeConfig, ConfigPath: "/etc/cloudflared/config.yml"})

	assert.Equal(t, []string{"tunnel", "--metrics", "127.0.0.1:8123",
		"--config", "/etc/cloudflared/config.yml", "run"}, args)
	assert.NotContains(t, args, "--url")
}

func TestCommandLineAppleSilicon(t *testing.T) {
	l := testLauncher(t, platform.Key{OS: "darwin", Arch: "arm64"})
	cmd, args := l.CommandLine("/tmp/cloudflared", TunnelMode{Kind: ModeQuick})

	assert.Equal(t, "arch", cmd)
	assert.Equal(t, []string{"-x86_64", "/tmp/cloudflared", "tunnel", "--metrics", "127.0.0.1:8123",
		"--url", "http://192.168.1.168:8096"}, args)

	l = testLauncher(t, platform.Key{OS: "darwin", Arch: "amd64"})
	cmd, _ = l.CommandLine("/tmp/cloudflared", TunnelMode{Kind: ModeQuick})
	assert.Equal(t, "/tmp/cloudflared", cmd)
}

func TestLaunchPropagatesProvisioningError(t *testing.T) {
	l := testLauncher(t, platform.Key{OS: "linux", Arch: "amd64"})
	fp := &fakeProvisioner{}
	wrapped := errors.Join(provision.ErrProvisioningFailed, errors.New("disk full"))
	fp.fail.Store(wrapped)
	l.provisioner = fp

	_, err := l.Launch(context.Background(), TunnelMode{})
	assert.Equal(t, wrapped, err)
	assert.ErrorIs(t, err, provision.ErrProvisioningFailed)
}

func TestLaunchSpawnFailure(t *testing.T) {
	l := testLauncher(t, platform.Key{OS: "linux", Arch: "amd64"})
	l.newCmd = func(name string, args ...string) *exec.Cmd {
		return exec.Command("/nonexistent/cloudflared")
	}

	_, err := l.Launch(context.Background(), TunnelMode{})
	assert.ErrorIs(t, err, ErrSpawnFailed)
}

func TestLaunchStartsProcess(t *testing.T) {
	l := testLauncher(t, platform.Key{OS: "linux", Arch: "amd64"})
	rec := &commandRecorder{}
	l.newCmd = rec.factory

	pi, err := l.Launch(context.Background(), TunnelMode{Kind: ModeNamed, TunnelID: "t1"})
	require.NoError(t, err)
	defer pi.StopProcess(0)

	assert.True(t, pi.Alive())
	require.Len(t, rec.lines, 1)
	assert.Equal(t, "/opt/quickflare/cloudflared-linux-amd64", rec.lines[0][0])
	assert.Equal(t, "t1", rec.lines[0][len(rec.lines[0])-1])
}
