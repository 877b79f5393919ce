package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractReadinessQuick(t *testing.T) {
	url, ok := ExtractReadiness(TunnelMode{}, `foo{userHostname="https://abc123.trycloudflare.com"} 1`)
	assert.True(t, ok)
	assert.Equal(t, "https://abc123.trycloudflare.com", url)

	url, ok = ExtractReadiness(TunnelMode{}, "cloudflared_tunnel_ha_connections 4\n")
	assert.False(t, ok)
	assert.Empty(t, url)
}

func TestExtractReadinessPreconfigured(t *testing.T) {
	named := TunnelMode{Kind: ModeNamed, TunnelID: "t1"}

	url, ok := ExtractReadiness(named, "cloudflared_tunnel_ha_connections 4\n")
	assert.True(t, ok)
	assert.Equal(t, PreconfiguredURL, url)

	// a trycloudflare URL alone is not readiness for a named tunnel
	_, ok = ExtractReadiness(named, `x{userHostname="https://abc123.trycloudflare.com"} 1`)
	assert.False(t, ok)

	_, ok = ExtractReadiness(TunnelMode{Kind: ModeConfig}, "# TYPE cloudflared_tunnel_ha_connections gauge\n")
	assert.False(t, ok)
}

func TestProbeSucceedsOnceReady(t *testing.T) {
	ms := newMetricsServer(t, "# no tunnel yet\n")
	p := &ReadinessProber{Client: &http.Client{Timeout: time.Second}, Attempts: 10, Interval: 20 * time.Millisecond}

	go func() {
		for ms.hitCount() < 3 {
			time.Sleep(5 * time.Millisecond)
		}
		ms.payload.Store(quickPayload)
	}()

	url, err := p.Probe(context.Background(), ms.URL+"/metrics", TunnelMode{})
	require.NoError(t, err)
	assert.Equal(t, "https://abc123.trycloudflare.com", url)
	assert.GreaterOrEqual(t, ms.hitCount(), 3)
	assert.Less(t, ms.hitCount(), 10)
}

func TestProbeBoundedRetry(t *testing.T) {
	ms := newMetricsServer(t, "cloudflared_build_info 1\n")
	interval := 30 * time.Millisecond
	p := &ReadinessProber{Client: &http.Client{Timeout: time.Second}, Attempts: 10, Interval: interval}
	before := testutil.ToFloat64(readinessAttempts)

	_, err := p.Probe(context.Background(), ms.URL+"/metrics", TunnelMode{})

	require.ErrorIs(t, err, ErrEdgeConnectFailed)
	assert.Equal(t, 10, ms.hitCount())
	assert.Equal(t, float64(10), testutil.ToFloat64(readinessAttempts)-before)

	ms.mu.Lock()
	defer ms.mu.Unlock()
	for i := 1; i < len(ms.times); i++ {
		assert.GreaterOrEqual(t, ms.times[i].Sub(ms.times[i-1]), interval-5*time.Millisecond)
	}
}

func TestProbeNon200IsNotReady(t *testing.T) {
	ms := newMetricsServer(t, quickPayload)
	p := &ReadinessProber{Client: &http.Client{Timeout: time.Second}, Attempts: 2, Interval: time.Millisecond}

	// the fake server answers 404 on any other path
	_, err := p.Probe(context.Background(), ms.URL+"/other", TunnelMode{})
	assert.ErrorIs(t, err, ErrEdgeConnectFailed)
	assert.Equal(t, 2, ms.hitCount())
}

func TestProbeCancelled(t *testing.T) {
	ms := newMetricsServer(t, "nothing\n")
	p := &ReadinessProber{Client: &http.Client{Timeout: time.Second}, Attempts: 100, Interval: 50 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.Probe(ctx, ms.URL+"/metrics", TunnelMode{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrEdgeConnectFailed)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestProbeUsesBudgetUntilDeadline(t *testing.T) {
	ms := newMetricsServer(t, "cloudflared_build_info 1\n")
	p := &ReadinessProber{Client: &http.Client{Timeout: time.Second}, Attempts: 10, Interval: 100 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 350*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.Probe(ctx, ms.URL+"/metrics", TunnelMode{})

	// the attempt at 300ms still happens, the wait after it is cut by the deadline
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrEdgeConnectFailed)
	assert.GreaterOrEqual(t, ms.hitCount(), 4)
	assert.GreaterOrEqual(t, time.Since(start), 340*time.Millisecond)
}
