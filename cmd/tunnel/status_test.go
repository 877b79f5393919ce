package tunnel

import (
	"bytes"
	"testing"
	"time"

	"quickflare/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestPrintDetail(t *testing.T) {
	started := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	printDetail(&buf, &models.TunnelDetail{
		Mode:        "quick",
		Status:      models.StatusRunning,
		PublicURL:   "https://abc123.trycloudflare.com",
		LocalURL:    "http://127.0.0.1:5000",
		MetricsURL:  "http://127.0.0.1:8123/metrics",
		LastStarted: &started,
		Process:     &models.ProcessDetail{Pid: 4242, Status: models.StatusRunning},
	})

	out := buf.String()
	assert.Contains(t, out, "Public URL:   https://abc123.trycloudflare.com\n")
	assert.Contains(t, out, "Last started: 2024-01-05T12:00:00Z\n")
	assert.Contains(t, out, "PID:          4242 (running)\n")
}

func TestPrintDetailStopped(t *testing.T) {
	var buf bytes.Buffer
	printDetail(&buf, &models.TunnelDetail{Mode: "named", Status: models.StatusStopped})

	out := buf.String()
	assert.Contains(t, out, "Public URL:   -\n")
	assert.NotContains(t, out, "PID:")
	assert.NotContains(t, out, "Last started:")
}
