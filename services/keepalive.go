package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"quickflare/internal/logger"
)

// HealthReport is the outcome of one health check
type HealthReport struct {
	SourceReachable      bool
	DestinationReachable bool
	Elapsed              time.Duration // since the last successful start
}

// NeedsRestart: local service up, tunnel down
func (r HealthReport) NeedsRestart() bool {
	return r.SourceReachable && !r.DestinationReachable
}

/**
 * Probe both ends of the tunnel
 * @param {context.Context} ctx - Bounds both probes
 * @returns {HealthReport} Returns reachability of the local service and the public endpoint
 * @description
 * - Source: GET on the local service must answer 200
 * - Destination: GET on the public URL must answer 200
 * - Named/config tunnels have no URL, destination is the ha_connections signal of the metrics endpoint
 */
func (m *CloudflaredManager) CheckHealth(ctx context.Context) HealthReport {
	st := m.State()
	report := HealthReport{
		SourceReachable: m.httpOK(ctx, m.LocalURL()),
	}
	if !st.LastStarted.IsZero() {
		report.Elapsed = m.now().Sub(st.LastStarted)
	}

	switch {
	case st.PublicURL == "":
		report.DestinationReachable = false
	case m.mode.Preconfigured():
		report.DestinationReachable = m.preconfiguredReady()
	default:
		report.DestinationReachable = m.httpOK(ctx, st.PublicURL)
	}
	return report
}

/**
 * Restart the tunnel when the local service is healthy but the tunnel is not
 * @param {context.Context} ctx - Bounds the probes and the restart
 * @returns {(bool, error)} Returns whether a restart was attempted, and its error
 * @description
 * - Never restarts within RestartGrace of the last start, avoids restart storms
 * - Never restarts a tunnel stopped on purpose, or one that never started
 * - A down local service is left alone, restarting cannot fix it
 * - A Stop/Restart that lands while the probes run wins over the restart
 */
func (m *CloudflaredManager) restartIfNecessary(ctx context.Context) (bool, error) {
	m.mutex.RLock()
	lastStarted, userStopped := m.lastStarted, m.userStopped
	m.mutex.RUnlock()

	if userStopped || lastStarted.IsZero() {
		return false, nil
	}
	if m.now().Sub(lastStarted) < m.cfg.RestartGrace {
		return false, nil
	}

	report := m.CheckHealth(ctx)
	logger.Debugf("Health check: source=%v destination=%v elapsed=%v",
		report.SourceReachable, report.DestinationReachable, report.Elapsed)
	if !report.NeedsRestart() {
		return false, nil
	}

	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	// a Stop or Restart may have completed while the probes ran
	m.mutex.RLock()
	changed := m.userStopped || !m.lastStarted.Equal(lastStarted)
	m.mutex.RUnlock()
	if changed {
		logger.Debugf("Tunnel was stopped or restarted during the health check, skipping restart")
		return false, nil
	}

	logger.Warnf("Local service %s is up but the tunnel is down, restarting", m.LocalURL())
	tunnelRestarts.WithLabelValues("keepalive").Inc()
	m.stop()
	_, err := m.start(ctx)
	return true, err
}

func (m *CloudflaredManager) startKeepAlive() {
	ctx, cancel := context.WithCancel(context.Background())
	m.keepAliveCancel = cancel
	m.keepAliveDone = make(chan struct{})
	go m.keepAlive(ctx, m.keepAliveDone)
	logger.Infof("Keep-alive enabled, checking every %v", m.cfg.KeepAliveInterval)
}

// stopKeepAlive 取消并等待keep-alive协程退出
func (m *CloudflaredManager) stopKeepAlive() {
	if m.keepAliveCancel == nil {
		return
	}
	m.keepAliveCancel()
	<-m.keepAliveDone
	logger.Debugf("Keep-alive stopped")
}

func (m *CloudflaredManager) keepAliveEnabled() bool {
	if m.keepAliveDone == nil {
		return false
	}
	select {
	case <-m.keepAliveDone:
		return false
	default:
		return true
	}
}

/**
 * keepAlive periodic health check loop
 * @description
 * - Wakes every KeepAliveInterval, exits only when ctx is cancelled
 * - Errors and panics of a check are logged and counted, the loop goes on
 */
func (m *CloudflaredManager) keepAlive(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.cfg.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := m.safeCheck(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			keepAliveErrors.Inc()
			logger.Errorf("Keep-alive check failed: %v", err)
		}
	}
}

func (m *CloudflaredManager) safeCheck(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in health check: %v", r)
		}
	}()
	_, err = m.restartIfNecessary(ctx)
	return err
}

func (m *CloudflaredManager) httpOK(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	rsp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	rsp.Body.Close()
	return rsp.StatusCode == http.StatusOK
}

func (m *CloudflaredManager) preconfiguredReady() bool {
	payload, err := m.prober.fetch(m.MetricsURL())
	if err != nil {
		return false
	}
	_, ok := ExtractReadiness(m.mode, payload)
	return ok
}
