package services

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"quickflare/internal/config"
	"quickflare/internal/logger"
	"quickflare/internal/models"
	"quickflare/internal/platform"
	"quickflare/internal/proc"
	"quickflare/internal/provision"
	"quickflare/internal/utils"
)

const (
	metricsPortMin = 8100
	metricsPortMax = 9000
)

// TunnelState is a consistent snapshot of the tunnel
type TunnelState struct {
	Status      models.RunStatus
	PublicURL   string
	LastStarted time.Time
}

/**
 * CloudflaredManager owns one cloudflared tunnel: start, stop, restart and keep-alive
 * @description
 * - Start/Stop/Restart are serialized by the lifecycle lock
 * - State readers take the state lock only and never observe a half-started tunnel
 * - The child process is owned exclusively by the manager and released by Close
 */
type CloudflaredManager struct {
	cfg      config.TunnelConfig
	platform platform.Key
	table    platform.Table
	artifact platform.Artifact
	mode     TunnelMode

	provisioner BinaryProvisioner
	launcher    *TunnelLauncher
	prober      *ReadinessProber
	client      *http.Client
	newCmd      proc.CommandFactory
	now         func() time.Time
	stopGrace   time.Duration

	lifecycle   sync.Mutex
	mutex       sync.RWMutex
	status      models.RunStatus
	proc        *proc.ProcessInstance
	publicURL   string
	lastStarted time.Time
	userStopped bool

	keepAliveCancel context.CancelFunc
	keepAliveDone   chan struct{}
	closeOnce       sync.Once
}

type Option func(*CloudflaredManager)

// WithPlatform overrides host detection and/or the artifact table
func WithPlatform(key platform.Key, table platform.Table) Option {
	return func(m *CloudflaredManager) {
		m.platform = key
		m.table = table
	}
}

func WithProvisioner(p BinaryProvisioner) Option {
	return func(m *CloudflaredManager) {
		m.provisioner = p
	}
}

// WithCommandFactory replaces exec.Command for the cloudflared process
func WithCommandFactory(fn proc.CommandFactory) Option {
	return func(m *CloudflaredManager) {
		m.newCmd = fn
	}
}

// WithHTTPClient sets the client of the readiness prober and the health checks
func WithHTTPClient(c *http.Client) Option {
	return func(m *CloudflaredManager) {
		m.client = c
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *CloudflaredManager) {
		m.now = now
	}
}

func WithStopGrace(d time.Duration) Option {
	return func(m *CloudflaredManager) {
		m.stopGrace = d
	}
}

/**
 * Create a tunnel manager
 * @param {config.TunnelConfig} cfg - Tunnel settings, zero values get defaults
 * @param {...Option} opts - Overrides for platform, provisioner, clock, HTTP client
 * @returns {(*CloudflaredManager, error)} Returns the manager in state stopped
 * @description
 * - Resolves the host platform once, unsupported hosts fail here
 * - Picks a random metrics port in [8100, 9000] when none is configured
 * - Starts the keep-alive loop when cfg.KeepAlive is set
 * @throws
 * - platform.ErrUnsupportedPlatform
 * @example
 * m, err := NewCloudflaredManager(config.TunnelConfig{Port: 8096})
 * if err != nil { return err }
 * defer m.Close()
 * url, err := m.Start(ctx)
 */
func NewCloudflaredManager(cfg config.TunnelConfig, opts ...Option) (*CloudflaredManager, error) {
	config.FillTunnelDefaults(&cfg)
	m := &CloudflaredManager{
		platform:  platform.Current(),
		table:     platform.DefaultTable(),
		now:       time.Now,
		stopGrace: proc.DefaultStopGrace,
		status:    models.StatusStopped,
	}
	for _, opt := range opts {
		opt(m)
	}

	artifact, err := m.table.Resolve(m.platform)
	if err != nil {
		return nil, err
	}
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = utils.PickRandomPort(metricsPortMin, metricsPortMax)
	}
	if m.provisioner == nil {
		m.provisioner = provision.NewProvisioner()
	}
	if m.client == nil {
		m.client = &http.Client{Timeout: cfg.ProbeTimeout}
	}

	m.cfg = cfg
	m.artifact = artifact
	m.mode = ModeFromConfig(cfg)
	m.launcher = NewTunnelLauncher(cfg, artifact, m.provisioner)
	m.launcher.newCmd = m.newCmd
	m.prober = &ReadinessProber{
		Client:   m.client,
		Attempts: cfg.ProbeAttempts,
		Interval: cfg.ProbeInterval,
	}

	if cfg.KeepAlive {
		m.startKeepAlive()
	}
	return m, nil
}

func (m *CloudflaredManager) Config() config.TunnelConfig {
	return m.cfg
}

func (m *CloudflaredManager) Mode() TunnelMode {
	return m.mode
}

func (m *CloudflaredManager) Artifact() platform.Artifact {
	return m.artifact
}

// MetricsURL is the cloudflared diagnostics endpoint
func (m *CloudflaredManager) MetricsURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d/metrics", m.cfg.MetricsPort)
}

// LocalURL is the local service exposed by the tunnel
func (m *CloudflaredManager) LocalURL() string {
	return fmt.Sprintf("http://%s:%d", m.cfg.Host, m.cfg.Port)
}

// EnsureBinary stages cloudflared without starting it
func (m *CloudflaredManager) EnsureBinary(ctx context.Context) (string, error) {
	return m.provisioner.Ensure(ctx, m.artifact, m.cfg.Path)
}

/**
 * Start the tunnel
 * @param {context.Context} ctx - Bounds provisioning and the wait for readiness
 * @returns {(string, error)} Returns the public URL, or PreconfiguredURL for named/config tunnels
 * @description
 * - A running tunnel is stopped first, never two children at once
 * - On any failure the spawned child is stopped and the state stays stopped
 * @throws
 * - provision.ErrProvisioningFailed
 * - ErrSpawnFailed
 * - ErrEdgeConnectFailed
 */
func (m *CloudflaredManager) Start(ctx context.Context) (string, error) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	return m.start(ctx)
}

// Stop terminates the tunnel. Stopping a stopped tunnel is a no-op.
func (m *CloudflaredManager) Stop() {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.stop()
	m.mutex.Lock()
	m.userStopped = true
	m.mutex.Unlock()
}

// Restart stops and starts the tunnel, with the failure semantics of Start
func (m *CloudflaredManager) Restart(ctx context.Context) (string, error) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	tunnelRestarts.WithLabelValues("manual").Inc()
	m.stop()
	return m.start(ctx)
}

// Close stops the keep-alive loop, waits for it, then stops the tunnel
func (m *CloudflaredManager) Close() error {
	m.closeOnce.Do(func() {
		m.stopKeepAlive()
		m.Stop()
	})
	return nil
}

func (m *CloudflaredManager) start(ctx context.Context) (string, error) {
	m.stop()

	m.mutex.Lock()
	m.status = models.StatusStarting
	m.userStopped = false
	m.mutex.Unlock()

	logger.Infof("Starting %s tunnel for %s", m.mode, m.LocalURL())
	pi, err := m.launcher.Launch(ctx, m.mode)
	if err != nil {
		m.failStart(nil, err)
		return "", err
	}

	m.mutex.Lock()
	m.proc = pi
	m.mutex.Unlock()

	url, err := m.prober.Probe(ctx, m.MetricsURL(), m.mode)
	if err != nil {
		m.failStart(pi, err)
		return "", err
	}

	m.mutex.Lock()
	m.status = models.StatusRunning
	m.publicURL = url
	m.lastStarted = m.now()
	m.mutex.Unlock()

	tunnelStarts.WithLabelValues("success").Inc()
	tunnelUp.Set(1)
	logger.Infof("Tunnel is running on %s (PID: %d)", url, pi.Pid())
	return url, nil
}

func (m *CloudflaredManager) failStart(pi *proc.ProcessInstance, err error) {
	logger.Errorf("Failed to start %s tunnel: %v", m.mode, err)
	if pi != nil {
		if stopErr := pi.StopProcess(m.stopGrace); stopErr != nil {
			logger.Errorf("Failed to stop cloudflared after failed start: %v", stopErr)
		}
	}
	m.mutex.Lock()
	m.status = models.StatusStopped
	m.publicURL = ""
	m.mutex.Unlock()
	tunnelStarts.WithLabelValues("failure").Inc()
	tunnelUp.Set(0)
}

// stop 终止子进程并清除公网地址，任何错误只记录日志
func (m *CloudflaredManager) stop() {
	m.mutex.RLock()
	pi := m.proc
	m.mutex.RUnlock()

	if pi != nil {
		if err := pi.StopProcess(m.stopGrace); err != nil {
			logger.Errorf("Failed to stop cloudflared (PID: %d): %v", pi.Pid(), err)
		}
	}

	m.mutex.Lock()
	wasRunning := m.status == models.StatusRunning
	m.status = models.StatusStopped
	m.publicURL = ""
	m.mutex.Unlock()

	tunnelUp.Set(0)
	if wasRunning {
		logger.Infof("Tunnel for %s stopped", m.LocalURL())
	}
}

// State returns a snapshot; a child that died on its own reads as stopped
func (m *CloudflaredManager) State() TunnelState {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	st := TunnelState{
		Status:      m.status,
		PublicURL:   m.publicURL,
		LastStarted: m.lastStarted,
	}
	if st.Status == models.StatusRunning && (m.proc == nil || !m.proc.Alive()) {
		st.Status = models.StatusStopped
		st.PublicURL = ""
	}
	return st
}

func (m *CloudflaredManager) PublicURL() string {
	return m.State().PublicURL
}

func (m *CloudflaredManager) Detail() models.TunnelDetail {
	st := m.State()

	detail := models.TunnelDetail{
		Mode:       m.mode.String(),
		Status:     st.Status,
		PublicURL:  st.PublicURL,
		LocalURL:   m.LocalURL(),
		MetricsURL: m.MetricsURL(),
		KeepAlive:  m.keepAliveEnabled(),
	}
	if !st.LastStarted.IsZero() {
		t := st.LastStarted
		detail.LastStarted = &t
	}

	m.mutex.RLock()
	pi := m.proc
	m.mutex.RUnlock()
	if pi != nil {
		pd := pi.GetDetail()
		detail.Process = &pd
	}
	return detail
}
