package services

import (
	"context"
	"errors"
	"fmt"

	"quickflare/internal/config"
	"quickflare/internal/logger"
	"quickflare/internal/platform"
	"quickflare/internal/proc"
)

var ErrSpawnFailed = errors.New("failed to spawn cloudflared")

// BinaryProvisioner guarantees an executable cloudflared inside dir
type BinaryProvisioner interface {
	Ensure(ctx context.Context, a platform.Artifact, dir string) (string, error)
}

/**
 * TunnelLauncher builds and starts the cloudflared process
 * @property {config.TunnelConfig} cfg - Tunnel settings, MetricsPort already resolved
 * @property {platform.Artifact} artifact - cloudflared build of the host
 * @property {BinaryProvisioner} provisioner - Stages the binary before each launch
 */
type TunnelLauncher struct {
	cfg         config.TunnelConfig
	artifact    platform.Artifact
	provisioner BinaryProvisioner
	newCmd      proc.CommandFactory
}

func NewTunnelLauncher(cfg config.TunnelConfig, artifact platform.Artifact, provisioner BinaryProvisioner) *TunnelLauncher {
	return &TunnelLauncher{
		cfg:         cfg,
		artifact:    artifact,
		provisioner: provisioner,
	}
}

/**
 * Build the cloudflared command line for a mode
 * @param {string} executable - Path of the staged cloudflared binary
 * @param {TunnelMode} mode - Tunnel mode
 * @returns {(string, []string)} Returns command and arguments
 * @example
 * cmd, args := launcher.CommandLine("/tmp/cloudflared-linux-amd64", TunnelMode{Kind: ModeQuick})
 * // cmd: "/tmp/cloudflared-linux-amd64"
 * // args: tunnel --metrics 127.0.0.1:8123 --url http://127.0.0.1:5000
 */
func (l *TunnelLauncher) CommandLine(executable string, mode TunnelMode) (string, []string) {
	local := fmt.Sprintf("http://%s:%d", l.cfg.Host, l.cfg.Port)
	args := []string{"tunnel", "--metrics", fmt.Sprintf("127.0.0.1:%d", l.cfg.MetricsPort)}

	switch mode.Kind {
	case ModeConfig:
		// 外部配置文件决定路由，忽略host/port
		args = append(args, "--config", mode.ConfigPath, "run")
	case ModeNamed:
		args = append(args, "--url", local, "run", mode.TunnelID)
	default:
		args = append(args, "--url", local)
	}

	if l.artifact.TranslateArch {
		// x86_64的二进制在Apple silicon上通过Rosetta运行
		return "arch", append([]string{"-x86_64", executable}, args...)
	}
	return executable, args
}

/**
 * Stage cloudflared and start it
 * @param {context.Context} ctx - Context bounding provisioning
 * @param {TunnelMode} mode - Tunnel mode
 * @returns {(*proc.ProcessInstance, error)} Returns the running process
 * @throws
 * - Provisioner errors, returned unchanged
 * - ErrSpawnFailed when the OS refuses to start the process
 */
func (l *TunnelLauncher) Launch(ctx context.Context, mode TunnelMode) (*proc.ProcessInstance, error) {
	executable, err := l.provisioner.Ensure(ctx, l.artifact, l.cfg.Path)
	if err != nil {
		return nil, err
	}

	command, args := l.CommandLine(executable, mode)
	pi := proc.NewProcessInstance("cloudflared "+mode.String(), command, args)
	if l.newCmd != nil {
		pi.SetCommandFactory(l.newCmd)
	}
	if err := pi.StartProcess(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}
	logger.Debugf("cloudflared launched in %s mode (PID: %d)", mode, pi.Pid())
	return pi, nil
}
