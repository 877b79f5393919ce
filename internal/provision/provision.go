// Package provision makes sure a runnable cloudflared binary is staged on disk.
package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"quickflare/internal/logger"
	"quickflare/internal/platform"

	"github.com/creativeprojects/go-selfupdate"
)

var ErrProvisioningFailed = errors.New("provisioning failed")

const defaultDownloadTimeout = 5 * time.Minute

/**
 * Provisioner downloads and stages cloudflared
 * @property {*http.Client} Client - HTTP client used for downloads
 * @property {bool} SkipUpdate - Do not run `cloudflared update` on an already staged binary
 */
type Provisioner struct {
	Client     *http.Client
	SkipUpdate bool
	newCmd     func(name string, args ...string) *exec.Cmd
}

func NewProvisioner() *Provisioner {
	return &Provisioner{
		Client: &http.Client{Timeout: defaultDownloadTimeout},
		newCmd: exec.Command,
	}
}

// ExecutablePath is where the binary of artifact lives inside dir
func ExecutablePath(a platform.Artifact, dir string) string {
	return filepath.Join(dir, a.Command)
}

/**
 * Ensure a runnable cloudflared is present in dir
 * @param {context.Context} ctx - Context bounding the download
 * @param {platform.Artifact} a - Artifact of the host platform
 * @param {string} dir - Staging directory
 * @returns {(string, error)} Returns the executable path
 * @description
 * - An existing binary is reused and asked to self update in the background
 * - Otherwise the artifact is downloaded, extracted when archived, and made executable
 * @throws
 * - ErrProvisioningFailed wrapping download, extraction or permission errors
 */
func (p *Provisioner) Ensure(ctx context.Context, a platform.Artifact, dir string) (string, error) {
	executable := ExecutablePath(a, dir)
	if info, err := os.Stat(executable); err == nil && !info.IsDir() {
		if !p.SkipUpdate {
			p.selfUpdate(executable)
		}
		return executable, nil
	}
	return p.Download(ctx, a, dir)
}

// Download fetches the artifact unconditionally, replacing any staged binary
func (p *Provisioner) Download(ctx context.Context, a platform.Artifact, dir string) (string, error) {
	logger.Infof("Downloading cloudflared from %s", a.URL)
	executable := ExecutablePath(a, dir)
	if err := p.download(ctx, a, dir, executable); err != nil {
		logger.Errorf("Download cloudflared failed: %v", err)
		return "", fmt.Errorf("%w: %v", ErrProvisioningFailed, err)
	}
	logger.Infof("cloudflared staged at %s", executable)
	return executable, nil
}

func (p *Provisioner) download(ctx context.Context, a platform.Artifact, dir, executable string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	rsp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("GET '%s': %w", a.URL, err)
	}
	defer rsp.Body.Close()
	if rsp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET '%s' code: %d", a.URL, rsp.StatusCode)
	}

	var src io.Reader = rsp.Body
	if a.Archived {
		src, err = selfupdate.DecompressCommand(rsp.Body, a.URL, a.Command, "darwin", "amd64")
		if err != nil {
			return fmt.Errorf("failed to extract '%s' from '%s': %w", a.Command, a.URL, err)
		}
	}

	// 先写临时文件，完整写入后再替换，避免留下半个可执行文件
	tmp, err := os.CreateTemp(dir, "."+a.Command+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write '%s': %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0755); err != nil {
		return fmt.Errorf("failed to chmod '%s': %w", tmpName, err)
	}
	if err := os.Rename(tmpName, executable); err != nil {
		return fmt.Errorf("failed to move '%s' to '%s': %w", tmpName, executable, err)
	}
	return nil
}

// selfUpdate 让已存在的cloudflared在后台自行升级，失败不影响启动
func (p *Provisioner) selfUpdate(executable string) {
	newCmd := p.newCmd
	if newCmd == nil {
		newCmd = exec.Command
	}
	cmd := newCmd(executable, "update")
	if err := cmd.Start(); err != nil {
		logger.Warnf("Failed to run '%s update': %v", executable, err)
		return
	}
	logger.Debugf("Running '%s update' (PID: %d)", executable, cmd.Process.Pid)
	go cmd.Wait()
}
