package env

import (
	"os"
	"path/filepath"
)

// Build information, set with -ldflags "-X quickflare/internal/env.SoftwareVer=..."
var (
	SoftwareVer   = "dev"
	BuildTime     = ""
	BuildTag      = ""
	BuildCommitId = ""
)

// (default: %USERPROFILE%/.quickflare on Windows, $HOME/.quickflare on Linux)
var QuickflareDir string = GetQuickflareDir()

/**
 * Get quickflare directory path
 * @returns {string} Returns quickflare directory path, "" when the home directory is unknown
 */
func GetQuickflareDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".quickflare")
}
