// Package platform maps the host (GOOS, GOARCH) to the cloudflared release artifact to run.
package platform

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

const releaseBaseURL = "https://github.com/cloudflare/cloudflared/releases/latest/download/"

var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Key identifies a supported host with Go's own OS/arch names.
type Key struct {
	OS   string
	Arch string
}

func (k Key) String() string {
	return k.OS + "/" + k.Arch
}

// Current returns the key of the running host
func Current() Key {
	return Key{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

/**
 * Artifact describes the cloudflared build for one platform
 * @property {string} Command - File name of the executable once staged
 * @property {string} URL - Download address of the release asset
 * @property {bool} Archived - The asset is an archive the executable has to be extracted from
 * @property {bool} TranslateArch - The binary is x86_64 and must run under `arch -x86_64`
 */
type Artifact struct {
	Command       string
	URL           string
	Archived      bool
	TranslateArch bool
}

// Table is a read-only artifact lookup. The zero value is empty.
type Table struct {
	entries map[Key]Artifact
}

func binary(name string) Artifact {
	return Artifact{Command: name, URL: releaseBaseURL + name}
}

// macOS only ships an amd64 tarball; Apple silicon runs it through Rosetta.
var darwinBundle = Artifact{
	Command:  "cloudflared",
	URL:      releaseBaseURL + "cloudflared-darwin-amd64.tgz",
	Archived: true,
}

// DefaultTable returns the artifact table of the official cloudflared releases
func DefaultTable() Table {
	arm := darwinBundle
	arm.TranslateArch = true
	return Table{entries: map[Key]Artifact{
		{OS: "windows", Arch: "amd64"}: binary("cloudflared-windows-amd64.exe"),
		{OS: "windows", Arch: "386"}:   binary("cloudflared-windows-386.exe"),
		{OS: "linux", Arch: "amd64"}:   binary("cloudflared-linux-amd64"),
		{OS: "linux", Arch: "386"}:     binary("cloudflared-linux-386"),
		{OS: "linux", Arch: "arm"}:     binary("cloudflared-linux-arm"),
		{OS: "linux", Arch: "arm64"}:   binary("cloudflared-linux-arm64"),
		{OS: "darwin", Arch: "amd64"}:  darwinBundle,
		{OS: "darwin", Arch: "arm64"}:  arm,
	}}
}

// Resolve returns the artifact for key. Only exact matches count.
func (t Table) Resolve(key Key) (Artifact, error) {
	a, ok := t.entries[key]
	if !ok {
		supported := make([]string, 0, len(t.entries))
		for _, k := range t.Keys() {
			supported = append(supported, k.String())
		}
		return Artifact{}, fmt.Errorf("%w: %s is not supported on %s (supported: %s)",
			ErrUnsupportedPlatform, key.Arch, key.OS, strings.Join(supported, ", "))
	}
	return a, nil
}

// Keys lists the supported platforms in a stable order
func (t Table) Keys() []Key {
	keys := make([]Key, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}
