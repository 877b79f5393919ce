package services

import "quickflare/internal/config"

type ModeKind int

const (
	ModeQuick  ModeKind = iota // anonymous trycloudflare.com tunnel
	ModeNamed                  // pre-registered tunnel, run by identifier
	ModeConfig                 // routing comes from an external cloudflared config file
)

// TunnelMode selects both the cloudflared invocation and the readiness signal
type TunnelMode struct {
	Kind       ModeKind
	TunnelID   string
	ConfigPath string
}

// ModeFromConfig derives the mode; a config path wins over a tunnel id
func ModeFromConfig(tc config.TunnelConfig) TunnelMode {
	switch {
	case tc.ConfigPath != "":
		return TunnelMode{Kind: ModeConfig, ConfigPath: tc.ConfigPath}
	case tc.TunnelID != "":
		return TunnelMode{Kind: ModeNamed, TunnelID: tc.TunnelID}
	default:
		return TunnelMode{Kind: ModeQuick}
	}
}

// Preconfigured tunnels publish no URL in their metrics
func (m TunnelMode) Preconfigured() bool {
	return m.Kind != ModeQuick
}

func (m TunnelMode) String() string {
	switch m.Kind {
	case ModeNamed:
		return "named"
	case ModeConfig:
		return "config"
	default:
		return "quick"
	}
}
