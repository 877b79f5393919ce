package models

import "time"

// TunnelDetail is the externally visible state of the supervised tunnel
type TunnelDetail struct {
	Mode        string         `json:"mode"`                  // quick/named/config
	Status      RunStatus      `json:"status"`                // stopped/starting/running
	PublicURL   string         `json:"publicUrl,omitempty"`   // public url, only set while running
	LocalURL    string         `json:"localUrl"`              // local service exposed by the tunnel
	MetricsURL  string         `json:"metricsUrl"`            // cloudflared metrics endpoint
	LastStarted *time.Time     `json:"lastStarted,omitempty"` // time of the last successful start
	KeepAlive   bool           `json:"keepAlive"`             // background health check enabled
	Process     *ProcessDetail `json:"process,omitempty"`     // child process, nil when never started
}

// ErrorResponse defines API error response format
type ErrorResponse struct {
	Error string `json:"error"`
}

// TunnelResponse defines tunnel operation success response format
type TunnelResponse struct {
	Status    string `json:"status"`    // operation status
	Message   string `json:"message"`   // response message
	PublicURL string `json:"publicUrl"` // public url after the operation
}
