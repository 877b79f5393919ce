package models

// HealthResponse 健康检查响应结构
type HealthResponse struct {
	Version   string `json:"version" example:"1.0.0"`
	StartTime string `json:"startTime" example:"2024-01-01T10:00:00Z"`
	Status    string `json:"status" example:"UP"`
	Uptime    string `json:"uptime" example:"1h30m45s"`
	Tunnel    string `json:"tunnel" example:"running"`
}
