package controllers

import (
	"context"
	"net/http"

	"quickflare/internal/models"

	"github.com/gin-gonic/gin"
)

// TunnelService is the part of the tunnel manager exposed over HTTP
type TunnelService interface {
	Detail() models.TunnelDetail
	Restart(ctx context.Context) (string, error)
}

// TunnelController handles tunnel-related HTTP requests
type TunnelController struct {
	tunnel TunnelService
}

func NewTunnelController(tunnel TunnelService) *TunnelController {
	return &TunnelController{tunnel: tunnel}
}

// GetTunnel returns the state of the supervised tunnel
//
//	@Summary		Get tunnel info
//	@Description	Get mode, status, public URL and child process of the tunnel
//	@Tags			Tunnels
//	@Produce		json
//	@Success		200	{object}	models.TunnelDetail		"Tunnel details response"
//	@Router			/quickflare/api/v1/tunnel [get]
func (tc *TunnelController) GetTunnel(c *gin.Context) {
	c.JSON(http.StatusOK, tc.tunnel.Detail())
}

// RestartTunnel stops and starts the tunnel, waiting for the new public URL
//
//	@Summary		Restart tunnel
//	@Description	Restart cloudflared and wait until it reaches the Cloudflare edge
//	@Tags			Tunnels
//	@Produce		json
//	@Success		200	{object}	models.TunnelResponse	"Tunnel restart success response"
//	@Failure		502	{object}	models.ErrorResponse	"Tunnel restart failure error response"
//	@Router			/quickflare/api/v1/tunnel/restart [post]
func (tc *TunnelController) RestartTunnel(c *gin.Context) {
	url, err := tc.tunnel.Restart(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, &models.ErrorResponse{
			Error: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, &models.TunnelResponse{
		Status:    "success",
		Message:   "Tunnel restarted",
		PublicURL: url,
	})
}

/**
* Register all tunnel-related routes to Gin engine
* @param {*gin.Engine} r - Gin router instance
* @description
* - GET  /quickflare/api/v1/tunnel
* - POST /quickflare/api/v1/tunnel/restart
 */
func (tc *TunnelController) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/quickflare/api/v1")
	{
		// 隧道管理接口
		api.GET("/tunnel", tc.GetTunnel)
		api.POST("/tunnel/restart", tc.RestartTunnel)
	}
}
