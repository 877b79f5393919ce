package controllers

import (
	"net/http"

	"quickflare/internal/middleware"
	"quickflare/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthSource produces the /healthz payload
type HealthSource interface {
	GetHealthz() models.HealthResponse
}

type APIController struct {
	server HealthSource
}

/**
 * Create new API controller instance
 * @param {HealthSource} server - Source of the readiness payload, usually *services.Server
 * @returns {*APIController} New API controller instance
 * @example
 * server := services.NewServer(manager, version)
 * controller := controllers.NewAPIController(server)
 */
func NewAPIController(server HealthSource) *APIController {
	return &APIController{
		server: server,
	}
}

/**
 * Register system routes to Gin engine
 * @param {*gin.Engine} r - Gin router instance
 * @description
 * - /healthz readiness probe
 * - /metrics Prometheus exposition of the supervisor's own metrics
 */
func (a *APIController) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", a.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// @Summary 业务就绪探针
// @Description 返回服务版本、启动时间、运行时长和隧道状态
// @Tags System
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /healthz [get]
func (a *APIController) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, a.server.GetHealthz())
}

/**
 * Build the control API router
 * @param {HealthSource} health - Source of /healthz
 * @param {TunnelService} tunnel - The supervised tunnel
 * @returns {*gin.Engine} Router with metrics middleware and all routes
 * @example
 * router := controllers.NewRouter(server, server.Tunnel())
 * server.Serve(ctx, ln, router)
 */
func NewRouter(health HealthSource, tunnel TunnelService) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.MetricsMiddleware())

	NewAPIController(health).RegisterRoutes(r)
	NewTunnelController(tunnel).RegisterRoutes(r)
	return r
}
