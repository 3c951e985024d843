package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openregistry/consulta/api/handler"
	"github.com/openregistry/consulta/api/middleware"
	"github.com/openregistry/consulta/cache"
	"github.com/openregistry/consulta/config"
	"github.com/openregistry/consulta/consult"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(co *consult.Consultant, store *cache.Store, cfg *config.Config, version string, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(version, startTime))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Consultation
	protected.GET("/cnpj/:id", handler.Consult(co))

	// Offline re-extraction
	protected.POST("/extract", handler.Extract())

	// Cache management
	protected.DELETE("/cache/:id", handler.CacheDelete(store))
	protected.GET("/cache/stats", handler.CacheStats(store))

	return r
}
