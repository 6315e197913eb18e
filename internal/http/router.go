// Package http assembles the gin router for the import API.
package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/avaliaedu/avalia-backend/internal/http/handlers"
	httpMW "github.com/avaliaedu/avalia-backend/internal/http/middleware"
	"github.com/avaliaedu/avalia-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log           *logger.Logger
	CORSOrigins   []string
	HealthHandler *httpH.HealthHandler
	ImportHandler *httpH.ImportHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.ImportHandler != nil {
			api.POST("/imports", cfg.ImportHandler.Create)
			api.GET("/imports", cfg.ImportHandler.List)
			api.GET("/imports/:id", cfg.ImportHandler.Get)
			api.POST("/imports/:id/pause", cfg.ImportHandler.Pause)
			api.POST("/imports/:id/resume", cfg.ImportHandler.Resume)
			api.POST("/imports/:id/cancel", cfg.ImportHandler.Cancel)
		}
	}

	return r
}
