package app

import (
	"github.com/gin-gonic/gin"

	"github.com/avaliaedu/avalia-backend/internal/http"
	httpH "github.com/avaliaedu/avalia-backend/internal/http/handlers"
	"github.com/avaliaedu/avalia-backend/internal/platform/logger"
)

type Handlers struct {
	Health *httpH.HealthHandler
	Import *httpH.ImportHandler
}

func wireHandlers(log *logger.Logger, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health: httpH.NewHealthHandler(),
		Import: httpH.NewImportHandler(log, serviceset.Import),
	}
}

func wireRouter(log *logger.Logger, cfg Config, handlerset Handlers) *gin.Engine {
	return http.NewRouter(http.RouterConfig{
		Log:           log,
		CORSOrigins:   cfg.CORSOrigins,
		HealthHandler: handlerset.Health,
		ImportHandler: handlerset.Import,
	})
}
