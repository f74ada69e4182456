package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/race-time-predictor/internal/config"
	"github.com/yourusername/race-time-predictor/internal/metrics"
)

// NewRouter builds the gin engine serving the API
func NewRouter(cfg *config.Config, handler *PredictionHandler, logger *logrus.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/predictions", handler.PredictAll)
		v1.POST("/predictions/:segment", handler.PredictSegment)
		v1.GET("/catalog", handler.Catalog)
	}

	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(metrics.Handler()))
	}

	return router
}

// NewServer wraps the router in an HTTP server using the configured timeouts
func NewServer(cfg config.ServerConfig, address string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         address,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
