package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/mars-clock/internal/infra/config"
)

// NewRouter wires up the status handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestLogger(handler.logger),
		errorHandlingMiddleware(handler.logger),
	)

	router.GET("/healthz", handler.Health)
	router.GET("/metrics", handler.Metrics)

	api := router.Group("/api/v1/clock")
	{
		api.GET("/status", handler.Status)
		api.POST("/post", handler.Post)
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        router,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   writeTimeout(cfg),
		MaxHeaderBytes: 1 << 20,
	}
}

// writeTimeout never cuts off a manual post that is still within its budget.
func writeTimeout(cfg *config.Config) time.Duration {
	if budget := cfg.PostBudget(); cfg.HTTP.WriteTimeout < budget {
		return budget
	}
	return cfg.HTTP.WriteTimeout
}
