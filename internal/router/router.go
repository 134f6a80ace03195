// Package router wires HTTP routes to their handlers.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/instance-remote/internal/config"
	"github.com/pandeptwidyaop/instance-remote/internal/handlers"
	"github.com/pandeptwidyaop/instance-remote/internal/middleware"
	"github.com/pandeptwidyaop/instance-remote/internal/services"
	"github.com/pandeptwidyaop/instance-remote/internal/version"
)

func New(cfg *config.Config, coordinator *services.Coordinator, history *services.HistoryService) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.DefaultBodyLimit())

	instanceHandler := handlers.NewInstanceHandler(coordinator)
	launchHandler := handlers.NewLaunchHandler(coordinator, history)
	streamHandler := handlers.NewStreamHandler(coordinator)

	api := r.Group(cfg.Server.PathPrefix + "/api")

	api.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, version.Info())
	})

	protected := api.Group("")
	protected.Use(middleware.TokenAuth(cfg.Server.APIToken))
	{
		protected.GET("/instances", instanceHandler.List)
		protected.POST("/instances", instanceHandler.Register)
		protected.GET("/instances/:name", instanceHandler.Get)
		protected.DELETE("/instances/:name", instanceHandler.Unregister)
		protected.POST("/instances/:name/prepare", instanceHandler.Prepare)

		protected.POST("/launch", launchHandler.LaunchBatch)
		protected.POST("/rollback", launchHandler.Rollback)
		protected.GET("/rollback/status", launchHandler.RollbackStatus)

		protected.GET("/batches", launchHandler.ListBatches)
		protected.GET("/batches/:id", launchHandler.GetBatch)

		protected.GET("/events", streamHandler.Events)
	}

	return r
}
