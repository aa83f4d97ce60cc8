package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/getship/shipd/pkg/api/handlers"
	"github.com/getship/shipd/pkg/api/middlewares"
	"github.com/getship/shipd/pkg/api/servers"
	"github.com/getship/shipd/pkg/domain/entities"
)

func SetupRoutes(server *servers.Server) {
	health := handlers.NewHealthHandler(server)
	server.Router.GET("/health", health.GetHealth)
	server.Router.GET("/ready", health.GetReady)
	server.Router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := server.Router.Group("/api")
	setupInstanceRoutes(api, server)
	setupBuildRoutes(api, server)
	setupTokenRoutes(api, server)
	setupStreamRoutes(api, server)
}

func setupInstanceRoutes(router *gin.RouterGroup, server *servers.Server) {
	handler := handlers.NewInstancesHandler(server)
	tokens := server.Tokens

	anyRole := middlewares.RequireRole(tokens)
	deployer := middlewares.RequireRole(tokens, entities.RoleAdmin, entities.RoleDeployer)
	admin := middlewares.RequireRole(tokens, entities.RoleAdmin)

	instances := router.Group("/instances")
	instances.GET("", anyRole, handler.List)
	instances.POST("", deployer, handler.Provision)
	instances.GET("/:name", anyRole, handler.Get)
	instances.DELETE("/:name", admin, handler.Remove)
	instances.POST("/:name/start", deployer, handler.Start)
	instances.POST("/:name/stop", admin, handler.Stop)
	instances.POST("/:name/restart", deployer, handler.Restart)
	instances.PUT("/:name/env", deployer, handler.UpdateEnv)
	instances.POST("/:name/backup", deployer, handler.Backup)
	instances.GET("/:name/backups", deployer, handler.ListBackups)
	instances.POST("/:name/archive", admin, handler.ArchiveBackup)
}

func setupBuildRoutes(router *gin.RouterGroup, server *servers.Server) {
	handler := handlers.NewBuildsHandler(server)
	tokens := server.Tokens

	anyRole := middlewares.RequireRole(tokens)
	deployer := middlewares.RequireRole(tokens, entities.RoleAdmin, entities.RoleDeployer)
	admin := middlewares.RequireRole(tokens, entities.RoleAdmin)

	router.POST("/rebuild", deployer, handler.Rebuild)
	router.POST("/rollback", admin, handler.Rollback)
	router.POST("/build-cleanup", admin, handler.Cleanup)
	router.POST("/archive-image", admin, handler.ArchiveImage)
	router.GET("/build-info", anyRole, handler.BuildInfo)
	router.GET("/build-history", anyRole, handler.History)
}

func setupTokenRoutes(router *gin.RouterGroup, server *servers.Server) {
	handler := handlers.NewTokensHandler(server)
	admin := middlewares.RequireRole(server.Tokens, entities.RoleAdmin)

	tokens := router.Group("/tokens", admin)
	tokens.POST("", handler.Create)
	tokens.GET("", handler.List)
	tokens.DELETE("/:id", handler.Delete)
}

func setupStreamRoutes(router *gin.RouterGroup, server *servers.Server) {
	handler := handlers.NewStreamHandler(server)
	anyRole := middlewares.RequireRole(server.Tokens)

	router.GET("/ws/build-logs", anyRole, handler.BuildLogs)
}
