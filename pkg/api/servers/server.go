package servers

import (
	"github.com/gin-gonic/gin"

	"github.com/getship/shipd/pkg/infrastructure/docker"
	"github.com/getship/shipd/pkg/services"
	"github.com/getship/shipd/pkg/ws"
)

// Server bundles the router with the assembled services the handlers use.
type Server struct {
	Router    *gin.Engine
	Docker    *docker.Client
	Instances *services.InstanceService
	Builds    *services.BuildService
	Backups   *services.BackupService
	Tokens    *services.TokenService
	Hub       *ws.Hub
}

func NewServer(
	dockerClient *docker.Client,
	instances *services.InstanceService,
	builds *services.BuildService,
	backups *services.BackupService,
	tokens *services.TokenService,
	hub *ws.Hub,
) *Server {
	app := gin.Default()

	return &Server{
		Router:    app,
		Docker:    dockerClient,
		Instances: instances,
		Builds:    builds,
		Backups:   backups,
		Tokens:    tokens,
		Hub:       hub,
	}
}

func (s *Server) Use(middleware ...gin.HandlerFunc) {
	s.Router.Use(middleware...)
}

func (s *Server) Start(port string) error {
	return s.Router.Run(":" + port)
}
