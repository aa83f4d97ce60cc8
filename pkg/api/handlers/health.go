package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/getship/shipd/pkg/api/servers"
)

type HealthHandler struct {
	Server *servers.Server
}

func NewHealthHandler(server *servers.Server) *HealthHandler {
	return &HealthHandler{Server: server}
}

func (h *HealthHandler) GetHealth(c *gin.Context) {
	auth := "enabled"
	if h.Server.Tokens.OpenMode() {
		auth = "disabled"
	}
	c.JSON(http.StatusOK, gin.H{"message": "OK", "auth": auth})
}

// GetReady additionally verifies connectivity to the container runtime.
func (h *HealthHandler) GetReady(c *gin.Context) {
	if err := h.Server.Docker.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OK"})
}
