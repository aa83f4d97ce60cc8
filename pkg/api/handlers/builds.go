package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/getship/shipd/pkg/api/dtos"
	"github.com/getship/shipd/pkg/api/middlewares"
	"github.com/getship/shipd/pkg/api/servers"
	"github.com/getship/shipd/pkg/services"
)

type BuildsHandler struct {
	Builds  *services.BuildService
	Backups *services.BackupService
}

func NewBuildsHandler(server *servers.Server) *BuildsHandler {
	return &BuildsHandler{
		Builds:  server.Builds,
		Backups: server.Backups,
	}
}

func (h *BuildsHandler) Rebuild(c *gin.Context) {
	result, err := h.Builds.Rebuild(c.Request.Context(), services.RebuildRequest{
		Instance:    c.Query("name"),
		SkipBuild:   c.Query("skip_build") == "true",
		TriggeredBy: middlewares.CallerLabel(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OK", "build": result})
}

func (h *BuildsHandler) Rollback(c *gin.Context) {
	var request dtos.RollbackRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.Builds.Rollback(c.Request.Context(), request.Tag)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OK", "rollback": result})
}

func (h *BuildsHandler) Cleanup(c *gin.Context) {
	result, err := h.Builds.Cleanup(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OK", "cleanup": result})
}

func (h *BuildsHandler) BuildInfo(c *gin.Context) {
	info, err := h.Builds.BuildInfo(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"build_info": info})
}

func (h *BuildsHandler) History(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	includeFailed := c.Query("include_failed") == "true"
	records, err := h.Builds.History(limit, includeFailed)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"builds": records})
}

func (h *BuildsHandler) ArchiveImage(c *gin.Context) {
	var request dtos.ArchiveImageRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.Backups.ArchiveImage(c.Request.Context(), request.Tag)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OK", "archive": result})
}
