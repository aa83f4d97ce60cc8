package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/getship/shipd/pkg/api/dtos"
	"github.com/getship/shipd/pkg/api/servers"
	"github.com/getship/shipd/pkg/services"
)

type InstancesHandler struct {
	Instances *services.InstanceService
	Backups   *services.BackupService
}

func NewInstancesHandler(server *servers.Server) *InstancesHandler {
	return &InstancesHandler{
		Instances: server.Instances,
		Backups:   server.Backups,
	}
}

func (h *InstancesHandler) List(c *gin.Context) {
	views, err := h.Instances.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"instances": views})
}

func (h *InstancesHandler) Get(c *gin.Context) {
	view, err := h.Instances.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"instance": view})
}

func (h *InstancesHandler) Provision(c *gin.Context) {
	var request dtos.ProvisionInstanceRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.Instances.Provision(c.Request.Context(), services.ProvisionRequest{
		Name:          request.Name,
		DisplayName:   request.DisplayName,
		APIKey:        request.APIKey,
		PostgresImage: request.PostgresImage,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "OK", "instance": result})
}

func (h *InstancesHandler) Remove(c *gin.Context) {
	deleteData := c.Query("delete_data") == "true"
	if err := h.Instances.Remove(c.Request.Context(), c.Param("name"), deleteData); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OK"})
}

func (h *InstancesHandler) Start(c *gin.Context) {
	if err := h.Instances.Start(c.Request.Context(), c.Param("name")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OK"})
}

func (h *InstancesHandler) Stop(c *gin.Context) {
	if err := h.Instances.Stop(c.Request.Context(), c.Param("name")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OK"})
}

func (h *InstancesHandler) Restart(c *gin.Context) {
	if err := h.Instances.Restart(c.Request.Context(), c.Param("name")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OK"})
}

func (h *InstancesHandler) UpdateEnv(c *gin.Context) {
	var request dtos.UpdateEnvRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Instances.UpdateEnv(c.Request.Context(), c.Param("name"), request.Env, request.Restart); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OK"})
}

func (h *InstancesHandler) Backup(c *gin.Context) {
	result, err := h.Backups.Backup(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OK", "backup": result})
}

func (h *InstancesHandler) ListBackups(c *gin.Context) {
	records, err := h.Backups.ListBackups(c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"backups": records})
}

func (h *InstancesHandler) ArchiveBackup(c *gin.Context) {
	var request dtos.ArchiveBackupRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.Backups.ArchiveBackup(c.Request.Context(), c.Param("name"), request.File)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OK", "archive": result})
}
