package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/getship/shipd/pkg/api/dtos"
	"github.com/getship/shipd/pkg/api/servers"
	"github.com/getship/shipd/pkg/services"
)

type TokensHandler struct {
	Tokens *services.TokenService
}

func NewTokensHandler(server *servers.Server) *TokensHandler {
	return &TokensHandler{Tokens: server.Tokens}
}

// Create returns the raw token exactly once; it is never retrievable again.
func (h *TokensHandler) Create(c *gin.Context) {
	var request dtos.CreateTokenRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := h.Tokens.Create(request.Label, request.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "OK", "token": created.Token, "info": created.Info})
}

func (h *TokensHandler) List(c *gin.Context) {
	views, err := h.Tokens.List()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": views})
}

func (h *TokensHandler) Delete(c *gin.Context) {
	if err := h.Tokens.Delete(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OK"})
}
