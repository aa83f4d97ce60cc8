package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/getship/shipd/pkg/domain/entities"
)

// respondError maps the error taxonomy onto HTTP statuses. Execution errors
// carry the captured subprocess output for operator diagnosis.
func respondError(c *gin.Context, err error) {
	var e *entities.Error
	if !errors.As(err, &e) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	switch e.Kind {
	case entities.KindValidation:
		c.JSON(http.StatusBadRequest, gin.H{"error": e.Message})
	case entities.KindUnauthorized:
		c.JSON(http.StatusUnauthorized, gin.H{"error": e.Message})
	case entities.KindForbidden:
		c.JSON(http.StatusForbidden, gin.H{"error": e.Message})
	case entities.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": e.Message})
	case entities.KindConflict:
		c.JSON(http.StatusConflict, gin.H{"error": e.Message})
	case entities.KindUnconfigured:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": e.Message})
	default:
		body := gin.H{"error": e.Error()}
		if e.Stdout != "" {
			body["stdout"] = e.Stdout
		}
		if e.Stderr != "" {
			body["stderr"] = e.Stderr
		}
		c.JSON(http.StatusInternalServerError, body)
	}
}
