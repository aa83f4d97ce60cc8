package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/getship/shipd/pkg/domain/entities"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err  error
		want int
	}{
		{entities.NewValidationError("bad input"), http.StatusBadRequest},
		{entities.NewUnauthorizedError("invalid token"), http.StatusUnauthorized},
		{entities.NewForbiddenError("insufficient role"), http.StatusForbidden},
		{entities.NewNotFoundError("missing"), http.StatusNotFound},
		{entities.NewConflictError("already exists"), http.StatusConflict},
		{entities.NewExecutionError("compose up failed", errors.New("exit 1"), "", ""), http.StatusInternalServerError},
		{entities.NewUnconfiguredError("archive host is set but no password or key file is configured"), http.StatusServiceUnavailable},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		respondError(c, tc.err)
		if w.Code != tc.want {
			t.Errorf("respondError(%v) status = %d, want %d", tc.err, w.Code, tc.want)
		}
	}
}

func TestRespondErrorIncludesCapturedOutput(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondError(c, entities.NewExecutionError("pg_dump failed", errors.New("exit 1"), "partial dump", "fatal: connection"))

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["stdout"] != "partial dump" || body["stderr"] != "fatal: connection" {
		t.Errorf("body = %v", body)
	}
}
