package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/getship/shipd/internal/logger"
	"github.com/getship/shipd/pkg/api/servers"
	"github.com/getship/shipd/pkg/services"
	"github.com/getship/shipd/pkg/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The control API is already token-gated; the dashboard connects from
	// arbitrary origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type StreamHandler struct {
	Hub *ws.Hub
}

func NewStreamHandler(server *servers.Server) *StreamHandler {
	return &StreamHandler{Hub: server.Hub}
}

// BuildLogs upgrades to a websocket and streams build/rollback progress
// lines. A consumer disconnecting never aborts the underlying operation; the
// hub just drops the subscriber.
func (h *StreamHandler) BuildLogs(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := ws.NewClient(conn)
	h.Hub.Register(services.BuildLogChannel, client)

	// Block reading until the peer goes away, then unsubscribe.
	go func() {
		defer func() {
			h.Hub.Unregister(services.BuildLogChannel, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
