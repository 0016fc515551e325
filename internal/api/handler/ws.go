package handler

import (
	"net/http"
	"strings"

	"driftchat/backend/internal/chathub"
	"driftchat/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// TODO: обмежити origin веб-клієнта, щойно в нього буде постійний домен.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// bearerToken читає токен із заголовка Authorization або з параметра "token"
// для браузерів, які не можуть задати заголовки при WebSocket handshake.
func bearerToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return c.Query("token")
}

// ServeWebSocket оновлює з'єднання і передає нового клієнта хабу.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	tokenString := bearerToken(c)
	if tokenString == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
		return
	}

	anonID, err := h.validateAndGetAnonID(tokenString)
	if err != nil {
		h.log.WithError(err).Debug("Rejected WebSocket token")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade вже записав HTTP-помилку
		h.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := chathub.NewWebSocketClient(models.ParticipantID(anonID), conn, h.Hub, h.outbox)
	if !h.Hub.Register(client) {
		// Хаб зупинено
		_ = conn.Close()
		return
	}
	client.Run()
}
