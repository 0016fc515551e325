package chathub

import (
	"encoding/json"
	"sync"
	"time"

	"driftchat/backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// WebSocketClient реалізує інтерфейс Client поверх з'єднання gorilla/websocket.
type WebSocketClient struct {
	ID   models.ParticipantID
	Conn *websocket.Conn
	Hub  *ManagerService
	Send chan models.ChatMessage

	closeOnce sync.Once
	log       *logrus.Entry
}

func NewWebSocketClient(id models.ParticipantID, conn *websocket.Conn, hub *ManagerService, outbox int) *WebSocketClient {
	return &WebSocketClient{
		ID:   id,
		Conn: conn,
		Hub:  hub,
		Send: make(chan models.ChatMessage, outbox),
		log:  logrus.WithFields(logrus.Fields{"component": "ws_client", "participant_id": id}),
	}
}

func (c *WebSocketClient) GetUserID() models.ParticipantID          { return c.ID }
func (c *WebSocketClient) GetSendChannel() chan<- models.ChatMessage { return c.Send }

// Run запускає 'pumps' для WebSocket.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close закриває Send канал (що зупинить writePump, а з ним і з'єднання).
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	// Встановлення таймаутів та обробка pong
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Warn("Unexpected close")
			}
			return
		}

		var msg models.ChatMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.WithError(err).Debug("Dropping undecodable frame")
			continue
		}
		// відправника визначає з'єднання, а не сам клієнт
		msg.SenderID = c.ID

		if !c.Hub.Submit(msg) {
			return
		}
	}
}

// writePump читає повідомлення з каналу Send і записує їх у WebSocket.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Канал закрито хабом, закриваємо з'єднання WS
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(msg); err != nil {
				c.log.WithError(err).Debug("Write failed")
				return
			}

		case <-ticker.C:
			// Надсилаємо Ping для підтримки з'єднання активним
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
