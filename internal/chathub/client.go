package chathub

import "driftchat/backend/internal/models"

// Client is the interface for any type of connection (e.g., WebSocket, Telegram).
// It abstracts the underlying communication mechanism, allowing the hub to manage
// different client types uniformly.
type Client interface {
	// GetUserID returns the participant identifier bound to this connection.
	GetUserID() models.ParticipantID

	// GetSendChannel returns the channel to which the ManagerService (hub) sends
	// messages intended for this specific client. It is a send-only channel.
	GetSendChannel() chan<- models.ChatMessage

	// Run starts the client's pumps.
	Run()
	// Close shuts down the connection. It must be safe to call more than once.
	Close()
}
