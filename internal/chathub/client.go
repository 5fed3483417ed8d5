package chathub

import "prontoapp/backend/internal/models"

// Client is the interface for any type of connection to a chat thread.
// It abstracts the underlying transport, allowing the hub to manage
// different client types uniformly.
type Client interface {
	// GetUserID returns the verified email of the connected participant.
	GetUserID() string
	// GetThreadKey returns the thread the connection is attached to.
	GetThreadKey() string

	// GetSendChannel returns the channel to which the ManagerService (hub) sends
	// messages intended for this specific client. It is a send-only channel.
	GetSendChannel() chan<- models.ChatMessage

	// Run starts the client's read and write pumps.
	Run()
	// Close gracefully shuts down the client's connection and associated channels.
	Close()
}
