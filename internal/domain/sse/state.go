package sse

import "assistantportal/internal/domain/notification"

// ConnectionState of the push channel as seen by the UI.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
	StateFailed       ConnectionState = "failed"
)

// CredentialsMode controls whether session credentials travel with the request.
type CredentialsMode int

const (
	CredentialsOmit CredentialsMode = iota
	CredentialsInclude
)

// Subscriber is the single consumer of a Manager. Callbacks run on the
// manager's goroutine, in order, and must not call Manager.Connect(false, …).
type Subscriber interface {
	OnConnectionStateChange(state ConnectionState)
	OnNotification(env notification.Envelope)
}
