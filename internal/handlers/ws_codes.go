// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the notification socket.
const (
	BadSubprotocolError   = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError = 3001 // Token was missing, invalid or expired.
	SubscribeFailedError  = 3004 // The notification gateway refused the subscription.
)
