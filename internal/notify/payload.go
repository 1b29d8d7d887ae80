// internal/notify/payload.go
package notify

import (
	"time"

	"github.com/google/uuid"
)

// Event types pushed to participants.
const (
	EventLobbyAssigned    = "lobby_assigned"
	EventLobbyCredentials = "lobby_credentials"
	EventMessage          = "tournament_message"
	EventMessageDeleted   = "tournament_message_deleted"
)

// Payload is the JSON document delivered to every recipient.
type Payload struct {
	Type         string    `json:"type"`
	TournamentID uuid.UUID `json:"tournament_id"`
	Data         any       `json:"data,omitempty"`
	SentAt       time.Time `json:"sent_at"`
}

// CredentialsData is the body of an EventLobbyCredentials push.
type CredentialsData struct {
	LobbyID      uuid.UUID `json:"lobby_id"`
	LobbyNumber  int       `json:"lobby_number"`
	RoomID       string    `json:"room_id"`
	RoomPassword string    `json:"room_password"`
}

// AssignmentData is the body of an EventLobbyAssigned push.
type AssignmentData struct {
	LobbyID     uuid.UUID `json:"lobby_id"`
	LobbyNumber int       `json:"lobby_number"`
}
