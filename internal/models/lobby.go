// internal/models/lobby.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// LobbyStatus tracks where a lobby is in its match lifecycle.
type LobbyStatus string

const (
	LobbyPending   LobbyStatus = "pending"
	LobbyActive    LobbyStatus = "active"
	LobbyCompleted LobbyStatus = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s LobbyStatus) Valid() bool {
	switch s {
	case LobbyPending, LobbyActive, LobbyCompleted:
		return true
	}
	return false
}

// CredentialState is the derived state of a lobby's room credential.
type CredentialState string

const (
	CredentialsUnset     CredentialState = "unset"
	CredentialsSet       CredentialState = "set"
	CredentialsPublished CredentialState = "published"
)

// Lobby represents a row in the lobbies table: one capacity-bounded group of
// teams inside a tournament, sharing a single room credential.
type Lobby struct {
	ID           uuid.UUID `json:"id"`
	TournamentID uuid.UUID `json:"tournament_id"`
	LobbyNumber  int       `json:"lobby_number"`
	MaxTeams     int       `json:"max_teams"`
	CurrentTeams int       `json:"current_teams"`

	RoomID               *string `json:"room_id,omitempty"`
	RoomPassword         *string `json:"room_password,omitempty"`
	CredentialsPublished bool    `json:"credentials_published"`

	Status    LobbyStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// HasCredentials is true when both room id and password are non-empty.
func (l Lobby) HasCredentials() bool {
	return l.RoomID != nil && *l.RoomID != "" && l.RoomPassword != nil && *l.RoomPassword != ""
}

// CredentialState derives unset/set/published from the stored columns.
func (l Lobby) CredentialState() CredentialState {
	switch {
	case l.CredentialsPublished:
		return CredentialsPublished
	case l.RoomID != nil || l.RoomPassword != nil:
		return CredentialsSet
	default:
		return CredentialsUnset
	}
}

// Redacted returns a copy without the room credential.
func (l Lobby) Redacted() Lobby {
	l.RoomID = nil
	l.RoomPassword = nil
	return l
}

// TeamAssignment maps a registered team to at most one lobby.
type TeamAssignment struct {
	TeamID  uuid.UUID  `json:"team_id"`
	LobbyID *uuid.UUID `json:"lobby_id,omitempty"`
}
