// internal/models/message.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/apperr"
)

// RecipientType is the stored discriminant of a RecipientScope.
type RecipientType string

const (
	RecipientGlobal RecipientType = "global"
	RecipientLobby  RecipientType = "lobby"
	RecipientTeam   RecipientType = "team"
)

// RecipientScope targets an operator message. It is one of GlobalScope,
// LobbyScope or TeamScope.
type RecipientScope interface {
	Type() RecipientType
	isRecipientScope()
}

// GlobalScope addresses every registered participant of the tournament.
type GlobalScope struct{}

// LobbyScope addresses the members of every team assigned to one lobby.
type LobbyScope struct{ LobbyID uuid.UUID }

// TeamScope addresses the members of one team.
type TeamScope struct{ TeamID uuid.UUID }

func (GlobalScope) Type() RecipientType { return RecipientGlobal }
func (LobbyScope) Type() RecipientType  { return RecipientLobby }
func (TeamScope) Type() RecipientType   { return RecipientTeam }

func (GlobalScope) isRecipientScope() {}
func (LobbyScope) isRecipientScope()  {}
func (TeamScope) isRecipientScope()   {}

// ParseScope builds a scope from the flat wire representation.
func ParseScope(recipientType string, lobbyID, teamID *uuid.UUID) (RecipientScope, error) {
	switch RecipientType(recipientType) {
	case RecipientGlobal:
		return GlobalScope{}, nil
	case RecipientLobby:
		if lobbyID == nil || *lobbyID == uuid.Nil {
			return nil, apperr.New(apperr.InvalidRecipientScope, "a lobby message needs a recipient lobby")
		}
		return LobbyScope{LobbyID: *lobbyID}, nil
	case RecipientTeam:
		if teamID == nil || *teamID == uuid.Nil {
			return nil, apperr.New(apperr.InvalidRecipientScope, "a team message needs a recipient team")
		}
		return TeamScope{TeamID: *teamID}, nil
	default:
		return nil, apperr.New(apperr.InvalidRecipientScope, "%q is not a recipient type; use global, lobby or team", recipientType)
	}
}

// Message is an operator message. Only deletion mutates it after creation.
type Message struct {
	ID               uuid.UUID     `json:"id"`
	TournamentID     uuid.UUID     `json:"tournament_id"`
	SenderID         uuid.UUID     `json:"sender_id"`
	RecipientType    RecipientType `json:"recipient_type"`
	RecipientLobbyID *uuid.UUID    `json:"recipient_lobby_id,omitempty"`
	RecipientTeamID  *uuid.UUID    `json:"recipient_team_id,omitempty"`
	Content          string        `json:"content"`
	CreatedAt        time.Time     `json:"created_at"`
	DeletableUntil   time.Time     `json:"deletable_until"`
}

// SetScope stores scope in the flat columns.
func (m *Message) SetScope(scope RecipientScope) {
	m.RecipientType = scope.Type()
	m.RecipientLobbyID = nil
	m.RecipientTeamID = nil
	switch s := scope.(type) {
	case LobbyScope:
		id := s.LobbyID
		m.RecipientLobbyID = &id
	case TeamScope:
		id := s.TeamID
		m.RecipientTeamID = &id
	}
}

// Scope rebuilds the tagged scope from the flat columns.
func (m Message) Scope() (RecipientScope, error) {
	return ParseScope(string(m.RecipientType), m.RecipientLobbyID, m.RecipientTeamID)
}

// DeleteWindowOpen is true while now is strictly before DeletableUntil.
func (m Message) DeleteWindowOpen(now time.Time) bool {
	return now.Before(m.DeletableUntil)
}
