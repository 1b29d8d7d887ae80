// internal/models/league.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// LeagueConfig is created once when league mode is enabled for a tournament.
// TotalSlots is fixed once lobbies have been created from it.
type LeagueConfig struct {
	TournamentID   uuid.UUID `json:"tournament_id"`
	Game           string    `json:"game"`
	Mode           string    `json:"mode"`
	TotalSlots     int       `json:"total_slots"`
	LobbiesCreated bool      `json:"lobbies_created"`
	CreatedAt      time.Time `json:"created_at"`
}
