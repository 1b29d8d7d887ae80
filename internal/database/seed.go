// internal/database/seed.go
package database

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jason-s-yu/arena/internal/models"
)

type seedTournament struct {
	models.Tournament
	Teams []models.Team `json:"teams"`
}

type seedFile struct {
	Tournaments []seedTournament `json:"tournaments"`
}

// LoadSeed fills a MemoryStore with tournaments and registrations from a
// JSON file, standing in for the registration service during development.
func LoadSeed(s *MemoryStore, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed: %w", err)
	}
	var f seedFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("parse seed %s: %w", path, err)
	}
	teams := 0
	for _, t := range f.Tournaments {
		s.PutTournament(t.Tournament)
		for _, team := range t.Teams {
			s.RegisterTeam(t.ID, team)
			teams++
		}
	}
	return teams, nil
}
