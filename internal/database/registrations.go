// internal/database/registrations.go
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/arena/internal/apperr"
	"github.com/jason-s-yu/arena/internal/models"
)

// GetRegisteredTeams reads the teams currently registered for a tournament
// with their members. Teams without members are still returned.
func (s *PostgresStore) GetRegisteredTeams(ctx context.Context, tournamentID uuid.UUID) ([]models.Team, error) {
	q := `
	SELECT r.team_id, m.user_id
	FROM tournament_registrations r
	LEFT JOIN team_members m ON m.team_id = r.team_id
	WHERE r.tournament_id = $1 AND r.status = 'registered'
	ORDER BY r.team_id
	`
	rows, err := s.pool.Query(ctx, q, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("get registered teams: %w", err)
	}
	defer rows.Close()

	var teams []models.Team
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var teamID uuid.UUID
		var userID *uuid.UUID
		if err := rows.Scan(&teamID, &userID); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		i, ok := index[teamID]
		if !ok {
			i = len(teams)
			index[teamID] = i
			teams = append(teams, models.Team{ID: teamID})
		}
		if userID != nil {
			teams[i].MemberUserIDs = append(teams[i].MemberUserIDs, *userID)
		}
	}
	return teams, rows.Err()
}

func (s *PostgresStore) GetTournament(ctx context.Context, tournamentID uuid.UUID) (models.Tournament, error) {
	var t models.Tournament
	err := s.pool.QueryRow(ctx, `SELECT id, game, mode FROM tournaments WHERE id = $1`, tournamentID).
		Scan(&t.ID, &t.Game, &t.Mode)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Tournament{}, apperr.New(apperr.NotFound, "tournament %s not found", tournamentID)
	}
	if err != nil {
		return models.Tournament{}, fmt.Errorf("get tournament: %w", err)
	}
	return t, nil
}
