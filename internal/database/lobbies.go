// internal/database/lobbies.go
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/arena/internal/apperr"
	"github.com/jason-s-yu/arena/internal/models"
)

// PostgresStore persists lobbies, assignments, league configs and messages,
// and reads registrations from the registration tables.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore uses pool, or the global DB when pool is nil.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		pool = DB
	}
	return &PostgresStore{pool: pool}
}

const lobbyColumns = `
	id, tournament_id, lobby_number, max_teams, current_teams,
	room_id, room_password, credentials_published, status, created_at`

func scanLobby(row pgx.Row) (models.Lobby, error) {
	var l models.Lobby
	err := row.Scan(
		&l.ID,
		&l.TournamentID,
		&l.LobbyNumber,
		&l.MaxTeams,
		&l.CurrentTeams,
		&l.RoomID,
		&l.RoomPassword,
		&l.CredentialsPublished,
		&l.Status,
		&l.CreatedAt,
	)
	return l, err
}

func lobbyNotFound(err error, lobbyID uuid.UUID) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.New(apperr.NotFound, "lobby %s not found", lobbyID)
	}
	return err
}

func (s *PostgresStore) GetLeague(ctx context.Context, tournamentID uuid.UUID) (*models.LeagueConfig, error) {
	q := `
	SELECT tournament_id, game, mode, total_slots, lobbies_created, created_at
	FROM league_configs
	WHERE tournament_id = $1
	`
	var cfg models.LeagueConfig
	err := s.pool.QueryRow(ctx, q, tournamentID).Scan(
		&cfg.TournamentID, &cfg.Game, &cfg.Mode, &cfg.TotalSlots, &cfg.LobbiesCreated, &cfg.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get league config: %w", err)
	}
	return &cfg, nil
}

// SaveLeague upserts the config. The lobbies_created guard makes a racing
// allocation win over a late league change.
func (s *PostgresStore) SaveLeague(ctx context.Context, cfg models.LeagueConfig) error {
	q := `
	INSERT INTO league_configs (tournament_id, game, mode, total_slots, lobbies_created, created_at)
	VALUES ($1, $2, $3, $4, false, $5)
	ON CONFLICT (tournament_id) DO UPDATE
	   SET game = EXCLUDED.game,
	       mode = EXCLUDED.mode,
	       total_slots = EXCLUDED.total_slots
	 WHERE league_configs.lobbies_created = false
	`
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, q, cfg.TournamentID, cfg.Game, cfg.Mode, cfg.TotalSlots, cfg.CreatedAt)
		if err != nil {
			return fmt.Errorf("save league config: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.New(apperr.LeagueLocked, "league slots cannot change once lobbies have been created from them")
		}
		return nil
	})
}

func (s *PostgresStore) ListLobbies(ctx context.Context, tournamentID uuid.UUID) ([]models.Lobby, error) {
	q := `SELECT` + lobbyColumns + `
	FROM lobbies
	WHERE tournament_id = $1
	ORDER BY lobby_number
	`
	rows, err := s.pool.Query(ctx, q, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("list lobbies: %w", err)
	}
	defer rows.Close()

	var lobbies []models.Lobby
	for rows.Next() {
		l, err := scanLobby(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lobby: %w", err)
		}
		lobbies = append(lobbies, l)
	}
	return lobbies, rows.Err()
}

func (s *PostgresStore) GetLobby(ctx context.Context, lobbyID uuid.UUID) (models.Lobby, error) {
	q := `SELECT` + lobbyColumns + ` FROM lobbies WHERE id = $1`
	l, err := scanLobby(s.pool.QueryRow(ctx, q, lobbyID))
	if err != nil {
		return models.Lobby{}, lobbyNotFound(err, lobbyID)
	}
	return l, nil
}

// ListAssignments returns one row per registered team, with a nil lobby for
// teams not placed yet.
func (s *PostgresStore) ListAssignments(ctx context.Context, tournamentID uuid.UUID) ([]models.TeamAssignment, error) {
	q := `
	SELECT r.team_id, a.lobby_id
	FROM tournament_registrations r
	LEFT JOIN lobby_assignments a
	  ON a.tournament_id = r.tournament_id AND a.team_id = r.team_id
	WHERE r.tournament_id = $1 AND r.status = 'registered'
	ORDER BY r.team_id
	`
	rows, err := s.pool.Query(ctx, q, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var out []models.TeamAssignment
	for rows.Next() {
		var a models.TeamAssignment
		if err := rows.Scan(&a.TeamID, &a.LobbyID); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListLobbyTeamIDs(ctx context.Context, lobbyID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT team_id FROM lobby_assignments WHERE lobby_id = $1`, lobbyID)
	if err != nil {
		return nil, fmt.Errorf("list lobby teams: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scan lobby teams: %w", err)
	}
	return ids, nil
}

// lockTournament serialises allocation writes for one tournament across
// every connection until the transaction ends.
func lockTournament(ctx context.Context, tx pgx.Tx, tournamentID uuid.UUID) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, tournamentID.String())
	if err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	return nil
}

func insertLobbies(ctx context.Context, tx pgx.Tx, tournamentID uuid.UUID, lobbies []models.Lobby, assignments []models.TeamAssignment) error {
	batch := &pgx.Batch{}
	for _, l := range lobbies {
		batch.Queue(`
		INSERT INTO lobbies (id, tournament_id, lobby_number, max_teams, current_teams, status, created_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6)
		`, l.ID, tournamentID, l.LobbyNumber, l.MaxTeams, l.Status, l.CreatedAt)
	}
	for _, a := range assignments {
		batch.Queue(`
		INSERT INTO lobby_assignments (tournament_id, team_id, lobby_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (tournament_id, team_id) DO UPDATE SET lobby_id = EXCLUDED.lobby_id
		`, tournamentID, a.TeamID, a.LobbyID)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert lobbies: %w", err)
	}

	// current_teams is always derived from the assignment rows
	_, err := tx.Exec(ctx, `
	UPDATE lobbies l
	   SET current_teams = (SELECT count(*) FROM lobby_assignments a WHERE a.lobby_id = l.id)
	 WHERE l.tournament_id = $1
	`, tournamentID)
	if err != nil {
		return fmt.Errorf("recount lobby teams: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReplaceLobbies(ctx context.Context, tournamentID uuid.UUID, lobbies []models.Lobby, assignments []models.TeamAssignment) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := lockTournament(ctx, tx, tournamentID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM lobby_assignments WHERE tournament_id = $1`, tournamentID); err != nil {
			return fmt.Errorf("delete assignments: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM lobbies WHERE tournament_id = $1`, tournamentID); err != nil {
			return fmt.Errorf("delete lobbies: %w", err)
		}
		if err := insertLobbies(ctx, tx, tournamentID, lobbies, assignments); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE league_configs SET lobbies_created = true WHERE tournament_id = $1`, tournamentID)
		if err != nil {
			return fmt.Errorf("mark league lobbies created: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) AppendLobbies(ctx context.Context, tournamentID uuid.UUID, lobbies []models.Lobby, assignments []models.TeamAssignment) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := lockTournament(ctx, tx, tournamentID); err != nil {
			return err
		}
		return insertLobbies(ctx, tx, tournamentID, lobbies, assignments)
	})
}

func (s *PostgresStore) SetCredentials(ctx context.Context, lobbyID uuid.UUID, roomID, roomPassword string) (models.Lobby, error) {
	q := `
	UPDATE lobbies
	   SET room_id = $2, room_password = $3, credentials_published = false
	 WHERE id = $1
	RETURNING` + lobbyColumns
	l, err := scanLobby(s.pool.QueryRow(ctx, q, lobbyID, roomID, roomPassword))
	if err != nil {
		return models.Lobby{}, lobbyNotFound(err, lobbyID)
	}
	return l, nil
}

// MarkCredentialsPublished re-reads the credential under a row lock, so a
// concurrent clear cannot publish an empty room.
func (s *PostgresStore) MarkCredentialsPublished(ctx context.Context, lobbyID uuid.UUID) (models.Lobby, error) {
	var out models.Lobby
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		l, err := scanLobby(tx.QueryRow(ctx, `SELECT`+lobbyColumns+` FROM lobbies WHERE id = $1 FOR UPDATE`, lobbyID))
		if err != nil {
			return lobbyNotFound(err, lobbyID)
		}
		if !l.HasCredentials() {
			return apperr.New(apperr.CredentialsIncomplete,
				"set the room ID and password for lobby %d before publishing", l.LobbyNumber)
		}
		if _, err := tx.Exec(ctx, `UPDATE lobbies SET credentials_published = true WHERE id = $1`, lobbyID); err != nil {
			return fmt.Errorf("publish credentials: %w", err)
		}
		l.CredentialsPublished = true
		out = l
		return nil
	})
	return out, err
}

func (s *PostgresStore) SetLobbyStatus(ctx context.Context, lobbyID uuid.UUID, status models.LobbyStatus) (models.Lobby, error) {
	q := `UPDATE lobbies SET status = $2 WHERE id = $1 RETURNING` + lobbyColumns
	l, err := scanLobby(s.pool.QueryRow(ctx, q, lobbyID, status))
	if err != nil {
		return models.Lobby{}, lobbyNotFound(err, lobbyID)
	}
	return l, nil
}
