// internal/database/messages.go
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/arena/internal/apperr"
	"github.com/jason-s-yu/arena/internal/models"
)

const messageColumns = `
	id, tournament_id, sender_id, recipient_type, recipient_lobby_id,
	recipient_team_id, content, created_at, deletable_until`

func scanMessage(row pgx.Row) (models.Message, error) {
	var m models.Message
	err := row.Scan(
		&m.ID,
		&m.TournamentID,
		&m.SenderID,
		&m.RecipientType,
		&m.RecipientLobbyID,
		&m.RecipientTeamID,
		&m.Content,
		&m.CreatedAt,
		&m.DeletableUntil,
	)
	return m, err
}

func (s *PostgresStore) CreateMessage(ctx context.Context, msg models.Message) error {
	q := `
	INSERT INTO tournament_messages (` + messageColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q,
			msg.ID,
			msg.TournamentID,
			msg.SenderID,
			msg.RecipientType,
			msg.RecipientLobbyID,
			msg.RecipientTeamID,
			msg.Content,
			msg.CreatedAt,
			msg.DeletableUntil,
		)
		return err
	})
}

func (s *PostgresStore) GetMessage(ctx context.Context, messageID uuid.UUID) (models.Message, error) {
	q := `SELECT` + messageColumns + ` FROM tournament_messages WHERE id = $1`
	m, err := scanMessage(s.pool.QueryRow(ctx, q, messageID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Message{}, apperr.New(apperr.NotFound, "message %s not found", messageID)
	}
	if err != nil {
		return models.Message{}, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, tournamentID uuid.UUID) ([]models.Message, error) {
	q := `SELECT` + messageColumns + `
	FROM tournament_messages
	WHERE tournament_id = $1
	ORDER BY created_at DESC
	`
	rows, err := s.pool.Query(ctx, q, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// DeleteIfSender checks sender and window in the same statement as the
// delete, against the stored deletable_until.
func (s *PostgresStore) DeleteIfSender(ctx context.Context, messageID, senderID uuid.UUID, now time.Time) (bool, error) {
	q := `
	DELETE FROM tournament_messages
	 WHERE id = $1 AND sender_id = $2 AND deletable_until > $3
	`
	tag, err := s.pool.Exec(ctx, q, messageID, senderID, now)
	if err != nil {
		return false, fmt.Errorf("delete message: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
