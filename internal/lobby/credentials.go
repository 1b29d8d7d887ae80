// internal/lobby/credentials.go
package lobby

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/apperr"
	"github.com/jason-s-yu/arena/internal/models"
	"github.com/jason-s-yu/arena/internal/notify"
	"github.com/sirupsen/logrus"
)

// SetCredentials stores the room id and password of a lobby. Setting them
// again after publication clears the published flag so the new values must
// be published before participants see them.
func (m *Manager) SetCredentials(ctx context.Context, lobbyID uuid.UUID, roomID, roomPassword string) (models.Lobby, error) {
	roomID = strings.TrimSpace(roomID)
	roomPassword = strings.TrimSpace(roomPassword)
	if roomID == "" || roomPassword == "" {
		return models.Lobby{}, apperr.New(apperr.CredentialsIncomplete, "both room ID and room password are required")
	}
	l, err := m.store.SetCredentials(ctx, lobbyID, roomID, roomPassword)
	if err != nil {
		return models.Lobby{}, persistence(err, "could not save room credentials")
	}
	m.invalidate(ctx, l.TournamentID)
	m.logger.WithFields(logrus.Fields{
		"tournament": l.TournamentID,
		"lobby":      l.LobbyNumber,
	}).Info("room credentials set")
	return l, nil
}

// PublishReport counts how far a publication got.
type PublishReport struct {
	TeamMemberCount   int    `json:"team_member_count"`
	NotificationsSent int    `json:"notifications_sent"`
	Resent            bool   `json:"resent"`
	DeliveryError     string `json:"delivery_error,omitempty"`
}

// Publish marks the lobby's credentials published and pushes them to every
// member of every team in the lobby. Publishing again resends the same
// credentials; the counts always describe this call only.
//
// The flip to published happens before delivery. A delivery failure does
// not roll it back: the report carries the partial count and the error, and
// the operator can publish again to resend.
func (m *Manager) Publish(ctx context.Context, lobbyID uuid.UUID) (PublishReport, error) {
	l, err := m.store.GetLobby(ctx, lobbyID)
	if err != nil {
		return PublishReport{}, persistence(err, "could not load lobby")
	}
	if !l.HasCredentials() {
		return PublishReport{}, apperr.New(apperr.CredentialsIncomplete,
			"set the room ID and password for lobby %d before publishing", l.LobbyNumber)
	}
	members, teamCount, err := m.lobbyMembers(ctx, l)
	if err != nil {
		return PublishReport{}, err
	}

	// credentials may have changed since GetLobby; deliver what was flipped
	published, err := m.store.MarkCredentialsPublished(ctx, lobbyID)
	if err != nil {
		return PublishReport{}, persistence(err, "could not publish room credentials")
	}
	m.invalidate(ctx, published.TournamentID)

	report := PublishReport{TeamMemberCount: len(members), Resent: l.CredentialsPublished}
	fields := logrus.Fields{
		"tournament": published.TournamentID,
		"lobby":      published.LobbyNumber,
		"teams":      teamCount,
		"members":    len(members),
	}
	if len(members) == 0 {
		m.logger.WithFields(fields).Info("room credentials published to an empty lobby")
		return report, nil
	}

	sent, err := m.deliver(ctx, members, m.credentialsPayload(published))
	report.NotificationsSent = sent
	fields["sent"] = sent
	if err != nil {
		report.DeliveryError = err.Error()
		m.logger.WithError(err).WithFields(fields).Warn("room credentials published with failed deliveries")
		return report, nil
	}
	m.logger.WithFields(fields).Info("room credentials published")
	return report, nil
}

func (m *Manager) credentialsPayload(l models.Lobby) notify.Payload {
	return notify.Payload{
		Type:         notify.EventLobbyCredentials,
		TournamentID: l.TournamentID,
		Data: notify.CredentialsData{
			LobbyID:      l.ID,
			LobbyNumber:  l.LobbyNumber,
			RoomID:       *l.RoomID,
			RoomPassword: *l.RoomPassword,
		},
		SentAt: m.Now().UTC(),
	}
}

// forwardCredentials sends already published credentials to the members of
// teams that were just placed into those lobbies. It returns how many
// members accepted them and the first delivery error.
func (m *Manager) forwardCredentials(ctx context.Context, teams []models.Team, lobbies []models.Lobby, assignments []models.TeamAssignment) (int, error) {
	byLobby := membersByLobby(teams, assignments)
	sent := 0
	var firstErr error
	for _, l := range lobbies {
		members := byLobby[l.ID]
		if !l.CredentialsPublished || !l.HasCredentials() || len(members) == 0 {
			continue
		}
		n, err := m.deliver(ctx, members, m.credentialsPayload(l))
		sent += n
		fields := logrus.Fields{
			"tournament": l.TournamentID,
			"lobby":      l.LobbyNumber,
			"members":    len(members),
			"sent":       n,
		}
		if err != nil {
			m.logger.WithError(err).WithFields(fields).Warn("room credentials not forwarded to late teams")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		m.logger.WithFields(fields).Info("room credentials forwarded to late teams")
	}
	return sent, firstErr
}
