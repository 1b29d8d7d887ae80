// internal/database/memory.go
package database

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/apperr"
	"github.com/jason-s-yu/arena/internal/models"
)

// MemoryStore keeps every table in process. It backs STORE=memory and the
// service tests; registrations and tournaments are seeded with
// RegisterTeam and PutTournament.
type MemoryStore struct {
	mu sync.RWMutex

	tournaments map[uuid.UUID]models.Tournament
	teams       map[uuid.UUID][]models.Team
	leagues     map[uuid.UUID]models.LeagueConfig
	lobbies     map[uuid.UUID]models.Lobby
	assignments map[uuid.UUID]map[uuid.UUID]uuid.UUID // tournament -> team -> lobby
	messages    map[uuid.UUID]models.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tournaments: make(map[uuid.UUID]models.Tournament),
		teams:       make(map[uuid.UUID][]models.Team),
		leagues:     make(map[uuid.UUID]models.LeagueConfig),
		lobbies:     make(map[uuid.UUID]models.Lobby),
		assignments: make(map[uuid.UUID]map[uuid.UUID]uuid.UUID),
		messages:    make(map[uuid.UUID]models.Message),
	}
}

func (s *MemoryStore) PutTournament(t models.Tournament) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tournaments[t.ID] = t
}

// RegisterTeam adds or replaces a team registration.
func (s *MemoryStore) RegisterTeam(tournamentID uuid.UUID, team models.Team) {
	s.mu.Lock()
	defer s.mu.Unlock()
	team.MemberUserIDs = slices.Clone(team.MemberUserIDs)
	teams := s.teams[tournamentID]
	for i := range teams {
		if teams[i].ID == team.ID {
			teams[i] = team
			return
		}
	}
	s.teams[tournamentID] = append(teams, team)
}

func (s *MemoryStore) GetTournament(_ context.Context, tournamentID uuid.UUID) (models.Tournament, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tournaments[tournamentID]
	if !ok {
		return models.Tournament{}, apperr.New(apperr.NotFound, "tournament %s not found", tournamentID)
	}
	return t, nil
}

func (s *MemoryStore) GetRegisteredTeams(_ context.Context, tournamentID uuid.UUID) ([]models.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Team, len(s.teams[tournamentID]))
	for i, t := range s.teams[tournamentID] {
		out[i] = models.Team{ID: t.ID, MemberUserIDs: slices.Clone(t.MemberUserIDs)}
	}
	return out, nil
}

func (s *MemoryStore) GetLeague(_ context.Context, tournamentID uuid.UUID) (*models.LeagueConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.leagues[tournamentID]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

func (s *MemoryStore) SaveLeague(_ context.Context, cfg models.LeagueConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leagues[cfg.TournamentID] = cfg
	return nil
}

func (s *MemoryStore) ListLobbies(_ context.Context, tournamentID uuid.UUID) ([]models.Lobby, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Lobby
	for _, l := range s.lobbies {
		if l.TournamentID == tournamentID {
			out = append(out, copyLobby(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LobbyNumber < out[j].LobbyNumber })
	return out, nil
}

func (s *MemoryStore) GetLobby(_ context.Context, lobbyID uuid.UUID) (models.Lobby, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lobbies[lobbyID]
	if !ok {
		return models.Lobby{}, apperr.New(apperr.NotFound, "lobby %s not found", lobbyID)
	}
	return copyLobby(l), nil
}

func (s *MemoryStore) ListAssignments(_ context.Context, tournamentID uuid.UUID) ([]models.TeamAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.TeamAssignment
	for _, t := range s.teams[tournamentID] {
		a := models.TeamAssignment{TeamID: t.ID}
		if lobbyID, ok := s.assignments[tournamentID][t.ID]; ok {
			a.LobbyID = &lobbyID
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *MemoryStore) ListLobbyTeamIDs(_ context.Context, lobbyID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lobbies[lobbyID]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "lobby %s not found", lobbyID)
	}
	var out []uuid.UUID
	for teamID, assigned := range s.assignments[l.TournamentID] {
		if assigned == lobbyID {
			out = append(out, teamID)
		}
	}
	return out, nil
}

func (s *MemoryStore) ReplaceLobbies(_ context.Context, tournamentID uuid.UUID, lobbies []models.Lobby, assignments []models.TeamAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, l := range s.lobbies {
		if l.TournamentID == tournamentID {
			delete(s.lobbies, id)
		}
	}
	s.assignments[tournamentID] = make(map[uuid.UUID]uuid.UUID)
	s.insertLocked(tournamentID, lobbies, assignments)
	if cfg, ok := s.leagues[tournamentID]; ok {
		cfg.LobbiesCreated = true
		s.leagues[tournamentID] = cfg
	}
	return nil
}

func (s *MemoryStore) AppendLobbies(_ context.Context, tournamentID uuid.UUID, lobbies []models.Lobby, assignments []models.TeamAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.assignments[tournamentID] == nil {
		s.assignments[tournamentID] = make(map[uuid.UUID]uuid.UUID)
	}
	s.insertLocked(tournamentID, lobbies, assignments)
	return nil
}

// insertLocked writes lobbies and assignments, then recounts current_teams
// for the tournament from the assignment map.
func (s *MemoryStore) insertLocked(tournamentID uuid.UUID, lobbies []models.Lobby, assignments []models.TeamAssignment) {
	for _, l := range lobbies {
		s.lobbies[l.ID] = copyLobby(l)
	}
	for _, a := range assignments {
		if a.LobbyID == nil {
			delete(s.assignments[tournamentID], a.TeamID)
			continue
		}
		s.assignments[tournamentID][a.TeamID] = *a.LobbyID
	}
	counts := make(map[uuid.UUID]int)
	for _, lobbyID := range s.assignments[tournamentID] {
		counts[lobbyID]++
	}
	for id, l := range s.lobbies {
		if l.TournamentID == tournamentID {
			l.CurrentTeams = counts[id]
			s.lobbies[id] = l
		}
	}
}

func (s *MemoryStore) SetCredentials(_ context.Context, lobbyID uuid.UUID, roomID, roomPassword string) (models.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[lobbyID]
	if !ok {
		return models.Lobby{}, apperr.New(apperr.NotFound, "lobby %s not found", lobbyID)
	}
	l.RoomID = &roomID
	l.RoomPassword = &roomPassword
	l.CredentialsPublished = false
	s.lobbies[lobbyID] = l
	return copyLobby(l), nil
}

func (s *MemoryStore) MarkCredentialsPublished(_ context.Context, lobbyID uuid.UUID) (models.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[lobbyID]
	if !ok {
		return models.Lobby{}, apperr.New(apperr.NotFound, "lobby %s not found", lobbyID)
	}
	if !l.HasCredentials() {
		return models.Lobby{}, apperr.New(apperr.CredentialsIncomplete,
			"set the room ID and password for lobby %d before publishing", l.LobbyNumber)
	}
	l.CredentialsPublished = true
	s.lobbies[lobbyID] = l
	return copyLobby(l), nil
}

func (s *MemoryStore) SetLobbyStatus(_ context.Context, lobbyID uuid.UUID, status models.LobbyStatus) (models.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[lobbyID]
	if !ok {
		return models.Lobby{}, apperr.New(apperr.NotFound, "lobby %s not found", lobbyID)
	}
	l.Status = status
	s.lobbies[lobbyID] = l
	return copyLobby(l), nil
}

func (s *MemoryStore) CreateMessage(_ context.Context, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ID] = msg
	return nil
}

func (s *MemoryStore) GetMessage(_ context.Context, messageID uuid.UUID) (models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return models.Message{}, apperr.New(apperr.NotFound, "message %s not found", messageID)
	}
	return msg, nil
}

func (s *MemoryStore) ListMessages(_ context.Context, tournamentID uuid.UUID) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Message
	for _, msg := range s.messages {
		if msg.TournamentID == tournamentID {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) DeleteIfSender(_ context.Context, messageID, senderID uuid.UUID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok || msg.SenderID != senderID || !msg.DeleteWindowOpen(now) {
		return false, nil
	}
	delete(s.messages, messageID)
	return true, nil
}

func copyLobby(l models.Lobby) models.Lobby {
	if l.RoomID != nil {
		v := *l.RoomID
		l.RoomID = &v
	}
	if l.RoomPassword != nil {
		v := *l.RoomPassword
		l.RoomPassword = &v
	}
	return l
}
