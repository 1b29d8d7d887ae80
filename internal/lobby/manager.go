// internal/lobby/manager.go
package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/apperr"
	"github.com/jason-s-yu/arena/internal/cache"
	"github.com/jason-s-yu/arena/internal/models"
	"github.com/jason-s-yu/arena/internal/notify"
	"github.com/jason-s-yu/arena/internal/slotrules"
	"github.com/sirupsen/logrus"
)

// Store persists lobbies, team assignments and league configs.
// ReplaceLobbies and AppendLobbies must be atomic. AppendLobbies inserts the
// new lobbies, upserts the assignments and recounts current_teams of every
// lobby an assignment touches. ReplaceLobbies marks an existing league
// config as lobbies_created. GetLeague returns nil, nil when league mode
// is off.
type Store interface {
	GetLeague(ctx context.Context, tournamentID uuid.UUID) (*models.LeagueConfig, error)
	SaveLeague(ctx context.Context, cfg models.LeagueConfig) error

	ListLobbies(ctx context.Context, tournamentID uuid.UUID) ([]models.Lobby, error)
	GetLobby(ctx context.Context, lobbyID uuid.UUID) (models.Lobby, error)
	ListAssignments(ctx context.Context, tournamentID uuid.UUID) ([]models.TeamAssignment, error)
	ListLobbyTeamIDs(ctx context.Context, lobbyID uuid.UUID) ([]uuid.UUID, error)

	ReplaceLobbies(ctx context.Context, tournamentID uuid.UUID, lobbies []models.Lobby, assignments []models.TeamAssignment) error
	AppendLobbies(ctx context.Context, tournamentID uuid.UUID, lobbies []models.Lobby, assignments []models.TeamAssignment) error

	SetCredentials(ctx context.Context, lobbyID uuid.UUID, roomID, roomPassword string) (models.Lobby, error)
	MarkCredentialsPublished(ctx context.Context, lobbyID uuid.UUID) (models.Lobby, error)
	SetLobbyStatus(ctx context.Context, lobbyID uuid.UUID, status models.LobbyStatus) (models.Lobby, error)
}

// RegistrationStore is the external source of registered teams.
type RegistrationStore interface {
	GetRegisteredTeams(ctx context.Context, tournamentID uuid.UUID) ([]models.Team, error)
}

// TournamentReader is the external source of a tournament's game and mode.
type TournamentReader interface {
	GetTournament(ctx context.Context, tournamentID uuid.UUID) (models.Tournament, error)
}

// Notifier delivers a payload to users, returning how many accepted it.
type Notifier interface {
	Deliver(ctx context.Context, userIDs []uuid.UUID, payload notify.Payload) (int, error)
}

// Manager allocates teams into lobbies and runs the per-lobby credential
// lifecycle.
type Manager struct {
	store         Store
	registrations RegistrationStore
	tournaments   TournamentReader
	notifier      Notifier
	locks         Locker
	rules         *slotrules.Table
	cache         cache.Cache
	cacheTTL      time.Duration
	logger        logrus.FieldLogger

	// Now and Rand are replaceable in tests.
	Now  func() time.Time
	Rand *rand.Rand
}

// Config carries the collaborators of a Manager. Cache may be nil.
type Config struct {
	Store         Store
	Registrations RegistrationStore
	Tournaments   TournamentReader
	Notifier      Notifier
	Locks         Locker
	Rules         *slotrules.Table
	Cache         cache.Cache
	CacheTTL      time.Duration
	Logger        logrus.FieldLogger
}

func NewManager(cfg Config) *Manager {
	m := &Manager{
		store:         cfg.Store,
		registrations: cfg.Registrations,
		tournaments:   cfg.Tournaments,
		notifier:      cfg.Notifier,
		locks:         cfg.Locks,
		rules:         cfg.Rules,
		cache:         cfg.Cache,
		cacheTTL:      cfg.CacheTTL,
		logger:        cfg.Logger,
		Now:           time.Now,
	}
	if m.locks == nil {
		m.locks = NewLocalLocker()
	}
	if m.rules == nil {
		m.rules = slotrules.Default
	}
	if m.logger == nil {
		m.logger = logrus.StandardLogger()
	}
	return m
}

// Allocation summarises the lobbies of a tournament after an allocation.
type Allocation struct {
	TotalLobbies        int            `json:"total_lobbies"`
	TotalTeams          int            `json:"total_teams"`
	TeamsPerLobby       int            `json:"teams_per_lobby"`
	DistributionPattern string         `json:"distribution_pattern"`
	Lobbies             []models.Lobby `json:"lobbies"`

	// Set by GrowAllocate when teams join lobbies whose credentials were
	// already published.
	CredentialsSent int    `json:"credentials_sent,omitempty"`
	DeliveryError   string `json:"delivery_error,omitempty"`
}

// persistence turns an unclassified store error into PersistenceFailure;
// domain errors pass through untouched.
func persistence(err error, what string) error {
	if err == nil {
		return nil
	}
	if apperr.KindOf(err) != "" {
		return err
	}
	return apperr.Wrap(apperr.PersistenceFailure, err, "%s", what)
}

func lobbiesCacheKey(tournamentID uuid.UUID) string {
	return "lobbies:" + tournamentID.String()
}

func allocationLockKey(tournamentID uuid.UUID) string {
	return "allocate:" + tournamentID.String()
}

func (m *Manager) invalidate(ctx context.Context, tournamentID uuid.UUID) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Invalidate(ctx, lobbiesCacheKey(tournamentID)); err != nil {
		m.logger.WithError(err).WithField("tournament", tournamentID).Warn("lobby cache invalidation failed")
	}
}

// EnableLeague validates totalSlots for (game, mode) and stores the league
// config. It is refused once lobbies were created from the config.
func (m *Manager) EnableLeague(ctx context.Context, tournamentID uuid.UUID, game, mode string, totalSlots int) (models.LeagueConfig, error) {
	if err := m.rules.Validate(game, mode, totalSlots).Err(); err != nil {
		return models.LeagueConfig{}, err
	}
	existing, err := m.store.GetLeague(ctx, tournamentID)
	if err != nil && !apperr.IsKind(err, apperr.NotFound) {
		return models.LeagueConfig{}, persistence(err, "could not load league settings")
	}
	if existing != nil && existing.LobbiesCreated {
		return models.LeagueConfig{}, apperr.New(apperr.LeagueLocked,
			"league slots cannot change once lobbies have been created from them")
	}
	rule, _ := m.rules.Lookup(game, mode)
	cfg := models.LeagueConfig{
		TournamentID: tournamentID,
		Game:         rule.Game,
		Mode:         rule.Mode,
		TotalSlots:   totalSlots,
		CreatedAt:    m.Now().UTC(),
	}
	if err := m.store.SaveLeague(ctx, cfg); err != nil {
		return models.LeagueConfig{}, persistence(err, "could not save league settings")
	}
	return cfg, nil
}

// GetLeague returns the league config, or a NotFound error.
func (m *Manager) GetLeague(ctx context.Context, tournamentID uuid.UUID) (models.LeagueConfig, error) {
	cfg, err := m.store.GetLeague(ctx, tournamentID)
	if err != nil {
		return models.LeagueConfig{}, persistence(err, "could not load league settings")
	}
	if cfg == nil {
		return models.LeagueConfig{}, apperr.New(apperr.NotFound, "league mode is not enabled for this tournament")
	}
	return *cfg, nil
}

// teamsPerLobby uses the league rule when league mode is on, else the
// fixed per-mode table.
func (m *Manager) teamsPerLobby(ctx context.Context, tournamentID uuid.UUID) (int, error) {
	league, err := m.store.GetLeague(ctx, tournamentID)
	if err != nil && !apperr.IsKind(err, apperr.NotFound) {
		return 0, persistence(err, "could not load league settings")
	}
	if league != nil {
		rule, ok := m.rules.Lookup(league.Game, league.Mode)
		if !ok {
			return 0, apperr.New(apperr.UnknownGameMode, "%s mode is not available for game %q",
				slotrules.ModeName(league.Mode), league.Game)
		}
		return rule.TeamsPerLobby, nil
	}

	t, err := m.tournaments.GetTournament(ctx, tournamentID)
	if err != nil {
		return 0, persistence(err, "could not load tournament")
	}
	capacity, ok := slotrules.ModeCapacity(t.Mode)
	if !ok {
		return 0, apperr.New(apperr.UnknownGameMode, "%s mode has no lobby size", slotrules.ModeName(t.Mode))
	}
	return capacity, nil
}

func (m *Manager) lockTournament(ctx context.Context, tournamentID uuid.UUID) (func(), error) {
	unlock, ok, err := m.locks.TryLock(ctx, allocationLockKey(tournamentID))
	if err != nil {
		return nil, apperr.Wrap(apperr.PersistenceFailure, err, "could not acquire allocation lock")
	}
	if !ok {
		return nil, apperr.New(apperr.AllocationInProgress, "lobby setup is already running for this tournament")
	}
	return unlock, nil
}

// NeedsConfirmation reports whether re-allocating would discard lobbies
// whose credentials were already published.
func (m *Manager) NeedsConfirmation(ctx context.Context, tournamentID uuid.UUID) (bool, error) {
	lobbies, err := m.store.ListLobbies(ctx, tournamentID)
	if err != nil {
		return false, persistence(err, "could not load lobbies")
	}
	for _, l := range lobbies {
		if l.CredentialsPublished {
			return true, nil
		}
	}
	return false, nil
}

// ResetAndAllocate destroys every lobby and assignment of the tournament and
// partitions the currently registered teams into fresh, shuffled lobbies.
// Two calls for the same tournament never overlap.
func (m *Manager) ResetAndAllocate(ctx context.Context, tournamentID uuid.UUID) (Allocation, error) {
	unlock, err := m.lockTournament(ctx, tournamentID)
	if err != nil {
		return Allocation{}, err
	}
	defer unlock()

	teams, err := m.registrations.GetRegisteredTeams(ctx, tournamentID)
	if err != nil {
		return Allocation{}, persistence(err, "could not load registered teams")
	}
	if len(teams) == 0 {
		return Allocation{}, apperr.New(apperr.NoTeamsRegistered, "no teams are registered for this tournament")
	}

	perLobby, err := m.teamsPerLobby(ctx, tournamentID)
	if err != nil {
		return Allocation{}, err
	}

	ids := make([]uuid.UUID, len(teams))
	for i, t := range teams {
		ids[i] = t.ID
	}
	chunks := Partition(ids, perLobby, m.Rand)

	now := m.Now().UTC()
	lobbies := make([]models.Lobby, len(chunks))
	var assignments []models.TeamAssignment
	for i, chunk := range chunks {
		lobbies[i] = models.Lobby{
			ID:           uuid.New(),
			TournamentID: tournamentID,
			LobbyNumber:  i + 1,
			MaxTeams:     perLobby,
			CurrentTeams: len(chunk),
			Status:       models.LobbyPending,
			CreatedAt:    now,
		}
		lobbyID := lobbies[i].ID
		for _, teamID := range chunk {
			assignments = append(assignments, models.TeamAssignment{TeamID: teamID, LobbyID: &lobbyID})
		}
	}

	if err := m.store.ReplaceLobbies(ctx, tournamentID, lobbies, assignments); err != nil {
		return Allocation{}, persistence(err, "could not save lobbies")
	}
	m.invalidate(ctx, tournamentID)

	sizes := make([]int, len(lobbies))
	for i, l := range lobbies {
		sizes[i] = l.CurrentTeams
	}
	alloc := Allocation{
		TotalLobbies:        len(lobbies),
		TotalTeams:          len(teams),
		TeamsPerLobby:       perLobby,
		DistributionPattern: DistributionPattern(sizes),
		Lobbies:             lobbies,
	}
	m.logger.WithFields(logrus.Fields{
		"tournament": tournamentID,
		"lobbies":    alloc.TotalLobbies,
		"teams":      alloc.TotalTeams,
		"pattern":    alloc.DistributionPattern,
	}).Info("lobbies reset and allocated")

	m.announceAssignments(ctx, tournamentID, teams, lobbies, assignments)
	return alloc, nil
}

// GrowAllocate places registered teams that have no lobby yet without
// touching existing assignments or credentials. Existing lobbies with room
// are filled least-occupied first; the rest go to new lobbies numbered
// after the current last one.
func (m *Manager) GrowAllocate(ctx context.Context, tournamentID uuid.UUID) (Allocation, error) {
	unlock, err := m.lockTournament(ctx, tournamentID)
	if err != nil {
		return Allocation{}, err
	}
	defer unlock()

	teams, err := m.registrations.GetRegisteredTeams(ctx, tournamentID)
	if err != nil {
		return Allocation{}, persistence(err, "could not load registered teams")
	}
	existing, err := m.store.ListLobbies(ctx, tournamentID)
	if err != nil {
		return Allocation{}, persistence(err, "could not load lobbies")
	}
	current, err := m.store.ListAssignments(ctx, tournamentID)
	if err != nil {
		return Allocation{}, persistence(err, "could not load team assignments")
	}

	placed := make(map[uuid.UUID]bool, len(current))
	for _, a := range current {
		if a.LobbyID != nil {
			placed[a.TeamID] = true
		}
	}
	var pending []uuid.UUID
	for _, t := range teams {
		if !placed[t.ID] {
			pending = append(pending, t.ID)
		}
	}
	if len(pending) == 0 {
		return Allocation{}, apperr.New(apperr.NoTeamsRegistered, "every registered team already has a lobby")
	}
	shuffle(m.Rand, pending)

	var assignments []models.TeamAssignment
	lobbies := append([]models.Lobby(nil), existing...)
	for len(pending) > 0 {
		idx := leastOccupied(lobbies)
		if idx < 0 {
			break
		}
		lobbyID := lobbies[idx].ID
		assignments = append(assignments, models.TeamAssignment{TeamID: pending[0], LobbyID: &lobbyID})
		lobbies[idx].CurrentTeams++
		pending = pending[1:]
	}

	var created []models.Lobby
	if len(pending) > 0 {
		perLobby, err := m.teamsPerLobby(ctx, tournamentID)
		if err != nil {
			return Allocation{}, err
		}
		next := 1
		for _, l := range existing {
			next = max(next, l.LobbyNumber+1)
		}
		now := m.Now().UTC()
		for i, chunk := range Partition(pending, perLobby, m.Rand) {
			l := models.Lobby{
				ID:           uuid.New(),
				TournamentID: tournamentID,
				LobbyNumber:  next + i,
				MaxTeams:     perLobby,
				CurrentTeams: len(chunk),
				Status:       models.LobbyPending,
				CreatedAt:    now,
			}
			created = append(created, l)
			lobbies = append(lobbies, l)
			for _, teamID := range chunk {
				assignments = append(assignments, models.TeamAssignment{TeamID: teamID, LobbyID: &l.ID})
			}
		}
	}

	if len(assignments) > 0 {
		if err := m.store.AppendLobbies(ctx, tournamentID, created, assignments); err != nil {
			return Allocation{}, persistence(err, "could not save lobbies")
		}
		m.invalidate(ctx, tournamentID)
	}

	sizes := make([]int, len(lobbies))
	assigned := 0
	for i, l := range lobbies {
		sizes[i] = l.CurrentTeams
		assigned += l.CurrentTeams
	}
	perLobby := 0
	if len(lobbies) > 0 {
		perLobby = lobbies[len(lobbies)-1].MaxTeams
	}
	m.logger.WithFields(logrus.Fields{
		"tournament": tournamentID,
		"placed":     len(assignments),
		"created":    len(created),
	}).Info("lobbies grown")

	m.announceAssignments(ctx, tournamentID, teams, lobbies, assignments)
	alloc := Allocation{
		TotalLobbies:        len(lobbies),
		TotalTeams:          assigned,
		TeamsPerLobby:       perLobby,
		DistributionPattern: DistributionPattern(sizes),
		Lobbies:             lobbies,
	}
	sent, err := m.forwardCredentials(ctx, teams, existing, assignments)
	alloc.CredentialsSent = sent
	if err != nil {
		alloc.DeliveryError = err.Error()
	}
	return alloc, nil
}

// leastOccupied picks the pending lobby with the fewest teams that still
// has room, lowest lobby number first on ties. -1 means none is left.
func leastOccupied(lobbies []models.Lobby) int {
	best := -1
	for i, l := range lobbies {
		if l.Status != models.LobbyPending || l.CurrentTeams >= l.MaxTeams {
			continue
		}
		if best < 0 || l.CurrentTeams < lobbies[best].CurrentTeams ||
			(l.CurrentTeams == lobbies[best].CurrentTeams && l.LobbyNumber < lobbies[best].LobbyNumber) {
			best = i
		}
	}
	return best
}

// announceAssignments tells each newly placed team's members their lobby
// number. Failures are logged only; the allocation is already committed.
func (m *Manager) announceAssignments(ctx context.Context, tournamentID uuid.UUID, teams []models.Team, lobbies []models.Lobby, assignments []models.TeamAssignment) {
	if m.notifier == nil || len(assignments) == 0 {
		return
	}
	byLobby := membersByLobby(teams, assignments)
	for _, l := range lobbies {
		members := byLobby[l.ID]
		if len(members) == 0 {
			continue
		}
		_, err := m.notifier.Deliver(ctx, members, notify.Payload{
			Type:         notify.EventLobbyAssigned,
			TournamentID: tournamentID,
			Data:         notify.AssignmentData{LobbyID: l.ID, LobbyNumber: l.LobbyNumber},
			SentAt:       m.Now().UTC(),
		})
		if err != nil {
			m.logger.WithError(err).WithFields(logrus.Fields{
				"tournament": tournamentID,
				"lobby":      l.LobbyNumber,
			}).Warn("lobby assignment notification failed")
		}
	}
}

// membersByLobby groups the members of the assigned teams by lobby id.
func membersByLobby(teams []models.Team, assignments []models.TeamAssignment) map[uuid.UUID][]uuid.UUID {
	teamsByID := make(map[uuid.UUID]models.Team, len(teams))
	for _, t := range teams {
		teamsByID[t.ID] = t
	}
	byLobby := make(map[uuid.UUID][]models.Team)
	for _, a := range assignments {
		if a.LobbyID == nil {
			continue
		}
		byLobby[*a.LobbyID] = append(byLobby[*a.LobbyID], teamsByID[a.TeamID])
	}
	out := make(map[uuid.UUID][]uuid.UUID, len(byLobby))
	for id, ts := range byLobby {
		out[id] = models.MemberIDs(ts)
	}
	return out
}

// ListLobbies returns the lobbies of a tournament ordered by lobby number,
// served from the cache while the entry is valid.
func (m *Manager) ListLobbies(ctx context.Context, tournamentID uuid.UUID) ([]models.Lobby, error) {
	key := lobbiesCacheKey(tournamentID)
	if m.cache != nil {
		entry, ok, err := m.cache.Get(ctx, key)
		if err != nil {
			m.logger.WithError(err).Warn("lobby cache read failed")
		} else if ok {
			var lobbies []models.Lobby
			if err := json.Unmarshal(entry.Value, &lobbies); err == nil {
				return lobbies, nil
			}
		}
	}

	// taken before the store read so a write committed in between makes
	// the fill below a no-op
	var (
		gen    int64
		genErr error
	)
	if m.cache != nil {
		gen, genErr = m.cache.Generation(ctx, key)
	}

	lobbies, err := m.store.ListLobbies(ctx, tournamentID)
	if err != nil {
		return nil, persistence(err, "could not load lobbies")
	}
	if m.cache != nil && m.cacheTTL > 0 && genErr == nil {
		if raw, err := json.Marshal(lobbies); err == nil {
			stored, err := m.cache.SetIfGeneration(ctx, key, gen, raw, m.Now().Add(m.cacheTTL))
			if err != nil {
				m.logger.WithError(err).Warn("lobby cache write failed")
			} else if !stored {
				m.logger.WithField("tournament", tournamentID).Debug("lobby cache fill skipped, lobbies changed during read")
			}
		}
	}
	return lobbies, nil
}

// MyLobby is a participant's view of their lobby.
type MyLobby struct {
	TeamID uuid.UUID    `json:"team_id"`
	Lobby  models.Lobby `json:"lobby"`
}

// GetMyLobby finds the lobby of the team userID plays for. The room
// credential is only included once it has been published.
func (m *Manager) GetMyLobby(ctx context.Context, tournamentID, userID uuid.UUID) (MyLobby, error) {
	teams, err := m.registrations.GetRegisteredTeams(ctx, tournamentID)
	if err != nil {
		return MyLobby{}, persistence(err, "could not load registered teams")
	}
	var teamID uuid.UUID
	for _, t := range teams {
		for _, uid := range t.MemberUserIDs {
			if uid == userID {
				teamID = t.ID
			}
		}
	}
	if teamID == uuid.Nil {
		return MyLobby{}, apperr.New(apperr.NotFound, "you are not on a team registered for this tournament")
	}

	assignments, err := m.store.ListAssignments(ctx, tournamentID)
	if err != nil {
		return MyLobby{}, persistence(err, "could not load team assignments")
	}
	for _, a := range assignments {
		if a.TeamID != teamID || a.LobbyID == nil {
			continue
		}
		l, err := m.store.GetLobby(ctx, *a.LobbyID)
		if err != nil {
			return MyLobby{}, persistence(err, "could not load lobby")
		}
		if !l.CredentialsPublished {
			l = l.Redacted()
		}
		return MyLobby{TeamID: teamID, Lobby: l}, nil
	}
	return MyLobby{}, apperr.New(apperr.NotFound, "your team has not been placed in a lobby yet")
}

// SetLobbyStatus moves a lobby between pending, active and completed.
func (m *Manager) SetLobbyStatus(ctx context.Context, lobbyID uuid.UUID, status models.LobbyStatus) (models.Lobby, error) {
	if !status.Valid() {
		return models.Lobby{}, apperr.New(apperr.InvalidArgument, "%q is not a lobby status", status)
	}
	l, err := m.store.SetLobbyStatus(ctx, lobbyID, status)
	if err != nil {
		return models.Lobby{}, persistence(err, "could not update lobby status")
	}
	m.invalidate(ctx, l.TournamentID)
	return l, nil
}

// lobbyMembers resolves the user ids of every team assigned to the lobby.
func (m *Manager) lobbyMembers(ctx context.Context, l models.Lobby) ([]uuid.UUID, int, error) {
	teamIDs, err := m.store.ListLobbyTeamIDs(ctx, l.ID)
	if err != nil {
		return nil, 0, persistence(err, "could not load lobby teams")
	}
	teams, err := m.registrations.GetRegisteredTeams(ctx, l.TournamentID)
	if err != nil {
		return nil, 0, persistence(err, "could not load registered teams")
	}
	inLobby := make(map[uuid.UUID]bool, len(teamIDs))
	for _, id := range teamIDs {
		inLobby[id] = true
	}
	var selected []models.Team
	for _, t := range teams {
		if inLobby[t.ID] {
			selected = append(selected, t)
		}
	}
	return models.MemberIDs(selected), len(selected), nil
}

// LobbyMembers is the exported form used by the message dispatcher.
func (m *Manager) LobbyMembers(ctx context.Context, tournamentID, lobbyID uuid.UUID) ([]uuid.UUID, error) {
	l, err := m.store.GetLobby(ctx, lobbyID)
	if err != nil {
		return nil, persistence(err, "could not load lobby")
	}
	if l.TournamentID != tournamentID {
		return nil, apperr.New(apperr.InvalidRecipientScope, "lobby %s is not part of this tournament", lobbyID)
	}
	members, _, err := m.lobbyMembers(ctx, l)
	return members, err
}

var errNoNotifier = errors.New("no notification gateway configured")

func (m *Manager) deliver(ctx context.Context, userIDs []uuid.UUID, p notify.Payload) (int, error) {
	if m.notifier == nil {
		return 0, errNoNotifier
	}
	n, err := m.notifier.Deliver(ctx, userIDs, p)
	if err != nil {
		return n, fmt.Errorf("deliver %s: %w", p.Type, err)
	}
	return n, nil
}
