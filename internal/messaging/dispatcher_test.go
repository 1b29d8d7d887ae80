package messaging

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/apperr"
	"github.com/jason-s-yu/arena/internal/database"
	"github.com/jason-s-yu/arena/internal/models"
	"github.com/jason-s-yu/arena/internal/notify"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockNotifier struct {
	mu       sync.Mutex
	payloads []notify.Payload
	targets  [][]uuid.UUID
	err      error
}

func (mn *mockNotifier) Deliver(_ context.Context, userIDs []uuid.UUID, p notify.Payload) (int, error) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.payloads = append(mn.payloads, p)
	mn.targets = append(mn.targets, append([]uuid.UUID(nil), userIDs...))
	if mn.err != nil {
		return 0, mn.err
	}
	return len(userIDs), nil
}

// fakeLobbies maps lobbies to their tournament and members.
type fakeLobbies struct {
	tournament map[uuid.UUID]uuid.UUID
	members    map[uuid.UUID][]uuid.UUID
}

func (f *fakeLobbies) LobbyMembers(_ context.Context, tournamentID, lobbyID uuid.UUID) ([]uuid.UUID, error) {
	tid, ok := f.tournament[lobbyID]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "lobby %s not found", lobbyID)
	}
	if tid != tournamentID {
		return nil, apperr.New(apperr.InvalidRecipientScope, "lobby %s is not part of this tournament", lobbyID)
	}
	return f.members[lobbyID], nil
}

type fixture struct {
	d            *Dispatcher
	store        *database.MemoryStore
	notifier     *mockNotifier
	lobbies      *fakeLobbies
	now          time.Time
	tournamentID uuid.UUID
	operator     uuid.UUID
	teams        []models.Team
	lobbyID      uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:        database.NewMemoryStore(),
		notifier:     &mockNotifier{},
		now:          time.Date(2026, 5, 10, 18, 0, 0, 0, time.UTC),
		tournamentID: uuid.New(),
		operator:     uuid.New(),
		lobbyID:      uuid.New(),
	}
	for range 3 {
		team := models.Team{ID: uuid.New(), MemberUserIDs: []uuid.UUID{uuid.New(), uuid.New()}}
		f.store.RegisterTeam(f.tournamentID, team)
		f.teams = append(f.teams, team)
	}
	f.lobbies = &fakeLobbies{
		tournament: map[uuid.UUID]uuid.UUID{f.lobbyID: f.tournamentID},
		members:    map[uuid.UUID][]uuid.UUID{f.lobbyID: f.teams[0].MemberUserIDs},
	}
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	f.d = NewDispatcher(f.store, f.store, f.lobbies, f.notifier, 15*time.Minute, logger)
	f.d.Now = func() time.Time { return f.now }
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func TestSendResolvesAudiencePerScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sent, err := f.d.Send(ctx, f.tournamentID, f.operator, models.GlobalScope{}, "check-in closes at 6pm")
	require.NoError(t, err)
	assert.Equal(t, 6, sent.RecipientCount)
	assert.Equal(t, 6, sent.Delivered)
	assert.Equal(t, models.RecipientGlobal, sent.Message.RecipientType)

	sent, err = f.d.Send(ctx, f.tournamentID, f.operator, models.LobbyScope{LobbyID: f.lobbyID}, "lobby 1 starts in 5 minutes")
	require.NoError(t, err)
	assert.Equal(t, 2, sent.RecipientCount)
	require.NotNil(t, sent.Message.RecipientLobbyID)
	assert.Equal(t, f.lobbyID, *sent.Message.RecipientLobbyID)

	sent, err = f.d.Send(ctx, f.tournamentID, f.operator, models.TeamScope{TeamID: f.teams[2].ID}, "please update your roster")
	require.NoError(t, err)
	assert.ElementsMatch(t, f.teams[2].MemberUserIDs, f.notifier.targets[2])
	assert.Equal(t, notify.EventMessage, f.notifier.payloads[2].Type)
}

func TestSendRejectsBadScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.d.Send(ctx, f.tournamentID, f.operator, models.LobbyScope{LobbyID: uuid.New()}, "hi")
	assert.True(t, apperr.IsKind(err, apperr.InvalidRecipientScope))

	_, err = f.d.Send(ctx, uuid.New(), f.operator, models.LobbyScope{LobbyID: f.lobbyID}, "hi")
	assert.True(t, apperr.IsKind(err, apperr.InvalidRecipientScope))

	_, err = f.d.Send(ctx, f.tournamentID, f.operator, models.TeamScope{TeamID: uuid.New()}, "hi")
	assert.True(t, apperr.IsKind(err, apperr.InvalidRecipientScope))

	_, err = f.d.Send(ctx, f.tournamentID, f.operator, nil, "hi")
	assert.True(t, apperr.IsKind(err, apperr.InvalidRecipientScope))

	msgs, err := f.store.ListMessages(ctx, f.tournamentID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSendValidatesContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.d.Send(ctx, f.tournamentID, f.operator, models.GlobalScope{}, "   ")
	assert.True(t, apperr.IsKind(err, apperr.InvalidMessage))

	_, err = f.d.Send(ctx, f.tournamentID, f.operator, models.GlobalScope{}, strings.Repeat("a", MaxContentLength+1))
	assert.True(t, apperr.IsKind(err, apperr.InvalidMessage))

	// the limit counts characters
	_, err = f.d.Send(ctx, f.tournamentID, f.operator, models.GlobalScope{}, strings.Repeat("é", MaxContentLength))
	assert.NoError(t, err)
}

func TestSendKeepsMessageWhenDeliveryFails(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("redis down")

	sent, err := f.d.Send(context.Background(), f.tournamentID, f.operator, models.GlobalScope{}, "hello")
	require.NoError(t, err)
	assert.Zero(t, sent.Delivered)

	_, err = f.store.GetMessage(context.Background(), sent.Message.ID)
	assert.NoError(t, err)
}

func TestDeleteWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.d.Send(ctx, f.tournamentID, f.operator, models.GlobalScope{}, "wrong room id, ignore")
	require.NoError(t, err)
	second, err := f.d.Send(ctx, f.tournamentID, f.operator, models.GlobalScope{}, "good luck")
	require.NoError(t, err)
	assert.Equal(t, f.now.Add(15*time.Minute), first.Message.DeletableUntil)

	f.advance(5 * time.Minute)
	err = f.d.Delete(ctx, first.Message.ID, uuid.New())
	assert.True(t, apperr.IsKind(err, apperr.NotAuthorized))

	f.advance(9 * time.Minute) // +14m
	require.NoError(t, f.d.Delete(ctx, first.Message.ID, f.operator))
	_, err = f.store.GetMessage(ctx, first.Message.ID)
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
	assert.Equal(t, notify.EventMessageDeleted, f.notifier.payloads[len(f.notifier.payloads)-1].Type)

	f.advance(2 * time.Minute) // +16m
	err = f.d.Delete(ctx, second.Message.ID, f.operator)
	assert.True(t, apperr.IsKind(err, apperr.MessageNotDeletable))
	assert.Contains(t, err.Error(), "15 minutes")
}

func TestDeleteAtWindowBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sent, err := f.d.Send(ctx, f.tournamentID, f.operator, models.GlobalScope{}, "x")
	require.NoError(t, err)

	f.advance(15 * time.Minute)
	err = f.d.Delete(ctx, sent.Message.ID, f.operator)
	assert.True(t, apperr.IsKind(err, apperr.MessageNotDeletable))
}

func TestListAnnotatesDeletability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.d.Send(ctx, f.tournamentID, f.operator, models.GlobalScope{}, "older")
	require.NoError(t, err)
	f.advance(10 * time.Minute)
	_, err = f.d.Send(ctx, f.tournamentID, f.operator, models.GlobalScope{}, "newer")
	require.NoError(t, err)
	f.advance(6 * time.Minute)

	listed, err := f.d.List(ctx, f.tournamentID, f.operator)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "newer", listed[0].Content)
	assert.True(t, listed[0].CanDelete)
	assert.Equal(t, 9*60, listed[0].DeleteSecondsRemaining)
	assert.False(t, listed[1].CanDelete)
	assert.Zero(t, listed[1].DeleteSecondsRemaining)

	listed, err = f.d.List(ctx, f.tournamentID, uuid.New())
	require.NoError(t, err)
	assert.False(t, listed[0].CanDelete)
}
