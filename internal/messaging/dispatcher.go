// internal/messaging/dispatcher.go
package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/apperr"
	"github.com/jason-s-yu/arena/internal/models"
	"github.com/jason-s-yu/arena/internal/notify"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultDeleteWindow is how long a sender may take a message back.
	DefaultDeleteWindow = 15 * time.Minute
	// MaxContentLength is counted in characters, not bytes.
	MaxContentLength = 2000
)

// Store persists messages. DeleteIfSender removes the row only when sender
// matches and now is before deletable_until, reporting whether it did.
type Store interface {
	CreateMessage(ctx context.Context, msg models.Message) error
	GetMessage(ctx context.Context, messageID uuid.UUID) (models.Message, error)
	ListMessages(ctx context.Context, tournamentID uuid.UUID) ([]models.Message, error)
	DeleteIfSender(ctx context.Context, messageID, senderID uuid.UUID, now time.Time) (bool, error)
}

// RegistrationStore is the external source of registered teams.
type RegistrationStore interface {
	GetRegisteredTeams(ctx context.Context, tournamentID uuid.UUID) ([]models.Team, error)
}

// LobbyDirectory resolves the members of a lobby within a tournament.
type LobbyDirectory interface {
	LobbyMembers(ctx context.Context, tournamentID, lobbyID uuid.UUID) ([]uuid.UUID, error)
}

// Notifier delivers a payload to users.
type Notifier interface {
	Deliver(ctx context.Context, userIDs []uuid.UUID, payload notify.Payload) (int, error)
}

// Dispatcher sends scoped operator messages and enforces the delete window.
type Dispatcher struct {
	store         Store
	registrations RegistrationStore
	lobbies       LobbyDirectory
	notifier      Notifier
	window        time.Duration
	logger        logrus.FieldLogger

	Now func() time.Time
}

func NewDispatcher(store Store, registrations RegistrationStore, lobbies LobbyDirectory, notifier Notifier, window time.Duration, logger logrus.FieldLogger) *Dispatcher {
	if window <= 0 {
		window = DefaultDeleteWindow
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Dispatcher{
		store:         store,
		registrations: registrations,
		lobbies:       lobbies,
		notifier:      notifier,
		window:        window,
		logger:        logger,
		Now:           time.Now,
	}
}

func persistence(err error, what string) error {
	if err == nil || apperr.KindOf(err) != "" {
		return err
	}
	return apperr.Wrap(apperr.PersistenceFailure, err, "%s", what)
}

// Sent is the result of Send.
type Sent struct {
	Message        models.Message `json:"message"`
	RecipientCount int            `json:"recipient_count"`
	Delivered      int            `json:"delivered"`
}

// audience resolves scope to user ids. Every scope variant is handled here;
// a new variant fails loudly instead of reaching nobody.
func (d *Dispatcher) audience(ctx context.Context, tournamentID uuid.UUID, scope models.RecipientScope) ([]uuid.UUID, error) {
	switch s := scope.(type) {
	case models.GlobalScope:
		teams, err := d.registrations.GetRegisteredTeams(ctx, tournamentID)
		if err != nil {
			return nil, persistence(err, "could not load registered teams")
		}
		return models.MemberIDs(teams), nil
	case models.LobbyScope:
		members, err := d.lobbies.LobbyMembers(ctx, tournamentID, s.LobbyID)
		if apperr.IsKind(err, apperr.NotFound) {
			return nil, apperr.New(apperr.InvalidRecipientScope, "lobby %s does not exist in this tournament", s.LobbyID)
		}
		if err != nil {
			return nil, persistence(err, "could not load lobby members")
		}
		return members, nil
	case models.TeamScope:
		teams, err := d.registrations.GetRegisteredTeams(ctx, tournamentID)
		if err != nil {
			return nil, persistence(err, "could not load registered teams")
		}
		for _, t := range teams {
			if t.ID == s.TeamID {
				return models.MemberIDs([]models.Team{t}), nil
			}
		}
		return nil, apperr.New(apperr.InvalidRecipientScope, "team %s is not registered for this tournament", s.TeamID)
	default:
		return nil, apperr.New(apperr.InvalidRecipientScope, "unsupported recipient scope %T", scope)
	}
}

// Send validates and stores a message, then pushes it to its audience.
// Delivery failures are logged and reflected in Delivered; the message
// stays stored.
func (d *Dispatcher) Send(ctx context.Context, tournamentID, senderID uuid.UUID, scope models.RecipientScope, content string) (Sent, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Sent{}, apperr.New(apperr.InvalidMessage, "message content cannot be empty")
	}
	if n := utf8.RuneCountInString(content); n > MaxContentLength {
		return Sent{}, apperr.New(apperr.InvalidMessage, "message is %d characters long, the limit is %d", n, MaxContentLength)
	}
	if scope == nil {
		return Sent{}, apperr.New(apperr.InvalidRecipientScope, "a message needs a recipient scope")
	}

	recipients, err := d.audience(ctx, tournamentID, scope)
	if err != nil {
		return Sent{}, err
	}

	now := d.Now().UTC()
	msg := models.Message{
		ID:             uuid.New(),
		TournamentID:   tournamentID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      now,
		DeletableUntil: now.Add(d.window),
	}
	msg.SetScope(scope)
	if err := d.store.CreateMessage(ctx, msg); err != nil {
		return Sent{}, persistence(err, "could not save message")
	}

	out := Sent{Message: msg, RecipientCount: len(recipients)}
	fields := logrus.Fields{
		"tournament": tournamentID,
		"message":    msg.ID,
		"scope":      msg.RecipientType,
		"recipients": len(recipients),
	}
	if len(recipients) > 0 && d.notifier != nil {
		n, err := d.notifier.Deliver(ctx, recipients, notify.Payload{
			Type:         notify.EventMessage,
			TournamentID: tournamentID,
			Data:         msg,
			SentAt:       now,
		})
		out.Delivered = n
		if err != nil {
			d.logger.WithError(err).WithFields(fields).Warn("message delivery incomplete")
		}
	}
	d.logger.WithFields(fields).Info("message sent")
	return out, nil
}

// Delete hard-deletes a message. Only the sender may delete, and only while
// the window that was fixed at creation is still open.
func (d *Dispatcher) Delete(ctx context.Context, messageID, requesterID uuid.UUID) error {
	msg, err := d.store.GetMessage(ctx, messageID)
	if err != nil {
		return persistence(err, "could not load message")
	}
	if msg.SenderID != requesterID {
		return apperr.New(apperr.NotAuthorized, "only the sender can delete this message")
	}
	now := d.Now()
	if !msg.DeleteWindowOpen(now) {
		return apperr.New(apperr.MessageNotDeletable,
			"messages can only be deleted within %s of sending", formatWindow(d.window))
	}

	deleted, err := d.store.DeleteIfSender(ctx, messageID, requesterID, now)
	if err != nil {
		return persistence(err, "could not delete message")
	}
	if !deleted {
		// the window closed or another request won between read and delete
		return apperr.New(apperr.MessageNotDeletable, "the message can no longer be deleted")
	}

	d.logger.WithFields(logrus.Fields{
		"tournament": msg.TournamentID,
		"message":    msg.ID,
	}).Info("message deleted")

	if d.notifier == nil {
		return nil
	}
	scope, err := msg.Scope()
	if err != nil {
		return nil
	}
	recipients, err := d.audience(ctx, msg.TournamentID, scope)
	if err != nil || len(recipients) == 0 {
		return nil
	}
	if _, err := d.notifier.Deliver(ctx, recipients, notify.Payload{
		Type:         notify.EventMessageDeleted,
		TournamentID: msg.TournamentID,
		Data:         map[string]uuid.UUID{"message_id": msg.ID},
		SentAt:       now.UTC(),
	}); err != nil {
		d.logger.WithError(err).WithField("message", msg.ID).Warn("message deletion notice failed")
	}
	return nil
}

// Listed is a message annotated for one viewer.
type Listed struct {
	models.Message
	CanDelete              bool `json:"can_delete"`
	DeleteSecondsRemaining int  `json:"delete_seconds_remaining"`
}

// List returns the tournament's messages, newest first, annotated with
// whether viewerID may still delete each one.
func (d *Dispatcher) List(ctx context.Context, tournamentID, viewerID uuid.UUID) ([]Listed, error) {
	msgs, err := d.store.ListMessages(ctx, tournamentID)
	if err != nil {
		return nil, persistence(err, "could not load messages")
	}
	now := d.Now()
	out := make([]Listed, len(msgs))
	for i, msg := range msgs {
		out[i] = Listed{Message: msg}
		if msg.SenderID == viewerID && msg.DeleteWindowOpen(now) {
			out[i].CanDelete = true
			out[i].DeleteSecondsRemaining = int(msg.DeletableUntil.Sub(now) / time.Second)
		}
	}
	return out, nil
}

func formatWindow(w time.Duration) string {
	if w%time.Minute == 0 {
		m := int(w / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	return w.String()
}
