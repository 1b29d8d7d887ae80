// internal/handlers/messages.go
package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/messaging"
	"github.com/jason-s-yu/arena/internal/models"
	"github.com/sirupsen/logrus"
)

type sendMessageRequest struct {
	RecipientType    string     `json:"recipient_type"`
	RecipientLobbyID *uuid.UUID `json:"recipient_lobby_id"`
	RecipientTeamID  *uuid.UUID `json:"recipient_team_id"`
	Content          string     `json:"content"`
}

func SendMessageHandler(d *messaging.Dispatcher, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, err := uuidParam(r, "tournamentID")
		if err != nil {
			writeError(w, logger, err)
			return
		}
		uid, err := requestUser(r)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		var req sendMessageRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, logger, err)
			return
		}
		scope, err := models.ParseScope(req.RecipientType, req.RecipientLobbyID, req.RecipientTeamID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		sent, err := d.Send(r.Context(), tid, uid, scope, req.Content)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, sent)
	}
}

func ListMessagesHandler(d *messaging.Dispatcher, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, err := uuidParam(r, "tournamentID")
		if err != nil {
			writeError(w, logger, err)
			return
		}
		uid, err := requestUser(r)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		msgs, err := d.List(r.Context(), tid, uid)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
	}
}

func DeleteMessageHandler(d *messaging.Dispatcher, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mid, err := uuidParam(r, "messageID")
		if err != nil {
			writeError(w, logger, err)
			return
		}
		uid, err := requestUser(r)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if err := d.Delete(r.Context(), mid, uid); err != nil {
			writeError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
