// internal/handlers/lobbies.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/jason-s-yu/arena/internal/apperr"
	"github.com/jason-s-yu/arena/internal/auth"
	"github.com/jason-s-yu/arena/internal/lobby"
	"github.com/jason-s-yu/arena/internal/models"
	"github.com/sirupsen/logrus"
)

type leagueRequest struct {
	Game       string `json:"game"`
	Mode       string `json:"mode"`
	TotalSlots int    `json:"total_slots"`
}

// EnableLeagueHandler turns on league mode with a validated slot count.
func EnableLeagueHandler(m *lobby.Manager, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, err := uuidParam(r, "tournamentID")
		if err != nil {
			writeError(w, logger, err)
			return
		}
		var req leagueRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, logger, err)
			return
		}
		cfg, err := m.EnableLeague(r.Context(), tid, req.Game, req.Mode, req.TotalSlots)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

func GetLeagueHandler(m *lobby.Manager, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, err := uuidParam(r, "tournamentID")
		if err != nil {
			writeError(w, logger, err)
			return
		}
		cfg, err := m.GetLeague(r.Context(), tid)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

// AllocateLobbiesHandler resets and re-allocates every lobby. When any
// lobby already had its credentials published the caller must pass
// ?confirm=true.
func AllocateLobbiesHandler(m *lobby.Manager, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, err := uuidParam(r, "tournamentID")
		if err != nil {
			writeError(w, logger, err)
			return
		}
		confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
		if !confirmed {
			needs, err := m.NeedsConfirmation(r.Context(), tid)
			if err != nil {
				writeError(w, logger, err)
				return
			}
			if needs {
				writeError(w, logger, apperr.New(apperr.ConfirmationRequired,
					"room credentials were already sent to players; resetting discards every lobby, retry with confirm=true"))
				return
			}
		}
		alloc, err := m.ResetAndAllocate(r.Context(), tid)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, alloc)
	}
}

// GrowLobbiesHandler places newly registered teams without a reset.
func GrowLobbiesHandler(m *lobby.Manager, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, err := uuidParam(r, "tournamentID")
		if err != nil {
			writeError(w, logger, err)
			return
		}
		alloc, err := m.GrowAllocate(r.Context(), tid)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, alloc)
	}
}

type lobbyView struct {
	models.Lobby
	Credentials models.CredentialState `json:"credential_state"`
}

func viewOf(l models.Lobby) lobbyView {
	return lobbyView{Lobby: l, Credentials: l.CredentialState()}
}

// participantView hides the room credential of every lobby. Participants
// get their own lobby's published credential from /lobbies/mine.
func participantView(l models.Lobby) lobbyView {
	return lobbyView{Lobby: l.Redacted(), Credentials: l.CredentialState()}
}

// ListLobbiesHandler lists a tournament's lobbies. Only operators see room
// credentials.
func ListLobbiesHandler(m *lobby.Manager, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, err := uuidParam(r, "tournamentID")
		if err != nil {
			writeError(w, logger, err)
			return
		}
		lobbies, err := m.ListLobbies(r.Context(), tid)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		view := participantView
		if auth.IsOperator(r.Context()) {
			view = viewOf
		}
		out := make([]lobbyView, len(lobbies))
		for i, l := range lobbies {
			out[i] = view(l)
		}
		writeJSON(w, http.StatusOK, map[string]any{"lobbies": out})
	}
}

func MyLobbyHandler(m *lobby.Manager, logger logrus.FieldLogger) http.HandlerFunc {
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
		mine, err := m.GetMyLobby(r.Context(), tid, uid)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, mine)
	}
}

type credentialsRequest struct {
	RoomID       string `json:"room_id"`
	RoomPassword string `json:"room_password"`
}

func SetCredentialsHandler(m *lobby.Manager, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lid, err := uuidParam(r, "lobbyID")
		if err != nil {
			writeError(w, logger, err)
			return
		}
		var req credentialsRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, logger, err)
			return
		}
		l, err := m.SetCredentials(r.Context(), lid, req.RoomID, req.RoomPassword)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, viewOf(l))
	}
}

// PublishCredentialsHandler publishes or resends a lobby's credentials.
func PublishCredentialsHandler(m *lobby.Manager, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lid, err := uuidParam(r, "lobbyID")
		if err != nil {
			writeError(w, logger, err)
			return
		}
		report, err := m.Publish(r.Context(), lid)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

type statusRequest struct {
	Status models.LobbyStatus `json:"status"`
}

func SetLobbyStatusHandler(m *lobby.Manager, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lid, err := uuidParam(r, "lobbyID")
		if err != nil {
			writeError(w, logger, err)
			return
		}
		var req statusRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, logger, err)
			return
		}
		l, err := m.SetLobbyStatus(r.Context(), lid, req.Status)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, viewOf(l))
	}
}
