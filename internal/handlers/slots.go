// internal/handlers/slots.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/jason-s-yu/arena/internal/apperr"
	"github.com/jason-s-yu/arena/internal/slotrules"
	"github.com/sirupsen/logrus"
)

type validateResponse struct {
	Valid         bool        `json:"valid"`
	Error         apperr.Kind `json:"error,omitempty"`
	Message       string      `json:"message,omitempty"`
	LobbyCount    int         `json:"lobby_count,omitempty"`
	TeamsPerLobby int         `json:"teams_per_lobby,omitempty"`
}

// ValidateSlotsHandler answers whether totalSlots is allowed for a game
// and mode. An invalid count is a normal 200 answer, not an error.
func ValidateSlotsHandler(rules *slotrules.Table, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		total, err := strconv.Atoi(q.Get("totalSlots"))
		if err != nil {
			writeError(w, logger, apperr.New(apperr.InvalidArgument, "totalSlots must be a whole number"))
			return
		}
		res := rules.Validate(q.Get("game"), q.Get("mode"), total)
		writeJSON(w, http.StatusOK, validateResponse{
			Valid:         res.Valid,
			Error:         res.Kind,
			Message:       res.Reason,
			LobbyCount:    res.LobbyCount,
			TeamsPerLobby: res.TeamsPerLobby,
		})
	}
}
