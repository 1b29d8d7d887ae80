// internal/slotrules/validate.go
package slotrules

import (
	"github.com/jason-s-yu/arena/internal/apperr"
)

// Result is the outcome of validating a proposed slot count. LobbyCount and
// TeamsPerLobby are only set when Valid is true.
type Result struct {
	Valid         bool        `json:"valid"`
	Kind          apperr.Kind `json:"error,omitempty"`
	Reason        string      `json:"reason,omitempty"`
	LobbyCount    int         `json:"lobby_count,omitempty"`
	TeamsPerLobby int         `json:"teams_per_lobby,omitempty"`
}

// Err returns the result as a domain error, or nil when valid.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return apperr.New(r.Kind, "%s", r.Reason)
}

func invalid(err *apperr.Error) Result {
	return Result{Kind: err.Kind, Reason: err.Message}
}

// Validate checks totalSlots against the rule for (game, mode). It has no
// side effects and is safe to call on every keystroke of the setup form.
func (t *Table) Validate(game, mode string, totalSlots int) Result {
	rule, ok := t.Lookup(game, mode)
	if !ok {
		return invalid(apperr.New(apperr.UnknownGameMode,
			"%s mode is not available for game %q", ModeName(mode), game))
	}
	if totalSlots%rule.Multiple != 0 {
		return invalid(apperr.New(apperr.NotAMultiple,
			"%d is not a valid slot count for %s mode, must be a multiple of %d",
			totalSlots, ModeName(rule.Mode), rule.Multiple))
	}
	if totalSlots < rule.MinSlots || totalSlots > rule.MaxSlots {
		return invalid(apperr.New(apperr.OutOfRange,
			"%d is not a valid slot count for %s mode, must be between %d and %d",
			totalSlots, ModeName(rule.Mode), rule.MinSlots, rule.MaxSlots))
	}
	return Result{
		Valid:         true,
		TeamsPerLobby: rule.TeamsPerLobby,
		LobbyCount:    totalSlots / rule.TeamsPerLobby,
	}
}
