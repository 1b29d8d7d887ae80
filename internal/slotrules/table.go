// internal/slotrules/table.go
package slotrules

import (
	"sort"
	"strings"
)

// Rule constrains the total slot count of a (game, mode) tournament.
type Rule struct {
	Game          string `json:"game"`
	Mode          string `json:"mode"`
	Multiple      int    `json:"multiple"`
	MinSlots      int    `json:"min_slots"`
	MaxSlots      int    `json:"max_slots"`
	TeamsPerLobby int    `json:"teams_per_lobby"`
}

type ruleKey struct {
	game string
	mode string
}

// Table is immutable reference data. Game aliases are folded into their
// canonical id when the table is built, so lookups never compare alias lists.
type Table struct {
	rules   map[ruleKey]Rule
	aliases map[string]string
}

// NewTable builds a Table. aliases maps an alternative game id onto a
// canonical one used in rules.
func NewTable(rules []Rule, aliases map[string]string) *Table {
	t := &Table{
		rules:   make(map[ruleKey]Rule, len(rules)),
		aliases: make(map[string]string, len(aliases)),
	}
	for alias, canonical := range aliases {
		t.aliases[normalize(alias)] = normalize(canonical)
	}
	for _, r := range rules {
		r.Game = normalize(r.Game)
		r.Mode = normalize(r.Mode)
		t.rules[ruleKey{r.Game, r.Mode}] = r
	}
	return t
}

// CanonicalGame resolves aliases ("pubg" -> "bgmi").
func (t *Table) CanonicalGame(game string) string {
	g := normalize(game)
	if c, ok := t.aliases[g]; ok {
		return c
	}
	return g
}

// Lookup finds the rule for (game, mode), resolving game aliases.
func (t *Table) Lookup(game, mode string) (Rule, bool) {
	r, ok := t.rules[ruleKey{t.CanonicalGame(game), normalize(mode)}]
	return r, ok
}

// Rules lists every rule ordered by game then slot multiple.
func (t *Table) Rules() []Rule {
	out := make([]Rule, 0, len(t.rules))
	for _, r := range t.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Game != out[j].Game {
			return out[i].Game < out[j].Game
		}
		return out[i].Multiple > out[j].Multiple
	})
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// modeCapacity is the fixed teams-per-lobby table used outside league mode.
var modeCapacity = map[string]int{
	"solo":  48,
	"duo":   24,
	"squad": 12,
}

// ModeCapacity returns the teams-per-lobby for a plain (non-league) mode.
func ModeCapacity(mode string) (int, bool) {
	c, ok := modeCapacity[normalize(mode)]
	return c, ok
}

// ModeName is the display name of a mode ("squad" -> "Squad").
func ModeName(mode string) string {
	m := normalize(mode)
	if m == "" {
		return m
	}
	return strings.ToUpper(m[:1]) + m[1:]
}

var defaultRules = []Rule{
	{Game: "freefire", Mode: "solo", Multiple: 48, MinSlots: 48, MaxSlots: 4800, TeamsPerLobby: 48},
	{Game: "freefire", Mode: "duo", Multiple: 24, MinSlots: 24, MaxSlots: 2400, TeamsPerLobby: 24},
	{Game: "freefire", Mode: "squad", Multiple: 12, MinSlots: 12, MaxSlots: 1200, TeamsPerLobby: 12},

	{Game: "bgmi", Mode: "solo", Multiple: 100, MinSlots: 100, MaxSlots: 10000, TeamsPerLobby: 100},
	{Game: "bgmi", Mode: "duo", Multiple: 50, MinSlots: 50, MaxSlots: 5000, TeamsPerLobby: 50},
	{Game: "bgmi", Mode: "squad", Multiple: 25, MinSlots: 25, MaxSlots: 2500, TeamsPerLobby: 25},

	{Game: "codm", Mode: "solo", Multiple: 100, MinSlots: 100, MaxSlots: 5000, TeamsPerLobby: 100},
	{Game: "codm", Mode: "duo", Multiple: 50, MinSlots: 50, MaxSlots: 2500, TeamsPerLobby: 50},
	{Game: "codm", Mode: "squad", Multiple: 25, MinSlots: 25, MaxSlots: 1250, TeamsPerLobby: 25},
}

var defaultAliases = map[string]string{
	"pubg":        "bgmi",
	"pubgm":       "bgmi",
	"pubg-mobile": "bgmi",
	"ff":          "freefire",
	"free-fire":   "freefire",
	"ffmax":       "freefire",
	"cod-mobile":  "codm",
}

// Default is the built-in catalog.
var Default = NewTable(defaultRules, defaultAliases)
