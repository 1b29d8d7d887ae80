// internal/models/team.go
package models

import "github.com/google/uuid"

// Team is a registered team as reported by the registration store.
type Team struct {
	ID            uuid.UUID   `json:"team_id"`
	MemberUserIDs []uuid.UUID `json:"member_user_ids"`
}

// Tournament is the slice of tournament data the allocator needs.
type Tournament struct {
	ID   uuid.UUID `json:"id"`
	Game string    `json:"game"`
	Mode string    `json:"mode"`
}

// MemberIDs flattens the members of teams, skipping duplicates.
func MemberIDs(teams []Team) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	for _, t := range teams {
		for _, uid := range t.MemberUserIDs {
			if _, ok := seen[uid]; ok {
				continue
			}
			seen[uid] = struct{}{}
			ids = append(ids, uid)
		}
	}
	return ids
}
