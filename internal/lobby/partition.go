// internal/lobby/partition.go
package lobby

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
)

// LobbyCount is ceil(totalTeams / teamsPerLobby).
func LobbyCount(totalTeams, teamsPerLobby int) int {
	if totalTeams <= 0 || teamsPerLobby <= 0 {
		return 0
	}
	return (totalTeams + teamsPerLobby - 1) / teamsPerLobby
}

// ChunkSizes splits total into n sizes that differ by at most one, larger
// chunks first.
func ChunkSizes(total, n int) []int {
	if n <= 0 {
		return nil
	}
	sizes := make([]int, n)
	base, extra := total/n, total%n
	for i := range sizes {
		sizes[i] = base
		if i < extra {
			sizes[i]++
		}
	}
	return sizes
}

// Partition shuffles teamIDs uniformly (Fisher-Yates via rand.Shuffle) and
// cuts the result into LobbyCount contiguous chunks of near-equal size. No
// chunk exceeds teamsPerLobby. The input slice is not modified.
func Partition(teamIDs []uuid.UUID, teamsPerLobby int, rng *rand.Rand) [][]uuid.UUID {
	n := LobbyCount(len(teamIDs), teamsPerLobby)
	if n == 0 {
		return nil
	}
	shuffled := make([]uuid.UUID, len(teamIDs))
	copy(shuffled, teamIDs)
	shuffle(rng, shuffled)

	chunks := make([][]uuid.UUID, 0, n)
	start := 0
	for _, size := range ChunkSizes(len(shuffled), n) {
		chunks = append(chunks, shuffled[start:start+size])
		start += size
	}
	return chunks
}

func shuffle(rng *rand.Rand, ids []uuid.UUID) {
	swap := func(i, j int) { ids[i], ids[j] = ids[j], ids[i] }
	if rng == nil {
		rand.Shuffle(len(ids), swap)
		return
	}
	rng.Shuffle(len(ids), swap)
}

// DistributionPattern describes lobby sizes for the operator, e.g.
// "10 teams per lobby" or "9-10 teams per lobby".
func DistributionPattern(sizes []int) string {
	if len(sizes) == 0 {
		return "no lobbies"
	}
	lo, hi := sizes[0], sizes[0]
	for _, s := range sizes[1:] {
		lo = min(lo, s)
		hi = max(hi, s)
	}
	if lo == hi {
		if lo == 1 {
			return "1 team per lobby"
		}
		return fmt.Sprintf("%d teams per lobby", lo)
	}
	return fmt.Sprintf("%d-%d teams per lobby", lo, hi)
}
