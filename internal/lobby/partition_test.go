package lobby

import (
	"math/rand/v2"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func teamIDs(n int) []uuid.UUID {
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
	}
	return ids
}

func TestPartitionFiftyTeamsIntoTwelves(t *testing.T) {
	chunks := Partition(teamIDs(50), 12, nil)

	require.Len(t, chunks, 5)
	for _, c := range chunks {
		assert.Len(t, c, 10)
	}
	assert.Equal(t, "10 teams per lobby", DistributionPattern(sizesOf(chunks)))
}

func TestPartitionBalancedForAllCounts(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for _, perLobby := range []int{12, 24, 48} {
		for total := 1; total <= 200; total++ {
			ids := teamIDs(total)
			chunks := Partition(ids, perLobby, rng)

			require.Len(t, chunks, LobbyCount(total, perLobby))
			seen := make(map[uuid.UUID]bool, total)
			lo, hi, sum := total, 0, 0
			for _, c := range chunks {
				assert.LessOrEqual(t, len(c), perLobby)
				lo, hi = min(lo, len(c)), max(hi, len(c))
				sum += len(c)
				for _, id := range c {
					require.False(t, seen[id], "team placed twice")
					seen[id] = true
				}
			}
			assert.Equal(t, total, sum)
			assert.LessOrEqualf(t, hi-lo, 1, "total=%d perLobby=%d", total, perLobby)
		}
	}
}

func TestPartitionDoesNotMutateInput(t *testing.T) {
	ids := teamIDs(30)
	orig := append([]uuid.UUID(nil), ids...)

	Partition(ids, 12, rand.New(rand.NewPCG(7, 7)))
	assert.Equal(t, orig, ids)
}

func TestPartitionEmpty(t *testing.T) {
	assert.Nil(t, Partition(nil, 12, nil))
	assert.Equal(t, 0, LobbyCount(10, 0))
}

func TestDistributionPattern(t *testing.T) {
	assert.Equal(t, "9-10 teams per lobby", DistributionPattern([]int{10, 10, 9}))
	assert.Equal(t, "1 team per lobby", DistributionPattern([]int{1}))
	assert.Equal(t, "no lobbies", DistributionPattern(nil))
}

func TestChunkSizes(t *testing.T) {
	assert.Equal(t, []int{9, 9, 8, 8}, ChunkSizes(34, 4))
	assert.Equal(t, []int{12}, ChunkSizes(12, 1))
}

func sizesOf(chunks [][]uuid.UUID) []int {
	out := make([]int, len(chunks))
	for i, c := range chunks {
		out[i] = len(c)
	}
	return out
}
