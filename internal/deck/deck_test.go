package deck

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/pairs/apps/go-server/internal/game"
)

func alphabet(n int) []game.Symbol {
	out := make([]game.Symbol, n)
	for i := range out {
		out[i] = game.Symbol(fmt.Sprintf("s%02d", i))
	}
	return out
}

func TestShuffleIsPermutation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	in := []int{5, 1, 1, 9, 3, 3, 3, 0}
	orig := append([]int(nil), in...)

	out := Shuffle(rng, in)

	assert.Equal(t, orig, in, "input must not be mutated")
	sortedIn := append([]int(nil), in...)
	sortedOut := append([]int(nil), out...)
	sort.Ints(sortedIn)
	sort.Ints(sortedOut)
	assert.Equal(t, sortedIn, sortedOut)
}

func TestShuffleEmptyAndSingle(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	assert.Empty(t, Shuffle(rng, []string{}))
	assert.Equal(t, []string{"x"}, Shuffle(rng, []string{"x"}))
}

func TestShuffleRoughlyUniform(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const runs = 60000
	counts := map[string]int{}
	for i := 0; i < runs; i++ {
		counts[fmt.Sprint(Shuffle(rng, []int{1, 2, 3}))]++
	}
	require.Len(t, counts, 6, "every permutation of three elements must appear")
	for perm, n := range counts {
		assert.InDelta(t, runs/6, n, runs/60, "permutation %s", perm)
	}
}

func TestPickRandomDistinct(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	pool := alphabet(10)

	picks, err := PickRandom(rng, pool, 6)
	require.NoError(t, err)
	assert.Len(t, picks, 6)

	seen := map[game.Symbol]bool{}
	for _, p := range picks {
		assert.False(t, seen[p], "duplicate pick %s", p)
		assert.Contains(t, pool, p)
		seen[p] = true
	}
	assert.Equal(t, alphabet(10), pool, "pool must not be mutated")
}

func TestPickRandomWholePool(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	picks, err := PickRandom(rng, alphabet(4), 4)
	require.NoError(t, err)
	assert.ElementsMatch(t, alphabet(4), picks)
}

func TestPickRandomErrors(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	_, err := PickRandom(rng, alphabet(3), 4)
	assert.ErrorIs(t, err, game.ErrInvalidArgument)

	_, err = PickRandom(rng, alphabet(3), -1)
	assert.ErrorIs(t, err, game.ErrInvalidArgument)
}

func TestBuildBoardPairs(t *testing.T) {
	b, err := NewBuilder(alphabet(32), rand.New(rand.NewSource(11)))
	require.NoError(t, err)

	for _, d := range []int{2, 4, 6, 8} {
		board, err := b.BuildBoard(d)
		require.NoError(t, err, "dimension %d", d)
		assert.Equal(t, d, board.Dimension)
		require.Len(t, board.Cards, d*d)

		counts := map[game.Symbol]int{}
		for i, c := range board.Cards {
			assert.Equal(t, i, c.Position)
			assert.Equal(t, game.CardHidden, c.State)
			counts[c.Symbol]++
		}
		assert.Len(t, counts, d*d/2)
		for sym, n := range counts {
			assert.Equal(t, 2, n, "symbol %s on %dx%d board", sym, d, d)
		}
	}
}

func TestBuildBoardInvalidDimension(t *testing.T) {
	b, err := NewBuilder(alphabet(32), rand.New(rand.NewSource(11)))
	require.NoError(t, err)

	for _, d := range []int{-2, -1, 0, 1, 3, 5} {
		_, err := b.BuildBoard(d)
		assert.ErrorIs(t, err, game.ErrInvalidDimension, "dimension %d", d)
	}
}

func TestBuildBoardAlphabetTooSmall(t *testing.T) {
	b, err := NewBuilder(alphabet(7), rand.New(rand.NewSource(11)))
	require.NoError(t, err)

	_, err = b.BuildBoard(4)
	assert.ErrorIs(t, err, game.ErrInvalidArgument)
	assert.Equal(t, 2, b.MaxDimension())
}

func TestBuildBoardDeterministicForSeed(t *testing.T) {
	b1, err := NewBuilder(alphabet(10), rand.New(rand.NewSource(99)))
	require.NoError(t, err)
	b2, err := NewBuilder(alphabet(10), rand.New(rand.NewSource(99)))
	require.NoError(t, err)

	x, err := b1.BuildBoard(4)
	require.NoError(t, err)
	y, err := b2.BuildBoard(4)
	require.NoError(t, err)
	assert.Equal(t, x, y)
}

func TestNewBuilderRejectsBadAlphabet(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, err := NewBuilder(nil, rng)
	assert.ErrorIs(t, err, game.ErrInvalidArgument)

	_, err = NewBuilder([]game.Symbol{"a", "b", "a"}, rng)
	assert.ErrorIs(t, err, game.ErrInvalidArgument)

	_, err = NewBuilder([]game.Symbol{"a", ""}, rng)
	assert.ErrorIs(t, err, game.ErrInvalidArgument)

	_, err = NewBuilder(alphabet(2), nil)
	assert.ErrorIs(t, err, game.ErrInvalidArgument)
}

func TestNewRand(t *testing.T) {
	rng, err := NewRand()
	require.NoError(t, err)
	assert.NotNil(t, rng)
}
