package daily

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/pairs/apps/go-server/internal/symbols"
)

func TestDateKeyIsUTC(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	ts := time.Date(2026, 3, 2, 5, 0, 0, 0, loc) // 2026-03-01 19:00 UTC
	assert.Equal(t, "2026-03-01", DateKey(ts))
}

func TestSeedStableWithinDay(t *testing.T) {
	morning := time.Date(2026, 3, 1, 0, 0, 1, 0, time.UTC)
	night := time.Date(2026, 3, 1, 23, 59, 59, 0, time.UTC)
	next := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, Seed(morning, "salt"), Seed(night, "salt"))
	assert.NotEqual(t, Seed(morning, "salt"), Seed(next, "salt"))
	assert.NotEqual(t, Seed(morning, "salt"), Seed(morning, "pepper"))
}

func TestBuilderSameBoardForSameDay(t *testing.T) {
	alphabet, err := symbols.Default()
	require.NoError(t, err)
	day := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)

	b1, err := Builder(alphabet, day, "salt")
	require.NoError(t, err)
	b2, err := Builder(alphabet, day.Add(6*time.Hour), "salt")
	require.NoError(t, err)

	x, err := b1.BuildBoard(4)
	require.NoError(t, err)
	y, err := b2.BuildBoard(4)
	require.NoError(t, err)
	assert.Equal(t, x, y)
}
