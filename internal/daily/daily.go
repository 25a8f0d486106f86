// internal/daily/daily.go
//
// Daily board: every player gets the same layout on a given UTC day.
// The deck builder is seeded with HMAC-SHA256(salt, YYYY-MM-DD), so the layout
// cannot be guessed without the salt but is stable for the whole day.

package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
	"time"

	"github.com/robalobadob/pairs/apps/go-server/internal/deck"
	"github.com/robalobadob/pairs/apps/go-server/internal/game"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Seed returns a deterministic seed for a date using HMAC(salt, YYYY-MM-DD).
func Seed(date time.Time, salt string) int64 {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(DateKey(date)))
	sum := h.Sum(nil)
	// first 8 bytes of the MAC
	return int64(binary.BigEndian.Uint64(sum[:8]))
}

// Builder returns a deck builder that lays out the day's board.
// Each call starts a fresh random stream, so the first board of every daily
// session is identical.
func Builder(alphabet []game.Symbol, date time.Time, salt string) (*deck.Builder, error) {
	return deck.NewBuilder(alphabet, rand.New(rand.NewSource(Seed(date, salt))))
}
