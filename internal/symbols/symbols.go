// internal/symbols/symbols.go
//
// Provides the card alphabet for the deck builder.
//
// Responsibilities:
//   - Load the alphabet from an operator-provided file, or fall back to the
//     embedded default list.
//   - Normalize entries (trim, skip blanks and # comments, drop duplicates
//     keeping first occurrence).
//
// Constraints:
//   • A board of dimension d needs at least d²/2 symbols; the embedded list has 32
//     (enough for 8x8).
//   • The embedded default is parsed once (sync.Once).

package symbols

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/robalobadob/pairs/apps/go-server/internal/game"
)

//go:embed default_symbols.txt
var embeddedSymbols string

// ErrEmpty is returned when a source yields no usable symbols.
var ErrEmpty = errors.New("symbols: alphabet is empty")

var (
	defaultOnce sync.Once
	defaultList []game.Symbol
	defaultErr  error
)

// Default returns the embedded alphabet.
func Default() ([]game.Symbol, error) {
	defaultOnce.Do(func() {
		defaultList, defaultErr = Parse(strings.NewReader(embeddedSymbols))
	})
	out := make([]game.Symbol, len(defaultList))
	copy(out, defaultList)
	return out, defaultErr
}

// Load reads the alphabet from path, or returns Default() when path is empty.
func Load(path string) ([]game.Symbol, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open symbols file: %w", err)
	}
	defer f.Close()
	list, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return list, nil
}

// Parse reads one symbol per line.
func Parse(r io.Reader) ([]game.Symbol, error) {
	var out []game.Symbol
	seen := make(map[string]struct{})
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, game.Symbol(s))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}
