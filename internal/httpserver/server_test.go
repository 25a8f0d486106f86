package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/pairs/apps/go-server/internal/clock"
	"github.com/robalobadob/pairs/apps/go-server/internal/daily"
	"github.com/robalobadob/pairs/apps/go-server/internal/game"
	"github.com/robalobadob/pairs/apps/go-server/internal/httpserver"
	"github.com/robalobadob/pairs/apps/go-server/internal/results"
	"github.com/robalobadob/pairs/apps/go-server/internal/store"
)

// pairsBuilder always deals a,b,a,b on a 2x2 board.
type pairsBuilder struct{}

func (pairsBuilder) BuildBoard(dimension int) (game.Board, error) {
	if err := game.ValidateDimension(dimension); err != nil {
		return game.Board{}, err
	}
	if dimension != 2 {
		return game.Board{}, game.ErrInvalidDimension
	}
	syms := []game.Symbol{"a", "b", "a", "b"}
	cards := make([]game.Card, len(syms))
	for i, s := range syms {
		cards[i] = game.Card{Position: i, Symbol: s, State: game.CardHidden}
	}
	return game.Board{Dimension: 2, Cards: cards}, nil
}

var (
	testAlphabet = []game.Symbol{"🐶", "🐱", "🐭", "🐹"}
	// fixed for the whole run; cookie expiry is still checked by the jar against the wall clock
	testNow = time.Now().UTC().Truncate(time.Second)
)

const testSalt = "test_salt"

type harness struct {
	t     *testing.T
	app   *httpserver.Server
	srv   *httptest.Server
	http  *http.Client
	clock *clock.Manual
	games store.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := results.Open(filepath.Join(t.TempDir(), "pairs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, results.Migrate(db))

	m := clock.NewManual()
	games := store.NewMemoryStore()
	s := httpserver.New(httpserver.Deps{
		Store:     games,
		DB:        db,
		Builder:   pairsBuilder{},
		Alphabet:  testAlphabet,
		Scheduler: m,
		Now:       func() time.Time { return testNow },
		Settings: httpserver.Settings{
			DefaultDimension: 2,
			JWTSecret:        "test_secret",
			JWTExpiresDays:   1,
			CookieName:       "pairs_token",
			ClientOrigin:     "http://localhost:5173",
			DailySalt:        testSalt,
		},
	})
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)

	return &harness{t: t, app: s, srv: ts, http: newClient(t), clock: m, games: games}
}

// advance moves the game clock and waits for any results it produced to be stored.
func (h *harness) advance(d time.Duration) {
	h.advance(d)
	h.app.Flush()
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

// do sends body as JSON (nil for none) and decodes the response into out (may be nil).
func (h *harness) do(c *http.Client, method, path string, body, out any) int {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, h.srv.URL+path, &buf)
	require.NoError(h.t, err)
	req.Header.Set("Content-Type", "application/json")
	res, err := c.Do(req)
	require.NoError(h.t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(h.t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

type gameBody struct {
	GameID   string        `json:"gameId"`
	Accepted *bool         `json:"accepted"`
	Snapshot game.Snapshot `json:"snapshot"`
	Summary  string        `json:"summary"`
	Error    string        `json:"error"`
}

type boardBody struct {
	Top []results.Row `json:"top"`
}

func (h *harness) newGame(c *http.Client) gameBody {
	h.t.Helper()
	var g gameBody
	require.Equal(h.t, http.StatusOK, h.do(c, http.MethodPost, "/game/new", nil, &g))
	return g
}

func (h *harness) reveal(c *http.Client, id string, pos int) gameBody {
	h.t.Helper()
	var g gameBody
	require.Equal(h.t, http.StatusOK, h.do(c, http.MethodPost, "/game/"+id+"/reveal", map[string]int{"position": pos}, &g))
	return g
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	var body map[string]bool
	assert.Equal(t, http.StatusOK, h.do(h.http, http.MethodGet, "/health", nil, &body))
	assert.True(t, body["ok"])
}

func TestNewGameIsHidden(t *testing.T) {
	h := newHarness(t)
	g := h.newGame(h.http)

	assert.NotEmpty(t, g.GameID)
	assert.Equal(t, game.StatusNotStarted, g.Snapshot.Status)
	require.Len(t, g.Snapshot.Cards, 4)
	for _, c := range g.Snapshot.Cards {
		assert.Equal(t, game.CardHidden, c.State)
		assert.Nil(t, c.Symbol)
	}

	var again gameBody
	require.Equal(t, http.StatusOK, h.do(h.http, http.MethodGet, "/game/"+g.GameID, nil, &again))
	assert.Equal(t, g.Snapshot, again.Snapshot)
}

func TestPlayToWinRecordsResult(t *testing.T) {
	h := newHarness(t)
	g := h.newGame(h.http)

	first := h.reveal(h.http, g.GameID, 0)
	require.NotNil(t, first.Accepted)
	assert.True(t, *first.Accepted)
	assert.Equal(t, game.StatusRunning, first.Snapshot.Status)
	require.NotNil(t, first.Snapshot.Cards[0].Symbol)
	assert.Equal(t, game.Symbol("a"), *first.Snapshot.Cards[0].Symbol)

	h.reveal(h.http, g.GameID, 2)
	h.reveal(h.http, g.GameID, 1)
	last := h.reveal(h.http, g.GameID, 3)
	assert.Equal(t, game.StatusRunning, last.Snapshot.Status)
	assert.Empty(t, last.Summary)

	h.advance(time.Second)

	var won gameBody
	require.Equal(t, http.StatusOK, h.do(h.http, http.MethodGet, "/game/"+g.GameID, nil, &won))
	assert.Equal(t, game.StatusWon, won.Snapshot.Status)
	assert.Equal(t, 4, won.Snapshot.Moves)
	assert.Equal(t, 1, won.Snapshot.Seconds)
	assert.Equal(t, "You won! With 4 moves under 1 sec", won.Summary)

	var lb boardBody
	require.Equal(t, http.StatusOK, h.do(h.http, http.MethodGet, "/leaderboard?dimension=2", nil, &lb))
	require.Len(t, lb.Top, 1)
	assert.Equal(t, 4, lb.Top[0].Moves)
	assert.Equal(t, 1, lb.Top[0].Seconds)
	assert.Contains(t, lb.Top[0].PlayerID, "anon_")
}

func TestRevealDuringLockIsNotAccepted(t *testing.T) {
	h := newHarness(t)
	g := h.newGame(h.http)

	h.reveal(h.http, g.GameID, 0)
	h.reveal(h.http, g.GameID, 1)
	third := h.reveal(h.http, g.GameID, 2)
	require.NotNil(t, third.Accepted)
	assert.False(t, *third.Accepted)
	assert.Equal(t, 2, third.Snapshot.Moves)

	h.advance(time.Second)
	var after gameBody
	h.do(h.http, http.MethodGet, "/game/"+g.GameID, nil, &after)
	for _, c := range after.Snapshot.Cards {
		assert.Equal(t, game.CardHidden, c.State)
	}
}

func TestStartAndReset(t *testing.T) {
	h := newHarness(t)
	g := h.newGame(h.http)

	var started gameBody
	require.Equal(t, http.StatusOK, h.do(h.http, http.MethodPost, "/game/"+g.GameID+"/start", nil, &started))
	assert.Equal(t, game.StatusRunning, started.Snapshot.Status)

	h.advance(3 * time.Second)
	h.reveal(h.http, g.GameID, 0)

	var reset gameBody
	require.Equal(t, http.StatusOK, h.do(h.http, http.MethodPost, "/game/"+g.GameID+"/reset", nil, &reset))
	assert.Equal(t, g.GameID, reset.GameID)
	assert.Equal(t, 2, reset.Snapshot.Round)
	assert.Equal(t, game.StatusNotStarted, reset.Snapshot.Status)
	assert.Zero(t, reset.Snapshot.Moves)
	assert.Zero(t, reset.Snapshot.Seconds)

	h.advance(5 * time.Second)
	var idle gameBody
	h.do(h.http, http.MethodGet, "/game/"+g.GameID, nil, &idle)
	assert.Zero(t, idle.Snapshot.Seconds)
}

func TestBadRequests(t *testing.T) {
	h := newHarness(t)
	g := h.newGame(h.http)

	var body gameBody
	assert.Equal(t, http.StatusBadRequest, h.do(h.http, http.MethodPost, "/game/new", map[string]int{"dimension": 3}, &body))
	assert.NotEmpty(t, body.Error)

	assert.Equal(t, http.StatusBadRequest, h.do(h.http, http.MethodPost, "/game/"+g.GameID+"/reveal", map[string]int{"position": 4}, nil))
	assert.Equal(t, http.StatusBadRequest, h.do(h.http, http.MethodPost, "/game/"+g.GameID+"/reveal", map[string]string{}, nil))
	assert.Equal(t, http.StatusBadRequest, h.do(h.http, http.MethodPost, "/game/"+g.GameID+"/reset", map[string]int{"dimension": 5}, nil))
	assert.Equal(t, http.StatusBadRequest, h.do(h.http, http.MethodGet, "/leaderboard?dimension=abc", nil, nil))
	assert.Equal(t, http.StatusBadRequest, h.do(h.http, http.MethodGet, "/leaderboard?dimension=3", nil, nil))

	assert.Equal(t, http.StatusNotFound, h.do(h.http, http.MethodGet, "/game/missing", nil, nil))
	assert.Equal(t, http.StatusNotFound, h.do(h.http, http.MethodPost, "/game/missing/reveal", map[string]int{"position": 0}, nil))
	assert.Equal(t, http.StatusNotFound, h.do(h.http, http.MethodGet, "/nowhere", nil, nil))
}

func TestAuthFlow(t *testing.T) {
	h := newHarness(t)
	creds := map[string]string{"username": "alice", "password": "correct horse"}

	assert.Equal(t, http.StatusUnauthorized, h.do(h.http, http.MethodGet, "/auth/me", nil, nil))
	assert.Equal(t, http.StatusOK, h.do(h.http, http.MethodPost, "/auth/signup", creds, nil))
	assert.Equal(t, http.StatusConflict, h.do(newClient(t), http.MethodPost, "/auth/signup", creds, nil))

	var me map[string]any
	require.Equal(t, http.StatusOK, h.do(h.http, http.MethodGet, "/auth/me", nil, &me))
	assert.Equal(t, "alice", me["username"])
	assert.EqualValues(t, 0, me["gamesWon"])

	// a win while signed in counts toward the account
	g := h.newGame(h.http)
	for _, p := range []int{0, 2, 1, 3} {
		h.reveal(h.http, g.GameID, p)
	}
	h.advance(time.Second)
	require.Equal(t, http.StatusOK, h.do(h.http, http.MethodGet, "/auth/me", nil, &me))
	assert.EqualValues(t, 1, me["gamesWon"])

	var lb boardBody
	h.do(h.http, http.MethodGet, "/leaderboard", nil, &lb)
	require.Len(t, lb.Top, 1)
	assert.Equal(t, "alice", lb.Top[0].Username)

	assert.Equal(t, http.StatusOK, h.do(h.http, http.MethodPost, "/auth/logout", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, h.do(h.http, http.MethodGet, "/auth/me", nil, nil))

	other := newClient(t)
	assert.Equal(t, http.StatusUnauthorized, h.do(other, http.MethodPost, "/auth/login",
		map[string]string{"username": "alice", "password": "wrong password"}, nil))
	assert.Equal(t, http.StatusOK, h.do(other, http.MethodPost, "/auth/login", creds, nil))
	assert.Equal(t, http.StatusOK, h.do(other, http.MethodGet, "/auth/me", nil, nil))
}

func TestSignupValidation(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusBadRequest, h.do(h.http, http.MethodPost, "/auth/signup",
		map[string]string{"username": "al", "password": "correct horse"}, nil))
	assert.Equal(t, http.StatusBadRequest, h.do(h.http, http.MethodPost, "/auth/signup",
		map[string]string{"username": "alice", "password": "short"}, nil))
	assert.Equal(t, http.StatusBadRequest, h.do(h.http, http.MethodPost, "/auth/signup",
		map[string]string{"username": "bad name!", "password": "correct horse"}, nil))
}

type dailyBody struct {
	GameID   string         `json:"gameId"`
	Date     string         `json:"date"`
	Played   bool           `json:"played"`
	Snapshot *game.Snapshot `json:"snapshot"`
}

func TestDailyBoard(t *testing.T) {
	h := newHarness(t)

	var first, second dailyBody
	require.Equal(t, http.StatusOK, h.do(h.http, http.MethodPost, "/daily/new", nil, &first))
	assert.Equal(t, daily.DateKey(testNow), first.Date)
	assert.False(t, first.Played)
	require.NotNil(t, first.Snapshot)
	assert.Equal(t, 2, first.Snapshot.Dimension)

	require.Equal(t, http.StatusOK, h.do(h.http, http.MethodPost, "/daily/new", nil, &second))
	assert.Equal(t, first.GameID, second.GameID)

	// another player gets a different session with the same layout
	var stranger dailyBody
	require.Equal(t, http.StatusOK, h.do(newClient(t), http.MethodPost, "/daily/new", nil, &stranger))
	assert.NotEqual(t, first.GameID, stranger.GameID)

	b, err := daily.Builder(testAlphabet, testNow, testSalt)
	require.NoError(t, err)
	board, err := b.BuildBoard(2)
	require.NoError(t, err)

	bySymbol := map[game.Symbol][]int{}
	for _, c := range board.Cards {
		bySymbol[c.Symbol] = append(bySymbol[c.Symbol], c.Position)
	}
	require.Len(t, bySymbol, 2)
	for sym, pair := range bySymbol {
		h.reveal(h.http, first.GameID, pair[0])
		g := h.reveal(h.http, first.GameID, pair[1])
		require.NotNil(t, g.Snapshot.Cards[pair[1]].Symbol)
		assert.Equal(t, sym, *g.Snapshot.Cards[pair[1]].Symbol)
		assert.Equal(t, game.CardMatched, g.Snapshot.Cards[pair[1]].State)
	}
	h.advance(time.Second)

	var done dailyBody
	require.Equal(t, http.StatusOK, h.do(h.http, http.MethodPost, "/daily/new", nil, &done))
	assert.True(t, done.Played)
	assert.Empty(t, done.GameID)

	var lb boardBody
	require.Equal(t, http.StatusOK, h.do(h.http, http.MethodGet, "/daily/leaderboard", nil, &lb))
	require.Len(t, lb.Top, 1)
	assert.Equal(t, 4, lb.Top[0].Moves)

	require.Equal(t, http.StatusOK, h.do(h.http, http.MethodGet, "/daily/leaderboard?date="+daily.DateKey(testNow.AddDate(0, 0, -1)), nil, &lb))
	assert.Empty(t, lb.Top)
}

func TestDailyReplayDoesNotCount(t *testing.T) {
	h := newHarness(t)

	var d dailyBody
	require.Equal(t, http.StatusOK, h.do(h.http, http.MethodPost, "/daily/new", nil, &d))

	// peek at two cards, then reset to get a fresh clock
	h.reveal(h.http, d.GameID, 0)
	h.reveal(h.http, d.GameID, 1)
	require.Equal(t, http.StatusOK, h.do(h.http, http.MethodPost, "/game/"+d.GameID+"/reset", nil, nil))

	// reopening hands back the same session, still on round 2
	var again dailyBody
	require.Equal(t, http.StatusOK, h.do(h.http, http.MethodPost, "/daily/new", nil, &again))
	assert.Equal(t, d.GameID, again.GameID)
	require.NotNil(t, again.Snapshot)
	assert.Equal(t, 2, again.Snapshot.Round)
	assert.False(t, again.Played)

	// round 2 is the second board from the day's stream
	b, err := daily.Builder(testAlphabet, testNow, testSalt)
	require.NoError(t, err)
	_, err = b.BuildBoard(2)
	require.NoError(t, err)
	board, err := b.BuildBoard(2)
	require.NoError(t, err)
	bySymbol := map[game.Symbol][]int{}
	for _, c := range board.Cards {
		bySymbol[c.Symbol] = append(bySymbol[c.Symbol], c.Position)
	}
	for _, pair := range bySymbol {
		h.reveal(h.http, d.GameID, pair[0])
		h.reveal(h.http, d.GameID, pair[1])
	}
	h.advance(time.Second)

	var lb boardBody
	require.Equal(t, http.StatusOK, h.do(h.http, http.MethodGet, "/daily/leaderboard", nil, &lb))
	assert.Empty(t, lb.Top, "a reset round is not a daily result")
	require.Equal(t, http.StatusOK, h.do(h.http, http.MethodGet, "/leaderboard?dimension=2", nil, &lb))
	assert.Len(t, lb.Top, 1, "it still counts as a normal game")

	require.Equal(t, http.StatusOK, h.do(h.http, http.MethodPost, "/daily/new", nil, &again))
	assert.Equal(t, d.GameID, again.GameID)
}

func TestDailyGoneSessionCountsAsPlayed(t *testing.T) {
	h := newHarness(t)

	var d dailyBody
	require.Equal(t, http.StatusOK, h.do(h.http, http.MethodPost, "/daily/new", nil, &d))
	require.NoError(t, h.games.Delete(context.Background(), d.GameID))

	var again dailyBody
	require.Equal(t, http.StatusOK, h.do(h.http, http.MethodPost, "/daily/new", nil, &again))
	assert.True(t, again.Played)
	assert.Empty(t, again.GameID)
}
