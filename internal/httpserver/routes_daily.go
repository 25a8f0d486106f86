// internal/httpserver/routes_daily.go
//
// HTTP routes for the daily board.
// Exposes two endpoints under /daily:
//   - POST /daily/new         → start today's board (creates or reuses session)
//   - GET  /daily/leaderboard → top 20 results for today (or ?date=)
//
// Each player gets one daily session per day. Reopening returns the same
// session; once it is gone (won, pruned) the player has played. Only round 1
// of that session counts as the daily result, so a reset plays on as a normal game.
// Every player sees the same layout: the deck is seeded from date + salt.

package httpserver

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/pairs/apps/go-server/internal/daily"
	"github.com/robalobadob/pairs/apps/go-server/internal/game"
)

// dailyServer remembers which session each player opened for the current day.
type dailyServer struct {
	mu       sync.Mutex        // guards date and sessions
	date     string            // day the sessions belong to
	sessions map[string]string // playerID → game ID
}

func newDailyServer() *dailyServer {
	return &dailyServer{sessions: make(map[string]string)}
}

// rollover forgets every session from an earlier day. Caller holds d.mu.
func (d *dailyServer) rollover(date string) {
	if d.date != date {
		d.date = date
		d.sessions = make(map[string]string)
	}
}

// mountDaily registers all /daily routes.
func (s *Server) mountDaily(r chi.Router) {
	s.daily = newDailyServer()
	r.Route("/daily", func(r chi.Router) {
		r.Post("/new", s.handleDailyNew)
		r.Get("/leaderboard", s.handleDailyLeaderboard)
	})
}

// dailyNewRes is returned by /daily/new.
type dailyNewRes struct {
	GameID   string         `json:"gameId,omitempty"`
	Date     string         `json:"date"`
	Played   bool           `json:"played"`
	Snapshot *game.Snapshot `json:"snapshot,omitempty"`
}

// handleDailyNew creates or reuses the caller's session for today's board.
//   - Already has a recorded result today → Played=true.
//   - Opened a session today → that session (whatever round it is on),
//     or Played=true if it no longer exists.
//   - Otherwise deal a fresh one.
func (s *Server) handleDailyNew(w http.ResponseWriter, r *http.Request) {
	p := s.player(w, r)
	now := s.now()
	date := daily.DateKey(now)

	played, err := s.results.AlreadyPlayedDaily(r.Context(), p.id, date)
	if err != nil {
		writeErr(w, err)
		return
	}
	if played {
		writeJSON(w, http.StatusOK, dailyNewRes{Date: date, Played: true})
		return
	}

	s.daily.mu.Lock()
	defer s.daily.mu.Unlock()
	s.daily.rollover(date)

	if id, ok := s.daily.sessions[p.id]; ok {
		e, err := s.store.Get(r.Context(), id)
		if err != nil {
			writeJSON(w, http.StatusOK, dailyNewRes{Date: date, Played: true})
			return
		}
		snap := e.Session.Snapshot()
		writeJSON(w, http.StatusOK, dailyNewRes{GameID: id, Date: date, Snapshot: &snap})
		return
	}

	b, err := daily.Builder(s.alphabet, now, s.cfg.DailySalt)
	if err != nil {
		writeErr(w, err)
		return
	}
	e, err := s.startSession(r.Context(), b, s.cfg.DefaultDimension, p, date)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.daily.sessions[p.id] = e.ID()
	snap := e.Session.Snapshot()
	writeJSON(w, http.StatusOK, dailyNewRes{GameID: e.ID(), Date: date, Snapshot: &snap})
}

// handleDailyLeaderboard returns the leaderboard for ?date= (default today).
func (s *Server) handleDailyLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = daily.DateKey(s.now())
	}
	rows, err := s.results.Leaderboard(r.Context(), s.cfg.DefaultDimension, date, 20)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "top": rows})
}
