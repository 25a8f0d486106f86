// internal/httpserver/server.go
//
// HTTP server wiring for the pairs backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health".
//   - Game endpoints (optional auth): /game/new, /game/{id}, /game/{id}/start,
//     /game/{id}/reveal, /game/{id}/reset, and the /game/{id}/ws snapshot stream.
//   - Daily board endpoints (optional auth): mounted under /daily.
//   - Leaderboard and auth endpoints.
//   - Recording won games in the results store.
//
// Notes:
//   - The server is a thin adapter: every rule lives in internal/game.
//   - Guests are identified by an anonymous cookie so their results still count.

package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/pairs/apps/go-server/internal/clock"
	"github.com/robalobadob/pairs/apps/go-server/internal/game"
	"github.com/robalobadob/pairs/apps/go-server/internal/results"
	"github.com/robalobadob/pairs/apps/go-server/internal/store"
)

// Settings are the tunables the server needs from config.
type Settings struct {
	DefaultDimension int
	Options          game.Options
	JWTSecret        string
	JWTExpiresDays   int
	CookieName       string
	SecureCookies    bool
	ClientOrigin     string
	DailySalt        string
}

// Deps bundles what New needs. Now defaults to time.Now.
type Deps struct {
	Store     store.Store
	DB        *sql.DB
	Builder   game.BoardBuilder
	Alphabet  []game.Symbol // used to lay out daily boards
	Scheduler clock.Scheduler
	Now       func() time.Time
	Settings  Settings
}

// Server bundles router, live sessions, and DB handle.
type Server struct {
	r        *chi.Mux
	store    store.Store
	db       *sql.DB
	results  *results.Store
	builder  game.BoardBuilder
	alphabet []game.Symbol
	sched    clock.Scheduler
	now      func() time.Time
	cfg      Settings
	upgrader websocket.Upgrader
	daily    *dailyServer
	writes   sync.WaitGroup // in-flight result writes
}

// New constructs a Server, installs middleware, and registers routes.
func New(d Deps) *Server {
	s := &Server{
		r:        chi.NewRouter(),
		store:    d.Store,
		db:       d.DB,
		results:  results.NewStore(d.DB),
		builder:  d.Builder,
		alphabet: d.Alphabet,
		sched:    d.Scheduler,
		now:      d.Now,
		cfg:      d.Settings,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.sched == nil {
		s.sched = clock.Real{}
	}
	if s.cfg.CookieName == "" {
		s.cfg.CookieName = "pairs_token"
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || origin == s.cfg.ClientOrigin
		},
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(s.cors)          // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service":   "pairs-go",
			"endpoints": []string{"/health", "POST /game/new", "POST /game/{id}/reveal", "GET /game/{id}/ws", "/daily/*", "/auth/*"},
		})
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	// Plain JSON request/response routes
	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))
		r.Use(jsonContentType)
		r.Use(s.withOptionalAuth())

		r.Post("/game/new", s.handleNewGame)
		r.Get("/game/{id}", s.handleGetGame)
		r.Post("/game/{id}/start", s.handleStart)
		r.Post("/game/{id}/reveal", s.handleReveal)
		r.Post("/game/{id}/reset", s.handleReset)
		r.Get("/leaderboard", s.handleLeaderboard)

		s.mountDaily(r)
		s.mountAuthRoutes(r)
	})

	// Long-lived snapshot stream; no handler timeout.
	s.r.With(s.withOptionalAuth()).Get("/game/{id}/ws", s.handleWS)

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// Start serves HTTP on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		s.Flush()
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.cfg.ClientOrigin
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ------------------------------ GAME ---------------------------------------

type newGameReq struct {
	Dimension int `json:"dimension"` // 0 → server default
}

type gameRes struct {
	GameID   string        `json:"gameId"`
	Accepted *bool         `json:"accepted,omitempty"` // reveal only
	Snapshot game.Snapshot `json:"snapshot"`
	Summary  string        `json:"summary,omitempty"` // win banner once won
}

func newGameRes(e *store.Entry, snap game.Snapshot) gameRes {
	return gameRes{GameID: e.ID(), Snapshot: snap, Summary: snap.Summary()}
}

// handleNewGame creates a session owned by the caller (user or guest).
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	if !decodeOptional(w, r, &req) {
		return
	}
	e, err := s.startSession(r.Context(), s.builder, s.dimensionOrDefault(req.Dimension), s.player(w, r), "")
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newGameRes(e, e.Session.Snapshot()))
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newGameRes(e, e.Session.Snapshot()))
}

// handleStart is the start button.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	e.Session.ClickStart()
	writeJSON(w, http.StatusOK, newGameRes(e, e.Session.Snapshot()))
}

type revealReq struct {
	Position *int `json:"position"`
}

// handleReveal flips one card. Ignored reveals still return 200 with accepted=false.
func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req revealReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Position == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_json"})
		return
	}
	accepted, err := e.Session.RevealCard(*req.Position)
	if err != nil {
		writeErr(w, err)
		return
	}
	res := newGameRes(e, e.Session.Snapshot())
	res.Accepted = &accepted
	writeJSON(w, http.StatusOK, res)
}

// handleReset deals a new board on the same session.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req newGameReq
	if !decodeOptional(w, r, &req) {
		return
	}
	dim := req.Dimension
	if dim == 0 {
		dim = e.Session.Snapshot().Dimension
	}
	if err := e.Session.NewGame(dim); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newGameRes(e, e.Session.Snapshot()))
}

// handleLeaderboard returns the top results for ?dimension= (default board size).
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	dim := s.cfg.DefaultDimension
	if v := r.URL.Query().Get("dimension"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid dimension"})
			return
		}
		dim = n
	}
	if err := game.ValidateDimension(dim); err != nil {
		writeErr(w, err)
		return
	}
	rows, err := s.results.Leaderboard(r.Context(), dim, "", 20)
	if err != nil {
		log.Error().Err(err).Msg("leaderboard")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "db_error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dimension": dim, "top": rows})
}

// ----------------------------- sessions ------------------------------------

// startSession creates, registers and starts recording a session.
func (s *Server) startSession(ctx context.Context, b game.BoardBuilder, dim int, p player, dailyDate string) (*store.Entry, error) {
	sess, err := game.NewSession(store.NewID(), b, s.sched, s.cfg.Options, dim)
	if err != nil {
		return nil, err
	}
	e := &store.Entry{
		Session:   sess,
		PlayerID:  p.id,
		Username:  p.username,
		DailyDate: dailyDate,
		CreatedAt: s.now(),
	}
	sess.Subscribe(s.recordWin(e))
	if err := s.store.Save(ctx, e); err != nil {
		sess.Close()
		return nil, err
	}
	return e, nil
}

// recordWin persists the result when a round reaches won.
// Only the first round of a daily session counts for the daily board.
// The listener runs under the session lock, so the write happens on its own goroutine.
func (s *Server) recordWin(e *store.Entry) game.Listener {
	return func(snap game.Snapshot) {
		if snap.Status != game.StatusWon {
			return
		}
		dailyDate := e.DailyDate
		if snap.Round != 1 {
			dailyDate = ""
		}
		res := results.Result{
			GameID:    snap.GameID,
			Round:     snap.Round,
			PlayerID:  e.PlayerID,
			Username:  e.Username,
			Dimension: snap.Dimension,
			Moves:     snap.Moves,
			Seconds:   snap.Seconds,
			DailyDate: dailyDate,
		}
		s.writes.Add(1)
		go func() {
			defer s.writes.Done()
			s.saveResult(res)
		}()
	}
}

func (s *Server) saveResult(res results.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.results.Insert(ctx, res); err != nil {
		log.Warn().Err(err).Str("gameId", res.GameID).Msg("record result")
		return
	}
	if res.Username != "" {
		if _, err := s.db.ExecContext(ctx, `UPDATE users SET games_won = games_won + 1 WHERE id=?`, res.PlayerID); err != nil {
			log.Warn().Err(err).Str("user", res.PlayerID).Msg("bump wins")
		}
	}
}

// Flush waits for pending result writes.
func (s *Server) Flush() { s.writes.Wait() }

// lookup resolves {id} or writes a 404.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*store.Entry, bool) {
	e, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return nil, false
	}
	return e, true
}

func (s *Server) dimensionOrDefault(d int) int {
	if d == 0 {
		return s.cfg.DefaultDimension
	}
	return d
}

// ------------------------------- small util --------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps domain errors to HTTP status codes.
func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, game.ErrInvalidArgument), errors.Is(err, game.ErrInvalidDimension):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, game.ErrClosed):
		status = http.StatusGone
	default:
		log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// decodeOptional decodes a JSON body if there is one. Writes 400 on bad JSON.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_json"})
		return false
	}
	return true
}
