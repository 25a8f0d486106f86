package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/pairs/apps/go-server/internal/clock"
	"github.com/robalobadob/pairs/apps/go-server/internal/config"
	"github.com/robalobadob/pairs/apps/go-server/internal/deck"
	"github.com/robalobadob/pairs/apps/go-server/internal/game"
	"github.com/robalobadob/pairs/apps/go-server/internal/httpserver"
	"github.com/robalobadob/pairs/apps/go-server/internal/results"
	"github.com/robalobadob/pairs/apps/go-server/internal/store"
	"github.com/robalobadob/pairs/apps/go-server/internal/symbols"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.Server.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if !cfg.Server.Production() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	alphabet, err := symbols.Load(cfg.Board.SymbolsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load symbols")
	}
	rng, err := deck.NewRand()
	if err != nil {
		log.Fatal().Err(err).Msg("seed rng")
	}
	builder, err := deck.NewBuilder(alphabet, rng)
	if err != nil {
		log.Fatal().Err(err).Msg("deck builder")
	}
	if cfg.Board.Dimension > builder.MaxDimension() {
		log.Fatal().Int("dimension", cfg.Board.Dimension).Int("max", builder.MaxDimension()).Msg("not enough symbols for board")
	}

	db, err := results.Open(cfg.Server.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()
	if err := results.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mem := store.NewMemoryStore()
	go pruneLoop(ctx, mem, cfg.Server.SessionTTL)

	srv := httpserver.New(httpserver.Deps{
		Store:     mem,
		DB:        db,
		Builder:   builder,
		Alphabet:  alphabet,
		Scheduler: clock.Real{},
		Settings: httpserver.Settings{
			DefaultDimension: cfg.Board.Dimension,
			Options: game.Options{
				TickInterval:  cfg.Board.TickInterval,
				FlipBackDelay: cfg.Board.FlipBackDelay,
				WinDelay:      cfg.Board.WinDelay,
			},
			JWTSecret:      cfg.Auth.JWTSecret,
			JWTExpiresDays: cfg.Auth.JWTExpiresDays,
			CookieName:     cfg.Auth.CookieName,
			SecureCookies:  cfg.Server.Production(),
			ClientOrigin:   cfg.Server.ClientOrigin,
			DailySalt:      cfg.Board.DailySalt,
		},
	})

	log.Info().Str("addr", cfg.Server.Addr()).Int("symbols", len(alphabet)).Int("dimension", cfg.Board.Dimension).Msg("starting pairs server")
	if err := srv.Start(ctx, cfg.Server.Addr()); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

// pruneLoop drops sessions older than ttl so abandoned boards stop ticking.
func pruneLoop(ctx context.Context, s store.Store, ttl time.Duration) {
	every := ttl / 4
	if every < time.Minute {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Prune(ctx, now.Add(-ttl)); n > 0 {
				log.Info().Int("pruned", n).Msg("pruned stale sessions")
			}
		}
	}
}
