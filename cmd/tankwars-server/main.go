package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gillesie/tankwars-online/internal/config"
	"github.com/gillesie/tankwars-online/internal/logging"
	"github.com/gillesie/tankwars-online/internal/room"
	"github.com/gillesie/tankwars-online/internal/server"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to config file (default: search tankwars.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, closer := logging.Setup(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	defer closer.Close()

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("server stopped")
		closer.Close()
		os.Exit(1)
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tokens, err := room.NewTokenIssuer(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	if cfg.Auth.TokenSecret == "" {
		log.Warn().Msg("auth.token_secret not set, rejoin tokens will not survive a restart")
	}

	var rooms *room.Manager
	metrics, err := room.NewMetrics(func() int { return rooms.Count() })
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	rooms = room.NewManager(gctx, room.ManagerOptions{
		Room: room.Options{
			TickRate:       cfg.Room.TickRate,
			MaxPlayers:     cfg.Room.MaxPlayers,
			CrateInterval:  cfg.Room.CrateInterval,
			MaxCrates:      cfg.Room.MaxCrates,
			RespawnDelay:   cfg.Room.RespawnDelay,
			ReconnectGrace: cfg.Room.ReconnectGrace,
			LoadedAmmo:     cfg.Match.LoadedAmmo,
			Width:          room.DefaultOptions().Width,
		},
		MaxRooms:   cfg.Room.MaxRooms,
		BcryptCost: cfg.Auth.BcryptCost,
	}, tokens, metrics, logging.Component(log, "rooms"))

	hub := server.NewHub(rooms, server.Limits{
		MaxConnsPerIP: cfg.Server.MaxConnsPerIP,
		MaxTotalConns: cfg.Server.MaxTotalConns,
	}, logging.Component(log, "ws"))

	router := server.NewRouter(hub, server.Options{
		StaticDir:      cfg.Server.StaticDir,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		PublicURL:      cfg.Server.PublicURL,
	}, logging.Component(log, "http"))

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: router}

	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return rooms.RunDiscovery(gctx, cfg.Room.DiscoveryInterval) })
	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Server starting")
		if cfg.Server.StaticDir != "" {
			log.Info().Str("dir", cfg.Server.StaticDir).Msg("Serving client files")
		}
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
