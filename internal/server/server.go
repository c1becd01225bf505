// Package server assembles the chat server from its configuration.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/valkey-io/valkey-go"
	"golang.org/x/sync/errgroup"

	"github.com/QQCPM/ChatChat/internal/api/messages"
	apipairing "github.com/QQCPM/ChatChat/internal/api/pairing"
	"github.com/QQCPM/ChatChat/internal/auth"
	"github.com/QQCPM/ChatChat/internal/config"
	"github.com/QQCPM/ChatChat/internal/pairing"
	"github.com/QQCPM/ChatChat/internal/realtime"
	"github.com/QQCPM/ChatChat/internal/storage"
	"github.com/QQCPM/ChatChat/internal/storage/memory"
	"github.com/QQCPM/ChatChat/internal/storage/postgres"
	"github.com/QQCPM/ChatChat/internal/storage/valkeystore"
	"github.com/QQCPM/ChatChat/internal/ws"
)

// Server owns the listener and every long-lived dependency.
type Server struct {
	cfg    config.Config
	http   *http.Server
	hub    *ws.Hub
	broker *valkeystore.Broker
	db     *sql.DB
	valkey valkey.Client
	log    *logrus.Entry
}

// New connects the configured backends and builds the HTTP server. Without
// DATABASE_URL state lives in memory; without VALKEY_ADDR events fan out
// within this process only.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	s := &Server{
		cfg: cfg,
		hub: ws.NewHub(),
		log: logrus.WithField("component", "server"),
	}

	var (
		couples pairing.Store
		msgs    messages.Repository
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s.db = db
		couples = postgres.NewCoupleStore(db)
		msgs = postgres.NewMessageStore(db)
	} else {
		s.log.Warn("DATABASE_URL not set, keeping couples and messages in memory")
		couples = memory.NewCoupleStore()
		msgs = memory.NewMessageStore()
	}

	var (
		publisher  realtime.Publisher = s.hub
		statsCache storage.KV         = memory.NewKV()
	)
	if cfg.ValkeyAddr != "" {
		client, err := valkeystore.Connect(cfg.ValkeyAddr, cfg.ValkeyPassword)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.valkey = client
		s.broker = valkeystore.NewBroker(client, cfg.ValkeyChannelPrefix, s.hub)
		publisher = s.broker
		statsCache = valkeystore.NewKV(client, cfg.ValkeyChannelPrefix, cfg.StatsCacheTTL)
	}

	registry := pairing.NewRegistry(couples, pairing.WithMaxAttempts(cfg.InviteMaxAttempts))
	upgrader := ws.NewUpgrader(cfg.CORSOrigin)
	handler := NewRouter(Handlers{
		Tokens: auth.NewIssuer(cfg.JWTSecret),
		Pairing: &apipairing.PairingHandler{
			Registry:  registry,
			Publisher: publisher,
			Hub:       s.hub,
			Upgrader:  upgrader,
		},
		Messages: &messages.MessageHandler{
			Store:      msgs,
			Rooms:      registry,
			Publisher:  publisher,
			Hub:        s.hub,
			Upgrader:   upgrader,
			StatsCache: statsCache,
			StatsTTL:   cfg.StatsCacheTTL,
		},
	}, cfg.CORSOrigin)

	s.http = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.hub.Run(ctx)
		return nil
	})
	if s.broker != nil {
		g.Go(func() error { return s.broker.Run(ctx) })
	}
	g.Go(func() error {
		s.log.WithField("addr", s.cfg.HTTPAddr).Info("Server started")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()
	s.log.Info("Server exited")
	return err
}

// Close releases the backends. Run calls it on exit.
func (s *Server) Close() {
	if s.valkey != nil {
		s.valkey.Close()
		s.valkey = nil
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.WithError(err).Warn("Failed to close database")
		}
		s.db = nil
	}
}
