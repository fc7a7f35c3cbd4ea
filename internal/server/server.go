package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/reedfamily/chatlog/internal/api"
	"github.com/reedfamily/chatlog/internal/auth"
	"github.com/reedfamily/chatlog/internal/config"
	"github.com/reedfamily/chatlog/internal/docker"
	"github.com/reedfamily/chatlog/internal/ingest"
	"github.com/reedfamily/chatlog/internal/mapper"
	"github.com/reedfamily/chatlog/internal/model"
	"github.com/reedfamily/chatlog/internal/retention"

	// Register game adapters
	_ "github.com/reedfamily/chatlog/internal/game/minecraft"
	_ "github.com/reedfamily/chatlog/internal/game/vintagestory"
)

type Server struct {
	*Core
	holder    *config.Holder
	router    chi.Router
	auth      *auth.Service
	docker    *docker.Client
	tailers   []*ingest.Tailer
	scheduler *retention.Scheduler
	log       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(holder *config.Holder, log *slog.Logger) (*Server, error) {
	cfg := holder.Get()
	core, err := NewCore(cfg, log)
	if err != nil {
		return nil, err
	}
	s := &Server{Core: core, holder: holder, log: log}

	// Initialize auth
	s.auth = auth.NewService(core.DB, cfg.Auth.SessionTTL)
	created, err := s.auth.EnsureDefaultUser(context.Background(), cfg.Auth.DefaultUser, cfg.Auth.DefaultPass)
	if err != nil {
		core.Close()
		return nil, fmt.Errorf("ensure default user: %w", err)
	}
	if created {
		log.Warn("created default operator, change its password", "username", cfg.Auth.DefaultUser)
	}

	if len(cfg.Ingest.Containers) > 0 {
		if s.docker, err = docker.NewClient(); err != nil {
			core.Close()
			return nil, err
		}
		for _, c := range cfg.Ingest.Containers {
			t, err := ingest.NewTailer(s.docker, core.Dispatcher, c, cfg.Ingest, log)
			if err != nil {
				s.docker.Close()
				core.Close()
				return nil, err
			}
			s.tailers = append(s.tailers, t)
		}
	}

	if cfg.Retention.Enabled {
		s.scheduler, err = retention.NewScheduler(cfg.Retention.Schedule, cfg.Retention.MaxAge, core.Retention, log)
		if err != nil {
			core.Close()
			return nil, err
		}
	}

	s.router = s.routes(cfg)
	return s, nil
}

func (s *Server) routes(cfg *config.Config) chi.Router {
	authHandler := api.NewAuthHandler(s.auth)
	eventHandler := api.NewEventHandler(s.Dispatcher)
	historyHandler := api.NewHistoryHandler(s.History, func() string { return s.holder.Get().Server.Name })
	adminHandler := api.NewAdminHandler(s, s.Dispatcher, s.Retention, s.Collector)
	liveHandler := api.NewLiveHandler(s.Hub, s.log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(api.RequestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.HTTP.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/auth/login", authHandler.Login)

		// Protected routes, the live websocket passes its token as a query parameter
		r.Group(func(r chi.Router) {
			r.Use(api.AuthMiddleware(s.auth))

			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/auth/me", authHandler.Me)

			r.Post("/events", eventHandler.Post)
			r.Get("/server-events", historyHandler.ServerEvents)

			r.Get("/players", historyHandler.Players)
			r.Route("/players/{player}", func(r chi.Router) {
				r.Get("/history", historyHandler.History)
				r.Get("/chat", historyHandler.Chat)
				r.Get("/commands", historyHandler.Commands)
				r.Get("/enriched", historyHandler.Enriched)
				r.Get("/sessions", historyHandler.Sessions)
				r.Get("/count", historyHandler.Count)
			})

			r.Get("/messages/search", historyHandler.Search)
			r.Get("/messages/range", historyHandler.Range)

			r.Get("/stats", adminHandler.Stats)
			r.Post("/admin/reload", adminHandler.Reload)
			r.Post("/admin/test", adminHandler.Test)
			r.Post("/admin/purge", adminHandler.Purge)

			r.Get("/live", liveHandler.Handle)
		})
	})
	return r
}

func (s *Server) Router() chi.Router {
	return s.router
}

// Start begins tailing, sampling and scheduled purging, and records that
// the server came up.
func (s *Server) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.closeOpenSessions(ctx, s.holder.Get().Server.Name)
	s.Dispatcher.RecordServerEvent(model.EventServerStart, model.SeverityLow, "chatlog started")

	s.Collector.Start(time.Minute)
	if s.scheduler != nil {
		s.scheduler.Start()
	}
	for _, t := range s.tailers {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			t.Run(ctx)
		}()
	}
}

// Stop records the shutdown, ends open sessions and drains the pipeline.
func (s *Server) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.Dispatcher.RecordServerEvent(model.EventServerStop, model.SeverityLow, "chatlog stopped").Wait(ctx); err != nil {
		s.log.Warn("failed to record shutdown", "error", err)
	}
	s.closeOpenSessions(ctx, s.holder.Get().Server.Name)

	if s.docker != nil {
		s.docker.Close()
	}
	return s.Core.Close()
}

// Reload re-reads the config and applies the logging rules to new events.
// Database, pool and listener settings need a restart.
func (s *Server) Reload() error {
	cfg, err := s.holder.Reload()
	if err != nil {
		return err
	}
	m, err := mapper.New(cfg.Server.Name, cfg.Logging)
	if err != nil {
		return err
	}
	s.Dispatcher.Swap(m)
	s.log.Info("config reloaded", "logging", cfg.Logging.Enabled, "excluded_players", len(cfg.Logging.ExcludedPlayers))
	return nil
}

func (s *Server) DefaultWorld() string {
	return s.holder.Get().Ingest.DefaultWorld
}
