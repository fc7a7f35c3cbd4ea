package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/reedfamily/chatlog/internal/config"
	"github.com/reedfamily/chatlog/internal/db"
	"github.com/reedfamily/chatlog/internal/feed"
	"github.com/reedfamily/chatlog/internal/history"
	"github.com/reedfamily/chatlog/internal/ingest"
	"github.com/reedfamily/chatlog/internal/mapper"
	"github.com/reedfamily/chatlog/internal/pipeline"
	"github.com/reedfamily/chatlog/internal/retention"
	"github.com/reedfamily/chatlog/internal/stats"
	"github.com/reedfamily/chatlog/internal/store"
)

// Core is everything that reads and writes the log, without any transport.
// The CLI uses it directly, the HTTP server wraps it.
type Core struct {
	DB         *sql.DB
	Store      *store.Store
	Writes     *pipeline.Pool
	Reads      *pipeline.Pool
	Collector  *stats.Collector
	Hub        *feed.Hub
	Dispatcher *ingest.Dispatcher
	History    *history.Service
	Retention  *retention.Service

	redis *feed.RedisPublisher
	grace time.Duration
	log   *slog.Logger
}

func NewCore(cfg *config.Config, log *slog.Logger) (*Core, error) {
	conn, dialect, err := db.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	schema, err := db.Migrate(conn, dialect, log)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	m, err := mapper.New(cfg.Server.Name, cfg.Logging)
	if err != nil {
		conn.Close()
		return nil, err
	}

	c := &Core{
		DB:    conn,
		Store: store.New(conn, dialect, schema, cfg.Database.Pool, log),
		Hub:   feed.NewHub(64, log),
		grace: cfg.Pipeline.ShutdownGrace,
		log:   log,
	}
	c.Writes = pipeline.NewPool("writes", cfg.Pipeline.WriteWorkers, cfg.Pipeline.QueueSize, log)
	c.Reads = pipeline.NewPool("reads", cfg.Pipeline.ReadWorkers, cfg.Pipeline.QueueSize, log)
	c.Collector = stats.NewCollector(cfg.Server.Name, c.Writes, c.Reads, c.Store, log)

	publishers := feed.Multi{c.Hub}
	if cfg.Feed.Redis.Enabled {
		rp, err := feed.NewRedisPublisher(cfg.Feed.Redis)
		if err != nil {
			// the live feed is optional, logging continues without it
			log.Warn("redis live feed disabled", "addr", cfg.Feed.Redis.Addr, "error", err)
		} else {
			c.redis = rp
			publishers = append(publishers, rp)
		}
	}

	c.Dispatcher = ingest.NewDispatcher(m, c.Store, c.Writes, publishers, c.Collector, log)
	c.History = history.NewService(c.Store, c.Reads)

	archiveDir := ""
	if cfg.Retention.Archive {
		archiveDir = cfg.Retention.ArchiveDir
	}
	c.Retention = retention.NewService(c.Store, cfg.Server.Name, archiveDir, log)

	log.Info("chatlog core ready",
		"server", cfg.Server.Name,
		"database", cfg.Database.Type,
		"enriched_view", schema.EnrichedView,
		"write_workers", cfg.Pipeline.WriteWorkers,
	)
	return c, nil
}

// Close drains the write pool within the shutdown grace period, then
// releases the database.
func (c *Core) Close() error {
	c.Collector.Stop()
	if !c.Writes.Shutdown(c.grace) {
		c.log.Warn("write pool did not drain in time, pending records were dropped", "grace", c.grace)
	}
	c.Reads.Shutdown(c.grace)

	var errs []error
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
	}
	errs = append(errs, c.DB.Close())
	return errors.Join(errs...)
}

// closeOpenSessions ends sessions left open by a previous run or by a
// server that stopped with players online.
func (c *Core) closeOpenSessions(ctx context.Context, server string) {
	n, err := c.Store.CloseOpenSessions(ctx, server, time.Now())
	if err != nil {
		c.log.Warn("failed to close open sessions", "error", err)
		return
	}
	if n > 0 {
		c.log.Info("closed open sessions", "count", n)
	}
}
