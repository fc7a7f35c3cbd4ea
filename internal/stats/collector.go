package stats

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reedfamily/chatlog/internal/pipeline"
)

type poolSource interface {
	Stats() pipeline.Stats
}

type dbSource interface {
	Stats() sql.DBStats
}

type DBStats struct {
	Open         int           `json:"open"`
	InUse        int           `json:"in_use"`
	Idle         int           `json:"idle"`
	WaitCount    int64         `json:"wait_count"`
	WaitDuration time.Duration `json:"wait_duration"`
}

type Stats struct {
	Server     string           `json:"server"`
	Mapped     map[string]int64 `json:"mapped"`
	Declined   int64            `json:"declined"`
	Persisted  int64            `json:"persisted"`
	Failed     int64            `json:"failed"`
	Writes     pipeline.Stats   `json:"writes"`
	Reads      pipeline.Stats   `json:"reads"`
	DB         DBStats          `json:"db"`
	RecordedAt time.Time        `json:"recorded_at"`
}

// Collector counts what the ingestion path does with events and samples the
// pools periodically.
type Collector struct {
	server string
	log    *slog.Logger
	writes poolSource
	reads  poolSource
	db     dbSource

	mu     sync.RWMutex
	mapped map[string]*atomic.Int64
	latest *Stats

	declined  atomic.Int64
	persisted atomic.Int64
	failed    atomic.Int64

	cancel context.CancelFunc
}

func NewCollector(server string, writes, reads poolSource, db dbSource, log *slog.Logger) *Collector {
	return &Collector{
		server: server,
		log:    log,
		writes: writes,
		reads:  reads,
		db:     db,
		mapped: map[string]*atomic.Int64{},
	}
}

func (c *Collector) Mapped(kind string) {
	c.mu.RLock()
	n, ok := c.mapped[kind]
	c.mu.RUnlock()
	if !ok {
		c.mu.Lock()
		if n, ok = c.mapped[kind]; !ok {
			n = new(atomic.Int64)
			c.mapped[kind] = n
		}
		c.mu.Unlock()
	}
	n.Add(1)
}

func (c *Collector) Declined()  { c.declined.Add(1) }
func (c *Collector) Persisted() { c.persisted.Add(1) }
func (c *Collector) Failed()    { c.failed.Add(1) }

// Snapshot reads the counters now.
func (c *Collector) Snapshot() *Stats {
	s := &Stats{
		Server:     c.server,
		Mapped:     map[string]int64{},
		Declined:   c.declined.Load(),
		Persisted:  c.persisted.Load(),
		Failed:     c.failed.Load(),
		RecordedAt: time.Now().UTC(),
	}
	c.mu.RLock()
	for k, n := range c.mapped {
		s.Mapped[k] = n.Load()
	}
	c.mu.RUnlock()
	if c.writes != nil {
		s.Writes = c.writes.Stats()
	}
	if c.reads != nil {
		s.Reads = c.reads.Stats()
	}
	if c.db != nil {
		d := c.db.Stats()
		s.DB = DBStats{Open: d.OpenConnections, InUse: d.InUse, Idle: d.Idle, WaitCount: d.WaitCount, WaitDuration: d.WaitDuration}
	}
	return s
}

// Latest is the last periodic sample, or nil before the first tick.
func (c *Collector) Latest() *Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

func (c *Collector) Start(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sample()
			}
		}
	}()

	c.log.Info("stats collector started", "interval", interval)
}

func (c *Collector) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Collector) sample() {
	s := c.Snapshot()
	c.mu.Lock()
	c.latest = s
	c.mu.Unlock()

	if s.Writes.Queued > 0 || s.Failed > 0 {
		c.log.Info("pipeline", "queued", s.Writes.Queued, "persisted", s.Persisted, "failed", s.Failed, "rejected", s.Writes.Rejected)
	}
}
