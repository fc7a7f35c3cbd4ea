package stats

import (
	"database/sql"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/reedfamily/chatlog/internal/pipeline"
	"github.com/stretchr/testify/require"
)

type fakePool pipeline.Stats

func (f fakePool) Stats() pipeline.Stats { return pipeline.Stats(f) }

type fakeDB sql.DBStats

func (f fakeDB) Stats() sql.DBStats { return sql.DBStats(f) }

func TestCollector_CountsAndSnapshots(t *testing.T) {
	req := require.New(t)
	c := NewCollector("survival", fakePool{Workers: 3, Queued: 2}, fakePool{Workers: 2}, fakeDB{OpenConnections: 1, InUse: 1},
		logs.GetLoggerFromLevel(slog.LevelDebug))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Mapped("chat")
			c.Persisted()
		}()
	}
	wg.Wait()
	c.Mapped("command")
	c.Declined()
	c.Failed()

	s := c.Snapshot()
	req.Equal("survival", s.Server)
	req.Equal(map[string]int64{"chat": 50, "command": 1}, s.Mapped)
	req.EqualValues(50, s.Persisted)
	req.EqualValues(1, s.Declined)
	req.EqualValues(1, s.Failed)
	req.Equal(3, s.Writes.Workers)
	req.Equal(2, s.Writes.Queued)
	req.Equal(1, s.DB.InUse)
}

func TestCollector_PeriodicSample(t *testing.T) {
	req := require.New(t)
	c := NewCollector("survival", nil, nil, nil, logs.GetLoggerFromLevel(slog.LevelDebug))
	req.Nil(c.Latest())

	c.Start(5 * time.Millisecond)
	defer c.Stop()
	req.Eventually(func() bool { return c.Latest() != nil }, time.Second, 5*time.Millisecond)
}
