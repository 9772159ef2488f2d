package datastore

import (
	"context"
	"time"

	"github.com/edaschema/edaschema/internal/logger"
)

// poolSampleInterval is how often the SQL connection pool is sampled
const poolSampleInterval = 15 * time.Second

// PoolMonitor is implemented by backends that keep a connection pool
type PoolMonitor interface {
	MonitorPool(interval time.Duration, m *Metrics)
}

// MonitorPool samples the connection pool statistics every interval into m
// until the store is closed. Calls after the first are no-ops.
func (s *SQLStore) MonitorPool(interval time.Duration, m *Metrics) {
	s.mu.Lock()
	if s.stopMonitor != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.stopMonitor = cancel
	s.mu.Unlock()

	s.monitors.Go(func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		var waits int64
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				waits = s.samplePool(m, waits)
			}
		}
	})
}

func (s *SQLStore) stopPoolMonitor() {
	s.mu.Lock()
	stop := s.stopMonitor
	s.stopMonitor = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
		s.monitors.Wait()
	}
}

// samplePool records one sample and returns the cumulative wait count
func (s *SQLStore) samplePool(m *Metrics, lastWaits int64) int64 {
	db := s.DB()
	if db == nil {
		return lastWaits
	}
	sqlDB, err := db.DB()
	if err != nil {
		s.log.Warn("failed to get SQL DB for monitoring", logger.Error(err))
		return lastWaits
	}

	stats := sqlDB.Stats()
	newWaits := stats.WaitCount - lastWaits
	m.UpdateConnectionMetrics(s.dialect.name, stats.InUse, stats.Idle, stats.MaxOpenConnections, newWaits)

	s.log.Debug("connection pool statistics",
		logger.Int("open_connections", stats.OpenConnections),
		logger.Int("in_use", stats.InUse),
		logger.Int("idle", stats.Idle),
		logger.Int64("wait_count", stats.WaitCount),
		logger.Duration("wait_duration", stats.WaitDuration))
	if newWaits > 0 {
		s.log.Warn("connection pool experiencing waits",
			logger.Int64("new_waits", newWaits),
			logger.Duration("total_wait_duration", stats.WaitDuration))
	}
	return stats.WaitCount
}
