// Package retention prunes aged location pings and dismissed anomalies so
// the store does not grow without bound.
package retention

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Raje0906/Tourist-Safety-sub001/internal/db"
)

type Pruner struct {
	db         *db.DB
	pingMaxAge time.Duration
	anomMaxAge time.Duration
	interval   time.Duration
	now        func() time.Time
	stop       chan struct{}
	wg         sync.WaitGroup
	logger     *slog.Logger
}

func New(store *db.DB, pingMaxAge, anomMaxAge time.Duration, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		db:         store,
		pingMaxAge: pingMaxAge,
		anomMaxAge: anomMaxAge,
		interval:   time.Hour,
		now:        time.Now,
		stop:       make(chan struct{}),
		logger:     logger,
	}
}

// SetNow replaces the time source. Used in tests.
func (p *Pruner) SetNow(fn func() time.Time) {
	p.now = fn
}

func (p *Pruner) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-ticker.C:
				p.RunOnce()
			}
		}
	}()
}

func (p *Pruner) Stop() {
	close(p.stop)
	p.wg.Wait()
}

// RunOnce performs a single prune cycle synchronously. Used in tests.
func (p *Pruner) RunOnce() {
	now := p.now()
	if n, err := p.db.DeleteLocationPingsBefore(now.Add(-p.pingMaxAge)); err != nil {
		p.logger.Warn("retention: prune pings failed", "err", err)
	} else if n > 0 {
		p.logger.Debug("retention: pruned location pings", "count", n)
	}
	if n, err := p.db.DeleteResolvedAnomaliesBefore(now.Add(-p.anomMaxAge)); err != nil {
		p.logger.Warn("retention: prune anomalies failed", "err", err)
	} else if n > 0 {
		p.logger.Debug("retention: pruned dismissed anomalies", "count", n)
	}
}
