// Package monitor watches recent location activity and flags anomalies.
package monitor

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Raje0906/Tourist-Safety-sub001/internal/db"
	"github.com/Raje0906/Tourist-Safety-sub001/internal/feed"
	"github.com/Raje0906/Tourist-Safety-sub001/internal/notify"
)

const (
	// maxPlausibleKmh is the speed above which consecutive pings are
	// treated as an anomaly (spoofed or hijacked device).
	maxPlausibleKmh = 300.0

	anomalyInactivity = "inactivity"
	anomalySpeed      = "implausible-speed"
)

type Monitor struct {
	db         *db.DB
	notifier   *notify.Notifier
	interval   time.Duration
	inactivity time.Duration
	now        func() time.Time
	stop       chan struct{}
	wg         sync.WaitGroup
	logger     *slog.Logger
}

func New(store *db.DB, notifier *notify.Notifier, interval, inactivity time.Duration, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		db:         store,
		notifier:   notifier,
		interval:   interval,
		inactivity: inactivity,
		now:        time.Now,
		stop:       make(chan struct{}),
		logger:     logger,
	}
}

// SetNow replaces the time source. Used in tests only.
func (m *Monitor) SetNow(fn func() time.Time) {
	m.now = fn
}

func (m *Monitor) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				m.RunOnce()
			}
		}
	}()
}

func (m *Monitor) Stop() {
	close(m.stop)
	m.wg.Wait()
}

// RunOnce performs one scan over all active tourists. A tourist with an
// anomaly of the same kind still open is not flagged again.
func (m *Monitor) RunOnce() {
	tourists, err := m.db.LoadTourists()
	if err != nil {
		m.logger.Debug("monitor: load tourists failed", "err", err)
		return
	}
	now := m.now()
	for _, t := range tourists {
		if t.Status == db.TouristCheckedOut {
			continue
		}
		m.checkInactivity(t, now)
		m.checkSpeed(t, now)
	}
}

func (m *Monitor) checkInactivity(t *db.Tourist, now time.Time) {
	ping, err := m.db.LatestLocationPing(t.ID)
	if err != nil {
		return
	}
	var last time.Time
	if ping != nil {
		last = ping.RecordedAt
	} else {
		last = t.CreatedAt
	}
	silent := now.Sub(last)
	if silent < m.inactivity {
		return
	}
	m.flag(t, anomalyInactivity,
		math.Min(silent.Hours()/24, 1.0),
		"no location ping for "+silent.Round(time.Minute).String(),
		now)
}

func (m *Monitor) checkSpeed(t *db.Tourist, now time.Time) {
	pings, err := m.db.RecentLocationPings(t.ID, 2)
	if err != nil || len(pings) < 2 {
		return
	}
	a, b := pings[1], pings[0] // chronological order
	dt := b.RecordedAt.Sub(a.RecordedAt)
	if dt <= 0 {
		return
	}
	km := haversineKm(a.Lat, a.Lng, b.Lat, b.Lng)
	kmh := km / dt.Hours()
	if kmh <= maxPlausibleKmh {
		return
	}
	m.flag(t, anomalySpeed,
		math.Min(kmh/(maxPlausibleKmh*4), 1.0),
		"moved at "+formatKmh(kmh),
		now)
}

func (m *Monitor) flag(t *db.Tourist, kind string, score float64, detail string, now time.Time) {
	open, err := m.db.OpenAnomaly(t.ID, kind)
	if err != nil || open != nil {
		return
	}
	a := &db.AIAnomaly{
		ID:         uuid.NewString(),
		TouristID:  t.ID,
		Kind:       kind,
		Score:      score,
		Detail:     detail,
		Status:     db.AnomalyFlagged,
		DetectedAt: now,
		UpdatedAt:  now,
	}
	if err := m.db.SaveAnomaly(a); err != nil {
		m.logger.Warn("monitor: save anomaly failed", "tourist", t.ID, "err", err)
		return
	}
	m.logger.Info("monitor: anomaly flagged",
		"tourist", t.ID, "kind", kind, "score", score)
	if m.notifier != nil {
		m.notifier.Notify(feed.KindAIAnomalyDetected, a)
	}
}

// haversineKm returns the great-circle distance between two points.
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKm = 6371.0
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

func formatKmh(kmh float64) string {
	return fmt.Sprintf("%.0f km/h between consecutive pings", kmh)
}
