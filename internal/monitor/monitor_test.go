package monitor_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Raje0906/Tourist-Safety-sub001/internal/db"
	"github.com/Raje0906/Tourist-Safety-sub001/internal/feed"
	"github.com/Raje0906/Tourist-Safety-sub001/internal/monitor"
	"github.com/Raje0906/Tourist-Safety-sub001/internal/notify"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type captureBroadcaster struct {
	envs []feed.Envelope
}

func (c *captureBroadcaster) Broadcast(env feed.Envelope) {
	c.envs = append(c.envs, env)
}

type fixture struct {
	store *db.DB
	bc    *captureBroadcaster
	mon   *monitor.Monitor
	now   time.Time
}

func newFixture(t *testing.T, inactivity time.Duration) *fixture {
	t.Helper()
	store, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	f := &fixture{
		store: store,
		bc:    &captureBroadcaster{},
		now:   time.Now(),
	}
	notifier := notify.New(notify.Config{}, f.bc, discardLogger())
	f.mon = monitor.New(store, notifier, time.Minute, inactivity, discardLogger())
	f.mon.SetNow(func() time.Time { return f.now })
	return f
}

func (f *fixture) addTourist(t *testing.T, id string, status db.TouristStatus, createdAt time.Time) {
	t.Helper()
	tr := &db.Tourist{
		ID: id, Name: "Tourist " + id, DocumentNumber: "D-" + id,
		Status: status, CreatedAt: createdAt,
	}
	if err := f.store.SaveTourist(tr); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) addPing(t *testing.T, id string, lat, lng float64, at time.Time) {
	t.Helper()
	p := &db.LocationPing{TouristID: id, Lat: lat, Lng: lng, RecordedAt: at}
	if err := f.store.InsertLocationPing(p); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) anomalies(t *testing.T) []*db.AIAnomaly {
	t.Helper()
	anomalies, err := f.store.LoadAnomalies()
	if err != nil {
		t.Fatal(err)
	}
	return anomalies
}

func TestInactivityFlagged(t *testing.T) {
	f := newFixture(t, 30*time.Minute)
	f.addTourist(t, "t-1", db.TouristActive, f.now.Add(-2*time.Hour))
	f.addPing(t, "t-1", 26.14, 91.73, f.now.Add(-time.Hour))

	f.mon.RunOnce()

	anomalies := f.anomalies(t)
	if len(anomalies) != 1 {
		t.Fatalf("anomalies: %d", len(anomalies))
	}
	a := anomalies[0]
	if a.Kind != "inactivity" || a.TouristID != "t-1" || a.Status != db.AnomalyFlagged {
		t.Errorf("anomaly: %+v", a)
	}
	if len(f.bc.envs) != 1 || f.bc.envs[0].Kind != feed.KindAIAnomalyDetected {
		t.Errorf("broadcasts: %+v", f.bc.envs)
	}
}

func TestInactivityUsesRegistrationWhenNoPings(t *testing.T) {
	f := newFixture(t, 30*time.Minute)
	f.addTourist(t, "t-1", db.TouristActive, f.now.Add(-time.Hour))

	f.mon.RunOnce()

	if len(f.anomalies(t)) != 1 {
		t.Errorf("anomalies: %d", len(f.anomalies(t)))
	}
}

func TestRecentPingNotFlagged(t *testing.T) {
	f := newFixture(t, 30*time.Minute)
	f.addTourist(t, "t-1", db.TouristActive, f.now.Add(-2*time.Hour))
	f.addPing(t, "t-1", 26.14, 91.73, f.now.Add(-5*time.Minute))

	f.mon.RunOnce()

	if n := len(f.anomalies(t)); n != 0 {
		t.Errorf("anomalies: %d", n)
	}
}

func TestOpenAnomalyNotDuplicated(t *testing.T) {
	f := newFixture(t, 30*time.Minute)
	f.addTourist(t, "t-1", db.TouristActive, f.now.Add(-2*time.Hour))

	f.mon.RunOnce()
	f.mon.RunOnce()

	if n := len(f.anomalies(t)); n != 1 {
		t.Errorf("anomalies after two scans: %d", n)
	}
	if n := len(f.bc.envs); n != 1 {
		t.Errorf("broadcasts: %d", n)
	}
}

func TestReflaggedAfterDismissal(t *testing.T) {
	f := newFixture(t, 30*time.Minute)
	f.addTourist(t, "t-1", db.TouristActive, f.now.Add(-2*time.Hour))

	f.mon.RunOnce()
	anomalies := f.anomalies(t)
	if len(anomalies) != 1 {
		t.Fatalf("anomalies: %d", len(anomalies))
	}

	a := anomalies[0]
	a.Status = db.AnomalyDismissed
	if err := f.store.SaveAnomaly(a); err != nil {
		t.Fatal(err)
	}

	f.mon.RunOnce()
	if n := len(f.anomalies(t)); n != 2 {
		t.Errorf("anomalies after dismissal and re-scan: %d", n)
	}
}

func TestCheckedOutTouristSkipped(t *testing.T) {
	f := newFixture(t, 30*time.Minute)
	f.addTourist(t, "t-1", db.TouristCheckedOut, f.now.Add(-24*time.Hour))

	f.mon.RunOnce()

	if n := len(f.anomalies(t)); n != 0 {
		t.Errorf("checked-out tourist flagged: %d anomalies", n)
	}
}

func TestImplausibleSpeedFlagged(t *testing.T) {
	f := newFixture(t, 24*time.Hour)
	f.addTourist(t, "t-1", db.TouristActive, f.now.Add(-time.Hour))
	// Guwahati to Delhi in ten minutes.
	f.addPing(t, "t-1", 26.14, 91.73, f.now.Add(-10*time.Minute))
	f.addPing(t, "t-1", 28.61, 77.21, f.now)

	f.mon.RunOnce()

	anomalies := f.anomalies(t)
	if len(anomalies) != 1 {
		t.Fatalf("anomalies: %d", len(anomalies))
	}
	if anomalies[0].Kind != "implausible-speed" {
		t.Errorf("kind: %q", anomalies[0].Kind)
	}
}

func TestPlausibleSpeedNotFlagged(t *testing.T) {
	f := newFixture(t, 24*time.Hour)
	f.addTourist(t, "t-1", db.TouristActive, f.now.Add(-time.Hour))
	// A short walk.
	f.addPing(t, "t-1", 26.140, 91.730, f.now.Add(-10*time.Minute))
	f.addPing(t, "t-1", 26.142, 91.731, f.now)

	f.mon.RunOnce()

	if n := len(f.anomalies(t)); n != 0 {
		t.Errorf("anomalies: %d", n)
	}
}

func TestStartStop(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.mon.Start()
	f.mon.Stop()
}
