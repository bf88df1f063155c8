package retention_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Raje0906/Tourist-Safety-sub001/internal/db"
	"github.com/Raje0906/Tourist-Safety-sub001/internal/retention"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := d.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	tr := &db.Tourist{
		ID: "t-1", Name: "T", DocumentNumber: "D1",
		Status: db.TouristActive, CreatedAt: time.Now(),
	}
	if err := d.SaveTourist(tr); err != nil {
		t.Fatal(err)
	}
	return d
}

func TestPrunesAgedPings(t *testing.T) {
	d := openTestDB(t)
	now := time.Now()

	for _, at := range []time.Time{
		now.Add(-40 * 24 * time.Hour),
		now.Add(-31 * 24 * time.Hour),
		now.Add(-time.Hour),
	} {
		p := &db.LocationPing{TouristID: "t-1", Lat: 26.14, Lng: 91.73, RecordedAt: at}
		if err := d.InsertLocationPing(p); err != nil {
			t.Fatal(err)
		}
	}

	pruner := retention.New(d, 30*24*time.Hour, 90*24*time.Hour, discardLogger())
	pruner.SetNow(func() time.Time { return now })
	pruner.RunOnce()

	pings, err := d.RecentLocationPings("t-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pings) != 1 {
		t.Fatalf("remaining pings: %d", len(pings))
	}
	if !pings[0].RecordedAt.After(now.Add(-2 * time.Hour)) {
		t.Errorf("wrong ping kept: %v", pings[0].RecordedAt)
	}
}

func TestPrunesOnlyDismissedAnomalies(t *testing.T) {
	d := openTestDB(t)
	now := time.Now()
	old := now.Add(-100 * 24 * time.Hour)

	save := func(id string, status db.AnomalyStatus, at time.Time) {
		t.Helper()
		a := &db.AIAnomaly{
			ID: id, TouristID: "t-1", Kind: "inactivity",
			Status: status, DetectedAt: at, UpdatedAt: at,
		}
		if err := d.SaveAnomaly(a); err != nil {
			t.Fatal(err)
		}
	}
	save("old-dismissed", db.AnomalyDismissed, old)
	save("old-confirmed", db.AnomalyConfirmed, old)
	save("new-dismissed", db.AnomalyDismissed, now)

	pruner := retention.New(d, 30*24*time.Hour, 90*24*time.Hour, discardLogger())
	pruner.SetNow(func() time.Time { return now })
	pruner.RunOnce()

	anomalies, err := d.LoadAnomalies()
	if err != nil {
		t.Fatal(err)
	}
	if len(anomalies) != 2 {
		t.Fatalf("remaining anomalies: %d", len(anomalies))
	}
	if _, err := d.GetAnomaly("old-dismissed"); err == nil {
		t.Error("aged dismissed anomaly survived")
	}
	if _, err := d.GetAnomaly("old-confirmed"); err != nil {
		t.Error("confirmed anomaly was pruned")
	}
}

func TestStartStop(t *testing.T) {
	d := openTestDB(t)
	pruner := retention.New(d, time.Hour, time.Hour, discardLogger())
	pruner.Start()
	pruner.Stop()
}
