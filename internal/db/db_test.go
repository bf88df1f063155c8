package db_test

import (
	"testing"
	"time"

	"github.com/Raje0906/Tourist-Safety-sub001/internal/db"
)

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
	return d
}

func seedTourist(t *testing.T, d *db.DB, id string) {
	t.Helper()
	tr := &db.Tourist{
		ID: id, Name: "Tourist " + id, DocumentNumber: "D-" + id,
		Status: db.TouristActive, CreatedAt: time.Now(),
	}
	if err := d.SaveTourist(tr); err != nil {
		t.Fatalf("seed tourist: %v", err)
	}
}

func TestTouristRoundTrip(t *testing.T) {
	d := openTestDB(t)
	tr := &db.Tourist{
		ID:             "t-1",
		Name:           "Asha Verma",
		DocumentNumber: "P1234567",
		Nationality:    "IN",
		Status:         db.TouristActive,
		CreatedAt:      time.Now(),
	}
	if err := d.SaveTourist(tr); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := d.GetTourist("t-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != tr.Name || got.DocumentNumber != tr.DocumentNumber || got.Status != db.TouristActive {
		t.Errorf("round trip mismatch: %+v", got)
	}

	if err := d.UpdateTouristStatus("t-1", db.TouristDistressed); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, _ = d.GetTourist("t-1")
	if got.Status != db.TouristDistressed {
		t.Errorf("status: %q", got.Status)
	}

	tourists, err := d.LoadTourists()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(tourists) != 1 {
		t.Errorf("count: %d", len(tourists))
	}
}

func TestUpdateTouristStatusClosedStore(t *testing.T) {
	d := openTestDB(t)
	seedTourist(t, d, "t-1")
	d.Close()
	if err := d.UpdateTouristStatus("t-1", db.TouristDistressed); err == nil {
		t.Error("expected error from closed store")
	}
}

func TestSaveTouristUpsert(t *testing.T) {
	d := openTestDB(t)
	tr := &db.Tourist{ID: "t-1", Name: "Old", DocumentNumber: "D1", Status: db.TouristActive, CreatedAt: time.Now()}
	if err := d.SaveTourist(tr); err != nil {
		t.Fatal(err)
	}
	tr.Name = "New"
	if err := d.SaveTourist(tr); err != nil {
		t.Fatal(err)
	}
	got, _ := d.GetTourist("t-1")
	if got.Name != "New" {
		t.Errorf("name: %q", got.Name)
	}
	tourists, _ := d.LoadTourists()
	if len(tourists) != 1 {
		t.Errorf("upsert duplicated row: %d", len(tourists))
	}
}

func TestGetTouristMissing(t *testing.T) {
	d := openTestDB(t)
	if _, err := d.GetTourist("nope"); err == nil {
		t.Error("expected error for missing tourist")
	}
}

func TestAlertAcknowledge(t *testing.T) {
	d := openTestDB(t)
	seedTourist(t, d, "t-1")
	a := &db.Alert{
		ID: "a-1", TouristID: "t-1", Type: "sos",
		Severity: db.SeverityHigh, CreatedAt: time.Now(),
	}
	if err := d.SaveAlert(a); err != nil {
		t.Fatal(err)
	}
	got, err := d.GetAlert("a-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Acknowledged {
		t.Error("new alert already acknowledged")
	}
	if err := d.SetAlertAcknowledged("a-1", true); err != nil {
		t.Fatal(err)
	}
	got, _ = d.GetAlert("a-1")
	if !got.Acknowledged {
		t.Error("acknowledge did not stick")
	}
}

func TestLoadAlertsNewestFirstWithLimit(t *testing.T) {
	d := openTestDB(t)
	seedTourist(t, d, "t-1")
	base := time.Now()
	for i := 0; i < 5; i++ {
		a := &db.Alert{
			ID: string(rune('a' + i)), TouristID: "t-1", Type: "sos",
			Severity: db.SeverityLow, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := d.SaveAlert(a); err != nil {
			t.Fatal(err)
		}
	}
	alerts, err := d.LoadAlerts(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 3 {
		t.Fatalf("count: %d", len(alerts))
	}
	if alerts[0].ID != "e" || alerts[2].ID != "c" {
		t.Errorf("ordering: %s, %s, %s", alerts[0].ID, alerts[1].ID, alerts[2].ID)
	}
}

func TestIncidentRoundTrip(t *testing.T) {
	d := openTestDB(t)
	seedTourist(t, d, "t-1")
	now := time.Now()
	i := &db.EmergencyIncident{
		ID: "i-1", TouristID: "t-1", Type: "panic-button",
		Status: db.IncidentOpen, OpenedAt: now, UpdatedAt: now,
	}
	if err := d.SaveIncident(i); err != nil {
		t.Fatal(err)
	}
	i.Status = db.IncidentResponded
	i.AssignedAuthorityID = "auth-1"
	if err := d.SaveIncident(i); err != nil {
		t.Fatal(err)
	}
	got, err := d.GetIncident("i-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != db.IncidentResponded || got.AssignedAuthorityID != "auth-1" {
		t.Errorf("mismatch: %+v", got)
	}
}

func TestLocationPings(t *testing.T) {
	d := openTestDB(t)
	seedTourist(t, d, "t-1")
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		p := &db.LocationPing{
			TouristID: "t-1", Lat: 26.0 + float64(i), Lng: 91.0,
			RecordedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := d.InsertLocationPing(p); err != nil {
			t.Fatal(err)
		}
	}

	latest, err := d.LatestLocationPing("t-1")
	if err != nil {
		t.Fatal(err)
	}
	if latest.Lat != 29.0 {
		t.Errorf("latest lat: %v", latest.Lat)
	}

	recent, err := d.RecentLocationPings("t-1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("count: %d", len(recent))
	}
	// Newest first.
	if recent[0].Lat != 29.0 || recent[1].Lat != 28.0 {
		t.Errorf("ordering: %v, %v", recent[0].Lat, recent[1].Lat)
	}

	deleted, err := d.DeleteLocationPingsBefore(base.Add(2*time.Minute + time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 3 {
		t.Errorf("deleted: %d", deleted)
	}
	recent, _ = d.RecentLocationPings("t-1", 10)
	if len(recent) != 1 {
		t.Errorf("remaining: %d", len(recent))
	}
}

func TestLatestLocationPingEmpty(t *testing.T) {
	d := openTestDB(t)
	seedTourist(t, d, "t-1")
	p, err := d.LatestLocationPing("t-1")
	if err != nil {
		t.Fatal(err)
	}
	if p != nil {
		t.Errorf("unexpected ping: %+v", p)
	}
}

func TestOpenAnomalyDedupe(t *testing.T) {
	d := openTestDB(t)
	seedTourist(t, d, "t-1")
	now := time.Now()
	a := &db.AIAnomaly{
		ID: "an-1", TouristID: "t-1", Kind: "inactivity",
		Status: db.AnomalyFlagged, DetectedAt: now, UpdatedAt: now,
	}
	if err := d.SaveAnomaly(a); err != nil {
		t.Fatal(err)
	}

	open, err := d.OpenAnomaly("t-1", "inactivity")
	if err != nil {
		t.Fatal(err)
	}
	if open == nil || open.ID != "an-1" {
		t.Fatalf("open anomaly: %+v", open)
	}

	// Dismissed anomalies are no longer open.
	a.Status = db.AnomalyDismissed
	if err := d.SaveAnomaly(a); err != nil {
		t.Fatal(err)
	}
	open, err = d.OpenAnomaly("t-1", "inactivity")
	if err != nil {
		t.Fatal(err)
	}
	if open != nil {
		t.Errorf("dismissed anomaly still open: %+v", open)
	}

	// No match for a different kind.
	open, err = d.OpenAnomaly("t-1", "implausible-speed")
	if err != nil {
		t.Fatal(err)
	}
	if open != nil {
		t.Errorf("unexpected match: %+v", open)
	}
}

func TestDeleteResolvedAnomalies(t *testing.T) {
	d := openTestDB(t)
	seedTourist(t, d, "t-1")
	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()

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
	save("old-flagged", db.AnomalyFlagged, old)
	save("new-dismissed", db.AnomalyDismissed, recent)

	deleted, err := d.DeleteResolvedAnomaliesBefore(time.Now().Add(-24 * time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Errorf("deleted: %d", deleted)
	}
	anomalies, _ := d.LoadAnomalies()
	if len(anomalies) != 2 {
		t.Errorf("remaining: %d", len(anomalies))
	}
	if _, err := d.GetAnomaly("old-flagged"); err != nil {
		t.Error("unresolved anomaly was pruned")
	}
}

func TestEFIRRoundTrip(t *testing.T) {
	d := openTestDB(t)
	seedTourist(t, d, "t-1")
	now := time.Now()
	e := &db.EFIR{
		ID: "e-1", IncidentID: "i-1", TouristID: "t-1",
		FIRNumber: "FIR/2026/0042", Narrative: "report",
		Status: db.EFIRFiled, FiledAt: now, UpdatedAt: now,
	}
	if err := d.SaveEFIR(e); err != nil {
		t.Fatal(err)
	}
	e.Status = db.EFIRUnderReview
	if err := d.SaveEFIR(e); err != nil {
		t.Fatal(err)
	}
	got, err := d.GetEFIR("e-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != db.EFIRUnderReview || got.FIRNumber != "FIR/2026/0042" {
		t.Errorf("mismatch: %+v", got)
	}
}

func TestAuthorityRoundTrip(t *testing.T) {
	d := openTestDB(t)
	now := time.Now()
	a := &db.Authority{
		ID: "auth-1", Name: "Kamrup Police", Kind: "police",
		District: "Kamrup", Active: true, CreatedAt: now, UpdatedAt: now,
	}
	if err := d.SaveAuthority(a); err != nil {
		t.Fatal(err)
	}
	a.Active = false
	if err := d.SaveAuthority(a); err != nil {
		t.Fatal(err)
	}
	got, err := d.GetAuthority("auth-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Active {
		t.Error("active flag did not persist")
	}
	all, _ := d.LoadAuthorities()
	if len(all) != 1 {
		t.Errorf("count: %d", len(all))
	}
}

func TestAccounts(t *testing.T) {
	d := openTestDB(t)
	acc, err := d.CreateAccount("operator", "hash-1")
	if err != nil {
		t.Fatal(err)
	}
	if acc.ID == "" {
		t.Fatal("no id assigned")
	}

	byName, err := d.GetAccountByUsername("operator")
	if err != nil {
		t.Fatal(err)
	}
	if byName.ID != acc.ID || byName.PasswordHash != "hash-1" {
		t.Errorf("mismatch: %+v", byName)
	}

	byID, err := d.GetAccountByID(acc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if byID.Username != "operator" {
		t.Errorf("username: %q", byID.Username)
	}

	if err := d.UpdateAccountPassword(acc.ID, "hash-2"); err != nil {
		t.Fatal(err)
	}
	byName, _ = d.GetAccountByUsername("operator")
	if byName.PasswordHash != "hash-2" {
		t.Errorf("hash: %q", byName.PasswordHash)
	}

	if _, err := d.CreateAccount("operator", "hash-3"); err == nil {
		t.Error("duplicate username accepted")
	}
}

func TestRefreshTokens(t *testing.T) {
	d := openTestDB(t)
	acc, err := d.CreateAccount("operator", "hash")
	if err != nil {
		t.Fatal(err)
	}

	exp := time.Now().Add(time.Hour)
	if err := d.CreateRefreshToken("tok-1", acc.ID, exp); err != nil {
		t.Fatal(err)
	}
	if err := d.CreateRefreshToken("tok-2", acc.ID, exp); err != nil {
		t.Fatal(err)
	}

	rt, err := d.GetRefreshToken("tok-1")
	if err != nil {
		t.Fatal(err)
	}
	if rt.AccountID != acc.ID {
		t.Errorf("account: %q", rt.AccountID)
	}

	if err := d.DeleteRefreshToken("tok-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := d.GetRefreshToken("tok-1"); err == nil {
		t.Error("deleted token still readable")
	}

	if err := d.DeleteRefreshTokensByAccount(acc.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := d.GetRefreshToken("tok-2"); err == nil {
		t.Error("account-wide delete missed a token")
	}
}
