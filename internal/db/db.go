package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}
	return &DB{sql: conn}, nil
}

func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) Migrate() error {
	stmts := []struct {
		name string
		ddl  string
	}{
		{"tourists", `
		CREATE TABLE IF NOT EXISTS tourists (
			id                TEXT PRIMARY KEY,
			name              TEXT NOT NULL,
			document_number   TEXT NOT NULL,
			nationality       TEXT NOT NULL DEFAULT '',
			phone             TEXT NOT NULL DEFAULT '',
			emergency_contact TEXT NOT NULL DEFAULT '',
			identity_hash     TEXT NOT NULL DEFAULT '',
			status            TEXT NOT NULL DEFAULT 'active',
			created_at        INTEGER NOT NULL
		)`},
		{"alerts", `
		CREATE TABLE IF NOT EXISTS alerts (
			id           TEXT PRIMARY KEY,
			tourist_id   TEXT NOT NULL REFERENCES tourists(id) ON DELETE CASCADE,
			type         TEXT NOT NULL,
			severity     TEXT NOT NULL DEFAULT 'low',
			message      TEXT NOT NULL DEFAULT '',
			lat          REAL NOT NULL DEFAULT 0,
			lng          REAL NOT NULL DEFAULT 0,
			acknowledged INTEGER NOT NULL DEFAULT 0,
			created_at   INTEGER NOT NULL
		)`},
		{"emergency_incidents", `
		CREATE TABLE IF NOT EXISTS emergency_incidents (
			id                    TEXT PRIMARY KEY,
			tourist_id            TEXT NOT NULL REFERENCES tourists(id) ON DELETE CASCADE,
			type                  TEXT NOT NULL,
			status                TEXT NOT NULL DEFAULT 'open',
			description           TEXT NOT NULL DEFAULT '',
			lat                   REAL NOT NULL DEFAULT 0,
			lng                   REAL NOT NULL DEFAULT 0,
			assigned_authority_id TEXT NOT NULL DEFAULT '',
			opened_at             INTEGER NOT NULL,
			updated_at            INTEGER NOT NULL
		)`},
		{"location_pings", `
		CREATE TABLE IF NOT EXISTS location_pings (
			id          INTEGER PRIMARY KEY,
			tourist_id  TEXT NOT NULL REFERENCES tourists(id) ON DELETE CASCADE,
			lat         REAL NOT NULL,
			lng         REAL NOT NULL,
			recorded_at INTEGER NOT NULL
		)`},
		{"ai_anomalies", `
		CREATE TABLE IF NOT EXISTS ai_anomalies (
			id          TEXT PRIMARY KEY,
			tourist_id  TEXT NOT NULL REFERENCES tourists(id) ON DELETE CASCADE,
			kind        TEXT NOT NULL,
			score       REAL NOT NULL DEFAULT 0,
			detail      TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL DEFAULT 'flagged',
			detected_at INTEGER NOT NULL,
			updated_at  INTEGER NOT NULL
		)`},
		{"efirs", `
		CREATE TABLE IF NOT EXISTS efirs (
			id          TEXT PRIMARY KEY,
			incident_id TEXT NOT NULL DEFAULT '',
			tourist_id  TEXT NOT NULL REFERENCES tourists(id) ON DELETE CASCADE,
			fir_number  TEXT NOT NULL,
			narrative   TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL DEFAULT 'filed',
			filed_at    INTEGER NOT NULL,
			updated_at  INTEGER NOT NULL
		)`},
		{"authorities", `
		CREATE TABLE IF NOT EXISTS authorities (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			kind       TEXT NOT NULL DEFAULT '',
			district   TEXT NOT NULL DEFAULT '',
			phone      TEXT NOT NULL DEFAULT '',
			active     INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`},
		{"accounts", `
		CREATE TABLE IF NOT EXISTS accounts (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    INTEGER NOT NULL
		)`},
		{"refresh_tokens", `
		CREATE TABLE IF NOT EXISTS refresh_tokens (
			token      TEXT PRIMARY KEY,
			account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			expires_at INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`},
	}
	for _, s := range stmts {
		if _, err := d.sql.Exec(s.ddl); err != nil {
			return fmt.Errorf("create %s: %w", s.name, err)
		}
	}
	if _, err := d.sql.Exec(`CREATE INDEX IF NOT EXISTS idx_location_pings_tourist ON location_pings(tourist_id, recorded_at DESC)`); err != nil {
		return fmt.Errorf("index location_pings: %w", err)
	}
	if _, err := d.sql.Exec(`CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(created_at DESC)`); err != nil {
		return fmt.Errorf("index alerts: %w", err)
	}
	return nil
}

// rowScanner is implemented by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// --- tourists ---

func (d *DB) SaveTourist(t *Tourist) error {
	_, err := d.sql.Exec(`
		INSERT OR REPLACE INTO tourists (
			id, name, document_number, nationality, phone,
			emergency_contact, identity_hash, status, created_at
		) VALUES (?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Name, t.DocumentNumber, t.Nationality, t.Phone,
		t.EmergencyContact, t.IdentityHash, string(t.Status), t.CreatedAt.UnixMilli(),
	)
	return err
}

func (d *DB) GetTourist(id string) (*Tourist, error) {
	row := d.sql.QueryRow(`
		SELECT id, name, document_number, nationality, phone,
			emergency_contact, identity_hash, status, created_at
		FROM tourists WHERE id = ?`, id)
	return scanTourist(row)
}

func (d *DB) LoadTourists() ([]*Tourist, error) {
	rows, err := d.sql.Query(`
		SELECT id, name, document_number, nationality, phone,
			emergency_contact, identity_hash, status, created_at
		FROM tourists ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tourists []*Tourist
	for rows.Next() {
		t, err := scanTourist(rows)
		if err != nil {
			return nil, err
		}
		tourists = append(tourists, t)
	}
	return tourists, rows.Err()
}

func (d *DB) UpdateTouristStatus(id string, status TouristStatus) error {
	_, err := d.sql.Exec("UPDATE tourists SET status = ? WHERE id = ?", string(status), id)
	return err
}

func scanTourist(row rowScanner) (*Tourist, error) {
	var t Tourist
	var status string
	var createdAt int64
	err := row.Scan(
		&t.ID, &t.Name, &t.DocumentNumber, &t.Nationality, &t.Phone,
		&t.EmergencyContact, &t.IdentityHash, &status, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = TouristStatus(status)
	t.CreatedAt = time.UnixMilli(createdAt)
	return &t, nil
}

// --- alerts ---

func (d *DB) SaveAlert(a *Alert) error {
	_, err := d.sql.Exec(`
		INSERT OR REPLACE INTO alerts (
			id, tourist_id, type, severity, message, lat, lng, acknowledged, created_at
		) VALUES (?,?,?,?,?,?,?,?,?)`,
		a.ID, a.TouristID, a.Type, string(a.Severity), a.Message,
		a.Lat, a.Lng, boolToInt(a.Acknowledged), a.CreatedAt.UnixMilli(),
	)
	return err
}

func (d *DB) GetAlert(id string) (*Alert, error) {
	row := d.sql.QueryRow(`
		SELECT id, tourist_id, type, severity, message, lat, lng, acknowledged, created_at
		FROM alerts WHERE id = ?`, id)
	return scanAlert(row)
}

func (d *DB) LoadAlerts(limit int) ([]*Alert, error) {
	rows, err := d.sql.Query(`
		SELECT id, tourist_id, type, severity, message, lat, lng, acknowledged, created_at
		FROM alerts ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var alerts []*Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (d *DB) SetAlertAcknowledged(id string, ack bool) error {
	_, err := d.sql.Exec("UPDATE alerts SET acknowledged = ? WHERE id = ?", boolToInt(ack), id)
	return err
}

func scanAlert(row rowScanner) (*Alert, error) {
	var a Alert
	var severity string
	var ack int
	var createdAt int64
	err := row.Scan(&a.ID, &a.TouristID, &a.Type, &severity, &a.Message,
		&a.Lat, &a.Lng, &ack, &createdAt)
	if err != nil {
		return nil, err
	}
	a.Severity = AlertSeverity(severity)
	a.Acknowledged = ack == 1
	a.CreatedAt = time.UnixMilli(createdAt)
	return &a, nil
}

// --- emergency incidents ---

func (d *DB) SaveIncident(i *EmergencyIncident) error {
	_, err := d.sql.Exec(`
		INSERT OR REPLACE INTO emergency_incidents (
			id, tourist_id, type, status, description, lat, lng,
			assigned_authority_id, opened_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		i.ID, i.TouristID, i.Type, string(i.Status), i.Description, i.Lat, i.Lng,
		i.AssignedAuthorityID, i.OpenedAt.UnixMilli(), i.UpdatedAt.UnixMilli(),
	)
	return err
}

func (d *DB) GetIncident(id string) (*EmergencyIncident, error) {
	row := d.sql.QueryRow(`
		SELECT id, tourist_id, type, status, description, lat, lng,
			assigned_authority_id, opened_at, updated_at
		FROM emergency_incidents WHERE id = ?`, id)
	return scanIncident(row)
}

func (d *DB) LoadIncidents() ([]*EmergencyIncident, error) {
	rows, err := d.sql.Query(`
		SELECT id, tourist_id, type, status, description, lat, lng,
			assigned_authority_id, opened_at, updated_at
		FROM emergency_incidents ORDER BY opened_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var incidents []*EmergencyIncident
	for rows.Next() {
		i, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		incidents = append(incidents, i)
	}
	return incidents, rows.Err()
}

func scanIncident(row rowScanner) (*EmergencyIncident, error) {
	var i EmergencyIncident
	var status string
	var openedAt, updatedAt int64
	err := row.Scan(&i.ID, &i.TouristID, &i.Type, &status, &i.Description,
		&i.Lat, &i.Lng, &i.AssignedAuthorityID, &openedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	i.Status = IncidentStatus(status)
	i.OpenedAt = time.UnixMilli(openedAt)
	i.UpdatedAt = time.UnixMilli(updatedAt)
	return &i, nil
}

// --- location pings ---

func (d *DB) InsertLocationPing(p *LocationPing) error {
	_, err := d.sql.Exec(`
		INSERT INTO location_pings (tourist_id, lat, lng, recorded_at)
		VALUES (?,?,?,?)`,
		p.TouristID, p.Lat, p.Lng, p.RecordedAt.UnixMilli(),
	)
	return err
}

// LatestLocationPing returns nil, nil when the tourist has no pings yet.
func (d *DB) LatestLocationPing(touristID string) (*LocationPing, error) {
	row := d.sql.QueryRow(`
		SELECT id, tourist_id, lat, lng, recorded_at
		FROM location_pings WHERE tourist_id = ?
		ORDER BY recorded_at DESC, id DESC LIMIT 1`, touristID)
	p, err := scanPing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (d *DB) RecentLocationPings(touristID string, limit int) ([]*LocationPing, error) {
	rows, err := d.sql.Query(`
		SELECT id, tourist_id, lat, lng, recorded_at
		FROM location_pings WHERE tourist_id = ?
		ORDER BY recorded_at DESC, id DESC LIMIT ?`, touristID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pings []*LocationPing
	for rows.Next() {
		p, err := scanPing(rows)
		if err != nil {
			return nil, err
		}
		pings = append(pings, p)
	}
	return pings, rows.Err()
}

func (d *DB) DeleteLocationPingsBefore(cutoff time.Time) (int64, error) {
	res, err := d.sql.Exec("DELETE FROM location_pings WHERE recorded_at < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanPing(row rowScanner) (*LocationPing, error) {
	var p LocationPing
	var recordedAt int64
	if err := row.Scan(&p.ID, &p.TouristID, &p.Lat, &p.Lng, &recordedAt); err != nil {
		return nil, err
	}
	p.RecordedAt = time.UnixMilli(recordedAt)
	return &p, nil
}

// --- AI anomalies ---

func (d *DB) SaveAnomaly(a *AIAnomaly) error {
	_, err := d.sql.Exec(`
		INSERT OR REPLACE INTO ai_anomalies (
			id, tourist_id, kind, score, detail, status, detected_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?)`,
		a.ID, a.TouristID, a.Kind, a.Score, a.Detail, string(a.Status),
		a.DetectedAt.UnixMilli(), a.UpdatedAt.UnixMilli(),
	)
	return err
}

func (d *DB) GetAnomaly(id string) (*AIAnomaly, error) {
	row := d.sql.QueryRow(`
		SELECT id, tourist_id, kind, score, detail, status, detected_at, updated_at
		FROM ai_anomalies WHERE id = ?`, id)
	return scanAnomaly(row)
}

func (d *DB) LoadAnomalies() ([]*AIAnomaly, error) {
	rows, err := d.sql.Query(`
		SELECT id, tourist_id, kind, score, detail, status, detected_at, updated_at
		FROM ai_anomalies ORDER BY detected_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var anomalies []*AIAnomaly
	for rows.Next() {
		a, err := scanAnomaly(rows)
		if err != nil {
			return nil, err
		}
		anomalies = append(anomalies, a)
	}
	return anomalies, rows.Err()
}

// OpenAnomaly returns the most recent non-dismissed anomaly of kind for a
// tourist, or nil when there is none.
func (d *DB) OpenAnomaly(touristID, kind string) (*AIAnomaly, error) {
	row := d.sql.QueryRow(`
		SELECT id, tourist_id, kind, score, detail, status, detected_at, updated_at
		FROM ai_anomalies
		WHERE tourist_id = ? AND kind = ? AND status IN ('flagged','reviewing','confirmed')
		ORDER BY detected_at DESC LIMIT 1`, touristID, kind)
	a, err := scanAnomaly(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func (d *DB) DeleteResolvedAnomaliesBefore(cutoff time.Time) (int64, error) {
	res, err := d.sql.Exec(
		"DELETE FROM ai_anomalies WHERE status = 'dismissed' AND updated_at < ?",
		cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanAnomaly(row rowScanner) (*AIAnomaly, error) {
	var a AIAnomaly
	var status string
	var detectedAt, updatedAt int64
	err := row.Scan(&a.ID, &a.TouristID, &a.Kind, &a.Score, &a.Detail,
		&status, &detectedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	a.Status = AnomalyStatus(status)
	a.DetectedAt = time.UnixMilli(detectedAt)
	a.UpdatedAt = time.UnixMilli(updatedAt)
	return &a, nil
}

// --- eFIRs ---

func (d *DB) SaveEFIR(e *EFIR) error {
	_, err := d.sql.Exec(`
		INSERT OR REPLACE INTO efirs (
			id, incident_id, tourist_id, fir_number, narrative, status, filed_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?)`,
		e.ID, e.IncidentID, e.TouristID, e.FIRNumber, e.Narrative, string(e.Status),
		e.FiledAt.UnixMilli(), e.UpdatedAt.UnixMilli(),
	)
	return err
}

func (d *DB) GetEFIR(id string) (*EFIR, error) {
	row := d.sql.QueryRow(`
		SELECT id, incident_id, tourist_id, fir_number, narrative, status, filed_at, updated_at
		FROM efirs WHERE id = ?`, id)
	return scanEFIR(row)
}

func (d *DB) LoadEFIRs() ([]*EFIR, error) {
	rows, err := d.sql.Query(`
		SELECT id, incident_id, tourist_id, fir_number, narrative, status, filed_at, updated_at
		FROM efirs ORDER BY filed_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var efirs []*EFIR
	for rows.Next() {
		e, err := scanEFIR(rows)
		if err != nil {
			return nil, err
		}
		efirs = append(efirs, e)
	}
	return efirs, rows.Err()
}

func scanEFIR(row rowScanner) (*EFIR, error) {
	var e EFIR
	var status string
	var filedAt, updatedAt int64
	err := row.Scan(&e.ID, &e.IncidentID, &e.TouristID, &e.FIRNumber,
		&e.Narrative, &status, &filedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	e.Status = EFIRStatus(status)
	e.FiledAt = time.UnixMilli(filedAt)
	e.UpdatedAt = time.UnixMilli(updatedAt)
	return &e, nil
}

// --- authorities ---

func (d *DB) SaveAuthority(a *Authority) error {
	_, err := d.sql.Exec(`
		INSERT OR REPLACE INTO authorities (
			id, name, kind, district, phone, active, created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?)`,
		a.ID, a.Name, a.Kind, a.District, a.Phone, boolToInt(a.Active),
		a.CreatedAt.UnixMilli(), a.UpdatedAt.UnixMilli(),
	)
	return err
}

func (d *DB) GetAuthority(id string) (*Authority, error) {
	row := d.sql.QueryRow(`
		SELECT id, name, kind, district, phone, active, created_at, updated_at
		FROM authorities WHERE id = ?`, id)
	return scanAuthority(row)
}

func (d *DB) LoadAuthorities() ([]*Authority, error) {
	rows, err := d.sql.Query(`
		SELECT id, name, kind, district, phone, active, created_at, updated_at
		FROM authorities ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var authorities []*Authority
	for rows.Next() {
		a, err := scanAuthority(rows)
		if err != nil {
			return nil, err
		}
		authorities = append(authorities, a)
	}
	return authorities, rows.Err()
}

func scanAuthority(row rowScanner) (*Authority, error) {
	var a Authority
	var active int
	var createdAt, updatedAt int64
	err := row.Scan(&a.ID, &a.Name, &a.Kind, &a.District, &a.Phone,
		&active, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	a.Active = active == 1
	a.CreatedAt = time.UnixMilli(createdAt)
	a.UpdatedAt = time.UnixMilli(updatedAt)
	return &a, nil
}

// --- accounts & refresh tokens ---

func (d *DB) CreateAccount(username, passwordHash string) (*Account, error) {
	acc := &Account{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	_, err := d.sql.Exec(`
		INSERT INTO accounts (id, username, password_hash, created_at)
		VALUES (?,?,?,?)`,
		acc.ID, acc.Username, acc.PasswordHash, acc.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func (d *DB) GetAccountByUsername(username string) (*Account, error) {
	var acc Account
	var createdAt int64
	err := d.sql.QueryRow(`
		SELECT id, username, password_hash, created_at
		FROM accounts WHERE username = ?`, username).
		Scan(&acc.ID, &acc.Username, &acc.PasswordHash, &createdAt)
	if err != nil {
		return nil, err
	}
	acc.CreatedAt = time.UnixMilli(createdAt)
	return &acc, nil
}

func (d *DB) GetAccountByID(id string) (*Account, error) {
	var acc Account
	var createdAt int64
	err := d.sql.QueryRow(`
		SELECT id, username, password_hash, created_at
		FROM accounts WHERE id = ?`, id).
		Scan(&acc.ID, &acc.Username, &acc.PasswordHash, &createdAt)
	if err != nil {
		return nil, err
	}
	acc.CreatedAt = time.UnixMilli(createdAt)
	return &acc, nil
}

func (d *DB) UpdateAccountPassword(id, passwordHash string) error {
	_, err := d.sql.Exec("UPDATE accounts SET password_hash = ? WHERE id = ?", passwordHash, id)
	return err
}

func (d *DB) CreateRefreshToken(token, accountID string, expiresAt time.Time) error {
	_, err := d.sql.Exec(`
		INSERT INTO refresh_tokens (token, account_id, expires_at, created_at)
		VALUES (?,?,?,?)`,
		token, accountID, expiresAt.UnixMilli(), time.Now().UnixMilli(),
	)
	return err
}

func (d *DB) GetRefreshToken(token string) (*RefreshToken, error) {
	var rt RefreshToken
	var expiresAt, createdAt int64
	err := d.sql.QueryRow(`
		SELECT token, account_id, expires_at, created_at
		FROM refresh_tokens WHERE token = ?`, token).
		Scan(&rt.Token, &rt.AccountID, &expiresAt, &createdAt)
	if err != nil {
		return nil, err
	}
	rt.ExpiresAt = time.UnixMilli(expiresAt)
	rt.CreatedAt = time.UnixMilli(createdAt)
	return &rt, nil
}

func (d *DB) DeleteRefreshToken(token string) error {
	_, err := d.sql.Exec("DELETE FROM refresh_tokens WHERE token = ?", token)
	return err
}

func (d *DB) DeleteRefreshTokensByAccount(accountID string) error {
	_, err := d.sql.Exec("DELETE FROM refresh_tokens WHERE account_id = ?", accountID)
	return err
}
