package webserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Raje0906/Tourist-Safety-sub001/internal/db"
	"github.com/Raje0906/Tourist-Safety-sub001/internal/feed"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// --- tourists ---

func (s *Server) handleCreateTourist(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name             string `json:"name"`
		DocumentNumber   string `json:"documentNumber"`
		Nationality      string `json:"nationality"`
		Phone            string `json:"phone"`
		EmergencyContact string `json:"emergencyContact"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if body.Name == "" || body.DocumentNumber == "" {
		http.Error(w, "name and documentNumber are required", 400)
		return
	}

	t := &db.Tourist{
		ID:               uuid.NewString(),
		Name:             body.Name,
		DocumentNumber:   body.DocumentNumber,
		Nationality:      body.Nationality,
		Phone:            body.Phone,
		EmergencyContact: body.EmergencyContact,
		Status:           db.TouristActive,
		CreatedAt:        time.Now(),
	}

	// Notarization is an external side-call; intake never fails on it.
	if hash, err := s.notary.NotarizeIdentity(r.Context(), t.ID, t.Name, t.DocumentNumber, t.Nationality); err != nil {
		s.logger.Warn("notary call failed", "tourist", t.ID, "err", err)
	} else {
		t.IdentityHash = hash
	}

	if err := s.store.SaveTourist(t); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	s.notifier.Notify(feed.KindTouristCreated, t)
	writeJSON(w, t)
}

func (s *Server) handleListTourists(w http.ResponseWriter, r *http.Request) {
	tourists, err := s.store.LoadTourists()
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, map[string]any{"tourists": tourists})
}

func (s *Server) handleGetTourist(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.GetTourist(r.PathValue("id"))
	if err != nil {
		http.Error(w, "tourist not found", 404)
		return
	}
	writeJSON(w, t)
}

func (s *Server) handleLocationPing(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetTourist(id); err != nil {
		http.Error(w, "tourist not found", 404)
		return
	}
	var body struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	now := time.Now()
	p := &db.LocationPing{TouristID: id, Lat: body.Lat, Lng: body.Lng, RecordedAt: now}
	if err := s.store.InsertLocationPing(p); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	s.notifier.Notify(feed.KindLocationUpdated, feed.LocationUpdate{
		TouristID: id,
		Lat:       body.Lat,
		Lng:       body.Lng,
		Timestamp: now,
	})
	w.WriteHeader(204)
}

// --- alerts ---

func (s *Server) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TouristID string           `json:"touristId"`
		Type      string           `json:"type"`
		Severity  db.AlertSeverity `json:"severity"`
		Message   string           `json:"message"`
		Lat       float64          `json:"lat"`
		Lng       float64          `json:"lng"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if body.TouristID == "" || body.Type == "" {
		http.Error(w, "touristId and type are required", 400)
		return
	}
	if _, err := s.store.GetTourist(body.TouristID); err != nil {
		http.Error(w, "tourist not found", 404)
		return
	}
	if body.Severity == "" {
		body.Severity = db.SeverityLow
	}
	a := &db.Alert{
		ID:        uuid.NewString(),
		TouristID: body.TouristID,
		Type:      body.Type,
		Severity:  body.Severity,
		Message:   body.Message,
		Lat:       body.Lat,
		Lng:       body.Lng,
		CreatedAt: time.Now(),
	}
	if err := s.store.SaveAlert(a); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	s.notifier.Notify(feed.KindAlertCreated, a)
	writeJSON(w, a)
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.store.LoadAlerts(100)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, map[string]any{"alerts": alerts})
}

func (s *Server) handleAckAlert(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetAlert(id); err != nil {
		http.Error(w, "alert not found", 404)
		return
	}
	if err := s.store.SetAlertAcknowledged(id, true); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	w.WriteHeader(204)
}

// --- emergency incidents ---

func (s *Server) handleOpenIncident(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TouristID   string  `json:"touristId"`
		Type        string  `json:"type"`
		Description string  `json:"description"`
		Lat         float64 `json:"lat"`
		Lng         float64 `json:"lng"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if body.TouristID == "" || body.Type == "" {
		http.Error(w, "touristId and type are required", 400)
		return
	}
	if _, err := s.store.GetTourist(body.TouristID); err != nil {
		http.Error(w, "tourist not found", 404)
		return
	}
	now := time.Now()
	i := &db.EmergencyIncident{
		ID:          uuid.NewString(),
		TouristID:   body.TouristID,
		Type:        body.Type,
		Status:      db.IncidentOpen,
		Description: body.Description,
		Lat:         body.Lat,
		Lng:         body.Lng,
		OpenedAt:    now,
		UpdatedAt:   now,
	}
	if err := s.store.SaveIncident(i); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if err := s.store.UpdateTouristStatus(i.TouristID, db.TouristDistressed); err != nil {
		s.logger.Warn("tourist status update failed", "tourist", i.TouristID, "err", err)
	}
	s.notifier.Notify(feed.KindEmergencyIncidentOpened, i)
	writeJSON(w, i)
}

func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	incidents, err := s.store.LoadIncidents()
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, map[string]any{"incidents": incidents})
}

// handleIncidentStatus moves an incident through its lifecycle and emits
// emergency-incident-updated.
func (s *Server) handleIncidentStatus(w http.ResponseWriter, r *http.Request) {
	i, err := s.store.GetIncident(r.PathValue("id"))
	if err != nil {
		http.Error(w, "incident not found", 404)
		return
	}
	var body struct {
		Status db.IncidentStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	switch body.Status {
	case db.IncidentOpen, db.IncidentResponded, db.IncidentResolved, db.IncidentClosed:
	default:
		http.Error(w, "invalid status", 400)
		return
	}
	i.Status = body.Status
	i.UpdatedAt = time.Now()
	if err := s.store.SaveIncident(i); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if body.Status == db.IncidentResolved || body.Status == db.IncidentClosed {
		if err := s.store.UpdateTouristStatus(i.TouristID, db.TouristActive); err != nil {
			s.logger.Warn("tourist status update failed", "tourist", i.TouristID, "err", err)
		}
	}
	s.notifier.Notify(feed.KindEmergencyIncidentUpdate, i)
	writeJSON(w, i)
}

// handleUpdateIncident edits descriptive fields and emits incident-updated.
func (s *Server) handleUpdateIncident(w http.ResponseWriter, r *http.Request) {
	i, err := s.store.GetIncident(r.PathValue("id"))
	if err != nil {
		http.Error(w, "incident not found", 404)
		return
	}
	var body struct {
		Description         *string `json:"description"`
		AssignedAuthorityID *string `json:"assignedAuthorityId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if body.Description != nil {
		i.Description = *body.Description
	}
	if body.AssignedAuthorityID != nil {
		i.AssignedAuthorityID = *body.AssignedAuthorityID
	}
	i.UpdatedAt = time.Now()
	if err := s.store.SaveIncident(i); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	s.notifier.Notify(feed.KindIncidentUpdated, i)
	writeJSON(w, i)
}

// --- AI anomalies ---

func (s *Server) handleFlagAnomaly(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TouristID string  `json:"touristId"`
		Kind      string  `json:"kind"`
		Score     float64 `json:"score"`
		Detail    string  `json:"detail"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if body.TouristID == "" || body.Kind == "" {
		http.Error(w, "touristId and kind are required", 400)
		return
	}
	if _, err := s.store.GetTourist(body.TouristID); err != nil {
		http.Error(w, "tourist not found", 404)
		return
	}
	now := time.Now()
	a := &db.AIAnomaly{
		ID:         uuid.NewString(),
		TouristID:  body.TouristID,
		Kind:       body.Kind,
		Score:      body.Score,
		Detail:     body.Detail,
		Status:     db.AnomalyFlagged,
		DetectedAt: now,
		UpdatedAt:  now,
	}
	if err := s.store.SaveAnomaly(a); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	s.notifier.Notify(feed.KindAIAnomalyDetected, a)
	writeJSON(w, a)
}

func (s *Server) handleListAnomalies(w http.ResponseWriter, r *http.Request) {
	anomalies, err := s.store.LoadAnomalies()
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, map[string]any{"anomalies": anomalies})
}

func (s *Server) handleAnomalyStatus(w http.ResponseWriter, r *http.Request) {
	a, err := s.store.GetAnomaly(r.PathValue("id"))
	if err != nil {
		http.Error(w, "anomaly not found", 404)
		return
	}
	var body struct {
		Status db.AnomalyStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	switch body.Status {
	case db.AnomalyFlagged, db.AnomalyReviewing, db.AnomalyConfirmed, db.AnomalyDismissed:
	default:
		http.Error(w, "invalid status", 400)
		return
	}
	a.Status = body.Status
	a.UpdatedAt = time.Now()
	if err := s.store.SaveAnomaly(a); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	s.notifier.Notify(feed.KindAIAnomalyUpdated, a)
	writeJSON(w, a)
}

// --- eFIRs ---

func (s *Server) handleFileEFIR(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IncidentID string `json:"incidentId"`
		TouristID  string `json:"touristId"`
		FIRNumber  string `json:"firNumber"`
		Narrative  string `json:"narrative"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if body.TouristID == "" || body.FIRNumber == "" {
		http.Error(w, "touristId and firNumber are required", 400)
		return
	}
	if _, err := s.store.GetTourist(body.TouristID); err != nil {
		http.Error(w, "tourist not found", 404)
		return
	}
	now := time.Now()
	e := &db.EFIR{
		ID:         uuid.NewString(),
		IncidentID: body.IncidentID,
		TouristID:  body.TouristID,
		FIRNumber:  body.FIRNumber,
		Narrative:  body.Narrative,
		Status:     db.EFIRFiled,
		FiledAt:    now,
		UpdatedAt:  now,
	}
	if err := s.store.SaveEFIR(e); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	s.notifier.Notify(feed.KindEFIRFiled, e)
	writeJSON(w, e)
}

func (s *Server) handleListEFIRs(w http.ResponseWriter, r *http.Request) {
	efirs, err := s.store.LoadEFIRs()
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, map[string]any{"efirs": efirs})
}

func (s *Server) handleUpdateEFIR(w http.ResponseWriter, r *http.Request) {
	e, err := s.store.GetEFIR(r.PathValue("id"))
	if err != nil {
		http.Error(w, "efir not found", 404)
		return
	}
	var body struct {
		Narrative *string        `json:"narrative"`
		Status    *db.EFIRStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if body.Narrative != nil {
		e.Narrative = *body.Narrative
	}
	if body.Status != nil {
		e.Status = *body.Status
	}
	e.UpdatedAt = time.Now()
	if err := s.store.SaveEFIR(e); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	s.notifier.Notify(feed.KindEFIRUpdated, e)
	writeJSON(w, e)
}

// --- authorities ---

func (s *Server) handleCreateAuthority(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Kind     string `json:"kind"`
		District string `json:"district"`
		Phone    string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if body.Name == "" {
		http.Error(w, "name is required", 400)
		return
	}
	now := time.Now()
	a := &db.Authority{
		ID:        uuid.NewString(),
		Name:      body.Name,
		Kind:      body.Kind,
		District:  body.District,
		Phone:     body.Phone,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.SaveAuthority(a); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	s.notifier.Notify(feed.KindAuthorityCreated, a)
	writeJSON(w, a)
}

func (s *Server) handleListAuthorities(w http.ResponseWriter, r *http.Request) {
	authorities, err := s.store.LoadAuthorities()
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, map[string]any{"authorities": authorities})
}

func (s *Server) handleUpdateAuthority(w http.ResponseWriter, r *http.Request) {
	a, err := s.store.GetAuthority(r.PathValue("id"))
	if err != nil {
		http.Error(w, "authority not found", 404)
		return
	}
	var body struct {
		Name     *string `json:"name"`
		Kind     *string `json:"kind"`
		District *string `json:"district"`
		Phone    *string `json:"phone"`
		Active   *bool   `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if body.Name != nil {
		a.Name = *body.Name
	}
	if body.Kind != nil {
		a.Kind = *body.Kind
	}
	if body.District != nil {
		a.District = *body.District
	}
	if body.Phone != nil {
		a.Phone = *body.Phone
	}
	if body.Active != nil {
		a.Active = *body.Active
	}
	a.UpdatedAt = time.Now()
	if err := s.store.SaveAuthority(a); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	s.notifier.Notify(feed.KindAuthorityUpdated, a)
	writeJSON(w, a)
}
