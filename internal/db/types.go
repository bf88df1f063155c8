package db

import "time"

type TouristStatus string

const (
	TouristActive     TouristStatus = "active"
	TouristInactive   TouristStatus = "inactive"
	TouristDistressed TouristStatus = "distressed"
	TouristCheckedOut TouristStatus = "checked-out"
)

type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

type IncidentStatus string

const (
	IncidentOpen      IncidentStatus = "open"
	IncidentResponded IncidentStatus = "responded"
	IncidentResolved  IncidentStatus = "resolved"
	IncidentClosed    IncidentStatus = "closed"
)

type AnomalyStatus string

const (
	AnomalyFlagged   AnomalyStatus = "flagged"
	AnomalyReviewing AnomalyStatus = "reviewing"
	AnomalyConfirmed AnomalyStatus = "confirmed"
	AnomalyDismissed AnomalyStatus = "dismissed"
)

type EFIRStatus string

const (
	EFIRDraft       EFIRStatus = "draft"
	EFIRFiled       EFIRStatus = "filed"
	EFIRUnderReview EFIRStatus = "under-review"
	EFIRClosed      EFIRStatus = "closed"
)

type Tourist struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	DocumentNumber   string        `json:"documentNumber"`
	Nationality      string        `json:"nationality"`
	Phone            string        `json:"phone"`
	EmergencyContact string        `json:"emergencyContact"`
	IdentityHash     string        `json:"identityHash"`
	Status           TouristStatus `json:"status"`
	CreatedAt        time.Time     `json:"createdAt"`
}

type Alert struct {
	ID           string        `json:"id"`
	TouristID    string        `json:"touristId"`
	Type         string        `json:"type"`
	Severity     AlertSeverity `json:"severity"`
	Message      string        `json:"message"`
	Lat          float64       `json:"lat"`
	Lng          float64       `json:"lng"`
	Acknowledged bool          `json:"acknowledged"`
	CreatedAt    time.Time     `json:"createdAt"`
}

type EmergencyIncident struct {
	ID                  string         `json:"id"`
	TouristID           string         `json:"touristId"`
	Type                string         `json:"type"`
	Status              IncidentStatus `json:"status"`
	Description         string         `json:"description"`
	Lat                 float64        `json:"lat"`
	Lng                 float64        `json:"lng"`
	AssignedAuthorityID string         `json:"assignedAuthorityId"`
	OpenedAt            time.Time      `json:"openedAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
}

type LocationPing struct {
	ID         int64     `json:"id"`
	TouristID  string    `json:"touristId"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RecordedAt time.Time `json:"recordedAt"`
}

type AIAnomaly struct {
	ID         string        `json:"id"`
	TouristID  string        `json:"touristId"`
	Kind       string        `json:"kind"`
	Score      float64       `json:"score"`
	Detail     string        `json:"detail"`
	Status     AnomalyStatus `json:"status"`
	DetectedAt time.Time     `json:"detectedAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

type EFIR struct {
	ID         string     `json:"id"`
	IncidentID string     `json:"incidentId"`
	TouristID  string     `json:"touristId"`
	FIRNumber  string     `json:"firNumber"`
	Narrative  string     `json:"narrative"`
	Status     EFIRStatus `json:"status"`
	FiledAt    time.Time  `json:"filedAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

type Authority struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	District  string    `json:"district"`
	Phone     string    `json:"phone"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Account struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

type RefreshToken struct {
	Token     string
	AccountID string
	ExpiresAt time.Time
	CreatedAt time.Time
}
