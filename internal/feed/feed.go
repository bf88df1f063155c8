package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind tags an Envelope and determines how its payload is interpreted.
type Kind string

const (
	KindTouristCreated          Kind = "tourist-created"
	KindAlertCreated            Kind = "alert-created"
	KindEmergencyIncidentOpened Kind = "emergency-incident-opened"
	KindEmergencyIncidentUpdate Kind = "emergency-incident-updated"
	KindLocationUpdated         Kind = "location-updated"
	KindIncidentUpdated         Kind = "incident-updated"
	KindAIAnomalyDetected       Kind = "ai-anomaly-detected"
	KindAIAnomalyUpdated        Kind = "ai-anomaly-updated"
	KindEFIRFiled               Kind = "efir-filed"
	KindEFIRUpdated             Kind = "efir-updated"
	KindAuthorityCreated        Kind = "authority-created"
	KindAuthorityUpdated        Kind = "authority-updated"
)

var kinds = map[Kind]struct{}{
	KindTouristCreated:          {},
	KindAlertCreated:            {},
	KindEmergencyIncidentOpened: {},
	KindEmergencyIncidentUpdate: {},
	KindLocationUpdated:         {},
	KindIncidentUpdated:         {},
	KindAIAnomalyDetected:       {},
	KindAIAnomalyUpdated:        {},
	KindEFIRFiled:               {},
	KindEFIRUpdated:             {},
	KindAuthorityCreated:        {},
	KindAuthorityUpdated:        {},
}

// Valid reports whether k is one of the recognized event kinds.
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// ErrUnknownKind is returned by Decode for a well-formed message whose kind
// is outside the recognized set.
var ErrUnknownKind = errors.New("unknown event kind")

// Envelope is one domain event pushed to monitoring consoles. Envelopes are
// immutable once constructed and carry no identity beyond their content.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Encode builds an Envelope for kind with payload marshaled to JSON.
func Encode(kind Kind, payload any) (Envelope, error) {
	if !kind.Valid() {
		return Envelope{}, fmt.Errorf("encode: %w: %q", ErrUnknownKind, kind)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return Envelope{Kind: kind, Payload: data}, nil
}

// Decode parses one wire message into an Envelope. Malformed JSON and
// unrecognized kinds are rejected; a failed Decode never panics and callers
// are expected to drop the message rather than close the connection.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if !env.Kind.Valid() {
		return Envelope{}, fmt.Errorf("decode envelope: %w: %q", ErrUnknownKind, env.Kind)
	}
	return env, nil
}

// LocationUpdate is the payload for location-updated events. All other kinds
// carry a full record from the data model (see internal/db).
type LocationUpdate struct {
	TouristID string    `json:"touristId"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

// Broadcaster fans an Envelope out to connected monitoring consoles.
// A nil Broadcaster is safe to use -- Broadcast becomes a no-op.
type Broadcaster interface {
	Broadcast(env Envelope)
}
