package feed_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Raje0906/Tourist-Safety-sub001/internal/feed"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := feed.LocationUpdate{
		TouristID: "t-1",
		Lat:       26.1445,
		Lng:       91.7362,
		Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	env, err := feed.Encode(feed.KindLocationUpdated, payload)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	wire, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}
	got, err := feed.Decode(wire)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Kind != feed.KindLocationUpdated {
		t.Errorf("kind: got %q", got.Kind)
	}
	var loc feed.LocationUpdate
	if err := json.Unmarshal(got.Payload, &loc); err != nil {
		t.Fatal(err)
	}
	if loc.TouristID != "t-1" || loc.Lat != 26.1445 {
		t.Errorf("payload mismatch: %+v", loc)
	}
}

func TestEncodeRejectsUnknownKind(t *testing.T) {
	_, err := feed.Encode(feed.Kind("tourist-deleted"), nil)
	if !errors.Is(err, feed.ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	cases := []string{
		"not json at all",
		"",
		`{"kind":`,
		`[1,2,3]`,
	}
	for _, input := range cases {
		if _, err := feed.Decode([]byte(input)); err == nil {
			t.Errorf("Decode(%q): expected error", input)
		}
	}
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	_, err := feed.Decode([]byte(`{"kind":"mystery-event","payload":{}}`))
	if !errors.Is(err, feed.ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}

func TestDecodeMissingKind(t *testing.T) {
	_, err := feed.Decode([]byte(`{"payload":{"a":1}}`))
	if !errors.Is(err, feed.ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind for missing kind, got %v", err)
	}
}

func TestAllKindsValid(t *testing.T) {
	kinds := []feed.Kind{
		feed.KindTouristCreated,
		feed.KindAlertCreated,
		feed.KindEmergencyIncidentOpened,
		feed.KindEmergencyIncidentUpdate,
		feed.KindLocationUpdated,
		feed.KindIncidentUpdated,
		feed.KindAIAnomalyDetected,
		feed.KindAIAnomalyUpdated,
		feed.KindEFIRFiled,
		feed.KindEFIRUpdated,
		feed.KindAuthorityCreated,
		feed.KindAuthorityUpdated,
	}
	if len(kinds) != 12 {
		t.Fatalf("expected 12 kinds, have %d", len(kinds))
	}
	for _, k := range kinds {
		if !k.Valid() {
			t.Errorf("kind %q should be valid", k)
		}
	}
	if feed.Kind("").Valid() {
		t.Error("empty kind should not be valid")
	}
}
