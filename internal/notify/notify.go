// Package notify is the boundary by which a committed mutation becomes an
// event on the live feed.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Raje0906/Tourist-Safety-sub001/internal/db"
	"github.com/Raje0906/Tourist-Safety-sub001/internal/feed"
)

// Config holds escalation settings. Webhook and ntfy delivery are
// best-effort side channels for emergency-grade events; the live feed does
// not depend on them.
type Config struct {
	Webhook string `json:"webhook"`
	NtfyURL string `json:"ntfy"`
}

// Notifier turns (kind, payload) into an Envelope and hands it to the
// broadcaster. A nil broadcaster is tolerated; Notify then only escalates.
type Notifier struct {
	cfg    Config
	bc     feed.Broadcaster
	client *http.Client
	logger *slog.Logger
}

func New(cfg Config, bc feed.Broadcaster, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		cfg:    cfg,
		bc:     bc,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

// Notify publishes one tracked mutation to every connected console. It is
// called synchronously on the mutation path and never returns an error:
// an envelope that cannot be built is logged and dropped.
func (n *Notifier) Notify(kind feed.Kind, payload any) {
	env, err := feed.Encode(kind, payload)
	if err != nil {
		n.logger.Error("notify: envelope not built", "kind", kind, "err", err)
		return
	}
	if n.bc != nil {
		n.bc.Broadcast(env)
	}
	if title, msg, ok := escalation(kind, payload); ok {
		n.escalate(title, msg)
	}
}

// escalation decides whether an event warrants the out-of-band channels:
// every opened emergency, every detected anomaly, and alerts at high or
// critical severity.
func escalation(kind feed.Kind, payload any) (title, msg string, ok bool) {
	switch kind {
	case feed.KindEmergencyIncidentOpened:
		if i, isIncident := payload.(*db.EmergencyIncident); isIncident {
			return "Emergency incident opened",
				fmt.Sprintf("%s · tourist %s", i.Type, i.TouristID), true
		}
	case feed.KindAIAnomalyDetected:
		if a, isAnomaly := payload.(*db.AIAnomaly); isAnomaly {
			return "Anomaly detected",
				fmt.Sprintf("%s · tourist %s (score %.2f)", a.Kind, a.TouristID, a.Score), true
		}
	case feed.KindAlertCreated:
		if a, isAlert := payload.(*db.Alert); isAlert &&
			(a.Severity == db.SeverityHigh || a.Severity == db.SeverityCritical) {
			return "Alert raised",
				fmt.Sprintf("%s (%s) · tourist %s", a.Type, a.Severity, a.TouristID), true
		}
	}
	return "", "", false
}

func (n *Notifier) escalate(title, msg string) {
	if n.cfg.Webhook != "" {
		n.sendWebhook(title, msg)
	}
	if n.cfg.NtfyURL != "" {
		n.sendNtfy(title, msg)
	}
}

type webhookPayload struct {
	Title     string `json:"title"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func (n *Notifier) sendWebhook(title, msg string) {
	payload := webhookPayload{
		Title:     title,
		Message:   msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	resp, err := n.client.Post(n.cfg.Webhook, "application/json", bytes.NewReader(data))
	if err != nil {
		n.logger.Warn("notify: webhook POST failed", "err", err)
		return
	}
	resp.Body.Close()
}

type ntfyPayload struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Priority int      `json:"priority"`
	Tags     []string `json:"tags"`
}

func (n *Notifier) sendNtfy(title, msg string) {
	payload := ntfyPayload{
		Title:    title,
		Message:  msg,
		Priority: 4,
		Tags:     []string{"rotating_light"},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	resp, err := n.client.Post(n.cfg.NtfyURL, "application/json", bytes.NewReader(data))
	if err != nil {
		n.logger.Warn("notify: ntfy POST failed", "err", err)
		return
	}
	resp.Body.Close()
}
