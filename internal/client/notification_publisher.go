// Package client holds outbound collaborators of the workflow core.
package client

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NotificationPublisher publishes workflow events to NATS for consumption by
// the notifications service.
//
// Subject convention: notifications.deeds.<event_type>
// Event types: form_submitted, stage_verified, correction_requested,
//              cross_verified, final_decision, form_cancelled,
//              delivery_updated
//
// All publish operations are non-fatal — errors are logged but never
// propagated, so notification failures never interrupt workflow operations.
type NotificationPublisher struct {
	conn *nats.Conn
	log  zerolog.Logger
}

// NotificationEvent is the JSON schema published to NATS.
type NotificationEvent struct {
	EventType   string         `json:"event_type"`
	FormID      string         `json:"form_id"`
	ServiceType string         `json:"service_type,omitempty"`
	ActorID     string         `json:"actor_id"`
	Status      string         `json:"status,omitempty"`
	Severity    string         `json:"severity,omitempty"`
	Category    string         `json:"category,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// NewNotificationPublisher creates a publisher backed by the given NATS
// connection. A nil connection disables publishing.
func NewNotificationPublisher(conn *nats.Conn, log zerolog.Logger) *NotificationPublisher {
	return &NotificationPublisher{conn: conn, log: log}
}

// PublishFormEvent publishes a workflow event.
// Subject: notifications.deeds.<eventType>
func (p *NotificationPublisher) PublishFormEvent(eventType, formID, serviceType, actorID, status string, payload map[string]any) {
	if p.conn == nil {
		return
	}

	event := &NotificationEvent{
		EventType:   eventType,
		FormID:      formID,
		ServiceType: serviceType,
		ActorID:     actorID,
		Status:      status,
		Severity:    "info",
		Category:    "deed_workflow",
		Payload:     payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", eventType).Msg("notification: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("notifications.deeds.%s", eventType)
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("form_id", formID).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("form_id", formID).
		Msg("notification: event published")
}
