package chat

import (
	"context"
	"encoding/json"
	"time"
)

// Transport delivers an already-composed payload to a named channel. The
// production implementation adapts the external chat provider; Hub below is
// the in-process development transport.
type Transport interface {
	SendToChannel(ctx context.Context, channelID string, payload Payload) error
	EnsureChannel(ctx context.Context, purpose string) (string, error)
}

// PayloadKind discriminates the channel payload variants.
type PayloadKind string

const (
	KindSafetyAlert PayloadKind = "safety_alert"
	KindJobPosting  PayloadKind = "job_posting"
)

// Payload is a tagged union: exactly one variant field is set, matching
// Kind. It is encoded to the wire only at the transport boundary.
type Payload struct {
	Kind        PayloadKind         `json:"kind"`
	SafetyAlert *SafetyAlertPayload `json:"safety_alert,omitempty"`
	JobPosting  *JobPostingPayload  `json:"job_posting,omitempty"`
}

type SafetyAlertPayload struct {
	AlertID     string    `json:"alert_id"`
	Type        string    `json:"type"`
	Severity    string    `json:"severity"`
	Description string    `json:"description"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	RequiresAck bool      `json:"requires_ack"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type JobPostingPayload struct {
	JobID    string `json:"job_id"`
	Title    string `json:"title"`
	Company  string `json:"company"`
	Location string `json:"location"`
	SharedBy string `json:"shared_by"`
}

// Encode renders the payload for the wire.
func (p Payload) Encode() ([]byte, error) { return json.Marshal(p) }
