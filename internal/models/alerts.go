package models

import (
	"time"

	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/errors"
)

// Severity is the ranked urgency of a safety alert.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRanks = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the severity's order. Panics on an unknown value; validate
// external input with ParseSeverity first.
func (s Severity) Rank() int {
	rank, ok := severityRanks[s]
	if !ok {
		panic(errors.InvalidArgument("invalid severity: %q", string(s)))
	}
	return rank
}

func (s Severity) Valid() bool {
	_, ok := severityRanks[s]
	return ok
}

func ParseSeverity(v string) (Severity, error) {
	s := Severity(v)
	if !s.Valid() {
		return "", errors.InvalidArgument("invalid severity: %q", v)
	}
	return s, nil
}

// AlertStatus is the alert lifecycle: open -> escalated -> resolved, with
// open -> resolved directly when no acknowledgment is outstanding.
type AlertStatus string

const (
	StatusOpen      AlertStatus = "open"
	StatusEscalated AlertStatus = "escalated"
	StatusResolved  AlertStatus = "resolved"
)

// DeliveryState is the per-target dispatch outcome.
type DeliveryState string

const (
	DeliveryPending   DeliveryState = "pending"
	DeliveryDelivered DeliveryState = "delivered"
	DeliveryFailed    DeliveryState = "failed"
)

// SafetyAlert is immutable once dispatched except for Status and the
// escalation bookkeeping columns, which only the tracker/scheduler write.
type SafetyAlert struct {
	ID              string `gorm:"primaryKey"`
	Type            string
	Severity        Severity `gorm:"index"`
	Description     string
	Latitude        *float64
	Longitude       *float64
	RadiusMiles     *float64
	ExplicitCrewIDs []string `gorm:"serializer:json"`
	RequiresAck     bool
	CreatedBy       string
	CreatedAt       time.Time
	Status          AlertStatus `gorm:"index"`

	// Set by the escalation scheduler. EscalatedSeverity is the current
	// effective severity once non-nil; the original Severity is never
	// rewritten.
	EscalatedSeverity *Severity
	EscalatedAt       *time.Time
}

// EffectiveSeverity is the severity the alert currently operates at.
func (a *SafetyAlert) EffectiveSeverity() Severity {
	if a.EscalatedSeverity != nil {
		return *a.EscalatedSeverity
	}
	return a.Severity
}

// AlertTarget records one destination channel per alert. The unique index
// is the deduplication invariant: a channel never holds the same alert
// twice concurrently.
type AlertTarget struct {
	ID            uint   `gorm:"primaryKey"`
	AlertID       string `gorm:"uniqueIndex:idx_target_alert_channel;index"`
	ChannelID     string `gorm:"uniqueIndex:idx_target_alert_channel"`
	DispatchedAt  time.Time
	DeliveryState DeliveryState
	Attempts      int
	LastError     string
}

// Acknowledgment is at most one row per (alert, user); re-submission
// updates Notes and AcknowledgedAt in place.
type Acknowledgment struct {
	ID             uint   `gorm:"primaryKey"`
	AlertID        string `gorm:"uniqueIndex:idx_ack_alert_user;index"`
	UserID         string `gorm:"uniqueIndex:idx_ack_alert_user"`
	AcknowledgedAt time.Time
	Notes          string
}

// AlertAcknowledger is the required-acknowledger snapshot taken at dispatch
// time. Late crew joiners are not retroactively required to acknowledge.
type AlertAcknowledger struct {
	ID      uint   `gorm:"primaryKey"`
	AlertID string `gorm:"uniqueIndex:idx_required_alert_user;index"`
	UserID  string `gorm:"uniqueIndex:idx_required_alert_user"`
}

// SystemChannel persists lazily created transport channels, e.g. the shared
// safety broadcast channel, so restarts reuse the same channel.
type SystemChannel struct {
	Purpose   string `gorm:"primaryKey"`
	ChannelID string
	CreatedAt time.Time
}

// BroadcastChannelPurpose names the union-wide safety broadcast channel
// included for high and critical severities.
const BroadcastChannelPurpose = "safety-broadcast"

// EscalationStep is one row of the static escalation policy.
type EscalationStep struct {
	Timeout    time.Duration
	EscalateTo Severity
}

var escalationPolicy = map[Severity]EscalationStep{
	SeverityLow:      {Timeout: 30 * time.Minute, EscalateTo: SeverityMedium},
	SeverityMedium:   {Timeout: 15 * time.Minute, EscalateTo: SeverityHigh},
	SeverityHigh:     {Timeout: 10 * time.Minute, EscalateTo: SeverityCritical},
	SeverityCritical: {Timeout: 5 * time.Minute, EscalateTo: SeverityCritical},
}

// PolicyFor returns the escalation step for a severity.
func PolicyFor(s Severity) EscalationStep {
	step, ok := escalationPolicy[s]
	if !ok {
		panic(errors.InvalidArgument("invalid severity: %q", string(s)))
	}
	return step
}
