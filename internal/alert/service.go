// Package alert implements the safety-alert pipeline: target resolution,
// bounded fan-out dispatch, acknowledgment tracking, and time-driven
// escalation. Engine is the caller-facing facade; data flows one way
// through it per alert lifecycle.
package alert

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Dmccarty30/Journeyman-Jobs-sub014/internal/membership"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/internal/models"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/internal/permission"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/errors"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/metrics"
)

// Spec is the caller's request to create an alert.
type Spec struct {
	Type            string   `json:"type"`
	Severity        string   `json:"severity"`
	Description     string   `json:"description"`
	Latitude        *float64 `json:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`
	RadiusMiles     *float64 `json:"radius_miles,omitempty"`
	ExplicitCrewIDs []string `json:"explicit_crew_ids"`
	RequiresAck     bool     `json:"requires_acknowledgment"`
	CreatedBy       string   `json:"-"`
}

// CreateResult always carries the alert id plus the per-channel dispatch
// report, so an operator can re-notify a failed channel without re-running
// the whole alert.
type CreateResult struct {
	AlertID string  `json:"alert_id"`
	Report  *Report `json:"report"`
}

// Engine wires the pipeline components. Constructed once at process start
// and passed by reference to all call sites.
type Engine struct {
	db         *gorm.DB
	members    *membership.Store
	resolver   *Resolver
	dispatcher *Dispatcher
	tracker    *Tracker
	log        *zap.Logger
}

func NewEngine(db *gorm.DB, members *membership.Store, resolver *Resolver, dispatcher *Dispatcher, tracker *Tracker, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		db:         db,
		members:    members,
		resolver:   resolver,
		dispatcher: dispatcher,
		tracker:    tracker,
		log:        log,
	}
}

// CheckPermission reports whether the user holds the permission in the
// crew. NotAMember surfaces as an error rather than a deny so the caller
// can distinguish the two.
func (e *Engine) CheckPermission(ctx context.Context, userID, crewID string, perm models.Permission) (bool, error) {
	role, err := e.members.GetRole(ctx, userID, crewID)
	if err != nil {
		return false, err
	}
	return permission.HasPermission(role, perm), nil
}

// ChangeRole applies a role change through the membership store's
// authorization rules.
func (e *Engine) ChangeRole(ctx context.Context, actorID, targetID, crewID string, newRole models.Role) error {
	return e.members.SetRole(ctx, actorID, targetID, crewID, newRole)
}

// CreateAlert authorizes, persists, resolves, and dispatches an alert.
// Authorization and validation reject before any side effect; after the
// gate the call always returns an alert id and a report, even when some
// targets failed.
func (e *Engine) CreateAlert(ctx context.Context, spec Spec) (*CreateResult, error) {
	severity, err := models.ParseSeverity(spec.Severity)
	if err != nil {
		return nil, err
	}
	if spec.Type == "" {
		return nil, errors.InvalidArgument("alert type is required")
	}
	if spec.CreatedBy == "" {
		return nil, errors.InvalidArgument("alert creator is required")
	}
	if (spec.Latitude == nil) != (spec.Longitude == nil) {
		return nil, errors.InvalidArgument("latitude and longitude must be set together")
	}

	if err := e.authorizeCreate(ctx, spec); err != nil {
		return nil, err
	}

	a := &models.SafetyAlert{
		ID:              uuid.NewString(),
		Type:            spec.Type,
		Severity:        severity,
		Description:     spec.Description,
		Latitude:        spec.Latitude,
		Longitude:       spec.Longitude,
		RadiusMiles:     spec.RadiusMiles,
		ExplicitCrewIDs: spec.ExplicitCrewIDs,
		RequiresAck:     spec.RequiresAck,
		CreatedBy:       spec.CreatedBy,
		CreatedAt:       time.Now(),
		Status:          models.StatusOpen,
	}
	if err := e.db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, errors.Wrap(err, "persist alert")
	}
	metrics.AlertsCreated.WithLabelValues(string(severity)).Inc()

	resolution, err := e.resolver.Resolve(ctx, a, severity)
	if err != nil {
		return nil, err
	}

	if a.RequiresAck {
		// Snapshot the required acknowledgers before delivery: late crew
		// joiners are not retroactively required.
		users, err := e.members.MembersOfCrews(ctx, resolution.CrewIDs)
		if err != nil {
			return nil, err
		}
		if err := e.tracker.FreezeAcknowledgers(ctx, a.ID, users); err != nil {
			return nil, err
		}
	}

	report, err := e.dispatcher.Dispatch(ctx, a, severity, resolution.Channels)
	if err != nil {
		return nil, err
	}

	if !a.RequiresAck {
		if err := e.tracker.MarkResolved(ctx, a.ID); err != nil {
			e.log.Error("auto-resolve failed", zap.String("alert_id", a.ID), zap.Error(err))
		}
	}
	return &CreateResult{AlertID: a.ID, Report: report}, nil
}

// authorizeCreate requires postSafetyAlerts in every explicitly targeted
// crew, or, for geo/broadcast-only alerts, in at least one crew the
// creator belongs to.
func (e *Engine) authorizeCreate(ctx context.Context, spec Spec) error {
	if len(spec.ExplicitCrewIDs) > 0 {
		for _, crewID := range spec.ExplicitCrewIDs {
			allowed, err := e.CheckPermission(ctx, spec.CreatedBy, crewID, models.PermPostSafetyAlerts)
			if err != nil {
				return err
			}
			if !allowed {
				return errors.PermissionDenied("%s may not post safety alerts to crew %s", spec.CreatedBy, crewID)
			}
		}
		return nil
	}
	memberships, err := e.members.CrewsOf(ctx, spec.CreatedBy)
	if err != nil {
		return err
	}
	for _, m := range memberships {
		if permission.HasPermission(m.Role, models.PermPostSafetyAlerts) {
			return nil
		}
	}
	return errors.PermissionDenied("%s may not post safety alerts", spec.CreatedBy)
}

// Acknowledge records a user's acknowledgment of an alert.
func (e *Engine) Acknowledge(ctx context.Context, alertID, userID, notes string) error {
	return e.tracker.Acknowledge(ctx, alertID, userID, notes)
}

// AlertStatus returns the alert's status, targets, and acknowledgments.
func (e *Engine) AlertStatus(ctx context.Context, alertID string) (*StatusView, error) {
	return e.tracker.Status(ctx, alertID)
}
