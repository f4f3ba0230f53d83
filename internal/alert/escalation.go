package alert

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Dmccarty30/Journeyman-Jobs-sub014/internal/models"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/metrics"
)

// CrewMembers is the slice of the membership store the escalator needs to
// extend the required acknowledger set when the frozen policy is off.
type CrewMembers interface {
	MembersOfCrews(ctx context.Context, crewIDs []string) ([]string, error)
}

// Escalator is the time-driven follow-up: it scans persisted alert state
// and escalates overdue, incompletely acknowledged alerts. Driven by
// status and timestamps rather than in-memory timers, so a restart can
// neither lose nor duplicate an escalation.
type Escalator struct {
	db         *gorm.DB
	resolver   *Resolver
	dispatcher *Dispatcher
	tracker    *Tracker
	members    CrewMembers
	frozen     bool // required acknowledger set frozen at first dispatch
	log        *zap.Logger
}

func NewEscalator(db *gorm.DB, resolver *Resolver, dispatcher *Dispatcher, tracker *Tracker, members CrewMembers, frozenAckSet bool, log *zap.Logger) *Escalator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Escalator{
		db:         db,
		resolver:   resolver,
		dispatcher: dispatcher,
		tracker:    tracker,
		members:    members,
		frozen:     frozenAckSet,
		log:        log,
	}
}

// Run performs one scan. Errors on individual alerts are logged and
// retried on the next scan; the scheduler is not request-scoped.
func (e *Escalator) Run(ctx context.Context) {
	var alerts []models.SafetyAlert
	err := e.db.WithContext(ctx).
		Where("requires_ack = ? AND status <> ?", true, models.StatusResolved).
		Find(&alerts).Error
	if err != nil {
		e.log.Error("escalation scan failed", zap.Error(err))
		return
	}
	for i := range alerts {
		if ctx.Err() != nil {
			return
		}
		if err := e.check(ctx, &alerts[i]); err != nil {
			e.log.Error("escalation check failed", zap.String("alert_id", alerts[i].ID), zap.Error(err))
		}
	}
}

func (e *Escalator) check(ctx context.Context, a *models.SafetyAlert) error {
	effective := a.EffectiveSeverity()

	// Terminal step: a critical alert escalates (repeat delivery) at most
	// once, so escalation can never loop.
	if a.Status == models.StatusEscalated && effective == models.SeverityCritical {
		return nil
	}

	deadline := a.CreatedAt
	if a.EscalatedAt != nil {
		deadline = *a.EscalatedAt
	}
	step := models.PolicyFor(effective)
	if time.Since(deadline) < step.Timeout {
		return nil
	}

	complete, err := e.tracker.Complete(ctx, a.ID)
	if err != nil {
		return err
	}
	if complete {
		// The required set filled in since dispatch; resolve instead.
		return e.tracker.resolveIfComplete(ctx, a.ID)
	}

	now := time.Now()
	next := step.EscalateTo

	// Compare-and-set on (status, effective severity): exactly one scanner
	// wins each step, and a concurrent resolution blocks the escalation.
	res := e.db.WithContext(ctx).Model(&models.SafetyAlert{}).
		Where("id = ? AND status <> ? AND COALESCE(escalated_severity, severity) = ?",
			a.ID, models.StatusResolved, effective).
		Updates(map[string]interface{}{
			"status":             models.StatusEscalated,
			"escalated_severity": next,
			"escalated_at":       now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil // lost the race; the winner's transition stands
	}

	metrics.Escalations.WithLabelValues(string(next)).Inc()
	e.log.Warn("alert escalated",
		zap.String("alert_id", a.ID),
		zap.String("from", string(effective)),
		zap.String("to", string(next)))

	a.Status = models.StatusEscalated
	a.EscalatedSeverity = &next
	a.EscalatedAt = &now

	// Re-dispatch failure does not roll back the transition: escalated
	// status reflects intent, delivery outcome is tracked per target.
	resolution, err := e.resolver.Resolve(ctx, a, next)
	if err != nil {
		e.log.Error("escalation target resolve failed", zap.String("alert_id", a.ID), zap.Error(err))
		return nil
	}
	if !e.frozen {
		users, err := e.members.MembersOfCrews(ctx, resolution.CrewIDs)
		if err != nil {
			e.log.Error("extend acknowledger set failed", zap.String("alert_id", a.ID), zap.Error(err))
		} else if err := e.tracker.FreezeAcknowledgers(ctx, a.ID, users); err != nil {
			e.log.Error("extend acknowledger set failed", zap.String("alert_id", a.ID), zap.Error(err))
		}
	}
	if _, err := e.dispatcher.Dispatch(ctx, a, next, resolution.Channels); err != nil {
		e.log.Error("escalation re-dispatch failed", zap.String("alert_id", a.ID), zap.Error(err))
	}
	return nil
}
