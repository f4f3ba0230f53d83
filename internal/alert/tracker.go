package alert

import (
	"context"
	stderrors "errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Dmccarty30/Journeyman-Jobs-sub014/internal/models"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/errors"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/metrics"
)

// Tracker records acknowledgments against an alert and resolves the alert
// when the required set is complete. The acknowledgment upsert keyed on
// (alert_id, user_id) is the only high-contention write path.
type Tracker struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewTracker(db *gorm.DB, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{db: db, log: log}
}

// FreezeAcknowledgers snapshots the required acknowledger set for an alert.
// Inserts are conflict-tolerant so escalation can extend the set when the
// frozen policy is off.
func (t *Tracker) FreezeAcknowledgers(ctx context.Context, alertID string, userIDs []string) error {
	for _, userID := range userIDs {
		row := models.AlertAcknowledger{AlertID: alertID, UserID: userID}
		if err := t.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&row).Error; err != nil {
			return errors.Wrap(err, "freeze acknowledger set")
		}
	}
	return nil
}

// Acknowledge records a user's acknowledgment. Idempotent: a duplicate
// submission updates Notes (last write wins) without creating a second row
// or double-counting toward completion. Returns AlreadyResolved for a
// terminal alert; callers treat that as benign.
func (t *Tracker) Acknowledge(ctx context.Context, alertID, userID, notes string) error {
	var a models.SafetyAlert
	err := t.db.WithContext(ctx).Where("id = ?", alertID).First(&a).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return errors.InvalidArgument("alert %s does not exist", alertID)
	}
	if err != nil {
		return errors.Wrap(err, "load alert")
	}
	if a.Status == models.StatusResolved {
		return errors.AlreadyResolved("alert %s is already resolved", alertID)
	}

	ack := models.Acknowledgment{
		AlertID:        alertID,
		UserID:         userID,
		AcknowledgedAt: time.Now(),
		Notes:          notes,
	}
	if err := t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "alert_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"acknowledged_at", "notes"}),
	}).Create(&ack).Error; err != nil {
		return errors.Wrap(err, "record acknowledgment")
	}
	metrics.Acknowledgments.Inc()

	if a.RequiresAck {
		if err := t.resolveIfComplete(ctx, alertID); err != nil {
			return err
		}
	}
	return nil
}

// resolveIfComplete transitions the alert to resolved when every required
// acknowledger has a row. The transition is a compare-and-set on status so
// a race with the escalation scheduler resolves deterministically:
// whichever update wins is final, the loser is a no-op.
func (t *Tracker) resolveIfComplete(ctx context.Context, alertID string) error {
	complete, err := t.Complete(ctx, alertID)
	if err != nil {
		return err
	}
	if !complete {
		return nil
	}
	res := t.db.WithContext(ctx).Model(&models.SafetyAlert{}).
		Where("id = ? AND status <> ?", alertID, models.StatusResolved).
		Update("status", models.StatusResolved)
	if res.Error != nil {
		return errors.Wrap(res.Error, "resolve alert")
	}
	if res.RowsAffected > 0 {
		t.log.Info("alert resolved", zap.String("alert_id", alertID))
	}
	return nil
}

// Complete reports whether every required acknowledger has acknowledged.
// An alert with an empty required set is trivially complete.
func (t *Tracker) Complete(ctx context.Context, alertID string) (bool, error) {
	var required int64
	if err := t.db.WithContext(ctx).Model(&models.AlertAcknowledger{}).
		Where("alert_id = ?", alertID).Count(&required).Error; err != nil {
		return false, errors.Wrap(err, "count required acknowledgers")
	}
	var acked int64
	err := t.db.WithContext(ctx).Model(&models.Acknowledgment{}).
		Where("alert_id = ? AND user_id IN (?)",
			alertID,
			t.db.Model(&models.AlertAcknowledger{}).Select("user_id").Where("alert_id = ?", alertID),
		).Count(&acked).Error
	if err != nil {
		return false, errors.Wrap(err, "count acknowledgments")
	}
	return acked >= required, nil
}

// MarkResolved transitions open -> resolved for alerts with no outstanding
// acknowledgment requirement.
func (t *Tracker) MarkResolved(ctx context.Context, alertID string) error {
	return t.db.WithContext(ctx).Model(&models.SafetyAlert{}).
		Where("id = ? AND status = ?", alertID, models.StatusOpen).
		Update("status", models.StatusResolved).Error
}

// TargetView is the per-channel slice of an alert's status.
type TargetView struct {
	ChannelID     string               `json:"channel_id"`
	DeliveryState models.DeliveryState `json:"delivery_state"`
	DispatchedAt  time.Time            `json:"dispatched_at"`
}

// AckView is one recorded acknowledgment.
type AckView struct {
	UserID         string    `json:"user_id"`
	AcknowledgedAt time.Time `json:"acknowledged_at"`
	Notes          string    `json:"notes,omitempty"`
}

// StatusView is the caller-facing alert status.
type StatusView struct {
	AlertID        string             `json:"alert_id"`
	Status         models.AlertStatus `json:"status"`
	Severity       models.Severity    `json:"severity"`
	Targets        []TargetView       `json:"targets"`
	AcknowledgedBy []AckView          `json:"acknowledged_by"`
	RequiredAckers []string           `json:"required_ackers,omitempty"`
}

// Status assembles the status view for an alert.
func (t *Tracker) Status(ctx context.Context, alertID string) (*StatusView, error) {
	var a models.SafetyAlert
	err := t.db.WithContext(ctx).Where("id = ?", alertID).First(&a).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.InvalidArgument("alert %s does not exist", alertID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "load alert")
	}

	var targets []models.AlertTarget
	if err := t.db.WithContext(ctx).Where("alert_id = ?", alertID).Find(&targets).Error; err != nil {
		return nil, errors.Wrap(err, "load targets")
	}
	var acks []models.Acknowledgment
	if err := t.db.WithContext(ctx).Where("alert_id = ?", alertID).Order("acknowledged_at").Find(&acks).Error; err != nil {
		return nil, errors.Wrap(err, "load acknowledgments")
	}
	var required []models.AlertAcknowledger
	if err := t.db.WithContext(ctx).Where("alert_id = ?", alertID).Find(&required).Error; err != nil {
		return nil, errors.Wrap(err, "load required acknowledgers")
	}

	view := &StatusView{
		AlertID:  a.ID,
		Status:   a.Status,
		Severity: a.EffectiveSeverity(),
	}
	for _, tg := range targets {
		view.Targets = append(view.Targets, TargetView{
			ChannelID:     tg.ChannelID,
			DeliveryState: tg.DeliveryState,
			DispatchedAt:  tg.DispatchedAt,
		})
	}
	for _, ack := range acks {
		view.AcknowledgedBy = append(view.AcknowledgedBy, AckView{
			UserID:         ack.UserID,
			AcknowledgedAt: ack.AcknowledgedAt,
			Notes:          ack.Notes,
		})
	}
	for _, r := range required {
		view.RequiredAckers = append(view.RequiredAckers, r.UserID)
	}
	return view, nil
}
