package alert

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Dmccarty30/Journeyman-Jobs-sub014/internal/models"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/chat"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/metrics"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/notification"
)

// DispatcherConfig bounds the fan-out. Zero values take the defaults.
type DispatcherConfig struct {
	Concurrency    int           // max in-flight deliveries per dispatch
	Attempts       int           // delivery attempts per target
	AttemptTimeout time.Duration // per-attempt
	BackoffBase    time.Duration // doubles per retry
	Timeout        time.Duration // aggregate per dispatch
}

func (c *DispatcherConfig) defaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 50
	}
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 5 * time.Second
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 250 * time.Millisecond
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// Report enumerates per-channel delivery outcomes for one dispatch. The
// caller decides whether failed channels warrant operator attention; a
// failed target never fails the dispatch itself.
type Report struct {
	AlertID   string                         `json:"alert_id"`
	States    map[string]models.DeliveryState `json:"states"`
	NoTargets bool                           `json:"no_targets,omitempty"`
}

// Failed returns the channels that exhausted their attempts.
func (r *Report) Failed() []string {
	var failed []string
	for ch, st := range r.States {
		if st == models.DeliveryFailed {
			failed = append(failed, ch)
		}
	}
	return failed
}

// Dispatcher fans an alert out to its target channels with a bounded worker
// pool. Targets are independent: no ordering, no atomicity across them.
type Dispatcher struct {
	db        *gorm.DB
	transport chat.Transport
	pusher    notification.Pusher
	cfg       DispatcherConfig
	log       *zap.Logger
}

func NewDispatcher(db *gorm.DB, transport chat.Transport, pusher notification.Pusher, cfg DispatcherConfig, log *zap.Logger) *Dispatcher {
	cfg.defaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{db: db, transport: transport, pusher: pusher, cfg: cfg, log: log}
}

// Dispatch delivers the alert to every channel, records per-target outcome,
// and fires the critical push exactly once per dispatch. Blocks until the
// fan-out completes or the aggregate timeout expires; targets still pending
// at the deadline are recorded failed, never left pending.
func (d *Dispatcher) Dispatch(ctx context.Context, a *models.SafetyAlert, severity models.Severity, channels []string) (*Report, error) {
	report := &Report{AlertID: a.ID, States: make(map[string]models.DeliveryState, len(channels))}
	if len(channels) == 0 {
		report.NoTargets = true
		d.log.Warn("alert resolved zero targets", zap.String("alert_id", a.ID), zap.String("severity", string(severity)))
		d.pushIfCritical(ctx, a, severity)
		return report, nil
	}

	now := time.Now()
	for _, ch := range channels {
		target := models.AlertTarget{
			AlertID:       a.ID,
			ChannelID:     ch,
			DispatchedAt:  now,
			DeliveryState: models.DeliveryPending,
		}
		// Escalation re-dispatch reuses the row: delivery restarts, the
		// dedup invariant (one row per channel per alert) holds.
		if err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "alert_id"}, {Name: "channel_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"dispatched_at":  now,
				"delivery_state": models.DeliveryPending,
				"attempts":       0,
				"last_error":     "",
			}),
		}).Create(&target).Error; err != nil {
			d.log.Error("record alert target", zap.String("alert_id", a.ID), zap.String("channel", ch), zap.Error(err))
		}
	}

	payload := buildPayload(a, severity)

	dispatchCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, d.cfg.Concurrency)
	)
	for _, ch := range channels {
		wg.Add(1)
		go func(channelID string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-dispatchCtx.Done():
				// Aggregate timeout: never leave a target pending.
				mu.Lock()
				report.States[channelID] = models.DeliveryFailed
				mu.Unlock()
				d.recordOutcome(a.ID, channelID, models.DeliveryFailed, 0, dispatchCtx.Err())
				return
			}

			state, attempts, lastErr := d.deliver(dispatchCtx, channelID, payload)
			mu.Lock()
			report.States[channelID] = state
			mu.Unlock()
			d.recordOutcome(a.ID, channelID, state, attempts, lastErr)
		}(ch)
	}
	wg.Wait()

	d.pushIfCritical(ctx, a, severity)

	d.log.Info("dispatch complete",
		zap.String("alert_id", a.ID),
		zap.String("severity", string(severity)),
		zap.Int("targets", len(channels)),
		zap.Int("failed", len(report.Failed())))
	return report, nil
}

// deliver attempts one channel with bounded retries and exponential
// backoff.
func (d *Dispatcher) deliver(ctx context.Context, channelID string, payload chat.Payload) (models.DeliveryState, int, error) {
	var lastErr error
	backoff := d.cfg.BackoffBase
	for attempt := 1; attempt <= d.cfg.Attempts; attempt++ {
		metrics.DispatchAttempts.Inc()
		attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.AttemptTimeout)
		err := d.transport.SendToChannel(attemptCtx, channelID, payload)
		cancel()
		if err == nil {
			metrics.DispatchOutcomes.WithLabelValues("delivered").Inc()
			return models.DeliveryDelivered, attempt, nil
		}
		lastErr = err
		d.log.Warn("delivery attempt failed",
			zap.String("channel", channelID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt == d.cfg.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			metrics.DispatchOutcomes.WithLabelValues("failed").Inc()
			return models.DeliveryFailed, attempt, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	metrics.DispatchOutcomes.WithLabelValues("failed").Inc()
	return models.DeliveryFailed, d.cfg.Attempts, lastErr
}

func (d *Dispatcher) recordOutcome(alertID, channelID string, state models.DeliveryState, attempts int, lastErr error) {
	update := map[string]interface{}{
		"delivery_state": state,
		"attempts":       attempts,
	}
	if lastErr != nil {
		update["last_error"] = lastErr.Error()
	}
	if err := d.db.Model(&models.AlertTarget{}).
		Where("alert_id = ? AND channel_id = ?", alertID, channelID).
		Updates(update).Error; err != nil {
		d.log.Error("record delivery outcome", zap.String("alert_id", alertID), zap.String("channel", channelID), zap.Error(err))
	}
}

// ReapStalePending fails targets stuck in pending longer than age. A target
// can only be left pending by a crash mid-dispatch; normal completion and
// timeout paths both record a terminal state.
func (d *Dispatcher) ReapStalePending(ctx context.Context, age time.Duration) {
	cutoff := time.Now().Add(-age)
	res := d.db.WithContext(ctx).Model(&models.AlertTarget{}).
		Where("delivery_state = ? AND dispatched_at < ?", models.DeliveryPending, cutoff).
		Updates(map[string]interface{}{
			"delivery_state": models.DeliveryFailed,
			"last_error":     "reaped: stuck in pending",
		})
	if res.Error != nil {
		d.log.Error("reap stale targets", zap.Error(res.Error))
		return
	}
	if res.RowsAffected > 0 {
		d.log.Warn("reaped stale pending targets", zap.Int64("count", res.RowsAffected))
	}
}

// pushIfCritical fires the device push once per dispatch, not per target.
func (d *Dispatcher) pushIfCritical(ctx context.Context, a *models.SafetyAlert, severity models.Severity) {
	if severity != models.SeverityCritical || d.pusher == nil {
		return
	}
	meta := map[string]string{"alert_id": a.ID, "type": a.Type}
	if err := d.pusher.SendCriticalPush(ctx, "Safety Alert", a.Description, meta); err != nil {
		d.log.Error("critical push failed", zap.String("alert_id", a.ID), zap.Error(err))
		return
	}
	metrics.CriticalPushes.Inc()
}

func buildPayload(a *models.SafetyAlert, severity models.Severity) chat.Payload {
	return chat.Payload{
		Kind: chat.KindSafetyAlert,
		SafetyAlert: &chat.SafetyAlertPayload{
			AlertID:     a.ID,
			Type:        a.Type,
			Severity:    string(severity),
			Description: a.Description,
			Latitude:    a.Latitude,
			Longitude:   a.Longitude,
			RequiresAck: a.RequiresAck,
			CreatedBy:   a.CreatedBy,
			CreatedAt:   a.CreatedAt,
		},
	}
}
