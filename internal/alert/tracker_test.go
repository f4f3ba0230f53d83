package alert

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dmccarty30/Journeyman-Jobs-sub014/internal/models"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/errors"
)

func TestAcknowledge(t *testing.T) {
	ctx := context.Background()

	t.Run("alert resolves when the required set completes", func(t *testing.T) {
		db := testDB(t)
		tr := NewTracker(db, nil)
		a := seedAlertRow(t, db, &models.SafetyAlert{Severity: models.SeverityHigh, RequiresAck: true})
		require.NoError(t, tr.FreezeAcknowledgers(ctx, a.ID, []string{"alice", "bob"}))

		require.NoError(t, tr.Acknowledge(ctx, a.ID, "alice", "on my way"))
		assert.Equal(t, models.StatusOpen, reloadAlert(t, db, a.ID).Status)

		require.NoError(t, tr.Acknowledge(ctx, a.ID, "bob", ""))
		assert.Equal(t, models.StatusResolved, reloadAlert(t, db, a.ID).Status)
	})

	t.Run("duplicate ack updates notes without double counting", func(t *testing.T) {
		db := testDB(t)
		tr := NewTracker(db, nil)
		a := seedAlertRow(t, db, &models.SafetyAlert{Severity: models.SeverityHigh, RequiresAck: true})
		require.NoError(t, tr.FreezeAcknowledgers(ctx, a.ID, []string{"alice", "bob"}))

		require.NoError(t, tr.Acknowledge(ctx, a.ID, "alice", "first"))
		require.NoError(t, tr.Acknowledge(ctx, a.ID, "alice", "second"))

		var acks []models.Acknowledgment
		require.NoError(t, db.Where("alert_id = ?", a.ID).Find(&acks).Error)
		require.Len(t, acks, 1)
		assert.Equal(t, "second", acks[0].Notes)

		// bob never acked; alice twice does not complete the set.
		assert.Equal(t, models.StatusOpen, reloadAlert(t, db, a.ID).Status)
	})

	t.Run("ack on resolved alert is AlreadyResolved", func(t *testing.T) {
		db := testDB(t)
		tr := NewTracker(db, nil)
		a := seedAlertRow(t, db, &models.SafetyAlert{Severity: models.SeverityLow, Status: models.StatusResolved})

		err := tr.Acknowledge(ctx, a.ID, "alice", "")
		assert.True(t, errors.IsAlreadyResolved(err))
	})

	t.Run("ack on unknown alert is InvalidArgument", func(t *testing.T) {
		db := testDB(t)
		tr := NewTracker(db, nil)
		err := tr.Acknowledge(ctx, "no-such-alert", "alice", "")
		assert.True(t, errors.IsInvalidArgument(err))
	})

	t.Run("non-required user counts as an ack but not toward completion", func(t *testing.T) {
		db := testDB(t)
		tr := NewTracker(db, nil)
		a := seedAlertRow(t, db, &models.SafetyAlert{Severity: models.SeverityHigh, RequiresAck: true})
		require.NoError(t, tr.FreezeAcknowledgers(ctx, a.ID, []string{"alice"}))

		require.NoError(t, tr.Acknowledge(ctx, a.ID, "mallory", "passing by"))
		assert.Equal(t, models.StatusOpen, reloadAlert(t, db, a.ID).Status)

		require.NoError(t, tr.Acknowledge(ctx, a.ID, "alice", ""))
		assert.Equal(t, models.StatusResolved, reloadAlert(t, db, a.ID).Status)
	})
}

func TestComplete(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	tr := NewTracker(db, nil)

	t.Run("empty required set is trivially complete", func(t *testing.T) {
		a := seedAlertRow(t, db, &models.SafetyAlert{Severity: models.SeverityLow})
		complete, err := tr.Complete(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, complete)
	})

	t.Run("freeze is idempotent", func(t *testing.T) {
		a := seedAlertRow(t, db, &models.SafetyAlert{Severity: models.SeverityLow, RequiresAck: true})
		require.NoError(t, tr.FreezeAcknowledgers(ctx, a.ID, []string{"alice", "bob"}))
		require.NoError(t, tr.FreezeAcknowledgers(ctx, a.ID, []string{"alice", "bob"}))

		var count int64
		require.NoError(t, db.Model(&models.AlertAcknowledger{}).Where("alert_id = ?", a.ID).Count(&count).Error)
		assert.EqualValues(t, 2, count)
	})
}

func TestMarkResolved(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	tr := NewTracker(db, nil)

	a := seedAlertRow(t, db, &models.SafetyAlert{Severity: models.SeverityLow})
	require.NoError(t, tr.MarkResolved(ctx, a.ID))
	assert.Equal(t, models.StatusResolved, reloadAlert(t, db, a.ID).Status)

	// Escalated alerts are not touched by the open -> resolved shortcut.
	b := seedAlertRow(t, db, &models.SafetyAlert{Severity: models.SeverityLow, Status: models.StatusEscalated})
	require.NoError(t, tr.MarkResolved(ctx, b.ID))
	assert.Equal(t, models.StatusEscalated, reloadAlert(t, db, b.ID).Status)
}

func TestStatusView(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	tr := NewTracker(db, nil)
	transport := newFakeTransport()
	d := NewDispatcher(db, transport, nil, fastDispatchConfig(), nil)

	a := seedAlertRow(t, db, &models.SafetyAlert{Severity: models.SeverityMedium, RequiresAck: true})
	require.NoError(t, tr.FreezeAcknowledgers(ctx, a.ID, []string{"alice", "bob"}))
	_, err := d.Dispatch(ctx, a, models.SeverityMedium, []string{"chan-1", "chan-2"})
	require.NoError(t, err)
	require.NoError(t, tr.Acknowledge(ctx, a.ID, "alice", "seen"))

	view, err := tr.Status(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, view.Status)
	assert.Equal(t, models.SeverityMedium, view.Severity)
	assert.Len(t, view.Targets, 2)
	require.Len(t, view.AcknowledgedBy, 1)
	assert.Equal(t, "alice", view.AcknowledgedBy[0].UserID)
	assert.ElementsMatch(t, []string{"alice", "bob"}, view.RequiredAckers)

	_, err = tr.Status(ctx, "no-such-alert")
	assert.True(t, errors.IsInvalidArgument(err))
}
