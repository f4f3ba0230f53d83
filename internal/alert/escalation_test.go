package alert

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Dmccarty30/Journeyman-Jobs-sub014/internal/models"
)

func newEscalatorUnderTest(t *testing.T, db *gorm.DB, transport *fakeTransport, members CrewMembers, frozen bool) *Escalator {
	t.Helper()
	if members == nil {
		members = fakeMembers{}
	}
	resolver := NewResolver(db, transport, fakeLocation{}, nil)
	dispatcher := NewDispatcher(db, transport, nil, fastDispatchConfig(), nil)
	tracker := NewTracker(db, nil)
	return NewEscalator(db, resolver, dispatcher, tracker, members, frozen, nil)
}

func backdate(t *testing.T, db *gorm.DB, alertID string, createdAgo time.Duration) {
	t.Helper()
	require.NoError(t, db.Model(&models.SafetyAlert{}).
		Where("id = ?", alertID).
		Update("created_at", time.Now().Add(-createdAgo)).Error)
}

func TestEscalation(t *testing.T) {
	ctx := context.Background()

	t.Run("overdue unacknowledged alert steps up and re-dispatches", func(t *testing.T) {
		db := testDB(t)
		transport := newFakeTransport()
		e := newEscalatorUnderTest(t, db, transport, nil, true)
		seedCrewRow(t, db, "crew-a", "chan-a")

		a := seedAlertRow(t, db, &models.SafetyAlert{
			Severity:        models.SeverityMedium,
			RequiresAck:     true,
			ExplicitCrewIDs: []string{"crew-a"},
		})
		require.NoError(t, e.tracker.FreezeAcknowledgers(ctx, a.ID, []string{"alice"}))
		backdate(t, db, a.ID, 20*time.Minute) // medium times out at 15m

		e.Run(ctx)

		got := reloadAlert(t, db, a.ID)
		assert.Equal(t, models.StatusEscalated, got.Status)
		require.NotNil(t, got.EscalatedSeverity)
		assert.Equal(t, models.SeverityHigh, *got.EscalatedSeverity)
		assert.NotNil(t, got.EscalatedAt)
		assert.Equal(t, models.SeverityMedium, got.Severity) // original untouched

		// Re-dispatched at high severity: crew channel plus broadcast.
		assert.Equal(t, 1, transport.delivered("chan-a"))
		assert.Equal(t, 1, transport.delivered("chan-safety-broadcast"))
	})

	t.Run("at most one step per timeout window", func(t *testing.T) {
		db := testDB(t)
		transport := newFakeTransport()
		e := newEscalatorUnderTest(t, db, transport, nil, true)
		seedCrewRow(t, db, "crew-a", "chan-a")

		a := seedAlertRow(t, db, &models.SafetyAlert{
			Severity:        models.SeverityMedium,
			RequiresAck:     true,
			ExplicitCrewIDs: []string{"crew-a"},
		})
		require.NoError(t, e.tracker.FreezeAcknowledgers(ctx, a.ID, []string{"alice"}))
		backdate(t, db, a.ID, 20*time.Minute)

		e.Run(ctx)
		e.Run(ctx) // the high window just opened; nothing is overdue

		got := reloadAlert(t, db, a.ID)
		require.NotNil(t, got.EscalatedSeverity)
		assert.Equal(t, models.SeverityHigh, *got.EscalatedSeverity)
		assert.Equal(t, 1, transport.delivered("chan-a"))
	})

	t.Run("escalation chain terminates at critical", func(t *testing.T) {
		db := testDB(t)
		transport := newFakeTransport()
		e := newEscalatorUnderTest(t, db, transport, nil, true)
		seedCrewRow(t, db, "crew-a", "chan-a")

		a := seedAlertRow(t, db, &models.SafetyAlert{
			Severity:        models.SeverityHigh,
			RequiresAck:     true,
			ExplicitCrewIDs: []string{"crew-a"},
		})
		require.NoError(t, e.tracker.FreezeAcknowledgers(ctx, a.ID, []string{"alice"}))
		backdate(t, db, a.ID, time.Hour)

		e.Run(ctx) // high -> critical
		got := reloadAlert(t, db, a.ID)
		require.NotNil(t, got.EscalatedSeverity)
		assert.Equal(t, models.SeverityCritical, *got.EscalatedSeverity)

		// Push the critical window into the past; the chain must not loop.
		require.NoError(t, db.Model(&models.SafetyAlert{}).
			Where("id = ?", a.ID).
			Update("escalated_at", time.Now().Add(-time.Hour)).Error)
		sends := transport.delivered("chan-a")

		e.Run(ctx)
		e.Run(ctx)

		assert.Equal(t, sends, transport.delivered("chan-a"))
		assert.Equal(t, models.SeverityCritical, *reloadAlert(t, db, a.ID).EscalatedSeverity)
	})

	t.Run("open critical alert re-fires once then stops", func(t *testing.T) {
		db := testDB(t)
		transport := newFakeTransport()
		e := newEscalatorUnderTest(t, db, transport, nil, true)
		seedCrewRow(t, db, "crew-a", "chan-a")

		a := seedAlertRow(t, db, &models.SafetyAlert{
			Severity:        models.SeverityCritical,
			RequiresAck:     true,
			ExplicitCrewIDs: []string{"crew-a"},
		})
		require.NoError(t, e.tracker.FreezeAcknowledgers(ctx, a.ID, []string{"alice"}))
		backdate(t, db, a.ID, 10*time.Minute) // critical times out at 5m

		e.Run(ctx)
		assert.Equal(t, 1, transport.delivered("chan-a"))
		assert.Equal(t, models.StatusEscalated, reloadAlert(t, db, a.ID).Status)

		require.NoError(t, db.Model(&models.SafetyAlert{}).
			Where("id = ?", a.ID).
			Update("escalated_at", time.Now().Add(-time.Hour)).Error)
		e.Run(ctx)
		assert.Equal(t, 1, transport.delivered("chan-a"))
	})

	t.Run("completed set resolves instead of escalating", func(t *testing.T) {
		db := testDB(t)
		transport := newFakeTransport()
		e := newEscalatorUnderTest(t, db, transport, nil, true)
		seedCrewRow(t, db, "crew-a", "chan-a")

		a := seedAlertRow(t, db, &models.SafetyAlert{
			Severity:        models.SeverityMedium,
			RequiresAck:     true,
			ExplicitCrewIDs: []string{"crew-a"},
		})
		require.NoError(t, e.tracker.FreezeAcknowledgers(ctx, a.ID, []string{"alice"}))
		require.NoError(t, db.Create(&models.Acknowledgment{
			AlertID: a.ID, UserID: "alice", AcknowledgedAt: time.Now(),
		}).Error)
		backdate(t, db, a.ID, 20*time.Minute)

		e.Run(ctx)

		got := reloadAlert(t, db, a.ID)
		assert.Equal(t, models.StatusResolved, got.Status)
		assert.Nil(t, got.EscalatedSeverity)
		assert.Zero(t, transport.delivered("chan-a"))
	})

	t.Run("resolved alerts are never scanned", func(t *testing.T) {
		db := testDB(t)
		transport := newFakeTransport()
		e := newEscalatorUnderTest(t, db, transport, nil, true)
		seedCrewRow(t, db, "crew-a", "chan-a")

		a := seedAlertRow(t, db, &models.SafetyAlert{
			Severity:        models.SeverityMedium,
			RequiresAck:     true,
			Status:          models.StatusResolved,
			ExplicitCrewIDs: []string{"crew-a"},
		})
		backdate(t, db, a.ID, time.Hour)

		e.Run(ctx)
		assert.Equal(t, models.StatusResolved, reloadAlert(t, db, a.ID).Status)
		assert.Zero(t, transport.delivered("chan-a"))
	})

	t.Run("unfrozen policy extends the required set on escalation", func(t *testing.T) {
		db := testDB(t)
		transport := newFakeTransport()
		e := newEscalatorUnderTest(t, db, transport, fakeMembers{users: []string{"alice", "carol"}}, false)
		seedCrewRow(t, db, "crew-a", "chan-a")

		a := seedAlertRow(t, db, &models.SafetyAlert{
			Severity:        models.SeverityMedium,
			RequiresAck:     true,
			ExplicitCrewIDs: []string{"crew-a"},
		})
		require.NoError(t, e.tracker.FreezeAcknowledgers(ctx, a.ID, []string{"alice"}))
		backdate(t, db, a.ID, 20*time.Minute)

		e.Run(ctx)

		var required []models.AlertAcknowledger
		require.NoError(t, db.Where("alert_id = ?", a.ID).Find(&required).Error)
		users := make([]string, 0, len(required))
		for _, r := range required {
			users = append(users, r.UserID)
		}
		assert.ElementsMatch(t, []string{"alice", "carol"}, users)
	})

	t.Run("frozen policy keeps the dispatch-time snapshot", func(t *testing.T) {
		db := testDB(t)
		transport := newFakeTransport()
		e := newEscalatorUnderTest(t, db, transport, fakeMembers{users: []string{"alice", "carol"}}, true)
		seedCrewRow(t, db, "crew-a", "chan-a")

		a := seedAlertRow(t, db, &models.SafetyAlert{
			Severity:        models.SeverityMedium,
			RequiresAck:     true,
			ExplicitCrewIDs: []string{"crew-a"},
		})
		require.NoError(t, e.tracker.FreezeAcknowledgers(ctx, a.ID, []string{"alice"}))
		backdate(t, db, a.ID, 20*time.Minute)

		e.Run(ctx)

		var count int64
		require.NoError(t, db.Model(&models.AlertAcknowledger{}).Where("alert_id = ?", a.ID).Count(&count).Error)
		assert.EqualValues(t, 1, count)
	})
}
