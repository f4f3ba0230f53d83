package alert

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dmccarty30/Journeyman-Jobs-sub014/internal/models"
)

func TestResolve(t *testing.T) {
	db := testDB(t)
	transport := newFakeTransport()
	ctx := context.Background()

	// Three crews, two of which share a channel.
	seedCrewRow(t, db, "crew-a", "chan-x")
	seedCrewRow(t, db, "crew-b", "chan-x")
	seedCrewRow(t, db, "crew-c", "chan-y")

	t.Run("critical geo alert dedupes shared channels and adds broadcast", func(t *testing.T) {
		r := NewResolver(db, transport, fakeLocation{crews: []string{"crew-a", "crew-b", "crew-c"}}, nil)
		lat, lon, radius := 40.0, -105.0, 25.0
		a := &models.SafetyAlert{ID: "a1", Latitude: &lat, Longitude: &lon, RadiusMiles: &radius}

		res, err := r.Resolve(ctx, a, models.SeverityCritical)
		require.NoError(t, err)
		// chan-x once, chan-y once, plus the broadcast channel.
		assert.Equal(t, []string{"chan-safety-broadcast", "chan-x", "chan-y"}, res.Channels)
		assert.Equal(t, []string{"crew-a", "crew-b", "crew-c"}, res.CrewIDs)
	})

	t.Run("resolution is idempotent", func(t *testing.T) {
		r := NewResolver(db, transport, fakeLocation{crews: []string{"crew-a"}}, nil)
		a := &models.SafetyAlert{ID: "a2", ExplicitCrewIDs: []string{"crew-c"}}

		first, err := r.Resolve(ctx, a, models.SeverityHigh)
		require.NoError(t, err)
		second, err := r.Resolve(ctx, a, models.SeverityHigh)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("explicit and geo crews union", func(t *testing.T) {
		r := NewResolver(db, transport, fakeLocation{crews: []string{"crew-a"}}, nil)
		lat, lon, radius := 40.0, -105.0, 25.0
		a := &models.SafetyAlert{
			ID:              "a3",
			ExplicitCrewIDs: []string{"crew-c"},
			Latitude:        &lat, Longitude: &lon, RadiusMiles: &radius,
		}

		res, err := r.Resolve(ctx, a, models.SeverityLow)
		require.NoError(t, err)
		// Low severity: no broadcast channel.
		assert.Equal(t, []string{"chan-x", "chan-y"}, res.Channels)
	})

	t.Run("unknown crew resolves to zero targets", func(t *testing.T) {
		r := NewResolver(db, transport, fakeLocation{}, nil)
		a := &models.SafetyAlert{ID: "a4", ExplicitCrewIDs: []string{"no-such-crew"}}

		res, err := r.Resolve(ctx, a, models.SeverityMedium)
		require.NoError(t, err)
		assert.Empty(t, res.Channels)
		assert.Empty(t, res.CrewIDs)
	})

	t.Run("high severity alone still reaches broadcast", func(t *testing.T) {
		r := NewResolver(db, transport, fakeLocation{}, nil)
		a := &models.SafetyAlert{ID: "a5"}

		res, err := r.Resolve(ctx, a, models.SeverityHigh)
		require.NoError(t, err)
		assert.Equal(t, []string{"chan-safety-broadcast"}, res.Channels)
		assert.Empty(t, res.CrewIDs)
	})
}

func TestBroadcastChannelPersisted(t *testing.T) {
	db := testDB(t)
	transport := newFakeTransport()
	r := NewResolver(db, transport, fakeLocation{}, nil)
	ctx := context.Background()

	a := &models.SafetyAlert{ID: "a1"}
	_, err := r.Resolve(ctx, a, models.SeverityCritical)
	require.NoError(t, err)

	var rec models.SystemChannel
	require.NoError(t, db.Where("purpose = ?", models.BroadcastChannelPurpose).First(&rec).Error)
	assert.Equal(t, "chan-safety-broadcast", rec.ChannelID)

	// A second resolve reuses the persisted channel.
	res, err := r.Resolve(ctx, a, models.SeverityCritical)
	require.NoError(t, err)
	assert.Equal(t, []string{rec.ChannelID}, res.Channels)

	var count int64
	require.NoError(t, db.Model(&models.SystemChannel{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
