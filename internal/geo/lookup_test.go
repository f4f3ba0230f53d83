package geo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Dmccarty30/Journeyman-Jobs-sub014/internal/models"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/internal/store"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := store.Open("", dsn)
	require.NoError(t, err)
	require.NoError(t, store.AutoMigrate(db))
	return db
}

func TestHaversine(t *testing.T) {
	// Denver to Boulder is roughly 24 miles.
	d := Haversine(39.7392, -104.9903, 40.0150, -105.2705)
	assert.InDelta(t, 24, d, 2)

	assert.Zero(t, Haversine(40, -105, 40, -105))
}

func TestUsersNearby(t *testing.T) {
	db := testDB(t)
	l := NewLookup(db, nil)
	ctx := context.Background()

	require.NoError(t, l.RecordLocation(ctx, "close", 39.75, -105.0))
	require.NoError(t, l.RecordLocation(ctx, "far", 34.05, -118.24)) // Los Angeles

	t.Run("radius filter", func(t *testing.T) {
		users, err := l.UsersNearby(ctx, 39.7392, -104.9903, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"close"}, users)
	})

	t.Run("stale fix is ignored", func(t *testing.T) {
		require.NoError(t, db.Create(&models.MemberLocation{
			UserID:     "stale",
			Latitude:   39.74,
			Longitude:  -104.99,
			RecordedAt: time.Now().Add(-48 * time.Hour),
		}).Error)

		users, err := l.UsersNearby(ctx, 39.7392, -104.9903, 10)
		require.NoError(t, err)
		assert.NotContains(t, users, "stale")
	})

	t.Run("new fix replaces the old one", func(t *testing.T) {
		require.NoError(t, l.RecordLocation(ctx, "close", 34.05, -118.24))
		users, err := l.UsersNearby(ctx, 39.7392, -104.9903, 10)
		require.NoError(t, err)
		assert.NotContains(t, users, "close")
	})
}

func TestCrewsNearby(t *testing.T) {
	db := testDB(t)
	l := NewLookup(db, nil)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.CrewMembership{UserID: "alice", CrewID: "crew-1", Role: models.RoleOwner, JoinedAt: time.Now()}).Error)
	require.NoError(t, db.Create(&models.CrewMembership{UserID: "alice", CrewID: "crew-2", Role: models.RoleMember, JoinedAt: time.Now()}).Error)
	require.NoError(t, db.Create(&models.CrewMembership{UserID: "bob", CrewID: "crew-1", Role: models.RoleMember, JoinedAt: time.Now()}).Error)

	require.NoError(t, l.RecordLocation(ctx, "alice", 39.75, -105.0))
	require.NoError(t, l.RecordLocation(ctx, "bob", 39.74, -104.99))

	crews, err := l.CrewsNearby(ctx, 39.7392, -104.9903, 10)
	require.NoError(t, err)
	// crew-1 has two nearby members but appears once.
	assert.ElementsMatch(t, []string{"crew-1", "crew-2"}, crews)

	none, err := l.CrewsNearby(ctx, 0, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
