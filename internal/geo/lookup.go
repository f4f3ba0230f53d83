// Package geo answers radius queries over the stored last-known member
// locations. It implements the location collaborator the alert resolver
// consumes.
package geo

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Dmccarty30/Journeyman-Jobs-sub014/internal/models"
)

const earthRadiusMiles = 3958.8

// Lookup queries member positions out of the persistence store. Positions
// older than MaxFixAge are ignored so a stale fix cannot pull a crew into
// an alert radius.
type Lookup struct {
	db        *gorm.DB
	log       *zap.Logger
	MaxFixAge time.Duration
}

func NewLookup(db *gorm.DB, log *zap.Logger) *Lookup {
	if log == nil {
		log = zap.NewNop()
	}
	return &Lookup{db: db, log: log, MaxFixAge: 24 * time.Hour}
}

// RecordLocation stores the latest fix for a user.
func (l *Lookup) RecordLocation(ctx context.Context, userID string, lat, lon float64) error {
	loc := models.MemberLocation{UserID: userID, Latitude: lat, Longitude: lon, RecordedAt: time.Now()}
	return l.db.WithContext(ctx).Save(&loc).Error
}

// UsersNearby returns the users whose last known fix is within radiusMiles.
func (l *Lookup) UsersNearby(ctx context.Context, lat, lon, radiusMiles float64) ([]string, error) {
	var locs []models.MemberLocation
	cutoff := time.Now().Add(-l.MaxFixAge)
	if err := l.db.WithContext(ctx).Where("recorded_at > ?", cutoff).Find(&locs).Error; err != nil {
		return nil, err
	}
	var users []string
	for _, loc := range locs {
		if Haversine(lat, lon, loc.Latitude, loc.Longitude) <= radiusMiles {
			users = append(users, loc.UserID)
		}
	}
	return users, nil
}

// CrewsNearby returns the crews with at least one member within
// radiusMiles.
func (l *Lookup) CrewsNearby(ctx context.Context, lat, lon, radiusMiles float64) ([]string, error) {
	users, err := l.UsersNearby(ctx, lat, lon, radiusMiles)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	var memberships []models.CrewMembership
	if err := l.db.WithContext(ctx).Where("user_id IN ?", users).Find(&memberships).Error; err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var crews []string
	for _, m := range memberships {
		if !seen[m.CrewID] {
			seen[m.CrewID] = true
			crews = append(crews, m.CrewID)
		}
	}
	return crews, nil
}

// Haversine returns the great-circle distance between two points in miles.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMiles * math.Asin(math.Sqrt(a))
}
