package alert

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Dmccarty30/Journeyman-Jobs-sub014/internal/models"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/chat"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/errors"
)

// LocationLookup is the slice of the location collaborator the resolver
// consumes.
type LocationLookup interface {
	CrewsNearby(ctx context.Context, lat, lon, radiusMiles float64) ([]string, error)
}

// Resolution is the deduplicated target set for one dispatch. CrewIDs are
// the crews whose channels were targeted; the broadcast channel contributes
// no crew and no required acknowledgers.
type Resolution struct {
	Channels []string
	CrewIDs  []string
}

// Resolver computes the destination channel set for an alert at a given
// severity. Resolution is idempotent: the same alert and severity always
// yield the same set (modulo membership and location changes).
type Resolver struct {
	db        *gorm.DB
	transport chat.Transport
	location  LocationLookup
	log       *zap.Logger
}

func NewResolver(db *gorm.DB, transport chat.Transport, location LocationLookup, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{db: db, transport: transport, location: location, log: log}
}

// Resolve computes targets for the alert at severity. Zero targets is not
// an error; the caller surfaces it as a warning.
func (r *Resolver) Resolve(ctx context.Context, a *models.SafetyAlert, severity models.Severity) (*Resolution, error) {
	crewSet := make(map[string]bool)
	for _, id := range a.ExplicitCrewIDs {
		crewSet[id] = true
	}

	if a.Latitude != nil && a.Longitude != nil && a.RadiusMiles != nil {
		nearby, err := r.location.CrewsNearby(ctx, *a.Latitude, *a.Longitude, *a.RadiusMiles)
		if err != nil {
			return nil, errors.Wrap(err, "geo lookup")
		}
		for _, id := range nearby {
			crewSet[id] = true
		}
	}

	channelSet := make(map[string]bool)
	var crewIDs []string
	if len(crewSet) > 0 {
		ids := make([]string, 0, len(crewSet))
		for id := range crewSet {
			ids = append(ids, id)
		}
		var crews []models.Crew
		if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&crews).Error; err != nil {
			return nil, errors.Wrap(err, "load crews")
		}
		for _, c := range crews {
			if c.AlertChannelID == "" {
				r.log.Warn("crew has no alert channel", zap.String("crew_id", c.ID))
				continue
			}
			channelSet[c.AlertChannelID] = true
			crewIDs = append(crewIDs, c.ID)
		}
	}

	// High and critical alerts always include the shared broadcast channel,
	// regardless of explicit or geo scope.
	if severity.Rank() >= models.SeverityHigh.Rank() {
		broadcast, err := r.broadcastChannel(ctx)
		if err != nil {
			return nil, err
		}
		channelSet[broadcast] = true
	}

	channels := make([]string, 0, len(channelSet))
	for ch := range channelSet {
		channels = append(channels, ch)
	}
	sort.Strings(channels)
	sort.Strings(crewIDs)
	return &Resolution{Channels: channels, CrewIDs: crewIDs}, nil
}

// broadcastChannel returns the persisted shared safety broadcast channel,
// lazily creating it on the transport the first time.
func (r *Resolver) broadcastChannel(ctx context.Context) (string, error) {
	var rec models.SystemChannel
	err := r.db.WithContext(ctx).Where("purpose = ?", models.BroadcastChannelPurpose).First(&rec).Error
	if err == nil {
		return rec.ChannelID, nil
	}
	if err != gorm.ErrRecordNotFound {
		return "", errors.Wrap(err, "load broadcast channel")
	}

	channelID, err := r.transport.EnsureChannel(ctx, models.BroadcastChannelPurpose)
	if err != nil {
		return "", errors.Wrap(err, "ensure broadcast channel")
	}
	rec = models.SystemChannel{
		Purpose:   models.BroadcastChannelPurpose,
		ChannelID: channelID,
		CreatedAt: time.Now(),
	}
	// Another process may have won the race; keep whichever row landed.
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rec).Error; err != nil {
		return "", errors.Wrap(err, "persist broadcast channel")
	}
	if err := r.db.WithContext(ctx).Where("purpose = ?", models.BroadcastChannelPurpose).First(&rec).Error; err != nil {
		return "", errors.Wrap(err, "reload broadcast channel")
	}
	return rec.ChannelID, nil
}
