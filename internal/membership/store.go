// Package membership owns the authoritative user -> crew -> role mapping.
// It is the single writer of role state; everything else reads through it.
package membership

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Dmccarty30/Journeyman-Jobs-sub014/internal/models"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/internal/permission"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/internal/store"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/cache"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/chat"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/errors"
)

// UserLocator is the slice of the location collaborator this store needs.
type UserLocator interface {
	UsersNearby(ctx context.Context, lat, lon, radiusMiles float64) ([]string, error)
}

const roleCacheTTL = 5 * time.Minute

type Store struct {
	db        *gorm.DB
	members   *store.Records[models.CrewMembership]
	crews     *store.Records[models.Crew]
	transport chat.Transport
	locator   UserLocator
	cache     cache.Cache
	log       *zap.Logger
}

func New(db *gorm.DB, transport chat.Transport, locator UserLocator, c cache.Cache, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		db:        db,
		members:   store.NewRecords[models.CrewMembership](db),
		crews:     store.NewRecords[models.Crew](db),
		transport: transport,
		locator:   locator,
		cache:     c,
		log:       log,
	}
}

func roleCacheKey(userID, crewID string) string { return "role:" + crewID + ":" + userID }

// CreateCrew creates a crew with its canonical alert channel and installs
// the creator as owner.
func (s *Store) CreateCrew(ctx context.Context, name, creatorID string) (*models.Crew, error) {
	channelID, err := s.transport.EnsureChannel(ctx, "crew-alerts:"+name)
	if err != nil {
		return nil, errors.Wrapf(err, "create alert channel for crew %q", name)
	}
	crew := &models.Crew{
		ID:             uuid.NewString(),
		Name:           name,
		AlertChannelID: channelID,
		CreatedBy:      creatorID,
		CreatedAt:      time.Now(),
	}
	owner := &models.CrewMembership{
		UserID:   creatorID,
		CrewID:   crew.ID,
		Role:     models.RoleOwner,
		JoinedAt: time.Now(),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(crew).Error; err != nil {
			return err
		}
		return tx.Create(owner).Error
	})
	if err != nil {
		return nil, errors.Wrap(err, "create crew")
	}
	s.log.Info("crew created",
		zap.String("crew_id", crew.ID),
		zap.String("channel_id", channelID),
		zap.String("created_by", creatorID))
	return crew, nil
}

// GetCrew returns a crew by id.
func (s *Store) GetCrew(ctx context.Context, crewID string) (*models.Crew, error) {
	crew, err := s.crews.Get(ctx, "id = ?", crewID)
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotAMember("crew %s does not exist", crewID)
	}
	return crew, err
}

// GetRole returns the user's active role in the crew, or NotAMember.
func (s *Store) GetRole(ctx context.Context, userID, crewID string) (models.Role, error) {
	key := roleCacheKey(userID, crewID)
	if v, ok := s.cache.Get(ctx, key); ok {
		if name, ok := v.(string); ok {
			if role := models.Role(name); role.Valid() {
				return role, nil
			}
		}
	}
	m, err := s.members.Get(ctx, "user_id = ? AND crew_id = ?", userID, crewID)
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return "", errors.NotAMember("user %s is not a member of crew %s", userID, crewID)
	}
	if err != nil {
		return "", errors.Wrap(err, "load membership")
	}
	_ = s.cache.Set(ctx, key, string(m.Role), roleCacheTTL)
	return m.Role, nil
}

// AddMember creates a membership. The actor needs inviteMembers and may
// never grant a role at or above their own level.
func (s *Store) AddMember(ctx context.Context, actorID, userID, crewID string, role models.Role) error {
	actorRole, err := s.GetRole(ctx, actorID, crewID)
	if err != nil {
		return err
	}
	if !permission.HasPermission(actorRole, models.PermInviteMembers) {
		return errors.PermissionDenied("%s may not invite members to crew %s", actorID, crewID)
	}
	if actorRole.Level() <= role.Level() {
		return errors.PermissionDenied("cannot grant role %s at or above own role %s", role, actorRole)
	}

	existing, err := s.members.Get(ctx, "user_id = ? AND crew_id = ?", userID, crewID)
	if err == nil {
		if existing.Role == role {
			return nil // idempotent
		}
		return errors.InvalidArgument("user %s is already a member of crew %s", userID, crewID)
	}
	if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrap(err, "load membership")
	}

	m := &models.CrewMembership{UserID: userID, CrewID: crewID, Role: role, JoinedAt: time.Now()}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return errors.Wrap(err, "create membership")
	}
	_ = s.cache.Delete(ctx, roleCacheKey(userID, crewID))
	return nil
}

// SetRole changes an existing member's role. The actor's level must
// strictly exceed both the target's current level and the new level, so no
// self-escalation or lateral demotion path exists. Setting the current role
// again is a no-op.
func (s *Store) SetRole(ctx context.Context, actorID, targetID, crewID string, newRole models.Role) error {
	actorRole, err := s.GetRole(ctx, actorID, crewID)
	if err != nil {
		return err
	}
	target, err := s.members.Get(ctx, "user_id = ? AND crew_id = ?", targetID, crewID)
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return errors.NotAMember("user %s is not a member of crew %s", targetID, crewID)
	}
	if err != nil {
		return errors.Wrap(err, "load membership")
	}

	if actorRole.Level() <= target.Role.Level() {
		return errors.PermissionDenied("%s (%s) may not change role of %s (%s)", actorID, actorRole, targetID, target.Role)
	}
	if actorRole.Level() <= newRole.Level() {
		return errors.PermissionDenied("cannot grant role %s at or above own role %s", newRole, actorRole)
	}
	if target.Role == newRole {
		return nil // no-op, not an error
	}

	target.Role = newRole
	if err := s.members.Put(ctx, target); err != nil {
		return errors.Wrap(err, "update role")
	}
	_ = s.cache.Delete(ctx, roleCacheKey(targetID, crewID))
	s.log.Info("role changed",
		zap.String("crew_id", crewID),
		zap.String("actor", actorID),
		zap.String("target", targetID),
		zap.String("role", string(newRole)))
	return nil
}

// RemoveMember destroys a membership. The actor needs removeMembers and a
// strictly higher role than the target.
func (s *Store) RemoveMember(ctx context.Context, actorID, targetID, crewID string) error {
	actorRole, err := s.GetRole(ctx, actorID, crewID)
	if err != nil {
		return err
	}
	if !permission.HasPermission(actorRole, models.PermRemoveMembers) {
		return errors.PermissionDenied("%s may not remove members from crew %s", actorID, crewID)
	}
	target, err := s.members.Get(ctx, "user_id = ? AND crew_id = ?", targetID, crewID)
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return errors.NotAMember("user %s is not a member of crew %s", targetID, crewID)
	}
	if err != nil {
		return errors.Wrap(err, "load membership")
	}
	if actorRole.Level() <= target.Role.Level() {
		return errors.PermissionDenied("%s (%s) may not remove %s (%s)", actorID, actorRole, targetID, target.Role)
	}
	if err := s.members.Delete(ctx, "user_id = ? AND crew_id = ?", targetID, crewID); err != nil {
		return errors.Wrap(err, "delete membership")
	}
	_ = s.cache.Delete(ctx, roleCacheKey(targetID, crewID))
	return nil
}

// ShareJob posts a job listing into the crew's alert channel. The actor
// needs shareJobs in that crew.
func (s *Store) ShareJob(ctx context.Context, actorID, crewID string, job chat.JobPostingPayload) error {
	role, err := s.GetRole(ctx, actorID, crewID)
	if err != nil {
		return err
	}
	if !permission.HasPermission(role, models.PermShareJobs) {
		return errors.PermissionDenied("%s may not share jobs in crew %s", actorID, crewID)
	}
	crew, err := s.GetCrew(ctx, crewID)
	if err != nil {
		return err
	}
	job.SharedBy = actorID
	payload := chat.Payload{Kind: chat.KindJobPosting, JobPosting: &job}
	if err := s.transport.SendToChannel(ctx, crew.AlertChannelID, payload); err != nil {
		return errors.Wrap(err, "deliver job posting")
	}
	return nil
}

// MembersOf returns all memberships of a crew.
func (s *Store) MembersOf(ctx context.Context, crewID string) ([]models.CrewMembership, error) {
	return s.members.Find(ctx, "crew_id = ?", crewID)
}

// CrewsOf returns all memberships held by a user.
func (s *Store) CrewsOf(ctx context.Context, userID string) ([]models.CrewMembership, error) {
	return s.members.Find(ctx, "user_id = ?", userID)
}

// MembersOfCrews returns the distinct user ids across a set of crews.
func (s *Store) MembersOfCrews(ctx context.Context, crewIDs []string) ([]string, error) {
	if len(crewIDs) == 0 {
		return nil, nil
	}
	memberships, err := s.members.Find(ctx, "crew_id IN ?", crewIDs)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var users []string
	for _, m := range memberships {
		if !seen[m.UserID] {
			seen[m.UserID] = true
			users = append(users, m.UserID)
		}
	}
	return users, nil
}

// MembersWithinRadius delegates the geo query to the location collaborator
// and applies the crew-membership filter itself.
func (s *Store) MembersWithinRadius(ctx context.Context, crewID string, lat, lon, radiusMiles float64) ([]string, error) {
	nearby, err := s.locator.UsersNearby(ctx, lat, lon, radiusMiles)
	if err != nil {
		return nil, errors.Wrap(err, "geo lookup")
	}
	if len(nearby) == 0 {
		return nil, nil
	}
	memberships, err := s.members.Find(ctx, "crew_id = ? AND user_id IN ?", crewID, nearby)
	if err != nil {
		return nil, err
	}
	users := make([]string, 0, len(memberships))
	for _, m := range memberships {
		users = append(users, m.UserID)
	}
	return users, nil
}
