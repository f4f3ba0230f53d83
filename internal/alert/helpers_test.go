package alert

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Dmccarty30/Journeyman-Jobs-sub014/internal/models"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/internal/store"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/chat"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/errors"
)

// fakeTransport records sends per channel and can be told to fail a channel
// for its first N deliveries, or forever with failN < 0.
type fakeTransport struct {
	mu    sync.Mutex
	sent  map[string][]chat.Payload
	failN map[string]int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sent: make(map[string][]chat.Payload), failN: make(map[string]int)}
}

func (f *fakeTransport) failChannel(channelID string, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failN[channelID] = times
}

func (f *fakeTransport) SendToChannel(ctx context.Context, channelID string, payload chat.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n := f.failN[channelID]; n != 0 {
		if n > 0 {
			f.failN[channelID] = n - 1
		}
		return errors.DeliveryFailed("channel %s unavailable", channelID)
	}
	f.sent[channelID] = append(f.sent[channelID], payload)
	return nil
}

func (f *fakeTransport) EnsureChannel(ctx context.Context, purpose string) (string, error) {
	return "chan-" + purpose, nil
}

func (f *fakeTransport) delivered(channelID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent[channelID])
}

type fakePusher struct {
	mu    sync.Mutex
	calls int
}

func (f *fakePusher) SendCriticalPush(ctx context.Context, title, body string, metadata map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *fakePusher) pushes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeLocation struct{ crews []string }

func (f fakeLocation) CrewsNearby(ctx context.Context, lat, lon, radiusMiles float64) ([]string, error) {
	return f.crews, nil
}

type fakeMembers struct{ users []string }

func (f fakeMembers) MembersOfCrews(ctx context.Context, crewIDs []string) ([]string, error) {
	if len(crewIDs) == 0 {
		return nil, nil
	}
	return f.users, nil
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := store.Open("", dsn)
	require.NoError(t, err)
	require.NoError(t, store.AutoMigrate(db))
	return db
}

func fastDispatchConfig() DispatcherConfig {
	return DispatcherConfig{
		Concurrency:    4,
		Attempts:       3,
		AttemptTimeout: 100 * time.Millisecond,
		BackoffBase:    time.Millisecond,
		Timeout:        2 * time.Second,
	}
}

func seedCrewRow(t *testing.T, db *gorm.DB, id, channelID string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Crew{
		ID:             id,
		Name:           "crew-" + id,
		AlertChannelID: channelID,
		CreatedBy:      "seed",
		CreatedAt:      time.Now(),
	}).Error)
}

func seedAlertRow(t *testing.T, db *gorm.DB, a *models.SafetyAlert) *models.SafetyAlert {
	t.Helper()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = models.StatusOpen
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	require.NoError(t, db.Create(a).Error)
	return a
}

func reloadAlert(t *testing.T, db *gorm.DB, id string) *models.SafetyAlert {
	t.Helper()
	var a models.SafetyAlert
	require.NoError(t, db.Where("id = ?", id).First(&a).Error)
	return &a
}
