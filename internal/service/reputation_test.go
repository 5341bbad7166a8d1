package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolstack/koltime-api/internal/domain"
	"github.com/kolstack/koltime-api/internal/repository"
)

type memReputationStore struct {
	mu             sync.Mutex
	activities     map[string]domain.UserActivity
	records        map[string]domain.ReputationRecord
	processed      map[string]bool
	counterparties map[string]map[string]bool

	// ingestErr fails the next IngestTransaction before anything
	// commits, like a rolled-back DB transaction.
	ingestErr error
}

func newMemReputationStore() *memReputationStore {
	return &memReputationStore{
		activities:     make(map[string]domain.UserActivity),
		records:        make(map[string]domain.ReputationRecord),
		processed:      make(map[string]bool),
		counterparties: make(map[string]map[string]bool),
	}
}

func (m *memReputationStore) FindOrCreate(_ context.Context, address string) (domain.UserActivity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	activity, ok := m.activities[address]
	if !ok {
		activity = domain.UserActivity{Address: address}
		m.activities[address] = activity
	}

	return activity, nil
}

func (m *memReputationStore) Save(_ context.Context, activity domain.UserActivity) (domain.UserActivity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.activities[activity.Address] = activity

	return activity, nil
}

func (m *memReputationStore) IngestTransaction(_ context.Context, address string, value int64, counterparty, txID string, now time.Time) (domain.UserActivity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.processed[txID] {
		return domain.UserActivity{}, domain.ErrTxAlreadyProcessed
	}
	if m.ingestErr != nil {
		err := m.ingestErr
		m.ingestErr = nil
		return domain.UserActivity{}, err
	}

	m.processed[txID] = true

	activity := m.activities[address]
	activity.Address = address
	activity.Transactions++
	activity.VolumeTraded += value
	activity.LastActivityAt = now

	if counterparty != "" {
		seen, ok := m.counterparties[address]
		if !ok {
			seen = make(map[string]bool)
			m.counterparties[address] = seen
		}
		if !seen[counterparty] {
			seen[counterparty] = true
			activity.UniqueCounterparties++
		}
	}

	m.activities[address] = activity

	return activity, nil
}

func (m *memReputationStore) FindByAddress(_ context.Context, address string) (domain.ReputationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[address]
	if !ok {
		return domain.ReputationRecord{}, repository.ErrReputationNotFound
	}

	return record, nil
}

func (m *memReputationStore) Upsert(_ context.Context, record domain.ReputationRecord) (domain.ReputationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[record.Address] = record

	return record, nil
}

type mapBalances map[string]int64

func (m mapBalances) Balance(addr string) int64 { return m[addr] }

type reputationFixture struct {
	svc      *ReputationService
	store    *memReputationStore
	balances mapBalances
	clock    *fakeClock
}

func newReputationFixture(t *testing.T) *reputationFixture {
	t.Helper()

	store := newMemReputationStore()
	balances := mapBalances{}
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	return &reputationFixture{
		svc:      NewReputationService(store, store, balances, clock, testOwner),
		store:    store,
		balances: balances,
		clock:    clock,
	}
}

func TestTrackTransaction(t *testing.T) {
	f := newReputationFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.TrackTransaction(ctx, "0xalice", 100, "0xbob", "tx-1"))

	activity, err := f.svc.GetActivity(ctx, "0xalice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), activity.Transactions)
	assert.Equal(t, int64(100), activity.VolumeTraded)
	assert.Equal(t, int64(1), activity.UniqueCounterparties)

	// onchain: 1 tx * 10 + volume 100 * 1 + 1 counterparty * 15 = 125
	// total: 125 * 50 / 100 = 62
	record, err := f.svc.GetReputation(ctx, "0xalice")
	require.NoError(t, err)
	assert.Equal(t, int64(125), record.OnchainScore)
	assert.Equal(t, int64(62), record.TotalScore)
	assert.Equal(t, domain.TierBronze, record.Tier)
}

func TestTrackTransaction_ReplayRejectedBeforeCounters(t *testing.T) {
	f := newReputationFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.TrackTransaction(ctx, "0xalice", 100, "0xbob", "tx-1"))

	err := f.svc.TrackTransaction(ctx, "0xalice", 999, "0xcarol", "tx-1")
	require.ErrorIs(t, err, ErrTxAlreadyProcessed)
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	activity, err := f.svc.GetActivity(ctx, "0xalice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), activity.Transactions)
	assert.Equal(t, int64(100), activity.VolumeTraded)
	assert.Equal(t, int64(1), activity.UniqueCounterparties)
}

func TestTrackTransaction_FailedIngestLeavesIDReusable(t *testing.T) {
	f := newReputationFixture(t)
	ctx := context.Background()

	f.store.ingestErr = errors.New("connection reset")
	require.Error(t, f.svc.TrackTransaction(ctx, "0xalice", 100, "0xbob", "tx-1"))

	// Nothing committed, so the id is not burned and the retry lands
	// the counters exactly once.
	require.NoError(t, f.svc.TrackTransaction(ctx, "0xalice", 100, "0xbob", "tx-1"))

	activity, err := f.svc.GetActivity(ctx, "0xalice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), activity.Transactions)
	assert.Equal(t, int64(100), activity.VolumeTraded)
	assert.Equal(t, int64(1), activity.UniqueCounterparties)
}

func TestBookingCompleted_ConcurrentEventsKeepEveryIncrement(t *testing.T) {
	f := newReputationFixture(t)
	ctx := context.Background()

	const events = 16
	errs := make(chan error, events)

	var wg sync.WaitGroup
	for i := 0; i < events; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.svc.BookingCompleted(ctx, "0xbuyer", "0xkol", 100, 40)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	activity, err := f.svc.GetActivity(ctx, "0xkol")
	require.NoError(t, err)
	assert.Equal(t, int64(events), activity.BookingsCompleted)
	assert.Equal(t, int64(events), activity.RatingCount)
	assert.Equal(t, int64(40*events), activity.RatingSum)
}

func TestTrackTransaction_DiversityBonusOncePerCounterparty(t *testing.T) {
	f := newReputationFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.TrackTransaction(ctx, "0xalice", 10, "0xbob", "tx-1"))
	require.NoError(t, f.svc.TrackTransaction(ctx, "0xalice", 10, "0xbob", "tx-2"))
	require.NoError(t, f.svc.TrackTransaction(ctx, "0xalice", 10, "0xcarol", "tx-3"))

	// Self-transfers never count as a counterparty.
	require.NoError(t, f.svc.TrackTransaction(ctx, "0xalice", 10, "0xalice", "tx-4"))

	activity, err := f.svc.GetActivity(ctx, "0xalice")
	require.NoError(t, err)
	assert.Equal(t, int64(4), activity.Transactions)
	assert.Equal(t, int64(2), activity.UniqueCounterparties)
}

func TestBookingLifecycleEvents(t *testing.T) {
	f := newReputationFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.BookingCreated(ctx, "0xbuyer1", "0xkol1", 1000))

	buyer, err := f.svc.GetActivity(ctx, "0xbuyer1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), buyer.BookingsAsBuyer)
	assert.Equal(t, int64(1000), buyer.VolumeTraded)

	buyerRecord, err := f.svc.GetReputation(ctx, "0xbuyer1")
	require.NoError(t, err)
	assert.False(t, buyerRecord.IsKOL)

	require.NoError(t, f.svc.BookingAccepted(ctx, "0xkol1"))

	kolRecord, err := f.svc.GetReputation(ctx, "0xkol1")
	require.NoError(t, err)
	assert.True(t, kolRecord.IsKOL)

	require.NoError(t, f.svc.BookingCompleted(ctx, "0xbuyer1", "0xkol1", 1000, 40))

	kol, err := f.svc.GetActivity(ctx, "0xkol1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), kol.BookingsCompleted)
	assert.Equal(t, int64(40), kol.RatingSum)
	assert.Equal(t, int64(1), kol.RatingCount)

	// The latch survives later recomputes.
	require.NoError(t, f.svc.Recompute(ctx, "0xkol1"))
	kolRecord, err = f.svc.GetReputation(ctx, "0xkol1")
	require.NoError(t, err)
	assert.True(t, kolRecord.IsKOL)
}

func TestRecompute_Deterministic(t *testing.T) {
	f := newReputationFixture(t)
	ctx := context.Background()
	f.balances["0xalice"] = 500

	require.NoError(t, f.svc.TrackTransaction(ctx, "0xalice", 100, "0xbob", "tx-1"))
	require.NoError(t, f.svc.BookingCompleted(ctx, "0xbob", "0xalice", 100, 50))

	first, err := f.svc.GetReputation(ctx, "0xalice")
	require.NoError(t, err)

	require.NoError(t, f.svc.Recompute(ctx, "0xalice"))
	second, err := f.svc.GetReputation(ctx, "0xalice")
	require.NoError(t, err)

	assert.Equal(t, first.OnchainScore, second.OnchainScore)
	assert.Equal(t, first.SocialScore, second.SocialScore)
	assert.Equal(t, first.TokenHoldingScore, second.TokenHoldingScore)
	assert.Equal(t, first.TotalScore, second.TotalScore)
	assert.Equal(t, first.Tier, second.Tier)
}

func TestHighRatingBonus(t *testing.T) {
	f := newReputationFixture(t)
	ctx := context.Background()

	// Two completed bookings at 5.0 average clears the 4.5 threshold.
	require.NoError(t, f.svc.BookingCompleted(ctx, "0xbuyer", "0xkol", 100, 50))
	require.NoError(t, f.svc.BookingCompleted(ctx, "0xbuyer", "0xkol", 100, 50))

	withBonus, err := f.svc.GetReputation(ctx, "0xkol")
	require.NoError(t, err)

	// completed: 2 * 50, bonus: 2 * 25.
	assert.Equal(t, int64(150), withBonus.OnchainScore)

	// A low rating dragging the average under the threshold drops the
	// whole bonus on the next recompute.
	require.NoError(t, f.svc.BookingCompleted(ctx, "0xbuyer", "0xkol", 100, 10))

	withoutBonus, err := f.svc.GetReputation(ctx, "0xkol")
	require.NoError(t, err)
	assert.Equal(t, int64(150), withoutBonus.OnchainScore)
}

func TestSocialScore(t *testing.T) {
	f := newReputationFixture(t)
	ctx := context.Background()

	metrics := domain.SocialMetrics{
		TwitterConnected:    true,
		Followers:           1000,
		Engagement:          50,
		GithubConnected:     true,
		GithubContributions: 30,
	}

	require.NoError(t, f.svc.UpdateSocialMetrics(ctx, "0xalice", metrics))

	record, err := f.svc.GetReputation(ctx, "0xalice")
	require.NoError(t, err)

	// twitter: 1000/10 + 50/5 = 110, github: 30*2 = 60, connected: 2*100.
	assert.Equal(t, int64(370), record.SocialScore)
	// total: 370 * 40 / 100 = 148.
	assert.Equal(t, int64(148), record.TotalScore)
}

func TestTokenHoldingScore(t *testing.T) {
	f := newReputationFixture(t)
	ctx := context.Background()
	f.balances["0xwhale"] = 100000

	require.NoError(t, f.svc.Recompute(ctx, "0xwhale"))

	record, err := f.svc.GetReputation(ctx, "0xwhale")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), record.TokenHoldingScore)
	// total: 1000 * 10 / 100 = 100.
	assert.Equal(t, int64(100), record.TotalScore)
}

func TestSetPointConfig(t *testing.T) {
	f := newReputationFixture(t)
	ctx := context.Background()

	err := f.svc.SetPointConfig("0xintruder", domain.PointConfig{})
	require.ErrorIs(t, err, domain.ErrNotOwner)

	config := domain.DefaultPointConfig()
	config.TxBasePoints = 1000
	require.NoError(t, f.svc.SetPointConfig(testOwner, config))
	assert.Equal(t, int64(1000), f.svc.PointConfig().TxBasePoints)

	require.NoError(t, f.svc.TrackTransaction(ctx, "0xalice", 0, "", "tx-1"))

	record, err := f.svc.GetReputation(ctx, "0xalice")
	require.NoError(t, err)
	// 1 tx * 1000, weighted at 50%.
	assert.Equal(t, int64(1000), record.OnchainScore)
	assert.Equal(t, int64(500), record.TotalScore)
}

func TestSetTierThresholds(t *testing.T) {
	f := newReputationFixture(t)
	ctx := context.Background()

	require.ErrorIs(t, f.svc.SetTierThresholds("0xintruder", domain.TierThresholds{}), domain.ErrNotOwner)

	require.NoError(t, f.svc.SetTierThresholds(testOwner, domain.TierThresholds{Silver: 10, Gold: 50, Diamond: 100}))
	require.NoError(t, f.svc.TrackTransaction(ctx, "0xalice", 10, "", "tx-1"))

	record, err := f.svc.GetReputation(ctx, "0xalice")
	require.NoError(t, err)
	// onchain 20, total 10: Silver under the lowered cut-offs.
	assert.Equal(t, domain.TierSilver, record.Tier)
}

func TestRecomputeAll(t *testing.T) {
	f := newReputationFixture(t)
	ctx := context.Background()
	f.balances["0xalice"] = 1000

	require.ErrorIs(t, f.svc.RecomputeAll(ctx, "0xintruder", []string{"0xalice"}), domain.ErrNotOwner)

	require.NoError(t, f.svc.RecomputeAll(ctx, testOwner, []string{"0xalice", "0xbob"}))

	record, err := f.svc.GetReputation(ctx, "0xalice")
	require.NoError(t, err)
	assert.Equal(t, int64(10), record.TokenHoldingScore)
}

func TestGetReputation_NotFound(t *testing.T) {
	f := newReputationFixture(t)

	_, err := f.svc.GetReputation(context.Background(), "0xunknown")
	require.ErrorIs(t, err, ErrReputationNotFound)
}
