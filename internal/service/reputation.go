package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kolstack/koltime-api/internal/domain"
	"github.com/kolstack/koltime-api/internal/repository"
)

var (
	ErrReputationNotFound = repository.ErrReputationNotFound
	ErrTxAlreadyProcessed = domain.ErrTxAlreadyProcessed
)

type ActivityRepository interface {
	// FindOrCreate returns the activity row for an address, creating a
	// zeroed one on first sight.
	FindOrCreate(ctx context.Context, address string) (domain.UserActivity, error)
	Save(ctx context.Context, activity domain.UserActivity) (domain.UserActivity, error)

	// IngestTransaction records the transaction id, bumps the counters
	// and registers a first-time counterparty as one atomic unit.
	// Replayed ids fail with domain.ErrTxAlreadyProcessed and change
	// nothing; any other failure rolls back the id along with the
	// counters.
	IngestTransaction(ctx context.Context, address string, value int64, counterparty, txID string, now time.Time) (domain.UserActivity, error)
}

type ReputationRepository interface {
	FindByAddress(ctx context.Context, address string) (domain.ReputationRecord, error)
	Upsert(ctx context.Context, record domain.ReputationRecord) (domain.ReputationRecord, error)
}

// BalanceReader exposes the ledger balance the token-holding score is
// derived from.
type BalanceReader interface {
	Balance(addr string) int64
}

// ReputationService keeps per-user raw counters and recomputes the
// weighted score from scratch on every qualifying event. Recomputing
// instead of accumulating deltas means a config change never leaves
// stale points behind.
type ReputationService struct {
	activities ActivityRepository
	records    ReputationRepository
	balances   BalanceReader
	clock      Clock

	owner string

	confMu     sync.RWMutex
	config     domain.PointConfig
	thresholds domain.TierThresholds

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

func NewReputationService(activities ActivityRepository, records ReputationRepository, balances BalanceReader, clock Clock, owner string) *ReputationService {
	return &ReputationService{
		activities: activities,
		records:    records,
		balances:   balances,
		clock:      clock,
		owner:      owner,
		config:     domain.DefaultPointConfig(),
		thresholds: domain.DefaultTierThresholds(),
		locks:      make(map[string]*sync.Mutex),
	}
}

// addrLock serializes the read-modify-write per address so concurrent
// events for the same user cannot drop an increment. Events for
// different users proceed in parallel.
func (s *ReputationService) addrLock(address string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	m, ok := s.locks[address]
	if !ok {
		m = &sync.Mutex{}
		s.locks[address] = m
	}

	return m
}

// TrackTransaction ingests one wallet-to-wallet transaction for a user.
// Replayed transaction ids are rejected before any counter moves, and
// the diversity bonus registers each counterparty only the first time.
func (s *ReputationService) TrackTransaction(ctx context.Context, user string, value int64, counterparty, txID string) error {
	if user == "" || txID == "" {
		return domain.ErrEmptyAddress
	}

	// Self-transfers never count as a counterparty.
	if counterparty == user {
		counterparty = ""
	}

	mu := s.addrLock(user)
	mu.Lock()
	defer mu.Unlock()

	activity, err := s.activities.IngestTransaction(ctx, user, value, counterparty, txID, s.clock.Now())
	if err != nil {
		return err
	}

	return s.recompute(ctx, activity, false)
}

// BookingCreated credits the buyer side of a new booking.
func (s *ReputationService) BookingCreated(ctx context.Context, buyer, kol string, amount int64) error {
	mu := s.addrLock(buyer)
	mu.Lock()
	defer mu.Unlock()

	activity, err := s.activities.FindOrCreate(ctx, buyer)
	if err != nil {
		return fmt.Errorf("s.activities.FindOrCreate -> %w", err)
	}

	activity.BookingsAsBuyer++
	activity.VolumeTraded += amount
	activity.LastActivityAt = s.clock.Now()

	if _, err := s.activities.Save(ctx, activity); err != nil {
		return fmt.Errorf("s.activities.Save -> %w", err)
	}

	return s.recompute(ctx, activity, false)
}

// BookingAccepted credits the kol and latches their IsKOL flag.
func (s *ReputationService) BookingAccepted(ctx context.Context, kol string) error {
	mu := s.addrLock(kol)
	mu.Lock()
	defer mu.Unlock()

	activity, err := s.activities.FindOrCreate(ctx, kol)
	if err != nil {
		return fmt.Errorf("s.activities.FindOrCreate -> %w", err)
	}

	activity.BookingsAsKOL++
	activity.LastActivityAt = s.clock.Now()

	if _, err := s.activities.Save(ctx, activity); err != nil {
		return fmt.Errorf("s.activities.Save -> %w", err)
	}

	return s.recompute(ctx, activity, true)
}

// BookingCompleted credits the kol with a completed booking and the
// received rating (tenths of a star).
func (s *ReputationService) BookingCompleted(ctx context.Context, buyer, kol string, amount int64, rating int) error {
	mu := s.addrLock(kol)
	mu.Lock()
	defer mu.Unlock()

	activity, err := s.activities.FindOrCreate(ctx, kol)
	if err != nil {
		return fmt.Errorf("s.activities.FindOrCreate -> %w", err)
	}

	activity.BookingsCompleted++
	activity.RatingSum += int64(rating)
	activity.RatingCount++
	activity.LastActivityAt = s.clock.Now()

	if _, err := s.activities.Save(ctx, activity); err != nil {
		return fmt.Errorf("s.activities.Save -> %w", err)
	}

	return s.recompute(ctx, activity, false)
}

// UpdateSocialMetrics replaces the cached platform numbers and
// recomputes. The social layer owns the values; we only score them.
func (s *ReputationService) UpdateSocialMetrics(ctx context.Context, user string, metrics domain.SocialMetrics) error {
	mu := s.addrLock(user)
	mu.Lock()
	defer mu.Unlock()

	activity, err := s.activities.FindOrCreate(ctx, user)
	if err != nil {
		return fmt.Errorf("s.activities.FindOrCreate -> %w", err)
	}

	activity.Social = metrics

	if _, err := s.activities.Save(ctx, activity); err != nil {
		return fmt.Errorf("s.activities.Save -> %w", err)
	}

	return s.recompute(ctx, activity, false)
}

// Recompute refreshes a single user from their stored counters, e.g.
// after a token-holding change.
func (s *ReputationService) Recompute(ctx context.Context, user string) error {
	mu := s.addrLock(user)
	mu.Lock()
	defer mu.Unlock()

	activity, err := s.activities.FindOrCreate(ctx, user)
	if err != nil {
		return fmt.Errorf("s.activities.FindOrCreate -> %w", err)
	}

	return s.recompute(ctx, activity, false)
}

// RecomputeAll is the explicit bulk-update entry point, owner only.
func (s *ReputationService) RecomputeAll(ctx context.Context, caller string, users []string) error {
	if caller != s.owner {
		return domain.ErrNotOwner
	}

	for _, user := range users {
		if err := s.Recompute(ctx, user); err != nil {
			return fmt.Errorf("recompute %s -> %w", user, err)
		}
	}

	return nil
}

func (s *ReputationService) GetReputation(ctx context.Context, user string) (domain.ReputationRecord, error) {
	record, err := s.records.FindByAddress(ctx, user)
	if err != nil {
		return domain.ReputationRecord{}, err
	}

	return record, nil
}

func (s *ReputationService) GetActivity(ctx context.Context, user string) (domain.UserActivity, error) {
	activity, err := s.activities.FindOrCreate(ctx, user)
	if err != nil {
		return domain.UserActivity{}, fmt.Errorf("s.activities.FindOrCreate -> %w", err)
	}

	return activity, nil
}

// SetPointConfig swaps the scoring weights. Applies to future
// recomputations only; stored scores refresh as events come in.
func (s *ReputationService) SetPointConfig(caller string, config domain.PointConfig) error {
	if caller != s.owner {
		return domain.ErrNotOwner
	}

	s.confMu.Lock()
	defer s.confMu.Unlock()
	s.config = config

	return nil
}

func (s *ReputationService) PointConfig() domain.PointConfig {
	s.confMu.RLock()
	defer s.confMu.RUnlock()

	return s.config
}

// SetTierThresholds adjusts the tier cut-offs. Owner only.
func (s *ReputationService) SetTierThresholds(caller string, thresholds domain.TierThresholds) error {
	if caller != s.owner {
		return domain.ErrNotOwner
	}

	s.confMu.Lock()
	defer s.confMu.Unlock()
	s.thresholds = thresholds

	return nil
}

// recompute derives the full score from raw counters and stores the
// refreshed record. Pure integer arithmetic, deterministic for a given
// counter set and config; markKOL latches the IsKOL flag.
func (s *ReputationService) recompute(ctx context.Context, activity domain.UserActivity, markKOL bool) error {
	s.confMu.RLock()
	conf := s.config
	thresholds := s.thresholds
	s.confMu.RUnlock()

	onchain := activity.Transactions*conf.TxBasePoints +
		activity.VolumeTraded*conf.VolumeMultiplier +
		activity.BookingsAsBuyer*conf.BookingCreatedPoints +
		activity.BookingsAsKOL*conf.BookingAcceptedPoints +
		activity.BookingsCompleted*conf.BookingCompletedPoints +
		activity.UniqueCounterparties*conf.DiversityBonus
	if activity.RatingCount > 0 && activity.AverageRating() >= conf.HighRatingThreshold {
		onchain += conf.HighRatingBonus * activity.BookingsCompleted
	}

	social := int64(0)
	if activity.Social.TwitterConnected {
		social += activity.Social.Followers/10 + activity.Social.Engagement/5
	}
	if activity.Social.DiscordConnected {
		social += activity.Social.DiscordActivity
	}
	if activity.Social.GithubConnected {
		social += activity.Social.GithubContributions * 2
	}
	social += 100 * activity.Social.ConnectedCount()

	holding := s.balances.Balance(activity.Address) / 100

	total := (onchain*50 + social*40 + holding*10) / 100

	existing, err := s.records.FindByAddress(ctx, activity.Address)
	if err != nil && !errors.Is(err, repository.ErrReputationNotFound) {
		return fmt.Errorf("s.records.FindByAddress -> %w", err)
	}

	record := domain.ReputationRecord{
		Address:           activity.Address,
		OnchainScore:      onchain,
		SocialScore:       social,
		TokenHoldingScore: holding,
		TotalScore:        total,
		Tier:              thresholds.TierFor(total),
		Transactions:      activity.Transactions,
		VolumeTraded:      activity.VolumeTraded,
		BookingsCompleted: activity.BookingsCompleted,
		IsKOL:             existing.IsKOL || markKOL,
		LastUpdated:       s.clock.Now(),
		CreatedAt:         existing.CreatedAt,
	}

	if _, err := s.records.Upsert(ctx, record); err != nil {
		return fmt.Errorf("s.records.Upsert -> %w", err)
	}

	return nil
}
