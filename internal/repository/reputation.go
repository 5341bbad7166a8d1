package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kolstack/koltime-api/internal/domain"
	"github.com/kolstack/koltime-api/internal/repository/dao"
)

var (
	ErrActivityNotFound   = dao.ErrActivityNotFound
	ErrReputationNotFound = dao.ErrReputationNotFound
)

type ReputationDAO interface {
	FindActivityByAddress(ctx context.Context, address string) (dao.UserActivity, error)
	InsertActivity(ctx context.Context, activity dao.UserActivity) (dao.UserActivity, error)
	UpdateActivity(ctx context.Context, activity dao.UserActivity) (dao.UserActivity, error)
	IngestTransaction(ctx context.Context, address string, value int64, counterparty, txID string, now time.Time) (dao.UserActivity, error)
	FindRecordByAddress(ctx context.Context, address string) (dao.ReputationRecord, error)
	UpsertRecord(ctx context.Context, record dao.ReputationRecord) (dao.ReputationRecord, error)
}

// ReputationRepository persists activity counters and score records.
// Score reads go through an optional redis read-through cache; writes
// invalidate it. Pass a nil client to run without the cache.
type ReputationRepository struct {
	dao      ReputationDAO
	cache    *redis.Client
	cacheTTL time.Duration
}

func NewReputationRepository(dao ReputationDAO, cache *redis.Client, cacheTTL time.Duration) *ReputationRepository {
	return &ReputationRepository{
		dao:      dao,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

func (r *ReputationRepository) FindOrCreate(ctx context.Context, address string) (domain.UserActivity, error) {
	found, err := r.dao.FindActivityByAddress(ctx, address)
	if err == nil {
		return activityToDomain(found), nil
	}
	if !errors.Is(err, dao.ErrActivityNotFound) {
		return domain.UserActivity{}, fmt.Errorf("r.dao.FindActivityByAddress -> %w", err)
	}

	created, err := r.dao.InsertActivity(ctx, dao.UserActivity{Address: address})
	if err != nil {
		return domain.UserActivity{}, fmt.Errorf("r.dao.InsertActivity -> %w", err)
	}

	return activityToDomain(created), nil
}

func (r *ReputationRepository) Save(ctx context.Context, activity domain.UserActivity) (domain.UserActivity, error) {
	existing, err := r.dao.FindActivityByAddress(ctx, activity.Address)
	if err != nil {
		return domain.UserActivity{}, fmt.Errorf("r.dao.FindActivityByAddress -> %w", err)
	}

	row := activityToDAO(activity)
	row.ID = existing.ID
	row.CreatedAt = existing.CreatedAt

	saved, err := r.dao.UpdateActivity(ctx, row)
	if err != nil {
		return domain.UserActivity{}, fmt.Errorf("r.dao.UpdateActivity -> %w", err)
	}

	return activityToDomain(saved), nil
}

// IngestTransaction applies one transaction event atomically. Replayed
// ids fail with domain.ErrTxAlreadyProcessed; an infrastructure failure
// rolls the whole event back, id included, so a retry starts clean.
func (r *ReputationRepository) IngestTransaction(ctx context.Context, address string, value int64, counterparty, txID string, now time.Time) (domain.UserActivity, error) {
	ingested, err := r.dao.IngestTransaction(ctx, address, value, counterparty, txID, now)
	if err != nil {
		if errors.Is(err, dao.ErrTxProcessed) {
			return domain.UserActivity{}, domain.ErrTxAlreadyProcessed
		}

		return domain.UserActivity{}, fmt.Errorf("r.dao.IngestTransaction -> %w", err)
	}

	return activityToDomain(ingested), nil
}

func (r *ReputationRepository) FindByAddress(ctx context.Context, address string) (domain.ReputationRecord, error) {
	if cached, ok := r.cacheGet(ctx, address); ok {
		return cached, nil
	}

	found, err := r.dao.FindRecordByAddress(ctx, address)
	if err != nil {
		return domain.ReputationRecord{}, err
	}

	record := recordToDomain(found)
	r.cacheSet(ctx, record)

	return record, nil
}

func (r *ReputationRepository) Upsert(ctx context.Context, record domain.ReputationRecord) (domain.ReputationRecord, error) {
	saved, err := r.dao.UpsertRecord(ctx, recordToDAO(record))
	if err != nil {
		return domain.ReputationRecord{}, fmt.Errorf("r.dao.UpsertRecord -> %w", err)
	}

	r.cacheDel(ctx, record.Address)

	return recordToDomain(saved), nil
}

func reputationCacheKey(address string) string {
	return "reputation:" + address
}

func (r *ReputationRepository) cacheGet(ctx context.Context, address string) (domain.ReputationRecord, bool) {
	if r.cache == nil {
		return domain.ReputationRecord{}, false
	}

	raw, err := r.cache.Get(ctx, reputationCacheKey(address)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("reputation cache read failed", zap.String("address", address), zap.Error(err))
		}
		return domain.ReputationRecord{}, false
	}

	var record domain.ReputationRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return domain.ReputationRecord{}, false
	}

	return record, true
}

func (r *ReputationRepository) cacheSet(ctx context.Context, record domain.ReputationRecord) {
	if r.cache == nil {
		return
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return
	}

	if err := r.cache.Set(ctx, reputationCacheKey(record.Address), raw, r.cacheTTL).Err(); err != nil {
		zap.L().Warn("reputation cache write failed", zap.String("address", record.Address), zap.Error(err))
	}
}

func (r *ReputationRepository) cacheDel(ctx context.Context, address string) {
	if r.cache == nil {
		return
	}

	if err := r.cache.Del(ctx, reputationCacheKey(address)).Err(); err != nil {
		zap.L().Warn("reputation cache invalidation failed", zap.String("address", address), zap.Error(err))
	}
}

func activityToDAO(a domain.UserActivity) dao.UserActivity {
	return dao.UserActivity{
		Address:              a.Address,
		Transactions:         a.Transactions,
		VolumeTraded:         a.VolumeTraded,
		BookingsAsBuyer:      a.BookingsAsBuyer,
		BookingsAsKOL:        a.BookingsAsKOL,
		BookingsCompleted:    a.BookingsCompleted,
		RatingSum:            a.RatingSum,
		RatingCount:          a.RatingCount,
		UniqueCounterparties: a.UniqueCounterparties,
		TwitterConnected:     a.Social.TwitterConnected,
		Followers:            a.Social.Followers,
		Engagement:           a.Social.Engagement,
		DiscordConnected:     a.Social.DiscordConnected,
		DiscordActivity:      a.Social.DiscordActivity,
		GithubConnected:      a.Social.GithubConnected,
		GithubContributions:  a.Social.GithubContributions,
		LastActivityAt:       a.LastActivityAt,
		CreatedAt:            a.CreatedAt,
		UpdatedAt:            a.UpdatedAt,
	}
}

func activityToDomain(a dao.UserActivity) domain.UserActivity {
	return domain.UserActivity{
		Address:              a.Address,
		Transactions:         a.Transactions,
		VolumeTraded:         a.VolumeTraded,
		BookingsAsBuyer:      a.BookingsAsBuyer,
		BookingsAsKOL:        a.BookingsAsKOL,
		BookingsCompleted:    a.BookingsCompleted,
		RatingSum:            a.RatingSum,
		RatingCount:          a.RatingCount,
		UniqueCounterparties: a.UniqueCounterparties,
		Social: domain.SocialMetrics{
			TwitterConnected:    a.TwitterConnected,
			Followers:           a.Followers,
			Engagement:          a.Engagement,
			DiscordConnected:    a.DiscordConnected,
			DiscordActivity:     a.DiscordActivity,
			GithubConnected:     a.GithubConnected,
			GithubContributions: a.GithubContributions,
		},
		LastActivityAt: a.LastActivityAt,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func recordToDAO(rec domain.ReputationRecord) dao.ReputationRecord {
	return dao.ReputationRecord{
		Address:           rec.Address,
		OnchainScore:      rec.OnchainScore,
		SocialScore:       rec.SocialScore,
		TokenHoldingScore: rec.TokenHoldingScore,
		TotalScore:        rec.TotalScore,
		Tier:              string(rec.Tier),
		Transactions:      rec.Transactions,
		VolumeTraded:      rec.VolumeTraded,
		BookingsCompleted: rec.BookingsCompleted,
		IsKOL:             rec.IsKOL,
		LastUpdated:       rec.LastUpdated,
		CreatedAt:         rec.CreatedAt,
		UpdatedAt:         rec.UpdatedAt,
	}
}

func recordToDomain(rec dao.ReputationRecord) domain.ReputationRecord {
	return domain.ReputationRecord{
		Address:           rec.Address,
		OnchainScore:      rec.OnchainScore,
		SocialScore:       rec.SocialScore,
		TokenHoldingScore: rec.TokenHoldingScore,
		TotalScore:        rec.TotalScore,
		Tier:              domain.Tier(rec.Tier),
		Transactions:      rec.Transactions,
		VolumeTraded:      rec.VolumeTraded,
		BookingsCompleted: rec.BookingsCompleted,
		IsKOL:             rec.IsKOL,
		LastUpdated:       rec.LastUpdated,
		CreatedAt:         rec.CreatedAt,
		UpdatedAt:         rec.UpdatedAt,
	}
}
