package dao

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrActivityNotFound   = errors.New("user activity not found")
	ErrReputationNotFound = errors.New("reputation record not found")
	ErrTxProcessed        = errors.New("transaction already processed")
)

type UserActivity struct {
	ID      uint   `gorm:"primaryKey"`
	Address string `gorm:"uniqueIndex;not null"`

	Transactions int64 `gorm:"not null;default:0"`
	VolumeTraded int64 `gorm:"not null;default:0"`

	BookingsAsBuyer   int64 `gorm:"not null;default:0"`
	BookingsAsKOL     int64 `gorm:"column:bookings_as_kol;not null;default:0"`
	BookingsCompleted int64 `gorm:"not null;default:0"`

	RatingSum   int64 `gorm:"not null;default:0"`
	RatingCount int64 `gorm:"not null;default:0"`

	UniqueCounterparties int64 `gorm:"not null;default:0"`

	TwitterConnected bool  `gorm:"not null;default:false"`
	Followers        int64 `gorm:"not null;default:0"`
	Engagement       int64 `gorm:"not null;default:0"`

	DiscordConnected bool  `gorm:"not null;default:false"`
	DiscordActivity  int64 `gorm:"not null;default:0"`

	GithubConnected     bool  `gorm:"not null;default:false"`
	GithubContributions int64 `gorm:"not null;default:0"`

	LastActivityAt time.Time
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (UserActivity) TableName() string {
	return "user_activities"
}

type ReputationRecord struct {
	ID      uint   `gorm:"primaryKey"`
	Address string `gorm:"uniqueIndex;not null"`

	OnchainScore      int64 `gorm:"not null;default:0"`
	SocialScore       int64 `gorm:"not null;default:0"`
	TokenHoldingScore int64 `gorm:"not null;default:0"`
	TotalScore        int64 `gorm:"not null;default:0"`

	Tier string `gorm:"not null"`

	Transactions      int64 `gorm:"not null;default:0"`
	VolumeTraded      int64 `gorm:"not null;default:0"`
	BookingsCompleted int64 `gorm:"not null;default:0"`

	IsKOL bool `gorm:"column:is_kol;not null;default:false"`

	LastUpdated time.Time
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (ReputationRecord) TableName() string {
	return "reputation_records"
}

// ProcessedTransaction guards counter updates against replayed ids.
type ProcessedTransaction struct {
	ID   uint   `gorm:"primaryKey"`
	TxID string `gorm:"column:tx_id;uniqueIndex;not null"`

	CreatedAt time.Time `gorm:"not null"`
}

func (ProcessedTransaction) TableName() string {
	return "processed_transactions"
}

// ActivityCounterparty is one row per (user, counterparty) pair ever
// seen; the unique index makes the diversity bonus one-shot.
type ActivityCounterparty struct {
	ID           uint   `gorm:"primaryKey"`
	Address      string `gorm:"uniqueIndex:idx_activity_counterparty;not null"`
	Counterparty string `gorm:"uniqueIndex:idx_activity_counterparty;not null"`

	CreatedAt time.Time `gorm:"not null"`
}

func (ActivityCounterparty) TableName() string {
	return "activity_counterparties"
}

type ReputationDAO struct {
	db *gorm.DB
}

func NewReputationDAO(db *gorm.DB) *ReputationDAO {
	return &ReputationDAO{
		db: db,
	}
}

func (d *ReputationDAO) FindActivityByAddress(ctx context.Context, address string) (UserActivity, error) {
	var activity UserActivity
	result := d.db.WithContext(ctx).Where("address = ?", address).First(&activity)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return UserActivity{}, ErrActivityNotFound
		}

		return UserActivity{}, result.Error
	}

	return activity, nil
}

func (d *ReputationDAO) InsertActivity(ctx context.Context, activity UserActivity) (UserActivity, error) {
	if result := d.db.WithContext(ctx).Create(&activity); result.Error != nil {
		return UserActivity{}, result.Error
	}

	return activity, nil
}

func (d *ReputationDAO) UpdateActivity(ctx context.Context, activity UserActivity) (UserActivity, error) {
	if result := d.db.WithContext(ctx).Save(&activity); result.Error != nil {
		return UserActivity{}, result.Error
	}

	return activity, nil
}

func (d *ReputationDAO) InsertProcessedTransaction(ctx context.Context, txID string) error {
	return insertProcessedTransaction(d.db.WithContext(ctx), txID)
}

// InsertCounterparty reports whether the pair was new; an existing row
// is not an error, just not fresh.
func (d *ReputationDAO) InsertCounterparty(ctx context.Context, address, counterparty string) (bool, error) {
	return insertCounterparty(d.db.WithContext(ctx), address, counterparty)
}

// IngestTransaction applies one transaction event in a single DB
// transaction: the processed-id insert, the counter bump and the
// counterparty row all commit together, so a failure never burns the
// id without crediting the counters.
func (d *ReputationDAO) IngestTransaction(ctx context.Context, address string, value int64, counterparty, txID string, now time.Time) (UserActivity, error) {
	var activity UserActivity

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := insertProcessedTransaction(tx, txID); err != nil {
			return err
		}

		result := tx.Where("address = ?", address).First(&activity)
		if result.Error != nil {
			if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return result.Error
			}

			activity = UserActivity{Address: address}
			if created := tx.Create(&activity); created.Error != nil {
				return created.Error
			}
		}

		activity.Transactions++
		activity.VolumeTraded += value
		activity.LastActivityAt = now

		if counterparty != "" {
			fresh, err := insertCounterparty(tx, address, counterparty)
			if err != nil {
				return err
			}
			if fresh {
				activity.UniqueCounterparties++
			}
		}

		return tx.Save(&activity).Error
	})
	if err != nil {
		return UserActivity{}, err
	}

	return activity, nil
}

func insertProcessedTransaction(db *gorm.DB, txID string) error {
	result := db.Create(&ProcessedTransaction{TxID: txID})
	if result.Error != nil {
		var pgErr *pgconn.PgError
		if errors.As(result.Error, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrTxProcessed
		}

		return result.Error
	}

	return nil
}

func insertCounterparty(db *gorm.DB, address, counterparty string) (bool, error) {
	row := ActivityCounterparty{Address: address, Counterparty: counterparty}
	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (d *ReputationDAO) FindRecordByAddress(ctx context.Context, address string) (ReputationRecord, error) {
	var record ReputationRecord
	result := d.db.WithContext(ctx).Where("address = ?", address).First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ReputationRecord{}, ErrReputationNotFound
		}

		return ReputationRecord{}, result.Error
	}

	return record, nil
}

func (d *ReputationDAO) UpsertRecord(ctx context.Context, record ReputationRecord) (ReputationRecord, error) {
	result := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"onchain_score", "social_score", "token_holding_score", "total_score",
			"tier", "transactions", "volume_traded", "bookings_completed",
			"is_kol", "last_updated", "updated_at",
		}),
	}).Create(&record)
	if result.Error != nil {
		return ReputationRecord{}, result.Error
	}

	return record, nil
}
