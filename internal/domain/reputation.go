package domain

import "time"

type Tier string

const (
	TierBronze  Tier = "Bronze"
	TierSilver  Tier = "Silver"
	TierGold    Tier = "Gold"
	TierDiamond Tier = "Diamond"
)

// UserActivity holds the raw, monotonically increasing counters a
// user's reputation is recomputed from. Counters never decrease.
type UserActivity struct {
	Address string `json:"address"`

	Transactions int64 `json:"transactions"`
	VolumeTraded int64 `json:"volume_traded"`

	BookingsAsBuyer   int64 `json:"bookings_as_buyer"`
	BookingsAsKOL     int64 `json:"bookings_as_kol"`
	BookingsCompleted int64 `json:"bookings_completed"`

	RatingSum   int64 `json:"rating_sum"`
	RatingCount int64 `json:"rating_count"`

	// UniqueCounterparties counts addresses this user has transacted
	// with for the first time; each one earns the diversity bonus once.
	UniqueCounterparties int64 `json:"unique_counterparties"`

	Social SocialMetrics `json:"social"`

	LastActivityAt time.Time `json:"last_activity_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AverageRating is the mean received rating in tenths of a star, zero
// when the user has not been rated yet.
func (a *UserActivity) AverageRating() int64 {
	if a.RatingCount == 0 {
		return 0
	}
	return a.RatingSum / a.RatingCount
}

// SocialMetrics mirrors the connected-platform numbers cached by the
// social layer; the accumulator only reads them.
type SocialMetrics struct {
	TwitterConnected bool  `json:"twitter_connected"`
	Followers        int64 `json:"followers"`
	Engagement       int64 `json:"engagement"`

	DiscordConnected bool  `json:"discord_connected"`
	DiscordActivity  int64 `json:"discord_activity"`

	GithubConnected     bool  `json:"github_connected"`
	GithubContributions int64 `json:"github_contributions"`
}

// ConnectedCount reports how many platforms are linked.
func (m *SocialMetrics) ConnectedCount() int64 {
	var n int64
	if m.TwitterConnected {
		n++
	}
	if m.DiscordConnected {
		n++
	}
	if m.GithubConnected {
		n++
	}
	return n
}

// ReputationRecord caches the derived score components and tier for a
// user, one-to-one with their minted reputation token. Counters are
// denormalized from UserActivity for display only.
type ReputationRecord struct {
	Address string `json:"address"`

	OnchainScore      int64 `json:"onchain_score"`
	SocialScore       int64 `json:"social_score"`
	TokenHoldingScore int64 `json:"token_holding_score"`
	TotalScore        int64 `json:"total_score"`

	Tier Tier `json:"tier"`

	Transactions      int64 `json:"transactions"`
	VolumeTraded      int64 `json:"volume_traded"`
	BookingsCompleted int64 `json:"bookings_completed"`

	// IsKOL latches true on the first accepted booking and never
	// reverts.
	IsKOL bool `json:"is_kol"`

	LastUpdated time.Time `json:"last_updated"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PointConfig holds the owner-tunable scoring weights. Changing it
// affects future recomputations only; historical counters are raw and
// scores are always rebuilt from them.
type PointConfig struct {
	TxBasePoints           int64 `json:"tx_base_points"`
	VolumeMultiplier       int64 `json:"volume_multiplier"`
	BookingCreatedPoints   int64 `json:"booking_created_points"`
	BookingAcceptedPoints  int64 `json:"booking_accepted_points"`
	BookingCompletedPoints int64 `json:"booking_completed_points"`

	// HighRatingThreshold is in tenths of a star (45 = 4.5 stars).
	HighRatingThreshold int64 `json:"high_rating_threshold"`
	HighRatingBonus     int64 `json:"high_rating_bonus"`

	DiversityBonus int64 `json:"diversity_bonus"`

	// StreakBonus is reserved; no computation path consumes it yet.
	StreakBonus int64 `json:"streak_bonus"`
}

// DefaultPointConfig mirrors the launch weights.
func DefaultPointConfig() PointConfig {
	return PointConfig{
		TxBasePoints:           10,
		VolumeMultiplier:       1,
		BookingCreatedPoints:   20,
		BookingAcceptedPoints:  30,
		BookingCompletedPoints: 50,
		HighRatingThreshold:    45,
		HighRatingBonus:        25,
		DiversityBonus:         15,
		StreakBonus:            5,
	}
}

// TierThresholds are the owner-configurable tier cut-offs.
type TierThresholds struct {
	Silver  int64 `json:"silver"`
	Gold    int64 `json:"gold"`
	Diamond int64 `json:"diamond"`
}

func DefaultTierThresholds() TierThresholds {
	return TierThresholds{Silver: 1000, Gold: 3000, Diamond: 5000}
}

// TierFor buckets a total score.
func (t TierThresholds) TierFor(score int64) Tier {
	switch {
	case score >= t.Diamond:
		return TierDiamond
	case score >= t.Gold:
		return TierGold
	case score >= t.Silver:
		return TierSilver
	default:
		return TierBronze
	}
}
