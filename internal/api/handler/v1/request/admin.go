package request

import (
	validation "github.com/go-ozzo/ozzo-validation"
)

type SetPlatformFeeRequest struct {
	FeeBps int64 `json:"fee_bps"`
}

func (req *SetPlatformFeeRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.FeeBps, validation.Min(0), validation.Max(1000)),
	)
}

type SetFeeRecipientRequest struct {
	Address string `json:"address" binding:"required"`
}

func (req *SetFeeRecipientRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Address, validation.Required),
	)
}

type PointConfigRequest struct {
	TxBasePoints           int64 `json:"tx_base_points"`
	VolumeMultiplier       int64 `json:"volume_multiplier"`
	BookingCreatedPoints   int64 `json:"booking_created_points"`
	BookingAcceptedPoints  int64 `json:"booking_accepted_points"`
	BookingCompletedPoints int64 `json:"booking_completed_points"`
	HighRatingThreshold    int64 `json:"high_rating_threshold"`
	HighRatingBonus        int64 `json:"high_rating_bonus"`
	DiversityBonus         int64 `json:"diversity_bonus"`
	StreakBonus            int64 `json:"streak_bonus"`
}

func (req *PointConfigRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.TxBasePoints, validation.Min(0)),
		validation.Field(&req.VolumeMultiplier, validation.Min(0)),
		validation.Field(&req.BookingCreatedPoints, validation.Min(0)),
		validation.Field(&req.BookingAcceptedPoints, validation.Min(0)),
		validation.Field(&req.BookingCompletedPoints, validation.Min(0)),
		validation.Field(&req.HighRatingThreshold, validation.Min(0), validation.Max(50)),
		validation.Field(&req.HighRatingBonus, validation.Min(0)),
		validation.Field(&req.DiversityBonus, validation.Min(0)),
		validation.Field(&req.StreakBonus, validation.Min(0)),
	)
}

type TierThresholdsRequest struct {
	Silver  int64 `json:"silver"`
	Gold    int64 `json:"gold"`
	Diamond int64 `json:"diamond"`
}

func (req *TierThresholdsRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Silver, validation.Min(0)),
		validation.Field(&req.Gold, validation.Min(0)),
		validation.Field(&req.Diamond, validation.Min(0)),
	)
}

type ResolveDisputeRequest struct {
	ReleaseToKOL bool `json:"release_to_kol"`
}

type RecomputeAllRequest struct {
	Users []string `json:"users" binding:"required"`
}

func (req *RecomputeAllRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Users, validation.Required),
	)
}
