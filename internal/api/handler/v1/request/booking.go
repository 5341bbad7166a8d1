package request

import (
	validation "github.com/go-ozzo/ozzo-validation"
)

type CreateBookingRequest struct {
	KOLAddress   string `json:"kol_address" binding:"required"`
	PricePerUnit int64  `json:"price_per_unit" binding:"required,min=1"`
	UnitCount    int64  `json:"unit_count" binding:"required,min=1"`
	FromTime     string `json:"from_time" binding:"required" format:"RFC3339"`
	ToTime       string `json:"to_time" binding:"required" format:"RFC3339"`
	Reason       string `json:"reason"`
	MetadataRef  string `json:"metadata_ref"`
	PaidAmount   int64  `json:"paid_amount" binding:"required,min=1"`
}

func (req *CreateBookingRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.KOLAddress, validation.Required),
		validation.Field(&req.PricePerUnit, validation.Required, validation.Min(1)),
		validation.Field(&req.UnitCount, validation.Required, validation.Min(1)),
		validation.Field(&req.FromTime, validation.Required),
		validation.Field(&req.ToTime, validation.Required),
		validation.Field(&req.Reason, validation.Length(0, 500)),
		validation.Field(&req.PaidAmount, validation.Required, validation.Min(1)),
	)
}

type ReportDisputeRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (req *ReportDisputeRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Reason, validation.Required, validation.Length(1, 500)),
	)
}

type RateSessionRequest struct {
	// Rating is tenths of a star, 0-50.
	Rating *int `json:"rating" binding:"required"`
}

func (req *RateSessionRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Rating, validation.NotNil, validation.Min(0), validation.Max(50)),
	)
}

type TransferTicketRequest struct {
	To string `json:"to" binding:"required"`
}

func (req *TransferTicketRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.To, validation.Required),
	)
}

type DepositRequest struct {
	Amount int64 `json:"amount" binding:"required,min=1"`
}

func (req *DepositRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Amount, validation.Required, validation.Min(1)),
	)
}
