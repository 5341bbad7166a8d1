package domain

import (
	"time"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "Pending"
	BookingAccepted  BookingStatus = "Accepted"
	BookingRejected  BookingStatus = "Rejected"
	BookingCompleted BookingStatus = "Completed"
	BookingCancelled BookingStatus = "Cancelled"
	BookingDisputed  BookingStatus = "Disputed"
	BookingExpired   BookingStatus = "Expired"
)

// Lifecycle constants for the escrow state machine.
const (
	ExpiryPeriod    = 5 * 24 * time.Hour
	DisputePeriod   = 24 * time.Hour
	MinUnitDuration = 30 * time.Minute

	DefaultFeeBps  = 250
	MaxFeeBps      = 1000
	BpsDenominator = 10000

	// Ratings are stars times ten, so 50 means 5.0 stars.
	MaxRating     = 50
	DefaultRating = 25
)

// PayoutState marks a disbursement in flight between the funds leaving
// escrow and the terminal status being persisted.
type PayoutState string

const (
	PayoutNone    PayoutState = ""
	PayoutPending PayoutState = "Pending"
)

// Booking is the escrowed reservation of a kol's time slot. It is
// mutated exclusively by the escrow engine; everyone else reads it.
type Booking struct {
	ID uint

	Buyer string `json:"buyer"`
	KOL   string `json:"kol"`

	PricePerUnit int64 `json:"price_per_unit"`
	UnitCount    int64 `json:"unit_count"`
	TotalAmount  int64 `json:"total_amount"`

	FromTime time.Time `json:"from_time"`
	ToTime   time.Time `json:"to_time"`

	Status BookingStatus `json:"status"`
	Reason string        `json:"reason"`

	TicketID uint `json:"ticket_id"`

	SessionEndTime  *time.Time `json:"session_end_time,omitempty"`
	DisputeReported bool       `json:"dispute_reported"`
	DisputeReason   string     `json:"dispute_reason,omitempty"`
	Rating          *int       `json:"rating,omitempty"`

	// PayoutState and PayoutTarget are persisted before funds leave
	// escrow; a retry that finds the marker set finishes the record
	// instead of transferring again.
	PayoutState  PayoutState   `json:"payout_state,omitempty"`
	PayoutTarget BookingStatus `json:"payout_target,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsTerminal reports whether no further lifecycle transition applies.
// Disputed is deliberately not terminal: it waits for admin resolution.
func (b *Booking) IsTerminal() bool {
	switch b.Status {
	case BookingRejected, BookingCompleted, BookingCancelled, BookingExpired:
		return true
	}
	return false
}

// AcceptDeadline is the instant after which a pending booking can no
// longer be accepted and becomes expirable.
func (b *Booking) AcceptDeadline() time.Time {
	return b.CreatedAt.Add(ExpiryPeriod)
}

// DisputeDeadline is the end of the buyer's dispute window. Only
// meaningful once SessionEndTime is set.
func (b *Booking) DisputeDeadline() time.Time {
	return b.SessionEndTime.Add(DisputePeriod)
}

// FeeSplit divides the escrowed total into the platform fee and the
// kol payout. Integer division, fee rounds down, so fee+payout always
// equals TotalAmount exactly.
func FeeSplit(total int64, feeBps int64) (fee int64, payout int64) {
	fee = total * feeBps / BpsDenominator
	return fee, total - fee
}
