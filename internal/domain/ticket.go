package domain

import "time"

// Ticket is the non-fungible proof that a booking was paid for. One
// ticket per booking, minted together with the booking; the booking
// record stays the source of truth, the ticket denormalizes fields for
// display and lookup.
type Ticket struct {
	ID        uint   `json:"id"`
	BookingID uint   `json:"booking_id"`
	Owner     string `json:"owner"`

	Buyer string `json:"buyer"`
	KOL   string `json:"kol"`

	FromTime time.Time `json:"from_time"`
	ToTime   time.Time `json:"to_time"`
	Amount   int64     `json:"amount"`
	Reason   string    `json:"reason"`

	// MetadataRef points at externally rendered ticket metadata; the
	// core only stores the reference.
	MetadataRef string `json:"metadata_ref,omitempty"`

	Status BookingStatus `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
