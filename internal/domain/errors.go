package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every rejected operation wraps exactly one of these so
// callers can branch on the failure class with errors.Is without
// depending on message text.
var (
	ErrValidation    = errors.New("validation error")
	ErrState         = errors.New("state error")
	ErrAuthorization = errors.New("authorization error")
	ErrGuard         = errors.New("guard not satisfied")
	ErrTransfer      = errors.New("transfer error")
	ErrDuplicate     = errors.New("duplicate error")
)

// Concrete failures, each tagged with its kind.
var (
	ErrSelfBooking       = fmt.Errorf("%w: kol and buyer must differ", ErrValidation)
	ErrInvalidUnitCount  = fmt.Errorf("%w: unit count must be positive", ErrValidation)
	ErrInvalidTimeRange  = fmt.Errorf("%w: invalid booking time range", ErrValidation)
	ErrSlotTooShort      = fmt.Errorf("%w: slot shorter than booked units", ErrValidation)
	ErrWrongPaidAmount   = fmt.Errorf("%w: paid amount does not match price", ErrValidation)
	ErrInvalidRating     = fmt.Errorf("%w: rating out of range", ErrValidation)
	ErrInvalidFee        = fmt.Errorf("%w: fee exceeds maximum", ErrValidation)
	ErrEmptyAddress      = fmt.Errorf("%w: empty address", ErrValidation)

	ErrWrongStatus = fmt.Errorf("%w: operation not allowed in current booking status", ErrState)

	ErrNotKOL         = fmt.Errorf("%w: caller is not the booked kol", ErrAuthorization)
	ErrNotBuyer       = fmt.Errorf("%w: caller is not the booking buyer", ErrAuthorization)
	ErrNotOwner       = fmt.Errorf("%w: caller is not the platform owner", ErrAuthorization)
	ErrNotTicketOwner = fmt.Errorf("%w: caller does not own the ticket", ErrAuthorization)

	ErrTicketNotTransferable = fmt.Errorf("%w: tickets are soulbound under current policy", ErrState)

	ErrAcceptWindowClosed  = fmt.Errorf("%w: acceptance window has closed", ErrGuard)
	ErrNotYetExpired       = fmt.Errorf("%w: acceptance window still open", ErrGuard)
	ErrSessionNotStarted   = fmt.Errorf("%w: booked slot has not ended yet", ErrGuard)
	ErrSessionNotEnded     = fmt.Errorf("%w: session has not been marked ended", ErrGuard)
	ErrDisputeWindowOpen   = fmt.Errorf("%w: dispute window still open", ErrGuard)
	ErrDisputeWindowClosed = fmt.Errorf("%w: dispute window has closed", ErrGuard)

	ErrSessionAlreadyEnded = fmt.Errorf("%w: session end already recorded", ErrDuplicate)
	ErrAlreadyDisputed     = fmt.Errorf("%w: dispute already reported", ErrDuplicate)
	ErrAlreadyRated        = fmt.Errorf("%w: rating already submitted", ErrDuplicate)
	ErrTxAlreadyProcessed  = fmt.Errorf("%w: transaction id already processed", ErrDuplicate)

	ErrBookingDisputed = fmt.Errorf("%w: booking is under dispute", ErrState)
	ErrPayoutInFlight  = fmt.Errorf("%w: disbursement in flight", ErrState)
)
