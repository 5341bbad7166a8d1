package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kolstack/koltime-api/internal/domain"
)

// EscrowSweeper is the slice of the escrow engine the sweep drives.
type EscrowSweeper interface {
	OpenBookings(ctx context.Context) ([]domain.Booking, error)
	HandleExpired(ctx context.Context, id uint) (domain.Booking, error)
	ReleasePayment(ctx context.Context, id uint) (domain.Booking, error)
	FinalizePayout(ctx context.Context, id uint) (domain.Booking, error)
}

type SweepResult struct {
	Examined  int `json:"examined"`
	Expired   int `json:"expired"`
	Released  int `json:"released"`
	Recovered int `json:"recovered"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// SweepService evaluates time-gated transitions over all open
// bookings. It is externally invoked, idempotent, and order
// independent: every actual state change goes through the engine's own
// guards, so a redundant or racing sweep just collects skips.
type SweepService struct {
	escrow EscrowSweeper
	clock  Clock
}

func NewSweepService(escrow EscrowSweeper, clock Clock) *SweepService {
	return &SweepService{
		escrow: escrow,
		clock:  clock,
	}
}

// Sweep expires overdue pending bookings and releases accepted ones
// whose dispute window has passed. Guard and state rejections count as
// skips; only infrastructure or transfer failures count as failed.
func (s *SweepService) Sweep(ctx context.Context) (SweepResult, error) {
	bookings, err := s.escrow.OpenBookings(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("s.escrow.OpenBookings -> %w", err)
	}

	var result SweepResult
	now := s.clock.Now()

	for _, booking := range bookings {
		result.Examined++

		// A booking stuck between funds moving and the terminal status
		// landing gets its record finished first, without a transfer.
		if booking.PayoutState == domain.PayoutPending {
			if _, err := s.escrow.FinalizePayout(ctx, booking.ID); err != nil {
				s.count(&result, booking.ID, "finalize", err)
				continue
			}
			result.Recovered++
			continue
		}

		switch booking.Status {
		case domain.BookingPending:
			if now.Before(booking.AcceptDeadline()) {
				result.Skipped++
				continue
			}
			if _, err := s.escrow.HandleExpired(ctx, booking.ID); err != nil {
				s.count(&result, booking.ID, "expire", err)
				continue
			}
			result.Expired++

		case domain.BookingAccepted:
			if booking.SessionEndTime == nil || booking.DisputeReported || !now.After(booking.DisputeDeadline()) {
				result.Skipped++
				continue
			}
			if _, err := s.escrow.ReleasePayment(ctx, booking.ID); err != nil {
				s.count(&result, booking.ID, "release", err)
				continue
			}
			result.Released++

		default:
			result.Skipped++
		}
	}

	return result, nil
}

func (s *SweepService) count(result *SweepResult, id uint, op string, err error) {
	// A guard or state rejection means another caller got there first
	// or the clock moved; both are fine.
	if errors.Is(err, domain.ErrGuard) || errors.Is(err, domain.ErrState) {
		result.Skipped++
		return
	}

	zap.L().Error("sweep transition failed", zap.Uint("bookingID", id), zap.String("op", op), zap.Error(err))
	result.Failed++
}
