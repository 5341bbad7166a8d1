package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolstack/koltime-api/internal/domain"
)

func TestSweep_ReleasesMaturedEscrow(t *testing.T) {
	f := newEscrowFixture(t)
	sweep := NewSweepService(f.svc, f.clock)
	ctx := context.Background()

	ended := f.endedSession(t)

	// A second, fresh pending booking that must be left alone.
	fresh := f.createBooking(t)

	f.clock.Advance(domain.DisputePeriod + time.Minute)

	result, err := sweep.Sweep(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Examined)
	assert.Equal(t, 1, result.Released)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Expired)
	assert.Zero(t, result.Failed)

	released, err := f.svc.GetBooking(ctx, ended.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCompleted, released.Status)
	assert.Equal(t, int64(975), f.ledger.Balance(testKOL))
	assert.Equal(t, int64(25), f.ledger.Balance(testFees))

	untouched, err := f.svc.GetBooking(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingPending, untouched.Status)
}

func TestSweep_ExpiresOverduePending(t *testing.T) {
	f := newEscrowFixture(t)
	sweep := NewSweepService(f.svc, f.clock)
	ctx := context.Background()

	booking := f.createBooking(t)
	f.clock.Advance(domain.ExpiryPeriod + time.Minute)

	result, err := sweep.Sweep(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Examined)
	assert.Equal(t, 1, result.Expired)
	assert.Zero(t, result.Failed)

	expired, err := f.svc.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingExpired, expired.Status)
	assert.Equal(t, int64(1000), f.ledger.Balance(testBuyer))
}

func TestSweep_Idempotent(t *testing.T) {
	f := newEscrowFixture(t)
	sweep := NewSweepService(f.svc, f.clock)
	ctx := context.Background()

	f.createBooking(t)
	f.clock.Advance(domain.ExpiryPeriod + time.Minute)

	first, err := sweep.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Expired)

	// Terminal bookings drop out of the open set; a rerun is a no-op.
	second, err := sweep.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.Examined)
	assert.Zero(t, second.Expired)
	assert.Zero(t, second.Failed)

	assert.Equal(t, int64(1000), f.ledger.Balance(testBuyer))
}

func TestSweep_SkipsOpenWindows(t *testing.T) {
	f := newEscrowFixture(t)
	sweep := NewSweepService(f.svc, f.clock)
	ctx := context.Background()

	// Accepted, session not ended yet.
	f.acceptedBooking(t)

	// Accepted and ended, but the dispute window is still open.
	f.endedSession(t)

	result, err := sweep.Sweep(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Examined)
	assert.Equal(t, 2, result.Skipped)
	assert.Zero(t, result.Released)
	assert.Zero(t, f.ledger.Balance(testKOL))
}

func TestSweep_FinishesStuckPayout(t *testing.T) {
	f := newEscrowFixture(t)
	sweep := NewSweepService(f.svc, f.clock)
	ctx := context.Background()

	booking := f.endedSession(t)
	f.clock.Advance(domain.DisputePeriod + time.Minute)

	// Funds leave escrow but the Completed write fails, leaving the
	// booking Accepted with the payout marker set.
	f.repo.updateHook = func(b domain.Booking) error {
		if b.Status == domain.BookingCompleted {
			return errors.New("connection reset")
		}
		return nil
	}
	_, err := f.svc.ReleasePayment(ctx, booking.ID)
	require.Error(t, err)
	f.repo.updateHook = nil

	result, err := sweep.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Recovered)
	assert.Zero(t, result.Released)
	assert.Zero(t, result.Failed)

	recovered, err := f.svc.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCompleted, recovered.Status)
	assert.Equal(t, int64(975), f.ledger.Balance(testKOL))
	assert.Equal(t, int64(25), f.ledger.Balance(testFees))
	assert.Zero(t, f.ledger.Balance(testEscrow))
}

func TestSweep_DisputedBookingIsUntouched(t *testing.T) {
	f := newEscrowFixture(t)
	sweep := NewSweepService(f.svc, f.clock)
	ctx := context.Background()

	booking := f.endedSession(t)
	_, err := f.svc.ReportDispute(ctx, booking.ID, testBuyer, "no show")
	require.NoError(t, err)

	f.clock.Advance(2 * domain.DisputePeriod)

	result, err := sweep.Sweep(ctx)
	require.NoError(t, err)

	// Disputed bookings are not part of the open set at all.
	assert.Zero(t, result.Examined)
	assert.Equal(t, int64(1000), f.ledger.Balance(testEscrow))
}
