package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFeeSplit(t *testing.T) {
	tests := []struct {
		name       string
		total      int64
		feeBps     int64
		wantFee    int64
		wantPayout int64
	}{
		{name: "default fee on 1000", total: 1000, feeBps: 250, wantFee: 25, wantPayout: 975},
		{name: "default fee on 200", total: 200, feeBps: 250, wantFee: 5, wantPayout: 195},
		{name: "zero fee", total: 1000, feeBps: 0, wantFee: 0, wantPayout: 1000},
		{name: "max fee", total: 1000, feeBps: MaxFeeBps, wantFee: 100, wantPayout: 900},
		{name: "fee rounds down", total: 99, feeBps: 250, wantFee: 2, wantPayout: 97},
		{name: "tiny total", total: 1, feeBps: 250, wantFee: 0, wantPayout: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, payout := FeeSplit(tt.total, tt.feeBps)
			assert.Equal(t, tt.wantFee, fee)
			assert.Equal(t, tt.wantPayout, payout)
			assert.Equal(t, tt.total, fee+payout)
		})
	}
}

func TestBooking_IsTerminal(t *testing.T) {
	terminal := []BookingStatus{BookingRejected, BookingCompleted, BookingCancelled, BookingExpired}
	for _, status := range terminal {
		b := Booking{Status: status}
		assert.True(t, b.IsTerminal(), string(status))
	}

	open := []BookingStatus{BookingPending, BookingAccepted, BookingDisputed}
	for _, status := range open {
		b := Booking{Status: status}
		assert.False(t, b.IsTerminal(), string(status))
	}
}

func TestBooking_Deadlines(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ended := created.Add(48 * time.Hour)

	b := Booking{CreatedAt: created, SessionEndTime: &ended}

	assert.Equal(t, created.Add(5*24*time.Hour), b.AcceptDeadline())
	assert.Equal(t, ended.Add(24*time.Hour), b.DisputeDeadline())
}

func TestTierThresholds_TierFor(t *testing.T) {
	thresholds := DefaultTierThresholds()

	assert.Equal(t, TierBronze, thresholds.TierFor(0))
	assert.Equal(t, TierBronze, thresholds.TierFor(999))
	assert.Equal(t, TierSilver, thresholds.TierFor(1000))
	assert.Equal(t, TierGold, thresholds.TierFor(3000))
	assert.Equal(t, TierDiamond, thresholds.TierFor(5000))
	assert.Equal(t, TierDiamond, thresholds.TierFor(123456))
}
