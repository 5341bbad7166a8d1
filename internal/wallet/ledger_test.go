package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_Deposit(t *testing.T) {
	l := NewLedger()

	require.NoError(t, l.Deposit("alice", 100))
	require.NoError(t, l.Deposit("alice", 50))
	assert.Equal(t, int64(150), l.Balance("alice"))

	err := l.Deposit("alice", 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	err = l.Deposit("alice", -10)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Equal(t, int64(150), l.Balance("alice"))
}

func TestLedger_Transfer(t *testing.T) {
	l := NewLedger()
	require.NoError(t, l.Deposit("alice", 100))

	require.NoError(t, l.Transfer("alice", "bob", 60))
	assert.Equal(t, int64(40), l.Balance("alice"))
	assert.Equal(t, int64(60), l.Balance("bob"))

	err := l.Transfer("alice", "bob", 41)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, int64(40), l.Balance("alice"))
	assert.Equal(t, int64(60), l.Balance("bob"))
}

func TestLedger_TransferBatch(t *testing.T) {
	tests := []struct {
		name        string
		fromBalance int64
		payouts     []Payout
		wantErr     error
	}{
		{
			name:        "both legs land together",
			fromBalance: 1000,
			payouts:     []Payout{{To: "kol", Amount: 975}, {To: "fees", Amount: 25}},
		},
		{
			name:        "insufficient funds leaves everything untouched",
			fromBalance: 999,
			payouts:     []Payout{{To: "kol", Amount: 975}, {To: "fees", Amount: 25}},
			wantErr:     ErrInsufficientBalance,
		},
		{
			name:        "zero amount leg rejected",
			fromBalance: 1000,
			payouts:     []Payout{{To: "kol", Amount: 1000}, {To: "fees", Amount: 0}},
			wantErr:     ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLedger()
			require.NoError(t, l.Deposit("escrow", tt.fromBalance))

			err := l.TransferBatch("escrow", tt.payouts)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.fromBalance, l.Balance("escrow"))
				for _, p := range tt.payouts {
					assert.Zero(t, l.Balance(p.To))
				}
				return
			}

			require.NoError(t, err)
			var total int64
			for _, p := range tt.payouts {
				assert.Equal(t, p.Amount, l.Balance(p.To))
				total += p.Amount
			}
			assert.Equal(t, tt.fromBalance-total, l.Balance("escrow"))
		})
	}
}
