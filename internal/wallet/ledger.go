package wallet

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("transfer amount must be positive")
)

// Payout is one leg of a multi-output transfer.
type Payout struct {
	To     string
	Amount int64
}

// Ledger is the in-process payment rail: per-address balances guarded
// by a single mutex. Transfers fail loudly and leave balances untouched
// on any error, which is what the escrow engine relies on for its
// all-or-nothing transitions.
type Ledger struct {
	mu       sync.RWMutex
	balances map[string]int64
}

func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[string]int64),
	}
}

// Deposit credits an address. Used by the fiat on-ramp boundary and by
// tests; never fails for positive amounts.
func (l *Ledger) Deposit(addr string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[addr] += amount

	return nil
}

func (l *Ledger) Balance(addr string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.balances[addr]
}

// Transfer moves amount from one address to another, atomically.
func (l *Ledger) Transfer(from, to string, amount int64) error {
	return l.TransferBatch(from, []Payout{{To: to, Amount: amount}})
}

// TransferBatch debits from once and credits every payout, or does
// nothing at all. The fee split on payment release depends on both
// legs landing together.
func (l *Ledger) TransferBatch(from string, payouts []Payout) error {
	var total int64
	for _, p := range payouts {
		if p.Amount <= 0 {
			return ErrInvalidAmount
		}
		total += p.Amount
	}
	if total <= 0 {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[from] < total {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientBalance, from, l.balances[from], total)
	}

	l.balances[from] -= total
	for _, p := range payouts {
		l.balances[p.To] += p.Amount
	}

	return nil
}
