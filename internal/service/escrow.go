package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kolstack/koltime-api/internal/domain"
	"github.com/kolstack/koltime-api/internal/repository"
	"github.com/kolstack/koltime-api/internal/wallet"
)

var ErrBookingNotFound = repository.ErrBookingNotFound

// Clock is injected so time-gated transitions are testable.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func NewRealClock() Clock { return realClock{} }

type BookingRepository interface {
	Create(ctx context.Context, booking domain.Booking) (domain.Booking, error)
	FindByID(ctx context.Context, id uint) (domain.Booking, error)
	Update(ctx context.Context, booking domain.Booking) (domain.Booking, error)
	FindByStatuses(ctx context.Context, statuses []domain.BookingStatus) ([]domain.Booking, error)
	FindByParty(ctx context.Context, address string) ([]domain.Booking, error)
}

// PaymentRail is the transfer primitive the engine disburses through.
// Implementations must be all-or-nothing and fail loudly.
type PaymentRail interface {
	Transfer(from, to string, amount int64) error
	TransferBatch(from string, payouts []wallet.Payout) error
}

// TicketIssuer mints the per-booking ticket and mirrors status changes
// onto it for display.
type TicketIssuer interface {
	Mint(ctx context.Context, booking domain.Booking, metadataRef string) (domain.Ticket, error)
	SyncStatus(ctx context.Context, bookingID uint, status domain.BookingStatus) error
}

// ReputationNotifier receives lifecycle events. Notification failures
// never roll back a committed transition; they are logged and the
// accumulator catches up on the next recompute.
type ReputationNotifier interface {
	BookingCreated(ctx context.Context, buyer, kol string, amount int64) error
	BookingAccepted(ctx context.Context, kol string) error
	BookingCompleted(ctx context.Context, buyer, kol string, amount int64, rating int) error
}

// EscrowParams is the boot configuration of the engine. Fee settings
// are mutable afterwards through the owner-gated setters.
type EscrowParams struct {
	EscrowAddress string
	OwnerAddress  string
	FeeBps        int64
	FeeRecipient  string
}

// EscrowService owns the booking lifecycle: it holds the escrowed
// funds on a dedicated ledger address, enforces every state-machine
// guard, and guarantees each booking's escrow leaves exactly once.
type EscrowService struct {
	repo    BookingRepository
	tickets TicketIssuer
	rail    PaymentRail
	rep     ReputationNotifier
	clock   Clock

	escrowAddr string
	owner      string

	feeMu        sync.RWMutex
	feeBps       int64
	feeRecipient string

	lockMu sync.Mutex
	locks  map[uint]*sync.Mutex
}

func NewEscrowService(repo BookingRepository, tickets TicketIssuer, rail PaymentRail, rep ReputationNotifier, clock Clock, params EscrowParams) *EscrowService {
	if params.FeeBps == 0 {
		params.FeeBps = domain.DefaultFeeBps
	}

	return &EscrowService{
		repo:         repo,
		tickets:      tickets,
		rail:         rail,
		rep:          rep,
		clock:        clock,
		escrowAddr:   params.EscrowAddress,
		owner:        params.OwnerAddress,
		feeBps:       params.FeeBps,
		feeRecipient: params.FeeRecipient,
		locks:        make(map[uint]*sync.Mutex),
	}
}

// bookingLock serializes transitions on a single booking. Operations
// on different bookings proceed in parallel.
func (s *EscrowService) bookingLock(id uint) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	m, ok := s.locks[id]
	if !ok {
		m = &sync.Mutex{}
		s.locks[id] = m
	}

	return m
}

// CreateBooking escrows the payment, persists the booking and mints
// its ticket. The paid amount must equal pricePerUnit*unitCount
// exactly; anything else is rejected before funds move.
func (s *EscrowService) CreateBooking(ctx context.Context, buyer, kol string, pricePerUnit, unitCount int64, fromTime, toTime time.Time, reason, metadataRef string, paidAmount int64) (domain.Booking, error) {
	if buyer == "" || kol == "" {
		return domain.Booking{}, domain.ErrEmptyAddress
	}
	if buyer == kol {
		return domain.Booking{}, domain.ErrSelfBooking
	}
	if unitCount <= 0 || pricePerUnit <= 0 {
		return domain.Booking{}, domain.ErrInvalidUnitCount
	}

	now := s.clock.Now()
	if !fromTime.After(now) || !toTime.After(fromTime) {
		return domain.Booking{}, domain.ErrInvalidTimeRange
	}
	if toTime.Sub(fromTime) < time.Duration(unitCount)*domain.MinUnitDuration {
		return domain.Booking{}, domain.ErrSlotTooShort
	}

	total := pricePerUnit * unitCount
	if paidAmount != total {
		return domain.Booking{}, domain.ErrWrongPaidAmount
	}

	// Funds enter escrow first; if anything after this fails the
	// payment is compensated back to the buyer.
	if err := s.rail.Transfer(buyer, s.escrowAddr, paidAmount); err != nil {
		return domain.Booking{}, fmt.Errorf("%w: %v", domain.ErrTransfer, err)
	}

	booking := domain.Booking{
		Buyer:        buyer,
		KOL:          kol,
		PricePerUnit: pricePerUnit,
		UnitCount:    unitCount,
		TotalAmount:  total,
		FromTime:     fromTime,
		ToTime:       toTime,
		Status:       domain.BookingPending,
		Reason:       reason,
		CreatedAt:    now,
	}

	created, err := s.repo.Create(ctx, booking)
	if err != nil {
		s.refundOnFailure(booking.Buyer, paidAmount)
		return domain.Booking{}, fmt.Errorf("s.repo.Create -> %w", err)
	}

	ticket, err := s.tickets.Mint(ctx, created, metadataRef)
	if err != nil {
		s.refundOnFailure(booking.Buyer, paidAmount)
		return domain.Booking{}, fmt.Errorf("s.tickets.Mint -> %w", err)
	}

	created.TicketID = ticket.ID
	created, err = s.repo.Update(ctx, created)
	if err != nil {
		s.refundOnFailure(booking.Buyer, paidAmount)
		return domain.Booking{}, fmt.Errorf("s.repo.Update -> %w", err)
	}

	if err := s.rep.BookingCreated(ctx, buyer, kol, total); err != nil {
		zap.L().Error("reputation notify failed on booking create", zap.Uint("bookingID", created.ID), zap.Error(err))
	}

	return created, nil
}

func (s *EscrowService) refundOnFailure(buyer string, amount int64) {
	if err := s.rail.Transfer(s.escrowAddr, buyer, amount); err != nil {
		zap.L().Error("compensating refund failed, funds stuck in escrow", zap.String("buyer", buyer), zap.Int64("amount", amount), zap.Error(err))
	}
}

// AcceptBooking lets the booked kol take the reservation while the
// acceptance window is still open.
func (s *EscrowService) AcceptBooking(ctx context.Context, id uint, caller string) (domain.Booking, error) {
	mu := s.bookingLock(id)
	mu.Lock()
	defer mu.Unlock()

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}

	if booking.Status != domain.BookingPending {
		return domain.Booking{}, domain.ErrWrongStatus
	}
	if booking.PayoutState == domain.PayoutPending {
		return domain.Booking{}, domain.ErrPayoutInFlight
	}
	if caller != booking.KOL {
		return domain.Booking{}, domain.ErrNotKOL
	}
	if !s.clock.Now().Before(booking.AcceptDeadline()) {
		return domain.Booking{}, domain.ErrAcceptWindowClosed
	}

	booking.Status = domain.BookingAccepted
	updated, err := s.repo.Update(ctx, booking)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("s.repo.Update -> %w", err)
	}

	s.syncTicket(ctx, updated)

	if err := s.rep.BookingAccepted(ctx, booking.KOL); err != nil {
		zap.L().Error("reputation notify failed on booking accept", zap.Uint("bookingID", id), zap.Error(err))
	}

	return updated, nil
}

// RejectBooking refunds the full escrow to the buyer. KOL only, any
// time while the booking is still pending.
func (s *EscrowService) RejectBooking(ctx context.Context, id uint, caller string) (domain.Booking, error) {
	mu := s.bookingLock(id)
	mu.Lock()
	defer mu.Unlock()

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}

	if booking.Status != domain.BookingPending {
		return domain.Booking{}, domain.ErrWrongStatus
	}
	if caller != booking.KOL {
		return domain.Booking{}, domain.ErrNotKOL
	}

	return s.refundAndFinalize(ctx, booking, domain.BookingRejected)
}

// CancelBooking refunds the full escrow to the buyer. Buyer only,
// while pending.
func (s *EscrowService) CancelBooking(ctx context.Context, id uint, caller string) (domain.Booking, error) {
	mu := s.bookingLock(id)
	mu.Lock()
	defer mu.Unlock()

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}

	if booking.Status != domain.BookingPending {
		return domain.Booking{}, domain.ErrWrongStatus
	}
	if caller != booking.Buyer {
		return domain.Booking{}, domain.ErrNotBuyer
	}

	return s.refundAndFinalize(ctx, booking, domain.BookingCancelled)
}

// HandleExpired expires a pending booking whose acceptance window has
// closed and refunds the buyer. Callable by anyone, typically the
// sweeper.
func (s *EscrowService) HandleExpired(ctx context.Context, id uint) (domain.Booking, error) {
	mu := s.bookingLock(id)
	mu.Lock()
	defer mu.Unlock()

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}

	if booking.Status != domain.BookingPending {
		return domain.Booking{}, domain.ErrWrongStatus
	}
	if s.clock.Now().Before(booking.AcceptDeadline()) {
		return domain.Booking{}, domain.ErrNotYetExpired
	}

	return s.refundAndFinalize(ctx, booking, domain.BookingExpired)
}

// refundAndFinalize is the single refund path shared by reject, cancel,
// expire and dispute-refund. The payout marker is persisted before the
// transfer runs; a retry that finds the marker set skips the transfer
// and only finishes the record, so the escrow leaves exactly once even
// when the terminal status write fails mid-way.
func (s *EscrowService) refundAndFinalize(ctx context.Context, booking domain.Booking, terminal domain.BookingStatus) (domain.Booking, error) {
	if booking.PayoutState == domain.PayoutPending {
		return s.finalizePayout(ctx, booking)
	}

	booking.PayoutState = domain.PayoutPending
	booking.PayoutTarget = terminal
	marked, err := s.repo.Update(ctx, booking)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("s.repo.Update -> %w", err)
	}

	if err := s.rail.Transfer(s.escrowAddr, marked.Buyer, marked.TotalAmount); err != nil {
		s.clearPayoutMarker(ctx, marked)
		return domain.Booking{}, fmt.Errorf("%w: %v", domain.ErrTransfer, err)
	}

	return s.finalizePayout(ctx, marked)
}

// finalizePayout persists the terminal status recorded in the payout
// marker. The funds have already moved; this step only finishes the
// record and fires the completion side effects, and it is retried via
// the caller or the sweep until the write sticks.
func (s *EscrowService) finalizePayout(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	booking.Status = booking.PayoutTarget
	booking.PayoutState = domain.PayoutNone
	booking.PayoutTarget = ""

	updated, err := s.repo.Update(ctx, booking)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("booking %d disbursed but status persist failed: s.repo.Update -> %w", booking.ID, err)
	}

	s.syncTicket(ctx, updated)

	if updated.Status == domain.BookingCompleted {
		rating := domain.DefaultRating
		if updated.Rating != nil {
			rating = *updated.Rating
		}
		if err := s.rep.BookingCompleted(ctx, updated.Buyer, updated.KOL, updated.TotalAmount, rating); err != nil {
			zap.L().Error("reputation notify failed on booking complete", zap.Uint("bookingID", updated.ID), zap.Error(err))
		}
	}

	return updated, nil
}

func (s *EscrowService) clearPayoutMarker(ctx context.Context, booking domain.Booking) {
	booking.PayoutState = domain.PayoutNone
	booking.PayoutTarget = ""
	if _, err := s.repo.Update(ctx, booking); err != nil {
		// A stuck marker would make the sweep finalize without a
		// transfer, so this failure must be visible.
		zap.L().Error("payout marker stuck after failed transfer", zap.Uint("bookingID", booking.ID), zap.Error(err))
	}
}

// FinalizePayout finishes a booking whose funds left escrow but whose
// terminal status write failed. No transfer happens here; the sweep
// calls it for any open booking carrying the marker.
func (s *EscrowService) FinalizePayout(ctx context.Context, id uint) (domain.Booking, error) {
	mu := s.bookingLock(id)
	mu.Lock()
	defer mu.Unlock()

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}

	if booking.PayoutState != domain.PayoutPending {
		return domain.Booking{}, domain.ErrWrongStatus
	}

	return s.finalizePayout(ctx, booking)
}

// CompleteSession records the session end time. KOL only, once, and
// only after the booked slot is over. The status stays Accepted; the
// dispute window starts counting from here.
func (s *EscrowService) CompleteSession(ctx context.Context, id uint, caller string) (domain.Booking, error) {
	mu := s.bookingLock(id)
	mu.Lock()
	defer mu.Unlock()

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}

	if booking.Status != domain.BookingAccepted {
		return domain.Booking{}, domain.ErrWrongStatus
	}
	if booking.PayoutState == domain.PayoutPending {
		return domain.Booking{}, domain.ErrPayoutInFlight
	}
	if caller != booking.KOL {
		return domain.Booking{}, domain.ErrNotKOL
	}
	if booking.SessionEndTime != nil {
		return domain.Booking{}, domain.ErrSessionAlreadyEnded
	}

	now := s.clock.Now()
	if now.Before(booking.ToTime) {
		return domain.Booking{}, domain.ErrSessionNotStarted
	}

	booking.SessionEndTime = &now
	updated, err := s.repo.Update(ctx, booking)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("s.repo.Update -> %w", err)
	}

	return updated, nil
}

// ReportDispute freezes an accepted booking inside the dispute window.
// Buyer only, one shot. Resolution is an explicit admin decision.
func (s *EscrowService) ReportDispute(ctx context.Context, id uint, caller, reason string) (domain.Booking, error) {
	mu := s.bookingLock(id)
	mu.Lock()
	defer mu.Unlock()

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}

	if booking.Status != domain.BookingAccepted {
		return domain.Booking{}, domain.ErrWrongStatus
	}
	if booking.PayoutState == domain.PayoutPending {
		return domain.Booking{}, domain.ErrPayoutInFlight
	}
	if caller != booking.Buyer {
		return domain.Booking{}, domain.ErrNotBuyer
	}
	if booking.SessionEndTime == nil {
		return domain.Booking{}, domain.ErrSessionNotEnded
	}
	if booking.DisputeReported {
		return domain.Booking{}, domain.ErrAlreadyDisputed
	}
	if s.clock.Now().After(booking.DisputeDeadline()) {
		return domain.Booking{}, domain.ErrDisputeWindowClosed
	}

	booking.DisputeReported = true
	booking.DisputeReason = reason
	booking.Status = domain.BookingDisputed

	updated, err := s.repo.Update(ctx, booking)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("s.repo.Update -> %w", err)
	}

	s.syncTicket(ctx, updated)

	return updated, nil
}

// RateSession stores the buyer's one-shot rating (tenths of a star,
// 0-50). Allowed after the session ended, also post-completion.
func (s *EscrowService) RateSession(ctx context.Context, id uint, caller string, rating int) (domain.Booking, error) {
	mu := s.bookingLock(id)
	mu.Lock()
	defer mu.Unlock()

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}

	if booking.Status != domain.BookingAccepted && booking.Status != domain.BookingCompleted {
		return domain.Booking{}, domain.ErrWrongStatus
	}
	if booking.PayoutState == domain.PayoutPending {
		return domain.Booking{}, domain.ErrPayoutInFlight
	}
	if caller != booking.Buyer {
		return domain.Booking{}, domain.ErrNotBuyer
	}
	if booking.SessionEndTime == nil {
		return domain.Booking{}, domain.ErrSessionNotEnded
	}
	if rating < 0 || rating > domain.MaxRating {
		return domain.Booking{}, domain.ErrInvalidRating
	}
	if booking.Rating != nil {
		return domain.Booking{}, domain.ErrAlreadyRated
	}

	booking.Rating = &rating
	updated, err := s.repo.Update(ctx, booking)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("s.repo.Update -> %w", err)
	}

	return updated, nil
}

// ReleasePayment disburses the escrow once the dispute window has
// passed without a report: fee to the recipient, remainder to the kol,
// in one atomic batch. A second call finds the booking Completed and
// fails without a second transfer.
func (s *EscrowService) ReleasePayment(ctx context.Context, id uint) (domain.Booking, error) {
	mu := s.bookingLock(id)
	mu.Lock()
	defer mu.Unlock()

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}

	if booking.Status != domain.BookingAccepted {
		return domain.Booking{}, domain.ErrWrongStatus
	}
	if booking.SessionEndTime == nil {
		return domain.Booking{}, domain.ErrSessionNotEnded
	}
	if booking.DisputeReported {
		return domain.Booking{}, domain.ErrBookingDisputed
	}
	if !s.clock.Now().After(booking.DisputeDeadline()) {
		return domain.Booking{}, domain.ErrDisputeWindowOpen
	}

	return s.releaseAndFinalize(ctx, booking)
}

// releaseAndFinalize splits the escrow and persists Completed, used by
// the regular release path and the admin dispute resolution. Same
// marker protocol as refundAndFinalize.
func (s *EscrowService) releaseAndFinalize(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	if booking.PayoutState == domain.PayoutPending {
		return s.finalizePayout(ctx, booking)
	}

	feeBps, feeRecipient := s.feeTerms()
	fee, payout := domain.FeeSplit(booking.TotalAmount, feeBps)

	payouts := []wallet.Payout{{To: booking.KOL, Amount: payout}}
	if fee > 0 {
		payouts = append(payouts, wallet.Payout{To: feeRecipient, Amount: fee})
	}

	booking.PayoutState = domain.PayoutPending
	booking.PayoutTarget = domain.BookingCompleted
	marked, err := s.repo.Update(ctx, booking)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("s.repo.Update -> %w", err)
	}

	if err := s.rail.TransferBatch(s.escrowAddr, payouts); err != nil {
		s.clearPayoutMarker(ctx, marked)
		return domain.Booking{}, fmt.Errorf("%w: %v", domain.ErrTransfer, err)
	}

	return s.finalizePayout(ctx, marked)
}

// ResolveDispute is the owner's manual escape hatch for disputed
// bookings: refund the buyer or release to the kol. The product still
// owes a real resolution policy; until then this is deliberately
// admin-only.
func (s *EscrowService) ResolveDispute(ctx context.Context, id uint, caller string, releaseToKOL bool) (domain.Booking, error) {
	if caller != s.owner {
		return domain.Booking{}, domain.ErrNotOwner
	}

	mu := s.bookingLock(id)
	mu.Lock()
	defer mu.Unlock()

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}

	if booking.Status != domain.BookingDisputed {
		return domain.Booking{}, domain.ErrWrongStatus
	}

	if releaseToKOL {
		return s.releaseAndFinalize(ctx, booking)
	}

	return s.refundAndFinalize(ctx, booking, domain.BookingCancelled)
}

func (s *EscrowService) GetBooking(ctx context.Context, id uint) (domain.Booking, error) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}

	return booking, nil
}

func (s *EscrowService) GetBookingsByParty(ctx context.Context, address string) ([]domain.Booking, error) {
	bookings, err := s.repo.FindByParty(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindByParty -> %w", err)
	}

	return bookings, nil
}

// OpenBookings returns everything the sweeper needs to look at.
func (s *EscrowService) OpenBookings(ctx context.Context) ([]domain.Booking, error) {
	bookings, err := s.repo.FindByStatuses(ctx, []domain.BookingStatus{domain.BookingPending, domain.BookingAccepted})
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindByStatuses -> %w", err)
	}

	return bookings, nil
}

func (s *EscrowService) feeTerms() (int64, string) {
	s.feeMu.RLock()
	defer s.feeMu.RUnlock()

	return s.feeBps, s.feeRecipient
}

func (s *EscrowService) FeeBps() int64 {
	s.feeMu.RLock()
	defer s.feeMu.RUnlock()

	return s.feeBps
}

func (s *EscrowService) FeeRecipient() string {
	s.feeMu.RLock()
	defer s.feeMu.RUnlock()

	return s.feeRecipient
}

// SetPlatformFee updates the fee taken on future releases. Owner only,
// capped at MaxFeeBps.
func (s *EscrowService) SetPlatformFee(caller string, bps int64) error {
	if caller != s.owner {
		return domain.ErrNotOwner
	}
	if bps < 0 || bps > domain.MaxFeeBps {
		return domain.ErrInvalidFee
	}

	s.feeMu.Lock()
	defer s.feeMu.Unlock()
	s.feeBps = bps

	return nil
}

// SetFeeRecipient redirects future fees. Owner only.
func (s *EscrowService) SetFeeRecipient(caller, addr string) error {
	if caller != s.owner {
		return domain.ErrNotOwner
	}
	if addr == "" {
		return domain.ErrEmptyAddress
	}

	s.feeMu.Lock()
	defer s.feeMu.Unlock()
	s.feeRecipient = addr

	return nil
}

func (s *EscrowService) syncTicket(ctx context.Context, booking domain.Booking) {
	if err := s.tickets.SyncStatus(ctx, booking.ID, booking.Status); err != nil {
		zap.L().Warn("ticket status sync failed", zap.Uint("bookingID", booking.ID), zap.Error(err))
	}
}
