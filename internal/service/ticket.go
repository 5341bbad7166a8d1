package service

import (
	"context"
	"fmt"

	"github.com/kolstack/koltime-api/internal/domain"
	"github.com/kolstack/koltime-api/internal/repository"
)

var ErrTicketNotFound = repository.ErrTicketNotFound

type TicketRepository interface {
	Create(ctx context.Context, ticket domain.Ticket) (domain.Ticket, error)
	FindByID(ctx context.Context, id uint) (domain.Ticket, error)
	FindByBookingID(ctx context.Context, bookingID uint) (domain.Ticket, error)
	Update(ctx context.Context, ticket domain.Ticket) (domain.Ticket, error)
}

// TicketService mints one ticket per booking and keeps its display
// status in step with the booking. Whether tickets may change hands at
// all is a policy flag; the booking record stays the source of truth
// either way.
type TicketService struct {
	repo         TicketRepository
	transferable bool
}

func NewTicketService(repo TicketRepository, transferable bool) *TicketService {
	return &TicketService{
		repo:         repo,
		transferable: transferable,
	}
}

// Mint creates the booking's ticket, initially owned by the buyer.
// Called exactly once per booking by the escrow engine; the repository
// enforces the one-per-booking constraint.
func (s *TicketService) Mint(ctx context.Context, booking domain.Booking, metadataRef string) (domain.Ticket, error) {
	ticket := domain.Ticket{
		BookingID:   booking.ID,
		Owner:       booking.Buyer,
		Buyer:       booking.Buyer,
		KOL:         booking.KOL,
		FromTime:    booking.FromTime,
		ToTime:      booking.ToTime,
		Amount:      booking.TotalAmount,
		Reason:      booking.Reason,
		MetadataRef: metadataRef,
		Status:      booking.Status,
	}

	created, err := s.repo.Create(ctx, ticket)
	if err != nil {
		return domain.Ticket{}, fmt.Errorf("s.repo.Create -> %w", err)
	}

	return created, nil
}

// SyncStatus mirrors a booking status change onto its ticket.
func (s *TicketService) SyncStatus(ctx context.Context, bookingID uint, status domain.BookingStatus) error {
	ticket, err := s.repo.FindByBookingID(ctx, bookingID)
	if err != nil {
		return err
	}

	ticket.Status = status
	if _, err := s.repo.Update(ctx, ticket); err != nil {
		return fmt.Errorf("s.repo.Update -> %w", err)
	}

	return nil
}

func (s *TicketService) GetTicket(ctx context.Context, id uint) (domain.Ticket, error) {
	ticket, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Ticket{}, err
	}

	return ticket, nil
}

func (s *TicketService) GetTicketByBooking(ctx context.Context, bookingID uint) (domain.Ticket, error) {
	ticket, err := s.repo.FindByBookingID(ctx, bookingID)
	if err != nil {
		return domain.Ticket{}, err
	}

	return ticket, nil
}

// Transfer hands a ticket to a new owner, if policy allows it at all.
func (s *TicketService) Transfer(ctx context.Context, id uint, caller, to string) (domain.Ticket, error) {
	if !s.transferable {
		return domain.Ticket{}, domain.ErrTicketNotTransferable
	}
	if to == "" {
		return domain.Ticket{}, domain.ErrEmptyAddress
	}

	ticket, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Ticket{}, err
	}

	if ticket.Owner != caller {
		return domain.Ticket{}, domain.ErrNotTicketOwner
	}

	ticket.Owner = to
	updated, err := s.repo.Update(ctx, ticket)
	if err != nil {
		return domain.Ticket{}, fmt.Errorf("s.repo.Update -> %w", err)
	}

	return updated, nil
}
