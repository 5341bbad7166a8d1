package repository

import (
	"context"
	"fmt"

	"github.com/kolstack/koltime-api/internal/domain"
	"github.com/kolstack/koltime-api/internal/repository/dao"
)

var (
	ErrTicketNotFound = dao.ErrTicketNotFound
	ErrTicketExists   = dao.ErrTicketExists
)

type TicketDAO interface {
	Insert(ctx context.Context, ticket dao.Ticket) (dao.Ticket, error)
	FindByID(ctx context.Context, id uint) (dao.Ticket, error)
	FindByBookingID(ctx context.Context, bookingID uint) (dao.Ticket, error)
	Update(ctx context.Context, ticket dao.Ticket) (dao.Ticket, error)
}

type TicketRepository struct {
	dao TicketDAO
}

func NewTicketRepository(dao TicketDAO) *TicketRepository {
	return &TicketRepository{
		dao: dao,
	}
}

func (r *TicketRepository) Create(ctx context.Context, ticket domain.Ticket) (domain.Ticket, error) {
	created, err := r.dao.Insert(ctx, ticketToDAO(ticket))
	if err != nil {
		return domain.Ticket{}, err
	}

	return ticketToDomain(created), nil
}

func (r *TicketRepository) FindByID(ctx context.Context, id uint) (domain.Ticket, error) {
	found, err := r.dao.FindByID(ctx, id)
	if err != nil {
		return domain.Ticket{}, err
	}

	return ticketToDomain(found), nil
}

func (r *TicketRepository) FindByBookingID(ctx context.Context, bookingID uint) (domain.Ticket, error) {
	found, err := r.dao.FindByBookingID(ctx, bookingID)
	if err != nil {
		return domain.Ticket{}, err
	}

	return ticketToDomain(found), nil
}

func (r *TicketRepository) Update(ctx context.Context, ticket domain.Ticket) (domain.Ticket, error) {
	updated, err := r.dao.Update(ctx, ticketToDAO(ticket))
	if err != nil {
		return domain.Ticket{}, fmt.Errorf("r.dao.Update -> %w", err)
	}

	return ticketToDomain(updated), nil
}

func ticketToDAO(t domain.Ticket) dao.Ticket {
	return dao.Ticket{
		ID:          t.ID,
		BookingID:   t.BookingID,
		Owner:       t.Owner,
		Buyer:       t.Buyer,
		KOL:         t.KOL,
		FromTime:    t.FromTime,
		ToTime:      t.ToTime,
		Amount:      t.Amount,
		Reason:      t.Reason,
		MetadataRef: t.MetadataRef,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func ticketToDomain(t dao.Ticket) domain.Ticket {
	return domain.Ticket{
		ID:          t.ID,
		BookingID:   t.BookingID,
		Owner:       t.Owner,
		Buyer:       t.Buyer,
		KOL:         t.KOL,
		FromTime:    t.FromTime,
		ToTime:      t.ToTime,
		Amount:      t.Amount,
		Reason:      t.Reason,
		MetadataRef: t.MetadataRef,
		Status:      domain.BookingStatus(t.Status),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}
