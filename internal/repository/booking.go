package repository

import (
	"context"
	"fmt"

	"github.com/kolstack/koltime-api/internal/domain"
	"github.com/kolstack/koltime-api/internal/repository/dao"
)

var ErrBookingNotFound = dao.ErrBookingNotFound

type BookingDAO interface {
	Insert(ctx context.Context, booking dao.Booking) (dao.Booking, error)
	FindByID(ctx context.Context, id uint) (dao.Booking, error)
	Update(ctx context.Context, booking dao.Booking) (dao.Booking, error)
	FindByStatuses(ctx context.Context, statuses []string) ([]dao.Booking, error)
	FindByParty(ctx context.Context, address string) ([]dao.Booking, error)
}

type BookingRepository struct {
	dao BookingDAO
}

func NewBookingRepository(dao BookingDAO) *BookingRepository {
	return &BookingRepository{
		dao: dao,
	}
}

func (r *BookingRepository) Create(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	created, err := r.dao.Insert(ctx, bookingToDAO(booking))
	if err != nil {
		return domain.Booking{}, fmt.Errorf("r.dao.Insert -> %w", err)
	}

	return bookingToDomain(created), nil
}

func (r *BookingRepository) FindByID(ctx context.Context, id uint) (domain.Booking, error) {
	found, err := r.dao.FindByID(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}

	return bookingToDomain(found), nil
}

func (r *BookingRepository) Update(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	updated, err := r.dao.Update(ctx, bookingToDAO(booking))
	if err != nil {
		return domain.Booking{}, fmt.Errorf("r.dao.Update -> %w", err)
	}

	return bookingToDomain(updated), nil
}

func (r *BookingRepository) FindByStatuses(ctx context.Context, statuses []domain.BookingStatus) ([]domain.Booking, error) {
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}

	found, err := r.dao.FindByStatuses(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindByStatuses -> %w", err)
	}

	bookings := make([]domain.Booking, 0, len(found))
	for _, b := range found {
		bookings = append(bookings, bookingToDomain(b))
	}

	return bookings, nil
}

func (r *BookingRepository) FindByParty(ctx context.Context, address string) ([]domain.Booking, error) {
	found, err := r.dao.FindByParty(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindByParty -> %w", err)
	}

	bookings := make([]domain.Booking, 0, len(found))
	for _, b := range found {
		bookings = append(bookings, bookingToDomain(b))
	}

	return bookings, nil
}

func bookingToDAO(b domain.Booking) dao.Booking {
	return dao.Booking{
		ID:              b.ID,
		Buyer:           b.Buyer,
		KOL:             b.KOL,
		PricePerUnit:    b.PricePerUnit,
		UnitCount:       b.UnitCount,
		TotalAmount:     b.TotalAmount,
		FromTime:        b.FromTime,
		ToTime:          b.ToTime,
		Status:          string(b.Status),
		Reason:          b.Reason,
		TicketID:        b.TicketID,
		SessionEndTime:  b.SessionEndTime,
		DisputeReported: b.DisputeReported,
		DisputeReason:   b.DisputeReason,
		Rating:          b.Rating,
		PayoutState:     string(b.PayoutState),
		PayoutTarget:    string(b.PayoutTarget),
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func bookingToDomain(b dao.Booking) domain.Booking {
	return domain.Booking{
		ID:              b.ID,
		Buyer:           b.Buyer,
		KOL:             b.KOL,
		PricePerUnit:    b.PricePerUnit,
		UnitCount:       b.UnitCount,
		TotalAmount:     b.TotalAmount,
		FromTime:        b.FromTime,
		ToTime:          b.ToTime,
		Status:          domain.BookingStatus(b.Status),
		Reason:          b.Reason,
		TicketID:        b.TicketID,
		SessionEndTime:  b.SessionEndTime,
		DisputeReported: b.DisputeReported,
		DisputeReason:   b.DisputeReason,
		Rating:          b.Rating,
		PayoutState:     domain.PayoutState(b.PayoutState),
		PayoutTarget:    domain.BookingStatus(b.PayoutTarget),
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}
