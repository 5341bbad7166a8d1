package dao

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrTicketExists   = errors.New("ticket already minted for booking")
)

type Ticket struct {
	ID        uint `gorm:"primaryKey"`
	BookingID uint `gorm:"uniqueIndex;not null"`

	Owner string `gorm:"not null;index"`
	Buyer string `gorm:"not null"`
	KOL   string `gorm:"column:kol;not null"`

	FromTime time.Time `gorm:"not null"`
	ToTime   time.Time `gorm:"not null"`
	Amount   int64     `gorm:"not null"`
	Reason   string

	MetadataRef string

	Status string `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Ticket) TableName() string {
	return "tickets"
}

type TicketDAO struct {
	db *gorm.DB
}

func NewTicketDAO(db *gorm.DB) *TicketDAO {
	return &TicketDAO{
		db: db,
	}
}

func (d *TicketDAO) Insert(ctx context.Context, ticket Ticket) (Ticket, error) {
	result := d.db.WithContext(ctx).Create(&ticket)
	if result.Error != nil {
		var pgErr *pgconn.PgError
		if errors.As(result.Error, &pgErr) &&
			pgErr.Code == pgerrcode.UniqueViolation &&
			strings.Contains(pgErr.Message, "booking_id") {
			return Ticket{}, ErrTicketExists
		}

		return Ticket{}, result.Error
	}

	return ticket, nil
}

func (d *TicketDAO) FindByID(ctx context.Context, id uint) (Ticket, error) {
	var ticket Ticket
	result := d.db.WithContext(ctx).First(&ticket, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Ticket{}, ErrTicketNotFound
		}

		return Ticket{}, result.Error
	}

	return ticket, nil
}

func (d *TicketDAO) FindByBookingID(ctx context.Context, bookingID uint) (Ticket, error) {
	var ticket Ticket
	result := d.db.WithContext(ctx).Where("booking_id = ?", bookingID).First(&ticket)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Ticket{}, ErrTicketNotFound
		}

		return Ticket{}, result.Error
	}

	return ticket, nil
}

func (d *TicketDAO) Update(ctx context.Context, ticket Ticket) (Ticket, error) {
	if result := d.db.WithContext(ctx).Save(&ticket); result.Error != nil {
		return Ticket{}, result.Error
	}

	return ticket, nil
}
