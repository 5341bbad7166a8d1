package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrBookingNotFound = errors.New("booking not found")

type Booking struct {
	ID uint `gorm:"primaryKey"`

	Buyer string `gorm:"not null;index"`
	KOL   string `gorm:"column:kol;not null;index"`

	PricePerUnit int64 `gorm:"not null"`
	UnitCount    int64 `gorm:"not null"`
	TotalAmount  int64 `gorm:"not null"`

	FromTime time.Time `gorm:"not null"`
	ToTime   time.Time `gorm:"not null"`

	Status string `gorm:"not null;index"`
	Reason string

	TicketID uint

	SessionEndTime  *time.Time
	DisputeReported bool `gorm:"not null;default:false"`
	DisputeReason   string
	Rating          *int

	PayoutState  string
	PayoutTarget string

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Booking) TableName() string {
	return "bookings"
}

type BookingDAO struct {
	db *gorm.DB
}

func NewBookingDAO(db *gorm.DB) *BookingDAO {
	return &BookingDAO{
		db: db,
	}
}

func (d *BookingDAO) Insert(ctx context.Context, booking Booking) (Booking, error) {
	if result := d.db.WithContext(ctx).Create(&booking); result.Error != nil {
		return Booking{}, result.Error
	}

	return booking, nil
}

func (d *BookingDAO) FindByID(ctx context.Context, id uint) (Booking, error) {
	var booking Booking
	result := d.db.WithContext(ctx).First(&booking, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Booking{}, ErrBookingNotFound
		}

		return Booking{}, result.Error
	}

	return booking, nil
}

func (d *BookingDAO) Update(ctx context.Context, booking Booking) (Booking, error) {
	if result := d.db.WithContext(ctx).Save(&booking); result.Error != nil {
		return Booking{}, result.Error
	}

	return booking, nil
}

func (d *BookingDAO) FindByStatuses(ctx context.Context, statuses []string) ([]Booking, error) {
	var bookings []Booking
	result := d.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("id ASC").
		Find(&bookings)
	if result.Error != nil {
		return nil, result.Error
	}

	return bookings, nil
}

func (d *BookingDAO) FindByParty(ctx context.Context, address string) ([]Booking, error) {
	var bookings []Booking
	result := d.db.WithContext(ctx).
		Where("buyer = ? OR kol = ?", address, address).
		Order("id DESC").
		Find(&bookings)
	if result.Error != nil {
		return nil, result.Error
	}

	return bookings, nil
}
