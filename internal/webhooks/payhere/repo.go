package payherewebhook

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentpay-backend/pkg/db/models"
	"github.com/angelmondragon/rentpay-backend/pkg/enums"
)

// Repository reads properties and confirms bookings for one-time rental
// payments.
type Repository interface {
	FindProperty(ctx context.Context, id uuid.UUID) (*models.Property, error)
	ConfirmPendingBookingWithTx(ctx context.Context, tx *gorm.DB, customerID, propertyID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindProperty(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	var property models.Property
	if err := r.db.WithContext(ctx).First(&property, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &property, nil
}

func (r *repository) ConfirmPendingBookingWithTx(ctx context.Context, tx *gorm.DB, customerID, propertyID uuid.UUID) (int64, error) {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	res := conn.WithContext(ctx).
		Model(&models.Booking{}).
		Where("customer_id = ? AND property_id = ? AND status = ?", customerID, propertyID, enums.BookingStatusPending).
		Update("status", enums.BookingStatusConfirmed)
	return res.RowsAffected, res.Error
}
