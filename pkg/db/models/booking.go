package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/rentpay-backend/pkg/enums"
)

type Booking struct {
	ID         uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	PropertyID uuid.UUID           `gorm:"column:property_id;type:uuid;not null;index"`
	Status     enums.BookingStatus `gorm:"column:status;type:booking_status;not null;default:'pending'"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
