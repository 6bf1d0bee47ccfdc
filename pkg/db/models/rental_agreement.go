package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/rentpay-backend/pkg/enums"
)

// RentalAgreement is one tenancy. The billing sweep only reads it.
type RentalAgreement struct {
	ID             uuid.UUID             `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID     uuid.UUID             `gorm:"column:customer_id;type:uuid;not null;index"`
	PropertyID     uuid.UUID             `gorm:"column:property_id;type:uuid;not null;index"`
	MonthlyRent    decimal.Decimal       `gorm:"column:monthly_rent;type:numeric(12,2);not null"`
	LeaseStartDate time.Time             `gorm:"column:lease_start_date;type:date;not null"`
	LeaseEndDate   time.Time             `gorm:"column:lease_end_date;type:date;not null"`
	Status         enums.AgreementStatus `gorm:"column:status;type:agreement_status;not null;default:'pending'"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
