package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Commission captures the platform cut of a successful payment at the rate
// in force when it was charged.
type Commission struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentID  uuid.UUID       `gorm:"column:payment_id;type:uuid;not null;uniqueIndex"`
	Percentage decimal.Decimal `gorm:"column:percentage;type:numeric(5,2);not null"`
	Amount     decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}
