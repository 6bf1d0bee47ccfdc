package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Property struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID         uuid.UUID       `gorm:"column:owner_id;type:uuid;not null;index"`
	Title           string          `gorm:"column:title;not null"`
	RentAmount      decimal.Decimal `gorm:"column:rent_amount;type:numeric(12,2);not null"`
	SecurityDeposit decimal.Decimal `gorm:"column:security_deposit;type:numeric(12,2);not null;default:0"`
	Status          string          `gorm:"column:status;not null;default:'available'"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
