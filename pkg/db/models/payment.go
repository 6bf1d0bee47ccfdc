package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/rentpay-backend/pkg/enums"
)

// Payment records one money movement. For successful rows
// Amount == Commission + OwnerPayout.
type Payment struct {
	ID               uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID       uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	PropertyID       uuid.UUID           `gorm:"column:property_id;type:uuid;not null;index"`
	OwnerID          uuid.UUID           `gorm:"column:owner_id;type:uuid;not null"`
	TokenID          *uuid.UUID          `gorm:"column:token_id;type:uuid"`
	Type             enums.PaymentType   `gorm:"column:type;type:payment_type;not null"`
	Amount           decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Commission       decimal.Decimal     `gorm:"column:commission;type:numeric(12,2);not null;default:0"`
	OwnerPayout      decimal.Decimal     `gorm:"column:owner_payout;type:numeric(12,2);not null;default:0"`
	Currency         string              `gorm:"column:currency;not null;default:'LKR'"`
	GatewayPaymentID *string             `gorm:"column:gateway_payment_id"`
	Status           enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	GatewayResponse  json.RawMessage     `gorm:"column:gateway_response;type:jsonb"`
	DueDate          *time.Time          `gorm:"column:due_date;type:date"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
