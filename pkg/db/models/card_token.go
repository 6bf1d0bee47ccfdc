package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/rentpay-backend/pkg/enums"
)

// CardToken is a customer's stored card at the gateway. Rows are disabled,
// never deleted.
type CardToken struct {
	ID             uuid.UUID             `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID     uuid.UUID             `gorm:"column:customer_id;type:uuid;not null;index"`
	GatewayToken   string                `gorm:"column:gateway_token;not null"`
	CardLast4      string                `gorm:"column:card_last4"`
	CardBrand      string                `gorm:"column:card_brand"`
	CardHolderName string                `gorm:"column:card_holder_name"`
	Status         enums.CardTokenStatus `gorm:"column:status;type:card_token_status;not null;default:'active'"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
