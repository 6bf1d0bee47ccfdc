package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/rentpay-backend/pkg/enums"
)

// User is the shared identity row for admins, owners and customers.
type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Role      enums.UserRole `gorm:"column:role;type:user_role;not null"`
	Name      string         `gorm:"column:name;not null"`
	Email     string         `gorm:"column:email;type:text;not null;uniqueIndex"`
	Phone     *string        `gorm:"column:phone"`
	Address   *string        `gorm:"column:address"`
	City      *string        `gorm:"column:city"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
