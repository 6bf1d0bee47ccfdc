package tokens

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentpay-backend/pkg/db/models"
	"github.com/angelmondragon/rentpay-backend/pkg/enums"
)

// Repository handles card token persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	DisableAll(ctx context.Context, customerID uuid.UUID) (int64, error)
	Create(ctx context.Context, token *models.CardToken) error
	FindActive(ctx context.Context, customerID uuid.UUID) (*models.CardToken, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.CardToken, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a token repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) DisableAll(ctx context.Context, customerID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CardToken{}).
		Where("customer_id = ? AND status = ?", customerID, enums.CardTokenStatusActive).
		Updates(map[string]any{"status": enums.CardTokenStatusDisabled})
	return res.RowsAffected, res.Error
}

func (r *repository) Create(ctx context.Context, token *models.CardToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *repository) FindActive(ctx context.Context, customerID uuid.UUID) (*models.CardToken, error) {
	var token models.CardToken
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND status = ?", customerID, enums.CardTokenStatusActive).
		Order("created_at DESC").
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

func (r *repository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.CardToken, error) {
	var tokens []models.CardToken
	if err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}
