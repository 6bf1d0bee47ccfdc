package tokens

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentpay-backend/pkg/db"
	"github.com/angelmondragon/rentpay-backend/pkg/db/models"
	"github.com/angelmondragon/rentpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rentpay-backend/pkg/errors"
	"github.com/angelmondragon/rentpay-backend/pkg/logger"
)

const activeTokenIndex = "card_tokens_one_active_per_customer"

// Service owns the card token lifecycle. A customer has at most one active
// token; issuing a new one disables the rest in the same transaction.
type Service interface {
	IssueToken(ctx context.Context, input IssueTokenInput) (*models.CardToken, error)
	GetActiveToken(ctx context.Context, customerID uuid.UUID) (*models.CardToken, error)
	ListTokens(ctx context.Context, customerID uuid.UUID) ([]models.CardToken, error)
}

type IssueTokenInput struct {
	CustomerID     uuid.UUID
	GatewayToken   string
	CardLast4      string
	CardBrand      string
	CardHolderName string
}

type ServiceParams struct {
	Repo     Repository
	TxRunner db.TxRunner
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	repo Repository
	tx   db.TxRunner
	log  *logger.Logger
	now  func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("token repository required")
	}
	if params.TxRunner == nil {
		return nil, errors.New("transaction runner required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: params.Repo, tx: params.TxRunner, log: params.Logger, now: now}, nil
}

func (s *service) IssueToken(ctx context.Context, input IssueTokenInput) (*models.CardToken, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	gatewayToken := strings.TrimSpace(input.GatewayToken)
	if gatewayToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway token is required")
	}

	var issued *models.CardToken
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := repo.FindActive(ctx, input.CustomerID)
		if err != nil {
			return err
		}
		if current != nil && current.GatewayToken == gatewayToken {
			issued = current
			return nil
		}

		disabled, err := repo.DisableAll(ctx, input.CustomerID)
		if err != nil {
			return err
		}

		token := &models.CardToken{
			ID:             uuid.New(),
			CustomerID:     input.CustomerID,
			GatewayToken:   gatewayToken,
			CardLast4:      strings.TrimSpace(input.CardLast4),
			CardBrand:      strings.TrimSpace(input.CardBrand),
			CardHolderName: strings.TrimSpace(input.CardHolderName),
			Status:         enums.CardTokenStatusActive,
			CreatedAt:      s.now().UTC(),
		}
		if err := repo.Create(ctx, token); err != nil {
			return err
		}

		if s.log != nil && disabled > 0 {
			logCtx := s.log.WithCustomerID(ctx, input.CustomerID.String())
			s.log.Info(s.log.WithField(logCtx, "disabled_tokens", disabled), "previous card tokens disabled")
		}
		issued = token
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, activeTokenIndex) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "concurrent token issuance for customer")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "issue card token")
	}
	return issued, nil
}

// GetActiveToken returns nil, nil when the customer has no active token.
func (s *service) GetActiveToken(ctx context.Context, customerID uuid.UUID) (*models.CardToken, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	token, err := s.repo.FindActive(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load active card token")
	}
	return token, nil
}

func (s *service) ListTokens(ctx context.Context, customerID uuid.UUID) ([]models.CardToken, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	tokens, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "list card tokens")
	}
	return tokens, nil
}
