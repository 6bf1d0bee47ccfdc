package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentpay-backend/pkg/db"
	"github.com/angelmondragon/rentpay-backend/pkg/db/models"
	"github.com/angelmondragon/rentpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rentpay-backend/pkg/errors"
	"github.com/angelmondragon/rentpay-backend/pkg/logger"
)

// Service records money movements.
type Service interface {
	RecordSuccessfulCharge(ctx context.Context, input ChargeInput) (*models.Payment, error)
	RecordSuccessfulChargeWithTx(ctx context.Context, tx *gorm.DB, input ChargeInput) (*models.Payment, error)
	RecordFailedCharge(ctx context.Context, input FailedChargeInput) (*models.Payment, error)
	FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*models.Payment, error)
}

// ChargeInput describes a charge the gateway already accepted.
type ChargeInput struct {
	CustomerID           uuid.UUID
	PropertyID           uuid.UUID
	OwnerID              uuid.UUID
	TokenID              *uuid.UUID
	Type                 enums.PaymentType
	Amount               decimal.Decimal
	Currency             string
	CommissionPercentage decimal.Decimal
	GatewayPaymentID     string
	GatewayResponse      json.RawMessage
	DueDate              *time.Time
}

// FailedChargeInput describes a charge the gateway answered with a decline.
type FailedChargeInput struct {
	CustomerID      uuid.UUID
	PropertyID      uuid.UUID
	OwnerID         uuid.UUID
	TokenID         *uuid.UUID
	Amount          decimal.Decimal
	Currency        string
	Message         string
	GatewayResponse json.RawMessage
	DueDate         *time.Time
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
		return nil, errors.New("ledger repository required")
	}
	if params.TxRunner == nil {
		return nil, errors.New("transaction runner required")
	}
	log := params.Logger
	if log == nil {
		log = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: params.Repo, tx: params.TxRunner, log: log, now: now}, nil
}

// RecordSuccessfulCharge writes the payment and commission in one transaction.
// A storage failure here means the gateway holds money the ledger does not
// know about; it is logged at critical level and must not be retried blindly.
func (s *service) RecordSuccessfulCharge(ctx context.Context, input ChargeInput) (*models.Payment, error) {
	if err := validateCharge(input); err != nil {
		return nil, err
	}

	var payment *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		payment, err = s.record(ctx, s.repo.WithTx(tx), input)
		return err
	})
	if err != nil {
		logCtx := s.log.WithFields(ctx, map[string]any{
			"customer_id":        input.CustomerID.String(),
			"property_id":        input.PropertyID.String(),
			"gateway_payment_id": input.GatewayPaymentID,
			"amount":             input.Amount.StringFixed(2),
		})
		s.log.Critical(logCtx, "charged at gateway but not recorded", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "charged at gateway but not recorded")
	}
	return payment, nil
}

// RecordSuccessfulChargeWithTx joins a caller-owned transaction so the payment
// can commit together with other state, e.g. a booking confirmation.
func (s *service) RecordSuccessfulChargeWithTx(ctx context.Context, tx *gorm.DB, input ChargeInput) (*models.Payment, error) {
	if err := validateCharge(input); err != nil {
		return nil, err
	}
	payment, err := s.record(ctx, s.repo.WithTx(tx), input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "record payment")
	}
	return payment, nil
}

func (s *service) record(ctx context.Context, repo Repository, input ChargeInput) (*models.Payment, error) {
	split := ComputeSplit(input.Amount, input.CommissionPercentage)
	createdAt := s.now().UTC()

	gatewayID := strings.TrimSpace(input.GatewayPaymentID)
	payment := &models.Payment{
		ID:               uuid.New(),
		CustomerID:       input.CustomerID,
		PropertyID:       input.PropertyID,
		OwnerID:          input.OwnerID,
		TokenID:          input.TokenID,
		Type:             input.Type,
		Amount:           input.Amount,
		Commission:       split.Commission,
		OwnerPayout:      split.OwnerPayout,
		Currency:         input.Currency,
		GatewayPaymentID: &gatewayID,
		Status:           enums.PaymentStatusSuccessful,
		GatewayResponse:  input.GatewayResponse,
		DueDate:          input.DueDate,
		CreatedAt:        createdAt,
	}
	if err := repo.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}

	commission := &models.Commission{
		ID:         uuid.New(),
		PaymentID:  payment.ID,
		Percentage: input.CommissionPercentage,
		Amount:     split.Commission,
		CreatedAt:  createdAt,
	}
	if err := repo.CreateCommission(ctx, commission); err != nil {
		return nil, fmt.Errorf("insert commission: %w", err)
	}
	return payment, nil
}

// RecordFailedCharge keeps an audit row for a declined charge. Attempts that
// never reached the gateway are only logged, never recorded.
func (s *service) RecordFailedCharge(ctx context.Context, input FailedChargeInput) (*models.Payment, error) {
	if input.CustomerID == uuid.Nil || input.PropertyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer and property ids are required")
	}

	response := input.GatewayResponse
	if len(response) == 0 {
		response, _ = json.Marshal(map[string]string{"message": input.Message})
	}

	payment := &models.Payment{
		ID:              uuid.New(),
		CustomerID:      input.CustomerID,
		PropertyID:      input.PropertyID,
		OwnerID:         input.OwnerID,
		TokenID:         input.TokenID,
		Type:            enums.PaymentTypeRecurring,
		Amount:          input.Amount,
		Commission:      decimal.Zero,
		OwnerPayout:     decimal.Zero,
		Currency:        input.Currency,
		Status:          enums.PaymentStatusFailed,
		GatewayResponse: response,
		DueDate:         input.DueDate,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "record failed charge")
	}
	return payment, nil
}

// FindByGatewayPaymentID returns nil, nil when no payment carries the id.
func (s *service) FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*models.Payment, error) {
	trimmed := strings.TrimSpace(gatewayPaymentID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway payment id is required")
	}
	payment, err := s.repo.FindPaymentByGatewayID(ctx, trimmed)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "find payment by gateway id")
	}
	return payment, nil
}

func validateCharge(input ChargeInput) error {
	switch {
	case input.CustomerID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	case input.PropertyID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "property id is required")
	case input.OwnerID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	case !input.Type.IsValid():
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment type %q", input.Type))
	case !input.Amount.IsPositive():
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	case input.CommissionPercentage.IsNegative() || input.CommissionPercentage.GreaterThan(hundred):
		return pkgerrors.New(pkgerrors.CodeValidation, "commission percentage must be between 0 and 100")
	case strings.TrimSpace(input.GatewayPaymentID) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway payment id is required")
	case strings.TrimSpace(input.Currency) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "currency is required")
	}
	return nil
}
