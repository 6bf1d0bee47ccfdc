package payherewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentpay-backend/internal/ledger"
	"github.com/angelmondragon/rentpay-backend/internal/tokens"
	"github.com/angelmondragon/rentpay-backend/pkg/db"
	"github.com/angelmondragon/rentpay-backend/pkg/db/models"
	"github.com/angelmondragon/rentpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rentpay-backend/pkg/errors"
	"github.com/angelmondragon/rentpay-backend/pkg/logger"
	"github.com/angelmondragon/rentpay-backend/pkg/metrics"
	"github.com/angelmondragon/rentpay-backend/pkg/payhere"
)

// Outcome describes what a notification did.
type Outcome string

const (
	OutcomeIgnored        Outcome = "ignored"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeAcknowledged   Outcome = "acknowledged"
	OutcomeTokenIssued    Outcome = "token_issued"
	OutcomeRentalRecorded Outcome = "rental_recorded"
)

type ConfigSource interface {
	Load(ctx context.Context) (payhere.Config, error)
}

type TokenIssuer interface {
	IssueToken(ctx context.Context, input tokens.IssueTokenInput) (*models.CardToken, error)
}

type PaymentLedger interface {
	FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*models.Payment, error)
	RecordSuccessfulChargeWithTx(ctx context.Context, tx *gorm.DB, input ledger.ChargeInput) (*models.Payment, error)
}

type Guard interface {
	CheckAndMark(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

type ServiceParams struct {
	Settings ConfigSource
	Tokens   TokenIssuer
	Ledger   PaymentLedger
	Repo     Repository
	TxRunner db.TxRunner
	Guard    Guard
	Metrics  *metrics.PaymentMetrics
	Logger   *logger.Logger
}

// Service turns verified IPN callbacks into card tokens and rental payments.
type Service struct {
	settings ConfigSource
	tokens   TokenIssuer
	ledger   PaymentLedger
	repo     Repository
	txRunner db.TxRunner
	guard    Guard
	metrics  *metrics.PaymentMetrics
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Settings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "settings source required")
	}
	if params.Tokens == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "token issuer required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "repository required")
	}
	if params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		settings: params.Settings,
		tokens:   params.Tokens,
		ledger:   params.Ledger,
		repo:     params.Repo,
		txRunner: params.TxRunner,
		guard:    params.Guard,
		metrics:  params.Metrics,
		logg:     logg,
	}, nil
}

// HandleNotification verifies and applies one IPN. Unverifiable payloads are
// reported as OutcomeIgnored with a nil error and never touch state. An error
// means the gateway should retry.
func (s *Service) HandleNotification(ctx context.Context, values url.Values) (outcome Outcome, err error) {
	defer func() {
		if err != nil {
			s.metrics.IncNotification("error")
			return
		}
		s.metrics.IncNotification(string(outcome))
	}()

	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return "", err
	}

	n := payhere.ParseNotification(values)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"event":       "payhere.notify",
		"order_id":    n.OrderID,
		"status_code": n.StatusCode,
	})

	if !payhere.VerifyNotification(values, cfg.MerchantSecret) {
		s.logg.Warn(logCtx, "payhere notification failed verification")
		return OutcomeIgnored, nil
	}
	if n.MerchantID != cfg.MerchantID {
		s.logg.Warn(s.logg.WithField(logCtx, "merchant_id", n.MerchantID), "payhere notification for another merchant")
		return OutcomeIgnored, nil
	}

	guardKey := n.OrderID + ":" + n.StatusCode
	if s.guard != nil {
		seen, guardErr := s.guard.CheckAndMark(logCtx, guardKey)
		if guardErr != nil {
			s.logg.Warn(s.logg.WithField(logCtx, "error", guardErr.Error()), "idempotency guard unavailable; processing anyway")
		} else if seen {
			s.logg.Info(logCtx, "duplicate payhere notification")
			return OutcomeDuplicate, nil
		}
	}

	outcome, err = s.apply(logCtx, cfg, n)
	if err != nil && s.guard != nil {
		if delErr := s.guard.Delete(logCtx, guardKey); delErr != nil {
			s.logg.Warn(s.logg.WithField(logCtx, "error", delErr.Error()), "failed to release idempotency key")
		}
	}
	return outcome, err
}

func (s *Service) apply(ctx context.Context, cfg payhere.Config, n payhere.Notification) (Outcome, error) {
	if !n.IsSuccess() {
		msgCtx := s.logg.WithField(ctx, "status_message", n.StatusMessage)
		s.logg.Info(msgCtx, "non-success payhere notification acknowledged")
		return OutcomeAcknowledged, nil
	}

	switch {
	case strings.HasPrefix(n.OrderID, payhere.OrderPrefixToken):
		return s.issueToken(ctx, n)
	case strings.HasPrefix(n.OrderID, payhere.OrderPrefixRental):
		return s.recordRental(ctx, cfg, n)
	default:
		s.logg.Warn(ctx, "payhere notification with unknown order prefix")
		return OutcomeAcknowledged, nil
	}
}

func (s *Service) issueToken(ctx context.Context, n payhere.Notification) (Outcome, error) {
	customerID, err := customerFromTokenOrder(n.OrderID)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "tokenization order id is malformed")
		return OutcomeIgnored, nil
	}
	if n.CustomerToken == "" {
		s.logg.Warn(ctx, "tokenization notification without customer token")
		return OutcomeIgnored, nil
	}

	token, err := s.tokens.IssueToken(ctx, tokens.IssueTokenInput{
		CustomerID:     customerID,
		GatewayToken:   n.CustomerToken,
		CardLast4:      n.CardLast4(),
		CardBrand:      n.Method,
		CardHolderName: n.CardHolderName,
	})
	if err != nil {
		s.logg.Error(s.logg.WithCustomerID(ctx, customerID.String()), "issue card token", err)
		return "", err
	}
	tokenCtx := s.logg.WithCustomerID(ctx, customerID.String())
	s.logg.Info(s.logg.WithField(tokenCtx, "card_token_id", token.ID.String()), "card token issued")
	return OutcomeTokenIssued, nil
}

func (s *Service) recordRental(ctx context.Context, cfg payhere.Config, n payhere.Notification) (Outcome, error) {
	customerID, propertyID, err := rentalParties(n)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "rental notification cannot be correlated")
		return OutcomeIgnored, nil
	}
	rowCtx := s.logg.WithCustomerID(ctx, customerID.String())
	rowCtx = s.logg.WithPropertyID(rowCtx, propertyID.String())

	amount, err := decimal.NewFromString(n.Amount)
	if err != nil || !amount.IsPositive() {
		s.logg.Warn(rowCtx, "rental notification amount is invalid")
		return OutcomeIgnored, nil
	}

	gatewayPaymentID := n.PaymentID
	if gatewayPaymentID == "" {
		gatewayPaymentID = n.OrderID
	}
	existing, err := s.ledger.FindByGatewayPaymentID(rowCtx, gatewayPaymentID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		s.logg.Info(rowCtx, "rental payment already recorded")
		return OutcomeDuplicate, nil
	}

	property, err := s.repo.FindProperty(rowCtx, propertyID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load property")
	}
	if property == nil {
		s.logg.Warn(rowCtx, "rental notification for unknown property")
		return OutcomeIgnored, nil
	}

	raw, _ := json.Marshal(notificationAudit(n))
	var confirmed int64
	err = s.txRunner.WithTx(rowCtx, func(tx *gorm.DB) error {
		if _, err := s.ledger.RecordSuccessfulChargeWithTx(rowCtx, tx, ledger.ChargeInput{
			CustomerID:           customerID,
			PropertyID:           propertyID,
			OwnerID:              property.OwnerID,
			Type:                 enums.PaymentTypeRental,
			Amount:               amount,
			Currency:             firstNonEmpty(n.Currency, cfg.Currency),
			CommissionPercentage: cfg.CommissionPercentage,
			GatewayPaymentID:     gatewayPaymentID,
			GatewayResponse:      raw,
		}); err != nil {
			return err
		}
		rows, err := s.repo.ConfirmPendingBookingWithTx(rowCtx, tx, customerID, propertyID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "confirm booking")
		}
		confirmed = rows
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			s.logg.Info(rowCtx, "rental payment recorded by a concurrent delivery")
			return OutcomeDuplicate, nil
		}
		s.logg.Critical(s.logg.WithField(rowCtx, "gateway_payment_id", gatewayPaymentID), "rental payment captured but not recorded", err)
		return "", err
	}

	s.logg.Info(s.logg.WithField(rowCtx, "bookings_confirmed", confirmed), "rental payment recorded")
	return OutcomeRentalRecorded, nil
}

// customerFromTokenOrder parses TOKEN_<customer>_<unix>.
func customerFromTokenOrder(orderID string) (uuid.UUID, error) {
	rest := strings.TrimPrefix(orderID, payhere.OrderPrefixToken)
	idx := strings.LastIndex(rest, "_")
	if idx <= 0 {
		return uuid.Nil, fmt.Errorf("order id %q has no customer segment", orderID)
	}
	return uuid.Parse(rest[:idx])
}

// rentalParties prefers the custom fields and falls back to
// RENTAL_<customer>_<property>_<unix>.
func rentalParties(n payhere.Notification) (uuid.UUID, uuid.UUID, error) {
	if n.Custom1 != "" && n.Custom2 != "" {
		propertyID, err := uuid.Parse(n.Custom1)
		if err != nil {
			return uuid.Nil, uuid.Nil, fmt.Errorf("custom_1: %w", err)
		}
		customerID, err := uuid.Parse(n.Custom2)
		if err != nil {
			return uuid.Nil, uuid.Nil, fmt.Errorf("custom_2: %w", err)
		}
		return customerID, propertyID, nil
	}

	parts := strings.Split(strings.TrimPrefix(n.OrderID, payhere.OrderPrefixRental), "_")
	if len(parts) != 3 {
		return uuid.Nil, uuid.Nil, errors.New("rental order id is malformed")
	}
	customerID, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	propertyID, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return customerID, propertyID, nil
}

// notificationAudit keeps the payload minus the signature and card number.
func notificationAudit(n payhere.Notification) map[string]string {
	return map[string]string{
		"order_id":         n.OrderID,
		"payment_id":       n.PaymentID,
		"payhere_amount":   n.Amount,
		"payhere_currency": n.Currency,
		"status_code":      n.StatusCode,
		"status_message":   n.StatusMessage,
		"method":           n.Method,
		"card_last4":       n.CardLast4(),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
