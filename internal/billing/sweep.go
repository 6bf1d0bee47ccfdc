package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/rentpay-backend/internal/ledger"
	"github.com/angelmondragon/rentpay-backend/pkg/db/models"
	"github.com/angelmondragon/rentpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rentpay-backend/pkg/errors"
	"github.com/angelmondragon/rentpay-backend/pkg/logger"
	"github.com/angelmondragon/rentpay-backend/pkg/metrics"
	"github.com/angelmondragon/rentpay-backend/pkg/payhere"
)

const (
	defaultChargeTimeout = 30 * time.Second

	reasonNoToken       = "no active token"
	reasonAuthorization = "authorization unavailable"
	reasonLockFailed    = "billing period lock unavailable"
	reasonTokenLookup   = "token lookup failed"
	reasonPaidCheck     = "billing period check failed"
	reasonUnrecorded    = "charged at gateway but not recorded"
)

// ConfigSource yields one gateway settings snapshot per call.
type ConfigSource interface {
	Load(ctx context.Context) (payhere.Config, error)
}

// TokenSource resolves the card a customer is billed against.
type TokenSource interface {
	GetActiveToken(ctx context.Context, customerID uuid.UUID) (*models.CardToken, error)
}

// Gateway is the merchant API surface the sweep drives.
type Gateway interface {
	AccessToken(ctx context.Context, cfg payhere.Config) (*payhere.Credential, error)
	Charge(ctx context.Context, cfg payhere.Config, accessToken string, req payhere.ChargeRequest) (*payhere.ChargeResult, error)
}

// Ledger records charge outcomes.
type Ledger interface {
	RecordSuccessfulCharge(ctx context.Context, input ledger.ChargeInput) (*models.Payment, error)
	RecordFailedCharge(ctx context.Context, input ledger.FailedChargeInput) (*models.Payment, error)
}

// RowError explains why one agreement was not charged.
type RowError struct {
	AgreementID uuid.UUID `json:"agreement_id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	PropertyID  uuid.UUID `json:"property_id"`
	Outcome     string    `json:"outcome"`
	Reason      string    `json:"reason"`
}

// Summary is the result of one sweep run.
type Summary struct {
	Period         string     `json:"period"`
	ProcessedCount int        `json:"processed_count"`
	FailedCount    int        `json:"failed_count"`
	SkippedCount   int        `json:"skipped_count"`
	Errors         []RowError `json:"errors"`
}

type SweepParams struct {
	Repo          Repository
	Tokens        TokenSource
	Ledger        Ledger
	Gateway       Gateway
	Settings      ConfigSource
	PeriodLock    PeriodLock
	Metrics       *metrics.PaymentMetrics
	Logger        *logger.Logger
	ChargeTimeout time.Duration
	Now           func() time.Time
}

// Sweep charges every agreement due for the current month exactly once.
// Rows are processed sequentially and a failing row never stops the run.
type Sweep struct {
	repo          Repository
	tokens        TokenSource
	ledger        Ledger
	gateway       Gateway
	settings      ConfigSource
	lock          PeriodLock
	metrics       *metrics.PaymentMetrics
	logg          *logger.Logger
	chargeTimeout time.Duration
	now           func() time.Time
}

func NewSweep(params SweepParams) (*Sweep, error) {
	if params.Repo == nil {
		return nil, errors.New("billing repository required")
	}
	if params.Tokens == nil {
		return nil, errors.New("token source required")
	}
	if params.Ledger == nil {
		return nil, errors.New("ledger required")
	}
	if params.Gateway == nil {
		return nil, errors.New("gateway client required")
	}
	if params.Settings == nil {
		return nil, errors.New("settings source required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	timeout := params.ChargeTimeout
	if timeout <= 0 {
		timeout = defaultChargeTimeout
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Sweep{
		repo:          params.Repo,
		tokens:        params.Tokens,
		ledger:        params.Ledger,
		gateway:       params.Gateway,
		settings:      params.Settings,
		lock:          params.PeriodLock,
		metrics:       params.Metrics,
		logg:          logg,
		chargeTimeout: timeout,
		now:           now,
	}, nil
}

// run holds the state shared by the rows of one sweep invocation.
type run struct {
	cfg        payhere.Config
	credential *payhere.Credential
	authErr    error
	start      time.Time
	next       time.Time
	period     string
	dueDate    time.Time
	summary    *Summary
}

// Run executes one sweep. Only configuration or listing failures return an
// error; per-row failures are reported in the summary.
func (s *Sweep) Run(ctx context.Context) (*Summary, error) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateRecurring(); err != nil {
		return nil, err
	}

	today, start, next := PeriodBounds(s.now())
	period := PeriodLabel(start)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"event":  "billing.sweep",
		"period": period,
		"mode":   cfg.Mode.String(),
	})

	due, err := s.repo.ListDueAgreements(logCtx, today, start, next)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "list due agreements")
	}

	state := &run{
		cfg:     cfg,
		start:   start,
		next:    next,
		period:  period,
		dueDate: start,
		summary: &Summary{Period: period, Errors: []RowError{}},
	}
	for i := range due {
		if ctx.Err() != nil {
			s.logg.Warn(s.logg.WithField(logCtx, "remaining", len(due)-i), "billing sweep interrupted; remaining rows left for the next run")
			break
		}
		s.processRow(logCtx, state, due[i])
	}

	summary := state.summary
	s.metrics.SetSweepRows(summary.ProcessedCount, summary.FailedCount, summary.SkippedCount)
	reportCtx := s.logg.WithFields(logCtx, map[string]any{
		"candidates": len(due),
		"processed":  summary.ProcessedCount,
		"failed":     summary.FailedCount,
		"skipped":    summary.SkippedCount,
	})
	s.logg.Info(reportCtx, "billing sweep complete")
	return summary, nil
}

func (s *Sweep) processRow(ctx context.Context, state *run, row DueAgreement) {
	rowCtx := s.logg.WithAgreementID(ctx, row.AgreementID.String())
	rowCtx = s.logg.WithCustomerID(rowCtx, row.CustomerID.String())
	rowCtx = s.logg.WithPropertyID(rowCtx, row.PropertyID.String())

	key := PeriodKey{CustomerID: row.CustomerID, PropertyID: row.PropertyID, Period: state.period}
	if s.lock != nil {
		acquired, err := s.lock.Acquire(rowCtx, key)
		if err != nil {
			s.logg.Error(rowCtx, "billing period lock failed", err)
			s.fail(state, row, metrics.OutcomeLocked, reasonLockFailed)
			return
		}
		if !acquired {
			s.logg.Info(rowCtx, "billing period locked by another sweep; skipping")
			state.summary.SkippedCount++
			s.metrics.IncCharge(metrics.OutcomeLocked)
			return
		}
	}

	pinned := false
	paid, err := s.repo.HasSuccessfulPayment(rowCtx, row.CustomerID, row.PropertyID, state.start, state.next)
	switch {
	case err != nil:
		s.logg.Error(rowCtx, "re-check billing period", err)
		s.fail(state, row, metrics.OutcomeStorageError, reasonPaidCheck)
	case paid:
		s.logg.Info(rowCtx, "billing period already paid by a concurrent sweep; skipping")
		state.summary.SkippedCount++
		s.metrics.IncCharge(metrics.OutcomeAlreadyPaid)
	default:
		pinned = s.chargeRow(rowCtx, state, row)
	}

	if s.lock != nil && !pinned {
		// Release outlives caller cancellation.
		if err := s.lock.Release(context.WithoutCancel(rowCtx), key); err != nil {
			s.logg.Warn(s.logg.WithField(rowCtx, "error", err.Error()), "billing period lock release failed")
		}
	}
}

// chargeRow reports whether the period lock was pinned.
func (s *Sweep) chargeRow(ctx context.Context, state *run, row DueAgreement) bool {
	token, err := s.tokens.GetActiveToken(ctx, row.CustomerID)
	if err != nil {
		s.logg.Error(ctx, "resolve active card token", err)
		s.fail(state, row, metrics.OutcomeTokenLookup, reasonTokenLookup)
		return false
	}
	if token == nil {
		s.logg.Warn(ctx, "customer has no active card token")
		s.fail(state, row, metrics.OutcomeNoToken, reasonNoToken)
		return false
	}

	credential, err := s.credential(ctx, state)
	if err != nil {
		s.fail(state, row, metrics.OutcomeAuthUnavailable, reasonAuthorization)
		return false
	}

	paymentID := fmt.Sprintf("REC_%s_%s_%d", row.CustomerID, row.PropertyID, s.now().Unix())
	chargeCtx, cancel := context.WithTimeout(ctx, s.chargeTimeout)
	started := time.Now()
	result, err := s.gateway.Charge(chargeCtx, state.cfg, credential.AccessToken, payhere.ChargeRequest{
		Token:     token.GatewayToken,
		Amount:    row.MonthlyRent,
		Currency:  state.cfg.Currency,
		PaymentID: paymentID,
	})
	cancel()
	s.metrics.ObserveCharge(time.Since(started))

	// The request has been sent. Recording its outcome and pinning the period
	// must finish even if the caller is cancelled.
	chargeCtx = s.logg.WithField(context.WithoutCancel(ctx), "payment_id", paymentID)
	if err != nil {
		s.logg.Error(chargeCtx, "recurring charge transport failure", err)
		s.fail(state, row, metrics.OutcomeTransportError, err.Error())
		return false
	}

	if !result.Success {
		s.logg.Warn(s.logg.WithField(chargeCtx, "gateway_message", result.Message), "recurring charge declined")
		s.fail(state, row, metrics.OutcomeDeclined, result.Message)
		dueDate := state.dueDate
		if _, err := s.ledger.RecordFailedCharge(chargeCtx, ledger.FailedChargeInput{
			CustomerID:      row.CustomerID,
			PropertyID:      row.PropertyID,
			OwnerID:         row.OwnerID,
			TokenID:         &token.ID,
			Amount:          row.MonthlyRent,
			Currency:        state.cfg.Currency,
			Message:         result.Message,
			GatewayResponse: result.Raw,
			DueDate:         &dueDate,
		}); err != nil {
			s.logg.Error(chargeCtx, "record declined charge", err)
		}
		return false
	}

	dueDate := state.dueDate
	tokenID := token.ID
	_, err = s.ledger.RecordSuccessfulCharge(chargeCtx, ledger.ChargeInput{
		CustomerID:           row.CustomerID,
		PropertyID:           row.PropertyID,
		OwnerID:              row.OwnerID,
		TokenID:              &tokenID,
		Type:                 enums.PaymentTypeRecurring,
		Amount:               row.MonthlyRent,
		Currency:             state.cfg.Currency,
		CommissionPercentage: state.cfg.CommissionPercentage,
		GatewayPaymentID:     gatewayPaymentID(result, paymentID),
		GatewayResponse:      result.Raw,
		DueDate:              &dueDate,
	})
	if err != nil {
		s.fail(state, row, metrics.OutcomeUnrecorded, reasonUnrecorded)
		if s.lock == nil {
			return false
		}
		key := PeriodKey{CustomerID: row.CustomerID, PropertyID: row.PropertyID, Period: state.period}
		if pinErr := s.lock.Pin(chargeCtx, key, state.next); pinErr != nil {
			s.logg.Critical(chargeCtx, "could not pin billing period after unrecorded charge", pinErr)
			return false
		}
		return true
	}

	state.summary.ProcessedCount++
	s.metrics.IncCharge(metrics.OutcomeSucceeded)
	s.logg.Info(chargeCtx, "recurring charge recorded")
	return false
}

// credential fetches the bearer token on first use and reuses it, or its
// failure, for the rest of the run.
func (s *Sweep) credential(ctx context.Context, state *run) (*payhere.Credential, error) {
	if state.credential != nil {
		return state.credential, nil
	}
	if state.authErr != nil {
		return nil, state.authErr
	}
	credential, err := s.gateway.AccessToken(ctx, state.cfg)
	if err != nil {
		s.logg.Error(ctx, "payhere authorization failed; remaining rows will not be charged", err)
		state.authErr = err
		return nil, err
	}
	state.credential = credential
	return credential, nil
}

func (s *Sweep) fail(state *run, row DueAgreement, outcome, reason string) {
	state.summary.FailedCount++
	state.summary.Errors = append(state.summary.Errors, RowError{
		AgreementID: row.AgreementID,
		CustomerID:  row.CustomerID,
		PropertyID:  row.PropertyID,
		Outcome:     outcome,
		Reason:      reason,
	})
	s.metrics.IncCharge(outcome)
}

func gatewayPaymentID(result *payhere.ChargeResult, fallback string) string {
	if result.GatewayPaymentID != "" {
		return result.GatewayPaymentID
	}
	return fallback
}
