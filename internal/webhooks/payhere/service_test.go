package payherewebhook

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentpay-backend/internal/ledger"
	"github.com/angelmondragon/rentpay-backend/internal/tokens"
	"github.com/angelmondragon/rentpay-backend/pkg/db"
	"github.com/angelmondragon/rentpay-backend/pkg/db/dbtest"
	"github.com/angelmondragon/rentpay-backend/pkg/db/models"
	"github.com/angelmondragon/rentpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rentpay-backend/pkg/errors"
	"github.com/angelmondragon/rentpay-backend/pkg/logger"
	"github.com/angelmondragon/rentpay-backend/pkg/payhere"
)

const (
	merchantID     = "1211149"
	merchantSecret = "secret"
)

var notifyNow = time.Date(2026, time.March, 5, 9, 30, 0, 0, time.UTC)

type staticSettings struct {
	err error
}

func (s staticSettings) Load(context.Context) (payhere.Config, error) {
	if s.err != nil {
		return payhere.Config{}, s.err
	}
	return payhere.Config{
		MerchantID:           merchantID,
		MerchantSecret:       merchantSecret,
		Mode:                 enums.GatewayModeSandbox,
		Currency:             "LKR",
		CommissionPercentage: decimal.NewFromInt(10),
	}, nil
}

type memoryGuard struct {
	seen    map[string]bool
	deleted []string
}

func newMemoryGuard() *memoryGuard {
	return &memoryGuard{seen: map[string]bool{}}
}

func (g *memoryGuard) CheckAndMark(_ context.Context, key string) (bool, error) {
	if g.seen[key] {
		return true, nil
	}
	g.seen[key] = true
	return false, nil
}

func (g *memoryGuard) Delete(_ context.Context, key string) error {
	delete(g.seen, key)
	g.deleted = append(g.deleted, key)
	return nil
}

type fixture struct {
	conn    *gorm.DB
	tokens  tokens.Service
	ledger  ledger.Service
	guard   *memoryGuard
	service *Service
}

func newFixture(t *testing.T, mutate func(*ServiceParams)) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	clock := func() time.Time { return notifyNow }
	tokenSvc, err := tokens.NewService(tokens.ServiceParams{Repo: tokens.NewRepository(conn), TxRunner: db.FromGorm(conn), Now: clock})
	require.NoError(t, err)
	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{Repo: ledger.NewRepository(conn), TxRunner: db.FromGorm(conn), Now: clock})
	require.NoError(t, err)

	guard := newMemoryGuard()
	params := ServiceParams{
		Settings: staticSettings{},
		Tokens:   tokenSvc,
		Ledger:   ledgerSvc,
		Repo:     NewRepository(conn),
		TxRunner: db.FromGorm(conn),
		Guard:    guard,
		Logger:   logger.Nop(),
	}
	if mutate != nil {
		mutate(&params)
	}
	svc, err := NewService(params)
	require.NoError(t, err)
	return &fixture{conn: conn, tokens: tokenSvc, ledger: ledgerSvc, guard: guard, service: svc}
}

func signed(values url.Values) url.Values {
	values.Set("merchant_id", merchantID)
	values.Set("md5sig", payhere.ComputeStatusHash(
		values.Get("merchant_id"),
		values.Get("order_id"),
		values.Get("payhere_amount"),
		values.Get("payhere_currency"),
		values.Get("status_code"),
		merchantSecret,
	))
	return values
}

func tokenNotification(customerID uuid.UUID, customerToken string) url.Values {
	return signed(url.Values{
		"order_id":         {payhere.TokenOrderID(customerID, notifyNow)},
		"payment_id":       {"320025071278"},
		"payhere_amount":   {"0.00"},
		"payhere_currency": {"LKR"},
		"status_code":      {payhere.StatusSuccess},
		"method":           {"VISA"},
		"card_holder_name": {"N Perera"},
		"card_no":          {"************4242"},
		"customer_token":   {customerToken},
	})
}

func TestHandleNotificationIssuesToken(t *testing.T) {
	f := newFixture(t, nil)
	customerID := uuid.New()

	outcome, err := f.service.HandleNotification(context.Background(), tokenNotification(customerID, "tok_abc"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeTokenIssued, outcome)

	token, err := f.tokens.GetActiveToken(context.Background(), customerID)
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, "tok_abc", token.GatewayToken)
	assert.Equal(t, "4242", token.CardLast4)
	assert.Equal(t, "VISA", token.CardBrand)

	outcome, err = f.service.HandleNotification(context.Background(), tokenNotification(customerID, "tok_abc"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
}

func TestHandleNotificationIgnoresUnverifiedPayloads(t *testing.T) {
	f := newFixture(t, nil)
	customerID := uuid.New()

	tampered := tokenNotification(customerID, "tok_abc")
	tampered.Set("payhere_amount", "1.00")
	outcome, err := f.service.HandleNotification(context.Background(), tampered)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)

	missing := tokenNotification(customerID, "tok_abc")
	missing.Del("md5sig")
	outcome, err = f.service.HandleNotification(context.Background(), missing)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)

	token, err := f.tokens.GetActiveToken(context.Background(), customerID)
	require.NoError(t, err)
	assert.Nil(t, token)
	assert.Empty(t, f.guard.seen)
}

func TestHandleNotificationIgnoresOtherMerchant(t *testing.T) {
	f := newFixture(t, nil)
	values := tokenNotification(uuid.New(), "tok_abc")
	values.Set("merchant_id", "999")
	values.Set("md5sig", payhere.ComputeStatusHash("999", values.Get("order_id"), "0.00", "LKR", "2", merchantSecret))

	outcome, err := f.service.HandleNotification(context.Background(), values)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
}

func TestHandleNotificationAcknowledgesNonSuccess(t *testing.T) {
	f := newFixture(t, nil)
	customerID := uuid.New()
	values := tokenNotification(customerID, "tok_abc")
	values.Set("status_code", payhere.StatusFailed)
	values = signed(values)

	outcome, err := f.service.HandleNotification(context.Background(), values)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAcknowledged, outcome)

	token, err := f.tokens.GetActiveToken(context.Background(), customerID)
	require.NoError(t, err)
	assert.Nil(t, token)
}

type failingIssuer struct{}

func (failingIssuer) IssueToken(context.Context, tokens.IssueTokenInput) (*models.CardToken, error) {
	return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, errors.New("connection reset"), "issue card token")
}

func TestHandleNotificationReleasesGuardOnFailure(t *testing.T) {
	f := newFixture(t, func(p *ServiceParams) { p.Tokens = failingIssuer{} })
	values := tokenNotification(uuid.New(), "tok_abc")

	_, err := f.service.HandleNotification(context.Background(), values)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStorage))
	require.Len(t, f.guard.deleted, 1)
	assert.Equal(t, values.Get("order_id")+":2", f.guard.deleted[0])
	assert.Empty(t, f.guard.seen)
}

func TestHandleNotificationSettingsFailure(t *testing.T) {
	f := newFixture(t, func(p *ServiceParams) {
		p.Settings = staticSettings{err: pkgerrors.New(pkgerrors.CodeConfiguration, "merchant secret missing")}
	})
	_, err := f.service.HandleNotification(context.Background(), tokenNotification(uuid.New(), "tok"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConfiguration))
}

func seedRental(t *testing.T, conn *gorm.DB) (models.Property, models.Booking) {
	t.Helper()
	property := models.Property{
		ID:              uuid.New(),
		OwnerID:         uuid.New(),
		Title:           "Garden house",
		RentAmount:      decimal.RequireFromString("60000.00"),
		SecurityDeposit: decimal.RequireFromString("40000.00"),
		Status:          "available",
		CreatedAt:       notifyNow,
	}
	require.NoError(t, conn.Create(&property).Error)
	booking := models.Booking{
		ID:         uuid.New(),
		CustomerID: uuid.New(),
		PropertyID: property.ID,
		Status:     enums.BookingStatusPending,
		CreatedAt:  notifyNow,
	}
	require.NoError(t, conn.Create(&booking).Error)
	return property, booking
}

func rentalNotification(customerID, propertyID uuid.UUID, paymentID string) url.Values {
	return signed(url.Values{
		"order_id":         {payhere.RentalOrderID(customerID, propertyID, notifyNow)},
		"payment_id":       {paymentID},
		"payhere_amount":   {"100000.00"},
		"payhere_currency": {"LKR"},
		"status_code":      {payhere.StatusSuccess},
		"custom_1":         {propertyID.String()},
		"custom_2":         {customerID.String()},
		"method":           {"MASTER"},
		"card_no":          {"************1111"},
	})
}

func TestHandleNotificationRecordsRentalPayment(t *testing.T) {
	f := newFixture(t, func(p *ServiceParams) { p.Guard = nil })
	property, booking := seedRental(t, f.conn)
	values := rentalNotification(booking.CustomerID, property.ID, "320025071999")

	outcome, err := f.service.HandleNotification(context.Background(), values)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRentalRecorded, outcome)

	payment, err := f.ledger.FindByGatewayPaymentID(context.Background(), "320025071999")
	require.NoError(t, err)
	require.NotNil(t, payment)
	assert.Equal(t, enums.PaymentTypeRental, payment.Type)
	assert.Equal(t, property.OwnerID, payment.OwnerID)
	assert.Equal(t, "10000.00", payment.Commission.StringFixed(2))
	assert.Equal(t, "90000.00", payment.OwnerPayout.StringFixed(2))

	var stored models.Booking
	require.NoError(t, f.conn.First(&stored, "id = ?", booking.ID).Error)
	assert.Equal(t, enums.BookingStatusConfirmed, stored.Status)

	outcome, err = f.service.HandleNotification(context.Background(), values)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)

	var count int64
	require.NoError(t, f.conn.Model(&models.Payment{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestHandleNotificationRentalFallsBackToOrderID(t *testing.T) {
	f := newFixture(t, nil)
	property, booking := seedRental(t, f.conn)
	values := rentalNotification(booking.CustomerID, property.ID, "")
	values.Del("custom_1")
	values.Del("custom_2")

	outcome, err := f.service.HandleNotification(context.Background(), values)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRentalRecorded, outcome)

	payment, err := f.ledger.FindByGatewayPaymentID(context.Background(), values.Get("order_id"))
	require.NoError(t, err)
	require.NotNil(t, payment)
	assert.Equal(t, booking.CustomerID, payment.CustomerID)
}

func TestHandleNotificationRentalUnknownProperty(t *testing.T) {
	f := newFixture(t, nil)
	outcome, err := f.service.HandleNotification(context.Background(), rentalNotification(uuid.New(), uuid.New(), "320025070000"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
}

func TestOrderParsing(t *testing.T) {
	customerID := uuid.New()
	parsed, err := customerFromTokenOrder(fmt.Sprintf("TOKEN_%s_%d", customerID, notifyNow.Unix()))
	require.NoError(t, err)
	assert.Equal(t, customerID, parsed)

	_, err = customerFromTokenOrder("TOKEN_")
	assert.Error(t, err)
	_, err = customerFromTokenOrder("TOKEN_not-a-uuid_1")
	assert.Error(t, err)
}
