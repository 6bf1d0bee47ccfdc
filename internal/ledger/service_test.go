package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentpay-backend/pkg/db"
	"github.com/angelmondragon/rentpay-backend/pkg/db/dbtest"
	"github.com/angelmondragon/rentpay-backend/pkg/db/models"
	"github.com/angelmondragon/rentpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rentpay-backend/pkg/errors"
	"github.com/angelmondragon/rentpay-backend/pkg/logger"
)

var testNow = time.Date(2026, time.March, 5, 9, 30, 0, 0, time.UTC)

func newTestService(t *testing.T, repo func(*gorm.DB) Repository) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	if repo == nil {
		repo = NewRepository
	}
	svc, err := NewService(ServiceParams{
		Repo:     repo(conn),
		TxRunner: db.FromGorm(conn),
		Logger:   logger.Nop(),
		Now:      func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return svc, conn
}

func chargeInput(amount string) ChargeInput {
	return ChargeInput{
		CustomerID:           uuid.New(),
		PropertyID:           uuid.New(),
		OwnerID:              uuid.New(),
		Type:                 enums.PaymentTypeRecurring,
		Amount:               decimal.RequireFromString(amount),
		Currency:             "LKR",
		CommissionPercentage: decimal.NewFromInt(10),
		GatewayPaymentID:     "320025" + uuid.NewString()[:8],
		GatewayResponse:      []byte(`{"status":1}`),
	}
}

func TestComputeSplit(t *testing.T) {
	cases := []struct {
		amount     string
		pct        string
		commission string
		payout     string
	}{
		{"0.01", "10", "0.00", "0.01"},
		{"999.99", "10", "100.00", "899.99"},
		{"10000.00", "10", "1000.00", "9000.00"},
		{"123456.78", "10", "12345.68", "111111.10"},
		{"2500.00", "0", "0.00", "2500.00"},
		{"2500.00", "100", "2500.00", "0.00"},
		{"1000.00", "12.5", "125.00", "875.00"},
	}
	for _, tc := range cases {
		t.Run(tc.amount+"@"+tc.pct, func(t *testing.T) {
			amount := decimal.RequireFromString(tc.amount)
			split := ComputeSplit(amount, decimal.RequireFromString(tc.pct))
			assert.Equal(t, tc.commission, split.Commission.StringFixed(2))
			assert.Equal(t, tc.payout, split.OwnerPayout.StringFixed(2))
			assert.True(t, split.Commission.Add(split.OwnerPayout).Equal(amount))
		})
	}
}

func TestRecordSuccessfulChargeWritesPaymentAndCommission(t *testing.T) {
	svc, conn := newTestService(t, nil)
	ctx := context.Background()
	input := chargeInput("10000.00")

	payment, err := svc.RecordSuccessfulCharge(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusSuccessful, payment.Status)
	assert.Equal(t, "1000.00", payment.Commission.StringFixed(2))
	assert.Equal(t, "9000.00", payment.OwnerPayout.StringFixed(2))

	var stored models.Payment
	require.NoError(t, conn.Select("id", "amount", "commission", "owner_payout", "status", "gateway_payment_id").
		First(&stored, "id = ?", payment.ID).Error)
	assert.True(t, stored.Amount.Equal(stored.Commission.Add(stored.OwnerPayout)))
	require.NotNil(t, stored.GatewayPaymentID)
	assert.Equal(t, input.GatewayPaymentID, *stored.GatewayPaymentID)

	var commission models.Commission
	require.NoError(t, conn.First(&commission, "payment_id = ?", payment.ID).Error)
	assert.Equal(t, "1000.00", commission.Amount.StringFixed(2))
	assert.Equal(t, "10", commission.Percentage.String())

	found, err := svc.FindByGatewayPaymentID(ctx, input.GatewayPaymentID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, payment.ID, found.ID)
}

type failingCommissionRepository struct {
	Repository
}

func (f failingCommissionRepository) WithTx(tx *gorm.DB) Repository {
	return failingCommissionRepository{Repository: f.Repository.WithTx(tx)}
}

func (failingCommissionRepository) CreateCommission(context.Context, *models.Commission) error {
	return errors.New("disk full")
}

func TestRecordSuccessfulChargeIsAtomic(t *testing.T) {
	svc, conn := newTestService(t, func(conn *gorm.DB) Repository {
		return failingCommissionRepository{Repository: NewRepository(conn)}
	})

	_, err := svc.RecordSuccessfulCharge(context.Background(), chargeInput("999.99"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStorage))

	var payments int64
	require.NoError(t, conn.Model(&models.Payment{}).Count(&payments).Error)
	assert.Zero(t, payments)
}

func TestRecordSuccessfulChargeRejectsDuplicateGatewayID(t *testing.T) {
	svc, conn := newTestService(t, nil)
	ctx := context.Background()
	input := chargeInput("500.00")

	_, err := svc.RecordSuccessfulCharge(ctx, input)
	require.NoError(t, err)
	_, err = svc.RecordSuccessfulCharge(ctx, input)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStorage))

	var commissions int64
	require.NoError(t, conn.Model(&models.Commission{}).Count(&commissions).Error)
	assert.Equal(t, int64(1), commissions)
}

func TestRecordSuccessfulChargeValidatesInput(t *testing.T) {
	svc, _ := newTestService(t, nil)

	input := chargeInput("100.00")
	input.Amount = decimal.Zero
	_, err := svc.RecordSuccessfulCharge(context.Background(), input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	input = chargeInput("100.00")
	input.GatewayPaymentID = "  "
	_, err = svc.RecordSuccessfulCharge(context.Background(), input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	input = chargeInput("100.00")
	input.CommissionPercentage = decimal.NewFromInt(101)
	_, err = svc.RecordSuccessfulCharge(context.Background(), input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRecordSuccessfulChargeWithCallerTransaction(t *testing.T) {
	svc, conn := newTestService(t, nil)
	input := chargeInput("2500.00")
	input.Type = enums.PaymentTypeRental

	rollback := errors.New("rollback")
	err := db.FromGorm(conn).WithTx(context.Background(), func(tx *gorm.DB) error {
		_, err := svc.RecordSuccessfulChargeWithTx(context.Background(), tx, input)
		require.NoError(t, err)
		return rollback
	})
	require.ErrorIs(t, err, rollback)

	var payments int64
	require.NoError(t, conn.Model(&models.Payment{}).Count(&payments).Error)
	assert.Zero(t, payments)
}

func TestRecordFailedCharge(t *testing.T) {
	svc, conn := newTestService(t, nil)
	due := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	payment, err := svc.RecordFailedCharge(context.Background(), FailedChargeInput{
		CustomerID: uuid.New(),
		PropertyID: uuid.New(),
		OwnerID:    uuid.New(),
		Amount:     decimal.RequireFromString("1500.00"),
		Currency:   "LKR",
		Message:    "insufficient funds",
		DueDate:    &due,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusFailed, payment.Status)
	assert.Nil(t, payment.GatewayPaymentID)
	assert.JSONEq(t, `{"message":"insufficient funds"}`, string(payment.GatewayResponse))

	var commissions int64
	require.NoError(t, conn.Model(&models.Commission{}).Count(&commissions).Error)
	assert.Zero(t, commissions)
}

func TestFindByGatewayPaymentIDMissing(t *testing.T) {
	svc, _ := newTestService(t, nil)

	payment, err := svc.FindByGatewayPaymentID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, payment)

	_, err = svc.FindByGatewayPaymentID(context.Background(), " ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
