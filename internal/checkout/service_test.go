package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentpay-backend/pkg/db/dbtest"
	"github.com/angelmondragon/rentpay-backend/pkg/db/models"
	"github.com/angelmondragon/rentpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rentpay-backend/pkg/errors"
	"github.com/angelmondragon/rentpay-backend/pkg/payhere"
)

var checkoutNow = time.Date(2026, time.March, 5, 9, 30, 0, 0, time.UTC)

type staticSettings struct {
	cfg payhere.Config
	err error
}

func (s staticSettings) Load(context.Context) (payhere.Config, error) {
	return s.cfg, s.err
}

func gatewayConfig() payhere.Config {
	return payhere.Config{
		MerchantID:           "1211149",
		MerchantSecret:       "secret",
		Mode:                 enums.GatewayModeSandbox,
		Currency:             "LKR",
		CommissionPercentage: decimal.NewFromInt(10),
		DefaultAddress:       "N/A",
		DefaultCity:          "Colombo",
		DefaultCountry:       "Sri Lanka",
	}
}

func urls() payhere.RedirectURLs {
	return payhere.RedirectURLs{ReturnURL: "https://rentpay.lk/return", NotifyURL: "https://api.rentpay.lk/notify"}
}

func newTestService(t *testing.T, settings ConfigSource) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	if settings == nil {
		settings = staticSettings{cfg: gatewayConfig()}
	}
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(conn),
		Settings: settings,
		Now:      func() time.Time { return checkoutNow },
	})
	require.NoError(t, err)
	return svc, conn
}

func seedUser(t *testing.T, conn *gorm.DB, role enums.UserRole) models.User {
	t.Helper()
	phone := "0771234567"
	user := models.User{
		ID:        uuid.New(),
		Role:      role,
		Name:      "Nimal Perera",
		Email:     uuid.NewString()[:8] + "@example.lk",
		Phone:     &phone,
		CreatedAt: checkoutNow,
	}
	require.NoError(t, conn.Create(&user).Error)
	return user
}

func TestTokenizationRequest(t *testing.T) {
	svc, conn := newTestService(t, nil)
	customer := seedUser(t, conn, enums.UserRoleCustomer)

	req, err := svc.TokenizationRequest(context.Background(), customer.ID, urls())
	require.NoError(t, err)
	assert.Equal(t, payhere.SandboxBaseURL+"/pay/checkout", req.URL)

	fields := req.FormFields
	assert.Equal(t, payhere.TokenOrderID(customer.ID, checkoutNow), fields["order_id"])
	assert.Equal(t, "0.00", fields["amount"])
	assert.Equal(t, "Nimal", fields["first_name"])
	assert.Equal(t, "Perera", fields["last_name"])
	assert.Equal(t, "0771234567", fields["phone"])
	assert.Equal(t, "Colombo", fields["city"])
	assert.Equal(t, payhere.ComputeHash("1211149", fields["order_id"], "0.00", "LKR", "secret"), fields["hash"])
}

func TestRentalPaymentRequest(t *testing.T) {
	svc, conn := newTestService(t, nil)
	customer := seedUser(t, conn, enums.UserRoleCustomer)
	property := models.Property{
		ID:              uuid.New(),
		OwnerID:         uuid.New(),
		Title:           "Sea view apartment",
		RentAmount:      decimal.RequireFromString("75000.00"),
		SecurityDeposit: decimal.RequireFromString("150000.00"),
		Status:          "available",
		CreatedAt:       checkoutNow,
	}
	require.NoError(t, conn.Create(&property).Error)

	req, err := svc.RentalPaymentRequest(context.Background(), customer.ID, property.ID, urls())
	require.NoError(t, err)

	fields := req.FormFields
	assert.Equal(t, "225000.00", fields["amount"])
	assert.Equal(t, "Sea view apartment", fields["items"])
	assert.Equal(t, property.ID.String(), fields["custom_1"])
	assert.Equal(t, customer.ID.String(), fields["custom_2"])
	assert.Equal(t, payhere.RentalOrderID(customer.ID, property.ID, checkoutNow), fields["order_id"])
	assert.Equal(t, payhere.ComputeHash("1211149", fields["order_id"], "225000.00", "LKR", "secret"), fields["hash"])
}

func TestCheckoutRejectsUnknownOrWrongRole(t *testing.T) {
	svc, conn := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.TokenizationRequest(ctx, uuid.New(), urls())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	owner := seedUser(t, conn, enums.UserRoleOwner)
	_, err = svc.TokenizationRequest(ctx, owner.ID, urls())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	customer := seedUser(t, conn, enums.UserRoleCustomer)
	_, err = svc.RentalPaymentRequest(ctx, customer.ID, uuid.New(), urls())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.TokenizationRequest(ctx, uuid.Nil, urls())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCheckoutPropagatesConfigurationErrors(t *testing.T) {
	cfg := gatewayConfig()
	cfg.MerchantSecret = ""
	svc, conn := newTestService(t, staticSettings{cfg: cfg})
	customer := seedUser(t, conn, enums.UserRoleCustomer)

	_, err := svc.TokenizationRequest(context.Background(), customer.ID, urls())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConfiguration))
}
