package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/rentpay-backend/pkg/db/models"
	"github.com/angelmondragon/rentpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rentpay-backend/pkg/errors"
	"github.com/angelmondragon/rentpay-backend/pkg/logger"
	"github.com/angelmondragon/rentpay-backend/pkg/payhere"
)

// ConfigSource yields one gateway settings snapshot per request.
type ConfigSource interface {
	Load(ctx context.Context) (payhere.Config, error)
}

// Service builds hosted-checkout payloads for customers.
type Service interface {
	TokenizationRequest(ctx context.Context, customerID uuid.UUID, urls payhere.RedirectURLs) (*payhere.CheckoutRequest, error)
	RentalPaymentRequest(ctx context.Context, customerID, propertyID uuid.UUID, urls payhere.RedirectURLs) (*payhere.CheckoutRequest, error)
}

type ServiceParams struct {
	Repo     Repository
	Settings ConfigSource
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	repo     Repository
	settings ConfigSource
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("checkout repository required")
	}
	if params.Settings == nil {
		return nil, errors.New("settings source required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: params.Repo, settings: params.Settings, logg: logg, now: now}, nil
}

func (s *service) TokenizationRequest(ctx context.Context, customerID uuid.UUID, urls payhere.RedirectURLs) (*payhere.CheckoutRequest, error) {
	customer, err := s.loadCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	req, err := payhere.BuildTokenizationRequest(cfg, payhere.TokenizationInput{
		Customer: payerFromUser(customer),
		URLs:     urls,
	}, s.now())
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithCustomerID(ctx, customerID.String()), "tokenization checkout prepared")
	return req, nil
}

func (s *service) RentalPaymentRequest(ctx context.Context, customerID, propertyID uuid.UUID, urls payhere.RedirectURLs) (*payhere.CheckoutRequest, error) {
	customer, err := s.loadCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	property, err := s.repo.FindProperty(ctx, propertyID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load property")
	}
	if property == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "property not found")
	}
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	req, err := payhere.BuildRentalPaymentRequest(cfg, payhere.RentalPaymentInput{
		Customer:        payerFromUser(customer),
		PropertyID:      property.ID,
		PropertyTitle:   property.Title,
		RentAmount:      property.RentAmount,
		SecurityDeposit: property.SecurityDeposit,
		URLs:            urls,
	}, s.now())
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithCustomerID(ctx, customerID.String())
	s.logg.Info(s.logg.WithPropertyID(logCtx, propertyID.String()), "rental checkout prepared")
	return req, nil
}

func (s *service) loadCustomer(ctx context.Context, customerID uuid.UUID) (*models.User, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	user, err := s.repo.FindUser(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load customer")
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	if user.Role != enums.UserRoleCustomer {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only customers can check out")
	}
	return user, nil
}

func payerFromUser(user *models.User) payhere.Customer {
	return payhere.Customer{
		ID:      user.ID,
		Name:    user.Name,
		Email:   user.Email,
		Phone:   deref(user.Phone),
		Address: deref(user.Address),
		City:    deref(user.City),
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
