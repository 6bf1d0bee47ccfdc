package checkout

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/rentpay-backend/api/middleware"
	"github.com/angelmondragon/rentpay-backend/api/responses"
	"github.com/angelmondragon/rentpay-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/rentpay-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/rentpay-backend/pkg/errors"
	"github.com/angelmondragon/rentpay-backend/pkg/logger"
	"github.com/angelmondragon/rentpay-backend/pkg/payhere"
)

const maxURLLength = 2048

type tokenizationRequest struct {
	ReturnURL string `json:"return_url" validate:"required,url,max=2048"`
	NotifyURL string `json:"notify_url" validate:"required,url,max=2048"`
}

type rentalRequest struct {
	PropertyID string `json:"property_id" validate:"required,uuid"`
	ReturnURL  string `json:"return_url" validate:"required,url,max=2048"`
	NotifyURL  string `json:"notify_url" validate:"required,url,max=2048"`
}

// Tokenization returns the hosted-checkout form that saves the caller's card.
func Tokenization(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		customerID, err := customerFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload tokenizationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		req, err := svc.TokenizationRequest(ctx, customerID, redirectURLs(payload.ReturnURL, payload.NotifyURL))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, req)
	}
}

// Rental returns the hosted-checkout form for a property's first payment.
func Rental(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		customerID, err := customerFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload rentalRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		propertyID, err := uuid.Parse(payload.PropertyID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid property_id"))
			return
		}
		if logg != nil {
			ctx = logg.WithPropertyID(ctx, propertyID.String())
		}

		req, err := svc.RentalPaymentRequest(ctx, customerID, propertyID, redirectURLs(payload.ReturnURL, payload.NotifyURL))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, req)
	}
}

func customerFromRequest(r *http.Request) (uuid.UUID, error) {
	id, ok := middleware.UserUUIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return id, nil
}

func redirectURLs(returnURL, notifyURL string) payhere.RedirectURLs {
	return payhere.RedirectURLs{
		ReturnURL: validators.SanitizeString(returnURL, maxURLLength),
		NotifyURL: validators.SanitizeString(notifyURL, maxURLLength),
	}
}
