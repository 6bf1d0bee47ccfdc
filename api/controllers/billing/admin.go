package billing

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/rentpay-backend/api/responses"
	"github.com/angelmondragon/rentpay-backend/api/validators"
	billingsvc "github.com/angelmondragon/rentpay-backend/internal/billing"
	"github.com/angelmondragon/rentpay-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/rentpay-backend/pkg/errors"
	"github.com/angelmondragon/rentpay-backend/pkg/logger"
)

type Sweeper interface {
	Run(ctx context.Context) (*billingsvc.Summary, error)
}

type TokenLister interface {
	ListTokens(ctx context.Context, customerID uuid.UUID) ([]models.CardToken, error)
}

type cardTokenResponse struct {
	ID             string    `json:"id"`
	CardLast4      string    `json:"card_last4"`
	CardBrand      string    `json:"card_brand"`
	CardHolderName string    `json:"card_holder_name"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// AdminRunSweep runs one billing sweep on demand and returns its summary.
func AdminRunSweep(sweep Sweeper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if sweep == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing sweep unavailable"))
			return
		}

		summary, err := sweep.Run(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// AdminCustomerCardTokens lists every token a customer has held, newest first.
// The gateway token itself is never returned.
func AdminCustomerCardTokens(svc TokenLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "token service unavailable"))
			return
		}

		customerID, err := validators.ParseUUIDParam(r, "customerID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		tokens, err := svc.ListTokens(ctx, customerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		out := make([]cardTokenResponse, 0, len(tokens))
		for _, token := range tokens {
			out = append(out, cardTokenResponse{
				ID:             token.ID.String(),
				CardLast4:      token.CardLast4,
				CardBrand:      token.CardBrand,
				CardHolderName: token.CardHolderName,
				Status:         string(token.Status),
				CreatedAt:      token.CreatedAt,
			})
		}
		responses.WriteSuccess(w, map[string]any{"card_tokens": out})
	}
}
