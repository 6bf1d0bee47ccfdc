package webhooks

import (
	"context"
	"net/http"
	"net/url"

	"github.com/angelmondragon/rentpay-backend/api/responses"
	payherewebhook "github.com/angelmondragon/rentpay-backend/internal/webhooks/payhere"
	pkgerrors "github.com/angelmondragon/rentpay-backend/pkg/errors"
	"github.com/angelmondragon/rentpay-backend/pkg/logger"
)

const maxNotificationBytes = 64 << 10

type PayHereNotificationService interface {
	HandleNotification(ctx context.Context, values url.Values) (payherewebhook.Outcome, error)
}

// PayHereNotify receives the gateway's server-to-server IPN. Verified,
// duplicate and unverifiable payloads all get 200 with an empty body so the
// response never reveals why a payload was dropped; only failures the gateway
// should retry produce a 5xx.
func PayHereNotify(svc PayHereNotificationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxNotificationBytes)
		if err := r.ParseForm(); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification form"))
			return
		}

		outcome, err := svc.HandleNotification(ctx, r.PostForm)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(logg.WithField(ctx, "outcome", string(outcome)), "payhere notification handled")
		}
		responses.WriteSuccess(w, nil)
	}
}
