package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/rentpay-backend/api/controllers"
	billingcontrollers "github.com/angelmondragon/rentpay-backend/api/controllers/billing"
	checkoutcontrollers "github.com/angelmondragon/rentpay-backend/api/controllers/checkout"
	webhookcontrollers "github.com/angelmondragon/rentpay-backend/api/controllers/webhooks"
	"github.com/angelmondragon/rentpay-backend/api/middleware"
	checkoutsvc "github.com/angelmondragon/rentpay-backend/internal/checkout"
	"github.com/angelmondragon/rentpay-backend/pkg/config"
	"github.com/angelmondragon/rentpay-backend/pkg/db"
	"github.com/angelmondragon/rentpay-backend/pkg/enums"
	"github.com/angelmondragon/rentpay-backend/pkg/logger"
	"github.com/angelmondragon/rentpay-backend/pkg/redis"
)

// Services groups what the handlers call into.
type Services struct {
	Checkout      checkoutsvc.Service
	Tokens        billingcontrollers.TokenLister
	Sweep         billingcontrollers.Sweeper
	Notifications webhookcontrollers.PayHereNotificationService
}

// Infra groups the probes and stores the router depends on.
type Infra struct {
	DB          db.Pinger
	Redis       redis.Pinger
	Idempotency redis.IdempotencyStore
	Gatherer    prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, infra Infra, svcs Services) http.Handler {
	r := chi.NewRouter()
	// Inline so the full route pattern is resolved before the rule lookup.
	idempotent := middleware.Idempotency(infra.Idempotency, logg)
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    infra.DB,
			"redis": infra.Redis,
		}))
	})

	if infra.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(infra.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payhere/notify", webhookcontrollers.PayHereNotify(svcs.Notifications, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Get("/ping", controllers.ScopedPing("private"))

		r.Route("/checkout", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleCustomer))
			r.Post("/tokenization", checkoutcontrollers.Tokenization(svcs.Checkout, logg))
			r.With(idempotent).Post("/rental", checkoutcontrollers.Rental(svcs.Checkout, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
		r.Get("/ping", controllers.ScopedPing("admin"))
		r.With(idempotent).Post("/billing/sweep", billingcontrollers.AdminRunSweep(svcs.Sweep, logg))
		r.Get("/customers/{customerID}/card-tokens", billingcontrollers.AdminCustomerCardTokens(svcs.Tokens, logg))
	})

	return r
}
