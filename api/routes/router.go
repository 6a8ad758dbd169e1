package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/netpoint-soft/cybercafe-backend/api/controllers"
	mpesacontrollers "github.com/netpoint-soft/cybercafe-backend/api/controllers/mpesa"
	webhookcontrollers "github.com/netpoint-soft/cybercafe-backend/api/controllers/webhooks"
	"github.com/netpoint-soft/cybercafe-backend/api/middleware"
	"github.com/netpoint-soft/cybercafe-backend/internal/intents"
	"github.com/netpoint-soft/cybercafe-backend/internal/matcher"
	"github.com/netpoint-soft/cybercafe-backend/internal/payments"
	"github.com/netpoint-soft/cybercafe-backend/internal/reconciliation"
	darajawebhook "github.com/netpoint-soft/cybercafe-backend/internal/webhooks/daraja"
	"github.com/netpoint-soft/cybercafe-backend/pkg/config"
	"github.com/netpoint-soft/cybercafe-backend/pkg/db"
	"github.com/netpoint-soft/cybercafe-backend/pkg/logger"
	"github.com/netpoint-soft/cybercafe-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	intentsService intents.Service,
	matcherService matcher.Service,
	reconciliationService reconciliation.Service,
	paymentsRepo payments.Repository,
	darajaWebhookService *darajawebhook.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	initiatePolicy := middleware.NewRateLimitPolicy(
		"mpesa-initiate",
		cfg.Payments.InitiateRateWindow,
		cfg.Payments.InitiateIPLimit,
		cfg.Payments.InitiateUserLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, redisClient, logg))
	})

	r.Get("/ping", controllers.PublicPing())

	// Gateway callbacks carry no bearer token; source filtering happens in
	// the webhook service itself.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/daraja", webhookcontrollers.DarajaCallback(darajaWebhookService, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/v1/mpesa", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.StationContext(logg))
				r.Get("/ping", controllers.StationPing())
				r.With(middleware.RateLimit(initiatePolicy, redisClient, logg)).
					Post("/initiate", mpesacontrollers.Initiate(intentsService, logg))
				r.Get("/intent/{intentId}", mpesacontrollers.IntentStatus(intentsService, logg))
				r.Get("/intent/{intentId}/gateway-status", mpesacontrollers.GatewayStatus(intentsService, logg))
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAnyRole(logg, "admin", "manager"))
				r.Get("/inbox", mpesacontrollers.Inbox(paymentsRepo, logg))
				r.Get("/payments/{paymentId}/candidates", mpesacontrollers.Candidates(matcherService, logg))
				r.Post("/match", mpesacontrollers.ManualMatch(matcherService, logg))
				r.Get("/reconciliation", mpesacontrollers.Reconciliation(reconciliationService, logg))
			})
		})
	})

	return r
}
