package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/playgate/api/controllers"
	"github.com/angelmondragon/playgate/api/middleware"
	"github.com/angelmondragon/playgate/pkg/config"
	"github.com/angelmondragon/playgate/pkg/enums"
	"github.com/angelmondragon/playgate/pkg/logger"
	"github.com/angelmondragon/playgate/pkg/redis"
)

// Dependencies are the services the router exposes.
type Dependencies struct {
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency redis.IdempotencyStore
	Gatherer    prometheus.Gatherer

	Playback   controllers.PlaybackService
	Catalog    controllers.CatalogAdmin
	Billing    controllers.BillingAdmin
	Cascade    controllers.TierCascader
	CascadeJob controllers.CascadeJobFinder
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": deps.Redis,
		}))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Get("/api/public/ping", controllers.PublicPing())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/playback", func(r chi.Router) {
			r.Post("/resolve", controllers.PlaybackResolve(deps.Playback, logg))
			r.Post("/release", controllers.PlaybackRelease(deps.Playback, logg))
		})
		r.Route("/contents/{contentId}", func(r chi.Router) {
			r.Get("/entitlement", controllers.ContentEntitlement(deps.Playback, logg))
			r.Get("/servers", controllers.ContentServers(deps.Playback, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(string(enums.ViewerRoleAdmin), logg))
		idempotent := r.With(middleware.Idempotency(deps.Idempotency, logg))

		r.Get("/ping", controllers.AdminPing())

		idempotent.Post("/contents", controllers.AdminCreateContent(deps.Catalog, logg))
		r.Route("/contents/{contentId}", func(r chi.Router) {
			r.Put("/policy", controllers.AdminSavePolicy(deps.Catalog, logg))
			r.Put("/sources", controllers.AdminReplaceContentSources(deps.Catalog, logg))
			r.With(middleware.Idempotency(deps.Idempotency, logg)).Post("/episodes", controllers.AdminCreateEpisode(deps.Catalog, logg))
		})
		r.Put("/episodes/{episodeId}/sources", controllers.AdminReplaceEpisodeSources(deps.Catalog, logg))

		r.Put("/series/{seriesId}/tier", controllers.AdminSeriesTier(deps.Cascade, logg))
		r.Get("/series/{seriesId}/cascade-jobs", controllers.AdminSeriesCascadeJobs(deps.CascadeJob, logg))
		r.Get("/cascade-jobs/{jobId}", controllers.AdminCascadeJob(deps.CascadeJob, logg))

		r.Put("/viewers/{viewerId}/subscription", controllers.AdminSaveSubscription(deps.Billing, logg))
		idempotent.Post("/rentals", controllers.AdminRecordRental(deps.Billing, logg))
		idempotent.Post("/rentals/{rentalId}/complete", controllers.AdminCompleteRental(deps.Billing, logg))
	})

	return r
}
