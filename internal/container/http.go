package container

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/samber/do"
	"github.com/serroba/millennium-gate/internal/engagement"
	"github.com/serroba/millennium-gate/internal/handlers"
	"github.com/serroba/millennium-gate/internal/health"
	"github.com/serroba/millennium-gate/internal/identity"
	"github.com/serroba/millennium-gate/internal/messaging"
	"github.com/serroba/millennium-gate/internal/metrics"
	"github.com/serroba/millennium-gate/internal/middleware"
	"github.com/serroba/millennium-gate/internal/ratelimit"
	"go.uber.org/zap"
)

// HTTPPackage provides the router and the API with every route registered.
func HTTPPackage(injector *do.Injector) {
	do.Provide(injector, func(_ *do.Injector) (*chi.Mux, error) {
		return chi.NewMux(), nil
	})

	do.Provide(injector, func(i *do.Injector) (huma.API, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		router := do.MustInvoke[*chi.Mux](i)
		checker := do.MustInvoke[ratelimit.Checker](i)
		counters := do.MustInvoke[*Counters](i)
		publishers := do.MustInvoke[*messaging.PublisherGroup](i)

		api := humachi.New(router, huma.DefaultConfig("Millennium Gate", "1.0.0"))
		api.UseMiddleware(middleware.RequestMeta(api, do.MustInvoke[*identity.Resolver](i)))
		api.UseMiddleware(middleware.RateLimit(api, checker, logger))

		publishStroke := messaging.NewPublishFunc[engagement.StrokeEvent](
			publishers.Publisher(), engagement.TopicWhiteboardStrokes, "StrokeEvent")

		handlers.RegisterRoutes(api, handlers.NewEngagementHandler(
			do.MustInvoke[engagement.Repository](i),
			do.MustInvoke[engagement.IDGenerator](i),
			publishStroke,
			logger,
		))

		if opts.CheckAPI {
			handlers.RegisterCheckRoutes(api, handlers.NewCheckHandler(checker))
		}

		checks := map[string]health.Checker{"counters": counters.Pinger}
		if opts.Broker == BrokerRedis {
			checks["broker"] = health.NewRedisChecker(do.MustInvoke[*RedisClient](i).Client)
		}

		health.RegisterRoutes(api, health.NewHandler(checks))

		router.Handle("/metrics", do.MustInvoke[*metrics.Metrics](i).Handler())

		return api, nil
	})
}
