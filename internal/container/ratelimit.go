package container

import (
	"context"
	"fmt"
	"time"

	"github.com/jaevor/go-nanoid"
	"github.com/samber/do"
	"github.com/serroba/millennium-gate/internal/audit"
	"github.com/serroba/millennium-gate/internal/engagement"
	"github.com/serroba/millennium-gate/internal/health"
	"github.com/serroba/millennium-gate/internal/housekeeping"
	"github.com/serroba/millennium-gate/internal/identity"
	"github.com/serroba/millennium-gate/internal/messaging"
	"github.com/serroba/millennium-gate/internal/metrics"
	"github.com/serroba/millennium-gate/internal/ratelimit"
	"github.com/serroba/millennium-gate/internal/store"
	"go.uber.org/zap"
)

const (
	migrateTimeout = 30 * time.Second
	commentIDSize  = 12
)

// Counters is the selected counter backend with its optional capabilities.
type Counters struct {
	Name  string
	Store ratelimit.CounterStore
	// Pinger reports backend health.
	Pinger health.Checker
	// Sweeper is nil when the backend expires windows itself.
	Sweeper  housekeeping.Sweeper
	shutdown func() error
}

func (c *Counters) Shutdown() error {
	if c.shutdown == nil {
		return nil
	}

	return c.shutdown()
}

// CounterStorePackage provides the counter backend selected by --store.
// Requires RateLimitPackage for the policies.
func CounterStorePackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*Counters, error) {
		opts := do.MustInvoke[*Options](i)
		policies := do.MustInvoke[ratelimit.Policies](i)

		// Redis expires keys after the retention and the janitor sweeps by it;
		// either way a live window must outlast it.
		if opts.Retention() < policies.MaxWindow() {
			return nil, fmt.Errorf("%w: retention %s, longest window %s",
				housekeeping.ErrRetentionTooShort, opts.Retention(), policies.MaxWindow())
		}

		ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
		defer cancel()

		return newCounters(ctx, i, opts)
	})
}

func newCounters(ctx context.Context, i *do.Injector, opts *Options) (*Counters, error) {
	switch opts.Store {
	case StoreMemory:
		s := store.NewMemoryCounterStore()

		return &Counters{Name: StoreMemory, Store: s, Pinger: s, Sweeper: s}, nil

	case StoreRedis:
		client := do.MustInvoke[*RedisClient](i)
		s := store.NewRedisCounterStore(client.Client, opts.Retention())

		return &Counters{Name: StoreRedis, Store: s, Pinger: s}, nil

	case StorePostgres:
		pool := do.MustInvoke[*PostgresPool](i)
		s := store.NewPostgresCounterStore(pool.Pool)

		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}

		return &Counters{Name: StorePostgres, Store: s, Pinger: s, Sweeper: s}, nil

	case StoreSQL:
		s, err := store.OpenSQLCounterStore(ctx, opts.SQLDriver, opts.SQLDSN)
		if err != nil {
			return nil, err
		}

		return &Counters{Name: StoreSQL + "/" + opts.SQLDriver, Store: s, Pinger: s, Sweeper: s, shutdown: s.Shutdown}, nil

	default:
		return nil, fmt.Errorf("unknown counter store %q", opts.Store)
	}
}

// MetricsPackage provides the Prometheus collectors.
func MetricsPackage(injector *do.Injector) {
	do.Provide(injector, func(_ *do.Injector) (*metrics.Metrics, error) {
		return metrics.New(), nil
	})
}

// RateLimitPackage provides the policies, the limiter, the decision recorder,
// and the identity resolver. The recorder only publishes once WorkersPackage
// starts it.
// Requires CounterStorePackage, MetricsPackage, and PublisherGroupPackage.
func RateLimitPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (ratelimit.Policies, error) {
		opts := do.MustInvoke[*Options](i)

		return ratelimit.LoadPolicies(opts.PolicyFile)
	})

	do.Provide(injector, func(i *do.Injector) (ratelimit.Checker, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		policies := do.MustInvoke[ratelimit.Policies](i)
		counters := do.MustInvoke[*Counters](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		recorder := do.MustInvoke[*audit.Recorder](i)

		logger.Info("rate limiter configured",
			zap.String("store", counters.Name),
			zap.Int("actions", len(policies)),
		)

		return ratelimit.NewFixedWindowLimiter(
			m.InstrumentStore(counters.Store, counters.Name),
			policies,
			ratelimit.WithLogger(logger),
			ratelimit.WithTimeout(opts.CheckTimeout()),
			ratelimit.WithObservers(m, recorder),
		), nil
	})

	do.Provide(injector, func(i *do.Injector) (*audit.Recorder, error) {
		logger := do.MustInvoke[*zap.Logger](i)
		publishers := do.MustInvoke[*messaging.PublisherGroup](i)

		publishDecision := messaging.NewPublishFunc[audit.DecisionEvent](
			publishers.Publisher(), audit.TopicDecisions, "DecisionEvent")

		return audit.NewRecorder(publishDecision, logger), nil
	})

	do.Provide(injector, func(i *do.Injector) (*identity.Resolver, error) {
		opts := do.MustInvoke[*Options](i)

		return identity.NewResolver([]byte(opts.JWTSecret)), nil
	})
}

// RepositoryPackage provides the engagement repository and ID generator.
func RepositoryPackage(injector *do.Injector) {
	do.Provide(injector, func(_ *do.Injector) (engagement.Repository, error) {
		return store.NewMemoryStore(), nil
	})

	do.Provide(injector, func(_ *do.Injector) (engagement.IDGenerator, error) {
		gen, err := nanoid.Standard(commentIDSize)
		if err != nil {
			return nil, err
		}

		return gen, nil
	})
}
