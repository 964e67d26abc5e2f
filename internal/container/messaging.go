package container

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/samber/do"
	"github.com/serroba/millennium-gate/internal/audit"
	auditstore "github.com/serroba/millennium-gate/internal/audit/store"
	"github.com/serroba/millennium-gate/internal/housekeeping"
	"github.com/serroba/millennium-gate/internal/messaging"
	"github.com/serroba/millennium-gate/internal/ratelimit"
	"go.uber.org/zap"
)

// Workers are the server's background runnables.
type Workers struct {
	*messaging.ConsumerGroup
}

// PublisherGroupPackage provides the publisher for the broker selected by --broker.
func PublisherGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*gochannel.GoChannel, error) {
		logger := do.MustInvoke[*zap.Logger](i)

		return gochannel.NewGoChannel(gochannel.Config{}, messaging.NewZapLoggerAdapter(logger)), nil
	})

	do.Provide(injector, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		publisher, err := newPublisher(i, opts, logger)
		if err != nil {
			return nil, err
		}

		return messaging.NewPublisherGroup(publisher), nil
	})
}

func newPublisher(i *do.Injector, opts *Options, logger *zap.Logger) (message.Publisher, error) {
	switch opts.Broker {
	case BrokerMemory:
		return do.MustInvoke[*gochannel.GoChannel](i), nil
	case BrokerRedis:
		client := do.MustInvoke[*RedisClient](i)

		return redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: client.Client},
			messaging.NewZapLoggerAdapter(logger),
		)
	default:
		return nil, fmt.Errorf("unknown broker %q", opts.Broker)
	}
}

// AuditStorePackage provides the audit event store selected by --audit-store.
func AuditStorePackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (audit.Store, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		switch opts.AuditStore {
		case AuditNoop:
			return auditstore.NewNoop(logger), nil
		case AuditPostgres:
			pool := do.MustInvoke[*PostgresPool](i)
			pg := auditstore.NewPostgres(pool.Pool)

			ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
			defer cancel()

			if err := pg.Migrate(ctx); err != nil {
				return nil, err
			}

			return pg, nil
		default:
			return nil, fmt.Errorf("unknown audit store %q", opts.AuditStore)
		}
	})
}

// WorkersPackage provides the server's background workers: the decision
// recorder's publish loop, the window janitor when the counter store needs
// sweeping, and an in-process audit consumer when the broker is in memory.
func WorkersPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*Workers, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		counters := do.MustInvoke[*Counters](i)
		policies := do.MustInvoke[ratelimit.Policies](i)

		group := messaging.NewConsumerGroup(nil, logger)
		group.Add(do.MustInvoke[*audit.Recorder](i))

		if counters.Sweeper != nil {
			janitor, err := housekeeping.NewJanitor(
				counters.Sweeper, opts.SweepInterval(), opts.Retention(), policies.MaxWindow(), logger)
			if err != nil {
				return nil, err
			}

			group.Add(janitor)
		}

		if opts.Broker == BrokerMemory {
			subscriber := do.MustInvoke[*gochannel.GoChannel](i)
			group.Add(audit.NewConsumer(subscriber, do.MustInvoke[audit.Store](i), logger))
		}

		return &Workers{ConsumerGroup: group}, nil
	})
}

// ConsumerGroupPackage provides the standalone audit consumer over Redis streams.
func ConsumerGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		client := do.MustInvoke[*RedisClient](i)

		subscriber, err := redisstream.NewSubscriber(
			redisstream.SubscriberConfig{
				Client:        client.Client,
				ConsumerGroup: opts.ConsumerGroup,
			},
			messaging.NewZapLoggerAdapter(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("create subscriber: %w", err)
		}

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(audit.NewConsumer(subscriber, do.MustInvoke[audit.Store](i), logger))

		return group, nil
	})
}
