package cmd

import (
	"context"
	"fmt"
	"time"

	"message-notifier/internal/channels"
	"message-notifier/internal/common/camunda"
	"message-notifier/internal/common/config"
	"message-notifier/internal/common/database"
	"message-notifier/internal/common/logger"
	"message-notifier/internal/dispatch"
	"message-notifier/internal/models"
	"message-notifier/internal/queue"
	"message-notifier/internal/store"
)

// Store is everything the commands need from the notification store.
type Store interface {
	Create(ctx context.Context, recipientID, message string) (*models.Notification, error)
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	GetRecipient(ctx context.Context, id string) (*models.Recipient, error)
	ListByStatus(ctx context.Context, status models.Status, limit int) ([]*models.Notification, error)
	MarkFailed(ctx context.Context, id string) error
	MarkSent(ctx context.Context, id string, channel models.Channel, sentAt time.Time) error
	RecordFailedCycle(ctx context.Context, id string, retryCount int, channel models.Channel) error
	Migrate(ctx context.Context) error
}

type backend struct {
	store   Store
	senders *channels.Registry
	policy  dispatch.Policy
	logger  logger.Logger

	// zeebeTrigger connects to the workflow engine on first use.
	zeebeTrigger func(ctx context.Context) (queue.Trigger, func(), error)
	close        func()
}

// backendFactory is replaced in tests.
var backendFactory = newBackend

func newBackend(ctx context.Context) (*backend, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	log := logger.NewStructured(cfg.Logging.Level, "console")

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return nil, err
	}
	if err := pg.Ping(ctx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("postgres unreachable: %w", err)
	}

	policy, err := dispatch.PolicyFromConfig(cfg.Dispatch)
	if err != nil {
		pg.Close()
		return nil, err
	}

	return &backend{
		store:   store.NewPostgresStore(pg),
		senders: channels.NewRegistryFromConfig(ctx, cfg, log),
		policy:  policy,
		logger:  log,
		zeebeTrigger: func(ctx context.Context) (queue.Trigger, func(), error) {
			client, err := camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      10 * time.Second,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			if err != nil {
				return nil, nil, err
			}
			return queue.NewZeebeTrigger(client, cfg.Camunda.DispatchProcessID, log), func() { _ = client.Close() }, nil
		},
		close: func() { _ = pg.Close() },
	}, nil
}

func (b *backend) dispatcher() (*dispatch.Service, error) {
	return dispatch.NewService(b.policy, b.store, b.senders, b.logger)
}

// trigger returns the Zeebe trigger, or with inline an in-process pool that
// runs the first cycle before the command exits. The returned func must be
// called once the trigger is no longer needed.
func (b *backend) trigger(ctx context.Context, inline bool) (queue.Trigger, func(), error) {
	if !inline {
		return b.zeebeTrigger(ctx)
	}

	svc, err := b.dispatcher()
	if err != nil {
		return nil, nil, err
	}
	pool := queue.NewPool(1, 16, timeout, func(ctx context.Context, id string) error {
		_, err := svc.DispatchOnce(ctx, id)
		return err
	}, b.logger)
	return pool, pool.Close, nil
}

func withBackend(fn func(ctx context.Context, b *backend) error) error {
	ctx, cancel := NewCommandContext(context.Background())
	defer cancel()

	b, err := backendFactory(ctx)
	if err != nil {
		return err
	}
	if b.close != nil {
		defer b.close()
	}
	return fn(ctx, b)
}
