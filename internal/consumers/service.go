package consumers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"seatkeeper/internal/cache"
	"seatkeeper/internal/config"
	"seatkeeper/internal/database"
	"seatkeeper/internal/messaging"
	"seatkeeper/internal/models"
	"seatkeeper/internal/repository"
	"seatkeeper/internal/service"

	"github.com/nats-io/stan.go"
)

const queueGroup = "consumers"

// ConsumerService runs the background side of the engine: broker consumers
// for bookings and refunds, the intent worker and the expiry reconciler.
type ConsumerService struct {
	db       *database.DB
	store    *cache.HoldStore
	nats     *messaging.NATSClient
	rabbit   *messaging.RabbitClient
	services *service.Services
	handlers *Handlers

	subs   []stan.Subscription
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewConsumerService(cfg *config.Config) (*ConsumerService, error) {
	// Connect to database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}

	store, err := cache.NewHoldStore(cfg.Redis)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	var natsClient *messaging.NATSClient
	var mirrors []messaging.SeatEventPublisher
	if cfg.NATS.Enabled {
		natsClient, err = messaging.NewNATSClient(cfg.NATS)
		if err != nil {
			_ = store.Close()
			_ = db.Close()
			return nil, err
		}
		mirrors = append(mirrors, natsClient)
	}

	services := service.NewServices(service.Deps{
		Repos:  repository.NewRepositories(db),
		Store:  store,
		Events: messaging.NewFanout(store, mirrors...),
	}, cfg)

	return &ConsumerService{
		db:       db,
		store:    store,
		nats:     natsClient,
		rabbit:   messaging.NewRabbitClient(cfg.RabbitMQ),
		services: services,
		handlers: NewHandlers(services.Reservations, services.Holds),
	}, nil
}

// Services exposes the engine services for scheduled jobs.
func (cs *ConsumerService) Services() *service.Services {
	return cs.services
}

func (cs *ConsumerService) Start(ctx context.Context) error {
	slog.Info("Starting consumers...")
	ctx, cs.cancel = context.WithCancel(ctx)

	inbound := map[string]messaging.DeliveryHandler{
		models.QueueBookingConfirmed: cs.handlers.HandleBookingConfirmed,
		models.QueueRefundProcessed:  cs.handlers.HandleRefundProcessed,
	}

	for queue, h := range inbound {
		cs.rabbit.Handle(queue, h)
	}
	cs.rabbit.RetryWhen(func(err error) bool { return !Permanent(err) })
	cs.goRun(func() { cs.rabbit.Run(ctx) })

	// The same events may also arrive over NATS Streaming
	if cs.nats != nil {
		for subject, h := range inbound {
			sub, err := cs.nats.SubscribeQueue(subject, queueGroup, NATSHandler(ctx, subject, h))
			if err != nil {
				return err
			}
			cs.subs = append(cs.subs, sub)
		}
	}

	intents, err := cs.store.SubscribeIntents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to seat intents: %w", err)
	}
	cs.goRun(func() { cs.handlers.RunIntents(ctx, intents) })

	expired, err := cs.store.SubscribeExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to key expiry: %w", err)
	}
	cs.goRun(func() { cs.services.Expiry.Run(ctx, expired) })

	slog.Info("All consumers started successfully")
	return nil
}

func (cs *ConsumerService) goRun(fn func()) {
	cs.wg.Add(1)
	go func() {
		defer cs.wg.Done()
		fn()
	}()
}

func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")

	for _, sub := range cs.subs {
		if err := sub.Close(); err != nil {
			slog.Warn("Error closing subscription", "error", err)
		}
	}
	if cs.cancel != nil {
		cs.cancel()
	}

	done := make(chan struct{})
	go func() {
		cs.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("Consumers did not stop in time")
	}

	if cs.nats != nil {
		if err := cs.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if err := cs.store.Close(); err != nil {
		slog.Error("Error closing Redis connection", "error", err)
	}

	if cs.db != nil {
		if err := cs.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
