package worker

import (
	"context"

	"pharmacy-store/internal/broker"
	"pharmacy-store/internal/models"
	"pharmacy-store/internal/notify"
	"pharmacy-store/internal/util"

	"go.uber.org/zap"
)

// Publisher receives change signals
type Publisher interface {
	Publish(n notify.Notification)
}

// NotificationWorker relays order events from Kafka into the local hub so
// dashboards connected to this replica see changes made on any replica.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, hub Publisher) *NotificationWorker {
	return &NotificationWorker{
		consumer:     consumer,
		eventHandler: NewRelay(hub),
		logger:       util.Component("notification-worker"),
	}
}

// NewRelay builds an event handler that turns order events into hub signals
func NewRelay(hub Publisher) *broker.EventHandler {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnOrderPlaced(func(_ context.Context, e *models.OrderPlacedEvent) error {
		hub.Publish(notify.Notification{OrderID: e.OrderID, Kind: e.EventType, At: e.Timestamp})
		return nil
	})
	eventHandler.OnOrderStatusChanged(func(_ context.Context, e *models.OrderStatusChangedEvent) error {
		hub.Publish(notify.Notification{OrderID: e.OrderID, Kind: e.EventType, At: e.Timestamp})
		return nil
	})

	return eventHandler
}

// Start blocks consuming events until ctx is cancelled
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop closes the underlying consumer
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}
