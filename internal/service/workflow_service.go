package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pharmacy-store/internal/models"
	"pharmacy-store/internal/notify"
	"pharmacy-store/internal/ordercode"
	"pharmacy-store/internal/util"
	"pharmacy-store/internal/workflow"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultOrderListLimit bounds how many recent orders the dashboard scans.
const DefaultOrderListLimit = 500

// WorkflowService drives orders through the pickup lifecycle for staff
type WorkflowService struct {
	orders    OrderStore
	publisher EventPublisher
	notifier  Notifier
	listLimit int
	now       func() time.Time
	logger    *zap.Logger
}

// NewWorkflowService creates a new workflow service. publisher may be nil.
func NewWorkflowService(orders OrderStore, publisher EventPublisher, notifier Notifier) *WorkflowService {
	return &WorkflowService{
		orders:    orders,
		publisher: publisher,
		notifier:  notifier,
		listLimit: DefaultOrderListLimit,
		now:       time.Now,
		logger:    util.GetLogger(),
	}
}

// OrderDetails is an order with the actions staff may take on it
type OrderDetails struct {
	*models.Order
	NextActions []workflow.Action `json:"next_actions"`
}

func detailsFor(o *models.Order) *OrderDetails {
	actions := workflow.NextActions(o.Status)
	if actions == nil {
		actions = []workflow.Action{}
	}
	return &OrderDetails{Order: o, NextActions: actions}
}

func notificationFor(orderID uuid.UUID, kind string, at time.Time) notify.Notification {
	return notify.Notification{OrderID: orderID, Kind: kind, At: at}
}

// ListOrders returns recent orders matching text and tab, newest first
func (s *WorkflowService) ListOrders(ctx context.Context, text, tab string) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "WorkflowService.ListOrders")
	defer span.End()

	if tab != "" && tab != workflow.TabAll && !models.OrderStatus(tab).Valid() {
		return nil, models.NewValidationError("tab", fmt.Sprintf("unknown status %q", tab))
	}

	orders, err := s.orders.ListOrders(ctx, s.listLimit)
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to list orders: %w", err))
	}
	return workflow.FilterOrders(orders, text, tab), nil
}

// Counts tallies recent orders per status
func (s *WorkflowService) Counts(ctx context.Context) (map[models.OrderStatus]int, error) {
	orders, err := s.orders.ListOrders(ctx, s.listLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return workflow.CountByStatus(orders), nil
}

// GetOrder returns an order with its items and available actions
func (s *WorkflowService) GetOrder(ctx context.Context, id uuid.UUID) (*OrderDetails, error) {
	order, err := s.orders.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return detailsFor(order), nil
}

// FindByPickupCode looks up the open order a customer is collecting.
// Malformed codes simply find nothing.
func (s *WorkflowService) FindByPickupCode(ctx context.Context, code string) (*OrderDetails, error) {
	code = ordercode.NormalizePickupCode(code)
	if !ordercode.IsPickupCode(code) {
		return nil, fmt.Errorf("%w: pickup code %s", models.ErrOrderNotFound, code)
	}

	order, err := s.orders.FindOpenOrderByPickupCode(ctx, code)
	if err != nil {
		return nil, err
	}
	full, err := s.orders.GetOrderByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return detailsFor(full), nil
}

// Transition moves an order to status to. The current status is re-read and
// checked against the workflow, and the write only lands if nobody changed
// the order in between.
func (s *WorkflowService) Transition(ctx context.Context, id uuid.UUID, to models.OrderStatus) (*OrderDetails, error) {
	ctx, span := util.StartSpan(ctx, "WorkflowService.Transition")
	defer span.End()

	if !to.Valid() {
		return nil, models.NewValidationError("status", fmt.Sprintf("unknown status %q", to))
	}

	current, err := s.orders.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := current.Status

	if err := workflow.Validate(from, to); err != nil {
		util.OrderTransitionsRejectedTotal.WithLabelValues("invalid").Inc()
		s.logger.Info("Rejected status change",
			zap.String("order_id", id.String()),
			zap.String("from", string(from)),
			zap.String("to", string(to)))
		return nil, err
	}

	updated, err := s.orders.UpdateOrderStatus(ctx, id, from, to)
	if err != nil {
		if errors.Is(err, models.ErrConcurrentUpdate) {
			util.OrderTransitionsRejectedTotal.WithLabelValues("concurrent").Inc()
		}
		return nil, util.RecordError(span, err)
	}
	if len(updated.Items) == 0 {
		updated.Items = current.Items
	}

	util.OrderTransitionsTotal.WithLabelValues(string(to)).Inc()
	s.logger.Info("Order status changed",
		zap.String("order_id", id.String()),
		zap.String("order_number", updated.OrderNumber),
		zap.String("from", string(from)),
		zap.String("to", string(to)))

	s.announce(ctx, updated.ID, from, to)
	return detailsFor(updated), nil
}

// ApplyAction performs a named staff action
func (s *WorkflowService) ApplyAction(ctx context.Context, id uuid.UUID, action workflow.Action) (*OrderDetails, error) {
	to, ok := workflow.TargetOf(action)
	if !ok {
		return nil, models.NewValidationError("action", fmt.Sprintf("unknown action %q", action))
	}
	return s.Transition(ctx, id, to)
}

// Subscribe streams change signals until ctx ends. Receivers re-read the
// orders they display on every signal.
func (s *WorkflowService) Subscribe(ctx context.Context) <-chan notify.Notification {
	return s.notifier.Subscribe(ctx)
}

func (s *WorkflowService) announce(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) {
	now := s.now()
	if s.notifier != nil {
		s.notifier.Publish(notificationFor(id, models.EventTypeOrderStatusChanged, now))
	}
	if s.publisher == nil {
		return
	}

	event := &models.OrderStatusChangedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderStatusChanged, now),
		OrderID:   id,
		From:      from,
		To:        to,
	}
	if err := s.publisher.PublishOrderStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
	}
}
