// Package workflow defines the pickup order lifecycle:
//
//	pending -> preparing -> ready -> completed
//	pending -> cancelled
//
// completed and cancelled are terminal.
package workflow

import (
	"errors"
	"fmt"
	"time"

	"pharmacy-store/internal/models"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// TransitionError carries the rejected edge.
type TransitionError struct {
	From models.OrderStatus
	To   models.OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:   {models.OrderStatusPreparing, models.OrderStatusCancelled},
	models.OrderStatusPreparing: {models.OrderStatusReady},
	models.OrderStatusReady:     {models.OrderStatusCompleted},
}

// Action is a staff command on the cashier dashboard.
type Action string

const (
	ActionStartPreparing Action = "start_preparing"
	ActionCancel         Action = "cancel"
	ActionMarkReady      Action = "mark_ready"
	ActionConfirmPickup  Action = "confirm_pickup"
)

// Actions maps each staff action to the status it moves an order into.
var Actions = map[Action]models.OrderStatus{
	ActionStartPreparing: models.OrderStatusPreparing,
	ActionCancel:         models.OrderStatusCancelled,
	ActionMarkReady:      models.OrderStatusReady,
	ActionConfirmPickup:  models.OrderStatusCompleted,
}

// Allowed returns the statuses reachable from from in one step.
func Allowed(from models.OrderStatus) []models.OrderStatus {
	return transitions[from]
}

// CanTransition reports whether from -> to is an edge of the workflow.
func CanTransition(from, to models.OrderStatus) bool {
	for _, next := range Allowed(from) {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func Terminal(s models.OrderStatus) bool {
	return len(transitions[s]) == 0
}

// Validate returns a *TransitionError when from -> to is not allowed.
func Validate(from, to models.OrderStatus) error {
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

// Transition moves order to status to and stamps UpdatedAt.
func Transition(order *models.Order, to models.OrderStatus, now time.Time) error {
	if err := Validate(order.Status, to); err != nil {
		return err
	}
	order.Status = to
	order.UpdatedAt = now
	return nil
}

// NextActions lists the staff actions available for an order in status s, in
// the order the dashboard offers them.
func NextActions(s models.OrderStatus) []Action {
	var out []Action
	for _, a := range []Action{ActionStartPreparing, ActionMarkReady, ActionConfirmPickup, ActionCancel} {
		if CanTransition(s, Actions[a]) {
			out = append(out, a)
		}
	}
	return out
}

// TargetOf resolves a staff action to its target status.
func TargetOf(a Action) (models.OrderStatus, bool) {
	s, ok := Actions[a]
	return s, ok
}
