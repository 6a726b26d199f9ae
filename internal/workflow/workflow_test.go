package workflow

import (
	"testing"
	"time"

	"pharmacy-store/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	allowed := map[[2]models.OrderStatus]bool{
		{models.OrderStatusPending, models.OrderStatusPreparing}: true,
		{models.OrderStatusPending, models.OrderStatusCancelled}: true,
		{models.OrderStatusPreparing, models.OrderStatusReady}:   true,
		{models.OrderStatusReady, models.OrderStatusCompleted}:   true,
	}

	for _, from := range models.OrderStatuses {
		for _, to := range models.OrderStatuses {
			want := allowed[[2]models.OrderStatus{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestAllowed(t *testing.T) {
	assert.ElementsMatch(t, []models.OrderStatus{models.OrderStatusPreparing, models.OrderStatusCancelled},
		Allowed(models.OrderStatusPending))
	assert.Equal(t, []models.OrderStatus{models.OrderStatusReady}, Allowed(models.OrderStatusPreparing))
	assert.Empty(t, Allowed(models.OrderStatusCompleted))
	assert.Empty(t, Allowed(models.OrderStatus("shipped")))
}

func TestTransitionHappyPath(t *testing.T) {
	created := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	order := &models.Order{Status: models.OrderStatusPending, UpdatedAt: created}

	steps := []models.OrderStatus{models.OrderStatusPreparing, models.OrderStatusReady, models.OrderStatusCompleted}
	for i, to := range steps {
		at := created.Add(time.Duration(i+1) * time.Minute)
		require.NoError(t, Transition(order, to, at))
		assert.Equal(t, to, order.Status)
		assert.Equal(t, at, order.UpdatedAt)
	}
	assert.True(t, Terminal(order.Status))
}

func TestTransitionRejected(t *testing.T) {
	stamp := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	order := &models.Order{Status: models.OrderStatusReady, UpdatedAt: stamp}

	err := Transition(order, models.OrderStatusPending, stamp.Add(time.Hour))
	require.ErrorIs(t, err, ErrInvalidTransition)

	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, models.OrderStatusReady, te.From)
	assert.Equal(t, models.OrderStatusPending, te.To)
	assert.Equal(t, models.OrderStatusReady, order.Status, "rejected transition must not mutate")
	assert.Equal(t, stamp, order.UpdatedAt)

	for _, terminal := range []models.OrderStatus{models.OrderStatusCompleted, models.OrderStatusCancelled} {
		for _, to := range models.OrderStatuses {
			o := &models.Order{Status: terminal}
			assert.ErrorIs(t, Transition(o, to, stamp), ErrInvalidTransition)
		}
	}
}

func TestNextActions(t *testing.T) {
	assert.Equal(t, []Action{ActionStartPreparing, ActionCancel}, NextActions(models.OrderStatusPending))
	assert.Equal(t, []Action{ActionMarkReady}, NextActions(models.OrderStatusPreparing))
	assert.Equal(t, []Action{ActionConfirmPickup}, NextActions(models.OrderStatusReady))
	assert.Empty(t, NextActions(models.OrderStatusCompleted))
	assert.Empty(t, NextActions(models.OrderStatusCancelled))

	to, ok := TargetOf(ActionConfirmPickup)
	assert.True(t, ok)
	assert.Equal(t, models.OrderStatusCompleted, to)
	_, ok = TargetOf("refund")
	assert.False(t, ok)
}

func sampleOrders() []models.Order {
	return []models.Order{
		{OrderNumber: "ORD-1001", PickupCode: "ABC234", CustomerName: "Maria Lopez", CustomerPhone: "555-0101", Status: models.OrderStatusPending},
		{OrderNumber: "ORD-1002", PickupCode: "XYZ789", CustomerName: "Juan Perez", CustomerPhone: "811-5550", Status: models.OrderStatusReady},
		{OrderNumber: "ORD-1003", PickupCode: "KLM345", CustomerName: "Ana Ruiz", CustomerPhone: "333-1234", Status: models.OrderStatusReady},
		{OrderNumber: "ORD-1004", PickupCode: "QRS678", CustomerName: "Luis Gomez", CustomerPhone: "555-9999", Status: models.OrderStatusCompleted},
	}
}

func numbers(orders []models.Order) []string {
	out := make([]string, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.OrderNumber)
	}
	return out
}

func TestFilterOrders(t *testing.T) {
	orders := sampleOrders()

	tests := []struct {
		name string
		text string
		tab  string
		want []string
	}{
		{"phone across all tabs", "555", TabAll, []string{"ORD-1001", "ORD-1002", "ORD-1004"}},
		{"phone in ready tab", "555", "ready", []string{"ORD-1002"}},
		{"ready tab no text", "", "ready", []string{"ORD-1002", "ORD-1003"}},
		{"name case insensitive", "maria", TabAll, []string{"ORD-1001"}},
		{"pickup code lower case", "klm", TabAll, []string{"ORD-1003"}},
		{"order number", "ord-1004", "", []string{"ORD-1004"}},
		{"no match", "zzz", TabAll, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, numbers(FilterOrders(orders, tt.text, tt.tab)))
		})
	}
}

func TestCountByStatus(t *testing.T) {
	counts := CountByStatus(sampleOrders())
	assert.Equal(t, 1, counts[models.OrderStatusPending])
	assert.Equal(t, 0, counts[models.OrderStatusPreparing])
	assert.Equal(t, 2, counts[models.OrderStatusReady])
	assert.Equal(t, 1, counts[models.OrderStatusCompleted])
	assert.Contains(t, counts, models.OrderStatusCancelled)
}

func TestFindByPickupCode(t *testing.T) {
	orders := sampleOrders()

	found, ok := FindByPickupCode(orders, " xyz789 ")
	require.True(t, ok)
	assert.Equal(t, "ORD-1002", found.OrderNumber)

	_, ok = FindByPickupCode(orders, "QRS678")
	assert.False(t, ok, "completed orders are not open")

	_, ok = FindByPickupCode(orders, "")
	assert.False(t, ok)
}
