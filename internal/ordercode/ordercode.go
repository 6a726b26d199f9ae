// Package ordercode generates the two customer-facing order references: the
// pickup code read aloud at the counter and the sortable order number.
package ordercode

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Alphabet excludes 0/O and 1/I so codes survive being read aloud or handwritten.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	PickupCodeLength  = 6
	OrderNumberPrefix = "ORD-"
)

// PickupCode draws PickupCodeLength symbols uniformly from Alphabet.
func PickupCode() (string, error) {
	buf := make([]byte, PickupCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	// len(Alphabet) is 32, which divides 256, so masking keeps the draw uniform.
	for i, b := range buf {
		buf[i] = Alphabet[b&31]
	}
	return string(buf), nil
}

// NormalizePickupCode upper-cases and trims user input for lookup.
func NormalizePickupCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// IsPickupCode reports whether s is a well-formed pickup code.
func IsPickupCode(s string) bool {
	if len(s) != PickupCodeLength {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune(Alphabet, r) {
			return false
		}
	}
	return true
}

// Generator hands out order numbers of the form ORD-<unix millis>. Numbers are
// strictly increasing within one process even when the clock stalls or steps back.
type Generator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewGenerator returns a Generator reading the wall clock.
func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

// OrderNumber returns the next order number.
func (g *Generator) OrderNumber() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return fmt.Sprintf("%s%d", OrderNumberPrefix, ms)
}
