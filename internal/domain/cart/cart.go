package cart

import (
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Cart is an ordered collection of line items for the active
// composition session. Insertion order is display order; the same
// product may appear in several items. The cart holds plain data: the
// subtotal is recomputed on every read instead of being cached.
type Cart struct {
	mu       sync.Mutex
	items    []LineItem
	observer func()
	lg       *zap.Logger
}

// New returns an empty cart. The logger is used only to record ignored
// operations such as out-of-range removals.
func New(lg *zap.Logger) *Cart {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Cart{lg: lg}
}

// Observe registers fn to run synchronously after every mutation. The
// rendering layer is the only expected observer; a second call replaces
// the first.
func (c *Cart) Observe(fn func()) {
	c.mu.Lock()
	c.observer = fn
	c.mu.Unlock()
}

// Add appends an item to the end of the cart. The item is assumed
// pre-validated by NewLineItem.
func (c *Cart) Add(item LineItem) {
	c.mu.Lock()
	c.items = append(c.items, item)
	fn := c.observer
	c.mu.Unlock()
	notify(fn)
}

// Remove deletes the item at the given position. An out-of-range index
// is ignored: the UI may hold a stale index after a prior removal, and
// a no-op keeps it resilient.
func (c *Cart) Remove(index int) {
	c.mu.Lock()
	if index < 0 || index >= len(c.items) {
		c.lg.Debug("ignoring out-of-range cart removal",
			zap.Int("index", index), zap.Int("len", len(c.items)))
		c.mu.Unlock()
		return
	}
	c.items = append(c.items[:index], c.items[index+1:]...)
	fn := c.observer
	c.mu.Unlock()
	notify(fn)
}

// ReplaceAll swaps the full item list, used when loading an existing
// order for view or clearing after submission.
func (c *Cart) ReplaceAll(items []LineItem) {
	c.mu.Lock()
	c.items = append([]LineItem(nil), items...)
	fn := c.observer
	c.mu.Unlock()
	notify(fn)
}

// Items returns a copy of the item list in insertion order.
func (c *Cart) Items() []LineItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]LineItem(nil), c.items...)
}

// Len returns the number of items.
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Subtotal sums the item totals. An empty cart yields zero.
func (c *Cart) Subtotal() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	sum := decimal.Zero
	for _, item := range c.items {
		sum = sum.Add(item.Total)
	}
	return sum
}

func notify(fn func()) {
	if fn != nil {
		fn()
	}
}
