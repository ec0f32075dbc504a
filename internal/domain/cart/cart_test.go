package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustItem(t *testing.T, id, price string, quantity int, discount string) LineItem {
	t.Helper()
	item, err := NewLineItem(newTestProduct(id, id, price), quantity, decimal.RequireFromString(discount))
	require.NoError(t, err)
	return item
}

func TestCart_EmptySubtotalIsZero(t *testing.T) {
	c := New(nil)
	assert.Equal(t, 0, c.Len())
	assert.True(t, c.Subtotal().IsZero())
}

func TestCart_SubtotalEqualsSumOfTotals(t *testing.T) {
	c := New(nil)
	items := []LineItem{
		mustItem(t, "p1", "100", 2, "10"),
		mustItem(t, "p2", "19.99", 1, "0"),
		mustItem(t, "p1", "100", 1, "50"), // same product twice is fine
	}
	expected := decimal.Zero
	for _, item := range items {
		c.Add(item)
		expected = expected.Add(item.Total)
	}

	require.Equal(t, len(items), c.Len())
	assert.True(t, expected.Equal(c.Subtotal()), "want %s, got %s", expected, c.Subtotal())
	assert.Equal(t, "279.99", c.Subtotal().StringFixed(2))
}

func TestCart_PreservesInsertionOrder(t *testing.T) {
	c := New(nil)
	c.Add(mustItem(t, "b", "1", 1, "0"))
	c.Add(mustItem(t, "a", "1", 1, "0"))
	c.Add(mustItem(t, "c", "1", 1, "0"))

	got := c.Items()
	require.Len(t, got, 3)
	assert.Equal(t, "b", got[0].Product.ID)
	assert.Equal(t, "a", got[1].Product.ID)
	assert.Equal(t, "c", got[2].Product.ID)
}

func TestCart_Remove(t *testing.T) {
	c := New(nil)
	c.Add(mustItem(t, "p1", "10", 1, "0"))
	c.Add(mustItem(t, "p2", "20", 1, "0"))

	c.Remove(0)
	require.Equal(t, 1, c.Len())
	assert.Equal(t, "p2", c.Items()[0].Product.ID)
}

func TestCart_RemoveOutOfRangeIsIdempotentNoOp(t *testing.T) {
	c := New(nil)
	c.Add(mustItem(t, "p1", "10", 2, "0"))
	before := c.Subtotal()

	for _, idx := range []int{-1, 1, 99} {
		// Twice each: a stale index must stay harmless.
		c.Remove(idx)
		c.Remove(idx)
		assert.Equal(t, 1, c.Len(), "index %d", idx)
		assert.True(t, before.Equal(c.Subtotal()), "index %d", idx)
	}
}

func TestCart_ReplaceAll(t *testing.T) {
	c := New(nil)
	c.Add(mustItem(t, "p1", "10", 1, "0"))

	c.ReplaceAll([]LineItem{
		mustItem(t, "p2", "5", 1, "0"),
		mustItem(t, "p3", "5", 1, "0"),
	})
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, "10.00", c.Subtotal().StringFixed(2))

	c.ReplaceAll(nil)
	assert.Equal(t, 0, c.Len())
	assert.True(t, c.Subtotal().IsZero())
}

func TestCart_ObserverFiresOnEveryMutation(t *testing.T) {
	c := New(nil)
	var calls int
	c.Observe(func() { calls++ })

	c.Add(mustItem(t, "p1", "10", 1, "0"))
	c.Remove(0)
	c.ReplaceAll(nil)
	assert.Equal(t, 3, calls)

	// An ignored out-of-range removal is not a mutation.
	c.Remove(5)
	assert.Equal(t, 3, calls)
}

func TestCart_ItemsReturnsCopy(t *testing.T) {
	c := New(nil)
	c.Add(mustItem(t, "p1", "10", 1, "0"))

	items := c.Items()
	items[0].Product.ID = "mutated"
	assert.Equal(t, "p1", c.Items()[0].Product.ID)
}
