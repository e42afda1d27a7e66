package cart

import (
	"sync"
	"testing"

	"github.com/Sternrassler/novamart-client/pkg/catalog"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(id int, price float64) catalog.Product {
	return catalog.Product{ID: id, Title: "Item", Price: price}
}

func TestNew(t *testing.T) {
	a := New(zerolog.Nop())
	b := New(zerolog.Nop())

	assert.NotEqual(t, uuid.Nil, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 0, a.Count())
	assert.True(t, a.Total().IsZero())
}

func TestAddOrIncrement(t *testing.T) {
	tests := []struct {
		name     string
		adds     []int
		expected int
	}{
		{"single add", []int{1}, 1},
		{"add twice increments", []int{1, 1}, 2},
		{"add with quantity", []int{3, 2}, 5},
		{"zero quantity counts as one", []int{0}, 1},
		{"negative quantity counts as one", []int{-4, 1}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(zerolog.Nop())
			for _, qty := range tt.adds {
				s.AddOrIncrement(item(1, 9.99), qty)
			}
			assert.Equal(t, tt.expected, s.Quantity(1))
			assert.Equal(t, 1, s.Count())
		})
	}
}

func TestAddOrIncrement_IgnoresProductWithoutID(t *testing.T) {
	s := New(zerolog.Nop())

	s.AddOrIncrement(item(0, 5), 1)

	assert.Equal(t, 0, s.Count())
}

func TestAddOrIncrement_PriceSnapshot(t *testing.T) {
	s := New(zerolog.Nop())

	s.AddOrIncrement(item(1, 10), 1)
	s.AddOrIncrement(item(1, 99), 1)

	items := s.Items()
	require.Len(t, items, 1)
	assert.True(t, items[0].Price.Equal(decimal.NewFromInt(10)), "price = %s, want 10", items[0].Price)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestDecrement_FloorsAtOne(t *testing.T) {
	s := New(zerolog.Nop())
	s.AddOrIncrement(item(1, 10), 1)

	s.Decrement(1)
	s.Decrement(1)

	assert.Equal(t, 1, s.Quantity(1))
	assert.Equal(t, 1, s.Count(), "decrement never removes the line")
}

func TestIncrementDecrement(t *testing.T) {
	s := New(zerolog.Nop())
	s.AddOrIncrement(item(1, 10), 1)

	s.Increment(1)
	s.Increment(1)
	assert.Equal(t, 3, s.Quantity(1))

	s.Decrement(1)
	assert.Equal(t, 2, s.Quantity(1))
}

func TestUnknownIDsAreNoOps(t *testing.T) {
	s := New(zerolog.Nop())
	s.AddOrIncrement(item(1, 10), 1)

	s.Increment(2)
	s.Decrement(2)
	s.Remove(2)

	assert.Equal(t, 1, s.Count())
	assert.Equal(t, 0, s.Quantity(2))
}

func TestRemove(t *testing.T) {
	s := New(zerolog.Nop())
	s.AddOrIncrement(item(1, 10), 5)
	s.AddOrIncrement(item(2, 5), 1)

	s.Remove(1)

	assert.Equal(t, 1, s.Count())
	assert.Equal(t, 0, s.Quantity(1))
}

func TestTotal(t *testing.T) {
	s := New(zerolog.Nop())
	s.AddOrIncrement(item(1, 10), 2)
	s.AddOrIncrement(item(2, 5), 1)

	assert.True(t, s.Total().Equal(decimal.NewFromInt(25)), "total = %s, want 25", s.Total())
	assert.Equal(t, 2, s.Count(), "count is distinct lines, not quantity")
}

func TestTotal_NoFloatDrift(t *testing.T) {
	s := New(zerolog.Nop())
	s.AddOrIncrement(item(1, 0.1), 3)
	s.AddOrIncrement(item(2, 0.2), 1)

	assert.Equal(t, "0.5", s.Total().String())
}

func TestItems_SortedByID(t *testing.T) {
	s := New(zerolog.Nop())
	for _, id := range []int{9, 2, 5} {
		s.AddOrIncrement(item(id, 1), 1)
	}

	items := s.Items()

	require.Len(t, items, 3)
	assert.Equal(t, []int{2, 5, 9}, []int{items[0].ID, items[1].ID, items[2].ID})
}

func TestClear(t *testing.T) {
	s := New(zerolog.Nop())
	s.AddOrIncrement(item(1, 10), 1)

	s.Clear()

	assert.Equal(t, 0, s.Count())
	assert.True(t, s.Total().IsZero())
}

func TestConcurrentMutations(t *testing.T) {
	s := New(zerolog.Nop())
	s.AddOrIncrement(item(1, 1), 1)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Increment(1)
		}()
		go func() {
			defer wg.Done()
			_ = s.Total()
		}()
	}
	wg.Wait()

	assert.Equal(t, 51, s.Quantity(1))
}
