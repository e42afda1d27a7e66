// Package cart holds the shopping cart line items of one storefront session.
package cart

import (
	"sort"
	"sync"

	"github.com/Sternrassler/novamart-client/pkg/catalog"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LineItem is one product in the cart with the price it had when added.
type LineItem struct {
	ID       int             `json:"id"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Subtotal returns Price × Quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Store is a cart keyed by product id. Quantities never drop below 1.
// It is safe for concurrent use.
type Store struct {
	id     uuid.UUID
	mu     sync.RWMutex
	items  map[int]LineItem
	logger zerolog.Logger
}

// New creates an empty cart with a fresh id.
func New(logger zerolog.Logger) *Store {
	id := uuid.New()
	return &Store{
		id:     id,
		items:  make(map[int]LineItem),
		logger: logger.With().Str("cart_id", id.String()).Logger(),
	}
}

// ID returns the cart id.
func (s *Store) ID() uuid.UUID {
	return s.id
}

// AddOrIncrement adds qty of p, or increases the existing line by qty.
// A qty below 1 counts as 1. The price is captured on first add only.
// Products without an id are ignored.
func (s *Store) AddOrIncrement(p catalog.Product, qty int) {
	if p.ID == 0 {
		return
	}
	if qty < 1 {
		qty = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[p.ID]
	if ok {
		item.Quantity += qty
	} else {
		item = LineItem{
			ID:       p.ID,
			Title:    p.Title,
			Price:    decimal.NewFromFloat(p.Price),
			Quantity: qty,
		}
	}
	s.items[p.ID] = item

	s.logger.Debug().
		Int("product_id", p.ID).
		Int("quantity", item.Quantity).
		Bool("new_line", !ok).
		Msg("Cart line added")
}

// Increment adds one to the line for id. Unknown ids are ignored.
func (s *Store) Increment(id int) {
	s.adjust(id, 1)
}

// Decrement removes one from the line for id, stopping at 1. Unknown ids are ignored.
func (s *Store) Decrement(id int) {
	s.adjust(id, -1)
}

func (s *Store) adjust(id, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return
	}
	item.Quantity += delta
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	s.items[id] = item

	s.logger.Debug().
		Int("product_id", id).
		Int("quantity", item.Quantity).
		Msg("Cart line adjusted")
}

// Remove deletes the line for id whatever its quantity.
func (s *Store) Remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return
	}
	delete(s.items, id)
	s.logger.Debug().Int("product_id", id).Msg("Cart line removed")
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[int]LineItem)
	s.logger.Debug().Msg("Cart cleared")
}

// Total returns the sum of price × quantity over all lines.
func (s *Store) Total() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, item := range s.items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Count returns the number of distinct lines, not the total quantity.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Quantity returns the quantity for id, or 0 if it is not in the cart.
func (s *Store) Quantity(id int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items[id].Quantity
}

// Items returns a snapshot of the lines ordered by product id.
func (s *Store) Items() []LineItem {
	s.mu.RLock()
	items := make([]LineItem, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}
