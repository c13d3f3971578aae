package example

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Work order statuses.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Item is one part or task line of a work order.
type Item struct {
	Name string `json:"name"`
	Qty  string `json:"qty,omitempty"`
}

// WorkOrder is a maintenance job on a plant.
type WorkOrder struct {
	ID        string
	Title     string
	Plant     string
	Status    string
	Items     []Item
	CreatedAt time.Time

	seq int
}

// Store is an in-memory work order store.
type Store struct {
	mu     sync.RWMutex
	orders map[string]*WorkOrder
	nextID int
}

// NewStore creates a store with sample data.
func NewStore() *Store {
	s := &Store{
		orders: make(map[string]*WorkOrder),
		nextID: 100,
	}

	s.Add("Replace pump seal", "P1", []Item{{Name: "Seal kit", Qty: "1"}})
	s.Add("Inspect boiler relief valve", "P2", nil)
	s.Add("Lubricate conveyor bearings", "P1", []Item{{Name: "Grease", Qty: "2"}, {Name: "Rag"}})

	return s
}

// Add creates a work order and returns it.
func (s *Store) Add(title, plant string, items []Item) *WorkOrder {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := fmt.Sprintf("W%d", s.nextID)
	s.nextID++

	wo := &WorkOrder{
		ID:        id,
		Title:     title,
		Plant:     plant,
		Status:    StatusOpen,
		Items:     items,
		CreatedAt: time.Now(),
		seq:       s.nextID,
	}
	s.orders[id] = wo
	return wo
}

// Get returns a copy of a work order.
func (s *Store) Get(id string) (WorkOrder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wo, ok := s.orders[id]
	if !ok {
		return WorkOrder{}, false
	}
	return *wo, true
}

// Close marks a work order closed.
func (s *Store) Close(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	wo, ok := s.orders[id]
	if !ok {
		return false
	}
	wo.Status = StatusClosed
	return true
}

// Delete removes a work order.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return false
	}
	delete(s.orders, id)
	return true
}

// List returns all work orders, newest first.
func (s *Store) List() []WorkOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]WorkOrder, 0, len(s.orders))
	for _, wo := range s.orders {
		out = append(out, *wo)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].seq > out[j].seq
	})
	return out
}

// Stats counts work orders by status.
func (s *Store) Stats() (open, closed int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, wo := range s.orders {
		if wo.Status == StatusClosed {
			closed++
		} else {
			open++
		}
	}
	return open, closed
}
