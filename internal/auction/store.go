package auction

import (
	"fmt"
)

// Store errors
var (
	ErrDuplicateItem = fmt.Errorf("item already exists")
	ErrUnknownItem   = fmt.Errorf("item does not exist")
)

// Store is the in-memory registry of auction items.
//
// Store does no locking of its own. Every call must happen while the caller
// holds the Engine lock. Records go in and out by value, so no caller ever
// holds a writable alias of a stored item.
type Store struct {
	order []string
	items map[string]Item
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		items: make(map[string]Item),
	}
}

// Add registers a new item. Ids are never reused.
func (s *Store) Add(item Item) error {
	if _, ok := s.items[item.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateItem, item.ID)
	}
	s.items[item.ID] = item.clone()
	s.order = append(s.order, item.ID)
	return nil
}

// Get returns a copy of the item with the given id
func (s *Store) Get(id string) (Item, bool) {
	item, ok := s.items[id]
	if !ok {
		return Item{}, false
	}
	return item.clone(), true
}

// All returns a copy of every item in insertion order
func (s *Store) All() []Item {
	out := make([]Item, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id].clone())
	}
	return out
}

// Replace overwrites the stored record of an existing item in one step
func (s *Store) Replace(id string, item Item) error {
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	item.ID = id
	s.items[id] = item.clone()
	return nil
}

// Len returns the number of items
func (s *Store) Len() int {
	return len(s.order)
}
