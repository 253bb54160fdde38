package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"finca/internal/core"
)

// Collection is a session-scoped, insertion-ordered set of records.
// All operations complete synchronously.
type Collection[R core.Identifiable[R]] struct {
	mu    sync.Mutex
	items []R
	newID func() string
}

func NewCollection[R core.Identifiable[R]](newID func() string) *Collection[R] {
	return &Collection[R]{newID: newID}
}

// Insert appends r, assigning an id if r has none.
func (c *Collection[R]) Insert(_ context.Context, r R) (R, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r.RecordID() == "" {
		r = r.WithID(c.newID())
	}
	if c.indexOf(r.RecordID()) >= 0 {
		var zero R
		return zero, fmt.Errorf("duplicate id %q", r.RecordID())
	}
	c.items = append(c.items, r)
	return r, nil
}

func (c *Collection[R]) Get(_ context.Context, id string) (R, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(id)
	if i < 0 {
		var zero R
		return zero, fmt.Errorf("get %q: %w", id, core.ErrNotFound)
	}
	return c.items[i], nil
}

// Delete removes the record with id or reports core.ErrNotFound.
func (c *Collection[R]) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(id)
	if i < 0 {
		return fmt.Errorf("delete %q: %w", id, core.ErrNotFound)
	}
	c.items = slices.Delete(c.items, i, i+1)
	return nil
}

// List returns a copy of the records in insertion order.
func (c *Collection[R]) List(_ context.Context) ([]R, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items), nil
}

// Update replaces the record with id by fn's result. The id must not change.
func (c *Collection[R]) Update(_ context.Context, id string, fn func(R) R) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(id)
	if i < 0 {
		return fmt.Errorf("update %q: %w", id, core.ErrNotFound)
	}
	c.items[i] = fn(c.items[i]).WithID(id)
	return nil
}

func (c *Collection[R]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Collection[R]) indexOf(id string) int {
	return slices.IndexFunc(c.items, func(r R) bool { return r.RecordID() == id })
}
