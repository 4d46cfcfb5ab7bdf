// Package cart holds the per-conversation order state.
package cart

import (
	"maitred/internal/menu"
	"maitred/internal/models"
)

// Cart is the ordered list of accepted lines for one conversation.
// Line identity is (item name, modifier multiset); two lines never share it.
//
// A Cart is not safe for concurrent use. Sessions serialises access per thread.
type Cart struct {
	lines []models.CartLine
}

// New creates a cart holding copies of the given lines, merged by identity
func New(lines ...models.CartLine) *Cart {
	c := &Cart{}
	for _, l := range lines {
		c.Add(l.ItemName, l.Quantity, l.Modifiers)
	}
	return c
}

// Add merges qty into the line with the same name and modifiers, or appends
// a new line. Name comparison is on the normalized form.
func (c *Cart) Add(name string, qty int, modifiers []string) {
	if i := c.find(name, modifiers, true); i >= 0 {
		c.lines[i].Quantity += qty
		return
	}
	c.lines = append(c.lines, models.CartLine{
		ItemName:  name,
		Quantity:  qty,
		Modifiers: copyModifiers(modifiers),
	})
}

// Decrement subtracts qty from the line matching name and modifiers, falling
// back to the first line with the same name. The quantity may drop to zero or
// below until the next Prune. It reports whether a line was found.
func (c *Cart) Decrement(name string, qty int, modifiers []string) bool {
	i := c.find(name, modifiers, true)
	if i < 0 {
		i = c.find(name, nil, false)
	}
	if i < 0 {
		return false
	}
	c.lines[i].Quantity -= qty
	return true
}

// Prune drops every line whose quantity is not positive and returns how many were removed
func (c *Cart) Prune() int {
	kept := c.lines[:0]
	for _, l := range c.lines {
		if l.Quantity > 0 {
			kept = append(kept, l)
		}
	}
	removed := len(c.lines) - len(kept)
	c.lines = kept
	return removed
}

// Lines returns a copy of the cart contents in insertion order
func (c *Cart) Lines() []models.CartLine {
	out := make([]models.CartLine, len(c.lines))
	for i, l := range c.lines {
		l.Modifiers = copyModifiers(l.Modifiers)
		out[i] = l
	}
	return out
}

// Names returns the distinct item names in the cart, in insertion order.
// This is the candidate pool for deletions.
func (c *Cart) Names() []string {
	seen := make(map[string]bool, len(c.lines))
	out := make([]string, 0, len(c.lines))
	for _, l := range c.lines {
		if !seen[l.ItemName] {
			seen[l.ItemName] = true
			out = append(out, l.ItemName)
		}
	}
	return out
}

// Len returns the number of lines
func (c *Cart) Len() int {
	return len(c.lines)
}

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Clear removes every line
func (c *Cart) Clear() {
	c.lines = nil
}

// Clone returns an independent copy
func (c *Cart) Clone() *Cart {
	return &Cart{lines: c.Lines()}
}

// find returns the index of the first line with the given name, and with
// the same modifiers when matchModifiers is set, or -1
func (c *Cart) find(name string, modifiers []string, matchModifiers bool) int {
	key := menu.Normalize(name)
	for i, l := range c.lines {
		if menu.Normalize(l.ItemName) != key {
			continue
		}
		if matchModifiers && !models.SameModifiers(l.Modifiers, modifiers) {
			continue
		}
		return i
	}
	return -1
}

func copyModifiers(m []string) []string {
	if len(m) == 0 {
		return []string{}
	}
	return append([]string(nil), m...)
}
