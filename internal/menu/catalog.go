// Package menu holds the canonical, per-session immutable list of orderable items.
package menu

import (
	"errors"
	"fmt"
	"strings"

	"maitred/internal/models"
)

// ErrDuplicateItem is returned when two items normalize to the same name
var ErrDuplicateItem = errors.New("duplicate menu item")

// Catalog is the read-only menu used as the matching pool for additions.
// Refreshing the menu means building a new Catalog.
type Catalog struct {
	items  []models.MenuItem
	byName map[string]int
	names  []string
}

// Normalize lowercases a name, trims it and collapses inner whitespace.
// The result is the join key for exact matching.
func Normalize(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// NewCatalog validates the items and builds a catalog preserving their order
func NewCatalog(items []models.MenuItem) (*Catalog, error) {
	c := &Catalog{
		items:  make([]models.MenuItem, 0, len(items)),
		byName: make(map[string]int, len(items)),
		names:  make([]string, 0, len(items)),
	}

	for _, item := range items {
		item.Name = strings.TrimSpace(item.Name)
		if err := models.ValidateMenuItem(&item); err != nil {
			return nil, err
		}
		item.NormalizedName = Normalize(item.Name)
		if _, exists := c.byName[item.NormalizedName]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateItem, item.Name)
		}
		c.byName[item.NormalizedName] = len(c.items)
		c.items = append(c.items, item)
		c.names = append(c.names, item.Name)
	}

	return c, nil
}

// LookupExact returns the item whose normalized name equals normalized
func (c *Catalog) LookupExact(normalized string) (models.MenuItem, bool) {
	idx, ok := c.byName[normalized]
	if !ok {
		return models.MenuItem{}, false
	}
	return c.items[idx], true
}

// Items returns a copy of all menu items in catalog order
func (c *Catalog) Items() []models.MenuItem {
	out := make([]models.MenuItem, len(c.items))
	copy(out, c.items)
	return out
}

// Names returns the canonical display names in catalog order
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Len returns the number of items on the menu
func (c *Catalog) Len() int {
	return len(c.items)
}
