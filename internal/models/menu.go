package models

import (
	"fmt"
	"strings"
)

// MenuItem represents an orderable dish on the menu
type MenuItem struct {
	Name           string  `json:"name" yaml:"name"`
	NormalizedName string  `json:"-" yaml:"-"`
	Price          float64 `json:"price" yaml:"price"`
	Category       string  `json:"category" yaml:"category"`
}

// MenuCategory represents the category of a menu item
type MenuCategory string

const (
	// Menu categories
	MenuCategoryAppetizer MenuCategory = "appetizer"
	MenuCategoryEntree    MenuCategory = "entree"
	MenuCategorySide      MenuCategory = "side"
	MenuCategoryDessert   MenuCategory = "dessert"
	MenuCategoryBeverage  MenuCategory = "beverage"
	MenuCategorySpecialty MenuCategory = "specialty"
)

// ValidateMenuItem validates a menu item
func ValidateMenuItem(item *MenuItem) error {
	if strings.TrimSpace(item.Name) == "" {
		return fmt.Errorf("menu item name is required")
	}
	if item.Price < 0 {
		return fmt.Errorf("menu item %q price must not be negative", item.Name)
	}
	return nil
}

// IsInCategory checks if the item belongs to a specific category
func (mi *MenuItem) IsInCategory(category MenuCategory) bool {
	return strings.EqualFold(mi.Category, string(category))
}
