package models

import "github.com/jinzhu/gorm"

// Ingredient represents a stocked ingredient in the kitchen inventory
type Ingredient struct {
	gorm.Model
	Name             string `gorm:"unique_index;not null"`
	CurrentInventory float64
	Unit             string
}

// TableName sets the table name for Ingredient
func (Ingredient) TableName() string {
	return "ingredients"
}
