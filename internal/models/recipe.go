package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/jinzhu/gorm"
)

// StringSlice represents a slice of strings that can be stored in the database
type StringSlice []string

// Value converts the slice to a JSON string for storage
func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan converts the database value back to a slice
func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = StringSlice{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return errors.New("unsupported type for StringSlice")
	}
}

// Meal is the persisted form of a menu item
type Meal struct {
	gorm.Model
	Name        string `gorm:"unique_index;not null"`
	Price       float64
	Category    string
	Ingredients []RecipeIngredient `gorm:"foreignkey:MealID"`
}

// TableName sets the table name for Meal
func (Meal) TableName() string {
	return "meals"
}

// MenuItem converts the persisted meal into its catalog form
func (m Meal) MenuItem() MenuItem {
	return MenuItem{Name: m.Name, Price: m.Price, Category: m.Category}
}

// RecipeIngredient is the amount of one ingredient consumed by one serving of a meal
type RecipeIngredient struct {
	gorm.Model
	MealID       uint `gorm:"index"`
	IngredientID uint `gorm:"index"`
	Quantity     float64
}

// TableName sets the table name for RecipeIngredient
func (RecipeIngredient) TableName() string {
	return "recipe_ingredients"
}
