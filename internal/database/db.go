// Package database owns the gorm connection, schema and menu seeding.
package database

import (
	"fmt"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres" // Postgres driver (lib/pq)
	_ "github.com/mattn/go-sqlite3"              // SQLite driver

	"maitred/internal/menu"
	"maitred/internal/models"
)

// Open connects to the database with the given gorm dialect
func Open(driver, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == "sqlite3" {
		// SQLite allows a single writer; serialise through one connection
		db.DB().SetMaxOpenConns(1)
	}
	return db, nil
}

// Migrate creates or updates the tables used by the service
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Meal{},
		&models.Ingredient{},
		&models.RecipeIngredient{},
		&models.OrderRecord{},
	).Error
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// SeedMenu inserts the ingredients and meals of a menu file that are not yet
// stored. Existing rows are left as they are, so seeding is idempotent.
func SeedMenu(db *gorm.DB, f *menu.File) error {
	tx := db.Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", tx.Error)
	}

	ingredientIDs := make(map[string]uint, len(f.Ingredients))
	for _, spec := range f.Ingredients {
		ing := models.Ingredient{
			Name:             spec.Name,
			CurrentInventory: spec.Stock,
			Unit:             spec.Unit,
		}
		if err := tx.Where(models.Ingredient{Name: spec.Name}).FirstOrCreate(&ing).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to seed ingredient %q: %w", spec.Name, err)
		}
		ingredientIDs[menu.Normalize(spec.Name)] = ing.ID
	}

	for _, spec := range f.Items {
		var meal models.Meal
		res := tx.Where("name = ?", spec.Name).First(&meal)
		if res.Error == nil {
			continue
		}
		if !res.RecordNotFound() {
			tx.Rollback()
			return fmt.Errorf("failed to look up meal %q: %w", spec.Name, res.Error)
		}

		meal = models.Meal{Name: spec.Name, Price: spec.Price, Category: spec.Category}
		for name, qty := range spec.Recipe {
			meal.Ingredients = append(meal.Ingredients, models.RecipeIngredient{
				IngredientID: ingredientIDs[menu.Normalize(name)],
				Quantity:     qty,
			})
		}
		if err := tx.Create(&meal).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to seed meal %q: %w", spec.Name, err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}
	return nil
}

// LoadCatalog builds a menu catalog from the stored meals
func LoadCatalog(db *gorm.DB) (*menu.Catalog, error) {
	var meals []models.Meal
	if err := db.Order("id").Find(&meals).Error; err != nil {
		return nil, fmt.Errorf("failed to load meals: %w", err)
	}

	items := make([]models.MenuItem, 0, len(meals))
	for _, m := range meals {
		items = append(items, m.MenuItem())
	}
	return menu.NewCatalog(items)
}
