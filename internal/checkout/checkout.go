// Package checkout confirms a cart: it records the order and depletes the
// ingredient inventory in one transaction.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"

	"maitred/internal/menu"
	"maitred/internal/models"
)

// ErrEmptyCart is returned when there is nothing to check out
var ErrEmptyCart = errors.New("cart is empty")

// Outcome reports the result of a checkout attempt
type Outcome struct {
	Success          bool     `json:"success"`
	UnavailableItems []string `json:"unavailable_items"`
	OrderID          string   `json:"order_id,omitempty"`
}

// Observer is notified of each checkout attempt
type Observer interface {
	ObserveCheckout(success bool)
}

// Service performs checkouts against the inventory database
type Service struct {
	db       *gorm.DB
	logger   *slog.Logger
	observer Observer
}

// NewService creates a checkout service. observer may be nil.
func NewService(db *gorm.DB, logger *slog.Logger, observer Observer) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, logger: logger, observer: observer}
}

// depletion is the total amount of one ingredient an order consumes
type depletion struct {
	ingredient models.Ingredient
	amount     float64
	meals      map[string]bool
}

// Checkout places the order for the given cart lines. If any meal is unknown
// or any ingredient would go below zero, nothing is written and the outcome
// lists the affected items.
func (s *Service) Checkout(ctx context.Context, sessionID string, lines []models.CartLine) (*Outcome, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	tx := s.db.BeginTx(ctx, nil)
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to begin checkout: %w", tx.Error)
	}
	defer func() {
		// no-op once committed
		tx.Rollback()
	}()

	meals, unavailable, err := loadMeals(tx, lines)
	if err != nil {
		return nil, err
	}

	totals := make(map[uint]*depletion)
	for _, l := range lines {
		meal, ok := meals[menu.Normalize(l.ItemName)]
		if !ok {
			continue
		}
		for _, ri := range meal.Ingredients {
			d, ok := totals[ri.IngredientID]
			if !ok {
				d = &depletion{meals: make(map[string]bool)}
				if err := forUpdate(tx).First(&d.ingredient, ri.IngredientID).Error; err != nil {
					return nil, fmt.Errorf("failed to load ingredient %d: %w", ri.IngredientID, err)
				}
				totals[ri.IngredientID] = d
			}
			d.amount += float64(l.Quantity) * ri.Quantity
			d.meals[meal.Name] = true
		}
	}

	for _, d := range totals {
		if d.ingredient.CurrentInventory-d.amount < 0 {
			s.logger.Warn("checkout: insufficient inventory",
				slog.String("ingredient", d.ingredient.Name),
				slog.Float64("stock", d.ingredient.CurrentInventory),
				slog.Float64("required", d.amount),
			)
			for name := range d.meals {
				unavailable[name] = true
			}
		}
	}

	if len(unavailable) > 0 {
		out := &Outcome{UnavailableItems: sortedKeys(unavailable)}
		s.observe(false)
		return out, nil
	}

	short, err := deplete(tx, totals)
	if err != nil {
		return nil, err
	}
	if len(short) > 0 {
		// stock moved between the read and the update; the deferred rollback undoes partial depletion
		s.logger.Warn("checkout: inventory changed during checkout", slog.Int("meals", len(short)))
		s.observe(false)
		return &Outcome{UnavailableItems: sortedKeys(short)}, nil
	}

	orderID := uuid.NewString()
	for _, l := range lines {
		meal := meals[menu.Normalize(l.ItemName)]
		rec := models.OrderRecord{
			OrderID:   orderID,
			SessionID: sessionID,
			MealID:    meal.ID,
			ItemName:  meal.Name,
			Quantity:  l.Quantity,
			Modifiers: models.StringSlice(l.Modifiers),
		}
		if err := tx.Create(&rec).Error; err != nil {
			return nil, fmt.Errorf("failed to record order line %q: %w", l.ItemName, err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit checkout: %w", err)
	}

	s.logger.Info("checkout: order placed",
		slog.String("order_id", orderID),
		slog.String("session_id", sessionID),
		slog.Int("lines", len(lines)),
	)
	s.observe(true)
	return &Outcome{Success: true, UnavailableItems: []string{}, OrderID: orderID}, nil
}

// History returns the recorded lines of an order
func (s *Service) History(ctx context.Context, orderID string) ([]models.OrderRecord, error) {
	var recs []models.OrderRecord
	if err := s.db.Where("order_id = ?", orderID).Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	return recs, nil
}

// loadMeals fetches the meals named by the cart, with their recipes, keyed by
// normalized name. Names with no stored meal are returned as unavailable.
func loadMeals(tx *gorm.DB, lines []models.CartLine) (map[string]models.Meal, map[string]bool, error) {
	names := make([]string, 0, len(lines))
	for _, l := range lines {
		names = append(names, l.ItemName)
	}

	var found []models.Meal
	if err := tx.Preload("Ingredients").Where("name IN (?)", names).Find(&found).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to load meals: %w", err)
	}

	meals := make(map[string]models.Meal, len(found))
	for _, m := range found {
		meals[menu.Normalize(m.Name)] = m
	}

	unavailable := make(map[string]bool)
	for _, l := range lines {
		if _, ok := meals[menu.Normalize(l.ItemName)]; !ok {
			unavailable[l.ItemName] = true
		}
	}
	return meals, unavailable, nil
}

// forUpdate locks the rows read through the returned handle on dialects that
// support row locks. SQLite serialises writers on its single connection.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialect().GetName() == "postgres" {
		return tx.Set("gorm:query_option", "FOR UPDATE")
	}
	return tx
}

// deplete subtracts each total from its ingredient, but only where the stock
// still covers it. Meals using an ingredient that could not be depleted are
// returned; the caller must then roll back.
func deplete(tx *gorm.DB, totals map[uint]*depletion) (map[string]bool, error) {
	short := make(map[string]bool)
	for id, d := range totals {
		res := tx.Model(&models.Ingredient{}).
			Where("id = ? AND current_inventory >= ?", id, d.amount).
			Update("current_inventory", gorm.Expr("current_inventory - ?", d.amount))
		if res.Error != nil {
			return nil, fmt.Errorf("failed to deplete %q: %w", d.ingredient.Name, res.Error)
		}
		if res.RowsAffected == 0 {
			for name := range d.meals {
				short[name] = true
			}
		}
	}
	return short, nil
}

func (s *Service) observe(success bool) {
	if s.observer != nil {
		s.observer.ObserveCheckout(success)
	}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
