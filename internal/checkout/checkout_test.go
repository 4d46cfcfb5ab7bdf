package checkout

import (
	"context"
	"testing"

	"github.com/jinzhu/gorm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maitred/internal/database"
	"maitred/internal/menu"
	"maitred/internal/models"
)

const testMenu = `
ingredients:
  - {name: bun, unit: pc, stock: 4}
  - {name: patty, unit: pc, stock: 2}
  - {name: syrup, unit: ml, stock: 500}
items:
  - name: Veggie Burger
    price: 9.5
    recipe: {bun: 1, patty: 1}
  - name: Double Burger
    price: 12
    recipe: {bun: 1, patty: 2}
  - name: Coca Cola
    price: 2.5
    recipe: {syrup: 50}
`

type countingObserver struct{ ok, failed int }

func (o *countingObserver) ObserveCheckout(success bool) {
	if success {
		o.ok++
	} else {
		o.failed++
	}
}

func setup(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	f, err := menu.ParseFile([]byte(testMenu))
	require.NoError(t, err)
	require.NoError(t, database.SeedMenu(db, f))
	return db
}

func stock(t *testing.T, db *gorm.DB, name string) float64 {
	t.Helper()
	var ing models.Ingredient
	require.NoError(t, db.Where("name = ?", name).First(&ing).Error)
	return ing.CurrentInventory
}

func TestCheckoutDepletesInventory(t *testing.T) {
	db := setup(t)
	obs := &countingObserver{}
	svc := NewService(db, nil, obs)

	out, err := svc.Checkout(context.Background(), "session-1", []models.CartLine{
		{ItemName: "Veggie Burger", Quantity: 2, Modifiers: []string{"no onion"}},
		{ItemName: "Coca Cola", Quantity: 3},
	})
	require.NoError(t, err)
	require.True(t, out.Success)
	assert.Empty(t, out.UnavailableItems)
	assert.NotEmpty(t, out.OrderID)
	assert.Equal(t, 1, obs.ok)

	assert.Equal(t, 2.0, stock(t, db, "bun"))
	assert.Equal(t, 0.0, stock(t, db, "patty"))
	assert.Equal(t, 350.0, stock(t, db, "syrup"))

	recs, err := svc.History(context.Background(), out.OrderID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "session-1", recs[0].SessionID)
	assert.Equal(t, models.StringSlice{"no onion"}, recs[0].Modifiers)
	assert.Equal(t, 3, recs[1].Quantity)
}

func TestCheckoutIsAllOrNothing(t *testing.T) {
	db := setup(t)
	obs := &countingObserver{}
	svc := NewService(db, nil, obs)

	// Two patties are in stock; one veggie and one double burger need three
	out, err := svc.Checkout(context.Background(), "s", []models.CartLine{
		{ItemName: "Veggie Burger", Quantity: 1},
		{ItemName: "Double Burger", Quantity: 1},
		{ItemName: "Coca Cola", Quantity: 1},
	})
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, []string{"Double Burger", "Veggie Burger"}, out.UnavailableItems)
	assert.Empty(t, out.OrderID)
	assert.Equal(t, 1, obs.failed)

	assert.Equal(t, 2.0, stock(t, db, "patty"))
	assert.Equal(t, 500.0, stock(t, db, "syrup"))
	var count int
	require.NoError(t, db.Model(&models.OrderRecord{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCheckoutUnknownMeal(t *testing.T) {
	svc := NewService(setup(t), nil, nil)
	out, err := svc.Checkout(context.Background(), "s", []models.CartLine{
		{ItemName: "Unicorn Steak", Quantity: 1},
		{ItemName: "Coca Cola", Quantity: 1},
	})
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, []string{"Unicorn Steak"}, out.UnavailableItems)
}

func TestCheckoutEmptyCart(t *testing.T) {
	svc := NewService(setup(t), nil, nil)
	_, err := svc.Checkout(context.Background(), "s", nil)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestDepleteRefusesStaleStock(t *testing.T) {
	db := setup(t)

	var bun, syrup models.Ingredient
	require.NoError(t, db.Where("name = ?", "bun").First(&bun).Error)
	require.NoError(t, db.Where("name = ?", "syrup").First(&syrup).Error)

	// Another checkout took two buns after this one read the stock of four.
	require.NoError(t, db.Model(&bun).Update("current_inventory", 2).Error)

	tx := db.Begin()
	require.NoError(t, tx.Error)
	short, err := deplete(tx, map[uint]*depletion{
		bun.ID:   {ingredient: bun, amount: 3, meals: map[string]bool{"Veggie Burger": true, "Double Burger": true}},
		syrup.ID: {ingredient: syrup, amount: 100, meals: map[string]bool{"Coca Cola": true}},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"Veggie Burger": true, "Double Burger": true}, short)
	require.NoError(t, tx.Rollback().Error)

	assert.Equal(t, 2.0, stock(t, db, "bun"))
	assert.Equal(t, 500.0, stock(t, db, "syrup"))
}

func TestCheckoutNeverDrivesStockNegative(t *testing.T) {
	db := setup(t)
	svc := NewService(db, nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		out, err := svc.Checkout(ctx, "session-1", []models.CartLine{{ItemName: "Veggie Burger", Quantity: 1}})
		require.NoError(t, err)
		assert.Equal(t, i < 2, out.Success, "checkout %d", i)
	}
	assert.Equal(t, 0.0, stock(t, db, "patty"))
	assert.Equal(t, 2.0, stock(t, db, "bun"))
}
