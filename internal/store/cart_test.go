package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/safar/resale-market/internal/database"
	"github.com/safar/resale-market/internal/store"
	"github.com/shopspring/decimal"
)

func TestAddToCart(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seller := newSeller(t, db, "seller1")
	customer := newCustomer(t, db, "buyer1")
	scarf := newProduct(t, db, seller, "Scarf", "12.50", 2)

	first, err := store.AddToCart(ctx, db, customer, scarf.ID)
	if err != nil {
		t.Fatalf("First add: %v", err)
	}
	if !first.Created || first.Item.Quantity != 1 {
		t.Errorf("Expected a new line with quantity 1, got %+v", first)
	}

	second, err := store.AddToCart(ctx, db, customer, scarf.ID)
	if err != nil {
		t.Fatalf("Second add: %v", err)
	}
	if second.Created || second.AtCapacity || second.Item.Quantity != 2 {
		t.Errorf("Expected quantity 2 on the same line, got %+v", second)
	}
	if second.Item.ID != first.Item.ID {
		t.Errorf("Expected one line, got ids %d and %d", first.Item.ID, second.Item.ID)
	}

	third, err := store.AddToCart(ctx, db, customer, scarf.ID)
	if err != nil {
		t.Fatalf("Third add: %v", err)
	}
	if !third.AtCapacity || third.Item.Quantity != 2 {
		t.Errorf("Expected the line to stay at capacity 2, got %+v", third)
	}

	cart, err := store.GetCart(ctx, db, customer)
	if err != nil {
		t.Fatalf("Get cart: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("Expected 1 line, got %d", len(cart.Items))
	}
	if want := decimal.RequireFromString("25.00"); !cart.TotalPrice().Equal(want) {
		t.Errorf("Expected total %s, got %s", want, cart.TotalPrice())
	}

	stats, err := store.GetProductAnalytics(ctx, db, scarf.ID)
	if err != nil {
		t.Fatalf("Get analytics: %v", err)
	}
	if stats.TimesAddedToCart != 2 {
		t.Errorf("Expected 2 cart adds, got %d", stats.TimesAddedToCart)
	}
}

func TestAddToCartUnavailable(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seller := newSeller(t, db, "seller1")
	customer := newCustomer(t, db, "buyer1")

	hidden := productInput("Hidden", "5.00", 3)
	hidden.IsActive = false
	inactive, err := store.CreateProduct(ctx, db, seller, hidden)
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}
	empty := newProduct(t, db, seller, "Empty", "5.00", 0)

	tests := []struct {
		name      string
		productID int64
		want      error
	}{
		{"inactive", inactive.ID, database.ErrProductUnavailable},
		{"out of stock", empty.ID, database.ErrProductUnavailable},
		{"missing", 999999, database.ErrProductNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.AddToCart(ctx, db, customer, tt.productID)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestUpdateCartItem(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seller := newSeller(t, db, "seller1")
	customer := newCustomer(t, db, "buyer1")
	other := newCustomer(t, db, "buyer2")
	hat := newProduct(t, db, seller, "Hat", "8.00", 3)
	itemID := putInCart(t, db, customer, hat.ID, 1)

	result, err := store.UpdateCartItem(ctx, db, customer, itemID, 3)
	if err != nil {
		t.Fatalf("Update to 3: %v", err)
	}
	if result.OverStock || result.Item.Quantity != 3 {
		t.Errorf("Expected quantity 3, got %+v", result)
	}

	result, err = store.UpdateCartItem(ctx, db, customer, itemID, 4)
	if err != nil {
		t.Fatalf("Update to 4: %v", err)
	}
	if !result.OverStock || result.Available != 3 || result.Item.Quantity != 3 {
		t.Errorf("Expected an over-stock refusal leaving 3, got %+v", result)
	}

	if _, err := store.UpdateCartItem(ctx, db, other, itemID, 1); !errors.Is(err, database.ErrCartItemNotFound) {
		t.Errorf("Expected ErrCartItemNotFound for another customer, got %v", err)
	}

	result, err = store.UpdateCartItem(ctx, db, customer, itemID, 0)
	if err != nil {
		t.Fatalf("Update to 0: %v", err)
	}
	if !result.Removed {
		t.Errorf("Expected the line to be removed, got %+v", result)
	}

	if err := store.RemoveFromCart(ctx, db, customer, itemID); !errors.Is(err, database.ErrCartItemNotFound) {
		t.Errorf("Expected ErrCartItemNotFound after removal, got %v", err)
	}
}

func TestGetOrCreateCartConcurrent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	customer := newCustomer(t, db, "buyer1")

	const workers = 10
	ids := make([]int64, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cart, err := store.GetOrCreateCart(ctx, db, customer)
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = cart.ID
		}(i)
	}
	wg.Wait()

	for i := range ids {
		if errs[i] != nil {
			t.Fatalf("Worker %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Errorf("Worker %d got cart %d, want %d", i, ids[i], ids[0])
		}
	}
}

func TestGetCartDoesNotRewriteCart(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	customer := newCustomer(t, db, "buyer1")

	cart, err := store.GetOrCreateCart(ctx, db, customer)
	if err != nil {
		t.Fatalf("Create cart: %v", err)
	}

	var before string
	if err := db.QueryRowContext(ctx, `SELECT xmin::text FROM carts WHERE id = $1`, cart.ID).Scan(&before); err != nil {
		t.Fatalf("Read xmin: %v", err)
	}

	for i := 0; i < 3; i++ {
		again, err := store.GetCart(ctx, db, customer)
		if err != nil {
			t.Fatalf("Get cart: %v", err)
		}
		if again.ID != cart.ID {
			t.Fatalf("Expected cart %d, got %d", cart.ID, again.ID)
		}
	}

	var after string
	if err := db.QueryRowContext(ctx, `SELECT xmin::text FROM carts WHERE id = $1`, cart.ID).Scan(&after); err != nil {
		t.Fatalf("Read xmin: %v", err)
	}
	if after != before {
		t.Errorf("Expected reading the cart to leave the row untouched, xmin %s -> %s", before, after)
	}
}

func TestCartLinePriceFollowsProduct(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seller := newSeller(t, db, "seller1")
	customer := newCustomer(t, db, "buyer1")
	hat := newProduct(t, db, seller, "Hat", "8.00", 3)

	added, err := store.AddToCart(ctx, db, customer, hat.ID)
	if err != nil {
		t.Fatalf("Add hat: %v", err)
	}
	if !added.Item.Price.Equal(decimal.RequireFromString("8.00")) {
		t.Fatalf("Expected line price 8.00, got %s", added.Item.Price)
	}

	if _, err := store.UpdateProduct(ctx, db, seller, hat.ID, productInput("Hat", "9.50", 3)); err != nil {
		t.Fatalf("Raise price: %v", err)
	}

	updated, err := store.UpdateCartItem(ctx, db, customer, added.Item.ID, 2)
	if err != nil {
		t.Fatalf("Update quantity: %v", err)
	}
	if want := decimal.RequireFromString("9.50"); !updated.Item.Price.Equal(want) {
		t.Errorf("Expected update to take price %s, got %s", want, updated.Item.Price)
	}

	if _, err := store.UpdateProduct(ctx, db, seller, hat.ID, productInput("Hat", "11.00", 3)); err != nil {
		t.Fatalf("Raise price again: %v", err)
	}

	again, err := store.AddToCart(ctx, db, customer, hat.ID)
	if err != nil {
		t.Fatalf("Add hat again: %v", err)
	}
	if again.Item.Quantity != 3 {
		t.Errorf("Expected quantity 3, got %d", again.Item.Quantity)
	}
	if want := decimal.RequireFromString("11.00"); !again.Item.Price.Equal(want) {
		t.Errorf("Expected increment to take price %s, got %s", want, again.Item.Price)
	}

	cart, err := store.GetCart(ctx, db, customer)
	if err != nil {
		t.Fatalf("Get cart: %v", err)
	}
	if want := decimal.RequireFromString("33.00"); !cart.TotalPrice().Equal(want) {
		t.Errorf("Expected total %s, got %s", want, cart.TotalPrice())
	}
}
