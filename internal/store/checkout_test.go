package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/safar/resale-market/internal/database"
	"github.com/safar/resale-market/internal/models"
	"github.com/safar/resale-market/internal/store"
	"github.com/shopspring/decimal"
)

func TestCheckout(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seller := newSeller(t, db, "seller1")
	customer := newCustomer(t, db, "buyer1")
	jacket := newProduct(t, db, seller, "Jacket", "10.00", 5)
	boots := newProduct(t, db, seller, "Boots", "20.00", 1)

	putInCart(t, db, customer, jacket.ID, 2)
	putInCart(t, db, customer, boots.ID, 1)

	cartBefore, err := store.GetCart(ctx, db, customer)
	if err != nil {
		t.Fatalf("Get cart: %v", err)
	}

	result, err := store.Checkout(ctx, db, customer, models.PaymentMethodCard)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	order := result.Order

	if !order.TotalAmount.Equal(decimal.NewFromInt(40)) {
		t.Errorf("Expected total 40, got %s", order.TotalAmount)
	}
	if order.Status != models.OrderStatusPending {
		t.Errorf("Expected pending order, got %s", order.Status)
	}
	if len(order.Items) != 2 {
		t.Fatalf("Expected 2 order items, got %d", len(order.Items))
	}
	if len(order.Payments) != 1 {
		t.Fatalf("Expected 1 payment, got %d", len(order.Payments))
	}
	payment := order.Payments[0]
	if !payment.Amount.Equal(decimal.NewFromInt(40)) || payment.Status != models.PaymentStatusPending || payment.Method != models.PaymentMethodCard {
		t.Errorf("Unexpected payment %+v", payment)
	}

	if stock, sold := stockOf(t, db, jacket.ID); stock != 3 || sold {
		t.Errorf("Jacket: expected stock 3 unsold, got %d sold=%t", stock, sold)
	}
	if stock, sold := stockOf(t, db, boots.ID); stock != 0 || !sold {
		t.Errorf("Boots: expected stock 0 sold, got %d sold=%t", stock, sold)
	}

	cartAfter, err := store.GetCart(ctx, db, customer)
	if err != nil {
		t.Fatalf("Get cart: %v", err)
	}
	if cartAfter.ID != cartBefore.ID {
		t.Errorf("Expected the same cart %d, got %d", cartBefore.ID, cartAfter.ID)
	}
	if len(cartAfter.Items) != 0 {
		t.Errorf("Expected empty cart, got %d items", len(cartAfter.Items))
	}

	stats, err := store.GetProductAnalytics(ctx, db, jacket.ID)
	if err != nil {
		t.Fatalf("Get analytics: %v", err)
	}
	if stats.TimesPurchased != 2 {
		t.Errorf("Expected 2 purchases, got %d", stats.TimesPurchased)
	}

	var types []models.NotificationType
	for _, n := range result.Notifications {
		types = append(types, n.Type)
	}
	if len(types) != 2 || types[0] != models.NotificationOrderCreated || types[1] != models.NotificationProductSold {
		t.Errorf("Unexpected notifications %v", types)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	db := setupTestDB(t)
	customer := newCustomer(t, db, "buyer1")

	_, err := store.Checkout(context.Background(), db, customer, models.PaymentMethodCash)
	if !errors.Is(err, database.ErrCartEmpty) {
		t.Errorf("Expected ErrCartEmpty, got %v", err)
	}
}

func TestCheckoutInvalidPaymentMethod(t *testing.T) {
	db := setupTestDB(t)
	customer := newCustomer(t, db, "buyer1")

	_, err := store.Checkout(context.Background(), db, customer, models.PaymentMethod("crypto"))
	if !errors.Is(err, database.ErrInvalidPaymentMethod) {
		t.Errorf("Expected ErrInvalidPaymentMethod, got %v", err)
	}
}

func TestCheckoutIsAtomic(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seller := newSeller(t, db, "seller1")
	customer := newCustomer(t, db, "buyer1")
	shirt := newProduct(t, db, seller, "Shirt", "15.00", 4)
	bag := newProduct(t, db, seller, "Bag", "50.00", 1)

	putInCart(t, db, customer, shirt.ID, 2)
	putInCart(t, db, customer, bag.ID, 1)

	// The seller runs out of bags after the customer added one.
	if _, err := store.UpdateProduct(ctx, db, seller, bag.ID, productInput("Bag", "50.00", 0)); err != nil {
		t.Fatalf("Update product: %v", err)
	}

	_, err := store.Checkout(ctx, db, customer, models.PaymentMethodCash)
	var unavailable *store.UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("Expected UnavailableError, got %v", err)
	}
	if unavailable.ProductID != bag.ID || !errors.Is(err, database.ErrInsufficientStock) {
		t.Errorf("Unexpected error %+v", unavailable)
	}

	if stock, _ := stockOf(t, db, shirt.ID); stock != 4 {
		t.Errorf("Shirt stock should stay 4, got %d", stock)
	}

	cart, err := store.GetCart(ctx, db, customer)
	if err != nil {
		t.Fatalf("Get cart: %v", err)
	}
	if len(cart.Items) != 2 {
		t.Errorf("Cart should keep 2 lines, got %d", len(cart.Items))
	}

	page, err := store.ListOrdersCursor(ctx, db, customer, "", 10)
	if err != nil {
		t.Fatalf("List orders: %v", err)
	}
	if orders := page.Items.([]models.Order); len(orders) != 0 {
		t.Errorf("Expected no orders, got %d", len(orders))
	}
}

func TestCheckoutSoldProduct(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seller := newSeller(t, db, "seller1")
	first := newCustomer(t, db, "buyer1")
	second := newCustomer(t, db, "buyer2")
	coat := newProduct(t, db, seller, "Coat", "99.90", 1)

	putInCart(t, db, first, coat.ID, 1)
	putInCart(t, db, second, coat.ID, 1)

	if _, err := store.Checkout(ctx, db, first, models.PaymentMethodSBP); err != nil {
		t.Fatalf("First checkout: %v", err)
	}

	_, err := store.Checkout(ctx, db, second, models.PaymentMethodSBP)
	if !errors.Is(err, database.ErrProductUnavailable) {
		t.Errorf("Expected ErrProductUnavailable, got %v", err)
	}
}

func TestConcurrentCheckoutDoesNotOversell(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	const buyers = 8
	const stock = 3

	seller := newSeller(t, db, "seller1")
	sneakers := newProduct(t, db, seller, "Sneakers", "120.00", stock)

	customers := make([]int64, buyers)
	for i := range customers {
		customers[i] = newCustomer(t, db, "buyer"+string(rune('a'+i)))
		putInCart(t, db, customers[i], sneakers.ID, 1)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failures  []error
	)

	for _, customer := range customers {
		wg.Add(1)
		go func(customer int64) {
			defer wg.Done()

			_, err := store.Checkout(ctx, db, customer, models.PaymentMethodCard)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			failures = append(failures, err)
		}(customer)
	}
	wg.Wait()

	if succeeded != stock {
		t.Errorf("Expected %d successful checkouts, got %d", stock, succeeded)
	}
	for _, err := range failures {
		if !errors.Is(err, database.ErrProductUnavailable) && !errors.Is(err, database.ErrInsufficientStock) {
			t.Errorf("Unexpected checkout error: %v", err)
		}
	}

	if remaining, sold := stockOf(t, db, sneakers.ID); remaining != 0 || !sold {
		t.Errorf("Expected stock 0 and sold, got %d sold=%t", remaining, sold)
	}
}

func TestOrderItemsStayFrozen(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seller := newSeller(t, db, "seller1")
	customer := newCustomer(t, db, "buyer1")
	jacket := newProduct(t, db, seller, "Jacket", "10.00", 5)
	putInCart(t, db, customer, jacket.ID, 2)

	result, err := store.Checkout(ctx, db, customer, models.PaymentMethodCash)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	orderID := result.Order.ID

	if _, err := store.UpdateProduct(ctx, db, seller, jacket.ID, productInput("Jacket v2", "99.00", 10)); err != nil {
		t.Fatalf("Update product: %v", err)
	}

	order, err := store.GetOrder(ctx, db, customer, orderID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if len(order.Items) != 1 {
		t.Fatalf("Expected 1 order item, got %d", len(order.Items))
	}
	item := order.Items[0]
	if item.Quantity != 2 || !item.Price.Equal(decimal.NewFromInt(10)) || item.ProductTitle != "Jacket" {
		t.Errorf("Expected the frozen line Jacket 2 x 10, got %s %d x %s", item.ProductTitle, item.Quantity, item.Price)
	}
	if !order.TotalAmount.Equal(decimal.NewFromInt(20)) {
		t.Errorf("Expected total 20, got %s", order.TotalAmount)
	}
	if len(order.Payments) != 1 || !order.Payments[0].Amount.Equal(decimal.NewFromInt(20)) {
		t.Errorf("Expected one payment of 20, got %+v", order.Payments)
	}

	tests := []struct {
		name  string
		query string
	}{
		{"price", `UPDATE order_items SET price = 1 WHERE order_id = $1`},
		{"quantity", `UPDATE order_items SET quantity = 7 WHERE order_id = $1`},
		{"title", `UPDATE order_items SET product_title = 'Other' WHERE order_id = $1`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.ExecContext(ctx, tt.query, orderID)
			if !database.IsCheckViolation(err) {
				t.Errorf("Expected a check violation, got %v", err)
			}
		})
	}
}
