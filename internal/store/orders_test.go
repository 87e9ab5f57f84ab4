package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/safar/resale-market/internal/database"
	"github.com/safar/resale-market/internal/models"
	"github.com/safar/resale-market/internal/store"
)

func TestCancelOrderRestoresStock(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seller := newSeller(t, db, "seller1")
	customer := newCustomer(t, db, "buyer1")
	dress := newProduct(t, db, seller, "Dress", "45.00", 1)

	putInCart(t, db, customer, dress.ID, 1)
	result, err := store.Checkout(ctx, db, customer, models.PaymentMethodCash)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if _, sold := stockOf(t, db, dress.ID); !sold {
		t.Fatal("Dress should be sold after checkout")
	}

	change, err := store.CancelOrder(ctx, db, customer, result.Order.ID)
	if err != nil {
		t.Fatalf("Cancel order: %v", err)
	}
	if change.Order.Status != models.OrderStatusCancelled {
		t.Errorf("Expected cancelled, got %s", change.Order.Status)
	}
	if got := change.Order.Payments[0].Status; got != models.PaymentStatusCancelled {
		t.Errorf("Expected cancelled payment, got %s", got)
	}
	if len(change.Notifications) != 1 || change.Notifications[0].Type != models.NotificationOrderStatus {
		t.Errorf("Expected one order_status notification, got %+v", change.Notifications)
	}

	if stock, sold := stockOf(t, db, dress.ID); stock != 1 || sold {
		t.Errorf("Expected stock 1 back on sale, got %d sold=%t", stock, sold)
	}

	if _, err := store.CancelOrder(ctx, db, customer, result.Order.ID); !errors.Is(err, database.ErrOrderNotCancellable) {
		t.Errorf("Expected ErrOrderNotCancellable on second cancel, got %v", err)
	}
}

func TestOrdersAreOwnerScoped(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seller := newSeller(t, db, "seller1")
	owner := newCustomer(t, db, "buyer1")
	stranger := newCustomer(t, db, "buyer2")
	belt := newProduct(t, db, seller, "Belt", "18.00", 2)

	putInCart(t, db, owner, belt.ID, 1)
	result, err := store.Checkout(ctx, db, owner, models.PaymentMethodCard)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if _, err := store.GetOrder(ctx, db, stranger, result.Order.ID); !errors.Is(err, database.ErrOrderNotFound) {
		t.Errorf("Expected ErrOrderNotFound for another customer, got %v", err)
	}
	if _, err := store.CancelOrder(ctx, db, stranger, result.Order.ID); !errors.Is(err, database.ErrOrderNotFound) {
		t.Errorf("Expected ErrOrderNotFound when cancelling another customer's order, got %v", err)
	}

	order, err := store.GetOrder(ctx, db, owner, result.Order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if order.OrderNumber != result.Order.OrderNumber || len(order.Items) != 1 {
		t.Errorf("Unexpected order %+v", order)
	}
}

func TestSetOrderStatus(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seller := newSeller(t, db, "seller1")
	customer := newCustomer(t, db, "buyer1")
	watch := newProduct(t, db, seller, "Watch", "300.00", 1)

	putInCart(t, db, customer, watch.ID, 1)
	result, err := store.Checkout(ctx, db, customer, models.PaymentMethodCard)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	orderID := result.Order.ID

	if _, err := store.SetOrderStatus(ctx, db, orderID, models.OrderStatusShipped); err != nil {
		t.Fatalf("Ship order: %v", err)
	}

	// Only pending orders can be cancelled by the customer.
	if _, err := store.CancelOrder(ctx, db, customer, orderID); !errors.Is(err, database.ErrOrderNotCancellable) {
		t.Errorf("Expected ErrOrderNotCancellable for a shipped order, got %v", err)
	}

	change, err := store.SetOrderStatus(ctx, db, orderID, models.OrderStatusCompleted)
	if err != nil {
		t.Fatalf("Complete order: %v", err)
	}
	if got := change.Order.Payments[0].Status; got != models.PaymentStatusPaid {
		t.Errorf("Expected paid payment, got %s", got)
	}
	if len(change.Notifications) != 2 || change.Notifications[1].Type != models.NotificationPaymentReceived {
		t.Errorf("Expected order_status and payment_received, got %+v", change.Notifications)
	}

	if _, err := store.SetOrderStatus(ctx, db, orderID, models.OrderStatusCancelled); !errors.Is(err, database.ErrInvalidStatus) {
		t.Errorf("Completed orders should be final, got %v", err)
	}
	if _, err := store.SetOrderStatus(ctx, db, orderID, models.OrderStatus("lost")); !errors.Is(err, database.ErrInvalidStatus) {
		t.Errorf("Expected ErrInvalidStatus for an unknown status, got %v", err)
	}
}

func TestListOrdersCursor(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seller := newSeller(t, db, "seller1")
	customer := newCustomer(t, db, "buyer1")
	socks := newProduct(t, db, seller, "Socks", "3.00", 10)

	var placed []int64
	for i := 0; i < 3; i++ {
		putInCart(t, db, customer, socks.ID, 1)
		result, err := store.Checkout(ctx, db, customer, models.PaymentMethodCash)
		if err != nil {
			t.Fatalf("Checkout %d: %v", i, err)
		}
		placed = append(placed, result.Order.ID)
	}

	first, err := store.ListOrdersCursor(ctx, db, customer, "", 2)
	if err != nil {
		t.Fatalf("First page: %v", err)
	}
	orders := first.Items.([]models.Order)
	if len(orders) != 2 || !first.HasMore || first.NextCursor == "" {
		t.Fatalf("Unexpected first page: %d orders, has_more=%t", len(orders), first.HasMore)
	}
	if orders[0].ID != placed[2] {
		t.Errorf("Expected newest order %d first, got %d", placed[2], orders[0].ID)
	}

	second, err := store.ListOrdersCursor(ctx, db, customer, first.NextCursor, 2)
	if err != nil {
		t.Fatalf("Second page: %v", err)
	}
	orders = second.Items.([]models.Order)
	if len(orders) != 1 || second.HasMore || orders[0].ID != placed[0] {
		t.Errorf("Unexpected second page: %+v", second)
	}
}
